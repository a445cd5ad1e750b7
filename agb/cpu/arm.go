package cpu

import (
	"math/bits"

	"github.com/valerio/go-agb/agb/bit"
)

// Shift types in operand encodings.
const (
	shiftLSL = 0
	shiftLSR = 1
	shiftASR = 2
	shiftROR = 3
)

// shiftImm applies an immediate-amount shift, with the ARM quirks for a
// zero amount: LSR#0 and ASR#0 mean a full 32-bit shift, ROR#0 is RRX.
func (c *CPU) shiftImm(value uint32, typ uint32, amount uint) (uint32, bool) {
	switch typ {
	case shiftLSL:
		if amount == 0 {
			return value, c.flag(flagC)
		}
		return value << amount, value>>(32-amount)&1 == 1
	case shiftLSR:
		if amount == 0 {
			amount = 32
		}
		if amount == 32 {
			return 0, value>>31&1 == 1
		}
		return value >> amount, value>>(amount-1)&1 == 1
	case shiftASR:
		if amount == 0 || amount >= 32 {
			if value&0x80000000 != 0 {
				return 0xFFFFFFFF, true
			}
			return 0, false
		}
		return uint32(int32(value) >> amount), value>>(amount-1)&1 == 1
	default: // ROR, amount 0 encodes RRX
		if amount == 0 {
			out := value>>1 | c.carry()<<31
			return out, value&1 == 1
		}
		return bit.Ror(value, amount), value>>(amount-1)&1 == 1
	}
}

// shiftReg applies a register-specified shift, where amounts of 0, 32 and
// beyond have their own documented results.
func (c *CPU) shiftReg(value uint32, typ uint32, amount uint) (uint32, bool) {
	if amount == 0 {
		return value, c.flag(flagC)
	}
	switch typ {
	case shiftLSL:
		switch {
		case amount < 32:
			return value << amount, value>>(32-amount)&1 == 1
		case amount == 32:
			return 0, value&1 == 1
		default:
			return 0, false
		}
	case shiftLSR:
		switch {
		case amount < 32:
			return value >> amount, value>>(amount-1)&1 == 1
		case amount == 32:
			return 0, value>>31&1 == 1
		default:
			return 0, false
		}
	case shiftASR:
		if amount >= 32 {
			if value&0x80000000 != 0 {
				return 0xFFFFFFFF, true
			}
			return 0, false
		}
		return uint32(int32(value) >> amount), value>>(amount-1)&1 == 1
	default: // ROR
		amount &= 31
		if amount == 0 {
			return value, value>>31&1 == 1
		}
		return bit.Ror(value, amount), value>>(amount-1)&1 == 1
	}
}

// armOperand2 decodes the data processing second operand and returns it
// with the shifter carry-out.
func (c *CPU) armOperand2(op uint32) (uint32, bool) {
	if op&(1<<25) != 0 {
		imm := op & 0xFF
		rot := uint(op>>8&0xF) * 2
		v := bit.Ror(imm, rot)
		if rot == 0 {
			return v, c.flag(flagC)
		}
		return v, v&0x80000000 != 0
	}

	rm := int(op & 0xF)
	typ := op >> 5 & 3
	value := c.Reg(rm)

	if op&(1<<4) != 0 {
		// register-specified amount: the extra register read makes PC
		// visible one word further ahead, and costs an internal cycle
		if rm == 15 {
			value += 4
		}
		amount := uint(c.Reg(int(op>>8&0xF)) & 0xFF)
		c.bus.Idle(1)
		return c.shiftReg(value, typ, amount)
	}
	return c.shiftImm(value, typ, uint(op>>7&0x1F))
}

func (c *CPU) addWithFlags(a, b, carryIn uint32, setFlags bool) uint32 {
	sum := uint64(a) + uint64(b) + uint64(carryIn)
	r := uint32(sum)
	if setFlags {
		c.setNZ(r)
		c.setFlag(flagC, sum > 0xFFFFFFFF)
		c.setFlag(flagV, (a^r)&(b^r)&0x80000000 != 0)
	}
	return r
}

// subWithFlags computes a - b - (1 - carryIn); carryIn is 1 for plain SUB
// and the C flag for SBC. C is set to NOT borrow.
func (c *CPU) subWithFlags(a, b, carryIn uint32, setFlags bool) uint32 {
	borrow := uint64(1 - carryIn)
	r := uint32(uint64(a) - uint64(b) - borrow)
	if setFlags {
		c.setNZ(r)
		c.setFlag(flagC, uint64(a) >= uint64(b)+borrow)
		c.setFlag(flagV, (a^b)&(a^r)&0x80000000 != 0)
	}
	return r
}

func (c *CPU) logicalResult(r uint32, shifterCarry, setFlags bool) uint32 {
	if setFlags {
		c.setNZ(r)
		c.setFlag(flagC, shifterCarry)
	}
	return r
}

// Data processing opcodes.
const (
	opAND = iota
	opEOR
	opSUB
	opRSB
	opADD
	opADC
	opSBC
	opRSC
	opTST
	opTEQ
	opCMP
	opCMN
	opORR
	opMOV
	opBIC
	opMVN
)

func armDataProcessing(c *CPU, op uint32) {
	opcode := op >> 21 & 0xF
	s := op&(1<<20) != 0
	rn := int(op >> 16 & 0xF)
	rd := int(op >> 12 & 0xF)

	op2, shifterCarry := c.armOperand2(op)
	a := c.Reg(rn)
	if rn == 15 && op&(1<<25) == 0 && op&(1<<4) != 0 {
		a += 4
	}

	// flag writes with Rd=15 restore CPSR from SPSR instead
	flags := s && rd != 15

	var result uint32
	writeback := true
	switch opcode {
	case opAND:
		result = c.logicalResult(a&op2, shifterCarry, flags)
	case opEOR:
		result = c.logicalResult(a^op2, shifterCarry, flags)
	case opSUB:
		result = c.subWithFlags(a, op2, 1, flags)
	case opRSB:
		result = c.subWithFlags(op2, a, 1, flags)
	case opADD:
		result = c.addWithFlags(a, op2, 0, flags)
	case opADC:
		result = c.addWithFlags(a, op2, c.carry(), flags)
	case opSBC:
		result = c.subWithFlags(a, op2, c.carry(), flags)
	case opRSC:
		result = c.subWithFlags(op2, a, c.carry(), flags)
	case opTST:
		c.logicalResult(a&op2, shifterCarry, true)
		writeback = false
	case opTEQ:
		c.logicalResult(a^op2, shifterCarry, true)
		writeback = false
	case opCMP:
		c.subWithFlags(a, op2, 1, true)
		writeback = false
	case opCMN:
		c.addWithFlags(a, op2, 0, true)
		writeback = false
	case opORR:
		result = c.logicalResult(a|op2, shifterCarry, flags)
	case opMOV:
		result = c.logicalResult(op2, shifterCarry, flags)
	case opBIC:
		result = c.logicalResult(a&^op2, shifterCarry, flags)
	default: // MVN
		result = c.logicalResult(^op2, shifterCarry, flags)
	}

	if !writeback {
		return
	}
	if rd == 15 && s {
		// return-from-exception idiom: mode, state and flags all restore
		c.SetCPSR(c.SPSR())
	}
	c.SetReg(rd, result)
}

func armMRS(c *CPU, op uint32) {
	rd := int(op >> 12 & 0xF)
	if op&(1<<22) != 0 {
		c.SetReg(rd, c.SPSR())
	} else {
		c.SetReg(rd, c.cpsr)
	}
}

func armMSR(c *CPU, op uint32) {
	var value uint32
	if op&(1<<25) != 0 {
		value = bit.Ror(op&0xFF, uint(op>>8&0xF)*2)
	} else {
		value = c.Reg(int(op & 0xF))
	}

	var mask uint32
	if op&(1<<16) != 0 {
		mask |= 0x000000FF
	}
	if op&(1<<17) != 0 {
		mask |= 0x0000FF00
	}
	if op&(1<<18) != 0 {
		mask |= 0x00FF0000
	}
	if op&(1<<19) != 0 {
		mask |= 0xFF000000
	}
	if c.Mode() == UserMode {
		// user mode can only touch the condition flags
		mask &= 0xFF000000
	}

	if op&(1<<22) != 0 {
		c.setSPSR(c.SPSR()&^mask | value&mask)
		return
	}
	c.SetCPSR(c.cpsr&^mask | value&mask)
}

func armBranch(c *CPU, op uint32) {
	offset := bit.SignExtend(op&0xFFFFFF, 24) << 2
	if op&(1<<24) != 0 {
		c.SetReg(14, c.pc+4)
	}
	c.branchTo(c.Reg(15) + offset)
}

func armBX(c *CPU, op uint32) {
	target := c.Reg(int(op & 0xF))
	c.setFlag(flagT, target&1 == 1)
	c.branchTo(target)
}

// mulIdle approximates the early-termination multiplier timing from the
// significant bytes of the second operand.
func (c *CPU) mulIdle(rs uint32, extra int) {
	m := 4
	switch {
	case rs&0xFFFFFF00 == 0 || rs&0xFFFFFF00 == 0xFFFFFF00:
		m = 1
	case rs&0xFFFF0000 == 0 || rs&0xFFFF0000 == 0xFFFF0000:
		m = 2
	case rs&0xFF000000 == 0 || rs&0xFF000000 == 0xFF000000:
		m = 3
	}
	c.bus.Idle(m + extra)
}

func armMultiply(c *CPU, op uint32) {
	rd := int(op >> 16 & 0xF)
	rn := int(op >> 12 & 0xF)
	rs := c.Reg(int(op >> 8 & 0xF))
	rm := c.Reg(int(op & 0xF))

	result := rm * rs
	extra := 0
	if op&(1<<21) != 0 {
		result += c.Reg(rn)
		extra = 1
	}
	c.mulIdle(rs, extra)
	c.SetReg(rd, result)
	if op&(1<<20) != 0 {
		// C and V are left untouched: the hardware leaves them in an
		// unpredictable state, preserving them keeps runs reproducible
		c.setNZ(result)
	}
}

func armMultiplyLong(c *CPU, op uint32) {
	rdHi := int(op >> 16 & 0xF)
	rdLo := int(op >> 12 & 0xF)
	rs := c.Reg(int(op >> 8 & 0xF))
	rm := c.Reg(int(op & 0xF))
	signed := op&(1<<22) != 0
	accumulate := op&(1<<21) != 0

	var result uint64
	if signed {
		result = uint64(int64(int32(rm)) * int64(int32(rs)))
	} else {
		result = uint64(rm) * uint64(rs)
	}
	extra := 1
	if accumulate {
		result += uint64(c.Reg(rdHi))<<32 | uint64(c.Reg(rdLo))
		extra = 2
	}
	c.mulIdle(rs, extra)
	c.SetReg(rdLo, uint32(result))
	c.SetReg(rdHi, uint32(result>>32))
	if op&(1<<20) != 0 {
		c.setFlag(flagN, result&0x8000000000000000 != 0)
		c.setFlag(flagZ, result == 0)
	}
}

func armSwap(c *CPU, op uint32) {
	rn := int(op >> 16 & 0xF)
	rd := int(op >> 12 & 0xF)
	rm := int(op & 0xF)
	address := c.Reg(rn)

	if op&(1<<22) != 0 {
		old := uint32(c.bus.Read8(address))
		c.bus.Write8(address, uint8(c.Reg(rm)))
		c.bus.Idle(1)
		c.SetReg(rd, old)
		return
	}
	old := c.loadWord(address)
	c.bus.Write32(address&^3, c.Reg(rm))
	c.bus.Idle(1)
	c.SetReg(rd, old)
}

func armSingleDataTransfer(c *CPU, op uint32) {
	pre := op&(1<<24) != 0
	up := op&(1<<23) != 0
	byteOp := op&(1<<22) != 0
	writeback := op&(1<<21) != 0
	load := op&(1<<20) != 0
	rn := int(op >> 16 & 0xF)
	rd := int(op >> 12 & 0xF)

	var offset uint32
	if op&(1<<25) != 0 {
		// register offset with immediate shift; bit 4 is always clear here
		v, _ := c.shiftImm(c.Reg(int(op&0xF)), op>>5&3, uint(op>>7&0x1F))
		offset = v
	} else {
		offset = op & 0xFFF
	}

	base := c.Reg(rn)
	address := base
	end := base + offset
	if !up {
		end = base - offset
	}
	if pre {
		address = end
	}

	if load {
		var v uint32
		if byteOp {
			v = uint32(c.bus.Read8(address))
		} else {
			v = c.loadWord(address)
		}
		c.bus.Idle(1)
		if !pre || writeback {
			c.SetReg(rn, end)
		}
		// the loaded value wins over any base writeback to the same register
		c.SetReg(rd, v)
		return
	}

	v := c.Reg(rd)
	if rd == 15 {
		// stores of PC see one word further ahead than reads
		v += 4
	}
	if byteOp {
		c.bus.Write8(address, uint8(v))
	} else {
		c.bus.Write32(address&^3, v)
	}
	if !pre || writeback {
		c.SetReg(rn, end)
	}
}

func armHalfwordTransfer(c *CPU, op uint32) {
	pre := op&(1<<24) != 0
	up := op&(1<<23) != 0
	writeback := op&(1<<21) != 0
	load := op&(1<<20) != 0
	rn := int(op >> 16 & 0xF)
	rd := int(op >> 12 & 0xF)
	sh := op >> 5 & 3

	var offset uint32
	if op&(1<<22) != 0 {
		offset = op>>4&0xF0 | op&0xF
	} else {
		offset = c.Reg(int(op & 0xF))
	}

	base := c.Reg(rn)
	address := base
	end := base + offset
	if !up {
		end = base - offset
	}
	if pre {
		address = end
	}

	if load {
		var v uint32
		switch sh {
		case 1:
			v = c.loadHalf(address)
		case 2:
			v = uint32(int32(int8(c.bus.Read8(address))))
		default:
			v = c.loadHalfSigned(address)
		}
		c.bus.Idle(1)
		if !pre || writeback {
			c.SetReg(rn, end)
		}
		c.SetReg(rd, v)
		return
	}

	// only STRH exists in the store column of this encoding space
	v := c.Reg(rd)
	if rd == 15 {
		v += 4
	}
	c.bus.Write16(address&^1, uint16(v))
	if !pre || writeback {
		c.SetReg(rn, end)
	}
}

func armBlockTransfer(c *CPU, op uint32) {
	pre := op&(1<<24) != 0
	up := op&(1<<23) != 0
	sBit := op&(1<<22) != 0
	writeback := op&(1<<21) != 0
	load := op&(1<<20) != 0
	rn := int(op >> 16 & 0xF)
	rlist := op & 0xFFFF

	count := bits.OnesCount32(rlist)
	if rlist == 0 {
		// empty list quirk: R15 transfers alone and the base moves as if
		// all sixteen registers had
		rlist = 1 << 15
		count = 16
	}

	base := c.Reg(rn)
	var start, final uint32
	if up {
		final = base + uint32(4*count)
		start = base
		if pre {
			start += 4
		}
	} else {
		final = base - uint32(4*count)
		start = final
		if !pre {
			start += 4
		}
	}

	userBank := sBit && (!load || rlist&(1<<15) == 0)

	if load {
		if writeback {
			c.SetReg(rn, final)
		}
		address := start
		for i := 0; i < 16; i++ {
			if rlist&(1<<i) == 0 {
				continue
			}
			v := c.bus.Read32(address)
			if userBank {
				c.setRegUser(i, v)
			} else {
				c.SetReg(i, v)
			}
			address += 4
		}
		c.bus.Idle(1)
		if sBit && rlist&(1<<15) != 0 {
			c.SetCPSR(c.SPSR())
		}
		return
	}

	address := start
	first := true
	for i := 0; i < 16; i++ {
		if rlist&(1<<i) == 0 {
			continue
		}
		var v uint32
		if userBank {
			v = c.regUser(i)
		} else {
			v = c.Reg(i)
		}
		if i == 15 {
			v += 4
		}
		c.bus.Write32(address, v)
		address += 4
		if first && writeback {
			// base written back after the first store, so a base register
			// later in the list stores its updated value
			c.SetReg(rn, final)
			first = false
		}
	}
}

func armSWI(c *CPU, op uint32) {
	c.raiseSWI()
}

func armUndefined(c *CPU, op uint32) {
	c.raiseUndefined()
}
