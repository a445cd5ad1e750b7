package cpu

import (
	"math/bits"

	"github.com/valerio/go-agb/agb/bit"
)

// thumbHandler executes one 16-bit THUMB instruction.
type thumbHandler func(c *CPU, op uint16)

// thumbTable is keyed by the instruction's top 10 bits, enough to separate
// all nineteen THUMB formats.
var thumbTable [1024]thumbHandler

func buildThumbTable() {
	for i := range thumbTable {
		thumbTable[i] = thumbDecodeSlot(uint16(i) << 6)
	}
}

func thumbDecodeSlot(op uint16) thumbHandler {
	switch {
	case op&0xF800 == 0x1800:
		return thumbAddSub
	case op&0xE000 == 0x0000:
		return thumbMoveShifted
	case op&0xE000 == 0x2000:
		return thumbMoveCompareImm
	case op&0xFC00 == 0x4000:
		return thumbALU
	case op&0xFC00 == 0x4400:
		return thumbHiReg
	case op&0xF800 == 0x4800:
		return thumbPCRelativeLoad
	case op&0xF200 == 0x5000:
		return thumbLoadStoreReg
	case op&0xF200 == 0x5200:
		return thumbLoadStoreSignExt
	case op&0xE000 == 0x6000:
		return thumbLoadStoreImm
	case op&0xF000 == 0x8000:
		return thumbLoadStoreHalf
	case op&0xF000 == 0x9000:
		return thumbSPRelativeLoadStore
	case op&0xF000 == 0xA000:
		return thumbLoadAddress
	case op&0xFF00 == 0xB000:
		return thumbAdjustSP
	case op&0xF600 == 0xB400:
		return thumbPushPop
	case op&0xF000 == 0xC000:
		return thumbMultipleLoadStore
	case op&0xFF00 == 0xDF00:
		return thumbSWI
	case op&0xFF00 == 0xDE00:
		return thumbUndefined
	case op&0xF000 == 0xD000:
		return thumbCondBranch
	case op&0xF800 == 0xE000:
		return thumbBranch
	case op&0xF800 == 0xF000, op&0xF800 == 0xF800:
		return thumbLongBranchLink
	default:
		return thumbUndefined
	}
}

func thumbMoveShifted(c *CPU, op uint16) {
	typ := uint32(op >> 11 & 3)
	amount := uint(op >> 6 & 0x1F)
	rs := int(op >> 3 & 7)
	rd := int(op & 7)

	result, carry := c.shiftImm(c.Reg(rs), typ, amount)
	c.setNZ(result)
	c.setFlag(flagC, carry)
	c.SetReg(rd, result)
}

func thumbAddSub(c *CPU, op uint16) {
	rd := int(op & 7)
	rs := int(op >> 3 & 7)
	operand := uint32(op >> 6 & 7)
	if op&(1<<10) == 0 {
		operand = c.Reg(int(operand))
	}

	var result uint32
	if op&(1<<9) != 0 {
		result = c.subWithFlags(c.Reg(rs), operand, 1, true)
	} else {
		result = c.addWithFlags(c.Reg(rs), operand, 0, true)
	}
	c.SetReg(rd, result)
}

func thumbMoveCompareImm(c *CPU, op uint16) {
	rd := int(op >> 8 & 7)
	imm := uint32(op & 0xFF)

	switch op >> 11 & 3 {
	case 0: // MOV
		c.setNZ(imm)
		c.SetReg(rd, imm)
	case 1: // CMP
		c.subWithFlags(c.Reg(rd), imm, 1, true)
	case 2: // ADD
		c.SetReg(rd, c.addWithFlags(c.Reg(rd), imm, 0, true))
	default: // SUB
		c.SetReg(rd, c.subWithFlags(c.Reg(rd), imm, 1, true))
	}
}

func thumbALU(c *CPU, op uint16) {
	rd := int(op & 7)
	rs := int(op >> 3 & 7)
	a := c.Reg(rd)
	b := c.Reg(rs)

	setShift := func(result uint32, carry bool) {
		c.setNZ(result)
		c.setFlag(flagC, carry)
		c.SetReg(rd, result)
		c.bus.Idle(1)
	}

	switch op >> 6 & 0xF {
	case 0x0: // AND
		c.setNZ(a & b)
		c.SetReg(rd, a&b)
	case 0x1: // EOR
		c.setNZ(a ^ b)
		c.SetReg(rd, a^b)
	case 0x2: // LSL
		setShift(c.shiftReg(a, shiftLSL, uint(b&0xFF)))
	case 0x3: // LSR
		setShift(c.shiftReg(a, shiftLSR, uint(b&0xFF)))
	case 0x4: // ASR
		setShift(c.shiftReg(a, shiftASR, uint(b&0xFF)))
	case 0x5: // ADC
		c.SetReg(rd, c.addWithFlags(a, b, c.carry(), true))
	case 0x6: // SBC
		c.SetReg(rd, c.subWithFlags(a, b, c.carry(), true))
	case 0x7: // ROR
		setShift(c.shiftReg(a, shiftROR, uint(b&0xFF)))
	case 0x8: // TST
		c.setNZ(a & b)
	case 0x9: // NEG
		c.SetReg(rd, c.subWithFlags(0, b, 1, true))
	case 0xA: // CMP
		c.subWithFlags(a, b, 1, true)
	case 0xB: // CMN
		c.addWithFlags(a, b, 0, true)
	case 0xC: // ORR
		c.setNZ(a | b)
		c.SetReg(rd, a|b)
	case 0xD: // MUL
		result := a * b
		c.mulIdle(a, 0)
		c.setNZ(result)
		c.SetReg(rd, result)
	case 0xE: // BIC
		c.setNZ(a &^ b)
		c.SetReg(rd, a&^b)
	default: // MVN
		c.setNZ(^b)
		c.SetReg(rd, ^b)
	}
}

func thumbHiReg(c *CPU, op uint16) {
	rd := int(op&7 | op>>4&0x8)
	rs := int(op >> 3 & 0xF)

	switch op >> 8 & 3 {
	case 0: // ADD, no flags
		c.SetReg(rd, c.Reg(rd)+c.Reg(rs))
	case 1: // CMP
		c.subWithFlags(c.Reg(rd), c.Reg(rs), 1, true)
	case 2: // MOV
		c.SetReg(rd, c.Reg(rs))
	default: // BX
		target := c.Reg(rs)
		c.setFlag(flagT, target&1 == 1)
		c.branchTo(target)
	}
}

func thumbPCRelativeLoad(c *CPU, op uint16) {
	rd := int(op >> 8 & 7)
	address := c.Reg(15)&^2 + uint32(op&0xFF)*4
	v := c.loadWord(address)
	c.bus.Idle(1)
	c.SetReg(rd, v)
}

func thumbLoadStoreReg(c *CPU, op uint16) {
	rd := int(op & 7)
	address := c.Reg(int(op>>3&7)) + c.Reg(int(op>>6&7))

	switch {
	case op&(1<<11) == 0 && op&(1<<10) == 0: // STR
		c.bus.Write32(address&^3, c.Reg(rd))
	case op&(1<<11) == 0: // STRB
		c.bus.Write8(address, uint8(c.Reg(rd)))
	case op&(1<<10) == 0: // LDR
		v := c.loadWord(address)
		c.bus.Idle(1)
		c.SetReg(rd, v)
	default: // LDRB
		v := uint32(c.bus.Read8(address))
		c.bus.Idle(1)
		c.SetReg(rd, v)
	}
}

func thumbLoadStoreSignExt(c *CPU, op uint16) {
	rd := int(op & 7)
	address := c.Reg(int(op>>3&7)) + c.Reg(int(op>>6&7))

	switch op >> 10 & 3 {
	case 0: // STRH
		c.bus.Write16(address&^1, uint16(c.Reg(rd)))
	case 1: // LDSB
		v := uint32(int32(int8(c.bus.Read8(address))))
		c.bus.Idle(1)
		c.SetReg(rd, v)
	case 2: // LDRH
		v := c.loadHalf(address)
		c.bus.Idle(1)
		c.SetReg(rd, v)
	default: // LDSH
		v := c.loadHalfSigned(address)
		c.bus.Idle(1)
		c.SetReg(rd, v)
	}
}

func thumbLoadStoreImm(c *CPU, op uint16) {
	rd := int(op & 7)
	rb := int(op >> 3 & 7)
	offset := uint32(op >> 6 & 0x1F)
	byteOp := op&(1<<12) != 0
	load := op&(1<<11) != 0

	if byteOp {
		address := c.Reg(rb) + offset
		if load {
			v := uint32(c.bus.Read8(address))
			c.bus.Idle(1)
			c.SetReg(rd, v)
		} else {
			c.bus.Write8(address, uint8(c.Reg(rd)))
		}
		return
	}

	address := c.Reg(rb) + offset*4
	if load {
		v := c.loadWord(address)
		c.bus.Idle(1)
		c.SetReg(rd, v)
	} else {
		c.bus.Write32(address&^3, c.Reg(rd))
	}
}

func thumbLoadStoreHalf(c *CPU, op uint16) {
	rd := int(op & 7)
	address := c.Reg(int(op>>3&7)) + uint32(op>>6&0x1F)*2

	if op&(1<<11) != 0 {
		v := c.loadHalf(address)
		c.bus.Idle(1)
		c.SetReg(rd, v)
	} else {
		c.bus.Write16(address&^1, uint16(c.Reg(rd)))
	}
}

func thumbSPRelativeLoadStore(c *CPU, op uint16) {
	rd := int(op >> 8 & 7)
	address := c.Reg(13) + uint32(op&0xFF)*4

	if op&(1<<11) != 0 {
		v := c.loadWord(address)
		c.bus.Idle(1)
		c.SetReg(rd, v)
	} else {
		c.bus.Write32(address&^3, c.Reg(rd))
	}
}

func thumbLoadAddress(c *CPU, op uint16) {
	rd := int(op >> 8 & 7)
	offset := uint32(op&0xFF) * 4
	if op&(1<<11) != 0 {
		c.SetReg(rd, c.Reg(13)+offset)
	} else {
		c.SetReg(rd, c.Reg(15)&^2+offset)
	}
}

func thumbAdjustSP(c *CPU, op uint16) {
	offset := uint32(op&0x7F) * 4
	if op&(1<<7) != 0 {
		c.SetReg(13, c.Reg(13)-offset)
	} else {
		c.SetReg(13, c.Reg(13)+offset)
	}
}

func thumbPushPop(c *CPU, op uint16) {
	rlist := uint32(op & 0xFF)
	extra := op&(1<<8) != 0
	count := bits.OnesCount32(rlist)
	if extra {
		count++
	}

	if op&(1<<11) != 0 { // POP
		address := c.Reg(13)
		c.SetReg(13, address+uint32(4*count))
		for i := 0; i < 8; i++ {
			if rlist&(1<<i) == 0 {
				continue
			}
			c.SetReg(i, c.bus.Read32(address))
			address += 4
		}
		if extra {
			// POP PC stays in THUMB state on the ARM7TDMI
			c.SetReg(15, c.bus.Read32(address)&^1)
		}
		c.bus.Idle(1)
		return
	}

	// PUSH
	address := c.Reg(13) - uint32(4*count)
	c.SetReg(13, address)
	for i := 0; i < 8; i++ {
		if rlist&(1<<i) == 0 {
			continue
		}
		c.bus.Write32(address, c.Reg(i))
		address += 4
	}
	if extra {
		c.bus.Write32(address, c.Reg(14))
	}
}

func thumbMultipleLoadStore(c *CPU, op uint16) {
	rb := int(op >> 8 & 7)
	rlist := uint32(op & 0xFF)
	load := op&(1<<11) != 0
	base := c.Reg(rb)

	if rlist == 0 {
		// empty list quirk, same as the ARM encoding: R15 transfers and
		// the base steps a full sixteen words
		if load {
			c.SetReg(15, c.bus.Read32(base))
			c.bus.Idle(1)
		} else {
			c.bus.Write32(base, c.Reg(15)+2)
		}
		c.SetReg(rb, base+0x40)
		return
	}

	count := bits.OnesCount32(rlist)
	final := base + uint32(4*count)

	if load {
		c.SetReg(rb, final)
		address := base
		for i := 0; i < 8; i++ {
			if rlist&(1<<i) == 0 {
				continue
			}
			c.SetReg(i, c.bus.Read32(address))
			address += 4
		}
		c.bus.Idle(1)
		return
	}

	address := base
	first := true
	for i := 0; i < 8; i++ {
		if rlist&(1<<i) == 0 {
			continue
		}
		c.bus.Write32(address, c.Reg(i))
		address += 4
		if first {
			c.SetReg(rb, final)
			first = false
		}
	}
}

func thumbCondBranch(c *CPU, op uint16) {
	if !c.CheckCondition(uint8(op >> 8 & 0xF)) {
		return
	}
	offset := bit.SignExtend(uint32(op&0xFF), 8) << 1
	c.branchTo(c.Reg(15) + offset)
}

func thumbSWI(c *CPU, op uint16) {
	c.raiseSWI()
}

func thumbUndefined(c *CPU, op uint16) {
	c.raiseUndefined()
}

func thumbBranch(c *CPU, op uint16) {
	offset := bit.SignExtend(uint32(op&0x7FF), 11) << 1
	c.branchTo(c.Reg(15) + offset)
}

func thumbLongBranchLink(c *CPU, op uint16) {
	offset := uint32(op & 0x7FF)
	if op&(1<<11) == 0 {
		// first half: stage the upper offset bits in LR
		c.SetReg(14, c.Reg(15)+(bit.SignExtend(offset, 11)<<12))
		return
	}
	// second half: jump and leave the return address (with the THUMB bit)
	ret := c.pc + 2
	c.branchTo(c.Reg(14) + offset<<1)
	c.SetReg(14, ret|1)
}
