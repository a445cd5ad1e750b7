package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes a single ARM instruction placed at 0x1000.
func runARM(t *testing.T, c *CPU, bus *testBus, op uint32) {
	t.Helper()
	bus.setARM(0x1000, op)
	c.SetPC(0x1000)
	c.Step()
}

func TestDataProcessingAddFlags(t *testing.T) {
	cases := []struct {
		name       string
		a, b       uint32
		n, z, cf, v bool
	}{
		{"simple", 1, 2, false, false, false, false},
		{"zero", 0, 0, false, true, false, false},
		{"carry out", 0xFFFFFFFF, 1, false, true, true, false},
		{"positive overflow", 0x7FFFFFFF, 1, true, false, false, true},
		{"negative overflow", 0x80000000, 0x80000000, false, true, true, true},
		{"negative result", 0, 0x80000000, true, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, bus := newTestCPU()
			c.SetReg(1, tc.a)
			c.SetReg(2, tc.b)
			runARM(t, c, bus, 0xE0910002) // ADDS r0, r1, r2

			assert.Equal(t, tc.a+tc.b, c.Reg(0))
			assert.Equal(t, tc.n, c.flag(flagN), "N")
			assert.Equal(t, tc.z, c.flag(flagZ), "Z")
			assert.Equal(t, tc.cf, c.flag(flagC), "C")
			assert.Equal(t, tc.v, c.flag(flagV), "V")
		})
	}
}

func TestDataProcessingSubFlags(t *testing.T) {
	cases := []struct {
		name       string
		a, b       uint32
		n, z, cf, v bool
	}{
		{"no borrow", 5, 3, false, false, true, false},
		{"equal", 7, 7, false, true, true, false},
		{"borrow", 3, 5, true, false, false, false},
		{"overflow", 0x80000000, 1, false, false, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, bus := newTestCPU()
			c.SetReg(1, tc.a)
			c.SetReg(2, tc.b)
			runARM(t, c, bus, 0xE0510002) // SUBS r0, r1, r2

			assert.Equal(t, tc.a-tc.b, c.Reg(0))
			assert.Equal(t, tc.n, c.flag(flagN), "N")
			assert.Equal(t, tc.z, c.flag(flagZ), "Z")
			assert.Equal(t, tc.cf, c.flag(flagC), "C, set when no borrow")
			assert.Equal(t, tc.v, c.flag(flagV), "V")
		})
	}
}

// TestOverflowFormula pins the ADDS/SUBS V definition over a sweep of
// operand sign combinations.
func TestOverflowFormula(t *testing.T) {
	values := []uint32{0, 1, 0x7FFFFFFF, 0x80000000, 0xFFFFFFFF, 0x12345678, 0xDEADBEEF}
	for _, a := range values {
		for _, b := range values {
			c, bus := newTestCPU()
			c.SetReg(1, a)
			c.SetReg(2, b)
			runARM(t, c, bus, 0xE0910002) // ADDS
			r := a + b
			assert.Equal(t, (a^r)&(b^r)>>31 == 1, c.flag(flagV), "ADDS V for %08X+%08X", a, b)

			c, bus = newTestCPU()
			c.SetReg(1, a)
			c.SetReg(2, b)
			runARM(t, c, bus, 0xE0510002) // SUBS
			r = a - b
			assert.Equal(t, (a^b)&(a^r)>>31 == 1, c.flag(flagV), "SUBS V for %08X-%08X", a, b)
		}
	}
}

func TestLogicalOpsSetCarryFromShifter(t *testing.T) {
	c, bus := newTestCPU()
	c.SetReg(1, 0x80000001)
	runARM(t, c, bus, 0xE1B000A1) // MOVS r0, r1, LSR #1
	assert.Equal(t, uint32(0x40000000), c.Reg(0))
	assert.True(t, c.flag(flagC), "carry from shifter out")

	c, bus = newTestCPU()
	c.SetReg(1, 0x80000001)
	runARM(t, c, bus, 0xE1B00081) // MOVS r0, r1, LSL #1
	assert.Equal(t, uint32(0x00000002), c.Reg(0))
	assert.True(t, c.flag(flagC), "bit 31 shifted out")
}

func TestShifterSpecialEncodings(t *testing.T) {
	// LSR #0 encodes LSR #32
	c, bus := newTestCPU()
	c.SetReg(1, 0x80000000)
	runARM(t, c, bus, 0xE1B00021) // MOVS r0, r1, LSR #32
	assert.Equal(t, uint32(0), c.Reg(0))
	assert.True(t, c.flag(flagC))

	// ASR #0 encodes ASR #32
	c, bus = newTestCPU()
	c.SetReg(1, 0x80000000)
	runARM(t, c, bus, 0xE1B00041) // MOVS r0, r1, ASR #32
	assert.Equal(t, uint32(0xFFFFFFFF), c.Reg(0))
	assert.True(t, c.flag(flagC))

	// ROR #0 encodes RRX
	c, bus = newTestCPU()
	c.setFlag(flagC, true)
	c.SetReg(1, 0x00000002)
	runARM(t, c, bus, 0xE1B00061) // MOVS r0, r1, RRX
	assert.Equal(t, uint32(0x80000001), c.Reg(0))
	assert.False(t, c.flag(flagC), "old bit 0 becomes carry")
}

func TestShiftByRegisterUsesLowByte(t *testing.T) {
	c, bus := newTestCPU()
	c.SetReg(1, 1)
	c.SetReg(2, 0x100) // low byte zero: no shift, carry unchanged
	c.setFlag(flagC, true)
	runARM(t, c, bus, 0xE1B00211) // MOVS r0, r1, LSL r2
	assert.Equal(t, uint32(1), c.Reg(0))
	assert.True(t, c.flag(flagC))

	c, bus = newTestCPU()
	c.SetReg(1, 1)
	c.SetReg(2, 32)
	runARM(t, c, bus, 0xE1B00211) // MOVS r0, r1, LSL r2 (by 32)
	assert.Equal(t, uint32(0), c.Reg(0))
	assert.True(t, c.flag(flagC), "LSL #32 carries bit 0")

	c, bus = newTestCPU()
	c.SetReg(1, 1)
	c.SetReg(2, 33)
	runARM(t, c, bus, 0xE1B00211)
	assert.Equal(t, uint32(0), c.Reg(0))
	assert.False(t, c.flag(flagC), "LSL >32 clears carry")
}

func TestMovImmediateWithRotation(t *testing.T) {
	c, bus := newTestCPU()
	runARM(t, c, bus, 0xE3A004FF) // MOV r0, #0xFF000000
	assert.Equal(t, uint32(0xFF000000), c.Reg(0))
}

func TestConditionPrefixSkipsInstruction(t *testing.T) {
	c, bus := newTestCPU()
	c.SetReg(0, 7)
	c.setFlag(flagZ, false)
	runARM(t, c, bus, 0x03A00001) // MOVEQ r0, #1
	assert.Equal(t, uint32(7), c.Reg(0), "EQ fails with Z clear")
}

func TestMultiply(t *testing.T) {
	c, bus := newTestCPU()
	c.SetReg(1, 7)
	c.SetReg(2, 6)
	runARM(t, c, bus, 0xE0000291) // MUL r0, r1, r2
	assert.Equal(t, uint32(42), c.Reg(0))

	c, bus = newTestCPU()
	c.SetReg(1, 0xFFFFFFFF) // -1
	c.SetReg(2, 3)
	c.SetReg(3, 10)
	runARM(t, c, bus, 0xE0203291) // MLA r0, r1, r2, r3
	assert.Equal(t, uint32(7), c.Reg(0))
}

func TestMultiplyLong(t *testing.T) {
	// UMULL r0, r1, r2, r3
	c, bus := newTestCPU()
	c.SetReg(2, 0xFFFFFFFF)
	c.SetReg(3, 2)
	runARM(t, c, bus, 0xE0810392)
	assert.Equal(t, uint32(0xFFFFFFFE), c.Reg(0), "RdLo")
	assert.Equal(t, uint32(1), c.Reg(1), "RdHi")

	// SMULL r0, r1, r2, r3 with -2 * 3
	c, bus = newTestCPU()
	c.SetReg(2, 0xFFFFFFFE)
	c.SetReg(3, 3)
	runARM(t, c, bus, 0xE0C10392)
	assert.Equal(t, uint32(0xFFFFFFFA), c.Reg(0))
	assert.Equal(t, uint32(0xFFFFFFFF), c.Reg(1))
}

func TestMultiplyLongLeavesCVAlone(t *testing.T) {
	c, bus := newTestCPU()
	c.setFlag(flagC, true)
	c.setFlag(flagV, true)
	c.SetReg(2, 1234)
	c.SetReg(3, 5678)
	runARM(t, c, bus, 0xE0910392) // UMULLS r0, r1, r2, r3
	assert.True(t, c.flag(flagC), "C untouched by long multiply")
	assert.True(t, c.flag(flagV), "V untouched by long multiply")
}

func TestBranchAndLink(t *testing.T) {
	c, bus := newTestCPU()
	bus.setARM(0x1000, 0xEB000002) // BL +0x10 (target 0x1010)
	c.SetPC(0x1000)
	c.Step()
	assert.Equal(t, uint32(0x1010), c.PC())
	assert.Equal(t, uint32(0x1004), c.Reg(14))

	// backwards branch
	c, bus = newTestCPU()
	bus.setARM(0x1000, 0xEAFFFFFE) // B . (branch to self)
	c.SetPC(0x1000)
	c.Step()
	assert.Equal(t, uint32(0x1000), c.PC())
}

func TestBXSwitchesToThumb(t *testing.T) {
	c, bus := newTestCPU()
	c.SetReg(0, 0x2001) // bit 0 set: THUMB
	runARM(t, c, bus, 0xE12FFF10) // BX r0
	assert.True(t, c.Thumb())
	assert.Equal(t, uint32(0x2000), c.PC())

	c, bus = newTestCPU()
	c.SetReg(0, 0x3000)
	runARM(t, c, bus, 0xE12FFF10)
	assert.False(t, c.Thumb())
	assert.Equal(t, uint32(0x3000), c.PC())
}

func TestSingleDataTransfer(t *testing.T) {
	c, bus := newTestCPU()
	c.SetReg(0, 0xCAFEBABE)
	c.SetReg(1, 0x2000)
	runARM(t, c, bus, 0xE5810004) // STR r0, [r1, #4]
	assert.Equal(t, uint32(0xCAFEBABE), bus.Read32(0x2004))
	assert.Equal(t, uint32(0x2000), c.Reg(1), "no writeback without W")

	c, bus = newTestCPU()
	bus.Write32(0x2004, 0x11223344)
	c.SetReg(1, 0x2000)
	runARM(t, c, bus, 0xE5B10004) // LDR r0, [r1, #4]!
	assert.Equal(t, uint32(0x11223344), c.Reg(0))
	assert.Equal(t, uint32(0x2004), c.Reg(1), "pre-index writeback")

	c, bus = newTestCPU()
	bus.Write32(0x2000, 0x55667788)
	c.SetReg(1, 0x2000)
	runARM(t, c, bus, 0xE4910004) // LDR r0, [r1], #4
	assert.Equal(t, uint32(0x55667788), c.Reg(0))
	assert.Equal(t, uint32(0x2004), c.Reg(1), "post-index always writes back")
}

func TestLoadByteAndStoreByte(t *testing.T) {
	c, bus := newTestCPU()
	c.SetReg(0, 0x1122CCDD)
	c.SetReg(1, 0x2000)
	runARM(t, c, bus, 0xE5C10000) // STRB r0, [r1]
	assert.Equal(t, uint8(0xDD), bus.Read8(0x2000))

	bus.Write8(0x2001, 0xFE)
	c.SetReg(1, 0x2001)
	runARM(t, c, bus, 0xE5D10000) // LDRB r0, [r1]
	assert.Equal(t, uint32(0xFE), c.Reg(0))
}

func TestLoadIntoPCBranches(t *testing.T) {
	c, bus := newTestCPU()
	bus.Write32(0x2000, 0x4000)
	c.SetReg(1, 0x2000)
	runARM(t, c, bus, 0xE591F000) // LDR pc, [r1]
	assert.Equal(t, uint32(0x4000), c.PC())
}

func TestHalfwordTransfer(t *testing.T) {
	c, bus := newTestCPU()
	c.SetReg(0, 0x1234ABCD)
	c.SetReg(1, 0x2000)
	runARM(t, c, bus, 0xE1C100B2) // STRH r0, [r1, #2]
	assert.Equal(t, uint16(0xABCD), bus.Read16(0x2002))

	c, bus = newTestCPU()
	bus.Write16(0x2002, 0x8123)
	c.SetReg(1, 0x2000)
	runARM(t, c, bus, 0xE1D100B2) // LDRH r0, [r1, #2]
	assert.Equal(t, uint32(0x8123), c.Reg(0))

	c, bus = newTestCPU()
	bus.Write16(0x2002, 0x8123)
	c.SetReg(1, 0x2000)
	runARM(t, c, bus, 0xE1D100F2) // LDRSH r0, [r1, #2]
	assert.Equal(t, uint32(0xFFFF8123), c.Reg(0))

	c, bus = newTestCPU()
	bus.Write8(0x2002, 0x80)
	c.SetReg(1, 0x2000)
	runARM(t, c, bus, 0xE1D100D2) // LDRSB r0, [r1, #2]
	assert.Equal(t, uint32(0xFFFFFF80), c.Reg(0))
}

func TestBlockTransfer(t *testing.T) {
	c, bus := newTestCPU()
	c.SetReg(0, 0xAAAA0000)
	c.SetReg(1, 0xBBBB1111)
	c.SetReg(2, 0xCCCC2222)
	c.SetReg(4, 0x2000)
	runARM(t, c, bus, 0xE8A40007) // STMIA r4!, {r0-r2}
	assert.Equal(t, uint32(0xAAAA0000), bus.Read32(0x2000))
	assert.Equal(t, uint32(0xBBBB1111), bus.Read32(0x2004))
	assert.Equal(t, uint32(0xCCCC2222), bus.Read32(0x2008))
	assert.Equal(t, uint32(0x200C), c.Reg(4))

	c, bus = newTestCPU()
	bus.Write32(0x2000, 1)
	bus.Write32(0x2004, 2)
	bus.Write32(0x2008, 3)
	c.SetReg(4, 0x200C)
	runARM(t, c, bus, 0xE9340007) // LDMDB r4!, {r0-r2}
	assert.Equal(t, uint32(1), c.Reg(0))
	assert.Equal(t, uint32(2), c.Reg(1))
	assert.Equal(t, uint32(3), c.Reg(2))
	assert.Equal(t, uint32(0x2000), c.Reg(4))
}

func TestLDMEmptyListQuirk(t *testing.T) {
	c, bus := newTestCPU()
	bus.Write32(0x2000, 0x4000)
	c.SetReg(4, 0x2000)
	runARM(t, c, bus, 0xE8B40000) // LDMIA r4!, {} (empty list)
	assert.Equal(t, uint32(0x4000), c.PC(), "empty list loads R15")
	assert.Equal(t, uint32(0x2040), c.Reg(4), "base steps 0x40")

	c, bus = newTestCPU()
	c.SetReg(4, 0x2000)
	runARM(t, c, bus, 0xE9240000) // STMDB r4!, {} (empty list)
	assert.Equal(t, uint32(0x2000-0x40), c.Reg(4), "descending base steps -0x40")
}

func TestLDMSBitRestoresCPSR(t *testing.T) {
	c, bus := newTestCPU()
	c.setMode(IRQMode)
	c.setSPSR(uint32(SystemMode) | 1<<flagC)
	bus.Write32(0x2000, 0x1234)
	bus.Write32(0x2004, 0x4000)
	c.SetReg(4, 0x2000)
	runARM(t, c, bus, 0xE8F48001) // LDMIA r4!, {r0, pc}^
	assert.Equal(t, SystemMode, c.Mode(), "CPSR restored from SPSR")
	assert.True(t, c.flag(flagC))
	assert.Equal(t, uint32(0x4000)&^3, c.PC())
}

func TestSTMUserBank(t *testing.T) {
	c, bus := newTestCPU()
	c.SetReg(13, 0x11110000) // user r13
	c.setMode(IRQMode)
	c.SetReg(13, 0x22220000) // irq r13
	c.SetReg(4, 0x2000)
	runARM(t, c, bus, 0xE8C42000) // STMIA r4, {r13}^
	assert.Equal(t, uint32(0x11110000), bus.Read32(0x2000), "S bit stores the user bank")
}

func TestSwap(t *testing.T) {
	c, bus := newTestCPU()
	bus.Write32(0x2000, 0x0BADF00D)
	c.SetReg(1, 0x2000)
	c.SetReg(2, 0xFEEDFACE)
	runARM(t, c, bus, 0xE1010092) // SWP r0, r2, [r1]
	assert.Equal(t, uint32(0x0BADF00D), c.Reg(0))
	assert.Equal(t, uint32(0xFEEDFACE), bus.Read32(0x2000))

	c, bus = newTestCPU()
	bus.Write8(0x2000, 0x42)
	c.SetReg(1, 0x2000)
	c.SetReg(2, 0x99)
	runARM(t, c, bus, 0xE1410092) // SWPB r0, r2, [r1]
	assert.Equal(t, uint32(0x42), c.Reg(0))
	assert.Equal(t, uint8(0x99), bus.Read8(0x2000))
}

func TestMRSMSR(t *testing.T) {
	c, bus := newTestCPU()
	c.setFlag(flagC, true)
	runARM(t, c, bus, 0xE10F0000) // MRS r0, CPSR
	assert.Equal(t, c.CPSR(), c.Reg(0))

	c, bus = newTestCPU()
	c.SetReg(0, 0xF0000000)
	runARM(t, c, bus, 0xE128F000) // MSR CPSR_f, r0
	assert.True(t, c.flag(flagN))
	assert.True(t, c.flag(flagZ))
	assert.True(t, c.flag(flagC))
	assert.True(t, c.flag(flagV))
	assert.Equal(t, SystemMode, c.Mode(), "flags-only write leaves mode")

	// privileged mode change through the control field
	c, bus = newTestCPU()
	c.SetReg(0, uint32(IRQMode))
	runARM(t, c, bus, 0xE121F000) // MSR CPSR_c, r0
	assert.Equal(t, IRQMode, c.Mode())
}

func TestMSRUserModeOnlyFlags(t *testing.T) {
	c, bus := newTestCPU()
	c.setMode(UserMode)
	c.SetReg(0, uint32(SupervisorMode)|0x80000000)
	runARM(t, c, bus, 0xE129F000) // MSR CPSR_fc, r0
	assert.Equal(t, UserMode, c.Mode(), "user mode cannot escalate")
	assert.True(t, c.flag(flagN), "flag field still writable")
}

func TestDataProcessingPCOperand(t *testing.T) {
	c, bus := newTestCPU()
	bus.setARM(0x1000, 0xE1A0000F) // MOV r0, pc
	c.SetPC(0x1000)
	c.Step()
	assert.Equal(t, uint32(0x1008), c.Reg(0), "PC reads two instructions ahead")
}

func TestSPSRRestoreViaSubsPC(t *testing.T) {
	c, bus := newTestCPU()
	c.setMode(IRQMode)
	c.setSPSR(uint32(SystemMode))
	c.SetReg(14, 0x2004)
	runARM(t, c, bus, 0xE25EF004) // SUBS pc, lr, #4
	assert.Equal(t, uint32(0x2000), c.PC())
	assert.Equal(t, SystemMode, c.Mode(), "SUBS pc restores CPSR from SPSR")
}

func TestCoprocessorTrapsUndefined(t *testing.T) {
	c, bus := newTestCPU()
	bus.setARM(0x1000, 0xEE070F9A) // MCR p15 encoding
	c.SetPC(0x1000)
	c.Step()
	assert.Equal(t, UndefinedMode, c.Mode())
	assert.Equal(t, uint32(vecUndefined), c.PC())
}

func TestDecodeTableIsTotal(t *testing.T) {
	for i, h := range armTable {
		require.NotNil(t, h, "ARM slot %03X has no handler", i)
	}
	for i, h := range thumbTable {
		require.NotNil(t, h, "THUMB slot %03X has no handler", i)
	}
}
