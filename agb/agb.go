// Package agb implements the core of a Game Boy Advance: an ARM7TDMI, the
// system bus and its peripherals, the pixel processor and the audio unit,
// advanced frame by frame under an absolute-cycle event scheduler.
package agb

import (
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"

	"github.com/valerio/go-agb/agb/audio"
	"github.com/valerio/go-agb/agb/cpu"
	"github.com/valerio/go-agb/agb/memory"
	"github.com/valerio/go-agb/agb/scheduler"
	"github.com/valerio/go-agb/agb/snapshot"
	"github.com/valerio/go-agb/agb/video"
)

// FrameCycles is the length of one frame: 228 scanlines of 1232 cycles,
// 59.7275 frames per second.
const FrameCycles = video.CyclesPerFrame

// ErrSaveStateMismatch is returned when a save state has an incompatible
// version or was taken from a different ROM.
var ErrSaveStateMismatch = errors.New("save state does not match this machine")

// Re-exported boundary errors from the cartridge loader.
var (
	ErrBadBIOS           = memory.ErrBadBIOS
	ErrBadROM            = memory.ErrBadROM
	ErrUnsupportedBackup = memory.ErrUnsupportedBackup
)

// GBA is the whole machine. It owns every subsystem; the host talks to it
// through StepFrame, SetKeyState and the collectors.
type GBA struct {
	cpu   *cpu.CPU
	gpu   *video.GPU
	bus   *memory.Bus
	apu   *audio.APU
	sched *scheduler.Scheduler

	frameStart uint64
	frameCount uint64
	sampleFrac uint32
	romCRC     uint32
}

// New creates a machine from a BIOS image and a ROM image. backupName
// overrides backup detection when non-empty ("SRAM", "EEPROM", "FLASH512",
// "FLASH1M", "NONE"). Audio is produced at 48 kHz; use NewWithSampleRate
// for a different host rate.
func New(bios, rom []byte, backupName string) (*GBA, error) {
	return NewWithSampleRate(bios, rom, backupName, 48000)
}

// NewWithSampleRate is New with an explicit audio output rate.
func NewWithSampleRate(bios, rom []byte, backupName string, sampleRate int) (*GBA, error) {
	if len(bios) != memory.BIOSSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrBadBIOS, len(bios))
	}
	cart, err := memory.NewCartridge(rom, backupName)
	if err != nil {
		return nil, err
	}

	g := &GBA{
		apu:    audio.New(sampleRate),
		sched:  scheduler.New(),
		romCRC: crc32.ChecksumIEEE(rom),
	}
	g.bus = memory.New(cart, g.apu, g.sched)
	g.bus.LoadBIOS(bios)
	g.cpu = cpu.New(g.bus)
	g.gpu = video.NewGPU(g.bus)

	g.sched.Schedule(uint64(g.apu.CyclesPerSample()>>8), scheduler.EventAPUSample, 0)
	g.sched.Schedule(audio.SequencerPeriod, scheduler.EventAPUSequencer, 0)

	slog.Debug("Machine created",
		"title", cart.Title(), "code", cart.Code(),
		"backup", cart.Kind.String(), "sampleRate", g.apu.SampleRate())
	return g, nil
}

// SkipBIOS seeds the state the BIOS boot sequence would leave behind and
// starts execution at the cartridge entry point.
func (g *GBA) SkipBIOS() {
	g.cpu.SeedPostBoot()
}

// StepFrame runs the machine for exactly one frame (280,896 bus cycles)
// and writes the finished 240x160 BGR555 frame into the caller's buffer,
// which must hold at least 38,400 entries. Pass nil to skip the copy.
func (g *GBA) StepFrame(framebuffer []uint16) {
	target := g.frameStart + FrameCycles

	for g.bus.Cycles() < target {
		limit := target
		if next, ok := g.sched.Peek(); ok && next < limit {
			limit = next
		}

		// run the CPU up to the next event; a halted CPU sleeps straight
		// through
		for g.bus.Cycles() < limit {
			if (g.cpu.Halted || g.cpu.Stopped) && !g.bus.IRQWake() {
				g.bus.AdvanceTo(limit)
				break
			}
			g.cpu.Step()
			if halt, stop := g.bus.ConsumeHalt(); halt || stop {
				g.cpu.Halted = g.cpu.Halted || halt
				g.cpu.Stopped = g.cpu.Stopped || stop
			}
		}

		for {
			event, ok := g.sched.PopDue(g.bus.Cycles())
			if !ok {
				break
			}
			g.dispatch(event)
		}
	}

	g.frameStart = target
	g.frameCount++
	if framebuffer != nil {
		g.gpu.FrameBuffer().CopyInto(framebuffer)
	}

	if g.frameCount%600 == 0 {
		slog.Debug("Frame completed", "frame", g.frameCount, "pc", fmt.Sprintf("0x%08X", g.cpu.PC()))
	}
}

// dispatch routes a matured scheduler event to its subsystem.
func (g *GBA) dispatch(e scheduler.Event) {
	switch e.Kind {
	case scheduler.EventPPU:
		g.gpu.HandleEvent(e.Channel, e.Cycle)
	case scheduler.EventTimer:
		g.bus.TimerOverflow(e.Channel, e.Cycle)
	case scheduler.EventDMA:
		g.bus.RunDMA(e.Channel)
	case scheduler.EventAPUSample:
		g.apu.Sample()
		g.scheduleNextSample(e.Cycle)
	case scheduler.EventAPUSequencer:
		g.apu.StepSequencer()
		g.sched.Schedule(e.Cycle+audio.SequencerPeriod, scheduler.EventAPUSequencer, 0)
	}
}

// scheduleNextSample keeps the host-rate cadence using an 8.8 fixed-point
// accumulator, so the average rate is exact.
func (g *GBA) scheduleNextSample(from uint64) {
	cps := g.apu.CyclesPerSample()
	step := uint64(cps >> 8)
	g.sampleFrac += cps & 0xFF
	if g.sampleFrac >= 0x100 {
		step++
		g.sampleFrac -= 0x100
	}
	g.sched.Schedule(from+step, scheduler.EventAPUSample, 0)
}

// SetKeyState replaces the pad state: bit i set means key i released, per
// the KEYINPUT convention. Bit order: A, B, Select, Start, Right, Left,
// Up, Down, R, L.
func (g *GBA) SetKeyState(mask uint16) {
	g.bus.SetKeyState(mask)
	if g.cpu.Stopped && g.bus.IRQWake() {
		g.cpu.Stopped = false
	}
}

// CollectAudioSamples drains the audio ring: interleaved stereo signed
// 16-bit at the configured host rate.
func (g *GBA) CollectAudioSamples() []int16 {
	return g.apu.CollectSamples()
}

// FrameBuffer exposes the current frame for front-ends that render in
// place instead of copying.
func (g *GBA) FrameBuffer() *video.FrameBuffer {
	return g.gpu.FrameBuffer()
}

// GameTitle returns the 12-character title from the ROM header.
func (g *GBA) GameTitle() string {
	return g.bus.Cart().Title()
}

// GameCode returns the 4-character game code from the ROM header.
func (g *GBA) GameCode() string {
	return g.bus.Cart().Code()
}

// Backup returns the raw cartridge backup bytes for persistence, or nil
// when the cartridge has none.
func (g *GBA) Backup() []byte {
	return g.bus.Cart().Backup.Data()
}

// LoadBackup restores cartridge backup bytes saved by a previous session.
func (g *GBA) LoadBackup(data []byte) {
	g.bus.Cart().Backup.LoadData(data)
}

// CPU and Bus expose subsystems to debugging front-ends and tests.
func (g *GBA) CPU() *cpu.CPU    { return g.cpu }
func (g *GBA) Bus() *memory.Bus { return g.bus }

// SerializeState captures the complete machine state as a versioned
// binary snapshot bound to the loaded ROM.
func (g *GBA) SerializeState() []byte {
	w := snapshot.NewWriter()
	w.U32(g.romCRC)
	w.U64(g.frameStart)
	w.U64(g.frameCount)
	w.U32(g.sampleFrac)
	g.cpu.Save(w)
	g.bus.Save(w)
	g.gpu.Save(w)
	g.apu.Save(w)
	return w.Data()
}

// DeserializeState restores a snapshot produced by SerializeState. The
// snapshot must carry the current format version and match the loaded
// ROM.
func (g *GBA) DeserializeState(data []byte) error {
	r, err := snapshot.NewReader(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSaveStateMismatch, err)
	}
	if crc := r.U32(); crc != g.romCRC {
		return fmt.Errorf("%w: ROM checksum differs", ErrSaveStateMismatch)
	}
	g.frameStart = r.U64()
	g.frameCount = r.U64()
	g.sampleFrac = r.U32()
	g.cpu.Load(r)
	g.bus.Load(r)
	g.gpu.Load(r)
	g.apu.Load(r)
	if err := r.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveStateMismatch, err)
	}
	return nil
}

// FrameCount returns the number of completed frames.
func (g *GBA) FrameCount() uint64 {
	return g.frameCount
}
