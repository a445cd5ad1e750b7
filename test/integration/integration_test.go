package integration

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-agb/agb"
	"github.com/valerio/go-agb/agb/memory"
	"github.com/valerio/go-agb/agb/video"
)

// loadTestFile reads a file from test-roms, skipping the test when it is
// not present (the ROMs are not distributed with the repository).
func loadTestFile(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("..", "..", "test-roms", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Skipf("Test file not available: %v", err)
	}
	return data
}

// TestARMWrestler runs the public armwrestler instruction test suite and
// asserts that no failure markers (red text) appear on screen.
func TestARMWrestler(t *testing.T) {
	bios := loadTestFile(t, "gba_bios.bin")
	rom := loadTestFile(t, "armwrestler.gba")

	machine, err := agb.New(bios, rom, "NONE")
	require.NoError(t, err)

	fb := make([]uint16, video.FramebufferSize)
	for i := 0; i < 240; i++ {
		machine.StepFrame(fb)
	}

	for i, px := range fb {
		r := px & 0x1F
		g := px >> 5 & 0x1F
		b := px >> 10 & 0x1F
		assert.False(t, r > 15 && g < 4 && b < 4,
			"red failure pixel at (%d,%d): %04X", i%240, i/240, px)
	}
}

// TestLongRunStability drives a synthesized ROM for many frames with a
// save-state round trip in the middle, checking the run stays
// deterministic end to end.
func TestLongRunStability(t *testing.T) {
	rom := make([]byte, 0x1000)
	words := []uint32{
		0xE3A00301, // mov r0, #0x04000000
		0xE3A01B01, // mov r1, #0x0400
		0xE3811003, // orr r1, r1, #3
		0xE5801000, // str r1, [r0]
		0xE3A02406, // mov r2, #0x06000000
		0xE3A03000, // mov r3, #0
		0xE2833007, // add r3, r3, #7
		0xE1C230B0, // strh r3, [r2]
		0xE2822002, // add r2, r2, #2
		0xEAFFFFFB, // b the add
	}
	for i, w := range words {
		binary.LittleEndian.PutUint32(rom[i*4:], w)
	}
	bios := make([]byte, memory.BIOSSize)

	reference, err := agb.New(bios, rom, "NONE")
	require.NoError(t, err)
	reference.SkipBIOS()

	subject, err := agb.New(bios, rom, "NONE")
	require.NoError(t, err)
	subject.SkipBIOS()

	fbA := make([]uint16, video.FramebufferSize)
	fbB := make([]uint16, video.FramebufferSize)

	for frame := 0; frame < 120; frame++ {
		reference.StepFrame(fbA)
		subject.StepFrame(fbB)
		require.Equal(t, fbA, fbB, "divergence at frame %d", frame)

		if frame == 60 {
			// round-trip the subject through a save state mid-run
			state := subject.SerializeState()
			subject, err = agb.New(bios, rom, "NONE")
			require.NoError(t, err)
			require.NoError(t, subject.DeserializeState(state))
			subject.CollectAudioSamples()
		}
		reference.CollectAudioSamples()
		subject.CollectAudioSamples()
	}
}
