package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/urfave/cli"

	"github.com/valerio/go-agb/agb"
	"github.com/valerio/go-agb/agb/addr"
	"github.com/valerio/go-agb/agb/video"
)

// frameTime paces the terminal renderer to the hardware frame rate.
const frameTime = time.Second * 10000 / 597275

func main() {
	app := cli.NewApp()
	app.Name = "agb"
	app.Description = "A Game Boy Advance emulator"
	app.Usage = "agb [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file",
		},
		cli.StringFlag{
			Name:  "bios",
			Usage: "Path to the 16KB BIOS image",
		},
		cli.BoolFlag{
			Name:  "skip-bios",
			Usage: "Start directly at the cartridge entry point",
		},
		cli.StringFlag{
			Name:  "backup",
			Usage: "Backup type override (SRAM, EEPROM, FLASH512, FLASH1M, NONE)",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run without a display",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run in headless mode (required for headless)",
		},
		cli.StringFlag{
			Name:  "save-state",
			Usage: "Write a save state to this path when exiting",
		},
		cli.StringFlag{
			Name:  "load-state",
			Usage: "Restore a save state from this path before running",
		},
		cli.StringFlag{
			Name:  "record-audio",
			Usage: "Record the audio output to a WAV file",
		},
	}
	app.Action = runEmulator

	if err := app.Run(os.Args); err != nil {
		slog.Error("Error running emulator", "error", err)
		os.Exit(1)
	}
}

func runEmulator(c *cli.Context) error {
	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() > 0 {
			romPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
	}
	biosPath := c.String("bios")
	if biosPath == "" {
		return errors.New("no BIOS path provided (--bios)")
	}

	bios, err := os.ReadFile(biosPath)
	if err != nil {
		return fmt.Errorf("failed to read BIOS: %w", err)
	}
	rom, err := os.ReadFile(romPath)
	if err != nil {
		return fmt.Errorf("failed to read ROM: %w", err)
	}

	machine, err := agb.New(bios, rom, c.String("backup"))
	if err != nil {
		return err
	}
	if c.Bool("skip-bios") {
		machine.SkipBIOS()
	}
	if path := c.String("load-state"); path != "" {
		state, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read save state: %w", err)
		}
		if err := machine.DeserializeState(state); err != nil {
			return err
		}
		slog.Info("Save state restored", "path", path)
	}
	slog.Info("ROM loaded", "title", machine.GameTitle(), "code", machine.GameCode())

	var recorder *audioRecorder
	if path := c.String("record-audio"); path != "" {
		recorder, err = newAudioRecorder(path, 48000)
		if err != nil {
			return err
		}
		defer recorder.Close()
	}

	runErr := func() error {
		if c.Bool("headless") {
			frames := c.Int("frames")
			if frames <= 0 {
				return errors.New("headless mode requires --frames with a positive value")
			}
			return runHeadless(machine, frames, recorder)
		}
		renderer, err := newTerminalRenderer(machine, recorder)
		if err != nil {
			return err
		}
		return renderer.Run()
	}()
	if runErr != nil {
		return runErr
	}

	if path := c.String("save-state"); path != "" {
		if err := os.WriteFile(path, machine.SerializeState(), 0o644); err != nil {
			return fmt.Errorf("failed to write save state: %w", err)
		}
		slog.Info("Save state written", "path", path)
	}
	return nil
}

func runHeadless(machine *agb.GBA, frames int, recorder *audioRecorder) error {
	fb := make([]uint16, video.FramebufferSize)
	for i := 0; i < frames; i++ {
		machine.StepFrame(fb)
		if recorder != nil {
			if err := recorder.Append(machine.CollectAudioSamples()); err != nil {
				return err
			}
		} else {
			machine.CollectAudioSamples()
		}
	}
	slog.Info("Headless run complete", "frames", frames)
	return nil
}

// audioRecorder streams collected samples into a 16-bit stereo WAV file.
type audioRecorder struct {
	file    *os.File
	encoder *wav.Encoder
	format  *audio.Format
}

func newAudioRecorder(path string, sampleRate int) (*audioRecorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}
	return &audioRecorder{
		file:    file,
		encoder: wav.NewEncoder(file, sampleRate, 16, 2, 1),
		format:  &audio.Format{NumChannels: 2, SampleRate: sampleRate},
	}, nil
}

func (r *audioRecorder) Append(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	return r.encoder.Write(&audio.IntBuffer{
		Format:         r.format,
		Data:           data,
		SourceBitDepth: 16,
	})
}

func (r *audioRecorder) Close() error {
	if err := r.encoder.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// terminalRenderer draws the framebuffer into a tcell screen, two pixels
// per character cell using the half-block glyph.
type terminalRenderer struct {
	screen   tcell.Screen
	machine  *agb.GBA
	recorder *audioRecorder
	frame    []uint16
	keys     uint16
	running  bool
}

func newTerminalRenderer(machine *agb.GBA, recorder *audioRecorder) (*terminalRenderer, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize terminal: %w", err)
	}
	return &terminalRenderer{
		screen:   screen,
		machine:  machine,
		recorder: recorder,
		frame:    make([]uint16, video.FramebufferSize),
		keys:     0x03FF,
		running:  true,
	}, nil
}

func (t *terminalRenderer) Run() error {
	defer func() {
		slog.Info("Finishing terminal")
		t.screen.Fini()
	}()

	t.screen.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite))
	t.screen.Clear()

	go t.handleInput()

	ticker := time.NewTicker(frameTime)
	defer ticker.Stop()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	for t.running {
		select {
		case <-ticker.C:
			t.machine.SetKeyState(t.keys)
			t.machine.StepFrame(t.frame)
			if t.recorder != nil {
				if err := t.recorder.Append(t.machine.CollectAudioSamples()); err != nil {
					return err
				}
			} else {
				t.machine.CollectAudioSamples()
			}
			t.render()
			t.screen.Show()
		case <-signals:
			t.running = false
			slog.Info("Received signal to stop")
			return nil
		}
	}
	return nil
}

// handleInput maps terminal keys to pad keys: arrows for the d-pad, z/x
// for B/A, a/s for L/R, enter for Start, backspace for Select.
func (t *terminalRenderer) handleInput() {
	for t.running {
		ev := t.screen.PollEvent()
		switch ev := ev.(type) {
		case *tcell.EventKey:
			var key addr.Key
			switch {
			case ev.Key() == tcell.KeyEscape:
				t.running = false
				return
			case ev.Key() == tcell.KeyUp:
				key = addr.KeyUp
			case ev.Key() == tcell.KeyDown:
				key = addr.KeyDown
			case ev.Key() == tcell.KeyLeft:
				key = addr.KeyLeft
			case ev.Key() == tcell.KeyRight:
				key = addr.KeyRight
			case ev.Key() == tcell.KeyEnter:
				key = addr.KeyStart
			case ev.Key() == tcell.KeyBackspace, ev.Key() == tcell.KeyBackspace2:
				key = addr.KeySelect
			case ev.Rune() == 'x':
				key = addr.KeyA
			case ev.Rune() == 'z':
				key = addr.KeyB
			case ev.Rune() == 'a':
				key = addr.KeyL
			case ev.Rune() == 's':
				key = addr.KeyR
			default:
				continue
			}
			// terminals have no key-up events: treat each press as a tap
			// that the next frame releases
			t.keys &^= 1 << key
			go func() {
				time.Sleep(2 * frameTime)
				t.keys |= 1 << key
			}()
		case *tcell.EventResize:
			t.screen.Sync()
		}
	}
}

func (t *terminalRenderer) render() {
	for y := 0; y < video.FramebufferHeight; y += 2 {
		for x := 0; x < video.FramebufferWidth; x++ {
			top := bgr555ToColor(t.frame[y*video.FramebufferWidth+x])
			bottom := bgr555ToColor(t.frame[(y+1)*video.FramebufferWidth+x])
			style := tcell.StyleDefault.Foreground(top).Background(bottom)
			t.screen.SetContent(x, y/2, '▀', nil, style)
		}
	}
}

func bgr555ToColor(pixel uint16) tcell.Color {
	r := int32(pixel&0x1F) << 3
	g := int32(pixel>>5&0x1F) << 3
	b := int32(pixel>>10&0x1F) << 3
	return tcell.NewRGBColor(r, g, b)
}
