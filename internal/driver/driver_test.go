package driver

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/okatryn/chip8/internal/vm"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

var errStop = errors.New("stop")

// fakeHAL counts host calls and stops the driver with stopErr once
// frames input polls have happened.
type fakeHAL struct {
	frames  int
	stopErr error
	onInput func(n int, keyDown, keyUp func(vm.Key))

	inputs    int
	draws     int
	beeps     int
	waits     int
	lastFrame []byte
}

func (h *fakeHAL) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	h.inputs++
	if h.onInput != nil {
		h.onInput(h.inputs, keyDown, keyUp)
	}
	if h.inputs >= h.frames {
		return h.stopErr
	}
	return nil
}

func (h *fakeHAL) Draw(gfx []byte) error {
	h.draws++
	h.lastFrame = append(h.lastFrame[:0], gfx...)
	return nil
}

func (h *fakeHAL) Beep() error {
	h.beeps++
	return nil
}

func (h *fakeHAL) WaitForNextFrame() error {
	h.waits++
	return nil
}

// rom encodes instruction words as a big-endian program image.
func rom(words ...uint16) []byte {
	bs := make([]byte, 0, 2*len(words))
	for _, w := range words {
		bs = append(bs, uint8(w>>8), uint8(w))
	}
	return bs
}

func TestRunStopsOnHostError(t *testing.T) {
	h := &fakeHAL{frames: 3, stopErr: errStop}
	d := New(vm.New(), h, Config{})

	err := d.Run(rom(0x1200))

	if !errors.Is(err, errStop) {
		t.Fatalf("got %v, want errStop", err)
	}
	if h.inputs != 3 {
		t.Errorf("inputs: got %d, want 3", h.inputs)
	}
	// The error cuts the third frame short, before its wait.
	if h.waits != 2 {
		t.Errorf("waits: got %d, want 2", h.waits)
	}
	// Only the initial blank frame gets drawn; the program never draws.
	if h.draws != 1 {
		t.Errorf("draws: got %d, want 1", h.draws)
	}
	if len(h.lastFrame) != vm.ScreenWidth*vm.ScreenHeight {
		t.Errorf("frame size: got %d, want %d", len(h.lastFrame), vm.ScreenWidth*vm.ScreenHeight)
	}
}

func TestRunDefaultCycleCount(t *testing.T) {
	h := &fakeHAL{frames: 1, stopErr: errStop}
	machine := vm.New()
	d := New(machine, h, Config{})

	// Add-then-jump: every other step increments v0.
	if err := d.Run(rom(0x7001, 0x1200)); !errors.Is(err, errStop) {
		t.Fatalf("got %v, want errStop", err)
	}

	if got := machine.Register(0); got != DefaultCyclesPerFrame/2 {
		t.Errorf("v0: got %d, want %d", got, DefaultCyclesPerFrame/2)
	}
}

func TestRunConfiguredCycleCount(t *testing.T) {
	h := &fakeHAL{frames: 1, stopErr: errStop}
	machine := vm.New()
	d := New(machine, h, Config{CyclesPerFrame: 4})

	if err := d.Run(rom(0x7001, 0x1200)); !errors.Is(err, errStop) {
		t.Fatalf("got %v, want errStop", err)
	}

	if got := machine.Register(0); got != 2 {
		t.Errorf("v0: got %d, want 2", got)
	}
}

func TestRunTicksTimersOncePerFrame(t *testing.T) {
	h := &fakeHAL{frames: 3, stopErr: errStop}
	machine := vm.New()
	d := New(machine, h, Config{CyclesPerFrame: 2})

	// Set the delay timer to 5, then spin.
	if err := d.Run(rom(0x6005, 0xF015, 0x1204)); !errors.Is(err, errStop) {
		t.Fatalf("got %v, want errStop", err)
	}

	// Two completed frames tick the timer twice; the third frame stops
	// at the input poll, before its tick.
	if got := machine.DelayTimer(); got != 3 {
		t.Errorf("delay timer: got %d, want 3", got)
	}
}

func TestRunBeepsWhileSoundTimerRuns(t *testing.T) {
	h := &fakeHAL{frames: 6, stopErr: errStop}
	machine := vm.New()
	d := New(machine, h, Config{CyclesPerFrame: 2})

	// Sound timer 3: audible for exactly three frames.
	if err := d.Run(rom(0x6003, 0xF018, 0x1204)); !errors.Is(err, errStop) {
		t.Fatalf("got %v, want errStop", err)
	}

	if h.beeps != 3 {
		t.Errorf("beeps: got %d, want 3", h.beeps)
	}
}

func TestRunSwapsReloadedProgram(t *testing.T) {
	reload := make(chan []byte, 1)
	reload <- rom(0x6042, 0x1202)

	h := &fakeHAL{frames: 2, stopErr: errStop}
	machine := vm.New()
	d := New(machine, h, Config{Reload: reload})

	if err := d.Run(rom(0x1200)); !errors.Is(err, errStop) {
		t.Fatalf("got %v, want errStop", err)
	}

	if got := machine.Register(0); got != 0x42 {
		t.Errorf("v0: got 0x%02x, want 0x42 (replacement program)", got)
	}
}

func TestRunIgnoresClosedReloadChannel(t *testing.T) {
	reload := make(chan []byte)
	close(reload)

	h := &fakeHAL{frames: 2, stopErr: errStop}
	machine := vm.New()
	d := New(machine, h, Config{Reload: reload})

	if err := d.Run(rom(0x1200)); !errors.Is(err, errStop) {
		t.Fatalf("got %v, want errStop", err)
	}

	if got := machine.Register(0); got != 0 {
		t.Errorf("v0: got 0x%02x, want 0 (original program keeps running)", got)
	}
}

func TestRunRejectsOversizedProgram(t *testing.T) {
	h := &fakeHAL{frames: 1, stopErr: errStop}
	d := New(vm.New(), h, Config{})

	err := d.Run(make([]byte, vm.MemorySize))

	if !errors.Is(err, vm.ErrProgramTooLarge) {
		t.Fatalf("got %v, want ErrProgramTooLarge", err)
	}
	if h.inputs != 0 {
		t.Error("driver ran frames for a program that never loaded")
	}
}

func TestRunPropagatesFault(t *testing.T) {
	h := &fakeHAL{frames: 10, stopErr: errStop}
	d := New(vm.New(), h, Config{})

	// Return with an empty call stack.
	err := d.Run(rom(0x00EE))

	var fault *vm.Fault
	if !errors.As(err, &fault) {
		t.Fatalf("got %v, want a fault", err)
	}
	if fault.Code != vm.FaultStackUnderflow {
		t.Errorf("code: got %v, want stack underflow", fault.Code)
	}
}

func TestRunDeliversKeysToMachine(t *testing.T) {
	h := &fakeHAL{
		frames:  2,
		stopErr: errStop,
		onInput: func(n int, keyDown, _ func(vm.Key)) {
			if n == 1 {
				keyDown(vm.Key5)
			}
		},
	}
	machine := vm.New()
	d := New(machine, h, Config{CyclesPerFrame: 2})

	// Wait for a key press.
	if err := d.Run(rom(0xF00A)); !errors.Is(err, errStop) {
		t.Fatalf("got %v, want errStop", err)
	}

	if machine.AwaitingKey() {
		t.Error("machine still awaiting a key")
	}
	if got := machine.Register(0); got != 0x5 {
		t.Errorf("v0: got 0x%02x, want 0x05", got)
	}
}

func TestRunReboot(t *testing.T) {
	h := &fakeHAL{frames: 2, stopErr: errStop}
	machine := vm.New()
	d := New(machine, h, Config{})

	if err := d.Run(rom(0x6007, 0x1202)); !errors.Is(err, errStop) {
		t.Fatalf("got %v, want errStop", err)
	}
	if got := machine.Register(0); got != 7 {
		t.Fatalf("v0: got %d, want 7", got)
	}

	// A second Run boots the program from scratch.
	h.inputs = 0
	if err := d.Run(rom(0x1200)); !errors.Is(err, errStop) {
		t.Fatalf("got %v, want errStop", err)
	}
	if got := machine.Register(0); got != 0 {
		t.Errorf("v0: got %d, want 0 after reboot", got)
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	if _, _, err := Watch("/no/such/directory/rom.ch8"); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}
