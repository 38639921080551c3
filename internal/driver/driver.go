// Package driver runs a CHIP-8 machine against a host: a fixed number
// of CPU steps per frame, timers ticked once per frame, display and
// buzzer refreshed from machine state, frames paced by the host clock.
package driver

import (
	"fmt"
	"log/slog"

	"github.com/okatryn/chip8/internal/vm"
)

// DefaultCyclesPerFrame is the number of CPU steps per frame when the
// config does not say otherwise. Ten steps at 60 frames per second is
// the usual speed for classic ROMs.
const DefaultCyclesPerFrame = 10

// HAL is the host the driver runs the machine against.
type HAL interface {
	// ReadInput pumps pending host events, reporting keypad
	// transitions through the callbacks. Returning an error stops the
	// machine; hosts use sentinel errors to request quit or restart.
	ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error

	// Draw presents a 64x32 row-major frame, one byte per pixel.
	Draw(gfx []byte) error

	// Beep sounds the buzzer for about one frame.
	Beep() error

	// WaitForNextFrame blocks until the next frame is due.
	WaitForNextFrame() error
}

// Config adjusts how a Driver runs the machine.
type Config struct {
	// CyclesPerFrame is the number of CPU steps per frame.
	// DefaultCyclesPerFrame when zero.
	CyclesPerFrame int

	// Reload delivers replacement program images. The driver swaps the
	// running program between frames and boots it from scratch.
	Reload <-chan []byte
}

type Driver struct {
	machine *vm.VM
	hal     HAL
	cycles  int
	reload  <-chan []byte
	program []byte
}

func New(machine *vm.VM, hal HAL, cfg Config) *Driver {
	cycles := cfg.CyclesPerFrame
	if cycles <= 0 {
		cycles = DefaultCyclesPerFrame
	}

	return &Driver{
		machine: machine,
		hal:     hal,
		cycles:  cycles,
		reload:  cfg.Reload,
	}
}

// Run boots the program and drives the machine until the host asks to
// stop or the machine faults. Errors from the host pass through
// unwrapped, so callers can match their sentinels.
func (d *Driver) Run(program []byte) error {
	d.program = program
	if err := d.boot(); err != nil {
		return err
	}

	for {
		if err := d.frame(); err != nil {
			return err
		}
	}
}

func (d *Driver) boot() error {
	d.machine.Reset()
	if err := d.machine.Load(d.program); err != nil {
		return fmt.Errorf("unable to load program: %w", err)
	}

	return nil
}

func (d *Driver) frame() error {
	select {
	case program, ok := <-d.reload:
		if !ok {
			d.reload = nil
			break
		}

		slog.Info("program changed, rebooting")
		d.program = program
		if err := d.boot(); err != nil {
			return err
		}
	default:
	}

	for i := 0; i < d.cycles; i++ {
		if err := d.machine.Step(); err != nil {
			return err
		}
	}

	if d.machine.ConsumeDrawFlag() {
		if err := d.hal.Draw(d.machine.Display()); err != nil {
			return err
		}
	}

	if d.machine.SoundActive() {
		if err := d.hal.Beep(); err != nil {
			return err
		}
	}

	if err := d.hal.ReadInput(d.keyDown, d.keyUp); err != nil {
		return err
	}

	d.machine.TickTimers()

	return d.hal.WaitForNextFrame()
}

func (d *Driver) keyDown(key vm.Key) {
	d.machine.SetKey(key, true)
}

func (d *Driver) keyUp(key vm.Key) {
	d.machine.SetKey(key, false)
}
