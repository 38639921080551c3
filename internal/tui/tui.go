// Package tui is a terminal debugger front end: the display rendered
// with half-block characters next to a live machine state pane, with a
// command line for stepping, breakpoints and keypad input.
package tui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/okatryn/chip8/internal/vm"
)

const frameDuration = time.Second / 60

// keyTapDuration is how long a keypad key stays down after a k command.
// Long enough for a few frames of polling to observe it.
const keyTapDuration = 150 * time.Millisecond

// Config adjusts how the debugger runs the machine.
type Config struct {
	// CyclesPerFrame is the number of CPU steps per frame while
	// running freely.
	CyclesPerFrame int

	// Reload delivers replacement program images, swapped in between
	// frames.
	Reload <-chan []byte
}

type Debugger struct {
	machine *vm.VM
	program []byte
	cycles  int
	reload  <-chan []byte

	screen *tview.TextView
	state  *tview.TextView
	log    *tview.TextView
	input  *tview.InputField
	cols   *tview.Flex
	rows   *tview.Flex
	app    *tview.Application

	out  io.Writer
	done chan struct{}

	mu          sync.Mutex
	running     bool
	breakpoints map[uint16]bool
}

func New(machine *vm.VM, program []byte, cfg Config) *Debugger {
	cycles := cfg.CyclesPerFrame
	if cycles <= 0 {
		cycles = 10
	}

	d := &Debugger{
		machine: machine,
		program: program,
		cycles:  cycles,
		reload:  cfg.Reload,
		screen: tview.NewTextView().
			SetWrap(false),
		state: tview.NewTextView().
			SetWrap(false),
		log: tview.NewTextView().
			SetMaxLines(1000),
		input: tview.NewInputField().
			SetLabel("> "),
		cols: tview.NewFlex(),
		rows: tview.NewFlex().
			SetDirection(tview.FlexRow),
		app:         tview.NewApplication(),
		done:        make(chan struct{}),
		breakpoints: map[uint16]bool{},
	}
	d.out = d.log

	d.log.SetChangedFunc(func() { d.app.Draw() })
	d.screen.SetTextColor(tcell.NewHexColor(0xbea700))
	d.screen.SetBackgroundColor(tcell.ColorBlack)
	d.state.SetBackgroundColor(tcell.ColorDarkBlue)
	d.cols.
		AddItem(d.screen, vm.ScreenWidth+1, 0, false).
		AddItem(d.state, 0, 1, false)
	d.rows.
		AddItem(d.cols, vm.ScreenHeight/2, 0, false).
		AddItem(d.log, 0, 1, false).
		AddItem(d.input, 1, 0, true)
	d.app.SetRoot(d.rows, true)

	d.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(d.input.GetText())
		if text == "" {
			return
		}
		d.input.SetText("")
		d.command(text)
	})

	return d
}

// LogWriter returns the log pane as a writer, so the process logger
// can write into the debugger instead of over the terminal.
func (d *Debugger) LogWriter() io.Writer {
	return d.log
}

// Run boots the program and hands the terminal to the debugger until
// the q command quits it or the machine cannot boot.
func (d *Debugger) Run() error {
	if err := d.boot(); err != nil {
		return err
	}

	d.logf("commands: s [n] step, c continue, p pause, r reboot, b ADDR breakpoint, k KEY tap key, q quit")
	d.refreshNow()

	go d.loop()
	defer close(d.done)

	return d.app.Run()
}

func (d *Debugger) boot() error {
	d.machine.Reset()
	if err := d.machine.Load(d.program); err != nil {
		return fmt.Errorf("unable to load program: %w", err)
	}

	return nil
}

func (d *Debugger) loop() {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			if d.frame() {
				d.refresh()
			}
		}
	}
}

// frame advances the machine by one frame when running. It reports
// whether the machine state changed.
func (d *Debugger) frame() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case program, ok := <-d.reload:
		if !ok {
			d.reload = nil
			break
		}

		d.program = program
		d.running = false
		if err := d.boot(); err != nil {
			d.logf("%v", err)
			return true
		}
		d.logf("program changed, rebooted; c to run")
		return true
	default:
	}

	if !d.running {
		return false
	}

	for i := 0; i < d.cycles; i++ {
		pc := d.machine.PC()
		if d.breakpoints[pc] {
			d.running = false
			d.logf("break at 0x%03X", pc)
			return true
		}

		if err := d.machine.Step(); err != nil {
			d.running = false
			d.logf("%v", err)
			return true
		}
	}

	d.machine.TickTimers()
	return true
}

// command runs a debugger command. Runs on the UI event goroutine.
func (d *Debugger) command(text string) {
	cmd, arg, _ := strings.Cut(text, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "s", "step":
		n := 1
		if arg != "" {
			v, err := strconv.Atoi(arg)
			if err != nil || v < 1 {
				d.logf("invalid step count %q", arg)
				return
			}
			n = v
		}
		d.stepN(n)

	case "c", "continue":
		d.resume()

	case "p", "pause":
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		d.logf("paused")

	case "r", "reboot":
		d.mu.Lock()
		d.running = false
		err := d.boot()
		d.mu.Unlock()
		if err != nil {
			d.logf("%v", err)
			return
		}
		d.logf("rebooted; c to run")

	case "b", "break":
		addr, err := parseAddr(arg)
		if err != nil {
			d.logf("invalid address %q", arg)
			return
		}
		d.toggleBreakpoint(addr)

	case "k", "key":
		key, err := parseKey(arg)
		if err != nil {
			d.logf("invalid key %q", arg)
			return
		}
		d.tapKey(key)
		return

	case "q", "quit", "exit":
		d.app.Stop()
		return

	default:
		d.logf("unknown command %q", text)
		return
	}

	d.refreshNow()
}

// stepN executes n instructions, pausing first. Breakpoints do not
// apply to manual steps.
func (d *Debugger) stepN(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.running = false
	for i := 0; i < n; i++ {
		if err := d.machine.Step(); err != nil {
			d.logf("%v", err)
			return
		}
	}
}

// resume steps over a breakpoint on the current instruction, then lets
// the machine run freely.
func (d *Debugger) resume() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.breakpoints[d.machine.PC()] {
		if err := d.machine.Step(); err != nil {
			d.logf("%v", err)
			return
		}
	}
	d.running = true
}

func (d *Debugger) toggleBreakpoint(addr uint16) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.breakpoints[addr] {
		delete(d.breakpoints, addr)
		d.logf("cleared breakpoint at 0x%03X", addr)
		return
	}
	d.breakpoints[addr] = true
	d.logf("set breakpoint at 0x%03X", addr)
}

// tapKey presses a keypad key and releases it shortly after, so an
// awaiting program can observe the press.
func (d *Debugger) tapKey(key vm.Key) {
	d.mu.Lock()
	d.machine.SetKey(key, true)
	d.mu.Unlock()
	d.logf("key %X down", uint8(key))

	time.AfterFunc(keyTapDuration, func() {
		d.mu.Lock()
		d.machine.SetKey(key, false)
		d.mu.Unlock()
	})
}

// refresh redraws the display and state panes from the frame loop
// goroutine.
func (d *Debugger) refresh() {
	d.mu.Lock()
	screen := renderScreen(d.machine.Display())
	state := d.renderState()
	d.mu.Unlock()

	d.app.QueueUpdateDraw(func() {
		d.screen.SetText(screen)
		d.state.SetText(state)
	})
}

// refreshNow redraws the display and state panes from the UI event
// goroutine, which must not queue updates on itself.
func (d *Debugger) refreshNow() {
	d.mu.Lock()
	screen := renderScreen(d.machine.Display())
	state := d.renderState()
	d.mu.Unlock()

	d.screen.SetText(screen)
	d.state.SetText(state)
}

func (d *Debugger) logf(format string, args ...any) {
	fmt.Fprintf(d.out, format+"\n", args...)
}

// parseAddr parses a memory address argument: bare hex, or with a 0x
// or $ prefix.
func parseAddr(arg string) (uint16, error) {
	arg = strings.TrimPrefix(arg, "0x")
	arg = strings.TrimPrefix(arg, "$")

	v, err := strconv.ParseUint(arg, 16, 16)
	if err != nil {
		return 0, err
	}
	if v > 0xFFF {
		return 0, fmt.Errorf("address 0x%X out of range", v)
	}

	return uint16(v), nil
}

// parseKey parses a keypad key argument: a single hex digit, 0 to F.
func parseKey(arg string) (vm.Key, error) {
	v, err := strconv.ParseUint(arg, 16, 8)
	if err != nil || v > 0xF {
		return 0, fmt.Errorf("not a keypad key: %q", arg)
	}

	return vm.Key(v), nil
}
