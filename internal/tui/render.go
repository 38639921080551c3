package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okatryn/chip8/internal/disasm"
	"github.com/okatryn/chip8/internal/vm"
)

// renderScreen draws a 64x32 display as 16 lines of half-block
// characters, two pixel rows per text line.
func renderScreen(display []uint8) string {
	var b strings.Builder
	b.Grow((vm.ScreenWidth + 1) * vm.ScreenHeight / 2)

	for y := 0; y < vm.ScreenHeight; y += 2 {
		for x := 0; x < vm.ScreenWidth; x++ {
			top := display[y*vm.ScreenWidth+x] != 0
			bottom := display[(y+1)*vm.ScreenWidth+x] != 0

			switch {
			case top && bottom:
				b.WriteRune('█')
			case top:
				b.WriteRune('▀')
			case bottom:
				b.WriteRune('▄')
			default:
				b.WriteByte(' ')
			}
		}
		b.WriteByte('\n')
	}

	return b.String()
}

// renderState formats the machine state pane. Callers hold the
// debugger mutex.
func (d *Debugger) renderState() string {
	m := d.machine
	pc := m.PC()

	var b strings.Builder

	status := "paused"
	if d.running {
		status = "running"
	}
	if m.AwaitingKey() {
		status += ", awaiting key"
	}
	fmt.Fprintf(&b, " [%s]\n\n", status)

	fmt.Fprintf(&b, "   pc 0x%03X  %s\n", pc, disasm.Decode(m.ReadWord(pc)))
	fmt.Fprintf(&b, " next 0x%03X  %s\n\n", pc+vm.InstructionSize, disasm.Decode(m.ReadWord(pc+vm.InstructionSize)))

	fmt.Fprintf(&b, "    i 0x%03X   sp %d   dt %02X   st %02X\n\n",
		m.Index(), m.StackDepth(), m.DelayTimer(), m.SoundTimer())

	for i := 0; i < vm.RegisterCount; i++ {
		if i > 0 && i%8 == 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, " v%X %02X", i, m.Register(i))
	}
	b.WriteByte('\n')

	if len(d.breakpoints) > 0 {
		addrs := make([]int, 0, len(d.breakpoints))
		for addr := range d.breakpoints {
			addrs = append(addrs, int(addr))
		}
		sort.Ints(addrs)

		b.WriteString("\n breakpoints:")
		for _, addr := range addrs {
			fmt.Fprintf(&b, " 0x%03X", addr)
		}
		b.WriteByte('\n')
	}

	return b.String()
}
