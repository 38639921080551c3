package vm

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

// progVM returns a machine with the given instruction words loaded at
// ProgramStart.
func progVM(t *testing.T, words ...uint16) *VM {
	t.Helper()

	vm := New()
	rom := make([]byte, 0, len(words)*2)
	for _, w := range words {
		rom = append(rom, byte(w>>8), byte(w))
	}
	if err := vm.Load(rom); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return vm
}

func step(t *testing.T, vm *VM, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		if err := vm.Step(); err != nil {
			t.Fatalf("step %d: %v", i+1, err)
		}
	}
}

func TestNew(t *testing.T) {
	vm := New()

	if vm.pc != ProgramStart {
		t.Errorf("pc: got 0x%04x, want 0x%04x", vm.pc, ProgramStart)
	}
	if vm.memory[0] != 0xF0 {
		t.Errorf("font glyph 0 missing: memory[0] = 0x%02x", vm.memory[0])
	}
	if got := len(vm.Display()); got != ScreenWidth*ScreenHeight {
		t.Errorf("display size: got %d, want %d", got, ScreenWidth*ScreenHeight)
	}
}

func TestLoad(t *testing.T) {
	vm := New()

	rom := make([]byte, MemorySize-int(ProgramStart))
	rom[0] = 0x12
	rom[len(rom)-1] = 0x34
	if err := vm.Load(rom); err != nil {
		t.Fatalf("full-size rom: %v", err)
	}
	if vm.memory[int(ProgramStart)] != 0x12 || vm.memory[MemorySize-1] != 0x34 {
		t.Error("rom bytes not copied to program area")
	}
}

func TestLoadTooLarge(t *testing.T) {
	vm := progVM(t, 0x6105)

	big := make([]byte, MemorySize-int(ProgramStart)+1)
	err := vm.Load(big)
	if !errors.Is(err, ErrProgramTooLarge) {
		t.Fatalf("got %v, want ErrProgramTooLarge", err)
	}

	// A rejected load must not have touched memory.
	if vm.memory[int(ProgramStart)] != 0x61 {
		t.Errorf("memory modified by failed load: 0x%02x", vm.memory[int(ProgramStart)])
	}
}

func TestReset(t *testing.T) {
	vm := progVM(t, 0x6A05, 0xA123, 0xF315)
	vm.registers[3] = 7
	step(t, vm, 3)
	vm.SetKey(Key4, true)

	vm.Reset()

	if vm.pc != ProgramStart {
		t.Errorf("pc: got 0x%04x, want 0x%04x", vm.pc, ProgramStart)
	}
	if vm.index != 0 || vm.sp != 0 {
		t.Errorf("index/sp not cleared: 0x%04x, %d", vm.index, vm.sp)
	}
	for i, v := range vm.registers {
		if v != 0 {
			t.Errorf("v%x not cleared: 0x%02x", i, v)
		}
	}
	if vm.delayTimer != 0 || vm.soundTimer != 0 {
		t.Errorf("timers not cleared: %d, %d", vm.delayTimer, vm.soundTimer)
	}
	for i, v := range vm.keypad {
		if v != 0 {
			t.Errorf("key %x not cleared", i)
		}
	}
	if vm.memory[int(ProgramStart)] != 0 {
		t.Error("program area not cleared")
	}
	if vm.memory[0] != 0xF0 || vm.memory[79] != 0x80 {
		t.Error("font not re-embedded")
	}
	if !vm.ConsumeDrawFlag() {
		t.Error("reset should mark the display dirty")
	}
}

// Reset followed by Load always yields PC at ProgramStart, regardless of
// prior execution history.
func TestResetLoadAfterHistory(t *testing.T) {
	vm := progVM(t, 0x2206, 0x0000, 0x0000, 0x6105)
	step(t, vm, 2)
	if vm.pc == ProgramStart {
		t.Fatal("machine did not run")
	}

	vm.Reset()
	if err := vm.Load([]byte{0x61, 0x05}); err != nil {
		t.Fatal(err)
	}
	if vm.pc != ProgramStart {
		t.Errorf("pc: got 0x%04x, want 0x%04x", vm.pc, ProgramStart)
	}
}

func TestTickTimers(t *testing.T) {
	vm := New()
	vm.delayTimer = 3
	vm.soundTimer = 1

	vm.TickTimers()
	if vm.delayTimer != 2 || vm.soundTimer != 0 {
		t.Fatalf("after 1 tick: dt=%d st=%d", vm.delayTimer, vm.soundTimer)
	}

	vm.TickTimers()
	vm.TickTimers()
	if vm.delayTimer != 0 {
		t.Fatalf("after 3 ticks: dt=%d", vm.delayTimer)
	}

	// Never decremented below zero.
	vm.TickTimers()
	if vm.delayTimer != 0 || vm.soundTimer != 0 {
		t.Errorf("timers went past zero: dt=%d st=%d", vm.delayTimer, vm.soundTimer)
	}
}

// Delay timer set to 3 via FX15 reaches 0 after three timer ticks and stays
// there.
func TestDelayTimerScenario(t *testing.T) {
	vm := progVM(t, 0x6303, 0xF315)
	step(t, vm, 2)

	if vm.DelayTimer() != 3 {
		t.Fatalf("delay timer: got %d, want 3", vm.DelayTimer())
	}
	for i := 0; i < 3; i++ {
		vm.TickTimers()
	}
	if vm.DelayTimer() != 0 {
		t.Fatalf("delay timer after 3 ticks: got %d", vm.DelayTimer())
	}
	vm.TickTimers()
	if vm.DelayTimer() != 0 {
		t.Errorf("delay timer went negative: %d", vm.DelayTimer())
	}
}

func TestStepNeverTicksTimers(t *testing.T) {
	vm := progVM(t, 0x6305, 0xF315, 0x0000, 0x0000, 0x0000)
	step(t, vm, 5)

	if vm.delayTimer != 5 {
		t.Errorf("delay timer: got %d, want 5 (Step must not tick timers)", vm.delayTimer)
	}
}

func TestSoundActive(t *testing.T) {
	vm := progVM(t, 0x6102, 0xF118)
	step(t, vm, 2)

	if !vm.SoundActive() {
		t.Fatal("sound timer set, SoundActive() = false")
	}
	vm.TickTimers()
	vm.TickTimers()
	if vm.SoundActive() {
		t.Error("sound timer expired, SoundActive() = true")
	}
}

func TestSetKey(t *testing.T) {
	vm := New()

	vm.SetKey(KeyB, true)
	if vm.keypad[0xB] != 1 {
		t.Error("key B not pressed")
	}
	vm.SetKey(KeyB, false)
	if vm.keypad[0xB] != 0 {
		t.Error("key B not released")
	}
}

func TestAwaitKey(t *testing.T) {
	vm := progVM(t, 0xF50A)

	// PC holds in place while no key is pressed.
	step(t, vm, 4)
	if vm.pc != ProgramStart {
		t.Fatalf("pc moved while awaiting key: 0x%04x", vm.pc)
	}
	if !vm.AwaitingKey() {
		t.Fatal("AwaitingKey() = false during wait")
	}

	vm.SetKey(Key7, true)
	step(t, vm, 1)

	if vm.registers[5] != 0x7 {
		t.Errorf("v5: got 0x%02x, want 0x07", vm.registers[5])
	}
	if vm.pc != ProgramStart+InstructionSize {
		t.Errorf("pc: got 0x%04x, want 0x%04x", vm.pc, ProgramStart+InstructionSize)
	}
	if vm.AwaitingKey() {
		t.Error("AwaitingKey() = true after resolution")
	}
}

func TestAwaitKeyAlreadyHeld(t *testing.T) {
	vm := progVM(t, 0xF10A)
	vm.SetKey(Key3, true)

	// A key already held resolves the wait in the same cycle.
	step(t, vm, 1)

	if vm.registers[1] != 0x3 {
		t.Errorf("v1: got 0x%02x, want 0x03", vm.registers[1])
	}
	if vm.pc != ProgramStart+InstructionSize {
		t.Errorf("pc: got 0x%04x, want 0x%04x", vm.pc, ProgramStart+InstructionSize)
	}
}

func TestAwaitKeyLowestWins(t *testing.T) {
	vm := progVM(t, 0xF00A)
	step(t, vm, 1)

	vm.SetKey(Key9, true)
	vm.SetKey(Key3, true)
	step(t, vm, 1)

	if vm.registers[0] != 0x3 {
		t.Errorf("v0: got 0x%02x, want 0x03", vm.registers[0])
	}
}

func TestReadWordWraps(t *testing.T) {
	vm := New()
	vm.memory[0xFFF] = 0xAB
	vm.memory[0x000] = 0xF0 // font byte

	if got := vm.ReadWord(0xFFF); got != 0xABF0 {
		t.Errorf("ReadWord(0xFFF): got 0x%04x, want 0xabf0", got)
	}
}

// A ROM of 00E0 then 1200 clears the display and loops forever with PC
// returning to ProgramStart on every pass.
func TestClearAndLoopScenario(t *testing.T) {
	vm := progVM(t, 0x00E0, 0x1200)

	for i := 0; i < 10; i++ {
		step(t, vm, 2)
		if vm.pc != ProgramStart {
			t.Fatalf("pass %d: pc = 0x%04x, want 0x%04x", i, vm.pc, ProgramStart)
		}
		for j, px := range vm.Display() {
			if px != 0 {
				t.Fatalf("pass %d: pixel %d set", i, j)
			}
		}
	}
}

// A jump to its own address pins PC there indefinitely without error.
func TestSelfJump(t *testing.T) {
	vm := progVM(t, 0x1200)

	for i := 0; i < 20; i++ {
		step(t, vm, 1)
		if vm.pc != ProgramStart {
			t.Fatalf("step %d: pc = 0x%04x, want 0x%04x", i, vm.pc, ProgramStart)
		}
	}
}

// 6A05 then 7A10 leaves VA = 0x15 and VF untouched.
func TestSetAddScenario(t *testing.T) {
	vm := progVM(t, 0x6A05, 0x7A10)
	vm.registers[0xF] = 9

	step(t, vm, 2)

	if vm.registers[0xA] != 0x15 {
		t.Errorf("va: got 0x%02x, want 0x15", vm.registers[0xA])
	}
	if vm.registers[0xF] != 9 {
		t.Errorf("vf changed: got 0x%02x, want 0x09", vm.registers[0xF])
	}
}

func TestConsumeDrawFlag(t *testing.T) {
	vm := progVM(t, 0x00E0)

	if !vm.ConsumeDrawFlag() {
		t.Fatal("fresh machine should report a dirty display")
	}
	if vm.ConsumeDrawFlag() {
		t.Fatal("draw flag did not clear")
	}

	step(t, vm, 1)
	if !vm.ConsumeDrawFlag() {
		t.Error("cls should mark the display dirty")
	}
}

func TestManyMachines(t *testing.T) {
	a := progVM(t, 0x6101)
	b := progVM(t, 0x6102)

	step(t, a, 1)
	step(t, b, 1)

	if a.registers[1] != 1 || b.registers[1] != 2 {
		t.Errorf("machines share state: %d, %d", a.registers[1], b.registers[1])
	}
}
