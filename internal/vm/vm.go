package vm

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
)

const (
	MemorySize    = 4096
	StackSize     = 16
	RegisterCount = 16
	ScreenWidth   = 64
	ScreenHeight  = 32
	KeyCount      = 16

	ProgramStart    = uint16(0x200)
	InstructionSize = 2

	fontGlyphSize = 5
)

type VM struct {
	memory    []uint8 // Memory (4k)
	registers []uint8 // V registers (V0-VF)

	stack []uint16 // Stack
	sp    uint16   // Stack pointer

	pc    uint16 // Program counter
	index uint16 // Index register

	delayTimer uint8 // Delay timer
	soundTimer uint8 // Sound timer

	gfx      []uint8 // Graphics buffer
	keypad   []uint8 // Keypad
	drawFlag bool    // Indicates a draw has occurred

	awaitingKey bool  // A key wait is in progress
	awaitReg    uint8 // Register that receives the awaited key

	randByte func() uint8 // Random source, swappable in tests
}

// New creates a machine in its power-on state, ready for Load. Each VM owns
// all of its state, so any number of machines can run in one process.
func New() *VM {
	vm := &VM{
		memory:    make([]uint8, MemorySize),
		registers: make([]uint8, RegisterCount),
		stack:     make([]uint16, StackSize),
		gfx:       make([]uint8, ScreenWidth*ScreenHeight),
		keypad:    make([]uint8, KeyCount),
		randByte:  defaultRandByte,
	}
	vm.Reset()
	return vm
}

func defaultRandByte() uint8 {
	return uint8(rand.IntN(256))
}

type Key uint8

const (
	Key0 = Key(iota)
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
)

// Reset returns the machine to its power-on state: font embedded at 0x000,
// PC at ProgramStart, everything else zeroed. Idempotent, callable at any
// time; a program must be loaded again afterwards.
func (vm *VM) Reset() {
	vm.pc = ProgramStart
	vm.index = 0
	vm.sp = 0

	// Clear the display
	for i := range vm.gfx {
		vm.gfx[i] = 0
	}
	vm.drawFlag = true

	// Clear the stack, keypad, and V registers
	slog.Debug("clear stack", "n", len(vm.stack))
	for i := range vm.stack {
		vm.stack[i] = 0
	}

	slog.Debug("clear keypad", "n", len(vm.keypad))
	for i := range vm.keypad {
		vm.keypad[i] = 0
	}
	vm.awaitingKey = false
	vm.awaitReg = 0

	slog.Debug("clear registers", "n", len(vm.registers))
	for i := range vm.registers {
		vm.registers[i] = 0
	}

	// Clear memory
	slog.Debug("clear memory", "n", len(vm.memory))
	for i := range vm.memory {
		vm.memory[i] = 0
	}

	// Load font set into memory
	slog.Debug("load font", "at", fmt.Sprintf("0x%04x", 0), "n", len(chip8Font))
	copy(vm.memory[0:], chip8Font)

	// Reset timers
	vm.delayTimer = 0
	vm.soundTimer = 0
}

// Load copies a ROM image into memory starting at ProgramStart. A ROM larger
// than the program area fails with ErrProgramTooLarge and nothing is copied;
// loads are never silently truncated.
func (vm *VM) Load(program []byte) error {
	if len(program) > MemorySize-int(ProgramStart) {
		return fmt.Errorf("%w: %d bytes, program area holds %d",
			ErrProgramTooLarge, len(program), MemorySize-int(ProgramStart))
	}

	slog.Info("load program", "at", fmt.Sprintf("0x%04x", ProgramStart), "n", len(program))
	copy(vm.memory[ProgramStart:], program)
	return nil
}

// Step runs one fetch-decode-execute cycle. While the machine is awaiting a
// key press it only re-polls the keypad and PC holds in place.
func (vm *VM) Step() error {
	if vm.awaitingKey {
		vm.pollAwaitedKey()
		return nil
	}

	return vm.executeOpcode(vm.fetchOpcode())
}

// TickTimers decrements the delay and sound timers, stopping at zero. The
// host driver calls it once per rendered frame, independent of Step cadence.
func (vm *VM) TickTimers() {
	if vm.delayTimer > 0 {
		vm.delayTimer--
	}

	if vm.soundTimer > 0 {
		vm.soundTimer--
	}
}

// SetKey records the pressed state of a keypad key. Input front ends call it
// as host key events arrive.
func (vm *VM) SetKey(key Key, pressed bool) {
	v := uint8(0)
	if pressed {
		v = 1
	}
	vm.keypad[int(key)&0x0F] = v
}

func (vm *VM) pollAwaitedKey() {
	for i := range vm.keypad {
		if vm.keypad[i] != 0 {
			vm.registers[vm.awaitReg] = uint8(i)
			vm.awaitingKey = false
			vm.pc += InstructionSize
			return
		}
	}
}

// Display returns the 64x32 pixel buffer, row-major, one byte per pixel
// (zero means off). The slice is a live view into machine state; treat it
// as read-only.
func (vm *VM) Display() []uint8 {
	return vm.gfx
}

// ConsumeDrawFlag reports whether the display changed since the last call,
// clearing the flag.
func (vm *VM) ConsumeDrawFlag() bool {
	df := vm.drawFlag
	vm.drawFlag = false
	return df
}

// SoundActive reports whether the sound timer is running. Front ends beep
// while it returns true.
func (vm *VM) SoundActive() bool {
	return vm.soundTimer > 0
}

func (vm *VM) PC() uint16 {
	return vm.pc
}

func (vm *VM) Index() uint16 {
	return vm.index
}

// Register returns the value of Vn for n in 0..15.
func (vm *VM) Register(n int) uint8 {
	return vm.registers[n&0x0F]
}

func (vm *VM) DelayTimer() uint8 {
	return vm.delayTimer
}

func (vm *VM) SoundTimer() uint8 {
	return vm.soundTimer
}

func (vm *VM) StackDepth() int {
	return int(vm.sp)
}

func (vm *VM) AwaitingKey() bool {
	return vm.awaitingKey
}

// ReadWord returns the big-endian 16-bit word at addr, wrapping at the 4k
// boundary.
func (vm *VM) ReadWord(addr uint16) uint16 {
	hi := vm.memory[addr&0x0FFF]
	lo := vm.memory[(addr+1)&0x0FFF]

	return uint16(hi)<<8 | uint16(lo) // Op code is two bytes
}

func (vm *VM) fetchOpcode() uint16 {
	return vm.ReadWord(vm.pc)
}

// Hexadecimal digit sprites, 5 bytes per glyph, embedded at 0x000 by Reset.
var chip8Font = []uint8{
	0xF0, 0x90, 0x90, 0x90, 0xF0, // 0
	0x20, 0x60, 0x20, 0x20, 0x70, // 1
	0xF0, 0x10, 0xF0, 0x80, 0xF0, // 2
	0xF0, 0x10, 0xF0, 0x10, 0xF0, // 3
	0x90, 0x90, 0xF0, 0x10, 0x10, // 4
	0xF0, 0x80, 0xF0, 0x10, 0xF0, // 5
	0xF0, 0x80, 0xF0, 0x90, 0xF0, // 6
	0xF0, 0x10, 0x20, 0x40, 0x40, // 7
	0xF0, 0x90, 0xF0, 0x90, 0xF0, // 8
	0xF0, 0x90, 0xF0, 0x10, 0xF0, // 9
	0xF0, 0x90, 0xF0, 0x90, 0x90, // A
	0xE0, 0x90, 0xE0, 0x90, 0xE0, // B
	0xF0, 0x80, 0x80, 0x80, 0xF0, // C
	0xE0, 0x90, 0x90, 0x90, 0xE0, // D
	0xF0, 0x80, 0xF0, 0x80, 0xF0, // E
	0xF0, 0x80, 0xF0, 0x80, 0x80, // F
}
