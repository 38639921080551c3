// Package disasm renders CHIP-8 ROM images as assembly listings.
//
// Instruction words are matched against the CHIP-8 opcode tables from
// retrogolib and printed Cowgod-style: lowercase mnemonics, hex
// parameters. Words that encode no instruction become .word directives
// so the listing stays byte-exact with the ROM.
package disasm

import (
	"fmt"
	"io"

	"github.com/retroenv/retrogolib/arch/cpu/chip8"
)

// ProgramStart is the address programs are loaded at. Listing lines are
// labeled with the addresses the bytes will have once loaded, not their
// file offsets.
const ProgramStart = 0x200

// Line is a single row of a disassembly listing.
type Line struct {
	Address uint16 // memory address once the ROM is loaded
	Data    []byte // the raw bytes, two per instruction
	Code    string // formatted assembly
}

// Decode formats a single instruction word.
func Decode(w uint16) string {
	ins := lookup(w)
	if ins == nil {
		return fmt.Sprintf(".word $%04X", w)
	}
	if params := formatParams(ins.Name, w); params != "" {
		return fmt.Sprintf("%s %s", ins.Name, params)
	}
	return ins.Name
}

// Listing disassembles a whole ROM image. Every byte pair forms one
// instruction word; an odd trailing byte becomes a .byte directive.
func Listing(rom []byte) []Line {
	lines := make([]Line, 0, (len(rom)+1)/2)
	for i := 0; i+1 < len(rom); i += 2 {
		w := uint16(rom[i])<<8 | uint16(rom[i+1])
		lines = append(lines, Line{
			Address: ProgramStart + uint16(i),
			Data:    rom[i : i+2],
			Code:    Decode(w),
		})
	}
	if len(rom)%2 != 0 {
		last := len(rom) - 1
		lines = append(lines, Line{
			Address: ProgramStart + uint16(last),
			Data:    rom[last:],
			Code:    fmt.Sprintf(".byte $%02X", rom[last]),
		})
	}
	return lines
}

// Fprint writes the listing for a ROM image to w.
func Fprint(w io.Writer, rom []byte) error {
	for _, line := range Listing(rom) {
		_, err := fmt.Fprintf(w, "0x%03X: %-4X  %s\n", line.Address, line.Data, line.Code)
		if err != nil {
			return err
		}
	}
	return nil
}

// lookup finds the instruction a word encodes, or nil when it encodes none.
func lookup(w uint16) *chip8.Instruction {
	firstNibble := (w & 0xF000) >> 12
	for _, op := range chip8.Opcodes[int(firstNibble)] {
		if op.Info.Mask&w == op.Info.Value {
			return op.Instruction
		}
	}
	return nil
}

// formatParams formats the parameter list for an instruction word.
// Instructions without parameters return "".
func formatParams(name string, w uint16) string {
	x := (w & 0x0F00) >> 8
	y := (w & 0x00F0) >> 4

	switch name {
	case chip8.Jp.Name:
		if w&0xF000 == 0xB000 {
			return fmt.Sprintf("V0, $%03X", w&0x0FFF)
		}
		return fmt.Sprintf("$%03X", w&0x0FFF)
	case chip8.Call.Name:
		return fmt.Sprintf("$%03X", w&0x0FFF)
	case chip8.Se.Name, chip8.Sne.Name:
		if w&0xF000 == 0x5000 || w&0xF000 == 0x9000 {
			return fmt.Sprintf("V%X, V%X", x, y)
		}
		return fmt.Sprintf("V%X, $%02X", x, w&0x00FF)
	case chip8.Ld.Name:
		return formatLoadParams(w, x, y)
	case chip8.Add.Name:
		switch w & 0xF000 {
		case 0x7000:
			return fmt.Sprintf("V%X, $%02X", x, w&0x00FF)
		case 0xF000:
			return fmt.Sprintf("I, V%X", x)
		}
		return fmt.Sprintf("V%X, V%X", x, y)
	case chip8.Or.Name, chip8.And.Name, chip8.Xor.Name, chip8.Sub.Name, chip8.Subn.Name:
		return fmt.Sprintf("V%X, V%X", x, y)
	case chip8.Shr.Name, chip8.Shl.Name, chip8.Skp.Name, chip8.Sknp.Name:
		return fmt.Sprintf("V%X", x)
	case chip8.Rnd.Name:
		return fmt.Sprintf("V%X, $%02X", x, w&0x00FF)
	case chip8.Drw.Name:
		return fmt.Sprintf("V%X, V%X, $%X", x, y, w&0x000F)
	}
	return ""
}

// formatLoadParams formats the many ld variants. The F-series forms use
// the Cowgod register aliases: DT, ST, K, F, B and [I].
func formatLoadParams(w, x, y uint16) string {
	switch w & 0xF000 {
	case 0x6000:
		return fmt.Sprintf("V%X, $%02X", x, w&0x00FF)
	case 0x8000:
		return fmt.Sprintf("V%X, V%X", x, y)
	case 0xA000:
		return fmt.Sprintf("I, $%03X", w&0x0FFF)
	case 0xF000:
		switch w & 0x00FF {
		case 0x07:
			return fmt.Sprintf("V%X, DT", x)
		case 0x0A:
			return fmt.Sprintf("V%X, K", x)
		case 0x15:
			return fmt.Sprintf("DT, V%X", x)
		case 0x18:
			return fmt.Sprintf("ST, V%X", x)
		case 0x29:
			return fmt.Sprintf("F, V%X", x)
		case 0x33:
			return fmt.Sprintf("B, V%X", x)
		case 0x55:
			return fmt.Sprintf("[I], V%X", x)
		case 0x65:
			return fmt.Sprintf("V%X, [I]", x)
		}
	}
	return ""
}
