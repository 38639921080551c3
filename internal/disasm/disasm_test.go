package disasm

import (
	"bytes"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		opcode   uint16
		expected string
	}{
		{0x00E0, "cls"},
		{0x00EE, "ret"},
		{0x1234, "jp $234"},
		{0xB234, "jp V0, $234"},
		{0x2234, "call $234"},
		{0x3234, "se V2, $34"},
		{0x5230, "se V2, V3"},
		{0x4234, "sne V2, $34"},
		{0x9230, "sne V2, V3"},
		{0x6234, "ld V2, $34"},
		{0x8230, "ld V2, V3"},
		{0xA234, "ld I, $234"},
		{0x7234, "add V2, $34"},
		{0x8234, "add V2, V3"},
		{0x8231, "or V2, V3"},
		{0x8232, "and V2, V3"},
		{0x8233, "xor V2, V3"},
		{0x8235, "sub V2, V3"},
		{0x8237, "subn V2, V3"},
		{0x8236, "shr V2"},
		{0x823E, "shl V2"},
		{0xC234, "rnd V2, $34"},
		{0xD235, "drw V2, V3, $5"},
		{0xE29E, "skp V2"},
		{0xE2A1, "sknp V2"},
		{0xF207, "ld V2, DT"},
		{0xF20A, "ld V2, K"},
		{0xF215, "ld DT, V2"},
		{0xF218, "ld ST, V2"},
		{0xF21E, "add I, V2"},
		{0xF229, "ld F, V2"},
		{0xF233, "ld B, V2"},
		{0xF255, "ld [I], V2"},
		{0xF265, "ld V2, [I]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, Decode(tt.opcode))
		})
	}
}

func TestDecodeInvalidWords(t *testing.T) {
	tests := []struct {
		opcode   uint16
		expected string
	}{
		{0x8238, ".word $8238"},
		{0xE2FF, ".word $E2FF"},
		{0xF2FF, ".word $F2FF"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, Decode(tt.opcode))
		})
	}
}

func TestListing(t *testing.T) {
	rom := []byte{0x00, 0xE0, 0xA2, 0x34, 0x77}

	lines := Listing(rom)

	assert.Equal(t, 3, len(lines))
	assert.Equal(t, uint16(0x200), lines[0].Address)
	assert.Equal(t, "cls", lines[0].Code)
	assert.Equal(t, uint16(0x202), lines[1].Address)
	assert.Equal(t, "ld I, $234", lines[1].Code)
	assert.Equal(t, uint16(0x204), lines[2].Address)
	assert.Equal(t, ".byte $77", lines[2].Code)
}

func TestListingEmpty(t *testing.T) {
	assert.Equal(t, 0, len(Listing(nil)))
}

func TestFprint(t *testing.T) {
	rom := []byte{0x00, 0xE0, 0x12, 0x00}

	var buf bytes.Buffer
	err := Fprint(&buf, rom)

	assert.NoError(t, err)
	assert.Equal(t, "0x200: 00E0  cls\n0x202: 1200  jp $200\n", buf.String())
}
