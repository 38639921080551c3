package vm

import (
	"errors"
	"fmt"
)

// ErrProgramTooLarge is returned by Load when a ROM does not fit into the
// program area. Oversized programs are rejected outright, never truncated.
var ErrProgramTooLarge = errors.New("program too large")

// FaultCode classifies the ways a program can put the machine into an
// unrecoverable state.
type FaultCode int

const (
	FaultUnknownOpcode FaultCode = iota
	FaultStackOverflow
	FaultStackUnderflow
)

func (c FaultCode) String() string {
	switch c {
	case FaultUnknownOpcode:
		return "unknown opcode"
	case FaultStackOverflow:
		return "stack overflow"
	case FaultStackUnderflow:
		return "stack underflow"
	}
	return fmt.Sprintf("fault %d", int(c))
}

// Fault is the error returned by Step when execution faults. Machine state
// is left as it was when the faulting instruction was fetched, so a front
// end can still display or dump it.
type Fault struct {
	PC     uint16
	Opcode uint16
	Code   FaultCode
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%v executing 0x%04x at 0x%04x", f.Code, f.Opcode, f.PC)
}
