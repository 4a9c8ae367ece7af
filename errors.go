package framesize

import (
	"errors"
	"fmt"
)

// Errors fatal to a whole analysis.
var (
	ErrModuleDecode        = errors.New("invalid module")
	ErrInvalidStackPointer = errors.New("stack pointer global out of range")
)

// Per-function analysis failures. They are stored as the function's
// FrameResult and only surface when the function is requested.
var (
	ErrNoStackPointerWrite        = errors.New("no set operation for stack pointer found")
	ErrMultipleStackPointerWrites = errors.New("too many set operations for stack pointer found")
	ErrUnsupportedInstruction     = errors.New("unsupported prologue instruction")
	ErrUnsupportedExpression      = errors.New("unsupported expression operation")
	ErrMalformedPrologue          = errors.New("operand stack underflow in prologue")
	ErrMalformedBody              = errors.New("malformed function body")
	ErrStackPointerUnrecognized   = errors.New("stack pointer is not changed or not recognized")
)

// Per-line lookup failures.
var (
	ErrNameNotFound          = errors.New("not found")
	ErrNotLocallyDefined     = errors.New("function is imported")
	ErrDanglingNameReference = errors.New("name section contains non-existing func-idx")
)

// InstructionError ties a prologue failure to the instruction that caused it.
type InstructionError struct {
	Instr Instruction
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("%v: %s at offset %d", e.Err, e.Instr, e.Instr.Offset)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}
