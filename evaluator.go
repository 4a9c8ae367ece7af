package framesize

import (
	"fmt"
)

// EstimateFrameSize extracts the prologue of a function body and returns by
// how many bytes it decrements the stack pointer global.
func EstimateFrameSize(instrs []Instruction, cfg Config) (uint64, error) {
	cfg = cfg.withDefaults()
	prologue, _, err := ExtractPrologue(instrs, cfg)
	if err != nil {
		return 0, err
	}
	globals, err := Evaluate(prologue)
	if err != nil {
		return 0, err
	}
	return stackDecrement(globals, cfg.StackPointer)
}

// Evaluate replays instrs against an empty operand stack and returns the
// symbolic value of every global the instructions wrote.
func Evaluate(instrs []Instruction) (map[uint32]Expr, error) {
	var (
		stack   []Expr
		globals = make(map[uint32]Expr)
		locals  = make(map[uint32]Expr)
	)
	pop := func() (Expr, bool) {
		if len(stack) == 0 {
			return nil, false
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top, true
	}

	for _, inst := range instrs {
		switch inst.Op {
		case OpI32Const, OpI64Const:
			stack = append(stack, Immediate{Value: inst.Value})

		case OpGlobalGet:
			if v, ok := globals[inst.Index]; ok {
				stack = append(stack, v)
			} else {
				stack = append(stack, UnknownGlobal{Index: inst.Index})
			}

		case OpGlobalSet:
			v, ok := pop()
			if !ok {
				return nil, &InstructionError{Instr: inst, Err: ErrMalformedPrologue}
			}
			globals[inst.Index] = v

		case OpLocalGet:
			if v, ok := locals[inst.Index]; ok {
				stack = append(stack, v)
			} else {
				stack = append(stack, UnknownLocal{Index: inst.Index})
			}

		case OpLocalSet:
			v, ok := pop()
			if !ok {
				return nil, &InstructionError{Instr: inst, Err: ErrMalformedPrologue}
			}
			locals[inst.Index] = v

		case OpLocalTee:
			if len(stack) == 0 {
				return nil, &InstructionError{Instr: inst, Err: ErrMalformedPrologue}
			}
			locals[inst.Index] = stack[len(stack)-1]

		case OpI32Sub, OpI64Sub:
			rhs, ok := pop()
			if !ok {
				return nil, &InstructionError{Instr: inst, Err: ErrMalformedPrologue}
			}
			lhs, ok := pop()
			if !ok {
				return nil, &InstructionError{Instr: inst, Err: ErrMalformedPrologue}
			}
			v, err := Sub(lhs, rhs)
			if err != nil {
				return nil, &InstructionError{Instr: inst, Err: err}
			}
			stack = append(stack, v)

		default:
			return nil, &InstructionError{Instr: inst, Err: ErrUnsupportedInstruction}
		}
	}
	return globals, nil
}

// stackDecrement accepts only "sp = sp - N" with N >= 0.
func stackDecrement(globals map[uint32]Expr, sp uint32) (uint64, error) {
	v, ok := globals[sp]
	if !ok {
		return 0, ErrStackPointerUnrecognized
	}
	c, ok := v.(Computed)
	if !ok {
		return 0, fmt.Errorf("%w: global[%d] = %s", ErrStackPointerUnrecognized, sp, v)
	}
	base, ok := c.Base.(UnknownGlobal)
	if !ok || base.Index != sp || c.Minus < 0 {
		return 0, fmt.Errorf("%w: global[%d] = %s", ErrStackPointerUnrecognized, sp, v)
	}
	return uint64(c.Minus), nil
}
