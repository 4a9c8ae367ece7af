package framesize

import (
	"fmt"

	"github.com/tetratelabs/wabin/wasm"
)

// Op classifies a decoded instruction. Only the operators the prologue
// evaluator understands get their own kind; everything else is OpOther.
type Op uint8

const (
	OpOther Op = iota
	OpI32Const
	OpI64Const
	OpLocalGet
	OpLocalSet
	OpLocalTee
	OpGlobalGet
	OpGlobalSet
	OpI32Sub
	OpI64Sub
)

// Instruction is one decoded operator of a function body.
type Instruction struct {
	Op Op
	// Opcode is the raw opcode byte. For prefixed instructions (0xfc, 0xfd,
	// 0xfe) SubOpcode holds the second-level opcode.
	Opcode    wasm.Opcode
	SubOpcode uint32
	// Index is the local or global index of OpLocal* and OpGlobal*.
	Index uint32
	// Value is the immediate of OpI32Const and OpI64Const.
	Value int64
	// Offset is the byte offset of the instruction within the body.
	Offset int
}

func (i Instruction) String() string {
	switch i.Op {
	case OpI32Const, OpI64Const:
		return fmt.Sprintf("%s %d", wasm.InstructionName(i.Opcode), i.Value)
	case OpLocalGet, OpLocalSet, OpLocalTee, OpGlobalGet, OpGlobalSet:
		return fmt.Sprintf("%s %d", wasm.InstructionName(i.Opcode), i.Index)
	}
	var name string
	switch i.Opcode {
	case wasm.OpcodeMiscPrefix:
		if i.SubOpcode <= 0xff {
			name = wasm.MiscInstructionName(wasm.OpcodeMisc(i.SubOpcode))
		}
	case wasm.OpcodeVecPrefix:
		if i.SubOpcode <= 0xff {
			name = wasm.VectorInstructionName(wasm.OpcodeVec(i.SubOpcode))
		}
	case opcodeAtomicPrefix:
		return fmt.Sprintf("atomic 0x%02x", i.SubOpcode)
	default:
		name = wasm.InstructionName(i.Opcode)
	}
	if name != "" {
		return name
	}
	if i.Opcode == wasm.OpcodeMiscPrefix || i.Opcode == wasm.OpcodeVecPrefix {
		return fmt.Sprintf("opcode 0x%02x 0x%x", i.Opcode, i.SubOpcode)
	}
	return fmt.Sprintf("opcode 0x%02x", i.Opcode)
}

// IsStackPointerWrite reports whether i writes the given global.
func (i Instruction) IsStackPointerWrite(sp uint32) bool {
	return i.Op == OpGlobalSet && i.Index == sp
}
