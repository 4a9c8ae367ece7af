package framesize

import (
	"fmt"
)

// Arch represents a CPU architecture.
type Arch string

// Supported architectures.
const (
	ArchWasm  Arch = "wasm"
	ArchAMD64 Arch = "amd64"
	ArchARM64 Arch = "arm64"
)

// PrologueType represents the shape of the stack allocation found in a
// function prologue.
type PrologueType string

// Recognized WebAssembly prologue pattern: the stack pointer global is
// decremented by a constant.
const (
	PrologueGlobalSub PrologueType = "global-sub"
)

// Recognized x86_64 stack allocation patterns.
const (
	PrologueClassic        PrologueType = "classic"
	PrologueNoFramePointer PrologueType = "no-frame-pointer"
	ProloguePushOnly       PrologueType = "push-only"
	PrologueLEABased       PrologueType = "lea-based"
)

// Recognized ARM64 stack allocation patterns.
const (
	PrologueSTPFramePair  PrologueType = "stp-frame-pair"
	PrologueSTRLRPreIndex PrologueType = "str-lr-preindex"
	PrologueSubSP         PrologueType = "sub-sp"
	PrologueSTPOnly       PrologueType = "stp-only"
)

// Frame is the estimated stack frame of one function.
type Frame struct {
	// Index is the function index as used by the binary's own metadata:
	// the global function index for WebAssembly, the symbol table position
	// for ELF.
	Index uint32       `json:"index"`
	Name  string       `json:"name,omitempty"`
	Size  uint64       `json:"size"`
	Type  PrologueType `json:"type,omitempty"`
}

// FrameResult is the cached outcome of analyzing one function body.
type FrameResult struct {
	Size uint64
	Type PrologueType
	Err  error
}

// Function describes one analyzed function, successful or not.
type Function struct {
	Index uint32       `json:"index"`
	Name  string       `json:"name,omitempty"`
	Size  uint64       `json:"size"`
	Type  PrologueType `json:"type,omitempty"`
	Err   error        `json:"-"`
}

// FrameSource resolves a function name to its estimated frame.
type FrameSource interface {
	Resolve(name string) (Frame, error)
}

// ExtractPrologue returns the instructions of a function body up to and
// including the cfg.PrologueWrite-th write to the stack pointer global.
// hasMore reports whether further writes follow; more of them than
// cfg.TrailingWrites is an error.
func ExtractPrologue(instrs []Instruction, cfg Config) (prologue []Instruction, hasMore bool, err error) {
	cfg = cfg.withDefaults()
	sp := cfg.StackPointer

	writes := 0
	end := -1
	for i, inst := range instrs {
		if !inst.IsStackPointerWrite(sp) {
			continue
		}
		writes++
		if writes == cfg.PrologueWrite {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, false, ErrNoStackPointerWrite
	}

	trailing := 0
	for _, inst := range instrs[end+1:] {
		if inst.IsStackPointerWrite(sp) {
			trailing++
		}
	}
	if trailing > cfg.TrailingWrites {
		return nil, true, fmt.Errorf("%w: %d after the prologue", ErrMultipleStackPointerWrites, trailing)
	}
	return instrs[:end+1], trailing > 0, nil
}
