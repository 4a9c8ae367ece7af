package framesize

import (
	"github.com/rs/zerolog"
)

// Config controls how prologues are extracted and evaluated.
type Config struct {
	// StackPointer is the index of the global holding the stack pointer.
	// Default: 0.
	StackPointer uint32

	// PrologueWrite selects which write to the stack pointer ends the
	// prologue. Default: 1 (the first write).
	PrologueWrite int

	// TrailingWrites is how many further writes to the stack pointer a body
	// may contain after the prologue. A body with more is rejected with
	// ErrMultipleStackPointerWrites. Default: 0. Use 1 for toolchains that
	// restore the stack pointer in the epilogue.
	TrailingWrites int

	// Parallelism bounds how many function bodies are evaluated at once.
	// Values below 2 evaluate sequentially. Default: 1.
	Parallelism int

	// NativeWindow is the number of leading machine instructions inspected
	// per ELF symbol. Default: 16.
	NativeWindow int

	// Logger receives one debug event per analyzed function.
	// Default: zerolog.Nop().
	Logger zerolog.Logger
}

// DefaultConfig returns a Config with the defaults documented on its fields.
func DefaultConfig() Config {
	return Config{
		PrologueWrite: 1,
		Parallelism:   1,
		NativeWindow:  16,
		Logger:        zerolog.Nop(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PrologueWrite < 1 {
		c.PrologueWrite = d.PrologueWrite
	}
	if c.TrailingWrites < 0 {
		c.TrailingWrites = 0
	}
	if c.Parallelism < 1 {
		c.Parallelism = d.Parallelism
	}
	if c.NativeWindow < 1 {
		c.NativeWindow = d.NativeWindow
	}
	return c
}
