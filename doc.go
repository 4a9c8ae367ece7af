// Package framesize estimates how many bytes of stack each function of a
// compiled binary allocates in its prologue, and sums those sizes over a
// captured call stack to obtain a worst-case stack footprint.
//
// For WebAssembly modules the stack lives in linear memory and is addressed
// through a mutable "stack pointer" global. [Analyze] decodes the module,
// replays every function prologue with a small symbolic evaluator and records
// by how much the stack pointer global is decremented. Anything outside the
// recognized idiom (global.get sp; i32.const N; i32.sub; global.set sp) is
// reported as an error rather than approximated.
//
// For ELF binaries [AnalyzeELF] applies the same idea to amd64 and arm64
// machine code, reading the frame size off the native prologue.
//
// Use [Aggregate] or [AggregateReader] to resolve a stack trace against
// either result.
package framesize
