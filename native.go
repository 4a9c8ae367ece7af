package framesize

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

// Image holds the per-symbol frame sizes of an ELF binary.
type Image struct {
	Arch Arch

	funcs  []Function
	byName map[string]int
}

// DetectFrame estimates the stack allocated by the prologue at the start of
// code, inspecting at most window instructions. arch selects the
// architecture-specific detection logic.
// This function performs no I/O and works with any binary format.
func DetectFrame(code []byte, arch Arch, window int) (FrameResult, error) {
	if window < 1 {
		window = DefaultConfig().NativeWindow
	}
	switch arch {
	case ArchAMD64:
		return detectFrameAMD64(code, window), nil
	case ArchARM64:
		return detectFrameARM64(code, window), nil
	default:
		return FrameResult{}, fmt.Errorf("unsupported architecture: %s", arch)
	}
}

func detectFrameAMD64(code []byte, window int) FrameResult {
	var (
		res      FrameResult
		prevInsn *x86asm.Inst
		pushes   uint64
		classic  bool
	)

	offset := 0
scan:
	for n := 0; n < window && offset < len(code); n++ {
		// Skip ENDBR64 (f3 0f 1e fa) and ENDBR32 (f3 0f 1e fb) which
		// golang.org/x/arch/x86/x86asm does not recognise.
		if offset+4 <= len(code) &&
			code[offset] == 0xf3 && code[offset+1] == 0x0f &&
			code[offset+2] == 0x1e && (code[offset+3] == 0xfa || code[offset+3] == 0xfb) {
			offset += 4
			continue
		}

		inst, err := x86asm.Decode(code[offset:], 64)
		if err != nil {
			break
		}
		offset += inst.Len

		// Frame pointer setup - push rbp; mov rbp, rsp
		if prevInsn != nil &&
			prevInsn.Op == x86asm.PUSH && prevInsn.Args[0] == x86asm.RBP &&
			inst.Op == x86asm.MOV && inst.Args[0] == x86asm.RBP && inst.Args[1] == x86asm.RSP {
			classic = true
		}

		switch inst.Op {
		case x86asm.PUSH:
			if _, ok := inst.Args[0].(x86asm.Reg); ok {
				pushes++
			}

		case x86asm.SUB:
			// sub rsp, imm
			if inst.Args[0] == x86asm.RSP {
				if imm, ok := inst.Args[1].(x86asm.Imm); ok && imm > 0 {
					res.Size = pushes*8 + uint64(imm)
					res.Type = PrologueNoFramePointer
					if classic {
						res.Type = PrologueClassic
					}
					return res
				}
			}

		case x86asm.LEA:
			// lea rsp, [rsp-imm]
			if inst.Args[0] == x86asm.RSP {
				if mem, ok := inst.Args[1].(x86asm.Mem); ok && mem.Base == x86asm.RSP && mem.Index == 0 && mem.Disp < 0 {
					res.Size = pushes*8 + uint64(-mem.Disp)
					res.Type = PrologueLEABased
					return res
				}
			}

		case x86asm.CALL, x86asm.JMP, x86asm.RET:
			break scan
		}

		prevInsn = &inst
	}

	if pushes == 0 {
		res.Err = ErrNoStackPointerWrite
		return res
	}
	res.Size = pushes * 8
	res.Type = ProloguePushOnly
	if classic {
		res.Type = PrologueClassic
	}
	return res
}

func detectFrameARM64(code []byte, window int) FrameResult {
	const insnLen = 4

	var (
		res      FrameResult
		prevInsn *arm64asm.Inst
		found    bool
	)

scan:
	for offset := 0; offset+insnLen <= len(code) && offset/insnLen < window; offset += insnLen {
		inst, err := arm64asm.Decode(code[offset : offset+insnLen])
		if err != nil {
			break
		}

		switch inst.Op {
		case arm64asm.STP:
			// stp xA, xB, [sp, #-N]!
			if n, ok := preIndexSP(inst.Args[2]); ok {
				res.Size += n
				found = true
				if res.Type == "" {
					res.Type = PrologueSTPOnly
				}
			}

		case arm64asm.STR:
			// str x30, [sp, #-N]! (Go-style prologue)
			if n, ok := preIndexSP(inst.Args[1]); ok {
				res.Size += n
				found = true
				if r0, ok := inst.Args[0].(arm64asm.Reg); ok && r0 == arm64asm.X30 && res.Type == "" {
					res.Type = PrologueSTRLRPreIndex
				}
			}

		case arm64asm.SUB:
			// sub sp, sp, #N
			dst, ok0 := inst.Args[0].(arm64asm.RegSP)
			src, ok1 := inst.Args[1].(arm64asm.RegSP)
			if ok0 && ok1 && dst == arm64asm.RegSP(arm64asm.SP) && src == arm64asm.RegSP(arm64asm.SP) {
				if n, ok := immARM64(inst.Args[2]); ok && n > 0 {
					res.Size += n
					found = true
					if res.Type == "" {
						res.Type = PrologueSubSP
					}
				}
			}

		case arm64asm.MOV:
			// stp x29, x30, [sp, #-N]! ; mov x29, sp
			if prevInsn != nil && isSTPx29x30PreIndex(*prevInsn) && isMovX29SP(inst) {
				res.Type = PrologueSTPFramePair
			}

		case arm64asm.B:
			// b.cond falls through into the rest of the prologue
			if _, ok := inst.Args[0].(arm64asm.Cond); !ok {
				break scan
			}

		case arm64asm.BL, arm64asm.BR, arm64asm.BLR, arm64asm.RET:
			break scan
		}

		prevInsn = &inst
	}

	if !found {
		res.Err = ErrNoStackPointerWrite
	}
	return res
}

// isSTPx29x30PreIndex checks if an ARM64 instruction is stp x29, x30, [sp, #-N]!
func isSTPx29x30PreIndex(inst arm64asm.Inst) bool {
	if inst.Op != arm64asm.STP {
		return false
	}
	r0, ok0 := inst.Args[0].(arm64asm.Reg)
	r1, ok1 := inst.Args[1].(arm64asm.Reg)
	mem, ok2 := inst.Args[2].(arm64asm.MemImmediate)
	return ok0 && ok1 && ok2 &&
		r0 == arm64asm.X29 && r1 == arm64asm.X30 &&
		mem.Mode == arm64asm.AddrPreIndex
}

// isMovX29SP checks if an ARM64 instruction is mov x29, sp.
// The disassembler decodes this as MOV with both args as RegSP.
func isMovX29SP(inst arm64asm.Inst) bool {
	if inst.Op != arm64asm.MOV {
		return false
	}
	r0, ok0 := inst.Args[0].(arm64asm.RegSP)
	r1, ok1 := inst.Args[1].(arm64asm.RegSP)
	return ok0 && ok1 && r0 == arm64asm.RegSP(arm64asm.X29) && r1 == arm64asm.RegSP(arm64asm.SP)
}

// preIndexSP returns N for a [sp, #-N]! operand. The offset is not exported
// by arm64asm, so it is read back from the operand's text form, [SP,#-16]!.
func preIndexSP(arg arm64asm.Arg) (uint64, bool) {
	mem, ok := arg.(arm64asm.MemImmediate)
	if !ok || mem.Mode != arm64asm.AddrPreIndex || mem.Base != arm64asm.RegSP(arm64asm.SP) {
		return 0, false
	}
	s := mem.String()
	i, j := strings.IndexByte(s, '#'), strings.IndexByte(s, ']')
	if i < 0 || j < i {
		return 0, false
	}
	v, err := strconv.ParseInt(s[i+1:j], 10, 64)
	if err != nil || v >= 0 {
		return 0, false
	}
	return uint64(-v), true
}

// immARM64 parses an add/sub immediate such as #0x20 or #0x1, LSL #12.
func immARM64(arg arm64asm.Arg) (uint64, bool) {
	if arg == nil {
		return 0, false
	}
	s := strings.TrimPrefix(arg.String(), "#")
	var shift uint64
	if i := strings.Index(s, ", LSL #"); i >= 0 {
		sh, err := strconv.ParseUint(s[i+len(", LSL #"):], 10, 8)
		if err != nil {
			return 0, false
		}
		shift, s = sh, s[:i]
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, false
	}
	return v << shift, true
}

// AnalyzeELF parses an ELF binary from the given reader and estimates the
// frame size of every function symbol. The architecture is inferred from the
// ELF header.
func AnalyzeELF(r io.ReaderAt, cfg Config) (*Image, error) {
	cfg = cfg.withDefaults()

	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF file: %w", err)
	}
	defer f.Close()

	img := &Image{byName: make(map[string]int)}
	switch f.Machine {
	case elf.EM_X86_64:
		img.Arch = ArchAMD64
	case elf.EM_AARCH64:
		img.Arch = ArchARM64
	default:
		return nil, fmt.Errorf("unsupported ELF machine: %s", f.Machine)
	}

	syms, err := f.Symbols()
	if err != nil {
		if errors.Is(err, elf.ErrNoSymbols) {
			return nil, fmt.Errorf("no symbol table found: %w", err)
		}
		return nil, fmt.Errorf("failed to read symbol table: %w", err)
	}

	sections := make(map[elf.SectionIndex][]byte)
	for i, sym := range syms {
		if elf.ST_TYPE(sym.Info) != elf.STT_FUNC || sym.Size == 0 {
			continue
		}
		if sym.Section == elf.SHN_UNDEF || int(sym.Section) >= len(f.Sections) {
			continue
		}
		sec := f.Sections[sym.Section]
		if sec.Flags&elf.SHF_EXECINSTR == 0 || sec.Type == elf.SHT_NOBITS {
			continue
		}

		code, ok := sections[sym.Section]
		if !ok {
			code, err = sec.Data()
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read %s section: %w", sec.Name, err)
			}
			sections[sym.Section] = code
		}

		// Symbol table indices start at 1; f.Symbols skips the null entry.
		fn := Function{Index: uint32(i + 1), Name: sym.Name}
		start := sym.Value - sec.Addr
		if sym.Value < sec.Addr || start > uint64(len(code)) || sym.Size > uint64(len(code))-start {
			fn.Err = fmt.Errorf("%w: symbol outside of %s", ErrMalformedBody, sec.Name)
		} else {
			res, _ := DetectFrame(code[start:start+sym.Size], img.Arch, cfg.NativeWindow)
			fn.Size, fn.Type, fn.Err = res.Size, res.Type, res.Err
		}

		cfg.Logger.Debug().
			Str("symbol", fn.Name).
			Uint64("size", fn.Size).
			Err(fn.Err).
			Msg("analyzed function")

		img.byName[fn.Name] = len(img.funcs)
		img.funcs = append(img.funcs, fn)
	}
	return img, nil
}

// Resolve returns the frame of the function symbol called name.
func (img *Image) Resolve(name string) (Frame, error) {
	i, ok := img.byName[name]
	if !ok {
		return Frame{}, fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}
	fn := img.funcs[i]
	frame := Frame{Index: fn.Index, Name: fn.Name}
	if fn.Err != nil {
		return frame, fn.Err
	}
	frame.Size, frame.Type = fn.Size, fn.Type
	return frame, nil
}

// Functions lists every function symbol in symbol table order.
func (img *Image) Functions() []Function {
	return append([]Function(nil), img.funcs...)
}
