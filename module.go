package framesize

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Module holds the per-function frame sizes of a WebAssembly module.
type Module struct {
	Space IndexSpace
	Names NameTable

	frames []FrameResult
}

// Analyze decodes a WebAssembly binary and estimates the frame size of every
// function it defines. Only a malformed module or an out of range stack
// pointer global fail the call; per-function failures are kept and returned
// when the function is resolved.
func Analyze(bin []byte, cfg Config) (*Module, error) {
	cfg = cfg.withDefaults()

	mod, err := decodeLayout(bin, cfg.Logger)
	if err != nil {
		return nil, err
	}

	if cfg.StackPointer >= mod.globals {
		return nil, fmt.Errorf("%w: global[%d] requested, module has %d", ErrInvalidStackPointer, cfg.StackPointer, mod.globals)
	}

	m := &Module{
		Space: IndexSpace{
			Base:    mod.importedFuncs,
			Defined: uint32(len(mod.bodies)),
		},
		Names:  NewNameTable(mod.names),
		frames: make([]FrameResult, len(mod.bodies)),
	}

	analyze := func(local int) {
		m.frames[local] = analyzeBody(mod.bodies[local], cfg)
		res := m.frames[local]
		cfg.Logger.Debug().
			Uint32("func", m.Space.ToGlobal(uint32(local))).
			Uint64("size", res.Size).
			Err(res.Err).
			Msg("analyzed function")
	}

	if cfg.Parallelism < 2 {
		for i := range mod.bodies {
			analyze(i)
		}
		return m, nil
	}

	// Each body writes only its own slot of m.frames.
	var g errgroup.Group
	g.SetLimit(cfg.Parallelism)
	for i := range mod.bodies {
		i := i
		g.Go(func() error {
			analyze(i)
			return nil
		})
	}
	// Failures stay in m.frames; the workers never return an error.
	g.Wait()
	return m, nil
}

func analyzeBody(body []byte, cfg Config) FrameResult {
	instrs, err := DecodeInstructions(body)
	if err != nil {
		return FrameResult{Err: fmt.Errorf("%w: %v", ErrMalformedBody, err)}
	}
	size, err := EstimateFrameSize(instrs, cfg)
	if err != nil {
		return FrameResult{Err: err}
	}
	return FrameResult{Size: size, Type: PrologueGlobalSub}
}

// Frame returns the cached result of the function at a code section position.
func (m *Module) Frame(local uint32) (FrameResult, bool) {
	if int(local) >= len(m.frames) {
		return FrameResult{}, false
	}
	return m.frames[local], true
}

// Resolve returns the frame of the function called name.
func (m *Module) Resolve(name string) (Frame, error) {
	idx, ok := m.Names.Lookup(name)
	if !ok {
		return Frame{}, fmt.Errorf("%w: %s", ErrNameNotFound, name)
	}
	frame := Frame{Index: idx, Name: name}
	local, err := m.Space.ToCodeLocal(idx)
	if err != nil {
		return frame, err
	}
	res, ok := m.Frame(local)
	if !ok {
		return frame, fmt.Errorf("%w: func[%d]", ErrDanglingNameReference, idx)
	}
	if res.Err != nil {
		return frame, res.Err
	}
	frame.Size, frame.Type = res.Size, res.Type
	return frame, nil
}

// Functions lists every defined function in index order.
func (m *Module) Functions() []Function {
	names := m.Names.byIndex()
	fns := make([]Function, 0, len(m.frames))
	for local, res := range m.frames {
		idx := m.Space.ToGlobal(uint32(local))
		fns = append(fns, Function{
			Index: idx,
			Name:  names[idx],
			Size:  res.Size,
			Type:  res.Type,
			Err:   res.Err,
		})
	}
	return fns
}
