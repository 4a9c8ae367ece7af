package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/maxgio92/framesize"
)

// printer writes diagnostics to stderr, in red when it is a terminal.
type printer struct {
	w   io.Writer
	red *color.Color
}

func newPrinter(w io.Writer, disabled bool) *printer {
	red := color.New(color.FgRed)
	if disabled || !isTerminal(w) {
		red.DisableColor()
	} else {
		red.EnableColor()
	}
	return &printer{w: w, red: red}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *printer) errorf(format string, args ...any) {
	p.red.Fprintf(p.w, format+"\n", args...)
}

// failureMessage renders a failed trace line.
func failureMessage(o framesize.Outcome) string {
	switch {
	case errors.Is(o.Err, framesize.ErrNameNotFound):
		return fmt.Sprintf("%s not found", o.Line)
	case errors.Is(o.Err, framesize.ErrDanglingNameReference):
		return fmt.Sprintf("invalid wasm file: name section contains non-existing func-idx for %s", o.Line)
	default:
		return fmt.Sprintf("can't estimate stack size for '%s' (%v)", o.Line, o.Err)
	}
}

// writeReport prints one line per resolved frame to w and the first failure
// of every distinct line to the printer, in trace order, then the total.
func writeReport(w io.Writer, p *printer, r *framesize.Report) {
	warned := make(map[string]struct{})
	for _, o := range r.Outcomes {
		if o.Err == nil {
			fmt.Fprintf(w, "func[%d] size = %d %s\n", o.Frame.Index, o.Frame.Size, o.Line)
			continue
		}
		if _, ok := warned[o.Line]; ok {
			continue
		}
		warned[o.Line] = struct{}{}
		p.errorf("%s", failureMessage(o))
	}
	fmt.Fprintf(w, "Total size: %d\n", r.Total)
}

type jsonOutcome struct {
	Line  string                 `json:"line"`
	Index *uint32                `json:"index,omitempty"`
	Size  uint64                 `json:"size"`
	Type  framesize.PrologueType `json:"type,omitempty"`
	Error string                 `json:"error,omitempty"`
}

type jsonReport struct {
	Frames   []jsonOutcome `json:"frames"`
	Failures []jsonOutcome `json:"failures"`
	Total    uint64        `json:"total"`
}

func toJSONOutcome(o framesize.Outcome) jsonOutcome {
	out := jsonOutcome{Line: o.Line}
	if o.Err != nil {
		out.Error = failureMessage(o)
		return out
	}
	idx := o.Frame.Index
	out.Index = &idx
	out.Size = o.Frame.Size
	out.Type = o.Frame.Type
	return out
}

func writeReportJSON(w io.Writer, r *framesize.Report) error {
	out := jsonReport{
		Frames:   make([]jsonOutcome, 0, len(r.Outcomes)),
		Failures: make([]jsonOutcome, 0, len(r.Failures)),
		Total:    r.Total,
	}
	for _, o := range r.Outcomes {
		if o.Err == nil {
			out.Frames = append(out.Frames, toJSONOutcome(o))
		}
	}
	for _, o := range r.Failures {
		out.Failures = append(out.Failures, toJSONOutcome(o))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeFunctions(w io.Writer, fns []framesize.Function) {
	for _, fn := range fns {
		if fn.Err != nil {
			fmt.Fprintf(w, "func[%d] error = %v %s\n", fn.Index, fn.Err, fn.Name)
			continue
		}
		fmt.Fprintf(w, "func[%d] size = %d %s\n", fn.Index, fn.Size, fn.Name)
	}
}

type jsonFunction struct {
	framesize.Function
	Error string `json:"error,omitempty"`
}

func writeFunctionsJSON(w io.Writer, fns []framesize.Function) error {
	out := make([]jsonFunction, 0, len(fns))
	for _, fn := range fns {
		jf := jsonFunction{Function: fn}
		if fn.Err != nil {
			jf.Error = fn.Err.Error()
		}
		out = append(out, jf)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
