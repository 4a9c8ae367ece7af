package framesize

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Outcome is the result of resolving one stack trace line.
type Outcome struct {
	Line  string `json:"line"`
	Frame Frame  `json:"frame"`
	Err   error  `json:"-"`
}

// Report is the result of aggregating a stack trace.
type Report struct {
	// Outcomes has one entry per input line, in input order.
	Outcomes []Outcome `json:"outcomes"`
	// Failures keeps the first failed outcome of every distinct line.
	Failures []Outcome `json:"failures"`
	// Total is the sum of the sizes of the successful outcomes.
	Total uint64 `json:"total"`
}

// Aggregate resolves every line against src and sums the frame sizes. A line
// that cannot be resolved is recorded and skipped; it never stops the run.
func Aggregate(src FrameSource, lines []string) *Report {
	r := &Report{}
	warned := make(map[string]struct{})
	for _, line := range lines {
		r.add(src, line, warned)
	}
	return r
}

// AggregateReader is Aggregate over a trace with one function name per line.
// Lines have no length limit; a trailing "\r" is dropped. On a read error the
// report holds the lines read so far.
func AggregateReader(src FrameSource, in io.Reader) (*Report, error) {
	r := &Report{}
	warned := make(map[string]struct{})
	br := bufio.NewReader(in)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
			r.add(src, line, warned)
		}
		if errors.Is(err, io.EOF) {
			return r, nil
		}
		if err != nil {
			return r, fmt.Errorf("failed to read stack trace: %w", err)
		}
	}
}

func (r *Report) add(src FrameSource, line string, warned map[string]struct{}) {
	frame, err := src.Resolve(line)
	o := Outcome{Line: line, Frame: frame, Err: err}
	r.Outcomes = append(r.Outcomes, o)
	if err != nil {
		if _, ok := warned[line]; !ok {
			warned[line] = struct{}{}
			r.Failures = append(r.Failures, o)
		}
		return
	}
	r.Total += frame.Size
}

// Err returns the distinct failures as a single error, or nil.
func (r *Report) Err() error {
	var merr *multierror.Error
	for _, f := range r.Failures {
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", f.Line, f.Err))
	}
	return merr.ErrorOrNil()
}
