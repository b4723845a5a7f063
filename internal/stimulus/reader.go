package stimulus

import (
	"errors"

	"github.com/sweeney/harvest-engine/internal/logic"
)

// Reader replays an expanded scenario as a bus reader, one sample per Read.
// When the samples run out it either starts over (Loop) or keeps returning
// the final register state.
type Reader struct {
	name    string
	samples []logic.Inputs
	tail    logic.Inputs
	loop    bool
	index   int
	closed  bool
}

// NewReader expands sc into a Reader.
func NewReader(sc Scenario) (*Reader, error) {
	b, err := Expand(sc)
	if err != nil {
		return nil, err
	}
	return &Reader{
		name:    sc.Name,
		samples: b.Samples(),
		tail:    b.Current(),
		loop:    sc.Loop,
	}, nil
}

// Open loads the scenario file at path and returns a Reader for it.
func Open(path string) (*Reader, error) {
	sc, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewReader(sc)
}

// Read returns the next sample.
func (r *Reader) Read() (logic.Inputs, error) {
	if r.closed {
		return logic.Inputs{}, errors.New("scenario reader closed")
	}
	if r.index >= len(r.samples) {
		if !r.loop || len(r.samples) == 0 {
			return r.tail, nil
		}
		r.index = 0
	}
	in := r.samples[r.index]
	r.index++
	return in, nil
}

// Close stops the reader.
func (r *Reader) Close() error {
	r.closed = true
	return nil
}

// Name returns the scenario name.
func (r *Reader) Name() string {
	return r.name
}

// Len returns the number of scripted samples.
func (r *Reader) Len() int {
	return len(r.samples)
}

// Done reports whether a non-looping scenario has played out.
func (r *Reader) Done() bool {
	return !r.loop && r.index >= len(r.samples)
}
