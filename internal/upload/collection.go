package upload

import (
	"fmt"
	"iter"
	"net/http"
)

// Collection is the read-only, ordered result of normalizing a Descriptor.
// It holds only *File and *Failure outcomes; any fault aborts construction.
//
// The cursor methods (Rewind, Next, Key, Valid, Current, Seek) are not safe
// for concurrent use.
type Collection struct {
	outcomes []Outcome
	pos      int
}

type options struct {
	trusted  bool
	verifier Verifier
}

// Option configures New.
type Option func(*options)

// WithVerifier marks the descriptor as coming from the host upload channel:
// every successful file must pass v.
func WithVerifier(v Verifier) Option {
	return func(o *options) {
		o.trusted = true
		o.verifier = v
	}
}

// New normalizes d. Without WithVerifier the descriptor is treated as caller
// supplied and the authenticity check is skipped.
func New(d *Descriptor, opts ...Option) (*Collection, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	records, err := flatten(d)
	if err != nil {
		return nil, err
	}

	outcomes := make([]Outcome, 0, len(records))
	for _, r := range records {
		out, err := Classify(r.fieldName, r.attrs, o.trusted, o.verifier)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, out)
	}
	return &Collection{outcomes: outcomes}, nil
}

// FromChannel receives r through ch and normalizes the result as trusted.
func FromChannel(r *http.Request, ch *Channel) (*Collection, error) {
	d, err := ch.Receive(r)
	if err != nil {
		return nil, err
	}
	return New(d, WithVerifier(ch))
}

// FromRequest is the default factory: it receives r with a fresh Channel and
// returns the trusted collection along with the channel, whose Cleanup the
// caller must run once the files have been moved.
func FromRequest(r *http.Request, s Settings) (*Collection, *Channel, error) {
	ch := NewChannel(s)
	c, err := FromChannel(r, ch)
	if err != nil {
		ch.Cleanup()
		return nil, nil, err
	}
	return c, ch, nil
}

// Len returns the number of outcomes.
func (c *Collection) Len() int { return len(c.outcomes) }

// At returns the outcome at position i.
func (c *Collection) At(i int) (Outcome, error) {
	if i < 0 || i >= len(c.outcomes) {
		return nil, fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	return c.outcomes[i], nil
}

// Set always fails: the collection is read-only.
func (c *Collection) Set(int, Outcome) error { return ErrUnsupported }

// Remove always fails: the collection is read-only.
func (c *Collection) Remove(int) error { return ErrUnsupported }

// Rewind moves the cursor to the first outcome.
func (c *Collection) Rewind() { c.pos = 0 }

// Next advances the cursor.
func (c *Collection) Next() {
	if c.pos < len(c.outcomes) {
		c.pos++
	}
}

// Key returns the cursor position.
func (c *Collection) Key() int { return c.pos }

// Valid reports whether the cursor points at an outcome.
func (c *Collection) Valid() bool { return c.pos < len(c.outcomes) }

// Current returns the outcome under the cursor, or nil once exhausted.
func (c *Collection) Current() Outcome {
	if !c.Valid() {
		return nil
	}
	return c.outcomes[c.pos]
}

// Seek moves the cursor to i. An invalid position leaves the cursor as is.
func (c *Collection) Seek(i int) error {
	if i < 0 || i >= len(c.outcomes) {
		return fmt.Errorf("%w: cannot seek to %d", ErrOutOfRange, i)
	}
	c.pos = i
	return nil
}

// All iterates over the outcomes without touching the cursor.
func (c *Collection) All() iter.Seq2[int, Outcome] {
	return func(yield func(int, Outcome) bool) {
		for i, o := range c.outcomes {
			if !yield(i, o) {
				return
			}
		}
	}
}

// Outcomes returns a copy of the outcome list.
func (c *Collection) Outcomes() []Outcome {
	return append([]Outcome(nil), c.outcomes...)
}
