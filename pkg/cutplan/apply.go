package cutplan

// Cutter applies one planar cut to whatever it is bound to, typically a
// solid held by a geometry kernel.
type Cutter interface {
	Cut(d Descriptor) error
}

// CutterFunc adapts a function to Cutter.
type CutterFunc func(d Descriptor) error

func (f CutterFunc) Cut(d Descriptor) error { return f(d) }

// Outcome pairs a descriptor with what the cutter reported for it.
type Outcome struct {
	Index      int
	Descriptor Descriptor
	Err        error // nil on success, otherwise a *CutError
}

// Apply hands every descriptor to c in order and collects the results.
// A failed cut does not stop the remaining ones.
func Apply(descs []Descriptor, c Cutter) []Outcome {
	outcomes := make([]Outcome, len(descs))
	for i, d := range descs {
		outcomes[i] = Outcome{Index: i, Descriptor: d}
		if err := c.Cut(d); err != nil {
			outcomes[i].Err = &CutError{Index: i, Err: err}
		}
	}
	return outcomes
}

// Failed counts the outcomes that carry an error.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
