// Package flow defines wizard step tables and the sequencing rules over them.
//
// A Flow is built once at startup from an ordered list of steps over a model
// type M. The service works with the type-erased Sequence so one service and
// one HTTP handler can drive every registered wizard.
package flow

import (
	"fmt"
	"slices"

	"taxportal/internal/wizard/models"
)

// Step is one page of a wizard.
type Step[M any] struct {
	Name string
	// Fields lists the dotted parameter paths the page may change.
	Fields []string
	// When includes the step only if it returns true. Nil means always.
	When func(*M) bool
	// Next jumps to the named step. Returning "" falls back to the table order.
	Next func(*M) string
	// Validate checks the fields of this step after merging.
	Validate func(*M) models.FieldErrors
}

// Sequence is the type-erased view of a Flow used by the service.
type Sequence interface {
	Name() string
	Form() string
	First() string
	Steps() []string
	Has(step string) bool
	Fields(step string) []string
	Setup(params models.Document) (models.Document, error)
	Normalize(step string, doc models.Document) (models.Document, models.FieldErrors, error)
	Next(step string, doc models.Document) (next string, done bool, err error)
	Path(doc models.Document) ([]string, error)
}

// Flow is an ordered step table over model M.
type Flow[M any] struct {
	name  string
	form  string
	steps []Step[M]
	index map[string]int
	setup func(m *M, params models.Document)
}

// New validates and builds a flow. form is the back office form type.
func New[M any](name, form string, steps ...Step[M]) (*Flow[M], error) {
	if name == "" || form == "" {
		return nil, fmt.Errorf("flow needs a name and a form type")
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("flow %s has no steps", name)
	}
	f := &Flow[M]{name: name, form: form, steps: steps, index: make(map[string]int, len(steps))}
	for i, s := range steps {
		if s.Name == "" {
			return nil, fmt.Errorf("flow %s: step %d has no name", name, i)
		}
		if _, dup := f.index[s.Name]; dup {
			return nil, fmt.Errorf("flow %s: duplicate step %s", name, s.Name)
		}
		f.index[s.Name] = i
	}
	if steps[0].When != nil {
		return nil, fmt.Errorf("flow %s: first step %s cannot be conditional", name, steps[0].Name)
	}
	return f, nil
}

// MustNew is New for package-level flow tables.
func MustNew[M any](name, form string, steps ...Step[M]) *Flow[M] {
	f, err := New(name, form, steps...)
	if err != nil {
		panic(err)
	}
	return f
}

// WithSetup installs a hook that prepares the initial model from start parameters.
func (f *Flow[M]) WithSetup(fn func(m *M, params models.Document)) *Flow[M] {
	f.setup = fn
	return f
}

func (f *Flow[M]) Name() string  { return f.name }
func (f *Flow[M]) Form() string  { return f.form }
func (f *Flow[M]) First() string { return f.steps[0].Name }

func (f *Flow[M]) Steps() []string {
	names := make([]string, len(f.steps))
	for i, s := range f.steps {
		names[i] = s.Name
	}
	return names
}

func (f *Flow[M]) Has(step string) bool {
	_, ok := f.index[step]
	return ok
}

func (f *Flow[M]) Fields(step string) []string {
	i, ok := f.index[step]
	if !ok {
		return nil
	}
	return slices.Clone(f.steps[i].Fields)
}

// Setup returns the initial document for a new run.
func (f *Flow[M]) Setup(params models.Document) (models.Document, error) {
	var m M
	if f.setup != nil {
		f.setup(&m, params)
	}
	return Encode(&m)
}

// Normalize decodes doc into M, validates step and re-encodes the model so the
// cached document only ever holds fields M knows about, in M's types.
func (f *Flow[M]) Normalize(step string, doc models.Document) (models.Document, models.FieldErrors, error) {
	i, ok := f.index[step]
	if !ok {
		return nil, nil, fmt.Errorf("flow %s: unknown step %s", f.name, step)
	}
	m, err := Decode[M](doc)
	if err != nil {
		return nil, models.FieldErrors{"_form": "could not read the submitted values"}, nil
	}
	errs := models.FieldErrors{}
	if v := f.steps[i].Validate; v != nil {
		errs.Merge(v(m))
	}
	out, err := Encode(m)
	if err != nil {
		return nil, nil, err
	}
	return out, errs, nil
}

// Next returns the step after step for the given model state.
func (f *Flow[M]) Next(step string, doc models.Document) (string, bool, error) {
	i, ok := f.index[step]
	if !ok {
		return "", false, fmt.Errorf("flow %s: unknown step %s", f.name, step)
	}
	m, err := Decode[M](doc)
	if err != nil {
		return "", false, err
	}
	return f.next(i, m)
}

func (f *Flow[M]) next(i int, m *M) (string, bool, error) {
	if branch := f.steps[i].Next; branch != nil {
		if target := branch(m); target != "" {
			if !f.Has(target) {
				return "", false, fmt.Errorf("flow %s: step %s branches to unknown step %s", f.name, f.steps[i].Name, target)
			}
			return target, false, nil
		}
	}
	for j := i + 1; j < len(f.steps); j++ {
		if when := f.steps[j].When; when == nil || when(m) {
			return f.steps[j].Name, false, nil
		}
	}
	return "", true, nil
}

// Path lists the steps a model of this shape walks from the first step to
// completion. Branches that loop are reported as errors.
func (f *Flow[M]) Path(doc models.Document) ([]string, error) {
	m, err := Decode[M](doc)
	if err != nil {
		return nil, err
	}
	path := []string{f.First()}
	i := 0
	for {
		next, done, err := f.next(i, m)
		if err != nil {
			return nil, err
		}
		if done {
			return path, nil
		}
		if slices.Contains(path, next) {
			return nil, fmt.Errorf("flow %s: step %s revisits %s", f.name, f.steps[i].Name, next)
		}
		path = append(path, next)
		i = f.index[next]
	}
}

// ValidatePath checks every step on the model's path, stopping at the first
// step with errors. Used before forwarding a complete model.
func ValidatePath(seq Sequence, doc models.Document) (string, models.FieldErrors, error) {
	path, err := seq.Path(doc)
	if err != nil {
		return "", nil, err
	}
	for _, step := range path {
		_, errs, err := seq.Normalize(step, doc)
		if err != nil {
			return "", nil, err
		}
		if len(errs) > 0 {
			return step, errs, nil
		}
	}
	return "", nil, nil
}
