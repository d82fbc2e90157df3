// Package encoder turns attribute records into fixed-length numeric vectors:
// standardised numeric columns followed by one-hot categorical blocks.
package encoder

import (
	"fmt"
	"math"
	"sort"

	"github.com/okian/fencerpulse/internal/domain/attributes"
	"gonum.org/v1/gonum/stat"
)

// Epsilon floors the standard deviation so zero-variance fields do not divide by zero.
const Epsilon = 1e-8

// Column kinds.
const (
	KindNumeric     = "numeric"
	KindCategorical = "categorical"
)

// NumericStat holds the standardisation statistics of one numeric field.
type NumericStat struct {
	Field string  `json:"field"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
}

// Vocabulary is the ordered set of known values of one categorical field.
type Vocabulary struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

// State is everything the encoder learned at fit time.
type State struct {
	Numeric     []NumericStat `json:"numeric"`
	Categorical []Vocabulary  `json:"categorical"`
}

// Column describes one position of the encoded vector.
type Column struct {
	Name  string // "age" or "goal=competition"
	Field string // source attribute field
	Value string // category value; empty for numeric columns
	Kind  string
}

// Encoded is the output of Transform.
type Encoded struct {
	Values []float64
	// Unknown lists categorical fields whose value was not seen at fit time.
	Unknown []string
}

// Encoder is immutable once built and safe for concurrent use.
type Encoder struct {
	state   State
	columns []Column
	offsets []int            // start offset of each categorical block
	index   []map[string]int // value -> position within the block
}

// Fit learns standardisation statistics and vocabularies from records.
func Fit(records []attributes.Record) (*Encoder, error) {
	if len(records) == 0 {
		return nil, ErrEmptyTrainingSet
	}

	var st State
	col := make([]float64, len(records))
	for _, f := range attributes.NumericFields {
		for i, r := range records {
			v, _ := r.Numeric(f)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("row %d: %w", i, r.Validate())
			}
			col[i] = v
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		st.Numeric = append(st.Numeric, NumericStat{Field: f, Mean: mean, Std: std})
	}

	for _, f := range attributes.CategoricalFields {
		seen := make(map[string]struct{})
		for _, r := range records {
			v, _ := r.Categorical(f)
			seen[v] = struct{}{}
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		sort.Strings(values)
		st.Categorical = append(st.Categorical, Vocabulary{Field: f, Values: values})
	}

	return New(st)
}

// New rebuilds an encoder from previously learned state.
func New(st State) (*Encoder, error) {
	if err := validateState(st); err != nil {
		return nil, err
	}

	e := &Encoder{state: cloneState(st)}
	for _, ns := range e.state.Numeric {
		e.columns = append(e.columns, Column{Name: ns.Field, Field: ns.Field, Kind: KindNumeric})
	}
	for _, vocab := range e.state.Categorical {
		e.offsets = append(e.offsets, len(e.columns))
		idx := make(map[string]int, len(vocab.Values))
		for i, v := range vocab.Values {
			idx[v] = i
			e.columns = append(e.columns, Column{
				Name:  ColumnName(vocab.Field, v),
				Field: vocab.Field,
				Value: v,
				Kind:  KindCategorical,
			})
		}
		e.index = append(e.index, idx)
	}
	return e, nil
}

// ColumnName is the machine name of a categorical indicator column.
func ColumnName(field, value string) string {
	return field + "=" + value
}

// Transform encodes a record. Unknown categorical values produce an all-zero
// block and are reported in Encoded.Unknown rather than failing.
func (e *Encoder) Transform(r attributes.Record) (Encoded, error) {
	if err := r.Validate(); err != nil {
		return Encoded{}, err
	}

	out := Encoded{Values: make([]float64, len(e.columns))}
	for i, ns := range e.state.Numeric {
		v, _ := r.Numeric(ns.Field)
		out.Values[i] = (v - ns.Mean) / math.Max(ns.Std, Epsilon)
	}
	for b, vocab := range e.state.Categorical {
		v, _ := r.Categorical(vocab.Field)
		pos, ok := e.index[b][v]
		if !ok {
			out.Unknown = append(out.Unknown, vocab.Field)
			continue
		}
		out.Values[e.offsets[b]+pos] = 1
	}
	return out, nil
}

// Len is the encoded vector length.
func (e *Encoder) Len() int { return len(e.columns) }

// Columns returns column metadata aligned with encoded positions.
func (e *Encoder) Columns() []Column {
	return append([]Column(nil), e.columns...)
}

// Names returns the machine column names aligned with encoded positions.
func (e *Encoder) Names() []string {
	names := make([]string, len(e.columns))
	for i, c := range e.columns {
		names[i] = c.Name
	}
	return names
}

// State returns a copy of the learned state.
func (e *Encoder) State() State { return cloneState(e.state) }

func cloneState(st State) State {
	out := State{Numeric: append([]NumericStat(nil), st.Numeric...)}
	for _, v := range st.Categorical {
		out.Categorical = append(out.Categorical, Vocabulary{
			Field:  v.Field,
			Values: append([]string(nil), v.Values...),
		})
	}
	return out
}

func validateState(st State) error {
	if len(st.Numeric) != len(attributes.NumericFields) {
		return fmt.Errorf("%w: %d numeric fields, want %d", ErrInvalidState, len(st.Numeric), len(attributes.NumericFields))
	}
	for i, ns := range st.Numeric {
		if ns.Field != attributes.NumericFields[i] {
			return fmt.Errorf("%w: numeric field %d is %q, want %q", ErrInvalidState, i, ns.Field, attributes.NumericFields[i])
		}
		if math.IsNaN(ns.Mean) || math.IsInf(ns.Mean, 0) || math.IsNaN(ns.Std) || math.IsInf(ns.Std, 0) || ns.Std < 0 {
			return fmt.Errorf("%w: bad statistics for %q", ErrInvalidState, ns.Field)
		}
	}
	if len(st.Categorical) != len(attributes.CategoricalFields) {
		return fmt.Errorf("%w: %d categorical fields, want %d", ErrInvalidState, len(st.Categorical), len(attributes.CategoricalFields))
	}
	for i, vocab := range st.Categorical {
		if vocab.Field != attributes.CategoricalFields[i] {
			return fmt.Errorf("%w: categorical field %d is %q, want %q", ErrInvalidState, i, vocab.Field, attributes.CategoricalFields[i])
		}
		seen := make(map[string]bool, len(vocab.Values))
		for _, v := range vocab.Values {
			if seen[v] {
				return fmt.Errorf("%w: duplicate value %q in %q", ErrInvalidState, v, vocab.Field)
			}
			seen[v] = true
		}
	}
	return nil
}
