// Package explain ranks encoded features by their linear contribution to a
// class score and renders them with human-readable labels.
package explain

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/okian/fencerpulse/internal/domain/attributes"
	"github.com/okian/fencerpulse/internal/domain/encoder"
)

// DefaultTopK is the number of items returned when none is requested.
const DefaultTopK = 6

// Directions of a contribution.
const (
	Up   = "↑"
	Down = "↓"
)

// Labels maps attribute field names to display labels. Lookups are exact on
// the field name.
type Labels map[string]string

// DefaultLabels are the English display labels of every attribute.
var DefaultLabels = Labels{
	attributes.Age:             "Age",
	attributes.HeightCM:        "Height",
	attributes.WeightKG:        "Weight",
	attributes.ReachCM:         "Reach (arm span)",
	attributes.Sprint20mS:      "20 m sprint time",
	attributes.ReactionMS:      "Reaction time (ms)",
	attributes.BeepLevel:       "Beep test level",
	attributes.JumpCM:          "Vertical jump",
	attributes.WeeklyTrainingH: "Weekly training hours",
	attributes.DominantHand:    "Dominant hand",
	attributes.InjuryStatus:    "Injury",
	attributes.TrainingGoal:    "Goal",
	attributes.Experience:      "Experience",
}

// Display renders a column: the field label for numeric columns,
// "<label> = <value>" for categorical ones. Unlabelled fields fall back to
// the raw field name.
func (l Labels) Display(c encoder.Column) string {
	label, ok := l[c.Field]
	if !ok {
		label = c.Field
	}
	if c.Kind == encoder.KindCategorical {
		return fmt.Sprintf("%s = %s", label, c.Value)
	}
	return label
}

// Item is one explained feature.
type Item struct {
	Name         string  `json:"name"`
	Feature      string  `json:"feature"`
	Contribution float64 `json:"contribution"`
}

// Direction is Up for contributions pushing toward the class, Down otherwise.
func (i Item) Direction() string {
	if i.Contribution >= 0 {
		return Up
	}
	return Down
}

// Explainer is stateless apart from its label table.
type Explainer struct {
	labels Labels
}

// New creates an Explainer; a nil table uses DefaultLabels.
func New(labels Labels) *Explainer {
	if labels == nil {
		labels = DefaultLabels
	}
	return &Explainer{labels: labels}
}

// Explain computes x[i]*w[i] for every column, orders by absolute value
// (ties keep column order) and returns the first topK items. topK <= 0 means
// DefaultTopK.
func (e *Explainer) Explain(x, w []float64, columns []encoder.Column, topK int) ([]Item, error) {
	if len(x) != len(w) || len(x) != len(columns) {
		return nil, fmt.Errorf("%w: %d values, %d weights, %d columns", ErrLengthMismatch, len(x), len(w), len(columns))
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	type scored struct {
		pos int
		c   float64
	}
	all := make([]scored, len(x))
	for i := range x {
		all[i] = scored{pos: i, c: x[i] * w[i]}
	}
	slices.SortStableFunc(all, func(a, b scored) int {
		if c := cmp.Compare(math.Abs(b.c), math.Abs(a.c)); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})

	n := min(topK, len(all))
	items := make([]Item, n)
	for i, s := range all[:n] {
		col := columns[s.pos]
		items[i] = Item{
			Name:         e.labels.Display(col),
			Feature:      col.Name,
			Contribution: s.c,
		}
	}
	return items, nil
}
