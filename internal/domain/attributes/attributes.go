// Package attributes defines the athlete attribute record fed to the
// recommender and the fixed schema it is encoded with.
package attributes

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Numeric field names, in encoding order.
const (
	Age             = "age"
	HeightCM        = "height_cm"
	WeightKG        = "weight_kg"
	ReachCM         = "reach_cm"
	Sprint20mS      = "sprint_20m_s"
	ReactionMS      = "reaction_ms"
	BeepLevel       = "beep_level"
	JumpCM          = "jump_cm"
	WeeklyTrainingH = "weekly_training_h"
)

// Categorical field names, in encoding order.
const (
	DominantHand = "dominant_hand"
	InjuryStatus = "injury"
	TrainingGoal = "goal"
	Experience   = "experience"
)

// NumericFields lists numeric fields in the order they are encoded.
var NumericFields = []string{
	Age, HeightCM, WeightKG, ReachCM, Sprint20mS,
	ReactionMS, BeepLevel, JumpCM, WeeklyTrainingH,
}

// CategoricalFields lists categorical fields in the order they are encoded.
var CategoricalFields = []string{DominantHand, InjuryStatus, TrainingGoal, Experience}

// Names returns every field name, numeric first.
func Names() []string {
	out := make([]string, 0, len(NumericFields)+len(CategoricalFields))
	out = append(out, NumericFields...)
	return append(out, CategoricalFields...)
}

// Enumerations accepted by the UI. Values outside these sets are still
// accepted by the encoder and encode to an all-zero block.
var (
	Hands       = []string{"right", "left"}
	Injuries    = []string{"none", "knee", "ankle", "shoulder", "wrist"}
	Goals       = []string{"recreation", "competition", "scholarship"}
	Experiences = []string{"beginner", "intermediate", "advanced"}
)

// Enumeration returns the closed value set of a categorical field.
func Enumeration(field string) ([]string, bool) {
	switch field {
	case DominantHand:
		return Hands, true
	case InjuryStatus:
		return Injuries, true
	case TrainingGoal:
		return Goals, true
	case Experience:
		return Experiences, true
	}
	return nil, false
}

// IsNumeric reports whether field is one of the numeric fields.
func IsNumeric(field string) bool {
	for _, f := range NumericFields {
		if f == field {
			return true
		}
	}
	return false
}

// IsCategorical reports whether field is one of the categorical fields.
func IsCategorical(field string) bool {
	for _, f := range CategoricalFields {
		if f == field {
			return true
		}
	}
	return false
}

// Record is a single athlete's attributes. It is a plain value; copies are
// independent.
type Record struct {
	Age             float64
	HeightCM        float64
	WeightKG        float64
	ReachCM         float64
	Sprint20mS      float64
	ReactionMS      float64
	BeepLevel       float64
	JumpCM          float64
	WeeklyTrainingH float64

	DominantHand string
	Injury       string
	Goal         string
	Experience   string
}

// Numeric returns the value of a numeric field.
func (r Record) Numeric(field string) (float64, bool) {
	switch field {
	case Age:
		return r.Age, true
	case HeightCM:
		return r.HeightCM, true
	case WeightKG:
		return r.WeightKG, true
	case ReachCM:
		return r.ReachCM, true
	case Sprint20mS:
		return r.Sprint20mS, true
	case ReactionMS:
		return r.ReactionMS, true
	case BeepLevel:
		return r.BeepLevel, true
	case JumpCM:
		return r.JumpCM, true
	case WeeklyTrainingH:
		return r.WeeklyTrainingH, true
	}
	return 0, false
}

// Categorical returns the value of a categorical field.
func (r Record) Categorical(field string) (string, bool) {
	switch field {
	case DominantHand:
		return r.DominantHand, true
	case InjuryStatus:
		return r.Injury, true
	case TrainingGoal:
		return r.Goal, true
	case Experience:
		return r.Experience, true
	}
	return "", false
}

func (r *Record) setNumeric(field string, v float64) {
	switch field {
	case Age:
		r.Age = v
	case HeightCM:
		r.HeightCM = v
	case WeightKG:
		r.WeightKG = v
	case ReachCM:
		r.ReachCM = v
	case Sprint20mS:
		r.Sprint20mS = v
	case ReactionMS:
		r.ReactionMS = v
	case BeepLevel:
		r.BeepLevel = v
	case JumpCM:
		r.JumpCM = v
	case WeeklyTrainingH:
		r.WeeklyTrainingH = v
	}
}

func (r *Record) setCategorical(field, v string) {
	switch field {
	case DominantHand:
		r.DominantHand = v
	case InjuryStatus:
		r.Injury = v
	case TrainingGoal:
		r.Goal = v
	case Experience:
		r.Experience = v
	}
}

// Validate checks that every numeric field is finite.
func (r Record) Validate() error {
	for _, f := range NumericFields {
		v, _ := r.Numeric(f)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return schemaError(f, "must be a finite number")
		}
	}
	return nil
}

// ToMap renders the record as a field->value mapping, the inverse of FromMap.
func (r Record) ToMap() map[string]any {
	m := make(map[string]any, len(NumericFields)+len(CategoricalFields))
	for _, f := range NumericFields {
		m[f], _ = r.Numeric(f)
	}
	for _, f := range CategoricalFields {
		m[f], _ = r.Categorical(f)
	}
	return m
}

// FromMap builds a Record from a decoded mapping, e.g. a JSON object.
// Every field must be present exactly once with the right kind of value;
// unknown field names are rejected.
func FromMap(m map[string]any) (Record, error) {
	var r Record
	if err := checkFieldNames(keys(m)); err != nil {
		return Record{}, err
	}
	for _, f := range NumericFields {
		v, err := toFloat(m[f])
		if err != nil {
			return Record{}, schemaError(f, err.Error())
		}
		r.setNumeric(f, v)
	}
	for _, f := range CategoricalFields {
		s, ok := m[f].(string)
		if !ok {
			return Record{}, schemaError(f, fmt.Sprintf("expected string, got %T", m[f]))
		}
		r.setCategorical(f, strings.TrimSpace(s))
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

// FromStrings builds a Record from textual cells, e.g. a CSV row keyed by
// header. Numeric cells are parsed as floats.
func FromStrings(m map[string]string) (Record, error) {
	var r Record
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	if err := checkFieldNames(names); err != nil {
		return Record{}, err
	}
	for _, f := range NumericFields {
		v, err := strconv.ParseFloat(strings.TrimSpace(m[f]), 64)
		if err != nil {
			return Record{}, schemaError(f, fmt.Sprintf("invalid number %q", m[f]))
		}
		r.setNumeric(f, v)
	}
	for _, f := range CategoricalFields {
		r.setCategorical(f, strings.TrimSpace(m[f]))
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func checkFieldNames(names []string) error {
	seen := make(map[string]bool, len(names))
	var unknown []string
	for _, n := range names {
		if !IsNumeric(n) && !IsCategorical(n) {
			unknown = append(unknown, n)
			continue
		}
		seen[n] = true
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return schemaError(strings.Join(unknown, ","), "unknown field")
	}
	for _, f := range NumericFields {
		if !seen[f] {
			return schemaError(f, "missing")
		}
	}
	for _, f := range CategoricalFields {
		if !seen[f] {
			return schemaError(f, "missing")
		}
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case interface{ Float64() (float64, error) }:
		// json.Number from decoders configured with UseNumber
		return n.Float64()
	case nil:
		return 0, fmt.Errorf("expected number, got null")
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
