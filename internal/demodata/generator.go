// Package demodata generates a synthetic, labelled athlete dataset for local
// training and tests. It is not real data.
package demodata

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/okian/fencerpulse/internal/domain/attributes"
)

// Generation defaults.
const (
	DefaultRows = 2400
	DefaultSeed = 24
)

// Class indices produced by Label.
const (
	Foil = iota
	Epee
	Sabre
)

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithRows sets the number of rows to generate.
func WithRows(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.rows = n
		}
	}
}

// WithSeed sets the PRNG seed.
func WithSeed(seed uint64) Option {
	return func(g *Generator) { g.seed = seed }
}

// WithBalancedLabels labels rows with BalancedLabels instead of Label.
func WithBalancedLabels() Option {
	return func(g *Generator) { g.balanced = true }
}

// Generator produces reproducible synthetic rows.
type Generator struct {
	rows     int
	seed     uint64
	balanced bool
}

// NewGenerator creates a generator with defaults overridden by opts.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{rows: DefaultRows, seed: DefaultSeed}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns records and their labels. The same seed always yields the
// same dataset.
func (g *Generator) Generate(ctx context.Context) ([]attributes.Record, []int, error) {
	rng := rand.New(rand.NewPCG(g.seed, g.seed^0x9e3779b97f4a7c15))
	records := make([]attributes.Record, g.rows)
	labels := make([]int, g.rows)
	for i := range records {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, fmt.Errorf("generation cancelled at row %d: %w", i, err)
			}
		}
		records[i] = sampleRow(rng)
		labels[i] = Label(records[i])
	}
	if g.balanced {
		labels = BalancedLabels(records)
	}
	return records, labels, nil
}

type weighted struct {
	value string
	p     float64
}

var (
	hands       = []weighted{{"right", 0.86}, {"left", 0.14}}
	injuries    = []weighted{{"none", 0.70}, {"knee", 0.10}, {"ankle", 0.08}, {"shoulder", 0.06}, {"wrist", 0.06}}
	goals       = []weighted{{"recreation", 0.50}, {"competition", 0.40}, {"scholarship", 0.10}}
	experiences = []weighted{{"beginner", 0.60}, {"intermediate", 0.32}, {"advanced", 0.08}}
)

func sampleRow(rng *rand.Rand) attributes.Record {
	height := normal(rng, 172, 9)
	return attributes.Record{
		Age:             float64(13 + rng.IntN(10)),
		HeightCM:        round(height, 1),
		WeightKG:        round(normal(rng, 68, 12), 1),
		ReachCM:         round(height*(0.95+0.11*rng.Float64()), 1),
		Sprint20mS:      round(clip(normal(rng, 3.35, 0.38), 2.55, 4.80), 2),
		ReactionMS:      round(clip(normal(rng, 265, 50), 170, 450), 0),
		BeepLevel:       round(clip(normal(rng, 8.7, 2.1), 4, 14), 1),
		JumpCM:          round(clip(normal(rng, 46, 11), 18, 85), 0),
		WeeklyTrainingH: round(clip(normal(rng, 3.6, 2.2), 0, 12), 1),
		DominantHand:    choose(rng, hands),
		Injury:          choose(rng, injuries),
		Goal:            choose(rng, goals),
		Experience:      choose(rng, experiences),
	}
}

// Label applies the synthetic ground-truth rule: each discipline gets a
// hand-written score and the highest one wins, ties going to the lower index.
// The raw scores are not on a common scale, so sabre wins almost every row
// drawn by sampleRow.
func Label(r attributes.Record) int {
	return argmax(scores(r))
}

// BalancedLabels standardises each discipline score over the batch before
// taking the argmax. The decision stays linear in the attributes but every
// discipline gets a sizeable share of the rows.
func BalancedLabels(records []attributes.Record) []int {
	labels := make([]int, len(records))
	if len(records) == 0 {
		return labels
	}
	raw := make([][3]float64, len(records))
	var mean, std [3]float64
	for i, r := range records {
		raw[i] = scores(r)
		for k, v := range raw[i] {
			mean[k] += v
		}
	}
	n := float64(len(records))
	for k := range mean {
		mean[k] /= n
	}
	for _, s := range raw {
		for k, v := range s {
			std[k] += (v - mean[k]) * (v - mean[k])
		}
	}
	for k := range std {
		std[k] = math.Sqrt(std[k] / n)
		if std[k] == 0 {
			std[k] = 1
		}
	}
	for i, s := range raw {
		for k := range s {
			s[k] = (s[k] - mean[k]) / std[k]
		}
		labels[i] = argmax(s)
	}
	return labels
}

// scores is indexed by Foil, Epee and Sabre.
func scores(r attributes.Record) [3]float64 {
	foil := r.WeeklyTrainingH/4 + (4.4 - r.Sprint20mS)
	if r.Experience != "beginner" {
		foil++
	}
	return [3]float64{
		Foil:  foil,
		Epee:  r.ReachCM/175 + (450-r.ReactionMS)/120 + r.BeepLevel/9,
		Sabre: (4.8-r.Sprint20mS)*2.0 + (450-r.ReactionMS)/90 + r.JumpCM/35,
	}
}

func argmax(s [3]float64) int {
	label := 0
	for k := 1; k < len(s); k++ {
		if s[k] > s[label] {
			label = k
		}
	}
	return label
}

// SampleRecord is the ready-made example athlete shown by the UI.
func SampleRecord() attributes.Record {
	return attributes.Record{
		Age: 17, HeightCM: 174, WeightKG: 68, ReachCM: 176,
		Sprint20mS: 3.15, ReactionMS: 240, BeepLevel: 9.5, JumpCM: 52,
		WeeklyTrainingH: 4,
		DominantHand:    "right",
		Injury:          "none",
		Goal:            "competition",
		Experience:      "intermediate",
	}
}

func normal(rng *rand.Rand, mean, std float64) float64 {
	return mean + std*rng.NormFloat64()
}

func clip(v, lo, hi float64) float64 { return math.Min(math.Max(v, lo), hi) }

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}

func choose(rng *rand.Rand, options []weighted) string {
	u := rng.Float64()
	acc := 0.0
	for _, o := range options {
		acc += o.p
		if u < acc {
			return o.value
		}
	}
	return options[len(options)-1].value
}
