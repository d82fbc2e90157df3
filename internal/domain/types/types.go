// Package types contains the response shapes shared by the service and the
// HTTP layer.
package types

import "time"

// Candidate is one shortlisted discipline.
type Candidate struct {
	Class       string  `json:"class"`
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Reason is one attribute that drove the recommendation.
type Reason struct {
	Name         string  `json:"name"`
	Feature      string  `json:"feature"`
	Contribution float64 `json:"contribution"`
	Direction    string  `json:"direction"`
}

// Recommendation is the answer to one inference request.
type Recommendation struct {
	PredictionID string      `json:"prediction_id"`
	Primary      Candidate   `json:"primary"`
	Top          []Candidate `json:"top"`
	Explanation  []Reason    `json:"explanation"`
	// UnknownCategories lists categorical fields whose value the model never saw.
	UnknownCategories []string  `json:"unknown_categories,omitempty"`
	ModelTrainedAt    time.Time `json:"model_trained_at"`
}

// TrainingParams mirrors the solver settings recorded with a model.
type TrainingParams struct {
	C         float64 `json:"c"`
	MaxIter   int     `json:"max_iter"`
	Tolerance float64 `json:"tolerance"`
	Seed      uint64  `json:"seed"`
}

// ModelInfo describes the serving model.
type ModelInfo struct {
	Loaded     bool           `json:"loaded"`
	Path       string         `json:"path"`
	TrainedAt  time.Time      `json:"trained_at,omitempty"`
	Rows       int            `json:"rows,omitempty"`
	Classes    []string       `json:"classes,omitempty"`
	Features   []string       `json:"features,omitempty"`
	Params     TrainingParams `json:"params"`
	Iterations []int          `json:"iterations,omitempty"`
	Converged  []bool         `json:"converged,omitempty"`
}
