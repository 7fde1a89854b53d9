package compliance

import (
	"errors"
	"time"
)

var (
	// ErrCheckNotFound is returned when a check ID is unknown to the store
	ErrCheckNotFound = errors.New("check not found")

	// ErrCheckExists is returned when adding a check whose ID is taken
	ErrCheckExists = errors.New("check already exists")
)

// Check is one label-compliance rule.
// The check flags a label when Expression evaluates to true; Reason is the
// message reported for a flagged label.
type Check struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Reason     string    `json:"reason"`
	Expression string    `json:"expression"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// EvaluationResult contains the outcome of evaluating one check
type EvaluationResult struct {
	CheckID   string `json:"checkId"`
	CheckName string `json:"checkName"`
	Reason    string `json:"reason"`
	Flagged   bool   `json:"flagged"`
	Error     error  `json:"-"`
	Trace     any    `json:"-"`
}

// Finding is an outstanding compliance problem on a label
type Finding struct {
	CheckID string `json:"checkId"`
	Reason  string `json:"reason"`
	Error   string `json:"error,omitempty"`
}

// Finding converts a result into a finding; ok is false when the check passed.
// A check that failed to evaluate is reported as a finding.
func (r *EvaluationResult) Finding() (Finding, bool) {
	if r.Error != nil {
		return Finding{CheckID: r.CheckID, Reason: r.Reason, Error: r.Error.Error()}, true
	}
	if r.Flagged {
		return Finding{CheckID: r.CheckID, Reason: r.Reason}, true
	}
	return Finding{}, false
}
