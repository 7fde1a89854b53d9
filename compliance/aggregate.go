package compliance

import (
	"fmt"

	"github.com/liamcoop/shelflife/shelflife"
)

// Verdict is the combined pass/fail outcome for one inspected product
type Verdict struct {
	Passed     bool      `json:"passed"`
	CanAccept  bool      `json:"canAccept"`
	CanRelease bool      `json:"canRelease"`
	Reasons    []string  `json:"reasons"`
	Findings   []Finding `json:"findings"`
}

// Aggregate combines the temporal result with label findings.
// The product passes when the DC deadline has not lapsed and there are no
// findings. A lapsed store deadline is reported but does not fail the verdict.
// A nil calc means the deadlines could not be resolved, which always fails.
func Aggregate(calc *shelflife.CalculationResult, findings []Finding) Verdict {
	v := Verdict{
		Reasons:  []string{},
		Findings: []Finding{},
	}

	switch {
	case calc == nil:
		v.Reasons = append(v.Reasons, "acceptance deadlines could not be resolved")
	default:
		v.CanAccept = calc.CanAccept
		v.CanRelease = calc.CanRelease
		if !calc.CanAccept {
			v.Reasons = append(v.Reasons, fmt.Sprintf("DC acceptance deadline %s has passed", calc.DCAcceptanceDate))
		}
		if !calc.CanRelease {
			v.Reasons = append(v.Reasons, fmt.Sprintf("store deadline %s has passed", calc.StoreDeadline()))
		}
	}
	for _, f := range findings {
		v.Findings = append(v.Findings, f)
		v.Reasons = append(v.Reasons, f.Reason)
	}

	v.Passed = v.CanAccept && len(findings) == 0
	return v
}
