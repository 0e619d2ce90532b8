package tools

import (
	"context"
	"fmt"
)

// Detector evaluates probes. It never fails: errors and panics inside a probe
// count as missing evidence.
type Detector struct {
	Query Query
}

// Detect runs probes in order and folds the evidence into a Report. All
// found is Satisfied, none found is Missing, anything else is Partial. A
// stage with no probes is always Missing.
func (d Detector) Detect(ctx context.Context, probes ...Probe) Report {
	q := d.Query
	if q == nil {
		q = ExecQuery
	}

	report := Report{Status: StatusMissing}
	if len(probes) == 0 {
		return report
	}

	found := 0
	for _, p := range probes {
		ev := runProbe(ctx, q, p)
		if ev.Found {
			found++
		}
		report.Evidence = append(report.Evidence, ev)
	}

	switch {
	case found == len(probes):
		report.Status = StatusSatisfied
	case found > 0:
		report.Status = StatusPartial
	}
	return report
}

func runProbe(ctx context.Context, q Query, p Probe) (ev Evidence) {
	defer func() {
		if r := recover(); r != nil {
			ev = Evidence{Probe: fmt.Sprintf("%T", p), Detail: fmt.Sprintf("probe panicked: %v", r)}
		}
	}()
	return p.Probe(ctx, q)
}
