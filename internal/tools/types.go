package tools

// Status is the outcome of detecting a stage's target on the host.
type Status string

const (
	StatusSatisfied Status = "satisfied"
	StatusMissing   Status = "missing"
	StatusPartial   Status = "partial"
)

// Satisfied reports whether no installation work is needed.
func (s Status) Satisfied() bool {
	return s == StatusSatisfied
}

// Evidence records what a single probe observed.
type Evidence struct {
	Probe   string `json:"probe"`
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Report aggregates the evidence gathered for one stage.
type Report struct {
	Status   Status     `json:"status"`
	Evidence []Evidence `json:"evidence,omitempty"`
}
