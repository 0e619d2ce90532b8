package orchestrator

import (
	"time"

	"edasetup/internal/tools"
)

// Result is the final record for one stage.
type Result struct {
	Stage     string           `json:"stage"`
	State     StageState       `json:"state"`
	Detected  tools.Status     `json:"detected,omitempty"`
	Evidence  []tools.Evidence `json:"evidence,omitempty"`
	Installed bool             `json:"installed,omitempty"`
	Tested    bool             `json:"tested,omitempty"`
	Commands  int              `json:"commands,omitempty"`
	Duration  time.Duration    `json:"duration_ns,omitempty"`
	ExitCode  int              `json:"exit_code,omitempty"`
	LogPath   string           `json:"log_path,omitempty"`
	BlockedBy string           `json:"blocked_by,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Report summarises a run in execution order.
type Report struct {
	RunID   string   `json:"run_id"`
	Results []Result `json:"results"`
}

// Result returns the result for the named stage.
func (r Report) Result(name string) (Result, bool) {
	for _, res := range r.Results {
		if res.Stage == name {
			return res, true
		}
	}
	return Result{}, false
}

// Ran lists the stages whose install action executed.
func (r Report) Ran() []string {
	var out []string
	for _, res := range r.Results {
		if res.Installed {
			out = append(out, res.Stage)
		}
	}
	return out
}

// AllSkipped reports whether every stage was already satisfied.
func (r Report) AllSkipped() bool {
	for _, res := range r.Results {
		if res.State != StateSkipped {
			return false
		}
	}
	return len(r.Results) > 0
}

// Failed returns the failed stage, if any.
func (r Report) Failed() (Result, bool) {
	for _, res := range r.Results {
		if res.State == StateFailed {
			return res, true
		}
	}
	return Result{}, false
}

// Commands totals external commands issued by stage actions.
func (r Report) Commands() int {
	total := 0
	for _, res := range r.Results {
		total += res.Commands
	}
	return total
}
