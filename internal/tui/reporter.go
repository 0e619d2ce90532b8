package tui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"edasetup/internal/orchestrator"
)

// StageReporter adapts orchestrator lifecycle callbacks to row updates for
// the progress model.
type StageReporter struct {
	send func(tea.Msg)
}

// NewStageReporter returns a reporter that forwards updates through send.
func NewStageReporter(send func(tea.Msg)) *StageReporter {
	return &StageReporter{send: send}
}

func (r *StageReporter) StageStarted(name string, st orchestrator.StageState) {
	r.send(RowUpdateMsg{
		Key:    name,
		Fields: map[string]string{"STATUS": string(st), "DETAIL": startedDetail(st)},
	})
}

func (r *StageReporter) StageFinished(res orchestrator.Result) {
	r.send(RowUpdateMsg{
		Key:    res.Stage,
		Fields: map[string]string{"STATUS": string(res.State), "DETAIL": ResultDetail(res)},
	})
}

// PlainReporter writes one line per stage transition, for logs and
// non-interactive terminals.
type PlainReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPlainReporter returns a reporter writing to w.
func NewPlainReporter(w io.Writer) *PlainReporter {
	return &PlainReporter{w: w}
}

func (r *PlainReporter) StageStarted(name string, st orchestrator.StageState) {
	if st != orchestrator.StateRunning {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "==> %s: installing\n", name)
}

func (r *PlainReporter) StageFinished(res orchestrator.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "==> %s: %s", res.Stage, res.State)
	if detail := ResultDetail(res); detail != "" {
		fmt.Fprintf(r.w, " (%s)", detail)
	}
	fmt.Fprintln(r.w)
}

func startedDetail(st orchestrator.StageState) string {
	if st == orchestrator.StateRunning {
		return "installing"
	}
	return "checking"
}

// ResultDetail summarises a stage result in a few words.
func ResultDetail(res orchestrator.Result) string {
	switch res.State {
	case orchestrator.StateSkipped:
		detail := "already installed"
		if res.Tested {
			detail += ", self-test passed"
		}
		return detail
	case orchestrator.StateDone:
		detail := fmt.Sprintf("installed in %s", formatElapsed(res.Duration))
		if res.Tested {
			detail += ", self-test passed"
		}
		return detail
	case orchestrator.StateFailed:
		return fmt.Sprintf("exit code %d, see %s", res.ExitCode, res.LogPath)
	case orchestrator.StateBlocked:
		return "blocked by " + res.BlockedBy
	case orchestrator.StatePending:
		return strings.TrimSpace(res.Error)
	}
	return ""
}
