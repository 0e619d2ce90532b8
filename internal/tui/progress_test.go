package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func update(t *testing.T, m ProgressModel, msg tea.Msg) (ProgressModel, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(ProgressModel), cmd
}

func TestStageRowUpdate(t *testing.T) {
	m := NewStageModel("", []string{"packages", "yosys"})

	m, _ = update(t, m, RowUpdateMsg{Key: "yosys", Fields: map[string]string{"STATUS": "running", "DETAIL": "build-from-source"}})
	m, _ = update(t, m, RowUpdateMsg{Key: "openram", Fields: map[string]string{"STATUS": "done"}})

	if got := m.rows[1].Fields; got[1] != "running" || got[2] != "build-from-source" {
		t.Errorf("yosys row = %v", got)
	}
	if got := m.rows[0].Fields[1]; got != "pending" {
		t.Errorf("packages STATUS = %q, want pending", got)
	}
	if len(m.rows) != 2 {
		t.Errorf("unknown stage must not add a row, got %d rows", len(m.rows))
	}
}

func TestStageViewAndFooter(t *testing.T) {
	m := NewStageModel("Installing into /tmp/eda", []string{"packages", "openroad", "openram"})
	m, _ = update(t, m, RowUpdateMsg{Key: "packages", Fields: map[string]string{"STATUS": "skipped"}})
	m, _ = update(t, m, RowUpdateMsg{Key: "openroad", Fields: map[string]string{"STATUS": "running"}})

	view := m.View()
	for _, want := range []string{"Installing into /tmp/eda", "STAGE", "STATUS", "DETAIL", "openroad", "running", "Installing 1/3 stages"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	m, cmd := update(t, m, WorkDoneMsg{})
	if !m.Done() || cmd == nil {
		t.Fatal("WorkDoneMsg must finish the model and quit")
	}
	if strings.Contains(m.View(), "Installing 1/3") {
		t.Error("footer must disappear once the run is done")
	}
	if _, cmd := update(t, m, tickMsg{}); cmd != nil {
		t.Error("no tick may be scheduled after done")
	}
}

func TestStageDetailIsClipped(t *testing.T) {
	m := NewStageModel("", []string{"openroad"})
	long := strings.Repeat("x", 80)
	m, _ = update(t, m, RowUpdateMsg{Key: "openroad", Fields: map[string]string{"STATUS": "failed", "DETAIL": long}})
	m, _ = update(t, m, WorkDoneMsg{})

	if strings.Contains(m.View(), long) {
		t.Error("detail wider than its column must be truncated")
	}
	if !strings.Contains(m.View(), strings.Repeat("x", 45)+"...") {
		t.Error("expected ellipsis at the DETAIL column width")
	}
}

func TestCtrlCAborts(t *testing.T) {
	m := NewStageModel("", []string{"packages"})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if m.Done() {
		t.Fatal("q must not stop a running install")
	}

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	if !m.Done() || !m.Aborted() || cmd == nil {
		t.Error("ctrl+c must abort and quit")
	}
	if err := finalError(m); !errors.Is(err, ErrAborted) {
		t.Errorf("finalError = %v, want ErrAborted", err)
	}
}

func TestFinalError(t *testing.T) {
	m := NewStageModel("", []string{"packages"})
	if err := finalError(m); err != nil {
		t.Errorf("finalError(running model) = %v", err)
	}
	boom := errors.New("boom")
	m, _ = update(t, m, ErrorMsg{Err: boom})
	if err := finalError(m); !errors.Is(err, boom) {
		t.Errorf("finalError = %v, want %v", err, boom)
	}
}

func TestProgressCountsIgnoresActiveRows(t *testing.T) {
	m := NewStageModel("", []string{"a", "b", "c", "d"})
	for key, status := range map[string]string{"a": "skipped", "b": "running", "c": "detecting"} {
		m, _ = update(t, m, RowUpdateMsg{Key: key, Fields: map[string]string{"STATUS": status}})
	}
	finished, total := m.progressCounts()
	if finished != 1 || total != 4 {
		t.Errorf("progressCounts() = %d/%d, want 1/4", finished, total)
	}
}
