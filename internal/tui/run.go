package tui

import (
	"context"
	"errors"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrAborted is returned by RunWithWork when the operator pressed ctrl+c.
var ErrAborted = errors.New("interrupted by operator")

// RunWithWork starts a bubbletea program, runs workFn in a goroutine and
// blocks until both have finished. Interrupting the display cancels the
// context handed to workFn.
func RunWithWork(ctx context.Context, out io.Writer, model ProgressModel, workFn func(ctx context.Context, send func(tea.Msg))) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(model, tea.WithOutput(out), tea.WithContext(ctx))
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		// Let bubbletea start its event loop and render the initial frame.
		time.Sleep(50 * time.Millisecond)
		workFn(ctx, p.Send)
		p.Send(WorkDoneMsg{})
	}()

	finalModel, err := p.Run()
	cancel()
	<-finished
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := finalModel.(ProgressModel); ok {
		return finalError(m)
	}
	return nil
}

func finalError(m ProgressModel) error {
	switch {
	case m.Err() != nil:
		return m.Err()
	case m.Aborted():
		return ErrAborted
	}
	return nil
}
