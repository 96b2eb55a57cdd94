package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	progressSpinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))
	progressElapsedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	progressWarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

type workFinishedMsg struct{}

type workInterruptedMsg struct{}

// progressModel only draws. The work it reports on runs outside the program
// and ends it with workFinishedMsg.
type progressModel struct {
	spinner     spinner.Model
	label       string
	limit       time.Duration
	started     time.Time
	now         func() time.Time
	interrupted bool
	finished    bool
}

func newProgressModel(label string, limit time.Duration, now func() time.Time) progressModel {
	return progressModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(progressSpinnerStyle)),
		label:   label,
		limit:   limit,
		started: now(),
		now:     now,
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case workInterruptedMsg:
		m.interrupted = true
		return m, nil
	case workFinishedMsg:
		m.finished = true
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m progressModel) View() string {
	if m.finished {
		return ""
	}

	elapsed := m.now().Sub(m.started).Truncate(time.Second)
	if m.interrupted {
		return fmt.Sprintf("%s %s %s", m.spinner.View(),
			progressWarnStyle.Render("Interrupted, stopping the service..."),
			progressElapsedStyle.Render(elapsed.String()))
	}

	clock := elapsed.String()
	if m.limit > 0 {
		clock += " / " + m.limit.String()
	}
	return fmt.Sprintf("%s %s %s", m.spinner.View(), m.label, progressElapsedStyle.Render(clock))
}

// runWithProgress draws a spinner with elapsed time on output while work
// runs. Cancelling ctx is passed to work and shown in the view, but the call
// returns only once work has returned, so its cleanup always completes.
func runWithProgress(ctx context.Context, output io.Writer, label string, limit time.Duration, work func(context.Context) error) error {
	p := tea.NewProgram(
		newProgressModel(label, limit, time.Now),
		tea.WithInput(nil),
		tea.WithOutput(output),
		tea.WithoutSignalHandler(),
	)

	result := make(chan error, 1)
	go func() {
		result <- work(ctx)
		p.Send(workFinishedMsg{})
	}()

	stopWatching := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			p.Send(workInterruptedMsg{})
		case <-stopWatching:
		}
	}()

	_, runErr := p.Run()
	close(stopWatching)

	if err := <-result; err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("render progress: %w", runErr)
	}
	return nil
}
