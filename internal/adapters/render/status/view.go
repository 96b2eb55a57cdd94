package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/assistant-continuity/internal/application"
	"github.com/bnema/assistant-continuity/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

const deadlineBarWidth = 20

type RenderOptions struct {
	Now time.Time
	// StaleAfter flags a recap that has not been updated for this long. Zero
	// disables the check.
	StaleAfter time.Duration
}

func renderView(status application.Status, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Assistant Status"),
		headerLine(status, opts, s),
	}

	lines = append(lines,
		s.section.Render(serviceLine(status, s)),
		taskLine(status.Task, opts, s),
	)

	if summary := firstLine(status.CurrentState); summary != "" {
		lines = append(lines, s.label.Render("state: ")+s.detail.Render(summary))
	}

	lines = append(lines, s.section.Render(s.label.Render(fmt.Sprintf("child tasks: %d", len(status.Tracked)))))
	if len(status.Tracked) == 0 {
		lines = append(lines, s.empty.Render("No child tasks running."))
	}
	for _, task := range status.Tracked {
		lines = append(lines, trackedLine(task, opts, s))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func headerLine(status application.Status, opts RenderOptions, s styles) string {
	line := s.header.Render(fmt.Sprintf("sessions: %d", status.TotalSessions))
	if status.LastUpdated.IsZero() {
		return line
	}

	line += s.header.Render(fmt.Sprintf(" | last update %s", formatSince(status.LastUpdated, opts.Now)))
	if isStale(status.LastUpdated, opts) {
		line += " " + s.warning.Render("[stale]")
	}

	return line
}

func serviceLine(status application.Status, s styles) string {
	name := status.ServiceName
	if strings.TrimSpace(name) == "" {
		name = "service"
	}

	return s.label.Render(name+": ") + stateStyle(status.Service, s).Render(status.Service.Label())
}

func stateStyle(state domain.ServiceState, s styles) lipgloss.Style {
	switch state {
	case domain.ServiceRunning:
		return s.running
	case domain.ServiceStopped:
		return s.stopped
	case domain.ServiceStarting, domain.ServiceStopping:
		return s.transition
	default:
		return s.warning
	}
}

func taskLine(task domain.ActiveTask, opts RenderOptions, s styles) string {
	if task.IsZero() {
		return s.label.Render("task: ") + s.empty.Render("none")
	}

	line := s.label.Render("task: ") + s.detail.Render(task.Description)
	if !task.StartedAt.IsZero() && !opts.Now.IsZero() {
		line += " " + s.taskMeta.Render(fmt.Sprintf("(for %s)", formatDuration(opts.Now.Sub(task.StartedAt))))
	}

	return line
}

func trackedLine(task domain.TrackedTask, opts RenderOptions, s styles) string {
	parts := []string{
		s.taskName.Render(task.Name),
		" ",
		s.taskMeta.Render(fmt.Sprintf("pid %d", task.PID)),
	}

	if !opts.Now.IsZero() && !task.StartedAt.IsZero() {
		parts = append(parts, " ", s.taskMeta.Render("up "+formatDuration(opts.Now.Sub(task.StartedAt))))
	}

	if task.HasDeadline() && !opts.Now.IsZero() {
		parts = append(parts, " ", deadlineBar(task, opts.Now, s), " ", deadlineLabel(task, opts.Now, s))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

// deadlineBar fills with the share of the timeout still available.
func deadlineBar(task domain.TrackedTask, now time.Time, s styles) string {
	total := task.Deadline.Sub(task.StartedAt)
	if total <= 0 {
		return renderProgressBar(0, deadlineBarWidth, s)
	}

	left := float64(task.Deadline.Sub(now)) / float64(total)
	return renderProgressBar(left, deadlineBarWidth, s)
}

func deadlineLabel(task domain.TrackedTask, now time.Time, s styles) string {
	if task.Expired(now) {
		return s.warning.Render("deadline passed")
	}

	remaining := task.Deadline.Sub(now)
	total := task.Deadline.Sub(task.StartedAt)
	color := interpolateColor(total.Seconds()-remaining.Seconds(), 0, total.Seconds())

	return lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("%s left", formatDuration(remaining)))
}

func renderProgressBar(leftFraction float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampFraction(leftFraction)))
	fillSegment := s.barFill.Render(strings.Repeat("=", filled))
	emptySegment := s.barEmpty.Render(strings.Repeat("-", width-filled))

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		fillSegment,
		emptySegment,
		s.barBracket.Render("]"),
	)
}

func clampFraction(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func isStale(lastUpdated time.Time, opts RenderOptions) bool {
	if opts.StaleAfter <= 0 || opts.Now.IsZero() {
		return false
	}
	return opts.Now.Sub(lastUpdated) > opts.StaleAfter
}

func formatSince(at, now time.Time) string {
	if now.IsZero() {
		return at.Format(time.RFC3339)
	}
	if at.After(now) {
		return "just now"
	}
	return formatDuration(now.Sub(at)) + " ago"
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}

	days := int(d.Hours() / 24)
	suffix := "days"
	if days == 1 {
		suffix = "day"
	}
	return fmt.Sprintf("%d %s", days, suffix)
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return strings.TrimSpace(text[:idx])
	}
	return text
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp: 240 is faded, 255 is bright white.
	baseColor := 240.0
	targetColor := 255.0

	return lipgloss.Color(fmt.Sprintf("%d", int(baseColor+(targetColor-baseColor)*normalized)))
}
