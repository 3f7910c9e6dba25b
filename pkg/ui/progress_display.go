package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay renders a one-line summary of a running batch
type ProgressDisplay struct {
	mu        sync.Mutex
	w         io.Writer
	total     int
	succeeded int
	failed    int
	retries   int
	startTime time.Time
	verbose   bool
	now       func() time.Time
}

// NewProgressDisplay creates a display for total jobs. In verbose mode each
// job is printed on its own line instead of redrawing the summary.
func NewProgressDisplay(w io.Writer, total int, verbose bool) *ProgressDisplay {
	if w == nil {
		w = Output()
	}
	return &ProgressDisplay{
		w:         w,
		total:     total,
		startTime: time.Now(),
		verbose:   verbose,
		now:       time.Now,
	}
}

// Retry records a failed attempt that will be retried.
func (p *ProgressDisplay) Retry(attempt uint, err error, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.retries++
	if p.verbose {
		fmt.Fprintf(p.w, "%s attempt %d failed: %v (next in %s)\n",
			Magenta("↻"), attempt, err, FormatDuration(delay))
		return
	}
	p.printProgress()
}

// Complete records a finished job.
func (p *ProgressDisplay) Complete(jobID int, attempts uint, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err != nil {
		p.failed++
	} else {
		p.succeeded++
	}

	if p.verbose {
		if err != nil {
			fmt.Fprintf(p.w, "%s job %d failed after %d attempts: %v\n", Red("✗"), jobID, attempts, err)
		} else {
			fmt.Fprintf(p.w, "%s job %d succeeded after %d attempts\n", Green("✓"), jobID, attempts)
		}
		return
	}
	p.printProgress()
}

// printProgress prints the minimal progress line
func (p *ProgressDisplay) printProgress() {
	done := p.succeeded + p.failed

	const barWidth = 20
	filled := 0
	if p.total > 0 {
		filled = done * barWidth / p.total
	}
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("[%s] %d/%d • %d retries • %s",
		bar, done, p.total, p.retries, p.calculateETA())
	if p.failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d failed", p.failed)))
	}

	fmt.Fprintf(p.w, "\r%s\r%s", strings.Repeat(" ", 80), line)
}

// Summary prints the final counts and returns the number of failed jobs.
func (p *ProgressDisplay) Summary() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := p.now().Sub(p.startTime)
	if !p.verbose {
		fmt.Fprintln(p.w)
	}

	mark := Green("✓")
	if p.failed > 0 {
		mark = Red("✗")
	}
	fmt.Fprintf(p.w, "%s %d/%d jobs succeeded in %s\n",
		mark, p.succeeded, p.total, FormatDuration(elapsed))
	if p.retries > 0 {
		fmt.Fprintf(p.w, "  %s %d retries\n", Dim("•"), p.retries)
	}
	if p.failed > 0 {
		fmt.Fprintf(p.w, "  %s %d jobs failed\n", Dim("•"), p.failed)
	}
	return p.failed
}

// calculateETA estimates time remaining
func (p *ProgressDisplay) calculateETA() string {
	done := p.succeeded + p.failed
	if done == 0 {
		return "calculating..."
	}

	elapsed := p.now().Sub(p.startTime)
	rate := float64(done) / elapsed.Seconds()
	if rate == 0 {
		return "calculating..."
	}

	remaining := p.total - done
	return FormatDuration(time.Duration(float64(remaining)/rate) * time.Second)
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
