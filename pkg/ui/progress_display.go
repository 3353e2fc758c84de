package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"hoopscraper/pkg/fetcher"
)

// ProgressDisplay shows fetch loop progress. On a terminal it redraws a
// single line; otherwise it prints one line per player.
type ProgressDisplay struct {
	mu          sync.Mutex
	out         io.Writer
	dataset     string
	total       int
	done        int
	rows        int
	failed      int
	resumed     int
	startTime   time.Time
	interactive bool
}

// NewProgressDisplay creates a progress display for total players
func NewProgressDisplay(out io.Writer, dataset string, total int, interactive bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:         out,
		dataset:     dataset,
		total:       total,
		startTime:   time.Now(),
		interactive: interactive,
	}
}

// SetTotal sets the number of players once they are known and restarts the
// clock used for the ETA
func (p *ProgressDisplay) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.startTime = time.Now()
}

// Observe records one finished player. It has the signature of a
// fetcher.Observer.
func (p *ProgressDisplay) Observe(pr fetcher.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.rows += pr.Rows
	if pr.Err != nil {
		p.failed++
	}
	if pr.Resumed {
		p.resumed++
	}

	if p.interactive {
		p.printProgress(pr)
		return
	}

	switch {
	case pr.Err != nil:
		fmt.Fprintf(p.out, "Count %d, %s failed: %v\n", pr.Index+1, pr.Subject.Name, pr.Err)
	default:
		fmt.Fprintf(p.out, "Count %d, Length %d\n", pr.Index+1, pr.Rows)
	}
}

// printProgress redraws the progress line
func (p *ProgressDisplay) printProgress(pr fetcher.Progress) {
	progress := 0.0
	if p.total > 0 {
		progress = float64(p.done) / float64(p.total)
	}
	barWidth := 20
	filled := int(progress * float64(barWidth))
	bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

	line := fmt.Sprintf("%s [%s] %d/%d • %d rows • %s",
		Cyan(p.dataset),
		bar,
		p.done,
		p.total,
		p.rows,
		p.calculateETA(),
	)
	if pr.Subject.Name != "" {
		line += " • " + pr.Subject.Name
	}
	if p.failed > 0 {
		line += " • " + Red(fmt.Sprintf("%d failed", p.failed))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// Complete prints the run summary
func (p *ProgressDisplay) Complete(output string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)
	if p.interactive {
		fmt.Fprintln(p.out)
	}

	fmt.Fprintf(p.out, "\n%s Wrote %d rows for %d players to %s\n",
		Green("✓"),
		p.rows,
		p.done-p.failed,
		output,
	)
	fmt.Fprintf(p.out, "  %s finished in %s\n", Dim("•"), formatDuration(elapsed))
	if p.resumed > 0 {
		fmt.Fprintf(p.out, "  %s %d players restored from checkpoint\n", Dim("•"), p.resumed)
	}
	if p.failed > 0 {
		fmt.Fprintf(p.out, "  %s %s\n", Dim("•"), Red(fmt.Sprintf("%d players failed", p.failed)))
	}
}

// calculateETA estimates time remaining
func (p *ProgressDisplay) calculateETA() string {
	if p.done == 0 || p.done >= p.total {
		return "eta --"
	}

	elapsed := time.Since(p.startTime)
	perItem := elapsed / time.Duration(p.done)
	return "eta " + formatDuration(perItem*time.Duration(p.total-p.done))
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
