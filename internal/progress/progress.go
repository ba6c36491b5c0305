// Package progress renders a line-based transfer progress bar: the
// non-interactive fallback for the copy TUI, used for recovered jobs and
// --no-tui runs where nothing subscribes to the interactive view.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const barWidth = 50

// Bar is a single-line progress bar that redraws in place.
type Bar struct {
	mu          sync.Mutex
	total       int64
	current     int64
	description string
	writer      io.Writer
	startTime   time.Time
	lastUpdate  time.Time
	updateRate  time.Duration
}

// NewBar creates a Bar counting up to total.
func NewBar(total int64, description string, writer io.Writer) *Bar {
	return &Bar{
		total:       total,
		description: description,
		writer:      writer,
		startTime:   time.Now(),
		updateRate:  100 * time.Millisecond,
	}
}

// Add advances the bar by n, clamped to the total. Redraws are rate
// limited so a chatty transfer doesn't flood the terminal.
func (b *Bar) Add(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current += n
	if b.current > b.total {
		b.current = b.total
	}

	now := time.Now()
	if b.current < b.total && now.Sub(b.lastUpdate) < b.updateRate {
		return
	}
	b.lastUpdate = now
	b.render()
}

// Set moves the bar to an absolute position, clamped to the total.
func (b *Bar) Set(current int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = current
	if b.current > b.total {
		b.current = b.total
	}
	b.render()
}

// Finish snaps the bar to 100% and moves to the next line.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current = b.total
	b.render()
	fmt.Fprintln(b.writer)
}

func (b *Bar) render() {
	if b.writer == nil {
		return
	}

	percent := float64(b.current) / float64(b.total) * 100
	filled := int(float64(barWidth) * float64(b.current) / float64(b.total))

	eta := "calculating..."
	if b.current > 0 {
		rate := float64(b.current) / time.Since(b.startTime).Seconds()
		remaining := time.Duration(float64(b.total-b.current)/rate) * time.Second
		eta = formatDuration(remaining)
	}

	fmt.Fprintf(b.writer, "\r\033[K%s [%s%s] %.1f%% (%d/%d) ETA: %s",
		b.description,
		strings.Repeat("█", filled), strings.Repeat("░", barWidth-filled),
		percent, b.current, b.total, eta)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
