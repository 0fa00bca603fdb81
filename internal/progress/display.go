package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

const defaultWidth = 80

// Display renders progress for a terminal user. On a TTY it redraws a single
// bar line; otherwise it prints a plain line at every quarter.
type Display struct {
	label     string
	out       io.Writer
	tty       bool
	width     int
	quiet     bool
	startTime time.Time

	mu          sync.Mutex
	lastQuarter int
	drawn       bool
}

// New creates a display writing to out.
func New(label string, out io.Writer, quiet bool) *Display {
	d := &Display{
		label:       label,
		out:         out,
		width:       defaultWidth,
		quiet:       quiet,
		startTime:   time.Now(),
		lastQuarter: -1,
	}
	if f, ok := out.(*os.File); ok {
		fd := f.Fd()
		d.tty = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		if d.tty {
			if w, _, err := term.GetSize(int(fd)); err == nil && w > 0 {
				d.width = w
			}
		}
	}
	return d
}

// OnProgress implements Reporter.
func (d *Display) OnProgress(current, total int) {
	if d.quiet {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	pct := percent(current, total)
	if d.tty {
		d.drawn = true
		_, _ = fmt.Fprint(d.out, "\r"+d.barLine(current, total, pct))
		return
	}

	quarter := pct / 25
	if quarter == d.lastQuarter {
		return
	}
	d.lastQuarter = quarter
	_, _ = fmt.Fprintf(d.out, "%s: %d%% (%d/%d)\n", d.label, pct, current, total)
}

func (d *Display) barLine(current, total, pct int) string {
	suffix := fmt.Sprintf(" %3d%% (%d/%d) %s", pct, current, total, formatDuration(time.Since(d.startTime)))
	barWidth := d.width - len(d.label) - len(suffix) - 4
	if barWidth < 10 {
		return d.label + suffix
	}
	filled := barWidth * pct / 100
	return fmt.Sprintf("%s [%s%s]%s", d.label, strings.Repeat("#", filled), strings.Repeat(" ", barWidth-filled), suffix)
}

// Finish clears the bar and prints a final status line.
// Failures are always shown, even in quiet mode.
func (d *Display) Finish(ok bool, msg string) {
	if ok && d.quiet {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.drawn {
		_, _ = fmt.Fprint(d.out, "\r"+strings.Repeat(" ", d.width-1)+"\r")
	}
	elapsed := formatDuration(time.Since(d.startTime))
	if ok {
		_, _ = fmt.Fprintf(d.out, "%s complete (%s): %s\n", d.label, elapsed, msg)
		return
	}
	_, _ = fmt.Fprintf(d.out, "%s failed (%s): %s\n", d.label, elapsed, msg)
}

func percent(current, total int) int {
	if total <= 0 {
		return 100
	}
	return min(max(current*100/total, 0), 100)
}

// Pluralize returns singular or plural form based on count.
func Pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
