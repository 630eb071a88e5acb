package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/docker/go-units"
	"github.com/mattn/go-isatty"
	"golang.org/x/time/rate"

	"crash/internal/core"
	"crash/internal/download"
)

const redrawInterval = 100 * time.Millisecond

// newProgress renders one progress bar per download on w. Output that is not
// a terminal gets no bar.
func newProgress(w *os.File) core.Progress {
	if !isatty.IsTerminal(w.Fd()) && !isatty.IsCygwinTerminal(w.Fd()) {
		return nil
	}
	return func(name string) (download.ProgressFunc, func()) {
		bar := newProgressBar(w, name)
		return bar.update, bar.finish
	}
}

// progressBar redraws a single terminal line as bytes arrive.
type progressBar struct {
	w      io.Writer
	label  string
	bar    progress.Model
	redraw rate.Sometimes
	// open is set while the line holds a redraw without a trailing newline.
	open bool
}

func newProgressBar(w io.Writer, name string) *progressBar {
	return &progressBar{
		w:     w,
		label: titleStyle.Render(name),
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
		),
		redraw: rate.Sometimes{Interval: redrawInterval},
	}
}

func (p *progressBar) update(done, total int64) {
	if total > 0 && done >= total {
		p.draw(done, total)
		p.finish()
		return
	}
	p.redraw.Do(func() { p.draw(done, total) })
}

func (p *progressBar) draw(done, total int64) {
	p.open = true
	if total > 0 {
		pct := float64(done) / float64(total)
		fmt.Fprintf(p.w, "\r%s %s %s", p.label, p.bar.ViewAs(pct),
			dimStyle.Render(units.HumanSize(float64(done))+"/"+units.HumanSize(float64(total))))
		return
	}
	fmt.Fprintf(p.w, "\r%s %s", p.label, dimStyle.Render(units.HumanSize(float64(done))))
}

// finish ends the bar's line so later output starts on a fresh one.
func (p *progressBar) finish() {
	if p.open {
		fmt.Fprintln(p.w)
		p.open = false
	}
}
