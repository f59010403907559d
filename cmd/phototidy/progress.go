package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/jamesainslie/phototidy/cmd/phototidy/tui"
	"github.com/jamesainslie/phototidy/pkg/tidy/progress"
	"github.com/jamesainslie/phototidy/pkg/tidy/tuner"
)

// barRenderer draws one progressbar per phase from progress events.
type barRenderer struct {
	w     io.Writer
	bar   *progressbar.ProgressBar
	phase string
}

func newBarRenderer(w io.Writer) *barRenderer {
	return &barRenderer{w: w}
}

// Consume renders events until the channel is closed.
func (r *barRenderer) Consume(events <-chan progress.Event) {
	for ev := range events {
		r.handle(ev)
	}
	r.finish()
}

func (r *barRenderer) handle(ev progress.Event) {
	switch ev.Type {
	case progress.PhaseStart:
		r.finish()
		r.phase = ev.Phase
		total := ev.ItemsTotal
		if total <= 0 {
			total = -1 // spinner
		}
		r.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(r.w),
			progressbar.OptionSetDescription(ev.Phase),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "▓",
				SaucerPadding: "░",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)

	case progress.PhaseEnd:
		r.finish()
		fmt.Fprintf(r.w, "%s: %s (%s)\n", ev.Phase, ev.Status, ev.Elapsed.Round(time.Millisecond))
		r.phase = ""

	case progress.SlowNetworkWarning:
		if r.bar != nil {
			r.bar.Describe(r.phase + " (slow)")
		}

	case progress.FileDone, progress.FileProgress, progress.Heartbeat:
		if r.bar != nil && ev.Items > 0 {
			_ = r.bar.Set(ev.Items)
		}
	}
}

func (r *barRenderer) finish() {
	if r.bar == nil {
		return
	}
	_ = r.bar.Finish()
	fmt.Fprintln(r.w)
	r.bar = nil
}

// withProgress runs work with an emitter whose events are shown as a TUI,
// as progress bars on stderr, or not at all in quiet mode. cancel stops
// the work when the user quits the TUI.
func withProgress(title string, cancel context.CancelFunc, work func(em *progress.Emitter) error) error {
	if flagQuiet {
		return work(nil)
	}

	em := progress.NewEmitter(tuner.Auto().EventBuffer)
	if useTUI() {
		return tui.Run(title, em, cancel, func() error { return work(em) })
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		newBarRenderer(os.Stderr).Consume(em.Events())
	}()
	err := work(em)
	em.Close()
	<-done
	return err
}
