// Package progress draws file-processing progress on a terminal.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/schollz/progressbar/v3"
)

// Tracker wraps a progress bar for file processing.
type Tracker struct {
	bar   *progressbar.ProgressBar
	label string
	out   io.Writer
	count atomic.Int64
}

type trackerOptions struct {
	out   io.Writer
	quiet bool
}

// Option configures a Tracker.
type Option func(*trackerOptions)

// WithWriter draws to w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(o *trackerOptions) {
		o.out = w
	}
}

// WithQuiet suppresses drawing; counts are still kept.
func WithQuiet(quiet bool) Option {
	return func(o *trackerOptions) {
		o.quiet = quiet
	}
}

func resolve(opts []Option) trackerOptions {
	o := trackerOptions{out: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}
	if o.quiet {
		o.out = io.Discard
	}
	return o
}

// NewSpinner creates a spinner for operations with unknown total count,
// such as cloning a repository.
func NewSpinner(label string, opts ...Option) *Tracker {
	o := resolve(opts)
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(o.out),
		progressbar.OptionSetWidth(20),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	return &Tracker{bar: bar, label: label, out: o.out}
}

// NewTracker creates a progress bar with the given label and total count.
func NewTracker(label string, total int, opts ...Option) *Tracker {
	o := resolve(opts)
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(o.out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Tracker{bar: bar, label: label, out: o.out}
}

// Tick increments the progress by 1. Safe for concurrent use.
func (t *Tracker) Tick() {
	t.count.Add(1)
	_ = t.bar.Add(1)
}

// Describe replaces the label, e.g. with the file or stage being worked on.
func (t *Tracker) Describe(label string) {
	t.label = label
	t.bar.Describe(label)
}

// Count is the number of ticks so far.
func (t *Tracker) Count() int64 {
	return t.count.Load()
}

// FinishSuccess clears the bar completely (no output).
func (t *Tracker) FinishSuccess() {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
}

// FinishSkipped clears the bar and prints a skip message.
func (t *Tracker) FinishSkipped(reason string) {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
	fmt.Fprintf(t.out, "  %s skipped (%s)\n", t.label, reason)
}

// FinishError clears the bar and prints an error message.
func (t *Tracker) FinishError(err error) {
	_ = t.bar.Finish()
	_ = t.bar.Clear()
	fmt.Fprintf(t.out, "  %s error: %v\n", t.label, err)
}
