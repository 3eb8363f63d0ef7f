package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
)

// ProgressView receives simulated progress for one submission.
type ProgressView interface {
	Update(percent int)
	Done(success bool)
}

// ProgressBar wraps a progressbar instance for percentage display.
type ProgressBar struct {
	bar *progressbar.ProgressBar
	out io.Writer
}

// NewProgressBar creates a 0..100 bar labelled with description. The bar
// shows simulated progress, so no rate or ETA is rendered.
func NewProgressBar(description string) ProgressView {
	if jsonFlag {
		return nopView{}
	}
	out := stderr
	bar := progressbar.NewOptions(
		100,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionEnableColorCodes(!noColorFlag),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionThrottle(50*time.Millisecond),
	)
	return &ProgressBar{bar: bar, out: out}
}

// Update moves the bar to percent.
func (p *ProgressBar) Update(percent int) {
	_ = p.bar.Set(percent)
}

// Done completes the bar on success and clears it on failure.
func (p *ProgressBar) Done(success bool) {
	if !success {
		_ = p.bar.Clear()
		return
	}
	_ = p.bar.Finish()
	fmt.Fprintln(p.out)
}

type nopView struct{}

func (nopView) Update(int) {}
func (nopView) Done(bool)  {}

// Spinner wraps a spinner instance for indeterminate progress display.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a new spinner with the given message.
func NewSpinner(message string) *Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = stderr
	return &Spinner{spinner: s}
}

// Start starts the spinner animation. It does nothing in JSON mode.
func (s *Spinner) Start() {
	if jsonFlag {
		return
	}
	s.spinner.Start()
}

// Stop stops the spinner animation and clears the line.
func (s *Spinner) Stop() {
	s.spinner.Stop()
}

// UpdateMessage updates the spinner's message.
func (s *Spinner) UpdateMessage(message string) {
	s.spinner.Lock()
	s.spinner.Suffix = " " + message
	s.spinner.Unlock()
}
