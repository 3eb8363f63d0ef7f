package ui

import (
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Multi renders several progress bars at once, one per pipeline.
type Multi struct {
	progress *mpb.Progress
}

// NewMulti creates a multi-bar container. In JSON mode bars are no-ops.
func NewMulti() *Multi {
	if jsonFlag {
		return &Multi{}
	}
	return &Multi{progress: mpb.New(mpb.WithWidth(48), mpb.WithOutput(stderr))}
}

// AddBar adds a 0..100 bar named name.
func (m *Multi) AddBar(name string) ProgressView {
	if m.progress == nil {
		return nopView{}
	}
	bar := m.progress.AddBar(100,
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
			decor.Percentage(decor.WC{W: 5}),
		),
		mpb.AppendDecorators(
			decor.OnAbort(
				decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 8}), " done"),
				" failed",
			),
		),
	)
	return &multiBar{bar: bar}
}

// Close waits for all bars to render their final state.
func (m *Multi) Close() {
	if m.progress == nil {
		return
	}
	if IsTerminal() {
		m.progress.Wait()
	} else {
		m.progress.Shutdown()
	}
}

type multiBar struct {
	bar *mpb.Bar
}

func (b *multiBar) Update(percent int) {
	b.bar.SetCurrent(int64(percent))
}

func (b *multiBar) Done(success bool) {
	if success {
		b.bar.SetCurrent(100)
		return
	}
	b.bar.Abort(false)
}
