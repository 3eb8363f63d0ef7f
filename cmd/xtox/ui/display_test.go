package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, noColor, jsonMode bool) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)
	InitUI(noColor, false, jsonMode)
	t.Cleanup(func() {
		SetOutput(&bytes.Buffer{}, &bytes.Buffer{})
		InitUI(false, false, false)
	})
	return &out, &errOut
}

func TestMessages(t *testing.T) {
	out, errOut := capture(t, true, false)

	Success("saved %s", "paper.pdf")
	Error("upload failed")
	Debug("hidden")

	assert.Equal(t, "✓ saved paper.pdf\n", out.String())
	assert.Equal(t, "✗ upload failed\n", errOut.String())
}

func TestJSONModeSilencesHumanOutput(t *testing.T) {
	out, errOut := capture(t, true, true)

	Success("x")
	Error("y")
	Table([]string{"a"}, [][]string{{"b"}})
	List("Warnings", []string{"w"})

	assert.Empty(t, out.String())
	assert.Empty(t, errOut.String())
}

func TestTableAndList(t *testing.T) {
	out, _ := capture(t, true, false)

	Table([]string{"Field", "Value"}, [][]string{{"Job ID", "abc"}})
	List("Errors", nil)
	List("Warnings", []string{"first", "second"})

	assert.Equal(t, "Field   Value\n-----   -----\nJob ID  abc\nWarnings:\n  • first\n  • second\n", out.String())
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{10 * 1024 * 1024, "10.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSize(tt.n))
	}
}

func TestNopViewInJSONMode(t *testing.T) {
	capture(t, true, true)
	view := NewProgressBar("document")
	_, ok := view.(nopView)
	assert.True(t, ok)
	view.Update(50)
	view.Done(true)
}
