package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/xtox/internal/apierr"
	"github.com/spherical/xtox/internal/domain"
	"github.com/spherical/xtox/internal/stubserver"
)

type fakeFetcher struct {
	routes []string
	data   []byte
	err    error
}

func (f *fakeFetcher) FetchArtifact(_ context.Context, route, jobID string) ([]byte, error) {
	f.routes = append(f.routes, route+"/"+jobID)
	return f.data, f.err
}

type failingSink struct{}

func (failingSink) Save(context.Context, string, []byte) (string, error) {
	return "", errors.New("disk full")
}

func TestDownload_SavesArtifact(t *testing.T) {
	fetcher := &fakeFetcher{data: []byte("%PDF-1.4")}
	sink := NewMemorySink()
	d := New(fetcher, sink, nil)

	loc, err := d.Download(context.Background(), "/download", "abc", "paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, "memory://paper.pdf", loc)
	assert.Equal(t, []string{"/download/abc"}, fetcher.routes)

	data, ok := sink.Get("paper.pdf")
	require.True(t, ok)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, []string{"paper.pdf"}, sink.Names())
}

func TestDownload_PassesClassifiedErrorThrough(t *testing.T) {
	notFound := apierr.Classify(apierr.Responded(404, []byte(`{"detail":"Conversion not found"}`)))
	d := New(&fakeFetcher{err: notFound}, NewMemorySink(), nil)

	_, err := d.Download(context.Background(), "/download-audio", "gone", "a.mp3")
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

func TestDownload_SinkFailure(t *testing.T) {
	d := New(&fakeFetcher{data: []byte("x")}, failingSink{}, nil)

	_, err := d.Download(context.Background(), "/download", "abc", "paper.pdf")
	assert.True(t, domain.IsType(err, domain.ErrorTypeIO))
	assert.Equal(t, "Failed to save paper.pdf", domain.UserMessage(err))
}

func TestDownload_RequiresJobID(t *testing.T) {
	fetcher := &fakeFetcher{}
	d := New(fetcher, NewMemorySink(), nil)

	_, err := d.Download(context.Background(), "/download", "", "x.pdf")
	assert.ErrorIs(t, err, domain.ErrNothingToDownload)
	assert.Empty(t, fetcher.routes)
}

func TestFileSink_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	sink := NewFileSink(dir, false)
	ctx := context.Background()

	first, err := sink.Save(ctx, "voice.wav", []byte("one"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "voice.wav"), first)

	second, err := sink.Save(ctx, "voice.wav", []byte("two"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "voice (1).wav"), second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".xtox-"), "temp file left behind: %s", e.Name())
	}
}

func TestFileSink_Overwrite(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir, true)

	_, err := sink.Save(context.Background(), "paper.pdf", []byte("old"))
	require.NoError(t, err)
	loc, err := sink.Save(context.Background(), "paper.pdf", []byte("new"))
	require.NoError(t, err)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestSanitize(t *testing.T) {
	tests := map[string]string{
		"paper.pdf":          "paper.pdf",
		"../../etc/passwd":   "passwd",
		`..\..\evil.pdf`:     "evil.pdf",
		"":                   "artifact",
		"..":                 "artifact",
		"nested/dir/out.mp3": "out.mp3",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitize(in), "input %q", in)
	}
}

func TestFileSink_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileSink(t.TempDir(), false).Save(ctx, "a.pdf", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInspectPDF(t *testing.T) {
	data := stubserver.RenderPDF("paper")

	info, err := InspectPDF(data)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pages)
	assert.Equal(t, int64(len(data)), info.Size)

	path := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	info, err = InspectPDFFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pages)
}

func TestInspectPDF_Rejects(t *testing.T) {
	_, err := InspectPDF([]byte("ID3 not a pdf"))
	assert.Error(t, err)

	_, err = InspectPDFFile(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}
