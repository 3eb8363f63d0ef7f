package stubserver

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/xtox/internal/apiclient"
	"github.com/spherical/xtox/internal/apierr"
	"github.com/spherical/xtox/internal/credentials"
	"github.com/spherical/xtox/internal/domain"
)

const validTex = `\documentclass{article}
\begin{document}
Hello
\end{document}
`

func setup(t *testing.T, cfg Config, token string) (*Server, *apiclient.Client, *credentials.MemoryStore) {
	t.Helper()
	stub := New(cfg)
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	store := credentials.NewMemoryStore(token)
	client, err := apiclient.NewClient(apiclient.Config{BaseURL: srv.URL + "/api", Credentials: store})
	require.NoError(t, err)
	return stub, client, store
}

func docQuery(autoFix bool) domain.Query {
	q, _ := domain.DocumentQuery(domain.DocumentOptions{AutoFix: autoFix})
	return q
}

func TestConvertDocument(t *testing.T) {
	stub, client, _ := setup(t, Config{}, "")
	ctx := context.Background()

	job, err := client.Submit(ctx, "/convert", domain.FileFromBytes("paper.tex", []byte(validTex)), docQuery(false))
	require.NoError(t, err)
	assert.True(t, job.Success)
	assert.Equal(t, "paper", job.Filename)
	assert.NotEmpty(t, job.ID)

	stored, ok := stub.Job(job.ID)
	require.True(t, ok)
	assert.Equal(t, job.ID, stored.ID)

	polled, err := client.FetchStatus(ctx, "/conversion", job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, polled.ID)

	pdf, err := client.FetchArtifact(ctx, "/download", job.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))

	// Audio routes don't see document jobs.
	_, err = client.FetchArtifact(ctx, "/download-audio", job.ID)
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

func TestConvertDocument_LintAndAutoFix(t *testing.T) {
	_, client, _ := setup(t, Config{}, "")
	ctx := context.Background()
	broken := domain.FileFromBytes("broken.tex", []byte(`\documentclass{article} hi`))

	job, err := client.Submit(ctx, "/convert", broken, docQuery(false))
	require.NoError(t, err)
	assert.False(t, job.Success)
	assert.Equal(t, []string{`Missing \begin{document}`, `Missing \end{document}`}, job.Errors)

	_, err = client.FetchArtifact(ctx, "/download", job.ID)
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))

	job, err = client.Submit(ctx, "/convert", broken, docQuery(true))
	require.NoError(t, err)
	assert.True(t, job.Success)
	assert.True(t, job.AutoFixApplied)
	assert.Len(t, job.Warnings, 2)
}

func TestConvertDocument_Rejections(t *testing.T) {
	_, client, _ := setup(t, Config{MaxDocumentSize: 1 << 20}, "")
	ctx := context.Background()

	_, err := client.Submit(ctx, "/convert", domain.FileFromBytes("paper.txt", []byte("x")), docQuery(false))
	ce, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindValidation, ce.Kind)
	assert.Equal(t, "Only .tex files are supported", ce.Message)

	_, err = client.Submit(ctx, "/convert", domain.FileFromBytes("big.tex", bytes.Repeat([]byte("a"), 2<<20)), docQuery(false))
	ce, ok = apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindPayloadTooLarge, ce.Kind)
	assert.Equal(t, "File size exceeds 1MB limit", ce.Message)

	bad := domain.Query{}.Add("auto_fix", "maybe")
	_, err = client.Submit(ctx, "/convert", domain.FileFromBytes("paper.tex", []byte(validTex)), bad)
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
}

func TestConvertAudio(t *testing.T) {
	_, client, _ := setup(t, Config{}, "")
	ctx := context.Background()

	q, err := domain.AudioQuery(domain.AudioOptions{TargetFormat: domain.FormatWAV, Bitrate: domain.Bitrate256k, SampleRate: 44100})
	require.NoError(t, err)

	job, err := client.Submit(ctx, "/convert-audio", domain.FileFromBytes("voice.opus", bytes.Repeat([]byte{1}, 64000)), q)
	require.NoError(t, err)
	assert.True(t, job.Success)
	assert.Equal(t, "voice", job.Filename)
	assert.Equal(t, "wav", job.TargetFormat)
	require.NotNil(t, job.Duration)
	assert.Equal(t, 2.0, *job.Duration)
	require.NotNil(t, job.FileSizeKB)

	data, err := client.FetchArtifact(ctx, "/download-audio", job.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "XTOX-STUB wav 256k 44100\n"))

	polled, err := client.FetchStatus(ctx, "/audio-conversion", job.ID)
	require.NoError(t, err)
	assert.Equal(t, "wav", polled.TargetFormat)
}

func TestConvertAudio_BadOptions(t *testing.T) {
	_, client, _ := setup(t, Config{}, "")
	file := domain.FileFromBytes("voice.mp3", []byte("ID3"))

	q := domain.Query{}.Add("target_format", "wma").Add("bitrate", "192k")
	_, err := client.Submit(context.Background(), "/convert-audio", file, q)
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))

	q = domain.Query{}.Add("target_format", "mp3").Add("bitrate", "192k").Add("sample_rate", "1")
	_, err = client.Submit(context.Background(), "/convert-audio", file, q)
	assert.Equal(t, apierr.KindValidation, apierr.KindOf(err))
}

func TestAuth(t *testing.T) {
	_, client, store := setup(t, Config{Token: "good"}, "bad")

	_, err := client.FetchStatus(context.Background(), "/conversion", "x")
	ce, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindAuthentication, ce.Kind)
	assert.Equal(t, "Invalid authentication credentials", ce.Message)

	tok, _ := store.Get(context.Background())
	assert.Empty(t, tok)

	require.NoError(t, store.Set(context.Background(), "good"))
	_, err = client.FetchStatus(context.Background(), "/conversion", "x")
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}

func TestFailNext(t *testing.T) {
	stub, client, _ := setup(t, Config{}, "")
	stub.FailNext("/convert", http.StatusForbidden, "Quota exhausted")
	stub.FailNext("/download", http.StatusInternalServerError, "")
	ctx := context.Background()
	file := domain.FileFromBytes("paper.tex", []byte(validTex))

	_, err := client.Submit(ctx, "/convert", file, docQuery(false))
	ce, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindAuthorization, ce.Kind)
	assert.Equal(t, "Quota exhausted", ce.Message)

	job, err := client.Submit(ctx, "/convert", file, docQuery(false))
	require.NoError(t, err)

	_, err = client.FetchArtifact(ctx, "/download", job.ID)
	assert.Equal(t, apierr.KindServer, apierr.KindOf(err))

	_, err = client.FetchArtifact(ctx, "/download", job.ID)
	assert.NoError(t, err)
}

func TestTraceHeaderEchoed(t *testing.T) {
	stub := New(Config{})
	srv := httptest.NewServer(stub.Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "trace-1")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "trace-1", resp.Header.Get("X-Request-ID"))
	assert.Equal(t, []string{"trace-1"}, stub.Requests())
}

func TestRenderPDF(t *testing.T) {
	pdf := string(RenderPDF(`a (b) \ c`))
	assert.True(t, strings.HasPrefix(pdf, "%PDF-1.4\n"))
	assert.Contains(t, pdf, `(a \(b\) \\ c) Tj`)
	assert.True(t, strings.HasSuffix(pdf, "%%EOF\n"))
}
