package commands

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/xtox/cmd/xtox/ui"
	"github.com/spherical/xtox/internal/config"
	"github.com/spherical/xtox/internal/credentials"
	"github.com/spherical/xtox/internal/observability"
	"github.com/spherical/xtox/internal/stubserver"
)

// withConvertEnv points the package configuration at a stub service and
// restores every global the convert command reads.
func withConvertEnv(t *testing.T) (outDir, srcDir string) {
	t.Helper()

	srv := httptest.NewServer(stubserver.New(stubserver.Config{}).Handler())
	t.Cleanup(srv.Close)

	c := config.DefaultConfig()
	c.Service.BaseURL = srv.URL + "/api"
	c.Credentials.Driver = credentials.DriverMemory
	c.Progress.ResetDelay = 0

	prevCfg, prevLogger := cfg, logger
	cfg, logger = c, observability.Nop()
	ui.InitUI(true, false, true)
	t.Cleanup(func() {
		cfg, logger = prevCfg, prevLogger
		ui.InitUI(false, false, false)
		convertTex, convertAudio, convertOutputDir = "", "", ""
		convertNoDownload, convertAutoFix = false, false
		audioFormat, audioBitrate, audioSampleRate = "", "", 0
	})

	return t.TempDir(), t.TempDir()
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunConvert_BothPipelines(t *testing.T) {
	outDir, srcDir := withConvertEnv(t)
	convertTex = writeSource(t, srcDir, "paper.tex", validTex)
	convertAudio = writeSource(t, srcDir, "voice.ogg", "OggS payload")
	convertOutputDir = outDir
	audioFormat = "flac"

	require.NoError(t, runConvert(convertCmd, nil))

	assert.FileExists(t, filepath.Join(outDir, "paper.pdf"))
	assert.FileExists(t, filepath.Join(outDir, "voice.flac"))
}

func TestRunConvert_FailureDoesNotStopOtherPipeline(t *testing.T) {
	outDir, srcDir := withConvertEnv(t)
	convertTex = writeSource(t, srcDir, "broken.tex", "no structure")
	convertAudio = writeSource(t, srcDir, "voice.ogg", "OggS payload")
	convertOutputDir = outDir

	err := runConvert(convertCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document:")
	assert.NotContains(t, err.Error(), "audio:")

	assert.NoFileExists(t, filepath.Join(outDir, "broken.pdf"))
	assert.FileExists(t, filepath.Join(outDir, "voice.mp3"))
}

func TestRunConvert_RequiresInput(t *testing.T) {
	withConvertEnv(t)
	assert.Error(t, runConvert(convertCmd, nil))
}
