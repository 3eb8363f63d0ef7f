package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/spherical/xtox/cmd/xtox/ui"
	"github.com/spherical/xtox/internal/domain"
	"github.com/spherical/xtox/internal/orchestrator"
)

var (
	convertTex        string
	convertAudio      string
	convertAutoFix    bool
	convertNoDownload bool
	convertOutputDir  string
)

var convertCmd = &cobra.Command{
	Use:   "convert --tex <file.tex> --audio <file>",
	Short: "Run the document and audio pipelines side by side",
	Long: `Submit a LaTeX source and an audio file at the same time. Each pipeline
has its own progress bar; a failure in one does not stop the other.

Audio options default to the configured values.`,
	Args: cobra.NoArgs,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertTex, "tex", "", "LaTeX source to convert")
	convertCmd.Flags().StringVar(&convertAudio, "audio", "", "audio file to re-encode")
	convertCmd.Flags().BoolVar(&convertAutoFix, "auto-fix", false, "let the service repair common LaTeX problems")
	convertCmd.Flags().StringVarP(&audioFormat, "format", "f", "", "audio target format")
	convertCmd.Flags().StringVarP(&audioBitrate, "bitrate", "b", "", "audio target bitrate")
	convertCmd.Flags().IntVarP(&audioSampleRate, "sample-rate", "r", 0, "audio sample rate in Hz, 0 keeps the source rate")
	convertCmd.Flags().BoolVar(&convertNoDownload, "no-download", false, "convert only, do not save results")
	convertCmd.Flags().StringVarP(&convertOutputDir, "output", "o", "", "directory to save results in")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	if convertTex == "" && convertAudio == "" {
		return fmt.Errorf("nothing to convert: pass --tex, --audio or both")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	audioOpts := audioOptionsFromFlags(cmd)
	if convertAudio != "" {
		if err := audioOpts.Validate(); err != nil {
			return err
		}
	}
	docOpts := cfg.DocumentDefaults()
	if cmd.Flags().Changed("auto-fix") {
		docOpts.AutoFix = convertAutoFix
	}

	a, err := newApp(ctx, convertOutputDir)
	if err != nil {
		return err
	}
	defer a.Close()

	// Build every orchestrator before any flow starts.
	var (
		docEvents   chan domain.Event
		audioEvents chan domain.Event
		docO        *orchestrator.Orchestrator[domain.DocumentOptions]
		audioO      *orchestrator.Orchestrator[domain.AudioOptions]
	)
	if convertTex != "" {
		docEvents = make(chan domain.Event, 32)
		if docO, err = a.documentOrchestrator(docEvents); err != nil {
			return err
		}
	}
	if convertAudio != "" {
		audioEvents = make(chan domain.Event, 32)
		if audioO, err = a.audioOrchestrator(audioEvents); err != nil {
			return err
		}
	}

	multi := ui.NewMulti()
	fo := flowOptions{download: !convertNoDownload}
	var docRes, audioRes *result

	// Pipelines fail independently, so the group never cancels its siblings.
	var g errgroup.Group

	if docO != nil {
		docFo := fo
		docFo.view = multi.AddBar("document")
		g.Go(func() error {
			var err error
			docRes, err = runFlow(ctx, docO, docEvents, convertTex, docOpts, docFo)
			return err
		})
	}

	if audioO != nil {
		audioFo := fo
		audioFo.view = multi.AddBar("audio")
		g.Go(func() error {
			var err error
			audioRes, err = runFlow(ctx, audioO, audioEvents, convertAudio, audioOpts, audioFo)
			return err
		})
	}

	waitErr := g.Wait()
	multi.Close()

	var failures []error
	for _, res := range []*result{docRes, audioRes} {
		if res == nil {
			continue
		}
		report(res)
		if res.Error != "" {
			failures = append(failures, fmt.Errorf("%s: %s", res.Pipeline, res.Error))
		}
	}
	if len(failures) > 0 {
		return errors.Join(failures...)
	}
	return waitErr
}
