package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical/xtox/cmd/xtox/ui"
	"github.com/spherical/xtox/internal/domain"
)

var (
	audioFormat     string
	audioBitrate    string
	audioSampleRate int
	audioNoDownload bool
	audioOutputDir  string
)

var audioCmd = &cobra.Command{
	Use:   "audio <file>",
	Short: "Re-encode an audio file",
	Long: fmt.Sprintf(`Upload an audio file (%s; 50MB max by default) and save
the re-encoded result.

Target formats: %s
Bitrates:       %s
Sample rate:    %d-%d Hz, or 0 to keep the source rate`,
		strings.Join(domain.AudioExtensions, " "),
		joinFormats(), joinBitrates(),
		domain.MinSampleRate, domain.MaxSampleRate),
	Args: cobra.ExactArgs(1),
	RunE: runAudio,
}

func init() {
	audioCmd.Flags().StringVarP(&audioFormat, "format", "f", "", "target format (default from config: mp3)")
	audioCmd.Flags().StringVarP(&audioBitrate, "bitrate", "b", "", "target bitrate (default from config: 192k)")
	audioCmd.Flags().IntVarP(&audioSampleRate, "sample-rate", "r", 0, "target sample rate in Hz, 0 keeps the source rate")
	audioCmd.Flags().BoolVar(&audioNoDownload, "no-download", false, "convert only, do not save the result")
	audioCmd.Flags().StringVarP(&audioOutputDir, "output", "o", "", "directory to save the result in")
	rootCmd.AddCommand(audioCmd)
}

func audioOptionsFromFlags(cmd *cobra.Command) domain.AudioOptions {
	opts := cfg.AudioDefaults()
	if audioFormat != "" {
		opts.TargetFormat = domain.AudioFormat(strings.ToLower(audioFormat))
	}
	if audioBitrate != "" {
		opts.Bitrate = domain.Bitrate(strings.ToLower(audioBitrate))
	}
	if cmd.Flags().Changed("sample-rate") {
		opts.SampleRate = audioSampleRate
	}
	return opts
}

func runAudio(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := audioOptionsFromFlags(cmd)
	if err := opts.Validate(); err != nil {
		return err
	}

	a, err := newApp(ctx, audioOutputDir)
	if err != nil {
		return err
	}
	defer a.Close()

	events := make(chan domain.Event, 32)
	o, err := a.audioOrchestrator(events)
	if err != nil {
		return err
	}

	ui.Step("Converting %s to %s at %s", args[0], opts.TargetFormat, opts.Bitrate)
	res, err := runFlow(ctx, o, events, args[0], opts, flowOptions{download: !audioNoDownload})
	report(res)
	return err
}

func joinFormats() string {
	parts := make([]string, len(domain.AudioFormats))
	for i, f := range domain.AudioFormats {
		parts[i] = string(f)
	}
	return strings.Join(parts, " ")
}

func joinBitrates() string {
	parts := make([]string, len(domain.Bitrates))
	for i, b := range domain.Bitrates {
		parts[i] = string(b)
	}
	return strings.Join(parts, " ")
}
