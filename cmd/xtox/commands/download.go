package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical/xtox/cmd/xtox/ui"
	"github.com/spherical/xtox/internal/domain"
	"github.com/spherical/xtox/internal/orchestrator"
)

var (
	downloadAudio     bool
	downloadName      string
	downloadFormat    string
	downloadOutputDir string
)

var downloadCmd = &cobra.Command{
	Use:   "download <job-id>",
	Short: "Save the artifact of an earlier conversion",
	Long: `Fetch the converted file of a finished job without resubmitting.

Without --name the job is looked up first so the file is saved under the
same name the conversion would have used.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().BoolVar(&downloadAudio, "audio", false, "the job belongs to the audio pipeline")
	downloadCmd.Flags().StringVarP(&downloadName, "name", "n", "", "base file name to save as")
	downloadCmd.Flags().StringVarP(&downloadFormat, "format", "f", "", "audio format extension when --name is given")
	downloadCmd.Flags().StringVarP(&downloadOutputDir, "output", "o", "", "directory to save the file in")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	id := args[0]

	a, err := newApp(ctx, downloadOutputDir)
	if err != nil {
		return err
	}
	defer a.Close()

	doc := orchestrator.DocumentPipeline(0)
	audio := orchestrator.AudioPipeline(0)
	routes := doc.Routes
	if downloadAudio {
		routes = audio.Routes
	}

	job := &domain.ConversionJob{ID: id, Filename: downloadName, TargetFormat: downloadFormat}
	if downloadName == "" {
		job, err = a.client.FetchStatus(ctx, routes.Status, id)
		if err != nil {
			return fmt.Errorf("look up job %s: %s", id, failureText(err))
		}
	}

	name := doc.ArtifactName(job, domain.DocumentOptions{})
	if downloadAudio {
		name = audio.ArtifactName(job, cfg.AudioDefaults())
	}

	spinner := ui.NewSpinner("Downloading " + name + "...")
	spinner.Start()
	location, err := a.downloader.Download(ctx, routes.Download, id, name)
	spinner.Stop()

	res := &result{Pipeline: "document", File: name, Job: job, Artifact: location, State: "downloaded"}
	if downloadAudio {
		res.Pipeline = "audio"
	}
	if err != nil {
		res.State = "failed"
		res.fail(err)
		report(res)
		return err
	}
	report(res)
	return nil
}
