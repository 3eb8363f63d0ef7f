package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/spherical/xtox/cmd/xtox/ui"
	"github.com/spherical/xtox/internal/orchestrator"
)

var statusAudio bool

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show a conversion job as the service reports it",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusAudio, "audio", false, "the job belongs to the audio pipeline")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, "")
	if err != nil {
		return err
	}
	defer a.Close()

	name, route := "document", orchestrator.DocumentPipeline(0).Routes.Status
	if statusAudio {
		name, route = "audio", orchestrator.AudioPipeline(0).Routes.Status
	}

	spinner := ui.NewSpinner("Fetching job " + args[0] + "...")
	spinner.Start()
	job, err := a.client.FetchStatus(ctx, route, args[0])
	spinner.Stop()

	res := &result{Pipeline: name, File: args[0], Job: job}
	if err != nil {
		res.fail(err)
		report(res)
		return err
	}
	res.State = "fetched"
	report(res)
	return nil
}
