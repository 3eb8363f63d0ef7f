package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical/xtox/cmd/xtox/ui"
	"github.com/spherical/xtox/internal/domain"
	"github.com/spherical/xtox/internal/download"
)

var (
	latexAutoFix    bool
	latexNoDownload bool
	latexVerify     bool
	latexOutputDir  string
)

var latexCmd = &cobra.Command{
	Use:   "latex <file.tex>",
	Short: "Convert a LaTeX source to PDF",
	Long: `Upload a .tex file (10MB max by default), wait for the PDF and save it.

With --auto-fix the service repairs common structural problems such as a
missing \begin{document} and reports what it changed as warnings.`,
	Args: cobra.ExactArgs(1),
	RunE: runLatex,
}

func init() {
	latexCmd.Flags().BoolVar(&latexAutoFix, "auto-fix", false, "let the service repair common LaTeX problems")
	latexCmd.Flags().BoolVar(&latexNoDownload, "no-download", false, "convert only, do not save the PDF")
	latexCmd.Flags().BoolVar(&latexVerify, "verify", false, "check the saved PDF and count its pages")
	latexCmd.Flags().StringVarP(&latexOutputDir, "output", "o", "", "directory to save the PDF in")
	rootCmd.AddCommand(latexCmd)
}

func runLatex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := newApp(ctx, latexOutputDir)
	if err != nil {
		return err
	}
	defer a.Close()

	events := make(chan domain.Event, 32)
	o, err := a.documentOrchestrator(events)
	if err != nil {
		return err
	}

	opts := a.cfg.DocumentDefaults()
	if cmd.Flags().Changed("auto-fix") {
		opts.AutoFix = latexAutoFix
	}

	ui.Step("Converting %s (auto-fix %t)", args[0], opts.AutoFix)
	res, err := runFlow(ctx, o, events, args[0], opts, flowOptions{download: !latexNoDownload})
	report(res)
	if err != nil {
		return err
	}

	if latexVerify && res.Artifact != "" {
		info, err := download.InspectPDFFile(res.Artifact)
		if err != nil {
			return fmt.Errorf("verify %s: %w", res.Artifact, err)
		}
		ui.Success("PDF is valid: %d page(s), %s", info.Pages, ui.FormatSize(info.Size))
	}
	return nil
}
