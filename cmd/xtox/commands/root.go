package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spherical/xtox/cmd/xtox/ui"
	"github.com/spherical/xtox/internal/config"
	"github.com/spherical/xtox/internal/observability"
)

var (
	cfgFile    string
	verbose    bool
	noColor    bool
	outputJSON bool

	cfg     *config.Config
	logger  *observability.Logger
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "xtox",
	Short: "Convert LaTeX to PDF and re-encode audio through the xtox service",
	Long: `xtox submits LaTeX sources and audio files to the conversion service,
shows progress while the service works, and saves the converted artifact.

Configuration comes from --config, a .env file in the working directory,
and environment variables such as BACKEND_URL and XTOX_AUTH_TOKEN.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ui.InitUI(noColor, verbose, outputJSON)

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		}
		format := cfg.Observability.LogFormat
		if outputJSON {
			format = "json"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      format,
			ServiceName: "xtox",
		})

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
}

// Execute runs the root command.
func Execute(v string) error {
	version = v
	return rootCmd.Execute()
}
