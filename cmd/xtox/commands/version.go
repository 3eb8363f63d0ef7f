package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/spherical/xtox/cmd/xtox/ui"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the xtox version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if ui.JSON() {
			_ = json.NewEncoder(os.Stdout).Encode(map[string]string{
				"version": version,
				"go":      runtime.Version(),
			})
			return
		}
		fmt.Printf("xtox %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
