package commands

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spherical/xtox/cmd/xtox/ui"
	"github.com/spherical/xtox/internal/download"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file.pdf>...",
	Short: "Check that downloaded PDFs are readable",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		type verdict struct {
			File  string `json:"file"`
			Valid bool   `json:"valid"`
			Pages int    `json:"pages,omitempty"`
			Size  int64  `json:"size,omitempty"`
			Error string `json:"error,omitempty"`
		}

		var (
			verdicts []verdict
			failed   int
		)
		for _, path := range args {
			info, err := download.InspectPDFFile(path)
			if err != nil {
				failed++
				verdicts = append(verdicts, verdict{File: path, Error: err.Error()})
				ui.Error("%s: %v", path, err)
				continue
			}
			verdicts = append(verdicts, verdict{File: path, Valid: true, Pages: info.Pages, Size: info.Size})
			ui.Success("%s: %d page(s), %s", path, info.Pages, ui.FormatSize(info.Size))
		}

		if ui.JSON() {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(verdicts)
		}
		if failed > 0 {
			return errInvalidPDF(failed)
		}
		return nil
	},
}

type errInvalidPDF int

func (n errInvalidPDF) Error() string {
	if n == 1 {
		return "1 file is not a valid PDF"
	}
	return strconv.Itoa(int(n)) + " files are not valid PDFs"
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
