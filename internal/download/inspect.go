package download

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// PDFInfo summarises a PDF artifact.
type PDFInfo struct {
	Pages int
	Size  int64
}

func pdfConfig() *model.Configuration {
	disableConfigDir.Do(func() {
		model.ConfigPath = "disable"
	})
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// InspectPDF validates data as a PDF and counts its pages.
func InspectPDF(data []byte) (*PDFInfo, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("not a PDF: missing %%PDF- header")
	}

	cfg := pdfConfig()
	if err := api.Validate(bytes.NewReader(data), cfg); err != nil {
		return nil, fmt.Errorf("validate pdf: %w", err)
	}

	pages, err := api.PageCount(bytes.NewReader(data), cfg)
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}

	return &PDFInfo{Pages: pages, Size: int64(len(data))}, nil
}

// InspectPDFFile is InspectPDF for a file on disk.
func InspectPDFFile(path string) (*PDFInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return InspectPDF(data)
}
