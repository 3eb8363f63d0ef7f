// Package download fetches converted artifacts and hands them to a sink.
package download

import (
	"context"
	"fmt"

	"github.com/spherical/xtox/internal/domain"
	"github.com/spherical/xtox/internal/observability"
)

// Fetcher is the slice of the request client the downloader needs.
type Fetcher interface {
	FetchArtifact(ctx context.Context, route, jobID string) ([]byte, error)
}

// Downloader retrieves the binary artifact of a job and saves it.
type Downloader struct {
	fetcher Fetcher
	sink    domain.ArtifactSink
	logger  *observability.Logger
}

// New creates a downloader. A nil logger discards output.
func New(fetcher Fetcher, sink domain.ArtifactSink, logger *observability.Logger) *Downloader {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Downloader{
		fetcher: fetcher,
		sink:    sink,
		logger:  logger.WithOperation("download"),
	}
}

// Download fetches route/jobID and saves it as name. Fetch failures come
// back as classified errors untouched; sink failures as io domain errors.
func (d *Downloader) Download(ctx context.Context, route, jobID, name string) (string, error) {
	if jobID == "" {
		return "", domain.ErrNothingToDownload
	}

	data, err := d.fetcher.FetchArtifact(ctx, route, jobID)
	if err != nil {
		return "", err
	}

	location, err := d.sink.Save(ctx, name, data)
	if err != nil {
		return "", domain.IOError(fmt.Sprintf("Failed to save %s", name), err)
	}

	d.logger.WithContext(ctx).Debug().
		Str("job_id", jobID).
		Int("bytes", len(data)).
		Str("location", location).
		Msg("artifact saved")

	return location, nil
}
