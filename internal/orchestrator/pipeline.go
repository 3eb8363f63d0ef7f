package orchestrator

import (
	"github.com/spherical/xtox/internal/domain"
)

// Routes are the service endpoints of one pipeline, relative to the API base.
type Routes struct {
	Convert  string
	Status   string
	Download string
}

// Pipeline describes everything that differs between the document and audio
// flows. The state machine itself is shared.
type Pipeline[O any] struct {
	Name       string
	Constraint domain.ValidationConstraint
	Routes     Routes

	// BuildQuery turns options into query parameters. It rejects invalid
	// options before anything is sent.
	BuildQuery func(opts O) (domain.Query, error)

	// ArtifactName is the suggested save name of a job's artifact.
	ArtifactName func(job *domain.ConversionJob, opts O) string

	SubmitFailure   string
	DownloadFailure string
}

// DocumentPipeline converts LaTeX sources to PDF. maxSize <= 0 keeps the
// default 10MB limit.
func DocumentPipeline(maxSize int64) Pipeline[domain.DocumentOptions] {
	if maxSize <= 0 {
		maxSize = domain.MaxDocumentSize
	}
	return Pipeline[domain.DocumentOptions]{
		Name: "document",
		Constraint: domain.ValidationConstraint{
			AllowedExtensions: domain.DocumentExtensions,
			MaxSize:           maxSize,
		},
		Routes: Routes{
			Convert:  "/convert",
			Status:   "/conversion",
			Download: "/download",
		},
		BuildQuery: domain.DocumentQuery,
		ArtifactName: func(job *domain.ConversionJob, _ domain.DocumentOptions) string {
			return baseName(job) + ".pdf"
		},
		SubmitFailure:   "Upload failed. Please try again.",
		DownloadFailure: "Failed to download PDF. Please try again.",
	}
}

// AudioPipeline re-encodes audio files. maxSize <= 0 keeps the default 50MB
// limit.
func AudioPipeline(maxSize int64) Pipeline[domain.AudioOptions] {
	if maxSize <= 0 {
		maxSize = domain.MaxAudioSize
	}
	return Pipeline[domain.AudioOptions]{
		Name: "audio",
		Constraint: domain.ValidationConstraint{
			AllowedExtensions: domain.AudioExtensions,
			MaxSize:           maxSize,
		},
		Routes: Routes{
			Convert:  "/convert-audio",
			Status:   "/audio-conversion",
			Download: "/download-audio",
		},
		BuildQuery: domain.AudioQuery,
		ArtifactName: func(job *domain.ConversionJob, opts domain.AudioOptions) string {
			format := job.TargetFormat
			if format == "" {
				format = string(opts.TargetFormat)
			}
			return baseName(job) + "." + format
		},
		SubmitFailure:   "Upload failed. Please try again.",
		DownloadFailure: "Failed to download audio. Please try again.",
	}
}

// baseName falls back to the job id when the service omitted a filename.
func baseName(job *domain.ConversionJob) string {
	if job.Filename != "" {
		return job.Filename
	}
	return job.ID
}
