package domain

import "context"

// ConversionService is the remote boundary both pipelines reach through the
// request client. Routes are relative to the configured API base.
type ConversionService interface {
	// Submit uploads the file with the given options and returns the job.
	Submit(ctx context.Context, route string, file *CandidateFile, query Query) (*ConversionJob, error)

	// FetchStatus polls a previously submitted job.
	FetchStatus(ctx context.Context, route, jobID string) (*ConversionJob, error)

	// FetchArtifact returns the converted output of a successful job.
	FetchArtifact(ctx context.Context, route, jobID string) ([]byte, error)
}

// ArtifactSink persists a downloaded artifact under a suggested name and
// reports where it ended up.
type ArtifactSink interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}
