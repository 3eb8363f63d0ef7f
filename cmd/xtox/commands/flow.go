package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spherical/xtox/cmd/xtox/ui"
	"github.com/spherical/xtox/internal/apierr"
	"github.com/spherical/xtox/internal/domain"
	"github.com/spherical/xtox/internal/orchestrator"
)

// errConversionFailed reports a conversion the service answered but could
// not complete; its own errors are already on the job.
var errConversionFailed = errors.New("conversion failed")

// result is what a conversion command reports, also in --json mode.
type result struct {
	Pipeline string                `json:"pipeline"`
	File     string                `json:"file"`
	State    string                `json:"state"`
	Job      *domain.ConversionJob `json:"job,omitempty"`
	Artifact string                `json:"artifact,omitempty"`
	Error    string                `json:"error,omitempty"`
	Kind     string                `json:"error_kind,omitempty"`
	Details  []string              `json:"error_details,omitempty"`
}

// fail records a classified failure on res.
func (res *result) fail(err error) {
	res.Error = failureText(err)
	res.Kind = kindOf(err)
	if ce, ok := apierr.As(err); ok && len(ce.Errors) > 0 {
		res.Details = ce.Errors
	}
}

type flowOptions struct {
	download bool
	view     ui.ProgressView
}

// runFlow takes path through select, submit and optionally download on o.
// events must be the channel o was built with.
func runFlow[O any](ctx context.Context, o *orchestrator.Orchestrator[O], events <-chan domain.Event, path string, opts O, fo flowOptions) (*result, error) {
	res := &result{Pipeline: o.Pipeline().Name, File: path}
	defer func() {
		res.State = o.Snapshot().State.String()
	}()

	// An externally supplied view must always be closed, even when nothing
	// was submitted.
	abandon := func() {
		if fo.view != nil {
			fo.view.Done(false)
		}
	}

	file, err := domain.FileFromPath(path)
	if err != nil {
		abandon()
		res.Error = domain.UserMessage(err)
		return res, err
	}
	res.File = file.Name

	if err := o.SelectFile(file); err != nil {
		abandon()
		res.Error = domain.UserMessage(err)
		return res, err
	}

	view := fo.view
	if view == nil {
		view = ui.NewProgressBar(fmt.Sprintf("%-8s", o.Pipeline().Name))
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case ev := <-events:
				if ev.Type == domain.EventProgress {
					view.Update(ev.Progress)
				}
			}
		}
	}()

	_, err = o.Submit(ctx, opts)
	if err != nil && o.Snapshot().State == orchestrator.StateFileAccepted {
		// Options were rejected before anything was sent.
		close(done)
		wg.Wait()
		view.Done(false)
		res.Error = domain.UserMessage(err)
		return res, err
	}
	close(done)
	wg.Wait()

	snap := o.Snapshot()
	view.Update(snap.Progress)
	view.Done(err == nil && snap.ArtifactReady)
	res.Job = snap.Job

	if err != nil {
		res.fail(err)
		return res, err
	}
	if !snap.ArtifactReady {
		res.Error = strings.Join(snap.Job.Errors, "; ")
		return res, errConversionFailed
	}

	if !fo.download {
		return res, nil
	}

	location, err := o.Download(ctx)
	res.Job = o.Snapshot().Job
	if err != nil {
		res.fail(err)
		return res, err
	}
	res.Artifact = location
	return res, nil
}

func failureText(err error) string {
	if ce, ok := apierr.As(err); ok {
		return ce.Message
	}
	return domain.UserMessage(err)
}

// kindOf is empty for failures that never reached the request client.
func kindOf(err error) string {
	if ce, ok := apierr.As(err); ok {
		return string(ce.Kind)
	}
	return ""
}

// report prints res for humans, or as JSON with --json.
func report(res *result) {
	if ui.JSON() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
		return
	}

	job := res.Job
	switch {
	case job == nil && res.Error != "":
		ui.Error("%s: %s", res.File, res.Error)
		ui.List("Details", res.Details)
		return
	case job == nil:
		return
	}

	if job.Success || res.Artifact != "" {
		ui.Success("%s converted (job %s)", res.File, job.ID)
	} else {
		ui.Error("%s: conversion failed", res.File)
	}

	rows := [][]string{{"Job ID", orDash(job.ID)}, {"Filename", orDash(job.Filename)}}
	if job.TargetFormat != "" {
		rows = append(rows, []string{"Format", job.TargetFormat})
	}
	if job.AutoFixApplied {
		rows = append(rows, []string{"Auto-fix", "applied"})
	}
	if job.Duration != nil {
		rows = append(rows, []string{"Duration", fmt.Sprintf("%.2fs", *job.Duration)})
	}
	if job.FileSizeKB != nil {
		rows = append(rows, []string{"Size", fmt.Sprintf("%.2f KB", *job.FileSizeKB)})
	}
	if res.Artifact != "" {
		rows = append(rows, []string{"Saved to", res.Artifact})
	}
	ui.Table([]string{"Field", "Value"}, rows)

	ui.List("Warnings", job.Warnings)
	ui.List("Errors", job.Errors)
	ui.List("Details", res.Details)

	if res.Kind == string(apierr.KindAuthentication) {
		ui.Warning("Your session was rejected; run `xtox login` to store a new token.")
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
