// Package report builds the run report of a benchmark and publishes it as a
// CloudEvent to a configurable backend.
package report

import (
	"fmt"
	"path"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/jittakal/sockeventwriter/internal/coordinator"
)

const (
	// EventType is the CloudEvent type of a finished run.
	EventType = "io.sockeventwriter.run.completed"
	// EventSource is the default CloudEvent source.
	EventSource = "/sockeventwriter"
	// ContentTypeJSON is the data content type of the report payload.
	ContentTypeJSON = "application/json"
	// ContentTypeCloudEvents is the content type of a serialized envelope.
	ContentTypeCloudEvents = "application/cloudevents+json"
)

// FormatResult summarizes one encoding job of an endpoint.
type FormatResult struct {
	Format     string `json:"format"`
	Records    int64  `json:"records"`
	Flushes    int64  `json:"flushes"`
	DurationMs int64  `json:"duration_ms"`
}

// EndpointResult summarizes the writer task of one endpoint.
type EndpointResult struct {
	Identity        string         `json:"identity"`
	State           string         `json:"state"`
	Records         int64          `json:"records"`
	Flushes         int64          `json:"flushes"`
	Bytes           int64          `json:"bytes"`
	DurationMs      int64          `json:"duration_ms"`
	RecordsPerSec   float64        `json:"records_per_sec"`
	AvgBytesPerSec  int64          `json:"avg_bytes_per_sec"`
	PeakBytesPerSec int64          `json:"peak_bytes_per_sec"`
	Formats         []FormatResult `json:"formats,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// RunReport is the outcome of a whole run.
type RunReport struct {
	RunID        string           `json:"run_id"`
	Application  string           `json:"application"`
	Version      string           `json:"version"`
	StartedAt    time.Time        `json:"started_at"`
	FinishedAt   time.Time        `json:"finished_at"`
	DurationMs   int64            `json:"duration_ms"`
	TotalRecords int64            `json:"total_records"`
	TotalBytes   int64            `json:"total_bytes"`
	Failed       int              `json:"failed"`
	Endpoints    []EndpointResult `json:"endpoints"`
}

// Build assembles a report from the task results of a run.
func Build(application, version string, startedAt, finishedAt time.Time, results []coordinator.TaskResult) *RunReport {
	r := &RunReport{
		RunID:       uuid.New().String(),
		Application: application,
		Version:     version,
		StartedAt:   startedAt.UTC(),
		FinishedAt:  finishedAt.UTC(),
		DurationMs:  finishedAt.Sub(startedAt).Milliseconds(),
		Endpoints:   make([]EndpointResult, 0, len(results)),
	}

	for _, res := range results {
		ep := EndpointResult{
			Identity:        res.Identity,
			State:           string(res.State),
			Records:         res.Records,
			Flushes:         res.Flushes,
			Bytes:           res.Bytes,
			DurationMs:      res.Duration.Milliseconds(),
			AvgBytesPerSec:  res.AvgRate,
			PeakBytesPerSec: res.PeakRate,
		}
		if secs := res.Duration.Seconds(); secs > 0 {
			ep.RecordsPerSec = float64(res.Records) / secs
		}
		for _, job := range res.Jobs {
			ep.Formats = append(ep.Formats, FormatResult{
				Format:     string(job.Format),
				Records:    job.Stats.Records,
				Flushes:    job.Stats.Flushes,
				DurationMs: job.Duration.Milliseconds(),
			})
		}
		if res.Err != nil {
			ep.Error = res.Err.Error()
		}
		if res.State == coordinator.StateFailed {
			r.Failed++
		}

		r.TotalRecords += res.Records
		r.TotalBytes += res.Bytes
		r.Endpoints = append(r.Endpoints, ep)
	}

	return r
}

// Event wraps the report in a CloudEvent. The event id is the run id.
func (r *RunReport) Event(source string) (cloudevents.Event, error) {
	if source == "" {
		source = EventSource
	}

	event := cloudevents.NewEvent()
	event.SetSpecVersion(cloudevents.VersionV1)
	event.SetID(r.RunID)
	event.SetType(EventType)
	event.SetSource(source)
	event.SetTime(r.FinishedAt)
	event.SetDataContentType(ContentTypeJSON)

	if err := event.SetData(ContentTypeJSON, r); err != nil {
		return event, fmt.Errorf("failed to set event data: %w", err)
	}
	return event, nil
}

// ObjectKey returns the storage key of a run report:
// <basePath>/dt=YYYY-MM-DD/run=<id>.json
func ObjectKey(basePath, runID string, t time.Time) string {
	return path.Join(basePath, "dt="+t.UTC().Format("2006-01-02"), "run="+runID+".json")
}
