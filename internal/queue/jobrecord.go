package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// JobRecord is the per-job side record written under
// JobsDirectory/<user>/<yyyy-MM-dd>/<id>.json (§6). Unlike the queue file,
// Status here serializes as its string name, matching the external
// contract.
type JobRecord struct {
	ID           string `json:"Id"`
	InputPath    string `json:"InputPath"`
	TargetApp    string `json:"TargetApp"`
	Status       string `json:"Status"`
	Timestamp    string `json:"Timestamp"`
	ErrorMessage string `json:"ErrorMessage,omitempty"`
	Username     string `json:"Username"`
}

// RecordFor builds the job-side record for job as of the current moment.
func RecordFor(job Job) JobRecord {
	timestamp := job.CreatedAt
	if job.CompletedAt != nil {
		timestamp = *job.CompletedAt
	} else if job.StartedAt != nil {
		timestamp = *job.StartedAt
	}
	return JobRecord{
		ID:           job.ID,
		InputPath:    job.InputPath,
		TargetApp:    job.TargetApp,
		Status:       job.Status.String(),
		Timestamp:    timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"),
		ErrorMessage: job.ErrorMessage,
		Username:     job.UserName,
	}
}

// WriteJobRecord writes job's side record to
// baseDir/<user>/<day>/<id>.json, creating parent directories as needed.
func WriteJobRecord(baseDir, day string, job Job) error {
	dir := filepath.Join(baseDir, job.UserName, day)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("jobrecord: create directory: %w", err)
	}
	path := filepath.Join(dir, job.ID+".json")

	data, err := json.MarshalIndent(RecordFor(job), "", "  ")
	if err != nil {
		return fmt.Errorf("jobrecord: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("jobrecord: write: %w", err)
	}
	return nil
}
