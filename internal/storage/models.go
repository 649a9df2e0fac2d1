package storage

import "time"

// DownloadRecord is one submitted job as seen from this client.
type DownloadRecord struct {
	ID           string    `json:"id"`                      // Internal UUID
	TaskID       string    `json:"task_id"`                 // Server task id
	Kind         string    `json:"kind"`                    // Workflow: video, audio, fragment, ...
	SourceURL    string    `json:"source_url,omitempty"`    // Media URL the job was started for
	State        string    `json:"state"`                   // Last observed lifecycle state
	Progress     float64   `json:"progress"`                // Last observed progress, 0-100
	Error        string    `json:"error,omitempty"`         // Failure message, if any
	ArtifactPath string    `json:"artifact_path,omitempty"` // Where the artifact was saved
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Finished reports whether the recorded state is terminal.
func (r *DownloadRecord) Finished() bool {
	return r.State == "SUCCESS" || r.State == "FAILURE"
}
