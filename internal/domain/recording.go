package domain

import "time"

// Recording is a finalized, device-local capture waiting to be uploaded.
// It is ephemeral: the file at Path is removed once the upload succeeds.
type Recording struct {
	Path      string    `json:"-"`
	Ext       string    `json:"ext"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// UploadState is the terminal or in-flight state of an UploadTask.
type UploadState string

const (
	UploadRunning   UploadState = "running"
	UploadSucceeded UploadState = "succeeded"
	UploadFailed    UploadState = "failed"
)

// UploadTask tracks one attempt to move a Recording to blob storage.
// Progress is a fraction in [0,1].
type UploadTask struct {
	Key      string      `json:"key"`
	Size     int64       `json:"size"`
	Progress float64     `json:"progress"`
	State    UploadState `json:"state"`
	URL      string      `json:"url,omitempty"`
}

// RecordingObject describes an uploaded recording as listed from blob storage.
type RecordingObject struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
