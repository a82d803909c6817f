// Package events defines download events and the publishers that deliver them.
package events

// Download statuses.
const (
	StatusWritten = "written"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// DownloadEvent is emitted once per URL attempted by a download operation.
type DownloadEvent struct {
	RequestID string `json:"requestId,omitempty"`
	Namespace string `json:"namespace"`
	URL       string `json:"url"`
	Path      string `json:"path,omitempty"`
	Proxy     string `json:"proxy,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Bytes     int64  `json:"bytes"`
	// Index is the URL's position in the batch.
	Index     int    `json:"index"`
	Timestamp string `json:"timestamp"`
}
