package db

import "time"

// InvocationRecord is a row in the invocations table.
type InvocationRecord struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"request_id,omitempty"`
	Namespace  string    `json:"namespace"`
	Operation  string    `json:"operation"`
	Signature  string    `json:"signature,omitempty"`
	Arity      int       `json:"arity"`
	Code       string    `json:"code"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	Started    time.Time `json:"started"`
	Created    time.Time `json:"created"`
}

// DownloadRecord is a row in the downloads table.
type DownloadRecord struct {
	ID        int64     `json:"id"`
	RequestID string    `json:"request_id,omitempty"`
	Namespace string    `json:"namespace"`
	URL       string    `json:"url"`
	Path      string    `json:"path,omitempty"`
	Proxy     string    `json:"proxy,omitempty"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Bytes     int64     `json:"bytes"`
	Index     int       `json:"index"`
	Created   time.Time `json:"created"`
}

// ListInvocationsParams filters ListInvocations. Empty fields match everything.
type ListInvocationsParams struct {
	Namespace string
	Operation string
	Code      string
	RequestID string
	Limit     int
}

// ListDownloadsParams filters ListDownloads.
type ListDownloadsParams struct {
	RequestID string
	Status    string
	Limit     int
}
