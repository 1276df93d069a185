package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a durable queue record in a transport-friendly format.
type QueueItem struct {
	ID              string  `json:"id"`
	DisplayName     string  `json:"displayName"`
	MimeType        string  `json:"mimeType"`
	SizeBytes       int64   `json:"sizeBytes"`
	ProgressPercent float64 `json:"progressPercent"`
	EnqueuedAt      string  `json:"enqueuedAt,omitempty"`
}

// QueueListResponse wraps queue listings.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// UploadEntry describes one item in the progress view.
type UploadEntry struct {
	ItemID      string  `json:"itemId"`
	BatchID     string  `json:"batchId,omitempty"`
	DisplayName string  `json:"displayName"`
	Kind        string  `json:"kind"`
	Percent     float64 `json:"percent"`
	SizeBytes   int64   `json:"sizeBytes,omitempty"`
	Completed   bool    `json:"completed"`
	AddedAt     string  `json:"addedAt,omitempty"`
}

// UploadListResponse wraps progress entries.
type UploadListResponse struct {
	Items []UploadEntry `json:"items"`
}

// Summary is the aggregate progress view.
type Summary struct {
	Count          int     `json:"count"`
	OverallPercent float64 `json:"overallPercent"`
	InFlight       bool    `json:"inFlight"`
}

// BatchCount reports per-batch totals.
type BatchCount struct {
	BatchID   string `json:"batchId"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

// ProgressEvent is one streamed progress update.
type ProgressEvent struct {
	ItemID    string  `json:"itemId"`
	Percent   float64 `json:"percent"`
	Completed bool    `json:"completed"`
	Removed   bool    `json:"removed"`
}

// EnqueuedItem describes an accepted upload.
type EnqueuedItem struct {
	ItemID      string `json:"itemId"`
	DisplayName string `json:"displayName"`
	MimeType    string `json:"mimeType"`
	SizeBytes   int64  `json:"sizeBytes"`
	Durable     bool   `json:"durable"`
}

// EnqueueResponse is returned by upload routes.
type EnqueueResponse struct {
	BatchID string         `json:"batchId,omitempty"`
	Items   []EnqueuedItem `json:"items"`
	Errors  []string       `json:"errors,omitempty"`
}

// TextUploadRequest enqueues a link or note.
type TextUploadRequest struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Content string `json:"content" binding:"required"`
}

// SessionRequest signs a session in.
type SessionRequest struct {
	Identity string `json:"identity" binding:"required"`
}

// ReadyRequest sets remote readiness.
type ReadyRequest struct {
	Ready *bool `json:"ready" binding:"required"`
}

// SessionResponse reports the effect of a session change.
type SessionResponse struct {
	RestoreStarted bool  `json:"restoreStarted"`
	Cleared        int64 `json:"cleared,omitempty"`
}

// ClearResponse reports removed queue records.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// RestoreResult summarises a session restore pass.
type RestoreResult struct {
	SessionID  string `json:"sessionId"`
	Pending    int    `json:"pending"`
	Submitted  int    `json:"submitted"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	StartedAt  string `json:"startedAt,omitempty"`
	FinishedAt string `json:"finishedAt,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SessionStatus mirrors the recovery coordinator state.
type SessionStatus struct {
	Identity  string `json:"identity,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Ready     bool   `json:"ready"`
	Attempted bool   `json:"attempted"`
	Running   bool   `json:"running"`
}

// DaemonStatus aggregates runtime information.
type DaemonStatus struct {
	Running        bool           `json:"running"`
	Remote         string         `json:"remote"`
	QueueDBPath    string         `json:"queueDbPath"`
	LockFilePath   string         `json:"lockFilePath"`
	QueuePending   int            `json:"queuePending"`
	QueueBytes     int64          `json:"queueBytes"`
	QueueError     string         `json:"queueError,omitempty"`
	Progress       Summary        `json:"progress"`
	UploadsStarted int64          `json:"uploadsStarted"`
	UploadsOK      int64          `json:"uploadsSucceeded"`
	UploadsFailed  int64          `json:"uploadsFailed"`
	BytesUploaded  int64          `json:"bytesUploaded"`
	SlotsCapacity  int            `json:"slotsCapacity"`
	SlotsActive    int            `json:"slotsActive"`
	SlotsWaiting   int            `json:"slotsWaiting"`
	Session        SessionStatus  `json:"session"`
	LastRestore    *RestoreResult `json:"lastRestore,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NotificationResponse reports the outcome of a test notification.
type NotificationResponse struct {
	Sent bool `json:"sent"`
}
