// Package api serves the upload pipeline over HTTP for the UI layer.
//
// # Key Types
//
// Server: gin router exposing uploads, progress, queue, and session routes.
//
// Service: the daemon surface the server depends on.
//
// UploadEntry/Summary/ProgressEvent: progress view payloads.
//
// QueueItem: durable queue record without its payload.
//
// DaemonStatus: aggregated runtime information.
//
// # Routes
//
//	GET    /health
//	GET    /api/v1/status
//	GET    /api/v1/summary
//	GET    /api/v1/uploads
//	POST   /api/v1/uploads          multipart "files", optional "kind"
//	POST   /api/v1/uploads/text     links and notes
//	DELETE /api/v1/uploads/:id      hide from the progress view
//	GET    /api/v1/batches/:id
//	GET    /api/v1/progress/stream  server-sent events
//	GET    /api/v1/queue
//	DELETE /api/v1/queue
//	POST   /api/v1/session
//	DELETE /api/v1/session
//	PUT    /api/v1/session/ready
//	POST   /api/v1/notifications/test
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript/TypeScript consumers.
// Timestamps use RFC3339 with milliseconds. When a token is configured every
// route except /health requires "Authorization: Bearer <token>".
package api
