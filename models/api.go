package models

// LookupRequest is the payload for POST /api/v1/lookup.
type LookupRequest struct {
	// Queries are processed in order, synchronously. Required.
	Queries []string `json:"queries" binding:"required,min=1,max=10,dive,required"`

	// MaxAge in seconds lets a cached record of that age or younger answer
	// a query without loading any page. Zero always runs the pipeline.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0,max=604800"`
}

// LookupResponse is the response for POST /api/v1/lookup.
type LookupResponse struct {
	Success   bool         `json:"success"`
	Records   []Record     `json:"records,omitempty"`
	CacheHits int          `json:"cache_hits"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// BatchRequest is the payload for POST /api/v1/batch.
type BatchRequest struct {
	Queries []string `json:"queries" binding:"required,min=1,max=1000,dive,required"`

	// WebhookURL overrides the configured webhook for this job.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`
}

// Job states.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// BatchResponse is the immediate response for POST /api/v1/batch.
type BatchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// BatchStatusResponse is the response for GET /api/v1/batch/:id.
type BatchStatusResponse struct {
	ID        string       `json:"id"`
	Status    string       `json:"status"`
	Completed int          `json:"completed"`
	Total     int          `json:"total"`
	Records   []Record     `json:"records,omitempty"`
	Summary   *Summary     `json:"summary,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

// RecordsResponse is the response for GET /api/v1/records.
type RecordsResponse struct {
	Records []Record `json:"records"`
}

// ErrorResponse wraps a failure that has no other payload.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"` // "healthy" or "degraded"
	Uptime        string `json:"uptime"`
	Authenticated bool   `json:"authenticated"`
	QueuedJobs    int    `json:"queued_jobs"`
	Version       string `json:"version"`
}
