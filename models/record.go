package models

import (
	"strings"
	"time"
)

// Status is the final outcome of one query.
type Status string

const (
	StatusSuccess           Status = "success"
	StatusNotFound          Status = "not-found"
	StatusBlocked           Status = "blocked"
	StatusExtractionPartial Status = "extraction-partial"
	StatusError             Status = "error"
)

// AllStatuses lists every status in reporting order.
var AllStatuses = []Status{
	StatusSuccess, StatusExtractionPartial, StatusNotFound, StatusBlocked, StatusError,
}

// PageState is the classification of a single page load.
type PageState string

const (
	PageOK        PageState = "ok"
	PageBlocked   PageState = "blocked"
	PageEmpty     PageState = "empty"
	PageLoadError PageState = "load-error"
)

// Candidate is the result link chosen on a search page.
type Candidate struct {
	URL          string `json:"url"`
	Strategy     int    `json:"strategy"`
	StrategyName string `json:"strategy_name"`
}

// Field names, in output column order.
const (
	FieldFollowers = "followers"
	FieldFollowing = "following"
	FieldPosts     = "posts"
	FieldBio       = "bio"
)

// FieldNames lists every extracted field.
var FieldNames = []string{FieldFollowers, FieldFollowing, FieldPosts, FieldBio}

// Fields holds the extracted profile values. An empty string means the field
// could not be extracted.
type Fields struct {
	Followers string `json:"followers"`
	Following string `json:"following"`
	Posts     string `json:"posts"`
	Bio       string `json:"bio"`
}

// Get returns the value of the named field.
func (f Fields) Get(name string) string {
	switch name {
	case FieldFollowers:
		return f.Followers
	case FieldFollowing:
		return f.Following
	case FieldPosts:
		return f.Posts
	case FieldBio:
		return f.Bio
	}
	return ""
}

// Set assigns the named field. Unknown names are ignored.
func (f *Fields) Set(name, value string) {
	value = strings.TrimSpace(value)
	switch name {
	case FieldFollowers:
		f.Followers = value
	case FieldFollowing:
		f.Following = value
	case FieldPosts:
		f.Posts = value
	case FieldBio:
		f.Bio = value
	}
}

// Populated counts the non-empty fields.
func (f Fields) Populated() int {
	n := 0
	for _, name := range FieldNames {
		if f.Get(name) != "" {
			n++
		}
	}
	return n
}

// Missing lists the names of empty fields.
func (f Fields) Missing() []string {
	var missing []string
	for _, name := range FieldNames {
		if f.Get(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// Status maps field completeness to a record status.
func (f Fields) Status() Status {
	switch f.Populated() {
	case len(FieldNames):
		return StatusSuccess
	case 0:
		return StatusError
	default:
		return StatusExtractionPartial
	}
}

// Record is the single output row produced for a query.
type Record struct {
	Query       string    `json:"query"`
	URL         string    `json:"url"`
	Fields      Fields    `json:"fields"`
	Status      Status    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Strategy    string    `json:"strategy,omitempty"`
	Engine      string    `json:"engine,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Summary counts the records of one batch run.
type Summary struct {
	RunID       string         `json:"run_id"`
	Total       int            `json:"total"`
	ByStatus    map[Status]int `json:"by_status"`
	Started     time.Time      `json:"started"`
	Finished    time.Time      `json:"finished"`
	Interrupted bool           `json:"interrupted"`
}

// NewSummary returns an empty summary for a run.
func NewSummary(runID string) *Summary {
	return &Summary{RunID: runID, ByStatus: make(map[Status]int), Started: time.Now()}
}

// Add counts one record.
func (s *Summary) Add(rec Record) {
	s.Total++
	s.ByStatus[rec.Status]++
}
