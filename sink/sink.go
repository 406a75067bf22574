// Package sink persists records as they are produced. Every Write is flushed
// before it returns so an interrupted batch keeps what it finished.
package sink

import (
	"errors"
	"fmt"
	"sync"

	"github.com/use-agent/serpwalk/models"
)

// Sink receives finished records.
type Sink interface {
	Write(rec models.Record) error
	Close() error
}

// Open creates the sink for format at path.
func Open(format, path string) (Sink, error) {
	switch format {
	case "tsv":
		return NewTSV(path)
	case "csv":
		return NewCSV(path)
	case "jsonl":
		return NewJSONL(path)
	case "sqlite":
		return NewSQLite(path)
	}
	return nil, models.NewScrapeError(models.ErrCodeInvalidInput,
		fmt.Sprintf("unknown sink format %q (want tsv, csv, jsonl or sqlite)", format), nil)
}

// Memory keeps records in memory. The API uses it to collect job results.
type Memory struct {
	mu      sync.Mutex
	records []models.Record
}

func (m *Memory) Write(rec models.Record) error {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// Records returns a copy of everything written so far.
func (m *Memory) Records() []models.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Record(nil), m.records...)
}

// Len reports how many records were written.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Tee writes every record to all sinks in order and stops at the first error.
type Tee []Sink

func (t Tee) Write(rec models.Record) error {
	for _, s := range t {
		if err := s.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func (t Tee) Close() error {
	var errs []error
	for _, s := range t {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
