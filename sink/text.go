package sink

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/use-agent/serpwalk/models"
)

// lineFile is an append-only output file flushed after every record.
type lineFile struct {
	mu  sync.Mutex
	f   *os.File
	buf *bufio.Writer
}

func createFile(path string) (*lineFile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sink: create %s: %w", path, err)
	}
	return &lineFile{f: f, buf: bufio.NewWriter(f)}, nil
}

func (l *lineFile) writeLine(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.buf.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("sink: write: %w", err)
	}
	if err := l.buf.Flush(); err != nil {
		return fmt.Errorf("sink: flush: %w", err)
	}
	return nil
}

func (l *lineFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.buf.Flush(); err != nil {
		l.f.Close()
		return fmt.Errorf("sink: flush: %w", err)
	}
	return l.f.Close()
}

// TSV writes "query<TAB>url" lines. Records without a usable URL carry
// "ERROR: <reason>" in the second column.
type TSV struct {
	*lineFile
}

func NewTSV(path string) (*TSV, error) {
	lf, err := createFile(path)
	if err != nil {
		return nil, err
	}
	return &TSV{lf}, nil
}

func (t *TSV) Write(rec models.Record) error {
	return t.writeLine(oneLine(rec.Query) + "\t" + oneLine(tsvValue(rec)))
}

func tsvValue(rec models.Record) string {
	switch rec.Status {
	case models.StatusSuccess, models.StatusExtractionPartial:
		if rec.URL != "" {
			return rec.URL
		}
	}
	reason := rec.Error
	if reason == "" {
		reason = string(rec.Status)
	}
	return "ERROR: " + reason
}

func oneLine(s string) string {
	return strings.NewReplacer("\t", " ", "\r", " ", "\n", " ").Replace(s)
}

// csvHeader is the first row of every CSV output.
var csvHeader = []string{"Query", "Profile URL", "Followers", "Following", "Posts", "Bio", "Status"}

// CSV writes one row per record under csvHeader.
type CSV struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

func NewCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("sink: create %s: %w", path, err)
	}
	c := &CSV{f: f, w: csv.NewWriter(f)}
	if err := c.writeRow(csvHeader); err != nil {
		f.Close()
		return nil, err
	}
	return c, nil
}

func (c *CSV) Write(rec models.Record) error {
	return c.writeRow([]string{
		rec.Query,
		rec.URL,
		rec.Fields.Followers,
		rec.Fields.Following,
		rec.Fields.Posts,
		rec.Fields.Bio,
		string(rec.Status),
	})
}

func (c *CSV) writeRow(row []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("sink: write csv: %w", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("sink: flush csv: %w", err)
	}
	return nil
}

func (c *CSV) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.f.Close()
		return fmt.Errorf("sink: flush csv: %w", err)
	}
	return c.f.Close()
}

// JSONL writes one JSON object per line.
type JSONL struct {
	*lineFile
}

func NewJSONL(path string) (*JSONL, error) {
	lf, err := createFile(path)
	if err != nil {
		return nil, err
	}
	return &JSONL{lf}, nil
}

func (j *JSONL) Write(rec models.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sink: marshal record: %w", err)
	}
	return j.writeLine(string(b))
}
