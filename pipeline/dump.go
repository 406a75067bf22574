package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/use-agent/serpwalk/models"
)

// Dumper writes snapshots of pages that did not classify ok, as raw HTML
// and as Markdown for quick reading.
type Dumper struct {
	dir  string
	conv *converter.Converter
}

// NewDumper creates dir if needed. An empty dir returns nil, which dumps
// nothing.
func NewDumper(dir string) (*Dumper, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dump dir: %w", err)
	}
	return &Dumper{
		dir: dir,
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal)),
			),
		),
	}, nil
}

var reUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = strings.Trim(reUnsafe.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(s) > 60 {
		s = s[:60]
	}
	if s == "" {
		s = "query"
	}
	return s
}

// Dump writes <slug>-<stage>.html and .md. Failures are logged, never fatal.
func (d *Dumper) Dump(query, stage string, page *models.Page) {
	if d == nil || page == nil || page.HTML == "" {
		return
	}
	base := filepath.Join(d.dir, slug(query)+"-"+stage)

	if err := os.WriteFile(base+".html", []byte(page.HTML), 0o644); err != nil {
		slog.Warn("dump html failed", "query", query, "error", err)
		return
	}

	domain := ""
	if u := page.BaseURL(); u.Host != "" {
		domain = u.Scheme + "://" + u.Host
	}
	md, err := d.conv.ConvertString(page.HTML, converter.WithDomain(domain))
	if err != nil {
		slog.Warn("dump markdown failed", "query", query, "error", err)
		return
	}
	header := fmt.Sprintf("<!-- %s (HTTP %d, %s) -->\n\n", page.FinalURL, page.StatusCode, page.Engine)
	if err := os.WriteFile(base+".md", []byte(header+md), 0o644); err != nil {
		slog.Warn("dump markdown failed", "query", query, "error", err)
		return
	}
	slog.Debug("page dumped", "query", query, "stage", stage, "path", base)
}
