package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// ReadQueries reads one query per line, trimming whitespace and skipping
// blank lines.
func ReadQueries(r io.Reader) ([]string, error) {
	var queries []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		q := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if q != "" {
			queries = append(queries, q)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read queries: %w", err)
	}
	return queries, nil
}

// BuildSearchURL substitutes the escaped query into the template's
// {query} placeholder.
func BuildSearchURL(template, query string) string {
	return strings.ReplaceAll(template, "{query}", url.QueryEscape(query))
}
