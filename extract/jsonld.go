package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ysmood/gson"
)

// linkedData is what the JSON-LD blocks of a page say about its subject.
type linkedData struct {
	Followers   string
	Following   string
	Posts       string
	Description string
}

// parseLinkedData merges every ld+json block on the page. Broken blocks
// are skipped.
func parseLinkedData(doc *goquery.Document) linkedData {
	var ld linkedData
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		v, ok := decodeJSON(s.Text())
		if !ok {
			return
		}
		walkLinkedData(v, &ld)
	})
	return ld
}

func decodeJSON(text string) (v any, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" || !json.Valid([]byte(text)) {
		return nil, false
	}
	defer func() {
		if recover() != nil {
			v, ok = nil, false
		}
	}()
	return gson.NewFrom(text).Val(), true
}

// walkLinkedData visits every object, reading persons and counters.
func walkLinkedData(v any, ld *linkedData) {
	switch node := v.(type) {
	case []any:
		for _, item := range node {
			walkLinkedData(item, ld)
		}
	case map[string]any:
		if isPerson(node) && ld.Description == "" {
			if desc, ok := node["description"].(string); ok {
				ld.Description = strings.TrimSpace(desc)
			}
		}
		readCounters(node["interactionStatistic"], false, ld)
		readCounters(node["agentInteractionStatistic"], true, ld)
		for key, child := range node {
			if key == "interactionStatistic" || key == "agentInteractionStatistic" {
				continue
			}
			walkLinkedData(child, ld)
		}
	}
}

func isPerson(node map[string]any) bool {
	switch t := node["@type"].(type) {
	case string:
		return t == "Person" || t == "Organization"
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && (s == "Person" || s == "Organization") {
				return true
			}
		}
	}
	return false
}

// readCounters reads InteractionCounter entries. Follow actions performed by
// the subject (agent) are its following count; received ones are followers.
func readCounters(v any, agent bool, ld *linkedData) {
	var counters []any
	switch c := v.(type) {
	case []any:
		counters = c
	case map[string]any:
		counters = []any{c}
	default:
		return
	}
	for _, item := range counters {
		counter, ok := item.(map[string]any)
		if !ok {
			continue
		}
		kind := fmt.Sprint(counter["interactionType"])
		if m, ok := counter["interactionType"].(map[string]any); ok {
			kind = fmt.Sprint(m["@type"])
		}
		count := countValue(counter["userInteractionCount"])
		if count == "" {
			continue
		}
		switch {
		case strings.Contains(kind, "FollowAction") && agent:
			setOnce(&ld.Following, count)
		case strings.Contains(kind, "FollowAction"):
			setOnce(&ld.Followers, count)
		case strings.Contains(kind, "WriteAction"), strings.Contains(kind, "CreateAction"):
			setOnce(&ld.Posts, count)
		}
	}
}

func countValue(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatInt(int64(n), 10)
	case json.Number:
		return NormalizeCount(n.String())
	case string:
		return NormalizeCount(n)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	}
	return ""
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
