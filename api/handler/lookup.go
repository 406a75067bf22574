package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/serpwalk/cache"
	"github.com/use-agent/serpwalk/models"
	"github.com/use-agent/serpwalk/pipeline"
)

// Runner processes queries. *pipeline.Pipeline implements it.
type Runner interface {
	Process(ctx context.Context, query string) models.Record
	Run(ctx context.Context, queries []string, w pipeline.RecordWriter) (*models.Summary, error)
}

// Lookup returns a handler for POST /api/v1/lookup. Queries run in order on
// the request goroutine. Fresh records are written to store and cc; both may
// be nil.
func Lookup(runner Runner, store pipeline.RecordWriter, cc *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.LookupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.LookupResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		maxAge := time.Duration(req.MaxAge) * time.Second
		records := make([]models.Record, 0, len(req.Queries))
		hits := 0
		for _, q := range req.Queries {
			if c.Request.Context().Err() != nil {
				break
			}
			q = strings.TrimSpace(q)
			if rec, ok := cc.Get(q, maxAge); ok {
				records = append(records, rec)
				hits++
				continue
			}

			rec := runner.Process(c.Request.Context(), q)
			records = append(records, rec)
			cc.Set(rec)
			if store != nil {
				if err := store.Write(rec); err != nil {
					slog.Error("record store write failed", "query", rec.Query, "error", err)
				}
			}
		}

		c.JSON(http.StatusOK, models.LookupResponse{
			Success:   true,
			Records:   records,
			CacheHits: hits,
		})
	}
}
