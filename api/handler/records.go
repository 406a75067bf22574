package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/serpwalk/models"
)

// RecordLister reads stored records. *sink.SQLite implements it.
type RecordLister interface {
	List(ctx context.Context, query string, limit int) ([]models.Record, error)
}

const maxListLimit = 1000

// ListRecords returns a handler for GET /api/v1/records?query=&limit=.
func ListRecords(store RecordLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 100
		if v := c.Query("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > maxListLimit {
				c.JSON(http.StatusBadRequest, models.ErrorResponse{
					Error: &models.ErrorDetail{
						Code:    models.ErrCodeInvalidInput,
						Message: "limit must be between 1 and 1000",
					},
				})
				return
			}
			limit = n
		}

		records, err := store.List(c.Request.Context(), c.Query("query"), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error: &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()},
			})
			return
		}
		if records == nil {
			records = []models.Record{}
		}
		c.JSON(http.StatusOK, models.RecordsResponse{Records: records})
	}
}
