package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/serpwalk/models"
)

// PostBatch returns a handler for POST /api/v1/batch.
func PostBatch(queue *JobQueue) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		job, err := queue.Submit(req.Queries, req.WebhookURL)
		if err != nil {
			var se *models.ScrapeError
			if !errors.As(err, &se) {
				se = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
			}
			c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: se.ToDetail()})
			return
		}

		c.JSON(http.StatusAccepted, models.BatchResponse{
			ID:     job.ID,
			Status: models.JobQueued,
			Total:  len(job.Queries),
		})
	}
}

// GetBatch returns a handler for GET /api/v1/batch/:id.
func GetBatch(queue *JobQueue) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := queue.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeNotFound,
					Message: "batch job not found",
				},
			})
			return
		}
		c.JSON(http.StatusOK, job.Status())
	}
}
