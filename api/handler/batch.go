package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/domainrank/models"
	"github.com/use-agent/domainrank/scheduler"
)

const maxBatchSize = 500

// Batch returns a handler for POST /api/v1/batch. Entries may be bare
// domain strings or full job objects; both forms are normalized during
// binding. Submission stops at the first scheduler rejection.
func Batch(sched *scheduler.Scheduler) gin.HandlerFunc {
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
		if len(req.Domains) == 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "domains must not be empty",
				},
			})
			return
		}
		if len(req.Domains) > maxBatchSize {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "batch too large",
				},
			})
			return
		}
		for i, entry := range req.Domains {
			if entry.Domain == "" {
				c.JSON(http.StatusBadRequest, models.ErrorResponse{
					Error: &models.ErrorDetail{
						Code:    models.ErrCodeInvalidInput,
						Message: "empty domain at index " + strconv.Itoa(i),
					},
				})
				return
			}
		}

		ids := make([]string, 0, len(req.Domains))
		for _, entry := range req.Domains {
			task, err := sched.Submit(entry.Spec())
			if err != nil {
				respondError(c, err)
				return
			}
			ids = append(ids, task.ID)
		}

		c.JSON(http.StatusAccepted, models.BatchSubmitResponse{
			Message: "batch queued",
			TaskIDs: ids,
		})
	}
}
