package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/domainrank/models"
	"github.com/use-agent/domainrank/scheduler"
	"github.com/use-agent/domainrank/store"
)

// Scrape returns a handler for POST /api/v1/scrape: validate, resolve the
// proxy variant, enqueue, and answer immediately with the task ID. The
// result is fetched later via GET /result/:id.
func Scrape(sched *scheduler.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeJobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		if (req.ProxyIP == "") != (req.ProxyPort == 0) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "proxy_ip and proxy_port must be given together",
				},
			})
			return
		}

		spec := req.Spec()
		task, err := sched.Submit(spec)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, models.SubmitResponse{
			TaskID:  task.ID,
			Domain:  task.Domain,
			Status:  string(task.State),
			Proxy:   task.ProxyServer,
			Message: "task queued, poll /api/v1/result/" + task.ID,
		})
	}
}

// Result returns a handler for GET /api/v1/result/:id. In-flight tasks
// come from the scheduler, finished ones from the store.
func Result(sched *scheduler.Scheduler, st *store.TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		task, ok := sched.Task(id)
		if !ok {
			task, ok = st.Get(id)
		}
		if !ok {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "unknown task ID " + id,
				},
			})
			return
		}

		resp := models.ResultResponse{Task: task}
		if task.State == models.TaskCompleted {
			resp.Result = task.Result
		}
		if task.State == models.TaskFailed {
			resp.Error = &models.ErrorDetail{
				Code:    models.ErrCodeInternal,
				Message: task.Error,
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// Jobs returns a handler for GET /api/v1/jobs: everything in flight plus
// the retained terminal records, optionally filtered by ?status=.
func Jobs(sched *scheduler.Scheduler, st *store.TaskStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobs := sched.InFlight()
		jobs = append(jobs, st.List()...)

		if status := c.Query("status"); status != "" {
			filtered := jobs[:0]
			for _, t := range jobs {
				if string(t.State) == status {
					filtered = append(filtered, t)
				}
			}
			jobs = filtered
		}

		c.JSON(http.StatusOK, models.JobListResponse{
			Total: len(jobs),
			Jobs:  jobs,
		})
	}
}

// Queue returns a handler for GET /api/v1/queue: the pending tasks in
// admission order.
func Queue(sched *scheduler.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		pending := sched.Pending()
		entries := make([]models.QueueEntry, len(pending))
		for i, t := range pending {
			entries[i] = models.QueueEntry{
				TaskID:   t.ID,
				Domain:   t.Domain,
				HasProxy: t.Proxy != nil,
			}
		}
		c.JSON(http.StatusOK, models.QueueResponse{
			QueueSize: len(entries),
			Active:    sched.Status().Active,
			Queue:     entries,
		})
	}
}

// respondError maps a ScrapeError to the right HTTP status and writes the
// structured envelope.
func respondError(c *gin.Context, err error) {
	var se *models.ScrapeError
	if !errors.As(err, &se) {
		se = models.NewScrapeError(models.ErrCodeInternal, err.Error(), err)
	}
	c.JSON(mapErrorToStatus(se), models.ErrorResponse{Error: se.ToDetail()})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeNavTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeEngine:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeCanceled:
		return http.StatusServiceUnavailable // 503, scheduler draining
	default:
		return http.StatusInternalServerError // 500
	}
}
