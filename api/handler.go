package api

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mohans/jobstatus"
)

// DefaultPerPage is the page size when per_page is not given.
const DefaultPerPage = 50

// StatusHandler handles status-related HTTP requests
type StatusHandler struct {
	logger *slog.Logger
	store  *jobstatus.Store
	client *jobstatus.Client
}

// NewStatusHandler creates a new StatusHandler instance
func NewStatusHandler(deps *Dependencies) *StatusHandler {
	return &StatusHandler{
		logger: deps.Logger,
		store:  deps.Store,
		client: deps.Client,
	}
}

// ListStatuses handles GET /statuses
//
// Query: start, per_page, status (exact), job (case-insensitive regex on
// the display name). Filters apply to the requested page only.
func (h *StatusHandler) ListStatuses(c *gin.Context) {
	start, err := intQuery(c, "start", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start"})
		return
	}
	perPage, err := intQuery(c, "per_page", DefaultPerPage)
	if err != nil || perPage < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid per_page"})
		return
	}

	status := jobstatus.Status(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	var jobFilter *regexp.Regexp
	if job := c.Query("job"); job != "" {
		jobFilter, err = regexp.Compile("(?i)" + job)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job filter"})
			return
		}
	}

	ctx := c.Request.Context()
	recs, err := h.store.Statuses(ctx, jobstatus.Page(start, perPage))
	if err != nil {
		h.internalError(c, "list statuses", err)
		return
	}
	size, err := h.store.Count(ctx)
	if err != nil {
		h.internalError(c, "count statuses", err)
		return
	}

	views := make([]map[string]any, 0, len(recs))
	hasKillable := false
	for _, r := range recs {
		if status != "" && !r.Is(status) {
			continue
		}
		if jobFilter != nil && !jobFilter.MatchString(r.Name) {
			continue
		}
		hasKillable = hasKillable || r.Killable()
		views = append(views, r.View())
	}

	c.JSON(http.StatusOK, gin.H{
		"statuses":     views,
		"start":        start,
		"end":          start + perPage - 1,
		"size":         size,
		"has_killable": hasKillable,
	})
}

// GetStatus handles GET /statuses/:id
func (h *StatusHandler) GetStatus(c *gin.Context) {
	rec, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, jobstatus.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "status not found"})
		return
	}
	if err != nil {
		h.internalError(c, "get status", err)
		return
	}
	c.JSON(http.StatusOK, rec.View())
}

// RemoveStatus handles DELETE /statuses/:id
func (h *StatusHandler) RemoveStatus(c *gin.Context) {
	if err := h.store.Remove(c.Request.Context(), c.Param("id")); err != nil {
		h.internalError(c, "remove status", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// KillStatus handles POST /statuses/:id/kill
func (h *StatusHandler) KillStatus(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.Kill(c.Request.Context(), id); err != nil {
		h.internalError(c, "kill status", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"killed": []string{id}})
}

type killRequest struct {
	IDs   []string `json:"ids"`
	Start *int64   `json:"start"`
	End   *int64   `json:"end"`
}

// KillStatuses handles POST /statuses/kill
//
// With ids in the body those are killed; otherwise every status in the
// start/end rank range, or all of them.
func (h *StatusHandler) KillStatuses(c *gin.Context) {
	var req killRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	ctx := c.Request.Context()
	if len(req.IDs) > 0 {
		for _, id := range req.IDs {
			if err := h.store.Kill(ctx, id); err != nil {
				h.internalError(c, "kill status", err)
				return
			}
		}
		c.JSON(http.StatusAccepted, gin.H{"killed": req.IDs})
		return
	}

	rng := jobstatus.All()
	if req.Start != nil && req.End != nil {
		rng = jobstatus.Between(*req.Start, *req.End)
	}
	ids, err := h.store.KillAll(ctx, rng)
	if err != nil {
		h.internalError(c, "kill all", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"killed": ids})
}

// ClearStatuses handles POST /statuses/clear and /statuses/clear/:scope
// where scope is completed, failed or killed.
func (h *StatusHandler) ClearStatuses(c *gin.Context) {
	ctx := c.Request.Context()
	rng := jobstatus.All()

	var (
		ids []string
		err error
	)
	switch scope := c.Param("scope"); scope {
	case "", "all":
		ids, err = h.store.Clear(ctx, rng)
	case string(jobstatus.StatusCompleted):
		ids, err = h.store.ClearCompleted(ctx, rng)
	case string(jobstatus.StatusFailed):
		ids, err = h.store.ClearFailed(ctx, rng)
	case string(jobstatus.StatusKilled):
		ids, err = h.store.ClearKilled(ctx, rng)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scope"})
		return
	}
	if err != nil {
		h.internalError(c, "clear statuses", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": ids})
}

type enqueueRequest struct {
	Job     string         `json:"job" binding:"required"`
	Queue   string         `json:"queue"`
	Options map[string]any `json:"options"`
}

// EnqueueJob handles POST /statuses
func (h *StatusHandler) EnqueueJob(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ctx := c.Request.Context()
	var (
		id  string
		err error
	)
	if req.Queue == "" {
		id, err = h.client.Enqueue(ctx, req.Job, req.Options)
	} else {
		id, err = h.client.EnqueueTo(ctx, req.Queue, req.Job, req.Options)
	}
	switch {
	case errors.Is(err, jobstatus.ErrUnknownJob):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, jobstatus.ErrEnqueueRejected):
		c.JSON(http.StatusConflict, gin.H{"error": "enqueue rejected"})
		return
	case err != nil:
		h.internalError(c, "enqueue job", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"uuid": id})
}

func (h *StatusHandler) internalError(c *gin.Context, op string, err error) {
	h.logger.Error("Status store error",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func intQuery(c *gin.Context, key string, def int64) (int64, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
