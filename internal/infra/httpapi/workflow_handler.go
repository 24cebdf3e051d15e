package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/app"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	idb "github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/database"

	"github.com/gin-gonic/gin"
)

type WorkflowHandler struct {
	runner app.NotificationService
	admin  AdminAPI
}

func NewWorkflowHandler(runner app.NotificationService, admin AdminAPI) *WorkflowHandler {
	return &WorkflowHandler{runner: runner, admin: admin}
}

// POST /api/run-workflows
// Runs the daily and scheduled groups and reports counts per workflow.
func (h *WorkflowHandler) RunAll(c *gin.Context) {
	opts := app.RunOptions{Trigger: notification.TriggerEndpoint}
	results := h.runner.RunGroup(c.Request.Context(), app.DailyGroup, opts)
	results = append(results, h.runner.RunGroup(c.Request.Context(), app.ScheduledGroup, opts)...)

	var total notification.Counts
	for _, r := range results {
		total.Merge(r.Counts)
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "total": total})
}

// POST /api/workflows/trigger/:id
// Runs one workflow now, regardless of its flag and the daily guard.
func (h *WorkflowHandler) Trigger(c *gin.Context) {
	id := notification.WorkflowID(c.Param("id"))
	opts := app.RunOptions{
		Trigger: notification.TriggerManual,
		Mode:    app.Mode(c.Query("mode")),
		Force:   true,
	}
	run, err := h.runner.RunWorkflow(c.Request.Context(), id, opts)
	if errors.Is(err, app.ErrUnknownWorkflow) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown workflow"})
		return
	}
	if run == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errString(err)})
		return
	}

	body := gin.H{
		"runId":   run.ID,
		"sent":    run.Sent,
		"failed":  run.Failed,
		"skipped": run.Skipped,
	}
	if err != nil {
		body["error"] = err.Error()
		c.JSON(http.StatusInternalServerError, body)
		return
	}
	c.JSON(http.StatusOK, body)
}

// GET /api/workflows/runs?limit=N
func (h *WorkflowHandler) ListRuns(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	runs, err := h.admin.ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GET /api/workflows/runs/:id/details
func (h *WorkflowHandler) RunDetails(c *gin.Context) {
	run, details, err := h.admin.GetRunDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, idb.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run details"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "details": details})
}

// GET /api/workflows/config
func (h *WorkflowHandler) GetConfig(c *gin.Context) {
	flags, err := h.admin.GetFlags(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load workflow config"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflows": flags})
}

// PUT /api/workflows/config
// Body: {"w1": true, "w6": false}
func (h *WorkflowHandler) PutConfig(c *gin.Context) {
	var update map[notification.WorkflowID]bool
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}
	flags, err := h.admin.SetFlags(c.Request.Context(), update)
	if err != nil {
		if errors.Is(err, app.ErrInvalidFlags) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save workflow config"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflows": flags})
}

func errString(err error) string {
	if err == nil {
		return "workflow did not run"
	}
	return err.Error()
}
