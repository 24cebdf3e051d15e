// Package httpapi exposes the workflow trigger, run history, config and
// SMO endpoints over HTTP.
package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/app"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/smo"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminAPI is what the admin endpoints read and write.
type AdminAPI interface {
	ListRuns(ctx context.Context, limit int) ([]*notification.WorkflowRun, error)
	GetRunDetails(ctx context.Context, runID string) (*notification.WorkflowRun, []notification.RunDetail, error)
	GetFlags(ctx context.Context) (map[notification.WorkflowID]bool, error)
	SetFlags(ctx context.Context, update map[notification.WorkflowID]bool) (map[notification.WorkflowID]bool, error)
}

// SMOAPI is what the SMO endpoints call.
type SMOAPI interface {
	Register(ctx context.Context, cycleID, volunteerID string) (smo.RegistrationResult, error)
	ConfirmAttendance(ctx context.Context, cycleID, volunteerID string, source smo.AttendanceSource) error
}

type Config struct {
	CronSecret  string
	AdminAPIKey string
}

type Deps struct {
	Runner  app.NotificationService
	Admin   AdminAPI
	SMO     SMOAPI
	Metrics http.Handler
	Logger  *logrus.Entry
}

// NewRouter wires every route.
func NewRouter(cfg Config, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	wh := NewWorkflowHandler(deps.Runner, deps.Admin)
	sh := NewSMOHandler(deps.SMO)

	api := r.Group("/api")
	api.POST("/run-workflows", requireHeader("X-Cron-Secret", cfg.CronSecret), wh.RunAll)

	admin := api.Group("", requireHeader("X-Admin-Key", cfg.AdminAPIKey))
	admin.POST("/workflows/trigger/:id", wh.Trigger)
	admin.GET("/workflows/runs", wh.ListRuns)
	admin.GET("/workflows/runs/:id/details", wh.RunDetails)
	admin.GET("/workflows/config", wh.GetConfig)
	admin.PUT("/workflows/config", wh.PutConfig)
	admin.POST("/smo/cycles/:id/register", sh.Register)
	admin.POST("/smo/cycles/:id/attendance", sh.ConfirmAttendance)

	return r
}

// requireHeader rejects requests whose header does not match secret. An
// empty secret leaves the route open.
func requireHeader(header, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func requestLogger(logger *logrus.Entry) gin.HandlerFunc {
	entry := logger.WithField("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.WithFields(fields).Error("Request failed")
			return
		}
		entry.WithFields(fields).Debug("Request served")
	}
}
