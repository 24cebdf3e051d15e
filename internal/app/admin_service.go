package app

import (
	"context"
	"fmt"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")
var ErrInvalidFlags = fmt.Errorf("invalid workflow flags")

const (
	DefaultRunsLimit = 20
	MaxRunsLimit     = 200

	flagsCacheKey = "workflow_flags"
	flagsCacheTTL = 30 * time.Second
)

// AdminService serves run history and the per-workflow enabled flags.
type AdminService struct {
	runs            notification.RunRepository
	config          notification.ConfigRepository
	cache           *gocache.Cache
	adminTelegramID int64
	logger          *logrus.Entry
}

func NewAdminService(runs notification.RunRepository, config notification.ConfigRepository, adminID int64, logger *logrus.Entry) *AdminService {
	return &AdminService{
		runs:            runs,
		config:          config,
		cache:           gocache.New(flagsCacheTTL, 2*flagsCacheTTL),
		adminTelegramID: adminID,
		logger:          logger.WithField("component", "admin_service"),
	}
}

// Authorize checks that telegramID is the configured admin.
func (s *AdminService) Authorize(telegramID int64) error {
	if s.adminTelegramID == 0 || telegramID != s.adminTelegramID {
		return ErrAdminNotAuthorized
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *AdminService) ListRuns(ctx context.Context, limit int) ([]*notification.WorkflowRun, error) {
	if limit <= 0 {
		limit = DefaultRunsLimit
	}
	if limit > MaxRunsLimit {
		limit = MaxRunsLimit
	}
	runs, err := s.runs.ListRecentRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow runs: %w", err)
	}
	return runs, nil
}

// GetRunDetails returns a run and its per-recipient records.
func (s *AdminService) GetRunDetails(ctx context.Context, runID string) (*notification.WorkflowRun, []notification.RunDetail, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, nil, err
	}
	details, err := s.runs.ListRunDetails(ctx, runID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list run details: %w", err)
	}
	return run, details, nil
}

// GetFlags returns the enabled flag of every workflow. Workflows without a
// stored flag are enabled.
func (s *AdminService) GetFlags(ctx context.Context) (map[notification.WorkflowID]bool, error) {
	if cached, ok := s.cache.Get(flagsCacheKey); ok {
		return copyFlags(cached.(map[notification.WorkflowID]bool)), nil
	}
	stored, err := s.config.GetWorkflowFlags(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow flags: %w", err)
	}
	flags := make(map[notification.WorkflowID]bool, len(notification.AllWorkflows))
	for _, id := range notification.AllWorkflows {
		enabled, ok := stored[id]
		flags[id] = !ok || enabled
	}
	s.cache.SetDefault(flagsCacheKey, flags)
	return copyFlags(flags), nil
}

// SetFlags merges update into the stored flags.
func (s *AdminService) SetFlags(ctx context.Context, update map[notification.WorkflowID]bool) (map[notification.WorkflowID]bool, error) {
	for id := range update {
		if !id.Valid() {
			return nil, fmt.Errorf("%w: unknown workflow %q", ErrInvalidFlags, id)
		}
	}
	flags, err := s.GetFlags(ctx)
	if err != nil {
		return nil, err
	}
	for id, enabled := range update {
		flags[id] = enabled
	}
	if err := s.config.SetWorkflowFlags(ctx, flags); err != nil {
		return nil, fmt.Errorf("failed to save workflow flags: %w", err)
	}
	s.cache.Delete(flagsCacheKey)
	s.logger.WithField("flags", update).Info("Workflow flags updated")
	return flags, nil
}

// SetEnabled toggles one workflow.
func (s *AdminService) SetEnabled(ctx context.Context, id notification.WorkflowID, enabled bool) error {
	_, err := s.SetFlags(ctx, map[notification.WorkflowID]bool{id: enabled})
	return err
}

// IsEnabled fails open: if the flags cannot be read the workflow runs.
func (s *AdminService) IsEnabled(ctx context.Context, id notification.WorkflowID) bool {
	flags, err := s.GetFlags(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("workflow", id).Warn("Could not read workflow flags, assuming enabled")
		return true
	}
	enabled, ok := flags[id]
	return !ok || enabled
}

func copyFlags(in map[notification.WorkflowID]bool) map[notification.WorkflowID]bool {
	out := make(map[notification.WorkflowID]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
