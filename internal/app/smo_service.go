package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/smo"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/volunteer"
	idb "github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// SMOService handles volunteer-initiated changes to an SMO cycle.
type SMOService struct {
	cycles     smo.Repository
	volunteers volunteer.Repository
	calendar   *cadence.Calendar
	logger     *logrus.Entry
}

func NewSMOService(cycles smo.Repository, volunteers volunteer.Repository, calendar *cadence.Calendar, logger *logrus.Entry) *SMOService {
	return &SMOService{
		cycles:     cycles,
		volunteers: volunteers,
		calendar:   calendar,
		logger:     logger.WithField("component", "smo_service"),
	}
}

// Register signs an eligible volunteer up for a cycle, or waitlists them
// when the cycle is full.
func (s *SMOService) Register(ctx context.Context, cycleID, volunteerID string) (smo.RegistrationResult, error) {
	v, err := s.volunteers.GetByID(ctx, volunteerID)
	if err != nil {
		if errors.Is(err, idb.ErrVolunteerNotFound) {
			return "", err
		}
		return "", fmt.Errorf("failed to load volunteer: %w", err)
	}
	if !v.SMOEligible || !v.IsActive() {
		return "", smo.ErrNotEligible
	}

	var result smo.RegistrationResult
	_, err = s.cycles.Update(ctx, cycleID, func(c *smo.Cycle) error {
		res, err := smo.Register(c, volunteerID)
		if err != nil {
			return err
		}
		result = res
		c.UpdatedAt = s.calendar.Now()
		return nil
	})
	if err != nil {
		return "", err
	}
	s.logger.WithFields(logrus.Fields{
		"subject_id":   cycleID,
		"recipient_id": volunteerID,
		"result":       result,
	}).Info("SMO registration")
	return result, nil
}

// ConfirmAttendance records training attendance reported by source.
func (s *SMOService) ConfirmAttendance(ctx context.Context, cycleID, volunteerID string, source smo.AttendanceSource) error {
	_, err := s.cycles.Update(ctx, cycleID, func(c *smo.Cycle) error {
		if err := smo.ConfirmAttendance(c, volunteerID, source); err != nil {
			return err
		}
		c.UpdatedAt = s.calendar.Now()
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"subject_id":   cycleID,
		"recipient_id": volunteerID,
		"source":       source,
	}).Info("SMO attendance confirmed")
	return nil
}
