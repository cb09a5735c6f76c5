package audit

import (
	"log"
	"sync"
	"time"

	"github.com/mrlokans/dipgate/internal/database/audit"
	"github.com/mrlokans/dipgate/internal/entities"
)

// Service provides high-level audit logging for the login gate.
type Service struct {
	repo    *audit.Repository
	pending sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// AuthEvent describes one step of a login attempt.
type AuthEvent struct {
	UserID      uint
	Subject     string
	Action      string
	Description string
	IPAddress   string
	UserAgent   string
	Success     bool
}

// Log records a generic audit event.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.repo.LogEvent(event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// Wait blocks until every LogAsync write has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// LogAuth records an authentication step.
func (s *Service) LogAuth(e AuthEvent) {
	event := &entities.AuditEvent{
		UserID:      e.UserID,
		Subject:     truncate(e.Subject, 255),
		Action:      e.Action,
		Description: truncate(e.Description, 500),
		IPAddress:   e.IPAddress,
		UserAgent:   truncate(e.UserAgent, 500),
		Status:      entities.AuditStatusSuccess,
	}

	if !e.Success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// LogMaintenance records a background housekeeping run.
func (s *Service) LogMaintenance(action, description string, err error) {
	event := &entities.AuditEvent{
		Action:      action,
		Description: truncate(description, 500),
		Status:      entities.AuditStatusSuccess,
	}

	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.Description = truncate(description+": "+err.Error(), 500)
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(userID uint, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(userID, limit, offset)
}

// GetEventsByAction retrieves paginated events for one action.
func (s *Service) GetEventsByAction(action string, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEventsByAction(action, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
