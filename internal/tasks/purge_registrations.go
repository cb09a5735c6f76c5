package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/dipgate/internal/entities"
)

// RegistrationPurger deletes accounts that never confirmed their
// authenticator.
type RegistrationPurger interface {
	PurgeIncompleteRegistrations(cutoff time.Time) (int64, error)
}

// PurgeCounter receives the number of accounts removed per run.
type PurgeCounter interface {
	RegistrationsPurged(n int64)
}

// PurgeIncompleteRegistrationsTask removes accounts still waiting on
// enrollment after PendingTTL.
type PurgeIncompleteRegistrationsTask struct {
	PendingTTL time.Duration `json:"pending_ttl"`
}

// DefaultPendingTTL is used when a task carries no TTL.
const DefaultPendingTTL = 7 * 24 * time.Hour

// Config returns the queue configuration for registration purges.
func (t PurgeIncompleteRegistrationsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "purge_incomplete_registrations",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// PurgeIncompleteRegistrationsProcessor creates a processor for
// PurgeIncompleteRegistrationsTask. counter and audit may be nil.
func PurgeIncompleteRegistrationsProcessor(purger RegistrationPurger, counter PurgeCounter, audit MaintenanceLogger, now func() time.Time) backlite.QueueProcessor[PurgeIncompleteRegistrationsTask] {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, task PurgeIncompleteRegistrationsTask) error {
		if purger == nil {
			return errors.New("registration purger not configured")
		}

		ttl := task.PendingTTL
		if ttl <= 0 {
			ttl = DefaultPendingTTL
		}

		removed, err := purger.PurgeIncompleteRegistrations(now().Add(-ttl))
		if err != nil {
			err = fmt.Errorf("purge incomplete registrations: %w", err)
			if audit != nil {
				audit.LogMaintenance(entities.AuditActionPurgeSignups, "Purge of unconfirmed accounts failed", err)
			}
			return err
		}

		if counter != nil {
			counter.RegistrationsPurged(removed)
		}
		if removed > 0 {
			log.Printf("[TASK] Purged %d accounts that never confirmed enrollment within %v", removed, ttl)
			if audit != nil {
				audit.LogMaintenance(entities.AuditActionPurgeSignups, fmt.Sprintf("Purged %d unconfirmed accounts", removed), nil)
			}
		}
		return nil
	}
}

// NewPurgeIncompleteRegistrationsQueue creates the backlite queue for
// registration purges.
func NewPurgeIncompleteRegistrationsQueue(purger RegistrationPurger, counter PurgeCounter, audit MaintenanceLogger) backlite.Queue {
	return backlite.NewQueue(PurgeIncompleteRegistrationsProcessor(purger, counter, audit, nil))
}
