package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"sakanly/models"
	"sakanly/store"
)

// ActivityRecorder writes lead activity rows as a best-effort side channel.
// A failed write is logged and dropped; it never reaches the caller.
type ActivityRecorder struct {
	store  store.Store
	logger *logrus.Entry
}

func NewActivityRecorder(st store.Store, logger *logrus.Logger) *ActivityRecorder {
	return &ActivityRecorder{
		store:  st,
		logger: logger.WithField("component", "activity"),
	}
}

func (r *ActivityRecorder) Record(orgID, leadID uint, activityType, details string) {
	activity := &models.LeadActivity{
		OrgID:        orgID,
		LeadID:       leadID,
		ActivityType: activityType,
		ActivityAt:   time.Now(),
		Details:      details,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.CreateLeadActivity(ctx, activity); err != nil {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"lead_id": leadID,
				"type":    activityType,
			}).Warn("failed to record lead activity")
		}
	}()
}
