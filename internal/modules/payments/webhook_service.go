package payments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookService persists and applies card-processor events. The unique
// (provider, event_id) index makes redelivered events a silent no-op.
type WebhookService struct {
	db     *gorm.DB
	logger *slog.Logger
	rec    *Reconciler
}

func NewWebhookService(db *gorm.DB, logger *slog.Logger, rec *Reconciler) *WebhookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookService{db: db, logger: logger, rec: rec}
}

// Handle applies one verified event. Returning nil means the provider gets
// its acknowledgement; returning an error means a 500 and a redelivery.
func (s *WebhookService) Handle(ctx context.Context, providerName string, ev CardEvent, rawBody []byte) error {
	switch ev.Type {
	case CardEventSucceeded, CardEventFailed:
	default:
		// providers add event types over time; unknown ones are acknowledged
		s.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			"provider", providerName, "event_id", ev.EventID, "type", ev.Type)
		return nil
	}

	var completed outcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		pe := ProviderEvent{
			ID:          uuid.NewString(),
			Provider:    providerName,
			EventID:     ev.EventID,
			EventType:   ev.Type,
			PayloadJSON: datatypes.JSON(rawBody),
			ReceivedAt:  now,
		}
		if err := tx.Create(&pe).Error; err != nil {
			if isDup(err) {
				s.logger.InfoContext(ctx, "webhook event deduplicated",
					"provider", providerName, "event_id", ev.EventID, "type", ev.Type)
				return nil
			}
			return err
		}

		applyErr := s.applyEvent(ctx, tx, providerName, ev, &completed)
		if applyErr != nil {
			msg := truncate(applyErr.Error(), 250)
			if err := tx.Model(&ProviderEvent{}).Where("id = ?", pe.ID).
				Updates(map[string]any{"process_error": msg}).Error; err != nil {
				return err
			}
			s.logger.ErrorContext(ctx, "webhook event apply failed",
				"provider", providerName, "event_id", ev.EventID, "type", ev.Type, "err", msg)
			return applyErr
		}

		processed := now
		return tx.Model(&ProviderEvent{}).Where("id = ?", pe.ID).
			Updates(map[string]any{"processed_at": &processed, "process_error": nil}).Error
	})
	if err != nil {
		return err
	}

	if completed.completedNow {
		s.rec.notifyCompleted(ctx, completed)
	}
	return nil
}

func (s *WebhookService) applyEvent(ctx context.Context, tx *gorm.DB, providerName string, ev CardEvent, out *outcome) error {
	if ev.IntentID == "" {
		return errors.New("event carries no payment intent id")
	}

	var p Payment
	err := tx.First(&p, "provider = ? AND provider_ref = ?", providerName, ev.IntentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// no matching attempt: stray delivery or the row predates this event
		// being interesting; acknowledged, never an error to the provider
		s.logger.InfoContext(ctx, "webhook event matched no payment, dropping",
			"provider", providerName, "event_id", ev.EventID, "intent_id", ev.IntentID)
		return nil
	}
	if err != nil {
		return err
	}

	switch ev.Type {
	case CardEventSucceeded:
		o, err := s.rec.apply(ctx, tx, p.ID, StatusCompleted, Result{
			Metadata: map[string]any{"intent_id": ev.IntentID, "event_id": ev.EventID},
		})
		if err != nil {
			return err
		}
		*out = o
		return nil
	case CardEventFailed:
		_, err := s.rec.apply(ctx, tx, p.ID, StatusFailed, Result{Reason: ev.Reason})
		return err
	}
	return nil
}

func isDup(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// sqlite (tests) surfaces the raw constraint message
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
