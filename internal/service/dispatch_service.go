package service

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"notify24/internal/domain"
	"notify24/internal/models"
	"notify24/internal/queue"
	"notify24/internal/repository"

	"github.com/google/uuid"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNoTargets         = errors.New("no target users available")
	ErrBrokerUnavailable = errors.New("broker unavailable")
)

// QueuePublisher places one dispatch job on the durable queue.
type QueuePublisher interface {
	Publish(msg queue.DispatchMessage) error
}

// DispatchService creates notifications and queues per-recipient delivery
// work. Persistence happens before publish; a failed publish fails the whole
// call and leaves PENDING rows for the reconciliation sweep to re-enqueue.
type DispatchService struct {
	notifRepo *repository.NotificationRepository
	userRepo  *repository.UserRepository
	publisher QueuePublisher
}

func NewDispatchService(notifRepo *repository.NotificationRepository, userRepo *repository.UserRepository, publisher QueuePublisher) *DispatchService {
	return &DispatchService{notifRepo: notifRepo, userRepo: userRepo, publisher: publisher}
}

// Dispatch validates the request, resolves the caller-scoped target set,
// persists the notification with one PENDING row per target and enqueues
// exactly one job. The returned count is the post-intersection target count,
// not what the caller asked for.
func (s *DispatchService) Dispatch(callerID uuid.UUID, isAdmin bool, title, body, targetMode string, userIDs []uuid.UUID) (*models.Notification, int, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" || body == "" {
		return nil, 0, fmt.Errorf("%w: title and body are required", ErrValidation)
	}

	mode := strings.ToLower(strings.TrimSpace(targetMode))
	var selected []uuid.UUID
	switch mode {
	case domain.TargetModeSelected:
		selected = dedupe(userIDs)
		if len(selected) == 0 {
			return nil, 0, fmt.Errorf("%w: at least one user must be selected", ErrValidation)
		}
	case domain.TargetModeAll:
		// full eligible set
	default:
		return nil, 0, fmt.Errorf("%w: target_mode must be 'selected' or 'all'", ErrValidation)
	}

	targetIDs, err := s.userRepo.ListEligibleIDs(callerID, isAdmin, selected)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve targets: %w", err)
	}
	if len(targetIDs) == 0 {
		return nil, 0, ErrNoTargets
	}

	n := &models.Notification{
		Title:        title,
		Body:         body,
		SenderUserID: callerID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.notifRepo.CreateWithRecipients(n, targetIDs); err != nil {
		return nil, 0, fmt.Errorf("persist notification: %w", err)
	}

	err = s.publisher.Publish(queue.DispatchMessage{
		NotificationID: n.ID,
		SenderUserID:   callerID,
		Title:          n.Title,
		Body:           n.Body,
		TargetUserIDs:  targetIDs,
		CreatedAt:      n.CreatedAt,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}

	return n, len(targetIDs), nil
}

// SweepStalePending re-enqueues notifications whose recipients sat PENDING
// past maxAge, closing the persisted-but-never-enqueued gap left by a
// publish failure. Safe under at-least-once delivery because marking a
// recipient delivered is idempotent.
func (s *DispatchService) SweepStalePending(maxAge time.Duration) {
	stale, err := s.notifRepo.ListStalePending(time.Now().UTC().Add(-maxAge))
	if err != nil {
		log.Printf("[sweep] list stale pending: %v", err)
		return
	}
	for _, sd := range stale {
		err := s.publisher.Publish(queue.DispatchMessage{
			NotificationID: sd.Notification.ID,
			SenderUserID:   sd.Notification.SenderUserID,
			Title:          sd.Notification.Title,
			Body:           sd.Notification.Body,
			TargetUserIDs:  sd.PendingIDs,
			CreatedAt:      sd.Notification.CreatedAt,
		})
		if err != nil {
			log.Printf("[sweep] re-enqueue %s: %v", sd.Notification.ID, err)
			continue
		}
		log.Printf("[sweep] re-enqueued %s (%d pending recipients)", sd.Notification.ID, len(sd.PendingIDs))
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
