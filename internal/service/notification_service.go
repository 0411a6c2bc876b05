package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultwatch/riskpulse/internal/dto"
	"github.com/vaultwatch/riskpulse/internal/hub"
	"github.com/vaultwatch/riskpulse/internal/model"
	"github.com/vaultwatch/riskpulse/internal/repository"
	"github.com/vaultwatch/riskpulse/pkg/apperror"
)

const publishTimeout = 5 * time.Second

type NotificationService interface {
	Create(ctx context.Context, userID uuid.UUID, input dto.CreateNotificationRequest) (*model.Notification, error)
	List(ctx context.Context, userID uuid.UUID, filter repository.NotificationFilter) ([]model.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID, filter repository.NotificationFilter) (int64, error)
	Remove(ctx context.Context, id, userID uuid.UUID) error
	ClearAll(ctx context.Context, userID uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	Search(ctx context.Context, userID uuid.UUID, query string, limit int) ([]model.Notification, error)
}

type notificationService struct {
	repo   repository.NotificationRepository
	hub    *hub.Hub
	relay  *hub.Relay
	search SearchService
}

// NewNotificationService wires the durable store to the live delivery
// channel. relay and search may be nil; the hub alone covers a
// single-process deployment and search is an optional feature.
func NewNotificationService(repo repository.NotificationRepository, h *hub.Hub, relay *hub.Relay, search SearchService) NotificationService {
	return &notificationService{
		repo:   repo,
		hub:    h,
		relay:  relay,
		search: search,
	}
}

func (s *notificationService) Create(ctx context.Context, userID uuid.UUID, input dto.CreateNotificationRequest) (*model.Notification, error) {
	if input.Title == "" || input.Message == "" || input.Type == "" {
		return nil, fmt.Errorf("%w: title, message and type are required", apperror.ErrInvalidInput)
	}
	if !model.ValidType(input.Type) {
		return nil, fmt.Errorf("%w: unknown notification type %q", apperror.ErrInvalidInput, input.Type)
	}
	if !model.ValidPriority(input.Priority) {
		return nil, fmt.Errorf("%w: unknown priority %q", apperror.ErrInvalidInput, input.Priority)
	}

	notification := &model.Notification{
		UserID:         userID,
		Title:          input.Title,
		Message:        input.Message,
		Type:           input.Type,
		Priority:       input.Priority,
		Category:       input.Category,
		Link:           input.Link,
		Persistent:     input.Persistent,
		AutoClose:      input.AutoClose,
		AutoCloseDelay: input.AutoCloseDelay,
		Metadata:       input.Metadata,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}

	// Fan-out and search indexing are best-effort: the row is durable, so a
	// broken stream or a down index never fails the create. Detached from
	// the request context, which may be gone before delivery finishes.
	go s.publish(notification)
	if s.search != nil {
		go func(n model.Notification) {
			if err := s.search.IndexNotification(&n); err != nil {
				log.Printf("notification: search index failed for %s: %v", n.ID, err)
			}
		}(*notification)
	}

	return notification, nil
}

func (s *notificationService) publish(notification *model.Notification) {
	payload, err := json.Marshal(notification)
	if err != nil {
		log.Printf("notification: marshal failed for %s: %v", notification.ID, err)
		return
	}

	if s.relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.relay.Publish(ctx, notification.UserID, payload); err != nil {
			log.Printf("notification: relay publish failed for %s: %v", notification.ID, err)
		}
		return
	}

	s.hub.Publish(notification.UserID, payload)
}

func (s *notificationService) List(ctx context.Context, userID uuid.UUID, filter repository.NotificationFilter) ([]model.Notification, error) {
	return s.repo.ListByUser(ctx, userID, filter)
}

// MarkRead flips one notification to read. Idempotent: re-reading an
// already-read notification succeeds and leaves ReadAt untouched.
func (s *notificationService) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	notification, err := s.findOwned(ctx, id, userID)
	if err != nil {
		return err
	}
	if notification.Read {
		return nil
	}
	return s.repo.MarkRead(ctx, id, time.Now().UTC())
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID uuid.UUID, filter repository.NotificationFilter) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID, filter, time.Now().UTC())
}

func (s *notificationService) Remove(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.findOwned(ctx, id, userID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if s.search != nil {
		if err := s.search.DeleteNotification(id.String()); err != nil {
			log.Printf("notification: search de-index failed for %s: %v", id, err)
		}
	}
	return nil
}

func (s *notificationService) ClearAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.ClearAll(ctx, userID)
}

func (s *notificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) Search(ctx context.Context, userID uuid.UUID, query string, limit int) ([]model.Notification, error) {
	if s.search == nil {
		return nil, fmt.Errorf("%w: search is not configured", apperror.ErrUnavailable)
	}
	return s.search.SearchNotifications(userID, query, limit)
}

func (s *notificationService) findOwned(ctx context.Context, id, userID uuid.UUID) (*model.Notification, error) {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	if notification.UserID != userID {
		return nil, apperror.ErrForbidden
	}
	return notification, nil
}
