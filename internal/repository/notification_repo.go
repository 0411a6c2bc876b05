package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vaultwatch/riskpulse/internal/model"
)

// NotificationFilter narrows list and bulk operations. Zero values mean
// "don't filter".
type NotificationFilter struct {
	Limit    int
	Read     *bool
	Type     string
	Category string
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *model.Notification) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter NotificationFilter) ([]model.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkAllRead(ctx context.Context, userID uuid.UUID, filter NotificationFilter, at time.Time) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ClearAll(ctx context.Context, userID uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	var notification model.Notification
	if err := r.db.WithContext(ctx).First(&notification, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &notification, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter NotificationFilter) ([]model.Notification, error) {
	notifications := make([]model.Notification, 0)

	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc")
	if filter.Read != nil {
		q = q.Where("read = ?", *filter.Read)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	err := q.Find(&notifications).Error
	return notifications, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("id = ?", id).
		Updates(map[string]any{"read": true, "read_at": at}).Error
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, filter NotificationFilter, at time.Time) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("user_id = ? AND read = ?", userID, false)
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}

	res := q.Updates(map[string]any{"read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Notification{}, "id = ?", id).Error
}

// ClearAll deletes every non-persistent notification for the user.
// Persistent rows survive bulk clears.
func (r *notificationRepository) ClearAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND persistent = ?", userID, false).
		Delete(&model.Notification{})
	return res.RowsAffected, res.Error
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	return count, err
}
