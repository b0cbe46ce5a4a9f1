package repository

import (
	"errors"
	"time"

	"notify24/internal/domain"
	"notify24/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrRecipientNotFound    = errors.New("recipient row not found")
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateWithRecipients persists the notification and one PENDING recipient
// row per target inside a single transaction.
func (r *NotificationRepository) CreateWithRecipients(n *models.Notification, targetIDs []uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(n).Error; err != nil {
			return err
		}
		recipients := make([]models.NotificationRecipient, 0, len(targetIDs))
		for _, id := range targetIDs {
			recipients = append(recipients, models.NotificationRecipient{
				NotificationID:  n.ID,
				RecipientUserID: id,
				DeliveryStatus:  domain.DeliveryPending,
			})
		}
		return tx.Create(&recipients).Error
	})
}

func (r *NotificationRepository) GetByID(id uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.First(&n, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (r *NotificationRepository) GetRecipient(notificationID, userID uuid.UUID) (*models.NotificationRecipient, error) {
	var rec models.NotificationRecipient
	err := r.db.First(&rec, "notification_id = ? AND recipient_user_id = ?", notificationID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// MarkDeliveredIfPending advances PENDING -> DELIVERED and stamps
// DeliveredAt exactly once. Re-applying it on a DELIVERED or READ row is a
// no-op, which is what makes at-least-once job redelivery safe.
func (r *NotificationRepository) MarkDeliveredIfPending(notificationID, userID uuid.UUID, at time.Time) (*models.NotificationRecipient, error) {
	res := r.db.Model(&models.NotificationRecipient{}).
		Where("notification_id = ? AND recipient_user_id = ? AND delivery_status = ?",
			notificationID, userID, domain.DeliveryPending).
		Updates(map[string]interface{}{
			"delivery_status": domain.DeliveryDelivered,
			"delivered_at":    at,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	return r.GetRecipient(notificationID, userID)
}

// Acknowledge moves the caller's own row to READ. Already-READ rows are
// left untouched so ReadAt is only ever stamped once.
func (r *NotificationRepository) Acknowledge(notificationID, userID uuid.UUID, at time.Time) (*models.NotificationRecipient, error) {
	rec, err := r.GetRecipient(notificationID, userID)
	if err != nil {
		return nil, err
	}
	if rec.DeliveryStatus == domain.DeliveryRead {
		return rec, nil
	}
	res := r.db.Model(&models.NotificationRecipient{}).
		Where("notification_id = ? AND recipient_user_id = ? AND delivery_status <> ?",
			notificationID, userID, domain.DeliveryRead).
		Updates(map[string]interface{}{
			"delivery_status": domain.DeliveryRead,
			"read_at":         at,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	return r.GetRecipient(notificationID, userID)
}

// ListSummaries returns sent notifications, newest first. Admins see all,
// others only what they sent.
func (r *NotificationRepository) ListSummaries(callerID uuid.UUID, isAdmin bool) ([]models.Notification, error) {
	q := r.db.Model(&models.Notification{})
	if !isAdmin {
		q = q.Where("sender_user_id = ?", callerID)
	}
	var list []models.Notification
	err := q.Order("created_at DESC").Find(&list).Error
	return list, err
}

// ListRecipients returns all recipient rows for one notification.
func (r *NotificationRepository) ListRecipients(notificationID uuid.UUID) ([]models.NotificationRecipient, error) {
	var list []models.NotificationRecipient
	err := r.db.Where("notification_id = ?", notificationID).Find(&list).Error
	return list, err
}

// InboxRow is a received notification joined with its delivery state.
type InboxRow struct {
	NotificationID uuid.UUID  `json:"notification_id"`
	Title          string     `json:"title"`
	Body           string     `json:"body"`
	CreatedAt      time.Time  `json:"created_at"`
	DeliveryStatus string     `json:"delivery_status"`
	DeliveredAt    *time.Time `json:"delivered_at"`
	ReadAt         *time.Time `json:"read_at"`
}

func (r *NotificationRepository) ListInbox(userID uuid.UUID) ([]InboxRow, error) {
	var rows []InboxRow
	err := r.db.Model(&models.NotificationRecipient{}).
		Select("notification_recipients.notification_id, notifications.title, notifications.body, notifications.created_at, notification_recipients.delivery_status, notification_recipients.delivered_at, notification_recipients.read_at").
		Joins("JOIN notifications ON notifications.id = notification_recipients.notification_id").
		Where("notification_recipients.recipient_user_id = ?", userID).
		Order("notifications.created_at DESC").
		Scan(&rows).Error
	return rows, err
}

// StaleDispatch describes a notification whose recipients are still PENDING
// past the sweep age and need re-enqueueing.
type StaleDispatch struct {
	Notification models.Notification
	PendingIDs   []uuid.UUID
}

// ListStalePending finds notifications created before the cutoff that still
// carry PENDING recipient rows.
func (r *NotificationRepository) ListStalePending(cutoff time.Time) ([]StaleDispatch, error) {
	var notifications []models.Notification
	err := r.db.Model(&models.Notification{}).
		Where("created_at < ?", cutoff).
		Where("id IN (?)", r.db.Model(&models.NotificationRecipient{}).
			Select("notification_id").
			Where("delivery_status = ?", domain.DeliveryPending)).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}

	out := make([]StaleDispatch, 0, len(notifications))
	for _, n := range notifications {
		var ids []uuid.UUID
		err := r.db.Model(&models.NotificationRecipient{}).
			Where("notification_id = ? AND delivery_status = ?", n.ID, domain.DeliveryPending).
			Pluck("recipient_user_id", &ids).Error
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			continue
		}
		out = append(out, StaleDispatch{Notification: n, PendingIDs: ids})
	}
	return out, nil
}
