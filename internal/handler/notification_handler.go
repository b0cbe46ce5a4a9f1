package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"notify24/internal/domain"
	"notify24/internal/middleware"
	"notify24/internal/repository"
	"notify24/internal/service"
	"notify24/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	dispatchSvc *service.DispatchService
	notifRepo   *repository.NotificationRepository
	userRepo    *repository.UserRepository
	hub         *ws.Hub
}

func NewNotificationHandler(dispatchSvc *service.DispatchService, notifRepo *repository.NotificationRepository, userRepo *repository.UserRepository, hub *ws.Hub) *NotificationHandler {
	return &NotificationHandler{dispatchSvc: dispatchSvc, notifRepo: notifRepo, userRepo: userRepo, hub: hub}
}

type dispatchRequest struct {
	Title      string      `json:"title"`
	Body       string      `json:"body"`
	TargetMode string      `json:"target_mode"`
	UserIDs    []uuid.UUID `json:"user_ids"`
}

// Dispatch accepts a dispatch request, persists the notification with its
// PENDING recipient rows and queues exactly one delivery job.
func (h *NotificationHandler) Dispatch(c *gin.Context) {
	callerID := middleware.GetUserID(c)
	isAdmin := middleware.GetRole(c) == domain.RoleAdmin

	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	n, count, err := h.dispatchSvc.Dispatch(callerID, isAdmin, req.Title, req.Body, req.TargetMode, req.UserIDs)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNoTargets):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no target users available for this request"})
		case errors.Is(err, service.ErrBrokerUnavailable):
			log.Printf("[dispatch] publish failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "dispatch could not be queued"})
		default:
			log.Printf("[dispatch] %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatch failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notification_id": n.ID,
		"recipient_count": count,
	})
}

// List returns sent notification summaries (admins see all senders).
func (h *NotificationHandler) List(c *gin.Context) {
	callerID := middleware.GetUserID(c)
	isAdmin := middleware.GetRole(c) == domain.RoleAdmin

	list, err := h.notifRepo.ListSummaries(callerID, isAdmin)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// Tracking returns per-recipient delivery rows for the sender or an admin.
func (h *NotificationHandler) Tracking(c *gin.Context) {
	callerID := middleware.GetUserID(c)
	isAdmin := middleware.GetRole(c) == domain.RoleAdmin

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	n, err := h.notifRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if !isAdmin && n.SenderUserID != callerID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	recipients, err := h.notifRepo.ListRecipients(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": n, "recipients": recipients})
}

// Inbox returns the caller's received notifications with delivery state.
func (h *NotificationHandler) Inbox(c *gin.Context) {
	callerID := middleware.GetUserID(c)
	rows, err := h.notifRepo.ListInbox(callerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"inbox": rows})
}

// DeliveryUpdatedEvent is pushed to the sender and admins whenever a
// recipient row changes state.
type DeliveryUpdatedEvent struct {
	NotificationID  uuid.UUID  `json:"notification_id"`
	RecipientUserID uuid.UUID  `json:"recipient_user_id"`
	Status          string     `json:"status"`
	DeliveredAtUTC  *time.Time `json:"delivered_at_utc"`
}

// Acknowledge moves the caller's own recipient row to READ. Acknowledging
// again is a no-op; a row owned by someone else is indistinguishable from a
// missing one.
func (h *NotificationHandler) Acknowledge(c *gin.Context) {
	callerID := middleware.GetUserID(c)

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}

	rec, err := h.notifRepo.Acknowledge(id, callerID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrRecipientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "acknowledge failed"})
		return
	}

	h.pushDeliveryUpdated(id, DeliveryUpdatedEvent{
		NotificationID:  id,
		RecipientUserID: callerID,
		Status:          rec.DeliveryStatus,
		DeliveredAtUTC:  rec.DeliveredAt,
	})

	c.Status(http.StatusNoContent)
}

// Sweep forces the reconciliation pass, re-enqueueing every notification that
// still carries PENDING recipients regardless of age.
func (h *NotificationHandler) Sweep(c *gin.Context) {
	h.dispatchSvc.SweepStalePending(0)
	c.Status(http.StatusAccepted)
}

type internalDeliverRequest struct {
	NotificationID  uuid.UUID `json:"notification_id"`
	RecipientUserID uuid.UUID `json:"recipient_user_id"`
	Title           string    `json:"title"`
	Body            string    `json:"body"`
}

// NotificationReceivedEvent is pushed to a recipient's own group at delivery
// time, only while they are online.
type NotificationReceivedEvent struct {
	NotificationID uuid.UUID `json:"notification_id"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	AtUTC          time.Time `json:"at_utc"`
}

// DeliverInternal is the worker's per-recipient delivery callback. It is
// idempotent: a row already DELIVERED or READ keeps its status and
// timestamps, so redelivered jobs are harmless.
func (h *NotificationHandler) DeliverInternal(c *gin.Context) {
	var req internalDeliverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	rec, err := h.notifRepo.MarkDeliveredIfPending(req.NotificationID, req.RecipientUserID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrRecipientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "recipient row not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delivery update failed"})
		return
	}

	recipient, err := h.userRepo.GetByID(req.RecipientUserID)
	if err == nil && recipient.IsOnline {
		at := time.Now().UTC()
		if rec.DeliveredAt != nil {
			at = *rec.DeliveredAt
		}
		h.hub.BroadcastToUser(req.RecipientUserID, domain.EventNotificationReceived, NotificationReceivedEvent{
			NotificationID: req.NotificationID,
			Title:          req.Title,
			Body:           req.Body,
			AtUTC:          at,
		})
	}

	h.pushDeliveryUpdated(req.NotificationID, DeliveryUpdatedEvent{
		NotificationID:  req.NotificationID,
		RecipientUserID: req.RecipientUserID,
		Status:          rec.DeliveryStatus,
		DeliveredAtUTC:  rec.DeliveredAt,
	})

	c.Status(http.StatusAccepted)
}

// pushDeliveryUpdated fans the event out to the notification's sender and to
// admin clients; tracking views belong to them, so the event is not
// broadcast to everyone.
func (h *NotificationHandler) pushDeliveryUpdated(notificationID uuid.UUID, ev DeliveryUpdatedEvent) {
	h.hub.BroadcastToRole(domain.RoleAdmin, domain.EventDeliveryUpdated, ev)
	n, err := h.notifRepo.GetByID(notificationID)
	if err != nil {
		log.Printf("[deliver] load notification for fan-out: %v", err)
		return
	}
	h.hub.BroadcastToUser(n.SenderUserID, domain.EventDeliveryUpdated, ev)
}
