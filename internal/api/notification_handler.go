package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"push-notification-service/internal/model"
	"push-notification-service/internal/service"
	"push-notification-service/pkg/logger"
)

// NotificationService is the part of *service.NotificationService the
// handlers call.
type NotificationService interface {
	AddNotification(ctx context.Context, fields model.NotificationFields) (int64, error)
	ListNotifications(ctx context.Context) ([]model.Notification, error)
	GetNotification(ctx context.Context, id int64) (model.Notification, error)
	RandomNotification(ctx context.Context) (model.Notification, error)
	UpdateNotification(ctx context.Context, id int64, update model.NotificationUpdate) (model.Notification, error)
	DeleteNotification(ctx context.Context, id int64) (bool, error)
}

type NotificationHandler struct {
	svc    NotificationService
	logger *zap.Logger
}

func NewNotificationHandler(svc NotificationService, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{svc: svc, logger: logger}
}

// Pointers so that a missing field is told apart from a zero value.
type createNotificationRequest struct {
	Amount   *lenientFloat `json:"amount" binding:"required"`
	Currency *string       `json:"currency" binding:"required"`
	Text     *string       `json:"text" binding:"required"`
}

type updateNotificationRequest struct {
	Amount   *lenientFloat `json:"amount"`
	Currency *string       `json:"currency"`
	Text     *string       `json:"text"`
}

// AddNotification handles POST /notification/ and responds with the bare id.
func (h *NotificationHandler) AddNotification(c *gin.Context) {
	var req createNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationFailed(c, err)
		return
	}

	id, err := h.svc.AddNotification(c.Request.Context(), model.NotificationFields{
		Amount:   float64(*req.Amount),
		Currency: *req.Currency,
		Text:     *req.Text,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, id)
}

// ListNotifications handles GET /notifications/
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	items, err := h.svc.ListNotifications(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetNotification handles GET /notifications/:id
func (h *NotificationHandler) GetNotification(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	n, err := h.svc.GetNotification(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// RandomNotification handles GET /notifications/random
func (h *NotificationHandler) RandomNotification(c *gin.Context) {
	n, err := h.svc.RandomNotification(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// UpdateNotification handles PUT /notifications/:id
func (h *NotificationHandler) UpdateNotification(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var req updateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.validationFailed(c, err)
		return
	}

	n, err := h.svc.UpdateNotification(c.Request.Context(), id, model.NotificationUpdate{
		Amount:   req.Amount.ptr(),
		Currency: req.Currency,
		Text:     req.Text,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// DeleteNotification handles DELETE /notifications/:id
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	deleted, err := h.svc.DeleteNotification(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *NotificationHandler) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func (h *NotificationHandler) validationFailed(c *gin.Context, err error) {
	logger.WithTrace(c.Request.Context(), h.logger).Debug("Request body rejected",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
}

// fail maps a service error onto a status code. The body always carries the
// raw error text; the service has already logged storage failures.
func (h *NotificationHandler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch service.KindOf(err) {
	case service.KindNotFound:
		status = http.StatusNotFound
	case service.KindInvalid:
		status = http.StatusBadRequest
	}

	c.JSON(status, gin.H{"detail": err.Error()})
}
