package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/queue"
)

const (
	defaultInboxLimit = 50
	maxInboxLimit     = 200
)

// DispatchService drives single-notification delivery.
type DispatchService interface {
	Dispatch(ctx context.Context, n *domain.Notification) (bool, error)
	DispatchTemplated(ctx context.Context, recipientID string, category domain.Category, variables map[string]string) (bool, error)
	Status(ctx context.Context, id string) (domain.Status, error)
}

// BulkService fans one message out to many recipients.
type BulkService interface {
	DispatchBulk(ctx context.Context, recipientIDs []string, category domain.Category, message string) ([]string, error)
}

// InboxReader lists a recipient's in-app messages.
type InboxReader interface {
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]domain.InboxMessage, error)
}

type NotificationHandler struct {
	dispatcher DispatchService
	bulk       BulkService
	inbox      InboxReader
	publisher  queue.Publisher
}

func NewNotificationHandler(dispatcher DispatchService, bulk BulkService, inbox InboxReader, publisher queue.Publisher) (*NotificationHandler, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatch service is required")
	}
	if bulk == nil {
		return nil, fmt.Errorf("bulk service is required")
	}
	if inbox == nil {
		return nil, fmt.Errorf("inbox reader is required")
	}
	return &NotificationHandler{
		dispatcher: dispatcher,
		bulk:       bulk,
		inbox:      inbox,
		publisher:  publisher,
	}, nil
}

func RegisterNotificationRoutes(router fiber.Router, dispatcher DispatchService, bulk BulkService, inbox InboxReader, publisher queue.Publisher) error {
	h, err := NewNotificationHandler(dispatcher, bulk, inbox, publisher)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.DispatchNotification)
	v1.Post("/notifications/async", h.EnqueueNotification)
	v1.Post("/notifications/templated", h.DispatchTemplated)
	v1.Post("/notifications/bulk", h.DispatchBulk)
	v1.Get("/notifications/:id/status", h.GetNotificationStatus)
	v1.Get("/recipients/:id/inbox", h.ListInbox)

	return nil
}

type dispatchRequest struct {
	RecipientID string `json:"recipientId"`
	Subject     string `json:"subject"`
	Message     string `json:"message"`
	Category    string `json:"category"`
}

type templatedRequest struct {
	RecipientID string            `json:"recipientId"`
	Category    string            `json:"category"`
	Variables   map[string]string `json:"variables"`
}

type bulkRequest struct {
	RecipientIDs []string `json:"recipientIds"`
	Category     string   `json:"category"`
	Message      string   `json:"message"`
}

type dispatchResponse struct {
	ID     string `json:"id,omitempty"`
	Sent   bool   `json:"sent"`
	Status string `json:"status,omitempty"`
}

type bulkResponse struct {
	Requested int      `json:"requested"`
	Sent      int      `json:"sent"`
	SentTo    []string `json:"sentTo"`
}

type inboxMessageResponse struct {
	ID             string `json:"id"`
	NotificationID string `json:"notificationId"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	Category       string `json:"category"`
	Read           bool   `json:"read"`
	CreatedAt      string `json:"createdAt"`
}

func (h *NotificationHandler) DispatchNotification(c *fiber.Ctx) error {
	var req dispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	n, err := requestToNotification(req)
	if err != nil {
		return toHTTPError(err)
	}

	sent, err := h.dispatcher.Dispatch(c.Context(), n)
	if err != nil && !isDeliveryOutcome(err) {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(dispatchResponse{
		ID:     n.ID,
		Sent:   sent,
		Status: n.Status.String(),
	})
}

func (h *NotificationHandler) EnqueueNotification(c *fiber.Ctx) error {
	if h.publisher == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "async dispatch is not configured")
	}

	var req dispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	category, err := parseOptionalCategory(req.Category)
	if err != nil {
		return toHTTPError(err)
	}

	correlationID, _ := correlationIDFromRequest(c)
	msg := queue.DispatchMessage{
		CorrelationID: correlationID,
		RecipientID:   strings.TrimSpace(req.RecipientID),
		Subject:       strings.TrimSpace(req.Subject),
		Message:       strings.TrimSpace(req.Message),
		Category:      category,
	}
	if err := msg.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := h.publisher.Publish(c.Context(), queue.WorkQueue, msg); err != nil {
		return fmt.Errorf("failed to enqueue dispatch request: %w", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "queued",
	})
}

func (h *NotificationHandler) DispatchTemplated(c *fiber.Ctx) error {
	var req templatedRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	category, err := parseOptionalCategory(req.Category)
	if err != nil {
		return toHTTPError(err)
	}

	sent, err := h.dispatcher.DispatchTemplated(c.Context(), strings.TrimSpace(req.RecipientID), category, req.Variables)
	if err != nil && !isDeliveryOutcome(err) {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(dispatchResponse{Sent: sent})
}

func (h *NotificationHandler) DispatchBulk(c *fiber.Ctx) error {
	var req bulkRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	category, err := parseOptionalCategory(req.Category)
	if err != nil {
		return toHTTPError(err)
	}

	sentTo, err := h.bulk.DispatchBulk(c.Context(), req.RecipientIDs, category, req.Message)
	if err != nil {
		return toHTTPError(err)
	}

	if sentTo == nil {
		sentTo = []string{}
	}

	return c.Status(fiber.StatusOK).JSON(bulkResponse{
		Requested: len(req.RecipientIDs),
		Sent:      len(sentTo),
		SentTo:    sentTo,
	})
}

func (h *NotificationHandler) GetNotificationStatus(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	status, err := h.dispatcher.Status(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"notificationId": id,
		"status":         status.String(),
	})
}

func (h *NotificationHandler) ListInbox(c *fiber.Ctx) error {
	recipientID := strings.TrimSpace(c.Params("id"))
	if recipientID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "recipient id is required")
	}

	limit := c.QueryInt("limit", defaultInboxLimit)
	if limit < 1 || limit > maxInboxLimit {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxInboxLimit))
	}

	messages, err := h.inbox.ListByRecipient(c.Context(), recipientID, limit)
	if err != nil {
		return toHTTPError(err)
	}

	items := make([]inboxMessageResponse, 0, len(messages))
	for _, msg := range messages {
		items = append(items, inboxMessageResponse{
			ID:             msg.ID,
			NotificationID: msg.NotificationID,
			Subject:        msg.Subject,
			Body:           msg.Body,
			Category:       msg.Category.String(),
			Read:           msg.Read,
			CreatedAt:      msg.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"recipientId": recipientID,
		"messages":    items,
	})
}

func requestToNotification(req dispatchRequest) (*domain.Notification, error) {
	category, err := parseOptionalCategory(req.Category)
	if err != nil {
		return nil, err
	}

	return &domain.Notification{
		RecipientID: strings.TrimSpace(req.RecipientID),
		Subject:     strings.TrimSpace(req.Subject),
		Message:     strings.TrimSpace(req.Message),
		Category:    category,
	}, nil
}

func parseOptionalCategory(raw string) (domain.Category, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", nil
	}
	return domain.ParseCategoryFromString(trimmed)
}

func correlationIDFromRequest(c *fiber.Ctx) (string, bool) {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value, true
	}
	if value, ok := c.Locals("requestid").(string); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), true
	}
	return "", false
}

// isDeliveryOutcome reports whether the dispatch error describes a recorded
// delivery outcome rather than a request failure. Those surface in the
// response body with the notification status instead of an error code.
func isDeliveryOutcome(err error) bool {
	return errors.Is(err, domain.ErrNoEligibleChannels) ||
		errors.Is(err, domain.ErrRetryExhausted)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return err
	}
}
