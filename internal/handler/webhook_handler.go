package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/lgu-admin-api/internal/dto"
	"github.com/noah-isme/lgu-admin-api/internal/middleware"
	"github.com/noah-isme/lgu-admin-api/internal/models"
	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
	"github.com/noah-isme/lgu-admin-api/pkg/response"
)

const maxWebhookBody = 1 << 20

type webhookProcessor interface {
	HandleWebhook(ctx context.Context, n models.WebhookNotification) error
	SimulateWebhook(ctx context.Context, publicID string, action models.NotificationKind, kind models.ResourceKind, actor string) error
	RecordRejectedWebhook(ctx context.Context, publicID string, kind models.NotificationKind, reason error)
}

type webhookVerifier interface {
	Enabled() bool
	Verify(body []byte, timestamp, signature string) error
}

// WebhookHandler receives provider push notifications.
type WebhookHandler struct {
	processor webhookProcessor
	verifier  webhookVerifier
	logger    *zap.Logger
}

// NewWebhookHandler builds the webhook receiver.
func NewWebhookHandler(processor webhookProcessor, verifier webhookVerifier, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{processor: processor, verifier: verifier, logger: logger}
}

// Receive godoc
// @Summary Receive a media provider notification
// @Description Verifies the signature, then mirrors the change into the local library. Processing failures are acknowledged with success=false so the provider does not retry.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-Signature header string true "Hex SHA-1 of body + timestamp + secret"
// @Param X-Timestamp header string true "Unix seconds"
// @Success 200 {object} response.Ack
// @Failure 401 {object} response.Envelope
// @Router /webhook [post]
func (h *WebhookHandler) Receive(c *gin.Context) {
	if h.verifier == nil || !h.verifier.Enabled() {
		response.Error(c, appErrors.New("WEBHOOK_DISABLED", http.StatusServiceUnavailable, "webhook secret is not configured"))
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, invalidPayload(err, "webhook body"))
		return
	}

	timestamp := firstHeader(c, "X-Timestamp", "X-Cld-Timestamp")
	signature := firstHeader(c, "X-Signature", "X-Cld-Signature")
	if err := h.verifier.Verify(body, timestamp, signature); err != nil {
		h.logger.Warn("webhook signature rejected", zap.Error(err), zap.String("client_ip", c.ClientIP()))
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidSignature.Code, http.StatusUnauthorized, appErrors.ErrInvalidSignature.Message))
		return
	}

	ctx := c.Request.Context()
	notification, err := models.ParseWebhook(body)
	if err != nil {
		publicID, kind := peekNotification(body)
		h.processor.RecordRejectedWebhook(ctx, publicID, kind, err)
		h.logger.Warn("webhook payload rejected", zap.Error(err))
		response.Acknowledge(c, false, err.Error())
		return
	}

	if err := h.processor.HandleWebhook(ctx, notification); err != nil {
		h.logger.Error("webhook processing failed",
			zap.String("notification_type", string(notification.Kind())),
			zap.Strings("public_ids", notification.PublicIDs()),
			zap.Error(err),
		)
		response.Acknowledge(c, false, err.Error())
		return
	}
	response.Acknowledge(c, true, "processed "+string(notification.Kind())+" notification")
}

// Simulate godoc
// @Summary Replay a notification for one asset
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param payload body dto.WebhookSimulateRequest true "Simulated notification"
// @Success 200 {object} response.Envelope
// @Router /webhook [put]
func (h *WebhookHandler) Simulate(c *gin.Context) {
	var req dto.WebhookSimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "simulation payload"))
		return
	}
	action := models.NotificationKind(req.Action)
	err := h.processor.SimulateWebhook(c.Request.Context(), req.PublicID, action, models.ResourceKind(req.ResourceType), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"public_id": req.PublicID, "action": req.Action}, nil, middleware.ResponseMeta(c))
}

func firstHeader(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(c.GetHeader(name)); v != "" {
			return v
		}
	}
	return ""
}

// peekNotification pulls what it can out of a payload that failed validation, for the audit log.
func peekNotification(body []byte) (string, models.NotificationKind) {
	var peek struct {
		NotificationType string `json:"notification_type"`
		PublicID         string `json:"public_id"`
		Resources        []struct {
			PublicID string `json:"public_id"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(body, &peek); err != nil {
		return "", ""
	}
	publicID := peek.PublicID
	if publicID == "" && len(peek.Resources) > 0 {
		publicID = peek.Resources[0].PublicID
	}
	return publicID, models.NotificationKind(strings.ToLower(peek.NotificationType))
}
