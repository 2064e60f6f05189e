package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/lgu-admin-api/internal/dto"
	"github.com/noah-isme/lgu-admin-api/internal/models"
	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
)

type cleanupQueueBrowser interface {
	Enqueue(ctx context.Context, publicID string, kind models.ResourceKind, req models.CleanupRequest) (string, error)
	GetByID(ctx context.Context, id string) (*models.CleanupItem, error)
	ListByStatus(ctx context.Context, status models.CleanupStatus, limit int) ([]models.CleanupItem, error)
	CountOpen(ctx context.Context) (int, error)
}

// CleanupQueueView lists queue items of one status next to the open backlog size.
type CleanupQueueView struct {
	Status models.CleanupStatus `json:"status"`
	Open   int                  `json:"open"`
	Items  []models.CleanupItem `json:"items"`
}

// CleanupQueueService lets admins inspect the deletion queue and queue provider-only deletions.
type CleanupQueueService struct {
	queue       cleanupQueueBrowser
	maxAttempts int
	logger      *zap.Logger
}

// NewCleanupQueueService constructs the service.
func NewCleanupQueueService(queue cleanupQueueBrowser, maxAttempts int, logger *zap.Logger) *CleanupQueueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &CleanupQueueService{queue: queue, maxAttempts: maxAttempts, logger: logger}
}

// List returns queue items in the requested status, pending by default.
func (s *CleanupQueueService) List(ctx context.Context, q dto.CleanupQueueQuery) (*CleanupQueueView, error) {
	status := models.CleanupStatus(q.Status)
	if status == "" {
		status = models.CleanupPending
	}
	items, err := s.queue.ListByStatus(ctx, status, q.Limit)
	if err != nil {
		return nil, appErrors.Database(err, "failed to list cleanup queue")
	}
	open, err := s.queue.CountOpen(ctx)
	if err != nil {
		return nil, appErrors.Database(err, "failed to count cleanup queue")
	}
	if items == nil {
		items = []models.CleanupItem{}
	}
	return &CleanupQueueView{Status: status, Open: open, Items: items}, nil
}

// Get returns one queue item.
func (s *CleanupQueueService) Get(ctx context.Context, id string) (*models.CleanupItem, error) {
	item, err := s.queue.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "cleanup item not found")
	}
	if err != nil {
		return nil, appErrors.Database(err, "failed to load cleanup item")
	}
	return item, nil
}

// QueueRemoteDeletion queues the deletion of a provider asset that has no local row, such as a stray
// upload found by an admin. An open request for the same public id is reused.
func (s *CleanupQueueService) QueueRemoteDeletion(ctx context.Context, req dto.QueueRemoteDeletionRequest, actorID string) (*dto.DeleteAssetResponse, error) {
	publicID := strings.Trim(strings.TrimSpace(req.PublicID), "/")
	if publicID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "public_id is required")
	}
	reason := req.Reason
	if reason == "" {
		reason = "admin request"
	}
	id, err := s.queue.Enqueue(ctx, publicID, models.ResourceKind(req.ResourceType), models.CleanupRequest{
		Reason:      reason,
		TriggeredBy: actorID,
		MaxAttempts: s.maxAttempts,
	})
	if err != nil {
		return nil, appErrors.Database(err, "failed to queue provider deletion")
	}
	s.logger.Sugar().Infow("provider deletion queued", "public_id", publicID, "queue_id", id, "actor_id", actorID)
	return &dto.DeleteAssetResponse{PublicID: publicID, QueueID: id}, nil
}
