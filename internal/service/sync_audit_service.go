package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lgu-admin-api/internal/dto"
	"github.com/noah-isme/lgu-admin-api/internal/models"
	appErrors "github.com/noah-isme/lgu-admin-api/pkg/errors"
	"github.com/noah-isme/lgu-admin-api/pkg/export"
)

type syncLogReader interface {
	List(ctx context.Context, filter models.SyncLogFilter) ([]models.SyncLogEntry, int, error)
}

type syncOperationReader interface {
	GetByID(ctx context.Context, id string) (*models.SyncOperation, error)
	ListRecent(ctx context.Context, kind models.SyncOperationKind, limit int) ([]models.SyncOperation, error)
}

const (
	exportPageSize = 500
	defaultMaxRows = 10000
)

var syncLogHeaders = []string{"created_at", "public_id", "operation", "source", "status", "duration_ms", "error_message"}

// LogExport is a rendered-on-demand sync log download.
type LogExport struct {
	Filename    string
	ContentType string
	Rows        int

	data     export.Dataset
	renderer export.Renderer
}

// Render writes the export into w.
func (e *LogExport) Render(w io.Writer) error {
	return e.renderer.Render(w, e.data)
}

// SyncAuditService serves the read side of the sync log and operation records.
type SyncAuditService struct {
	logs        syncLogReader
	operations  syncOperationReader
	broadcaster *SyncBroadcaster
	renderers   map[string]export.Renderer
	maxRows     int
	logger      *zap.Logger
}

// NewSyncAuditService wires the audit reader. maxRows caps exports; zero uses the default.
func NewSyncAuditService(logs syncLogReader, operations syncOperationReader, broadcaster *SyncBroadcaster, maxRows int, logger *zap.Logger) *SyncAuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &SyncAuditService{
		logs:        logs,
		operations:  operations,
		broadcaster: broadcaster,
		renderers: map[string]export.Renderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(2, 3, 1, 1, 1, 1, 4),
		},
		maxRows: maxRows,
		logger:  logger,
	}
}

// ListLogs returns one page of the sync log, newest first.
func (s *SyncAuditService) ListLogs(ctx context.Context, q dto.SyncLogQuery) ([]models.SyncLogEntry, models.Pagination, error) {
	filter := logFilter(q)
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	entries, total, err := s.logs.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Database(err, "failed to list sync logs")
	}
	return entries, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// ExportLogs collects the matching log entries, up to the row cap, for a CSV or PDF download.
func (s *SyncAuditService) ExportLogs(ctx context.Context, q dto.SyncLogQuery) (*LogExport, error) {
	format := q.Format
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	filter := logFilter(q)
	filter.Limit = exportPageSize
	rows := make([][]string, 0, exportPageSize)
	for page := 1; len(rows) < s.maxRows; page++ {
		filter.Page = page
		entries, total, err := s.logs.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Database(err, "failed to export sync logs")
		}
		for _, entry := range entries {
			if len(rows) == s.maxRows {
				break
			}
			rows = append(rows, logRow(entry))
		}
		if len(entries) < exportPageSize || page*exportPageSize >= total {
			break
		}
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	s.logger.Sugar().Infow("sync log exported", "format", format, "rows", len(rows))
	return &LogExport{
		Filename:    fmt.Sprintf("media-sync-log-%s.%s", stamp, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Rows:        len(rows),
		data:        export.Dataset{Title: "Media sync log", Headers: syncLogHeaders, Rows: rows},
		renderer:    renderer,
	}, nil
}

// ListOperations returns recent sync operations.
func (s *SyncAuditService) ListOperations(ctx context.Context, q dto.SyncOperationQuery) ([]models.SyncOperation, error) {
	ops, err := s.operations.ListRecent(ctx, models.SyncOperationKind(q.Kind), q.Limit)
	if err != nil {
		return nil, appErrors.Database(err, "failed to list sync operations")
	}
	return ops, nil
}

// GetOperation returns one persisted operation record.
func (s *SyncAuditService) GetOperation(ctx context.Context, id string) (*models.SyncOperation, error) {
	op, err := s.operations.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "sync operation not found")
	}
	if err != nil {
		return nil, appErrors.Database(err, "failed to load sync operation")
	}
	return op, nil
}

// LiveOperation returns the most recent broadcast for an operation. Operations this instance has not
// seen an event for are answered from the persisted record.
func (s *SyncAuditService) LiveOperation(ctx context.Context, id string) (*SyncEvent, error) {
	if event, ok := s.broadcaster.Latest(id); ok {
		return &event, nil
	}
	op, err := s.GetOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	eventType := EventSyncProgress
	switch op.Status {
	case models.SyncOpCompleted:
		eventType = EventSyncCompleted
	case models.SyncOpFailed:
		eventType = EventSyncFailed
	}
	timestamp := op.StartedAt
	if op.CompletedAt != nil {
		timestamp = *op.CompletedAt
	}
	return &SyncEvent{
		Type:        eventType,
		OperationID: op.ID,
		Status:      op.Status,
		Progress:    op.Progress,
		ActorID:     op.TriggeredBy,
		Timestamp:   timestamp,
		Data: map[string]interface{}{
			"processed_items": op.ProcessedItems,
			"failed_items":    op.FailedItems,
		},
	}, nil
}

func logFilter(q dto.SyncLogQuery) models.SyncLogFilter {
	return models.SyncLogFilter{
		PublicID:  q.PublicID,
		Operation: models.SyncLogOperation(q.Operation),
		Source:    models.SyncSource(q.Source),
		Status:    models.SyncLogStatus(q.Status),
		From:      q.From,
		To:        q.To,
		Page:      q.Page,
		Limit:     q.Limit,
	}
}

func logRow(entry models.SyncLogEntry) []string {
	errMsg := ""
	if entry.ErrorMessage != nil {
		errMsg = *entry.ErrorMessage
	}
	return []string{
		entry.CreatedAt.UTC().Format(time.RFC3339),
		entry.PublicID,
		string(entry.Operation),
		string(entry.Source),
		string(entry.Status),
		strconv.FormatInt(entry.DurationMs, 10),
		errMsg,
	}
}
