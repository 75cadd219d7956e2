package services

import (
	"context"
	"time"

	"hisaab/internal/docstore"
	"hisaab/internal/logger"
	"hisaab/internal/models"
	"hisaab/internal/uuid"
)

// auditService handles audit log recording.
type auditService struct {
	store docstore.Store
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(store docstore.Store) AuditServicer {
	return &auditService{store: store}
}

// Log records an audit event. Errors are logged but never propagate
// to avoid disrupting the main operation.
func (s *auditService) Log(ctx context.Context, userID, action, resourceType, resourceID, ipAddress string, changes map[string]any) {
	entry := &models.AuditLog{
		Base: models.Base{
			ID:        uuid.New(),
			CreatedBy: userID,
			CreatedAt: time.Now().UTC(),
		},
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
		Changes:      changes,
	}

	if _, err := s.store.Create(context.WithoutCancel(ctx), models.CollectionAuditLogs, entry.ID, entry); err != nil {
		logger.Get().Errorw("failed to create audit log entry",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}
