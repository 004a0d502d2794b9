// internal/services/analytics_service.go
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/storage"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
)

// RecentActivityLimit 摘要中最近事件条数
const RecentActivityLimit = 10

// AnalyticsService 用户行为统计
type AnalyticsService struct {
	events storage.Analytics
	logger *utils.Logger
	now    func() time.Time
}

func NewAnalyticsService(store *storage.Store) *AnalyticsService {
	return &AnalyticsService{
		events: store.Analytics,
		logger: utils.GetLogger().With(map[string]interface{}{"component": "analytics"}),
		now:    time.Now,
	}
}

// Record 写入一条事件，失败时返回错误
func (s *AnalyticsService) Record(ctx context.Context, userID string, eventType models.EventType, projectID string, metadata map[string]interface{}) (*models.AnalyticsEvent, error) {
	event := &models.AnalyticsEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		EventType: eventType,
		ProjectID: projectID,
		Metadata:  metadata,
		CreatedAt: s.now().UTC(),
	}
	if err := s.events.Record(ctx, event); err != nil {
		return nil, apperrors.NewInternalError("record analytics event", err)
	}
	return event, nil
}

// Track 业务流程中的埋点，失败只记日志
func (s *AnalyticsService) Track(ctx context.Context, userID string, eventType models.EventType, projectID string, metadata map[string]interface{}) {
	if s == nil || userID == "" {
		return
	}
	if _, err := s.Record(ctx, userID, eventType, projectID, metadata); err != nil {
		s.logger.Warn("记录分析事件失败", map[string]interface{}{
			"event_type": eventType,
			"user_id":    userID,
			"err":        err,
		})
	}
}

// Summary 用户统计摘要
func (s *AnalyticsService) Summary(ctx context.Context, userID string) (*models.AnalyticsSummary, error) {
	events, err := s.events.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("load analytics", err)
	}

	summary := &models.AnalyticsSummary{RecentActivity: []models.AnalyticsEvent{}}
	projects := make(map[string]struct{})
	for _, e := range events {
		if e.ProjectID != "" {
			projects[e.ProjectID] = struct{}{}
		}
		switch e.EventType {
		case models.EventScriptGenerated:
			summary.ScriptsGenerated++
		case models.EventStoryboardGenerated:
			summary.StoryboardsGenerated++
		case models.EventProjectShared:
			summary.ProjectsShared++
		case models.EventProjectExported:
			summary.ProjectsExported++
		}
	}
	summary.TotalProjects = len(projects)

	for i := 0; i < len(events) && i < RecentActivityLimit; i++ {
		summary.RecentActivity = append(summary.RecentActivity, *events[i])
	}
	return summary, nil
}
