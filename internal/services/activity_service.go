// internal/services/activity_service.go
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

// ActivityFeedLimit 活动流返回条数
const ActivityFeedLimit = 20

// ActivityService 项目活动日志
type ActivityService struct {
	logs     storage.Activity
	notifier Notifier
	logger   *utils.Logger
	now      func() time.Time
}

func NewActivityService(store *storage.Store, notifier Notifier) *ActivityService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &ActivityService{
		logs:     store.Activity,
		notifier: notifier,
		logger:   utils.GetLogger(),
		now:      time.Now,
	}
}

// Log 追加一条活动并推送，写入失败只记日志
func (s *ActivityService) Log(ctx context.Context, projectID, userID, action string, details map[string]interface{}) {
	entry := &models.ActivityLog{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UserID:    userID,
		Action:    action,
		Details:   details,
		CreatedAt: s.now().UTC(),
	}
	if err := s.logs.Append(ctx, entry); err != nil {
		s.logger.Warn("写入活动日志失败", map[string]interface{}{
			"project_id": projectID,
			"action":     action,
			"err":        err,
		})
		return
	}
	publish(s.notifier, projectID, EventActivity, entry)
}

// Latest 最近的活动，时间倒序
func (s *ActivityService) Latest(ctx context.Context, projectID string) ([]*models.ActivityLog, error) {
	logs, err := s.logs.Latest(ctx, projectID, ActivityFeedLimit)
	if err != nil {
		return nil, apperrors.NewInternalError("load activity", err)
	}
	if logs == nil {
		logs = []*models.ActivityLog{}
	}
	return logs, nil
}
