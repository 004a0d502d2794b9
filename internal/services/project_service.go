// internal/services/project_service.go
package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Krosebrook/lovable-prompt-artist/internal/duration"
	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/storage"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
	"github.com/Krosebrook/lovable-prompt-artist/internal/validation"
)

// ProjectSummary 列表项，附带当前用户的角色
type ProjectSummary struct {
	*models.Project
	Role models.Role `json:"role"`
}

// DurationSummary 项目时长统计
type DurationSummary struct {
	Total       string                     `json:"total"`
	Short       string                     `json:"short"`
	Seconds     int                        `json:"seconds"`
	SceneCount  int                        `json:"scene_count"`
	Percentages []duration.ScenePercentage `json:"percentages"`
}

// ProjectService 项目的增删改查
type ProjectService struct {
	store       *storage.Store
	permissions *Permissions
	activity    *ActivityService
	analytics   *AnalyticsService
	notifier    Notifier
	locks       *LockManager
	logger      *utils.Logger
	now         func() time.Time
}

// NewProjectService locks 为 nil 时使用不做定期清理的锁管理器
func NewProjectService(store *storage.Store, permissions *Permissions, activity *ActivityService, analytics *AnalyticsService, notifier Notifier, locks *LockManager) *ProjectService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if locks == nil {
		locks = NewLockManager(0)
	}
	return &ProjectService{
		store:       store,
		permissions: permissions,
		activity:    activity,
		analytics:   analytics,
		notifier:    notifier,
		locks:       locks,
		logger:      utils.GetLogger(),
		now:         time.Now,
	}
}

func normalizeInput(in *validation.ProjectInput) {
	in.Script.Title = strings.TrimSpace(in.Script.Title)
	if in.StoryboardImages == nil {
		in.StoryboardImages = []models.StoryboardImage{}
	}
}

// Create 保存新项目，总时长由场景计算
func (s *ProjectService) Create(ctx context.Context, userID string, in *validation.ProjectInput) (*models.Project, error) {
	normalizeInput(in)
	if err := validation.Project(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	project := &models.Project{
		ID:               uuid.NewString(),
		UserID:           userID,
		Title:            in.Title,
		Topic:            in.Topic,
		Script:           in.Script,
		StoryboardImages: in.StoryboardImages,
		TotalDuration:    duration.CalculateTotal(in.Script.Scenes),
		TemplateID:       in.TemplateID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.Projects.Create(ctx, project); err != nil {
		return nil, apperrors.NewInternalError("save project", err)
	}

	s.activity.Log(ctx, project.ID, userID, models.ActivityCreated, map[string]interface{}{"title": project.Title})
	s.analytics.Track(ctx, userID, models.EventProjectSaved, project.ID, map[string]interface{}{
		"scene_count": len(project.Script.Scenes),
	})
	s.logger.Info("项目已创建", map[string]interface{}{"project_id": project.ID, "user_id": userID})
	return project, nil
}

// Get 需要查看权限
func (s *ProjectService) Get(ctx context.Context, userID, id string) (*models.Project, error) {
	project, _, err := s.permissions.Require(ctx, id, userID, models.ActionView)
	return project, err
}

// List 自己的项目与被邀请协作的项目，按创建时间倒序
func (s *ProjectService) List(ctx context.Context, userID string) ([]ProjectSummary, error) {
	own, err := s.store.Projects.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("list projects", err)
	}
	out := make([]ProjectSummary, 0, len(own))
	for _, p := range own {
		out = append(out, ProjectSummary{Project: p, Role: models.RoleOwner})
	}

	shared, err := s.store.Collaborators.ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewInternalError("list collaborations", err)
	}
	for _, c := range shared {
		p, err := s.store.Projects.Get(ctx, c.ProjectID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, apperrors.NewInternalError("load shared project", err)
		}
		if p.UserID == userID {
			continue
		}
		out = append(out, ProjectSummary{Project: p, Role: c.Role})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Update 需要编辑权限，整体替换可编辑字段
func (s *ProjectService) Update(ctx context.Context, userID, id string, in *validation.ProjectInput) (*models.Project, error) {
	normalizeInput(in)
	if err := validation.Project(in); err != nil {
		return nil, err
	}
	return s.mutate(ctx, userID, id, func(project *models.Project) map[string]interface{} {
		project.Title = in.Title
		project.Topic = in.Topic
		project.Script = in.Script
		project.StoryboardImages = in.StoryboardImages
		project.TemplateID = in.TemplateID
		return map[string]interface{}{"title": project.Title}
	})
}

// AttachImages 合并新生成的分镜图，需要编辑权限
func (s *ProjectService) AttachImages(ctx context.Context, userID, id string, images []models.StoryboardImage) (*models.Project, error) {
	return s.mutate(ctx, userID, id, func(project *models.Project) map[string]interface{} {
		project.StoryboardImages = models.MergeImages(project.StoryboardImages, images...)
		return map[string]interface{}{"storyboard_images": len(images)}
	})
}

// mutate 在项目锁内读取、修改并保存，总时长随场景重新计算
func (s *ProjectService) mutate(ctx context.Context, userID, id string, apply func(*models.Project) map[string]interface{}) (*models.Project, error) {
	var (
		project *models.Project
		details map[string]interface{}
	)
	err := s.locks.WithProjectLock(id, func() error {
		p, _, err := s.permissions.Require(ctx, id, userID, models.ActionEdit)
		if err != nil {
			return err
		}
		details = apply(p)
		p.TotalDuration = duration.CalculateTotal(p.Script.Scenes)
		p.UpdatedAt = s.now().UTC()

		if err := s.store.Projects.Update(ctx, p); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.NewNotFoundError("Project not found", err)
			}
			return apperrors.NewInternalError("update project", err)
		}
		project = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Log(ctx, project.ID, userID, models.ActivityUpdated, details)
	s.analytics.Track(ctx, userID, models.EventProjectSaved, project.ID, map[string]interface{}{
		"scene_count": len(project.Script.Scenes),
		"update":      true,
	})
	publish(s.notifier, project.ID, EventProjectUpdated, project)
	return project, nil
}

// Delete 需要删除权限，同时清理分享、协作者、评论和活动
func (s *ProjectService) Delete(ctx context.Context, userID, id string) error {
	var project *models.Project
	err := s.locks.WithProjectLock(id, func() error {
		p, _, err := s.permissions.Require(ctx, id, userID, models.ActionDelete)
		if err != nil {
			return err
		}
		if err := s.store.Projects.Delete(ctx, p.ID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return apperrors.NewNotFoundError("Project not found", err)
			}
			return apperrors.NewInternalError("delete project", err)
		}
		project = p
		return nil
	})
	if err != nil {
		return err
	}

	cleanups := []struct {
		name string
		fn   func(context.Context, string) error
	}{
		{"shares", s.store.Shares.DeleteByProject},
		{"collaborators", s.store.Collaborators.DeleteByProject},
		{"comments", s.store.Comments.DeleteByProject},
		{"activity", s.store.Activity.DeleteByProject},
	}
	for _, c := range cleanups {
		if err := c.fn(ctx, project.ID); err != nil {
			s.logger.Warn("清理项目数据失败", map[string]interface{}{
				"project_id": project.ID,
				"kind":       c.name,
				"err":        err,
			})
		}
	}

	s.analytics.Track(ctx, userID, models.EventProjectDeleted, project.ID, nil)
	publish(s.notifier, project.ID, EventProjectDeleted, map[string]interface{}{"id": project.ID})
	s.logger.Info("项目已删除", map[string]interface{}{"project_id": project.ID, "user_id": userID})
	return nil
}

// Duration 项目时长与各场景占比
func (s *ProjectService) Duration(ctx context.Context, userID, id string) (*DurationSummary, error) {
	project, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return SummarizeDuration(project.Script.Scenes), nil
}

// SummarizeDuration 计算时长统计
func SummarizeDuration(scenes []models.Scene) *DurationSummary {
	seconds := duration.TotalSeconds(scenes)
	return &DurationSummary{
		Total:       duration.FormatSeconds(seconds, duration.FormatLong),
		Short:       duration.FormatSeconds(seconds, duration.FormatShort),
		Seconds:     seconds,
		SceneCount:  len(scenes),
		Percentages: duration.ScenePercentages(scenes),
	}
}
