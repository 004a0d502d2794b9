// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Projects 项目存储
type Projects interface {
	Create(ctx context.Context, p *models.Project) error
	Get(ctx context.Context, id string) (*models.Project, error)
	Update(ctx context.Context, p *models.Project) error
	Delete(ctx context.Context, id string) error
	// ListByUser 按创建时间倒序
	ListByUser(ctx context.Context, userID string) ([]*models.Project, error)
}

// Shares 公开分享链接存储
type Shares interface {
	// ReplaceActive 停用项目现有的激活链接并写入新链接，二者原子完成
	ReplaceActive(ctx context.Context, share *models.PublicShare) error
	GetByToken(ctx context.Context, token string) (*models.PublicShare, error)
	ActiveForProject(ctx context.Context, projectID string) (*models.PublicShare, error)
	// IncrementViews 返回自增后的浏览次数
	IncrementViews(ctx context.Context, token string) (int, error)
	Deactivate(ctx context.Context, token string) error
	DeleteByProject(ctx context.Context, projectID string) error
}

// Users 用户存储，email 唯一
type Users interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Collaborators 协作者存储
type Collaborators interface {
	Upsert(ctx context.Context, c *models.Collaborator) error
	Get(ctx context.Context, projectID, userID string) (*models.Collaborator, error)
	ListByProject(ctx context.Context, projectID string) ([]*models.Collaborator, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Collaborator, error)
	Remove(ctx context.Context, projectID, userID string) error
	DeleteByProject(ctx context.Context, projectID string) error
}

// Comments 评论存储
type Comments interface {
	Create(ctx context.Context, c *models.Comment) error
	// ListByProject 按时间正序，scene 非空时只返回该场景的评论
	ListByProject(ctx context.Context, projectID string, scene *int) ([]*models.Comment, error)
	DeleteByProject(ctx context.Context, projectID string) error
}

// Activity 活动日志存储
type Activity interface {
	Append(ctx context.Context, a *models.ActivityLog) error
	// Latest 最新的 n 条，时间倒序
	Latest(ctx context.Context, projectID string, n int) ([]*models.ActivityLog, error)
	DeleteByProject(ctx context.Context, projectID string) error
}

// Analytics 分析事件存储
type Analytics interface {
	Record(ctx context.Context, e *models.AnalyticsEvent) error
	// ListByUser 时间倒序
	ListByUser(ctx context.Context, userID string) ([]*models.AnalyticsEvent, error)
}

// Renders 渲染任务存储
type Renders interface {
	Save(ctx context.Context, job *models.RenderJob) error
	Get(ctx context.Context, id string) (*models.RenderJob, error)
	ListByStatus(ctx context.Context, status string) ([]*models.RenderJob, error)
}

// TemplateUsage 模板使用次数
type TemplateUsage interface {
	Increment(ctx context.Context, templateID string) error
	Counts(ctx context.Context) (map[string]int, error)
}

// Store 各存储的集合
type Store struct {
	Driver        string
	Projects      Projects
	Shares        Shares
	Users         Users
	Collaborators Collaborators
	Comments      Comments
	Activity      Activity
	Analytics     Analytics
	Renders       Renders
	TemplateUsage TemplateUsage

	closer func() error
}

// Close 释放底层资源
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// NewStore 组装存储，供其它后端使用
func NewStore(driver string, closer func() error) *Store {
	return &Store{Driver: driver, closer: closer}
}
