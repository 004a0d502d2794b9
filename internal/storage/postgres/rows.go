// internal/storage/postgres/rows.go
package postgres

import (
	"time"

	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
)

type projectRow struct {
	ID               string                   `gorm:"primaryKey;size:64"`
	UserID           string                   `gorm:"index;size:64;not null"`
	Title            string                   `gorm:"size:200;not null"`
	Topic            string                   `gorm:"type:text"`
	Script           models.VideoScript       `gorm:"serializer:json;type:jsonb"`
	StoryboardImages []models.StoryboardImage `gorm:"serializer:json;type:jsonb"`
	TotalDuration    string                   `gorm:"size:64"`
	TemplateID       string                   `gorm:"size:64"`
	CreatedAt        time.Time                `gorm:"index"`
	UpdatedAt        time.Time
}

func (projectRow) TableName() string { return "projects" }

func projectToRow(p *models.Project) *projectRow {
	return &projectRow{
		ID:               p.ID,
		UserID:           p.UserID,
		Title:            p.Title,
		Topic:            p.Topic,
		Script:           p.Script,
		StoryboardImages: p.StoryboardImages,
		TotalDuration:    p.TotalDuration,
		TemplateID:       p.TemplateID,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func (r *projectRow) model() *models.Project {
	images := r.StoryboardImages
	if images == nil {
		images = []models.StoryboardImage{}
	}
	return &models.Project{
		ID:               r.ID,
		UserID:           r.UserID,
		Title:            r.Title,
		Topic:            r.Topic,
		Script:           r.Script,
		StoryboardImages: images,
		TotalDuration:    r.TotalDuration,
		TemplateID:       r.TemplateID,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type shareRow struct {
	ID         string     `gorm:"primaryKey;size:64"`
	ProjectID  string     `gorm:"index;size:64;not null"`
	ShareToken string     `gorm:"uniqueIndex;size:64;not null"`
	ExpiresAt  *time.Time
	IsActive   bool `gorm:"index"`
	ViewCount  int
	CreatedAt  time.Time
}

func (shareRow) TableName() string { return "public_shares" }

func shareToRow(s *models.PublicShare) *shareRow {
	return &shareRow{
		ID:         s.ID,
		ProjectID:  s.ProjectID,
		ShareToken: s.ShareToken,
		ExpiresAt:  s.ExpiresAt,
		IsActive:   s.IsActive,
		ViewCount:  s.ViewCount,
		CreatedAt:  s.CreatedAt,
	}
}

func (r *shareRow) model() *models.PublicShare {
	return &models.PublicShare{
		ID:         r.ID,
		ProjectID:  r.ProjectID,
		ShareToken: r.ShareToken,
		ExpiresAt:  r.ExpiresAt,
		IsActive:   r.IsActive,
		ViewCount:  r.ViewCount,
		CreatedAt:  r.CreatedAt,
	}
}

type userRow struct {
	ID           string `gorm:"primaryKey;size:64"`
	Email        string `gorm:"uniqueIndex;size:320;not null"`
	PasswordHash string `gorm:"size:128;not null"`
	CreatedAt    time.Time
}

func (userRow) TableName() string { return "users" }

type collaboratorRow struct {
	ProjectID string `gorm:"primaryKey;size:64"`
	UserID    string `gorm:"primaryKey;size:64;index"`
	Email     string `gorm:"size:320"`
	Role      string `gorm:"size:16;not null"`
	InvitedBy string `gorm:"size:64"`
	CreatedAt time.Time
}

func (collaboratorRow) TableName() string { return "project_collaborators" }

func (r *collaboratorRow) model() *models.Collaborator {
	return &models.Collaborator{
		ProjectID: r.ProjectID,
		UserID:    r.UserID,
		Email:     r.Email,
		Role:      models.Role(r.Role),
		InvitedBy: r.InvitedBy,
		CreatedAt: r.CreatedAt,
	}
}

type commentRow struct {
	ID          string `gorm:"primaryKey;size:64"`
	ProjectID   string `gorm:"index;size:64;not null"`
	SceneNumber *int
	UserID      string `gorm:"size:64;not null"`
	Content     string `gorm:"type:text;not null"`
	CreatedAt   time.Time
}

func (commentRow) TableName() string { return "project_comments" }

func (r *commentRow) model() *models.Comment {
	return &models.Comment{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		SceneNumber: r.SceneNumber,
		UserID:      r.UserID,
		Content:     r.Content,
		CreatedAt:   r.CreatedAt,
	}
}

type activityRow struct {
	ID        string                 `gorm:"primaryKey;size:64"`
	ProjectID string                 `gorm:"index;size:64;not null"`
	UserID    string                 `gorm:"size:64"`
	Action    string                 `gorm:"size:32"`
	Details   map[string]interface{} `gorm:"serializer:json;type:jsonb"`
	CreatedAt time.Time              `gorm:"index"`
}

func (activityRow) TableName() string { return "activity_logs" }

func (r *activityRow) model() *models.ActivityLog {
	return &models.ActivityLog{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		UserID:    r.UserID,
		Action:    r.Action,
		Details:   r.Details,
		CreatedAt: r.CreatedAt,
	}
}

type analyticsRow struct {
	ID        string                 `gorm:"primaryKey;size:64"`
	UserID    string                 `gorm:"index;size:64;not null"`
	EventType string                 `gorm:"size:32;not null"`
	ProjectID string                 `gorm:"size:64"`
	Metadata  map[string]interface{} `gorm:"serializer:json;type:jsonb"`
	CreatedAt time.Time              `gorm:"index"`
}

func (analyticsRow) TableName() string { return "analytics_events" }

func (r *analyticsRow) model() *models.AnalyticsEvent {
	return &models.AnalyticsEvent{
		ID:        r.ID,
		UserID:    r.UserID,
		EventType: models.EventType(r.EventType),
		ProjectID: r.ProjectID,
		Metadata:  r.Metadata,
		CreatedAt: r.CreatedAt,
	}
}

type renderRow struct {
	ID        string               `gorm:"primaryKey;size:64"`
	ProjectID string               `gorm:"index;size:64;not null"`
	UserID    string               `gorm:"size:64"`
	Options   models.ExportOptions `gorm:"serializer:json;type:jsonb"`
	Status    string               `gorm:"index;size:16"`
	Progress  int
	Plan      *models.RenderPlan `gorm:"serializer:json;type:jsonb"`
	Error     string             `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (renderRow) TableName() string { return "render_jobs" }

func renderToRow(j *models.RenderJob) *renderRow {
	return &renderRow{
		ID:        j.ID,
		ProjectID: j.ProjectID,
		UserID:    j.UserID,
		Options:   j.Options,
		Status:    j.Status,
		Progress:  j.Progress,
		Plan:      j.Plan,
		Error:     j.Error,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

func (r *renderRow) model() *models.RenderJob {
	return &models.RenderJob{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		UserID:    r.UserID,
		Options:   r.Options,
		Status:    r.Status,
		Progress:  r.Progress,
		Plan:      r.Plan,
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type templateUsageRow struct {
	TemplateID string `gorm:"primaryKey;size:64"`
	Count      int    `gorm:"not null;default:0"`
}

func (templateUsageRow) TableName() string { return "template_usage" }

func allRows() []interface{} {
	return []interface{}{
		&projectRow{}, &shareRow{}, &userRow{}, &collaboratorRow{}, &commentRow{},
		&activityRow{}, &analyticsRow{}, &renderRow{}, &templateUsageRow{},
	}
}
