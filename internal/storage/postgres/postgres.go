// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/storage"
)

// Driver 存储驱动名
const Driver = "postgres"

// Open 连接数据库并自动迁移表结构
func Open(dsn string) (*storage.Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取连接池失败: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := db.AutoMigrate(allRows()...); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("迁移表结构失败: %w", err)
	}

	return New(db, sqlDB.Close), nil
}

// New 基于已有连接组装存储
func New(db *gorm.DB, closer func() error) *storage.Store {
	s := storage.NewStore(Driver, closer)
	s.Projects = &projects{db}
	s.Shares = &shares{db}
	s.Users = &users{db}
	s.Collaborators = &collaborators{db}
	s.Comments = &comments{db}
	s.Activity = &activity{db}
	s.Analytics = &analytics{db}
	s.Renders = &renders{db}
	s.TemplateUsage = &templateUsage{db}
	return s
}

// translate 把 gorm 错误映射为存储层错误
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return storage.ErrDuplicate
	}
	return err
}

// ---- projects ----

type projects struct{ db *gorm.DB }

func (r *projects) Create(ctx context.Context, p *models.Project) error {
	return translate(r.db.WithContext(ctx).Create(projectToRow(p)).Error)
}

func (r *projects) Get(ctx context.Context, id string) (*models.Project, error) {
	var row projectRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return row.model(), nil
}

func (r *projects) Update(ctx context.Context, p *models.Project) error {
	res := r.db.WithContext(ctx).Model(&projectRow{}).Where("id = ?", p.ID).Select("*").Omit("created_at").Updates(projectToRow(p))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *projects) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&projectRow{}, "id = ?", id)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *projects) ListByUser(ctx context.Context, userID string) ([]*models.Project, error) {
	var rows []projectRow
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*models.Project, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

// ---- shares ----

type shares struct{ db *gorm.DB }

func (r *shares) ReplaceActive(ctx context.Context, share *models.PublicShare) error {
	return translate(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&shareRow{}).
			Where("project_id = ? AND is_active = ?", share.ProjectID, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Create(shareToRow(share)).Error
	}))
}

func (r *shares) GetByToken(ctx context.Context, token string) (*models.PublicShare, error) {
	var row shareRow
	if err := r.db.WithContext(ctx).First(&row, "share_token = ?", token).Error; err != nil {
		return nil, translate(err)
	}
	return row.model(), nil
}

func (r *shares) ActiveForProject(ctx context.Context, projectID string) (*models.PublicShare, error) {
	var row shareRow
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND is_active = ?", projectID, true).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		return nil, translate(err)
	}
	return row.model(), nil
}

func (r *shares) IncrementViews(ctx context.Context, token string) (int, error) {
	var count int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&shareRow{}).Where("share_token = ?", token).
			UpdateColumn("view_count", gorm.Expr("view_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		var row shareRow
		if err := tx.Select("view_count").First(&row, "share_token = ?", token).Error; err != nil {
			return err
		}
		count = row.ViewCount
		return nil
	})
	return count, translate(err)
}

func (r *shares) Deactivate(ctx context.Context, token string) error {
	res := r.db.WithContext(ctx).Model(&shareRow{}).Where("share_token = ?", token).Update("is_active", false)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *shares) DeleteByProject(ctx context.Context, projectID string) error {
	return translate(r.db.WithContext(ctx).Delete(&shareRow{}, "project_id = ?", projectID).Error)
}

// ---- users ----

type users struct{ db *gorm.DB }

func (r *users) Create(ctx context.Context, u *models.User) error {
	row := &userRow{
		ID:           u.ID,
		Email:        strings.ToLower(u.Email),
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
	return translate(r.db.WithContext(ctx).Create(row).Error)
}

func (r *users) Get(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *users) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *users) first(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).First(&row, query, arg).Error; err != nil {
		return nil, translate(err)
	}
	return &models.User{ID: row.ID, Email: row.Email, PasswordHash: row.PasswordHash, CreatedAt: row.CreatedAt}, nil
}

// ---- collaborators ----

type collaborators struct{ db *gorm.DB }

func (r *collaborators) Upsert(ctx context.Context, c *models.Collaborator) error {
	row := &collaboratorRow{
		ProjectID: c.ProjectID,
		UserID:    c.UserID,
		Email:     c.Email,
		Role:      string(c.Role),
		InvitedBy: c.InvitedBy,
		CreatedAt: c.CreatedAt,
	}
	return translate(r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "email", "invited_by"}),
	}).Create(row).Error)
}

func (r *collaborators) Get(ctx context.Context, projectID, userID string) (*models.Collaborator, error) {
	var row collaboratorRow
	if err := r.db.WithContext(ctx).First(&row, "project_id = ? AND user_id = ?", projectID, userID).Error; err != nil {
		return nil, translate(err)
	}
	return row.model(), nil
}

func (r *collaborators) ListByProject(ctx context.Context, projectID string) ([]*models.Collaborator, error) {
	return r.list(ctx, "project_id = ?", projectID)
}

func (r *collaborators) ListByUser(ctx context.Context, userID string) ([]*models.Collaborator, error) {
	return r.list(ctx, "user_id = ?", userID)
}

func (r *collaborators) list(ctx context.Context, query string, arg interface{}) ([]*models.Collaborator, error) {
	var rows []collaboratorRow
	if err := r.db.WithContext(ctx).Where(query, arg).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*models.Collaborator, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

func (r *collaborators) Remove(ctx context.Context, projectID, userID string) error {
	res := r.db.WithContext(ctx).Delete(&collaboratorRow{}, "project_id = ? AND user_id = ?", projectID, userID)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *collaborators) DeleteByProject(ctx context.Context, projectID string) error {
	return translate(r.db.WithContext(ctx).Delete(&collaboratorRow{}, "project_id = ?", projectID).Error)
}

// ---- comments ----

type comments struct{ db *gorm.DB }

func (r *comments) Create(ctx context.Context, c *models.Comment) error {
	row := &commentRow{
		ID:          c.ID,
		ProjectID:   c.ProjectID,
		SceneNumber: c.SceneNumber,
		UserID:      c.UserID,
		Content:     c.Content,
		CreatedAt:   c.CreatedAt,
	}
	return translate(r.db.WithContext(ctx).Create(row).Error)
}

func (r *comments) ListByProject(ctx context.Context, projectID string, scene *int) ([]*models.Comment, error) {
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if scene != nil {
		q = q.Where("scene_number = ?", *scene)
	}
	var rows []commentRow
	if err := q.Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*models.Comment, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

func (r *comments) DeleteByProject(ctx context.Context, projectID string) error {
	return translate(r.db.WithContext(ctx).Delete(&commentRow{}, "project_id = ?", projectID).Error)
}

// ---- activity ----

type activity struct{ db *gorm.DB }

func (r *activity) Append(ctx context.Context, a *models.ActivityLog) error {
	row := &activityRow{
		ID:        a.ID,
		ProjectID: a.ProjectID,
		UserID:    a.UserID,
		Action:    a.Action,
		Details:   a.Details,
		CreatedAt: a.CreatedAt,
	}
	return translate(r.db.WithContext(ctx).Create(row).Error)
}

func (r *activity) Latest(ctx context.Context, projectID string, n int) ([]*models.ActivityLog, error) {
	q := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at DESC")
	if n > 0 {
		q = q.Limit(n)
	}
	var rows []activityRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*models.ActivityLog, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

func (r *activity) DeleteByProject(ctx context.Context, projectID string) error {
	return translate(r.db.WithContext(ctx).Delete(&activityRow{}, "project_id = ?", projectID).Error)
}

// ---- analytics ----

type analytics struct{ db *gorm.DB }

func (r *analytics) Record(ctx context.Context, e *models.AnalyticsEvent) error {
	row := &analyticsRow{
		ID:        e.ID,
		UserID:    e.UserID,
		EventType: string(e.EventType),
		ProjectID: e.ProjectID,
		Metadata:  e.Metadata,
		CreatedAt: e.CreatedAt,
	}
	return translate(r.db.WithContext(ctx).Create(row).Error)
}

func (r *analytics) ListByUser(ctx context.Context, userID string) ([]*models.AnalyticsEvent, error) {
	var rows []analyticsRow
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*models.AnalyticsEvent, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

// ---- renders ----

type renders struct{ db *gorm.DB }

func (r *renders) Save(ctx context.Context, job *models.RenderJob) error {
	return translate(r.db.WithContext(ctx).Save(renderToRow(job)).Error)
}

func (r *renders) Get(ctx context.Context, id string) (*models.RenderJob, error) {
	var row renderRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return row.model(), nil
}

func (r *renders) ListByStatus(ctx context.Context, status string) ([]*models.RenderJob, error) {
	var rows []renderRow
	if err := r.db.WithContext(ctx).Where("status = ?", status).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	out := make([]*models.RenderJob, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].model())
	}
	return out, nil
}

// ---- template usage ----

type templateUsage struct{ db *gorm.DB }

func (r *templateUsage) Increment(ctx context.Context, templateID string) error {
	return translate(r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "template_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count": gorm.Expr("template_usage.count + 1"),
		}),
	}).Create(&templateUsageRow{TemplateID: templateID, Count: 1}).Error)
}

func (r *templateUsage) Counts(ctx context.Context) (map[string]int, error) {
	var rows []templateUsageRow
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.TemplateID] = row.Count
	}
	return counts, nil
}
