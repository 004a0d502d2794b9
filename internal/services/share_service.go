// internal/services/share_service.go
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/storage"
	"github.com/Krosebrook/lovable-prompt-artist/internal/validation"
)

// QRCodeSize 二维码边长（像素）
const QRCodeSize = 256

// ShareLink 分享链接及其公开地址
type ShareLink struct {
	*models.PublicShare
	URL string `json:"url"`
}

// PublicView 公开访问时返回的内容
type PublicView struct {
	Project   *models.Project `json:"project"`
	ViewCount int             `json:"view_count"`
	ExpiresAt *time.Time      `json:"expires_at"`
}

// ShareService 公开分享链接
type ShareService struct {
	shares      storage.Shares
	projects    storage.Projects
	permissions *Permissions
	activity    *ActivityService
	analytics   *AnalyticsService
	baseURL     func() string
	now         func() time.Time
}

// NewShareService baseURL 返回公开站点地址，不带结尾斜杠
func NewShareService(store *storage.Store, permissions *Permissions, activity *ActivityService, analytics *AnalyticsService, baseURL func() string) *ShareService {
	return &ShareService{
		shares:      store.Shares,
		projects:    store.Projects,
		permissions: permissions,
		activity:    activity,
		analytics:   analytics,
		baseURL:     baseURL,
		now:         time.Now,
	}
}

func (s *ShareService) link(share *models.PublicShare) *ShareLink {
	base := ""
	if s.baseURL != nil {
		base = s.baseURL()
	}
	return &ShareLink{PublicShare: share, URL: base + "/share/" + share.ShareToken}
}

// Create 生成新链接，项目原有的激活链接同时失效
func (s *ShareService) Create(ctx context.Context, userID string, req validation.ShareRequest) (*ShareLink, error) {
	project, _, err := s.permissions.Require(ctx, req.ProjectID, userID, models.ActionEdit)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	share := &models.PublicShare{
		ID:         uuid.NewString(),
		ProjectID:  project.ID,
		ShareToken: uuid.NewString(),
		IsActive:   true,
		CreatedAt:  now,
	}
	if req.ExpiresInDays != nil {
		expires := now.AddDate(0, 0, *req.ExpiresInDays)
		share.ExpiresAt = &expires
	}

	if err := s.shares.ReplaceActive(ctx, share); err != nil {
		return nil, apperrors.NewInternalError("create share", err)
	}

	details := map[string]interface{}{"share_id": share.ID}
	if req.ExpiresInDays != nil {
		details["expires_in_days"] = *req.ExpiresInDays
	}
	s.activity.Log(ctx, project.ID, userID, models.ActivityShared, details)
	s.analytics.Track(ctx, userID, models.EventProjectShared, project.ID, details)
	return s.link(share), nil
}

// Active 项目当前的激活链接
func (s *ShareService) Active(ctx context.Context, userID, projectID string) (*ShareLink, error) {
	if _, _, err := s.permissions.Require(ctx, projectID, userID, models.ActionView); err != nil {
		return nil, err
	}
	share, err := s.shares.ActiveForProject(ctx, projectID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("No active share link", err)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("load share", err)
	}
	return s.link(share), nil
}

// byToken 按 token 读取并校验调用者对所属项目的权限
func (s *ShareService) byToken(ctx context.Context, userID, token string, action models.Action) (*models.PublicShare, error) {
	share, err := s.shares.GetByToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Share link not found", err)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("load share", err)
	}
	if _, _, err := s.permissions.Require(ctx, share.ProjectID, userID, action); err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.NewNotFoundError("Share link not found", nil)
		}
		return nil, err
	}
	return share, nil
}

// Revoke 停用链接
func (s *ShareService) Revoke(ctx context.Context, userID, token string) error {
	share, err := s.byToken(ctx, userID, token, models.ActionEdit)
	if err != nil {
		return err
	}
	if err := s.shares.Deactivate(ctx, share.ShareToken); err != nil {
		return apperrors.NewInternalError("revoke share", err)
	}
	s.activity.Log(ctx, share.ProjectID, userID, models.ActivityShared, map[string]interface{}{
		"share_id": share.ID,
		"revoked":  true,
	})
	return nil
}

// QRCode 公开地址的 PNG 二维码
func (s *ShareService) QRCode(ctx context.Context, userID, token string) ([]byte, error) {
	share, err := s.byToken(ctx, userID, token, models.ActionView)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(s.link(share).URL, qrcode.Medium, QRCodeSize)
	if err != nil {
		return nil, apperrors.NewInternalError("encode qr code", err)
	}
	return png, nil
}

// Public 匿名访问：校验激活与过期，计数后返回项目
func (s *ShareService) Public(ctx context.Context, token string) (*PublicView, error) {
	if !validation.IsUUID(token) {
		return nil, apperrors.NewNotFoundError("Share link not found", nil)
	}
	share, err := s.shares.GetByToken(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Share link not found", err)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("load share", err)
	}
	if !share.IsActive {
		return nil, apperrors.NewNotFoundError("Share link not found", nil)
	}
	if share.Expired(s.now()) {
		return nil, apperrors.NewNotFoundError("Share link has expired", nil)
	}

	project, err := s.projects.Get(ctx, share.ProjectID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Share link not found", err)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("load project", err)
	}

	views, err := s.shares.IncrementViews(ctx, token)
	if err != nil {
		return nil, apperrors.NewInternalError("count view", err)
	}
	return &PublicView{Project: project, ViewCount: views, ExpiresAt: share.ExpiresAt}, nil
}
