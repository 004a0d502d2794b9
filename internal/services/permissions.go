// internal/services/permissions.go
package services

import (
	"context"
	"errors"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/storage"
)

var rolePermissions = map[models.Role][]models.Action{
	models.RoleOwner: {
		models.ActionView, models.ActionEdit, models.ActionComment,
		models.ActionManageCollaborators, models.ActionDelete,
	},
	models.RoleAdmin: {
		models.ActionView, models.ActionEdit, models.ActionComment,
		models.ActionManageCollaborators, models.ActionDelete,
	},
	models.RoleEditor: {models.ActionView, models.ActionEdit, models.ActionComment},
	models.RoleViewer: {models.ActionView, models.ActionComment},
}

// RoleAllows 角色是否包含该操作
func RoleAllows(role models.Role, action models.Action) bool {
	for _, a := range rolePermissions[role] {
		if a == action {
			return true
		}
	}
	return false
}

// Permissions 项目级权限判断
type Permissions struct {
	projects      storage.Projects
	collaborators storage.Collaborators
}

func NewPermissions(store *storage.Store) *Permissions {
	return &Permissions{projects: store.Projects, collaborators: store.Collaborators}
}

// Role 返回用户在项目上的角色，无关用户返回空字符串
func (p *Permissions) Role(ctx context.Context, projectID, userID string) (models.Role, error) {
	project, err := p.projects.Get(ctx, projectID)
	if err != nil {
		return "", err
	}
	return p.roleFor(ctx, project, userID)
}

func (p *Permissions) roleFor(ctx context.Context, project *models.Project, userID string) (models.Role, error) {
	if userID == "" {
		return "", nil
	}
	if project.UserID == userID {
		return models.RoleOwner, nil
	}
	c, err := p.collaborators.Get(ctx, project.ID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return c.Role, nil
}

// Can 用户能否在项目上执行操作
func (p *Permissions) Can(ctx context.Context, projectID, userID string, action models.Action) (bool, error) {
	role, err := p.Role(ctx, projectID, userID)
	if err != nil {
		return false, err
	}
	return RoleAllows(role, action), nil
}

// Require 校验权限并返回项目
// 与项目无关的用户得到 404，不暴露项目是否存在；有角色但权限不足得到 403
func (p *Permissions) Require(ctx context.Context, projectID, userID string, action models.Action) (*models.Project, models.Role, error) {
	project, err := p.projects.Get(ctx, projectID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", apperrors.NewNotFoundError("Project not found", err)
	}
	if err != nil {
		return nil, "", apperrors.NewInternalError("load project", err)
	}

	role, err := p.roleFor(ctx, project, userID)
	if err != nil {
		return nil, "", apperrors.NewInternalError("load collaborator", err)
	}
	if role == "" {
		return nil, "", apperrors.NewNotFoundError("Project not found", nil)
	}
	if !RoleAllows(role, action) {
		return nil, role, apperrors.NewForbiddenError("You do not have permission to "+string(action)+" this project", nil)
	}
	return project, role, nil
}
