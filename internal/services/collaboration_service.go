// internal/services/collaboration_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/storage"
	"github.com/Krosebrook/lovable-prompt-artist/internal/validation"
)

// CollaborationService 协作者、评论与活动流
type CollaborationService struct {
	store       *storage.Store
	permissions *Permissions
	activity    *ActivityService
	notifier    Notifier
	now         func() time.Time
}

func NewCollaborationService(store *storage.Store, permissions *Permissions, activity *ActivityService, notifier Notifier) *CollaborationService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &CollaborationService{
		store:       store,
		permissions: permissions,
		activity:    activity,
		notifier:    notifier,
		now:         time.Now,
	}
}

// Invite 邀请已注册用户，重复邀请时更新角色
func (s *CollaborationService) Invite(ctx context.Context, userID, projectID string, in validation.InviteInput) (*models.Collaborator, error) {
	project, _, err := s.permissions.Require(ctx, projectID, userID, models.ActionManageCollaborators)
	if err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, apperrors.NewValidationError("Invalid role", nil)
	}

	invitee, err := s.store.Users.GetByEmail(ctx, in.Email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("No user registered with that email", err)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("load user", err)
	}
	if invitee.ID == project.UserID {
		return nil, apperrors.NewConflictError("The project owner cannot be invited", nil)
	}

	collaborator := &models.Collaborator{
		ProjectID: project.ID,
		UserID:    invitee.ID,
		Email:     invitee.Email,
		Role:      in.Role,
		InvitedBy: userID,
		CreatedAt: s.now().UTC(),
	}
	if existing, err := s.store.Collaborators.Get(ctx, project.ID, invitee.ID); err == nil {
		collaborator.CreatedAt = existing.CreatedAt
	}
	if err := s.store.Collaborators.Upsert(ctx, collaborator); err != nil {
		return nil, apperrors.NewInternalError("save collaborator", err)
	}

	s.activity.Log(ctx, project.ID, userID, models.ActivityInvited, map[string]interface{}{
		"user_id": invitee.ID,
		"email":   invitee.Email,
		"role":    in.Role,
	})
	publish(s.notifier, project.ID, EventCollaborator, collaborator)
	return collaborator, nil
}

// Collaborators 项目的协作者列表
func (s *CollaborationService) Collaborators(ctx context.Context, userID, projectID string) ([]*models.Collaborator, error) {
	if _, _, err := s.permissions.Require(ctx, projectID, userID, models.ActionView); err != nil {
		return nil, err
	}
	list, err := s.store.Collaborators.ListByProject(ctx, projectID)
	if err != nil {
		return nil, apperrors.NewInternalError("list collaborators", err)
	}
	for _, c := range list {
		if c.Email != "" {
			continue
		}
		if u, err := s.store.Users.Get(ctx, c.UserID); err == nil {
			c.Email = u.Email
		}
	}
	if list == nil {
		list = []*models.Collaborator{}
	}
	return list, nil
}

// Remove 移除协作者；协作者也可以移除自己
func (s *CollaborationService) Remove(ctx context.Context, userID, projectID, targetID string) error {
	action := models.ActionManageCollaborators
	if userID == targetID {
		action = models.ActionView
	}
	if _, _, err := s.permissions.Require(ctx, projectID, userID, action); err != nil {
		return err
	}

	err := s.store.Collaborators.Remove(ctx, projectID, targetID)
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.NewNotFoundError("Collaborator not found", err)
	}
	if err != nil {
		return apperrors.NewInternalError("remove collaborator", err)
	}
	publish(s.notifier, projectID, EventCollaborator, map[string]interface{}{"user_id": targetID, "removed": true})
	return nil
}

// AddComment 评论项目或其中一个场景
func (s *CollaborationService) AddComment(ctx context.Context, userID, projectID string, in validation.CommentInput) (*models.Comment, error) {
	project, _, err := s.permissions.Require(ctx, projectID, userID, models.ActionComment)
	if err != nil {
		return nil, err
	}
	if in.SceneNumber != nil && !hasScene(project, *in.SceneNumber) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("Scene %d does not exist in this project", *in.SceneNumber), nil)
	}

	comment := &models.Comment{
		ID:          uuid.NewString(),
		ProjectID:   project.ID,
		SceneNumber: in.SceneNumber,
		UserID:      userID,
		Content:     in.Content,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Comments.Create(ctx, comment); err != nil {
		return nil, apperrors.NewInternalError("save comment", err)
	}

	details := map[string]interface{}{"comment_id": comment.ID}
	if in.SceneNumber != nil {
		details["scene_number"] = *in.SceneNumber
	}
	s.activity.Log(ctx, project.ID, userID, models.ActivityCommented, details)
	publish(s.notifier, project.ID, EventCommentAdded, comment)
	return comment, nil
}

// Comments 时间正序，scene 非空时按场景过滤
func (s *CollaborationService) Comments(ctx context.Context, userID, projectID string, scene *int) ([]*models.Comment, error) {
	if _, _, err := s.permissions.Require(ctx, projectID, userID, models.ActionView); err != nil {
		return nil, err
	}
	list, err := s.store.Comments.ListByProject(ctx, projectID, scene)
	if err != nil {
		return nil, apperrors.NewInternalError("list comments", err)
	}
	if list == nil {
		list = []*models.Comment{}
	}
	return list, nil
}

// Activity 最近的活动
func (s *CollaborationService) Activity(ctx context.Context, userID, projectID string) ([]*models.ActivityLog, error) {
	if _, _, err := s.permissions.Require(ctx, projectID, userID, models.ActionView); err != nil {
		return nil, err
	}
	return s.activity.Latest(ctx, projectID)
}

func hasScene(project *models.Project, sceneNumber int) bool {
	for _, scene := range project.Script.Scenes {
		if scene.SceneNumber == sceneNumber {
			return true
		}
	}
	return false
}
