// internal/models/collaboration.go
package models

import "time"

// Role 协作者角色
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid 是否为可分配的协作者角色（owner 不可分配）
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// Action 项目上的操作
type Action string

const (
	ActionView                Action = "view"
	ActionEdit                Action = "edit"
	ActionComment             Action = "comment"
	ActionManageCollaborators Action = "manage_collaborators"
	ActionDelete              Action = "delete"
)

// Collaborator 项目协作者
type Collaborator struct {
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	Role      Role      `json:"role"`
	InvitedBy string    `json:"invited_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment 项目或场景评论
type Comment struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	SceneNumber *int      `json:"scene_number,omitempty"`
	UserID      string    `json:"user_id"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// 活动类型
const (
	ActivityCreated   = "created"
	ActivityUpdated   = "updated"
	ActivityDeleted   = "deleted"
	ActivityShared    = "shared"
	ActivityCommented = "commented"
	ActivityInvited   = "invited"
)

// ActivityLog 项目活动记录
type ActivityLog struct {
	ID        string                 `json:"id"`
	ProjectID string                 `json:"project_id"`
	UserID    string                 `json:"user_id"`
	Action    string                 `json:"action"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
