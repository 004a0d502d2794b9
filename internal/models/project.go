// internal/models/project.go
package models

import "time"

// Project 已保存的视频项目
type Project struct {
	ID               string            `json:"id"`
	UserID           string            `json:"user_id"`
	Title            string            `json:"title"`
	Topic            string            `json:"topic"`
	Script           VideoScript       `json:"script"`
	StoryboardImages []StoryboardImage `json:"storyboard_images"`
	TotalDuration    string            `json:"total_duration"`
	TemplateID       string            `json:"template_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// PublicShare 项目的公开分享链接
type PublicShare struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	ShareToken string     `json:"share_token"`
	ExpiresAt  *time.Time `json:"expires_at"`
	IsActive   bool       `json:"is_active"`
	ViewCount  int        `json:"view_count"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Expired 判断分享是否已过期
func (s *PublicShare) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

// Usable 激活且未过期
func (s *PublicShare) Usable(now time.Time) bool {
	return s.IsActive && !s.Expired(now)
}
