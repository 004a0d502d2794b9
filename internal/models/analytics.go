// internal/models/analytics.go
package models

import "time"

// EventType 分析事件类型
type EventType string

const (
	EventScriptGenerated     EventType = "script_generated"
	EventStoryboardGenerated EventType = "storyboard_generated"
	EventProjectSaved        EventType = "project_saved"
	EventProjectShared       EventType = "project_shared"
	EventProjectExported     EventType = "project_exported"
	EventProjectDeleted      EventType = "project_deleted"
	EventTemplateUsed        EventType = "template_used"
)

// EventTypes 全部合法事件类型
var EventTypes = []EventType{
	EventScriptGenerated,
	EventStoryboardGenerated,
	EventProjectSaved,
	EventProjectShared,
	EventProjectExported,
	EventProjectDeleted,
	EventTemplateUsed,
}

// AnalyticsEvent 用户行为事件
type AnalyticsEvent struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	EventType EventType              `json:"event_type"`
	ProjectID string                 `json:"project_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// AnalyticsSummary 用户统计摘要
type AnalyticsSummary struct {
	TotalProjects        int              `json:"total_projects"`
	ScriptsGenerated     int              `json:"scripts_generated"`
	StoryboardsGenerated int              `json:"storyboards_generated"`
	ProjectsShared       int              `json:"projects_shared"`
	ProjectsExported     int              `json:"projects_exported"`
	RecentActivity       []AnalyticsEvent `json:"recent_activity"`
}
