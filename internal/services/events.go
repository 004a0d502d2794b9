// internal/services/events.go
package services

import "time"

// 项目实时事件类型
const (
	EventProjectUpdated = "project_updated"
	EventProjectDeleted = "project_deleted"
	EventCommentAdded   = "comment_added"
	EventActivity       = "activity"
	EventCollaborator   = "collaborator_changed"
	EventRenderStatus   = "render_status"
)

// Event 推送给项目订阅者的消息
type Event struct {
	Type      string      `json:"type"`
	ProjectID string      `json:"project_id"`
	Data      interface{} `json:"data,omitempty"`
	At        time.Time   `json:"at"`
}

// Notifier 项目事件的广播方，由 WebSocket hub 实现
type Notifier interface {
	Publish(projectID string, event Event)
}

type noopNotifier struct{}

func (noopNotifier) Publish(string, Event) {}

// NotifierFunc 函数适配器
type NotifierFunc func(projectID string, event Event)

func (f NotifierFunc) Publish(projectID string, event Event) { f(projectID, event) }

func publish(n Notifier, projectID, eventType string, data interface{}) {
	if n == nil {
		return
	}
	n.Publish(projectID, Event{Type: eventType, ProjectID: projectID, Data: data, At: time.Now()})
}
