// internal/models/export.go
package models

import "time"

// ExportOptions 视频渲染参数
type ExportOptions struct {
	ProjectID   string `json:"projectId"`
	Resolution  string `json:"resolution"`
	FPS         int    `json:"fps"`
	AspectRatio string `json:"aspectRatio"`
}

// 渲染任务状态
const (
	RenderQueued     = "queued"
	RenderProcessing = "processing"
	RenderCompleted  = "completed"
	RenderFailed     = "failed"
)

// RenderShot 渲染计划中的单个镜头
type RenderShot struct {
	SceneNumber int    `json:"sceneNumber"`
	StartMs     int64  `json:"start_ms"`
	EndMs       int64  `json:"end_ms"`
	StartFrame  int64  `json:"start_frame"`
	EndFrame    int64  `json:"end_frame"`
	ImageURL    string `json:"image_url,omitempty"`
	VoiceOver   string `json:"voice_over"`
}

// RenderPlan 渲染计划，交给下游编码器消费
type RenderPlan struct {
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	FPS         int          `json:"fps"`
	TotalMs     int64        `json:"total_ms"`
	TotalFrames int64        `json:"total_frames"`
	Shots       []RenderShot `json:"shots"`
}

// RenderJob 视频渲染任务
type RenderJob struct {
	ID        string        `json:"id"`
	ProjectID string        `json:"project_id"`
	UserID    string        `json:"user_id"`
	Options   ExportOptions `json:"options"`
	Status    string        `json:"status"`
	Progress  int           `json:"progress"`
	Plan      *RenderPlan   `json:"plan,omitempty"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Done 任务是否已结束
func (j *RenderJob) Done() bool {
	return j.Status == RenderCompleted || j.Status == RenderFailed
}
