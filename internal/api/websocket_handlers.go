// internal/api/websocket_handlers.go
package api

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/timeline"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
)

// progressThrottle progress 消息的最小间隔
const progressThrottle = 100 * time.Millisecond

// ProjectWebSocket 订阅项目的评论、活动与渲染事件
func (h *Handler) ProjectWebSocket(c *gin.Context) {
	userID := mustUser(c)
	project, err := h.Projects.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("项目 WebSocket 升级失败", map[string]interface{}{"project_id": project.ID, "err": err})
		return
	}
	h.Hub.Serve(conn, project.ID, userID)
}

// previewCommand 客户端控制消息
type previewCommand struct {
	Action string  `json:"action"`
	Scene  *int    `json:"scene,omitempty"`
	Value  float64 `json:"value,omitempty"`
}

// previewSession 一个连接上的时间轴预览
// 引擎与回调都运行在 loop 的 goroutine 中
type previewSession struct {
	client       *wsClient
	loop         *timeline.Loop
	engine       *timeline.Engine
	scenes       []models.Scene
	lastProgress time.Time
	logger       *utils.Logger
}

func newPreviewSession(client *wsClient, scenes []models.Scene, interval time.Duration) *previewSession {
	s := &previewSession{
		client: client,
		loop:   timeline.NewLoop(interval),
		scenes: scenes,
		logger: utils.GetLogger().With(map[string]interface{}{"component": "preview", "project_id": client.projectID}),
	}
	s.engine = timeline.NewForScenes(scenes, nil, s.loop)
	s.engine.OnSceneChange(func(index int) {
		s.send(map[string]interface{}{
			"type":         "scene_change",
			"index":        index,
			"scene_number": s.scenes[index].SceneNumber,
		})
	})
	s.engine.OnProgress(func(pos timeline.Position) {
		now := time.Now()
		if now.Sub(s.lastProgress) < progressThrottle {
			return
		}
		s.lastProgress = now
		s.send(map[string]interface{}{
			"type":       "progress",
			"index":      pos.Index,
			"progress":   pos.Progress,
			"elapsed_ms": pos.Elapsed.Milliseconds(),
		})
	})
	s.engine.OnComplete(func() {
		s.send(map[string]interface{}{"type": "complete"})
		s.sendState()
	})
	return s
}

func (s *previewSession) send(msg map[string]interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	// progress 可以丢，其它消息队列满时也只能丢弃
	s.client.enqueue(data)
}

func (s *previewSession) sendState() {
	s.send(map[string]interface{}{
		"type":       "state",
		"state":      s.engine.State().String(),
		"index":      s.engine.CurrentSceneIndex(),
		"elapsed_ms": s.engine.Elapsed().Milliseconds(),
		"total_ms":   s.engine.Total().Milliseconds(),
		"speed":      s.engine.PlaybackSpeed(),
	})
}

func (s *previewSession) sendError(msg string) {
	s.send(map[string]interface{}{"type": "error", "error": msg})
}

// handle 解析控制消息并投递到 loop
func (s *previewSession) handle(raw []byte) {
	var cmd previewCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		s.loop.Do(func() { s.sendError("Invalid message") })
		return
	}
	s.loop.Do(func() {
		switch cmd.Action {
		case "play":
			s.engine.Play()
		case "pause":
			s.engine.Pause()
		case "restart":
			s.engine.Restart()
		case "seek":
			if cmd.Scene == nil || *cmd.Scene < 0 || *cmd.Scene >= s.engine.SceneCount() {
				s.sendError("Invalid scene index")
				return
			}
			s.engine.SeekToScene(*cmd.Scene)
		case "speed":
			if cmd.Value <= 0 {
				s.sendError("Playback speed must be positive")
				return
			}
			s.engine.SetPlaybackSpeed(cmd.Value)
		case "state":
		default:
			s.sendError("Unknown action")
			return
		}
		s.sendState()
	})
}

// close 销毁引擎后停止 loop
func (s *previewSession) close() {
	s.loop.Call(s.engine.Destroy)
	s.loop.Close()
}

// PreviewWebSocket 时间轴预览会话
func (h *Handler) PreviewWebSocket(c *gin.Context) {
	userID := mustUser(c)
	project, err := h.Projects.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.Response.Error(c, err)
		return
	}
	if len(project.Script.Scenes) == 0 {
		h.Response.BadRequest(c, "Project has no scenes to preview")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("预览 WebSocket 升级失败", map[string]interface{}{"project_id": project.ID, "err": err})
		return
	}
	h.servePreview(conn, project, userID)
}

func (h *Handler) servePreview(conn *websocket.Conn, project *models.Project, userID string) {
	client := &wsClient{
		conn:      conn,
		projectID: project.ID,
		userID:    userID,
		send:      make(chan []byte, sendBufferSize),
		createdAt: time.Now(),
	}
	done := make(chan struct{})
	go client.writePump(done)

	session := newPreviewSession(client, project.Script.Scenes, h.frameInterval)
	session.loop.Do(session.sendState)

	client.readPump(session.handle)
	session.close()
	close(done)
	client.Close()
}
