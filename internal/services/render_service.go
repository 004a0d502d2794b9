// internal/services/render_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/storage"
	"github.com/Krosebrook/lovable-prompt-artist/internal/timeline"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
)

const (
	// DefaultRenderWorkers 默认渲染 worker 数
	DefaultRenderWorkers = 2
	renderQueueSize      = 128
)

// 各分辨率的短边像素
var resolutionShortSide = map[string]int{
	"720p":  720,
	"1080p": 1080,
	"4k":    2160,
}

// Dimensions 根据分辨率和画幅计算宽高
func Dimensions(resolution, aspectRatio string) (int, int, error) {
	short, ok := resolutionShortSide[resolution]
	if !ok {
		return 0, 0, fmt.Errorf("unsupported resolution %q", resolution)
	}
	long := short * 16 / 9
	switch aspectRatio {
	case "16:9":
		return long, short, nil
	case "9:16":
		return short, long, nil
	case "1:1":
		return short, short, nil
	}
	return 0, 0, fmt.Errorf("unsupported aspect ratio %q", aspectRatio)
}

func frameAt(ms int64, fps int) int64 {
	return ms * int64(fps) / 1000
}

// BuildPlan 由场景时间窗口生成渲染计划
// progress 在每个场景处理完后以已完成数量回调，可为 nil
func BuildPlan(ctx context.Context, project *models.Project, opts models.ExportOptions, progress func(done, total int)) (*models.RenderPlan, error) {
	width, height, err := Dimensions(opts.Resolution, opts.AspectRatio)
	if err != nil {
		return nil, err
	}
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("invalid fps %d", opts.FPS)
	}

	scenes := project.Script.Scenes
	if len(scenes) == 0 {
		return nil, errors.New("project has no scenes")
	}
	engine := timeline.NewForScenes(scenes, nil, nil)
	totalMs := engine.Total().Milliseconds()

	plan := &models.RenderPlan{
		Width:       width,
		Height:      height,
		FPS:         opts.FPS,
		TotalMs:     totalMs,
		TotalFrames: frameAt(totalMs, opts.FPS),
		Shots:       make([]models.RenderShot, 0, len(scenes)),
	}
	for i, scene := range scenes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := engine.SceneStart(i).Milliseconds()
		end := totalMs
		if i+1 < len(scenes) {
			end = engine.SceneStart(i + 1).Milliseconds()
		}
		image, _ := models.ImageFor(project.StoryboardImages, scene.SceneNumber)
		plan.Shots = append(plan.Shots, models.RenderShot{
			SceneNumber: scene.SceneNumber,
			StartMs:     start,
			EndMs:       end,
			StartFrame:  frameAt(start, opts.FPS),
			EndFrame:    frameAt(end, opts.FPS),
			ImageURL:    image,
			VoiceOver:   scene.VoiceOver,
		})
		if progress != nil {
			progress(i+1, len(scenes))
		}
	}
	return plan, nil
}

// RenderService 视频渲染任务队列
type RenderService struct {
	renders     storage.Renders
	projects    storage.Projects
	permissions *Permissions
	analytics   *AnalyticsService
	notifier    Notifier
	metrics     *utils.APIMetrics
	logger      *utils.Logger
	workers     int
	queue       chan string
	now         func() time.Time
}

func NewRenderService(store *storage.Store, permissions *Permissions, analytics *AnalyticsService, notifier Notifier, workers int) *RenderService {
	if workers <= 0 {
		workers = DefaultRenderWorkers
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &RenderService{
		renders:     store.Renders,
		projects:    store.Projects,
		permissions: permissions,
		analytics:   analytics,
		notifier:    notifier,
		metrics:     utils.NewAPIMetrics(),
		logger:      utils.GetLogger().With(map[string]interface{}{"component": "render"}),
		workers:     workers,
		queue:       make(chan string, renderQueueSize),
		now:         time.Now,
	}
}

// Enqueue 创建渲染任务并放入队列
func (s *RenderService) Enqueue(ctx context.Context, userID string, opts models.ExportOptions) (*models.RenderJob, error) {
	project, _, err := s.permissions.Require(ctx, opts.ProjectID, userID, models.ActionView)
	if err != nil {
		return nil, err
	}
	if len(project.Script.Scenes) == 0 {
		return nil, apperrors.NewValidationError("Project has no scenes to render", nil)
	}

	now := s.now().UTC()
	job := &models.RenderJob{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		UserID:    userID,
		Options:   opts,
		Status:    models.RenderQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.renders.Save(ctx, job); err != nil {
		return nil, apperrors.NewInternalError("save render job", err)
	}

	select {
	case s.queue <- job.ID:
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		// 队列满时任务保持 queued，下次启动时重新入队
		s.logger.Warn("渲染队列已满", map[string]interface{}{"render_id": job.ID})
	}

	s.analytics.Track(ctx, userID, models.EventProjectExported, project.ID, map[string]interface{}{
		"format":     "video",
		"render_id":  job.ID,
		"resolution": opts.Resolution,
		"fps":        opts.FPS,
	})
	snapshot := *job
	publish(s.notifier, project.ID, EventRenderStatus, &snapshot)
	return job, nil
}

// Get 查询任务，需要对所属项目有查看权限
func (s *RenderService) Get(ctx context.Context, userID, id string) (*models.RenderJob, error) {
	job, err := s.renders.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("Render job not found", err)
	}
	if err != nil {
		return nil, apperrors.NewInternalError("load render job", err)
	}
	if job.UserID != userID {
		if _, _, err := s.permissions.Require(ctx, job.ProjectID, userID, models.ActionView); err != nil {
			return nil, apperrors.NewNotFoundError("Render job not found", nil)
		}
	}
	return job, nil
}

// Run 启动 worker，ctx 结束后返回
func (s *RenderService) Run(ctx context.Context) error {
	s.requeue(ctx)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		worker := i
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case id := <-s.queue:
					s.process(ctx, worker, id)
				}
			}
		})
	}
	s.logger.Info("渲染 worker 已启动", map[string]interface{}{"workers": s.workers})
	return g.Wait()
}

// requeue 把上次未完成的任务放回队列
func (s *RenderService) requeue(ctx context.Context) {
	for _, status := range []string{models.RenderProcessing, models.RenderQueued} {
		jobs, err := s.renders.ListByStatus(ctx, status)
		if err != nil {
			s.logger.Warn("读取未完成渲染任务失败", map[string]interface{}{"status": status, "err": err})
			continue
		}
		for _, job := range jobs {
			select {
			case s.queue <- job.ID:
			default:
				return
			}
		}
	}
}

func (s *RenderService) process(ctx context.Context, worker int, id string) {
	job, err := s.renders.Get(ctx, id)
	if err != nil {
		s.logger.Warn("读取渲染任务失败", map[string]interface{}{"render_id": id, "err": err})
		return
	}
	if job.Done() {
		return
	}

	log := s.logger.With(map[string]interface{}{"render_id": job.ID, "worker": worker})
	start := time.Now()
	s.update(ctx, job, func(j *models.RenderJob) {
		j.Status = models.RenderProcessing
		j.Progress = 0
	})

	project, err := s.projects.Get(ctx, job.ProjectID)
	if err != nil {
		s.fail(ctx, job, fmt.Errorf("load project: %w", err))
		return
	}

	plan, err := BuildPlan(ctx, project, job.Options, func(done, total int) {
		// 最后 1% 留给保存计划
		s.update(ctx, job, func(j *models.RenderJob) {
			j.Progress = done * 99 / total
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			// 关闭中断，保持 processing，下次启动时重新入队
			return
		}
		s.fail(ctx, job, err)
		return
	}

	s.update(ctx, job, func(j *models.RenderJob) {
		j.Plan = plan
		j.Progress = 100
		j.Status = models.RenderCompleted
	})
	s.metrics.RecordExport("render", 0)
	log.Info("渲染计划完成", map[string]interface{}{
		"shots":    len(plan.Shots),
		"frames":   plan.TotalFrames,
		"duration": time.Since(start).Milliseconds(),
	})
}

func (s *RenderService) fail(ctx context.Context, job *models.RenderJob, err error) {
	s.logger.Error("渲染任务失败", map[string]interface{}{"render_id": job.ID, "err": err})
	s.update(ctx, job, func(j *models.RenderJob) {
		j.Status = models.RenderFailed
		j.Error = err.Error()
	})
}

// update 修改、保存并广播任务状态
func (s *RenderService) update(ctx context.Context, job *models.RenderJob, mutate func(*models.RenderJob)) {
	mutate(job)
	job.UpdatedAt = s.now().UTC()
	if err := s.renders.Save(ctx, job); err != nil {
		s.logger.Warn("保存渲染任务失败", map[string]interface{}{"render_id": job.ID, "err": err})
	}
	snapshot := *job
	publish(s.notifier, job.ProjectID, EventRenderStatus, &snapshot)
}
