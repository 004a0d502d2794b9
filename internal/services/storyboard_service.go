// internal/services/storyboard_service.go
package services

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
)

// DefaultStoryboardConcurrency 批量生成的默认并发数
const DefaultStoryboardConcurrency = 3

// FailedScene 批量生成中失败的场景
type FailedScene struct {
	SceneNumber int    `json:"sceneNumber"`
	Error       string `json:"error"`
}

// BatchResult 批量生成结果，images 与 failed 均保持请求中的场景顺序
type BatchResult struct {
	Images []models.StoryboardImage `json:"images"`
	Failed []FailedScene            `json:"failed"`
}

// StoryboardService 分镜图生成
type StoryboardService struct {
	ai          *AIService
	analytics   *AnalyticsService
	concurrency func() int
}

// NewStoryboardService concurrency 为空或返回值 <= 0 时使用默认并发数
func NewStoryboardService(ai *AIService, analytics *AnalyticsService, concurrency func() int) *StoryboardService {
	return &StoryboardService{ai: ai, analytics: analytics, concurrency: concurrency}
}

func (s *StoryboardService) limit() int {
	if s.concurrency != nil {
		if n := s.concurrency(); n > 0 {
			return n
		}
	}
	return DefaultStoryboardConcurrency
}

// Generate 单个场景
func (s *StoryboardService) Generate(ctx context.Context, userID string, scene models.Scene) (*models.StoryboardImage, error) {
	img, err := s.ai.GenerateStoryboard(ctx, scene)
	if err != nil {
		return nil, err
	}
	s.analytics.Track(ctx, userID, models.EventStoryboardGenerated, "", map[string]interface{}{
		"scene_number": scene.SceneNumber,
	})
	return img, nil
}

// GenerateBatch 并发生成多个场景，单个失败不影响其它场景
func (s *StoryboardService) GenerateBatch(ctx context.Context, userID string, scenes []models.Scene) (*BatchResult, error) {
	type outcome struct {
		image *models.StoryboardImage
		err   error
	}
	results := make([]outcome, len(scenes))

	// 不使用 WithContext：一个场景失败不应取消其它场景
	var g errgroup.Group
	g.SetLimit(s.limit())
	for i, scene := range scenes {
		i, scene := i, scene
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = outcome{err: err}
				return nil
			}
			img, err := s.ai.GenerateStoryboard(ctx, scene)
			results[i] = outcome{image: img, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch := &BatchResult{Images: []models.StoryboardImage{}, Failed: []FailedScene{}}
	for i, r := range results {
		if r.err != nil {
			batch.Failed = append(batch.Failed, FailedScene{
				SceneNumber: scenes[i].SceneNumber,
				Error:       publicMessage(r.err),
			})
			continue
		}
		batch.Images = append(batch.Images, *r.image)
	}

	s.analytics.Track(ctx, userID, models.EventStoryboardGenerated, "", map[string]interface{}{
		"batch":     true,
		"generated": len(batch.Images),
		"failed":    len(batch.Failed),
	})
	return batch, nil
}
