// internal/services/export_service.go
package services

import (
	"context"
	"errors"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/report"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
)

// ExportService PDF 报告导出
type ExportService struct {
	generator   *report.Generator
	permissions *Permissions
	analytics   *AnalyticsService
	metrics     *utils.APIMetrics
	logger      *utils.Logger
}

func NewExportService(generator *report.Generator, permissions *Permissions, analytics *AnalyticsService, metrics *utils.APIMetrics) *ExportService {
	if metrics == nil {
		metrics = utils.NewAPIMetrics()
	}
	return &ExportService{
		generator:   generator,
		permissions: permissions,
		analytics:   analytics,
		metrics:     metrics,
		logger:      utils.GetLogger().With(map[string]interface{}{"component": "export"}),
	}
}

// Report 为有查看权限的用户生成项目报告
func (s *ExportService) Report(ctx context.Context, userID, projectID string) (*report.Report, error) {
	project, _, err := s.permissions.Require(ctx, projectID, userID, models.ActionView)
	if err != nil {
		return nil, err
	}

	rep, err := s.ReportFor(ctx, project)
	if err != nil {
		return nil, err
	}

	s.analytics.Track(ctx, userID, models.EventProjectExported, project.ID, map[string]interface{}{
		"format":         "pdf",
		"pages":          rep.Pages,
		"skipped_images": len(rep.SkippedImages),
	})
	return rep, nil
}

// ReportFor 不做权限检查，供命令行导出使用
func (s *ExportService) ReportFor(ctx context.Context, project *models.Project) (*report.Report, error) {
	if len(project.Script.Scenes) == 0 {
		return nil, apperrors.NewValidationError("Project has no scenes to export", nil)
	}

	rep, err := s.generator.Generate(ctx, project)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, apperrors.NewInternalError("generate report", err)
	}

	s.metrics.RecordExport("pdf", len(rep.SkippedImages))
	if len(rep.SkippedImages) > 0 {
		s.logger.Warn("报告中部分分镜图未能加载", map[string]interface{}{
			"project_id": project.ID,
			"scenes":     rep.SkippedImages,
		})
	}
	return rep, nil
}
