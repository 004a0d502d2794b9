// internal/services/template_service.go
package services

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/storage"
	"github.com/Krosebrook/lovable-prompt-artist/internal/utils"
)

//go:embed templates.yaml
var builtinTemplates []byte

// TemplateFile 数据目录下的模板覆盖文件
const TemplateFile = "templates.yaml"

type templateCatalog struct {
	Templates []models.ScriptTemplate `yaml:"templates"`
}

// TemplateService 脚本模板目录
type TemplateService struct {
	mu        sync.RWMutex
	templates []models.ScriptTemplate
	usage     storage.TemplateUsage
	logger    *utils.Logger
}

// NewTemplateService 加载内置模板，dataDir 中存在 templates.yaml 时整体替换
func NewTemplateService(store *storage.Store, dataDir string) (*TemplateService, error) {
	data := builtinTemplates
	if dataDir != "" {
		custom, err := os.ReadFile(filepath.Join(dataDir, TemplateFile))
		switch {
		case err == nil:
			data = custom
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("读取模板文件失败: %w", err)
		}
	}

	templates, err := parseTemplates(data)
	if err != nil {
		return nil, err
	}
	return &TemplateService{
		templates: templates,
		usage:     store.TemplateUsage,
		logger:    utils.GetLogger(),
	}, nil
}

func parseTemplates(data []byte) ([]models.ScriptTemplate, error) {
	var catalog templateCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("解析模板失败: %w", err)
	}
	seen := make(map[string]bool, len(catalog.Templates))
	for i := range catalog.Templates {
		t := &catalog.Templates[i]
		if t.ID == "" || t.Title == "" {
			return nil, fmt.Errorf("模板 #%d 缺少 id 或 title", i+1)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("模板 id 重复: %s", t.ID)
		}
		seen[t.ID] = true
		t.SceneCount = len(t.Structure.Scenes)
	}
	return catalog.Templates, nil
}

// List 按使用次数倒序，category 为空时返回全部
func (s *TemplateService) List(ctx context.Context, category string) ([]models.ScriptTemplate, error) {
	counts, err := s.usage.Counts(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("load template usage", err)
	}

	s.mu.RLock()
	out := make([]models.ScriptTemplate, 0, len(s.templates))
	for _, t := range s.templates {
		if category != "" && !strings.EqualFold(t.Category, category) {
			continue
		}
		t.UsageCount = counts[t.ID]
		out = append(out, t)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].UsageCount > out[j].UsageCount })
	return out, nil
}

// Get 按 id 获取模板
func (s *TemplateService) Get(ctx context.Context, id string) (*models.ScriptTemplate, error) {
	s.mu.RLock()
	var found *models.ScriptTemplate
	for i := range s.templates {
		if s.templates[i].ID == id {
			t := s.templates[i]
			found = &t
			break
		}
	}
	s.mu.RUnlock()

	if found == nil {
		return nil, apperrors.NewNotFoundError("Template not found", nil)
	}
	counts, err := s.usage.Counts(ctx)
	if err == nil {
		found.UsageCount = counts[id]
	}
	return found, nil
}

// Categories 所有分类，按字母序
func (s *TemplateService) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]bool)
	for _, t := range s.templates {
		set[t.Category] = true
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// MarkUsed 使用次数加一，失败只记日志
func (s *TemplateService) MarkUsed(ctx context.Context, id string) {
	if err := s.usage.Increment(ctx, id); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("更新模板使用次数失败", map[string]interface{}{"template_id": id, "err": err})
	}
}
