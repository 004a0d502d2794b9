// internal/storage/file_repos.go
package storage

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
)

const jsonExt = ".json"

// DriverFile 文件存储驱动名
const DriverFile = "file"

// collection 一个目录一类记录，每条记录一个 JSON 文件
type collection[T any] struct {
	fs  *FileStorage
	dir string
	// 串行化读改写
	mu sync.Mutex
}

func newCollection[T any](fs *FileStorage, dir string) *collection[T] {
	return &collection[T]{fs: fs, dir: dir}
}

// validKey 拒绝可能逃逸出目录的键
func validKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, `/\`) && !strings.Contains(key, "..")
}

func (c *collection[T]) exists(key string) bool {
	return validKey(key) && c.fs.FileExists(c.dir, key+jsonExt)
}

func (c *collection[T]) load(key string) (*T, error) {
	if !validKey(key) {
		return nil, ErrNotFound
	}
	var v T
	if err := c.fs.LoadJSONFile(c.dir, key+jsonExt, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *collection[T]) save(key string, v *T) error {
	if !validKey(key) {
		return errors.New("invalid record key")
	}
	return c.fs.SaveJSONFile(c.dir, key+jsonExt, v)
}

func (c *collection[T]) remove(key string) error {
	if !validKey(key) {
		return ErrNotFound
	}
	return c.fs.DeleteFile(c.dir, key+jsonExt)
}

// filter 遍历全部记录，keep 为 nil 时返回全部
func (c *collection[T]) filter(keep func(*T) bool) ([]*T, error) {
	files, err := c.fs.ListFiles(c.dir, jsonExt)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(files))
	for _, name := range files {
		v, err := c.load(strings.TrimSuffix(name, jsonExt))
		if errors.Is(err, ErrNotFound) {
			// 并发删除
			continue
		}
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// removeWhere 删除匹配的记录
func (c *collection[T]) removeWhere(key func(*T) string, match func(*T) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.filter(match)
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := c.remove(key(item)); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// NewFileStore 基于 JSON 文件的存储
func NewFileStore(baseDir string) (*Store, error) {
	fs, err := NewFileStorage(baseDir)
	if err != nil {
		return nil, err
	}

	s := NewStore(DriverFile, fs.Close)
	s.Projects = &fileProjects{c: newCollection[models.Project](fs, "projects")}
	s.Shares = &fileShares{c: newCollection[models.PublicShare](fs, "shares")}
	s.Users = &fileUsers{c: newCollection[models.UserRecord](fs, "users")}
	s.Collaborators = &fileCollaborators{c: newCollection[models.Collaborator](fs, "collaborators")}
	s.Comments = &fileComments{c: newCollection[models.Comment](fs, "comments")}
	s.Activity = &fileActivity{c: newCollection[models.ActivityLog](fs, "activity")}
	s.Analytics = &fileAnalytics{c: newCollection[models.AnalyticsEvent](fs, "analytics")}
	s.Renders = &fileRenders{c: newCollection[models.RenderJob](fs, "renders")}
	s.TemplateUsage = &fileTemplateUsage{fs: fs}
	return s, nil
}

// ---- projects ----

type fileProjects struct {
	c *collection[models.Project]
}

func (r *fileProjects) Create(_ context.Context, p *models.Project) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if r.c.exists(p.ID) {
		return ErrDuplicate
	}
	return r.c.save(p.ID, p)
}

func (r *fileProjects) Get(_ context.Context, id string) (*models.Project, error) {
	return r.c.load(id)
}

func (r *fileProjects) Update(_ context.Context, p *models.Project) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if !r.c.exists(p.ID) {
		return ErrNotFound
	}
	return r.c.save(p.ID, p)
}

func (r *fileProjects) Delete(_ context.Context, id string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.c.remove(id)
}

func (r *fileProjects) ListByUser(_ context.Context, userID string) ([]*models.Project, error) {
	items, err := r.c.filter(func(p *models.Project) bool { return p.UserID == userID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

// ---- shares ----

// fileShares 以 share token 作为文件名
type fileShares struct {
	c *collection[models.PublicShare]
}

func (r *fileShares) ReplaceActive(_ context.Context, share *models.PublicShare) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	active, err := r.c.filter(func(s *models.PublicShare) bool {
		return s.ProjectID == share.ProjectID && s.IsActive
	})
	if err != nil {
		return err
	}
	for _, s := range active {
		s.IsActive = false
		if err := r.c.save(s.ShareToken, s); err != nil {
			return err
		}
	}
	return r.c.save(share.ShareToken, share)
}

func (r *fileShares) GetByToken(_ context.Context, token string) (*models.PublicShare, error) {
	return r.c.load(token)
}

func (r *fileShares) ActiveForProject(_ context.Context, projectID string) (*models.PublicShare, error) {
	items, err := r.c.filter(func(s *models.PublicShare) bool {
		return s.ProjectID == projectID && s.IsActive
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items[0], nil
}

func (r *fileShares) IncrementViews(_ context.Context, token string) (int, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	s, err := r.c.load(token)
	if err != nil {
		return 0, err
	}
	s.ViewCount++
	if err := r.c.save(token, s); err != nil {
		return 0, err
	}
	return s.ViewCount, nil
}

func (r *fileShares) Deactivate(_ context.Context, token string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	s, err := r.c.load(token)
	if err != nil {
		return err
	}
	s.IsActive = false
	return r.c.save(token, s)
}

func (r *fileShares) DeleteByProject(_ context.Context, projectID string) error {
	return r.c.removeWhere(
		func(s *models.PublicShare) string { return s.ShareToken },
		func(s *models.PublicShare) bool { return s.ProjectID == projectID },
	)
}

// ---- users ----

type fileUsers struct {
	c *collection[models.UserRecord]
}

func (r *fileUsers) Create(_ context.Context, u *models.User) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	email := strings.ToLower(u.Email)
	dup, err := r.c.filter(func(rec *models.UserRecord) bool { return rec.Email == email })
	if err != nil {
		return err
	}
	if len(dup) > 0 || r.c.exists(u.ID) {
		return ErrDuplicate
	}
	rec := models.NewUserRecord(u)
	rec.Email = email
	return r.c.save(u.ID, &rec)
}

func (r *fileUsers) Get(_ context.Context, id string) (*models.User, error) {
	rec, err := r.c.load(id)
	if err != nil {
		return nil, err
	}
	return rec.ToUser(), nil
}

func (r *fileUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	items, err := r.c.filter(func(rec *models.UserRecord) bool { return rec.Email == email })
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return items[0].ToUser(), nil
}

// ---- collaborators ----

type fileCollaborators struct {
	c *collection[models.Collaborator]
}

func collaboratorKey(projectID, userID string) string {
	return projectID + "__" + userID
}

func (r *fileCollaborators) Upsert(_ context.Context, c *models.Collaborator) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.c.save(collaboratorKey(c.ProjectID, c.UserID), c)
}

func (r *fileCollaborators) Get(_ context.Context, projectID, userID string) (*models.Collaborator, error) {
	return r.c.load(collaboratorKey(projectID, userID))
}

func (r *fileCollaborators) ListByProject(_ context.Context, projectID string) ([]*models.Collaborator, error) {
	items, err := r.c.filter(func(c *models.Collaborator) bool { return c.ProjectID == projectID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (r *fileCollaborators) ListByUser(_ context.Context, userID string) ([]*models.Collaborator, error) {
	return r.c.filter(func(c *models.Collaborator) bool { return c.UserID == userID })
}

func (r *fileCollaborators) Remove(_ context.Context, projectID, userID string) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.c.remove(collaboratorKey(projectID, userID))
}

func (r *fileCollaborators) DeleteByProject(_ context.Context, projectID string) error {
	return r.c.removeWhere(
		func(c *models.Collaborator) string { return collaboratorKey(c.ProjectID, c.UserID) },
		func(c *models.Collaborator) bool { return c.ProjectID == projectID },
	)
}

// ---- comments ----

type fileComments struct {
	c *collection[models.Comment]
}

func (r *fileComments) Create(_ context.Context, c *models.Comment) error {
	return r.c.save(c.ID, c)
}

func (r *fileComments) ListByProject(_ context.Context, projectID string, scene *int) ([]*models.Comment, error) {
	items, err := r.c.filter(func(c *models.Comment) bool {
		if c.ProjectID != projectID {
			return false
		}
		return scene == nil || (c.SceneNumber != nil && *c.SceneNumber == *scene)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

func (r *fileComments) DeleteByProject(_ context.Context, projectID string) error {
	return r.c.removeWhere(
		func(c *models.Comment) string { return c.ID },
		func(c *models.Comment) bool { return c.ProjectID == projectID },
	)
}

// ---- activity ----

type fileActivity struct {
	c *collection[models.ActivityLog]
}

func (r *fileActivity) Append(_ context.Context, a *models.ActivityLog) error {
	return r.c.save(a.ID, a)
}

func (r *fileActivity) Latest(_ context.Context, projectID string, n int) ([]*models.ActivityLog, error) {
	items, err := r.c.filter(func(a *models.ActivityLog) bool { return a.ProjectID == projectID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if n > 0 && len(items) > n {
		items = items[:n]
	}
	return items, nil
}

func (r *fileActivity) DeleteByProject(_ context.Context, projectID string) error {
	return r.c.removeWhere(
		func(a *models.ActivityLog) string { return a.ID },
		func(a *models.ActivityLog) bool { return a.ProjectID == projectID },
	)
}

// ---- analytics ----

type fileAnalytics struct {
	c *collection[models.AnalyticsEvent]
}

func (r *fileAnalytics) Record(_ context.Context, e *models.AnalyticsEvent) error {
	return r.c.save(e.ID, e)
}

func (r *fileAnalytics) ListByUser(_ context.Context, userID string) ([]*models.AnalyticsEvent, error) {
	items, err := r.c.filter(func(e *models.AnalyticsEvent) bool { return e.UserID == userID })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

// ---- renders ----

type fileRenders struct {
	c *collection[models.RenderJob]
}

func (r *fileRenders) Save(_ context.Context, job *models.RenderJob) error {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.c.save(job.ID, job)
}

func (r *fileRenders) Get(_ context.Context, id string) (*models.RenderJob, error) {
	return r.c.load(id)
}

func (r *fileRenders) ListByStatus(_ context.Context, status string) ([]*models.RenderJob, error) {
	items, err := r.c.filter(func(j *models.RenderJob) bool { return j.Status == status })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

// ---- template usage ----

const templateUsageFile = "template_usage.json"

type fileTemplateUsage struct {
	fs *FileStorage
	mu sync.Mutex
}

func (r *fileTemplateUsage) Increment(_ context.Context, templateID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts, err := r.load()
	if err != nil {
		return err
	}
	counts[templateID]++
	return r.fs.SaveJSONFile("", templateUsageFile, counts)
}

func (r *fileTemplateUsage) Counts(_ context.Context) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *fileTemplateUsage) load() (map[string]int, error) {
	counts := map[string]int{}
	err := r.fs.LoadJSONFile("", templateUsageFile, &counts)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return counts, nil
}
