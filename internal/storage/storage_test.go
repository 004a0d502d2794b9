package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFileStorageAtomicWriteAndCache(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStorage(dir)
	require.NoError(t, err)
	defer fs.Close()

	require.NoError(t, fs.SaveJSONFile("things", "a.json", map[string]int{"n": 1}))
	assert.NoFileExists(t, filepath.Join(dir, "things", "a.json.tmp"))

	var got map[string]int
	require.NoError(t, fs.LoadJSONFile("things", "a.json", &got))
	assert.Equal(t, 1, got["n"])
	assert.Equal(t, 1, fs.cache.len())

	// 写入后缓存失效
	require.NoError(t, fs.SaveJSONFile("things", "a.json", map[string]int{"n": 2}))
	require.NoError(t, fs.LoadJSONFile("things", "a.json", &got))
	assert.Equal(t, 2, got["n"])

	files, err := fs.ListFiles("things", ".json")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json"}, files)

	require.NoError(t, fs.DeleteFile("things", "a.json"))
	assert.ErrorIs(t, fs.DeleteFile("things", "a.json"), ErrNotFound)
	assert.ErrorIs(t, fs.LoadJSONFile("things", "a.json", &got), ErrNotFound)

	empty, err := fs.ListFiles("absent", ".json")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestReadCacheEviction(t *testing.T) {
	c := newReadCache(5, time.Minute)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	for i := 0; i < 6; i++ {
		now = now.Add(time.Second)
		c.put(fmt.Sprintf("k%d", i), []byte{byte(i)})
	}
	assert.LessOrEqual(t, c.len(), 5)
	_, ok := c.get("k0")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, c.len(), c.cleanup())
	assert.Equal(t, 0, c.len())
}

func TestProjectsCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"p1", "p2", "p3"} {
		owner := "u1"
		if id == "p3" {
			owner = "u2"
		}
		require.NoError(t, s.Projects.Create(ctx, &models.Project{ID: id, UserID: owner, Title: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}
	assert.ErrorIs(t, s.Projects.Create(ctx, &models.Project{ID: "p1"}), ErrDuplicate)

	list, err := s.Projects.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p2", list[0].ID)

	p, err := s.Projects.Get(ctx, "p1")
	require.NoError(t, err)
	p.Title = "renamed"
	require.NoError(t, s.Projects.Update(ctx, p))
	p, _ = s.Projects.Get(ctx, "p1")
	assert.Equal(t, "renamed", p.Title)

	assert.ErrorIs(t, s.Projects.Update(ctx, &models.Project{ID: "nope"}), ErrNotFound)
	require.NoError(t, s.Projects.Delete(ctx, "p1"))
	_, err = s.Projects.Get(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Projects.Get(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSharesReplaceActive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Now()

	require.NoError(t, s.Shares.ReplaceActive(ctx, &models.PublicShare{ID: "1", ProjectID: "p", ShareToken: "tok1", IsActive: true, CreatedAt: t0}))
	require.NoError(t, s.Shares.ReplaceActive(ctx, &models.PublicShare{ID: "2", ProjectID: "p", ShareToken: "tok2", IsActive: true, CreatedAt: t0.Add(time.Second)}))

	old, err := s.Shares.GetByToken(ctx, "tok1")
	require.NoError(t, err)
	assert.False(t, old.IsActive)

	active, err := s.Shares.ActiveForProject(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, "tok2", active.ShareToken)

	n, err := s.Shares.IncrementViews(ctx, "tok2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Shares.Deactivate(ctx, "tok2"))
	_, err = s.Shares.ActiveForProject(ctx, "p")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Shares.DeleteByProject(ctx, "p"))
	_, err = s.Shares.GetByToken(ctx, "tok1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSharesConcurrentViews(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Shares.ReplaceActive(ctx, &models.PublicShare{ID: "1", ProjectID: "p", ShareToken: "tok", IsActive: true}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Shares.IncrementViews(ctx, "tok")
		}()
	}
	wg.Wait()

	share, err := s.Shares.GetByToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, 20, share.ViewCount)
}

func TestUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Users.Create(ctx, &models.User{ID: "u1", Email: "Ann@Example.com", PasswordHash: "h"}))
	assert.ErrorIs(t, s.Users.Create(ctx, &models.User{ID: "u2", Email: "ann@example.com"}), ErrDuplicate)

	u, err := s.Users.GetByEmail(ctx, " ANN@example.com ")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "h", u.PasswordHash)
	assert.Equal(t, "ann@example.com", u.Email)

	_, err = s.Users.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCollaboratorsCommentsActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Now()

	require.NoError(t, s.Collaborators.Upsert(ctx, &models.Collaborator{ProjectID: "p", UserID: "u2", Role: models.RoleViewer}))
	require.NoError(t, s.Collaborators.Upsert(ctx, &models.Collaborator{ProjectID: "p", UserID: "u2", Role: models.RoleEditor}))
	c, err := s.Collaborators.Get(ctx, "p", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, c.Role)

	byUser, err := s.Collaborators.ListByUser(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, byUser, 1)

	two := 2
	require.NoError(t, s.Comments.Create(ctx, &models.Comment{ID: "c1", ProjectID: "p", Content: "general", CreatedAt: t0}))
	require.NoError(t, s.Comments.Create(ctx, &models.Comment{ID: "c2", ProjectID: "p", SceneNumber: &two, Content: "scene", CreatedAt: t0.Add(time.Second)}))
	all, err := s.Comments.ListByProject(ctx, "p", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	scene, err := s.Comments.ListByProject(ctx, "p", &two)
	require.NoError(t, err)
	require.Len(t, scene, 1)
	assert.Equal(t, "c2", scene[0].ID)

	for i := 0; i < 25; i++ {
		require.NoError(t, s.Activity.Append(ctx, &models.ActivityLog{
			ID: fmt.Sprintf("a%02d", i), ProjectID: "p", Action: models.ActivityUpdated, CreatedAt: t0.Add(time.Duration(i) * time.Second),
		}))
	}
	latest, err := s.Activity.Latest(ctx, "p", 20)
	require.NoError(t, err)
	require.Len(t, latest, 20)
	assert.Equal(t, "a24", latest[0].ID)

	require.NoError(t, s.Collaborators.DeleteByProject(ctx, "p"))
	require.NoError(t, s.Comments.DeleteByProject(ctx, "p"))
	require.NoError(t, s.Activity.DeleteByProject(ctx, "p"))
	remaining, _ := s.Activity.Latest(ctx, "p", 0)
	assert.Empty(t, remaining)
	assert.ErrorIs(t, s.Collaborators.Remove(ctx, "p", "u2"), ErrNotFound)
}

func TestAnalyticsRendersTemplateUsage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	t0 := time.Now()

	require.NoError(t, s.Analytics.Record(ctx, &models.AnalyticsEvent{ID: "e1", UserID: "u", EventType: models.EventScriptGenerated, CreatedAt: t0}))
	require.NoError(t, s.Analytics.Record(ctx, &models.AnalyticsEvent{ID: "e2", UserID: "u", EventType: models.EventProjectSaved, CreatedAt: t0.Add(time.Second)}))
	events, err := s.Analytics.ListByUser(ctx, "u")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e2", events[0].ID)

	job := &models.RenderJob{ID: "r1", Status: models.RenderQueued}
	require.NoError(t, s.Renders.Save(ctx, job))
	queued, err := s.Renders.ListByStatus(ctx, models.RenderQueued)
	require.NoError(t, err)
	assert.Len(t, queued, 1)

	require.NoError(t, s.TemplateUsage.Increment(ctx, "explainer"))
	require.NoError(t, s.TemplateUsage.Increment(ctx, "explainer"))
	counts, err := s.TemplateUsage.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["explainer"])
}

func TestFileStoreSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Projects.Create(context.Background(), &models.Project{ID: "p", UserID: "u"}))
	require.NoError(t, s.Close())

	_, err = os.Stat(filepath.Join(dir, "projects", "p.json"))
	require.NoError(t, err)

	s2, err := NewFileStore(dir)
	require.NoError(t, err)
	defer s2.Close()
	p, err := s2.Projects.Get(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "u", p.UserID)
}
