package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Krosebrook/lovable-prompt-artist/internal/errors"
	"github.com/Krosebrook/lovable-prompt-artist/internal/models"
	"github.com/Krosebrook/lovable-prompt-artist/internal/storage"
	"github.com/Krosebrook/lovable-prompt-artist/internal/validation"
)

func TestPermissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.addUser(t, "owner@example.com")
	project := env.createProject(t, owner.ID)

	env.addCollaborator(t, project.ID, "admin", models.RoleAdmin)
	env.addCollaborator(t, project.ID, "editor", models.RoleEditor)
	env.addCollaborator(t, project.ID, "viewer", models.RoleViewer)

	tests := []struct {
		user   string
		action models.Action
		want   bool
	}{
		{owner.ID, models.ActionDelete, true},
		{"admin", models.ActionManageCollaborators, true},
		{"admin", models.ActionDelete, true},
		{"editor", models.ActionEdit, true},
		{"editor", models.ActionManageCollaborators, false},
		{"editor", models.ActionDelete, false},
		{"viewer", models.ActionComment, true},
		{"viewer", models.ActionEdit, false},
		{"stranger", models.ActionView, false},
	}
	for _, tt := range tests {
		t.Run(tt.user+"/"+string(tt.action), func(t *testing.T) {
			ok, err := env.permissions.Can(ctx, project.ID, tt.user, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}

	role, err := env.permissions.Role(ctx, project.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, role)

	_, _, err = env.permissions.Require(ctx, project.ID, "viewer", models.ActionEdit)
	assert.True(t, apperrors.IsForbiddenError(err))

	_, _, err = env.permissions.Require(ctx, project.ID, "stranger", models.ActionView)
	assert.True(t, apperrors.IsNotFoundError(err), "unrelated users must not learn the project exists")

	_, _, err = env.permissions.Require(ctx, "missing", owner.ID, models.ActionView)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestProjectService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	project := env.createProject(t, "user-1")
	assert.NotEmpty(t, project.ID)
	assert.Equal(t, "1 min", project.TotalDuration)
	assert.Equal(t, "user-1", project.UserID)
	assert.NotNil(t, project.StoryboardImages)

	logs, err := env.activity.Latest(ctx, project.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.ActivityCreated, logs[0].Action)

	in := sampleInput()
	in.Script.Scenes = nil
	_, err = env.projects.Create(ctx, "user-1", in)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestProjectService_TitleFallsBackToScriptTitle(t *testing.T) {
	env := newTestEnv(t)
	in := sampleInput()
	in.Title = "   "
	in.Script.Title = "  From the script  "

	project, err := env.projects.Create(context.Background(), "user-1", in)
	require.NoError(t, err)
	assert.Equal(t, "From the script", project.Title)
}

func TestProjectService_ListOwnAndShared(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	env.projects.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	older := env.createProject(t, "alice")
	shared := env.createProject(t, "bob")
	newer := env.createProject(t, "alice")
	env.addCollaborator(t, shared.ID, "alice", models.RoleEditor)

	list, err := env.projects.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, shared.ID, list[1].ID)
	assert.Equal(t, models.RoleEditor, list[1].Role)
	assert.Equal(t, older.ID, list[2].ID)
	assert.Equal(t, models.RoleOwner, list[2].Role)

	list, err = env.projects.List(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestProjectService_Update(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	project := env.createProject(t, "owner")
	env.addCollaborator(t, project.ID, "editor", models.RoleEditor)
	env.addCollaborator(t, project.ID, "viewer", models.RoleViewer)

	in := sampleInput()
	in.Script.Scenes = append(in.Script.Scenes, models.Scene{
		SceneNumber: 3, Duration: "1 min 30 sec", VoiceOver: "More", VisualDescription: "Wide shot",
	})

	_, err := env.projects.Update(ctx, "viewer", project.ID, in)
	assert.True(t, apperrors.IsForbiddenError(err))

	updated, err := env.projects.Update(ctx, "editor", project.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "2 min 30 sec", updated.TotalDuration)
	assert.True(t, project.CreatedAt.Equal(updated.CreatedAt))

	stored, err := env.projects.Get(ctx, "owner", project.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Script.Scenes, 3)
	assert.Contains(t, env.notifier.types(), EventProjectUpdated)
}

func TestProjectService_AttachImages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	project := env.createProject(t, "owner")

	_, err := env.projects.AttachImages(ctx, "owner", project.ID, []models.StoryboardImage{
		{SceneNumber: 1, ImageURL: "https://img.example/1-old.png"},
	})
	require.NoError(t, err)
	updated, err := env.projects.AttachImages(ctx, "owner", project.ID, []models.StoryboardImage{
		{SceneNumber: 1, ImageURL: "https://img.example/1-new.png"},
		{SceneNumber: 2, ImageURL: "https://img.example/2.png"},
	})
	require.NoError(t, err)

	require.Len(t, updated.StoryboardImages, 2)
	url, ok := models.ImageFor(updated.StoryboardImages, 1)
	assert.True(t, ok)
	assert.Equal(t, "https://img.example/1-new.png", url)
}

func TestProjectService_DeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	project := env.createProject(t, "owner")
	env.addCollaborator(t, project.ID, "editor", models.RoleEditor)

	link, err := env.shares.Create(ctx, "owner", validation.ShareRequest{ProjectID: project.ID})
	require.NoError(t, err)
	_, err = env.collaboration.AddComment(ctx, "editor", project.ID, validation.CommentInput{Content: "Nice"})
	require.NoError(t, err)

	err = env.projects.Delete(ctx, "editor", project.ID)
	assert.True(t, apperrors.IsForbiddenError(err))

	require.NoError(t, env.projects.Delete(ctx, "owner", project.ID))

	_, err = env.store.Projects.Get(ctx, project.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = env.store.Shares.GetByToken(ctx, link.ShareToken)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	comments, err := env.store.Comments.ListByProject(ctx, project.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, comments)
	collaborators, err := env.store.Collaborators.ListByProject(ctx, project.ID)
	require.NoError(t, err)
	assert.Empty(t, collaborators)

	err = env.projects.Delete(ctx, "owner", project.ID)
	assert.True(t, apperrors.IsNotFoundError(err))
	assert.Contains(t, env.notifier.types(), EventProjectDeleted)
}

func TestProjectService_Duration(t *testing.T) {
	env := newTestEnv(t)
	project := env.createProject(t, "owner")

	summary, err := env.projects.Duration(context.Background(), "owner", project.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, summary.Seconds)
	assert.Equal(t, "1 min", summary.Total)
	assert.Equal(t, "1m", summary.Short)
	assert.Equal(t, 2, summary.SceneCount)
	require.Len(t, summary.Percentages, 2)
	assert.Equal(t, 50, summary.Percentages[0].Percentage)
	assert.Equal(t, 50, summary.Percentages[1].Percentage)

	_, err = env.projects.Duration(context.Background(), "stranger", project.ID)
	assert.True(t, apperrors.IsNotFoundError(err))
}

func TestLockManager(t *testing.T) {
	lm := NewLockManager(0)
	defer lm.Close()

	counter := 0
	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func() {
			_ = lm.WithProjectLock("p1", func() error {
				counter++
				return nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 20; i++ {
		<-done
	}
	assert.Equal(t, 20, counter)
	assert.Equal(t, 1, lm.Size())

	lm.cleanup(time.Now().Add(2*lockTimeout), 0)
	assert.Equal(t, 0, lm.Size())
}
