package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"meeting-agent-be/internal/entity"
	"meeting-agent-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRepository_KeepsMostRecent(t *testing.T) {
	repo := NewHistoryRepository(20, time.Hour)

	for i := 0; i < 25; i++ {
		repo.Append("s1", llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("turn %d", i)})
	}

	got := repo.Get("s1")
	require.Len(t, got, 20)
	assert.Equal(t, "turn 5", got[0].Content)
	assert.Equal(t, "turn 24", got[19].Content)
	assert.Empty(t, repo.Get("s2"))
}

func TestHistoryRepository_GetReturnsCopy(t *testing.T) {
	repo := NewHistoryRepository(0, time.Hour)
	repo.Append("s1", llm.Message{Role: llm.RoleUser, Content: "a"})

	got := repo.Get("s1")
	got[0].Content = "mutated"

	assert.Equal(t, "a", repo.Get("s1")[0].Content)
	assert.Len(t, repo.Get("s1"), 1)

	repo.Clear("s1")
	assert.Empty(t, repo.Get("s1"))
}

func TestHistoryRepository_ClearWinsOverConcurrentAppends(t *testing.T) {
	repo := NewHistoryRepository(20, time.Hour)
	repo.Append("s1", llm.Message{Role: llm.RoleUser, Content: "before"})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			repo.Append("s1", llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("turn %d", i)})
		}(i)
	}
	wg.Wait()
	repo.Clear("s1")

	assert.Empty(t, repo.Get("s1"))

	repo.Append("s1", llm.Message{Role: llm.RoleUser, Content: "after"})
	got := repo.Get("s1")
	require.Len(t, got, 1)
	assert.Equal(t, "after", got[0].Content)
}

func TestArtifactRepository(t *testing.T) {
	repo := NewArtifactRepository(time.Hour)
	ctx := context.Background()
	a := &entity.Artifact{ID: uuid.New(), SessionID: "s1", Type: entity.ArtifactReport}

	require.NoError(t, repo.Create(ctx, a))
	require.NoError(t, repo.Create(ctx, &entity.Artifact{ID: uuid.New(), SessionID: "s2"}))

	found, err := repo.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Same(t, a, found)

	missing, err := repo.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	n, err := repo.CountBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
