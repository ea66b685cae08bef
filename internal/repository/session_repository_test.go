package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"doc-tracker/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSessionRepository_CreateIsIdempotent(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository()

	created, err := repo.Create(ctx, &model.Session{
		SessionID: "s1", ShareID: 1, DocumentID: 7, ViewerID: "v1", StartedAt: time.Now(), Device: "desktop",
	})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, &model.Session{
		SessionID: "s1", ShareID: 1, DocumentID: 7, ViewerID: "v1", StartedAt: time.Now(), Device: "mobile",
	})
	require.NoError(t, err)
	assert.False(t, created)

	session, err := repo.Find(ctx, SessionKey{SessionID: "s1", DocumentID: 7, ViewerID: "v1"})
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "desktop", session.Device)

	missing, err := repo.Find(ctx, SessionKey{SessionID: "s2", DocumentID: 7, ViewerID: "v1"})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSessionRepository_ExistsOther(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository()

	exists, err := repo.ExistsOther(ctx, "v1", 7, "s1")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.Create(ctx, &model.Session{SessionID: "s1", ShareID: 1, DocumentID: 7, ViewerID: "v1", StartedAt: time.Now()})
	require.NoError(t, err)

	exists, err = repo.ExistsOther(ctx, "v1", 7, "s1")
	require.NoError(t, err)
	assert.False(t, exists, "the session itself is not another session")

	exists, err = repo.ExistsOther(ctx, "v1", 7, "s2")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsOther(ctx, "v1", 8, "s2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSessionRepository_PagesAndClose(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository()
	start := time.Now().Add(-time.Minute)

	_, err := repo.Create(ctx, &model.Session{SessionID: "s1", ShareID: 1, DocumentID: 7, ViewerID: "v1", StartedAt: start})
	require.NoError(t, err)

	key := SessionKey{SessionID: "s1", DocumentID: 7, ViewerID: "v1"}
	require.NoError(t, repo.AddPage(ctx, key, 3, start.Add(time.Second)))
	require.NoError(t, repo.AddPage(ctx, key, 1, start.Add(2*time.Second)))
	require.NoError(t, repo.AddPage(ctx, key, 3, start.Add(3*time.Second)))

	pages, err := repo.Pages(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, pages)

	end := start.Add(90 * time.Second)
	require.NoError(t, repo.Close(ctx, key, end, 90))
	session, err := repo.Find(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, session.EndedAt)
	assert.EqualValues(t, 90, session.Duration)
}

func TestSessionRepository_ScopedToDocumentAndViewer(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository()
	start := time.Now().Add(-time.Minute)

	_, err := repo.Create(ctx, &model.Session{SessionID: "s1", ShareID: 1, DocumentID: 7, ViewerID: "v1", StartedAt: start})
	require.NoError(t, err)
	owner := SessionKey{SessionID: "s1", DocumentID: 7, ViewerID: "v1"}

	for _, other := range []SessionKey{
		{SessionID: "s1", DocumentID: 8, ViewerID: "v1"},
		{SessionID: "s1", DocumentID: 7, ViewerID: "v2"},
	} {
		found, err := repo.Find(ctx, other)
		require.NoError(t, err)
		assert.Nil(t, found, "%+v", other)

		require.NoError(t, repo.AddPage(ctx, other, 2, start))
		require.NoError(t, repo.Close(ctx, other, start.Add(time.Hour), 3600))
	}

	pages, err := repo.Pages(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, pages)

	session, err := repo.Find(ctx, owner)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Nil(t, session.EndedAt)
	assert.Zero(t, session.Duration)
}

func TestSessionRepository_TransactionRollsBack(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewSessionRepository()
	boom := errors.New("boom")

	err := repo.Transaction(ctx, func(tx *gorm.DB) error {
		created, err := repo.WithTx(tx).Create(ctx, &model.Session{SessionID: "s1", ShareID: 1, DocumentID: 7, ViewerID: "v1", StartedAt: time.Now()})
		require.NoError(t, err)
		assert.True(t, created)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	session, err := repo.Find(ctx, SessionKey{SessionID: "s1", DocumentID: 7, ViewerID: "v1"})
	require.NoError(t, err)
	assert.Nil(t, session)
}
