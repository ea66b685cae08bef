package repository

import (
	"context"
	"testing"

	"doc-tracker/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteractionRepository(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewInteractionRepository()

	require.NoError(t, repo.CreateHeatmapEvent(ctx, &model.HeatmapEvent{DocumentID: 7, PageNumber: 1, SessionID: "s1", Kind: model.HeatmapClick, X: 0.5, Y: 0.25}))
	require.NoError(t, repo.CreateHeatmapEvent(ctx, &model.HeatmapEvent{DocumentID: 7, PageNumber: 2, SessionID: "s1", Kind: model.HeatmapScrollPosition, ScrollY: 300}))

	events, err := repo.ListHeatmapEvents(ctx, 7, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.HeatmapClick, events[0].Kind)

	require.NoError(t, repo.CreateIntentSignal(ctx, &model.IntentSignal{DocumentID: 7, ViewerID: "v1", SessionID: "s1", Signal: "copy_attempt", Weight: 10}))
	require.NoError(t, repo.CreateIntentSignal(ctx, &model.IntentSignal{DocumentID: 7, ViewerID: "v1", SessionID: "s1", Signal: "tab_visible", Weight: 1}))

	signals, err := repo.ListIntentSignals(ctx, "v1", 7)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, "copy_attempt", signals[0].Signal)
	assert.Equal(t, "tab_visible", signals[1].Signal)
}
