package knowledge

import (
	"context"
	"testing"

	"gametester/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsights_CountsByTarget(t *testing.T) {
	store, err := Open(":memory:", &mockEngine{}, nil)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	target := "https://play.example.com/"

	_, err = store.RecordVerdict(ctx, target, types.CategoryFunctionality, types.ConsensusVerdict{
		TestID: "test_001", Verdict: types.VerdictPass, SuccessCount: 3, TotalCount: 3, ReproducibilityScore: 1,
	})
	require.NoError(t, err)
	_, err = store.RecordVerdict(ctx, target, types.CategoryEdgeCase, types.ConsensusVerdict{
		TestID: "test_002", Verdict: types.VerdictFlaky, SuccessCount: 2, TotalCount: 3, ReproducibilityScore: 2.0 / 3.0,
	})
	require.NoError(t, err)
	_, err = store.RecordVerdict(ctx, "https://other.example.com/", types.CategoryFunctionality, types.ConsensusVerdict{
		TestID: "test_003", Verdict: types.VerdictFail, TotalCount: 3,
	})
	require.NoError(t, err)

	_, err = store.RecordFeedback(ctx, target, "test_001", "selector too brittle", nil)
	require.NoError(t, err)
	_, err = store.RecordAnalysis(ctx, target, "number puzzle with submit button and text input")
	require.NoError(t, err)

	ins, err := store.Insights(ctx, target)
	require.NoError(t, err)

	assert.True(t, ins.Available)
	assert.Equal(t, 2, ins.TotalTests)
	assert.Equal(t, 1, ins.SuccessfulTests)
	assert.Equal(t, 0, ins.FailedTests)
	assert.Equal(t, 1, ins.FlakyTests)
	assert.Equal(t, 1, ins.FeedbackCount)
	assert.Equal(t, 1, ins.AnalysisEntries)
}

func TestInsights_EmptyStore(t *testing.T) {
	store, err := Open(":memory:", nil, nil)
	require.NoError(t, err)
	defer store.Close()

	ins, err := store.Insights(context.Background(), "https://play.example.com/")
	require.NoError(t, err)
	assert.False(t, ins.Available)
	assert.Zero(t, ins.TotalTests)
	assert.Zero(t, ins.FeedbackCount)
}
