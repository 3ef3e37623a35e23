package planner

import (
	"context"
	"fmt"
	"testing"

	"gametester/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	drafts []types.TestCase
	err    error
}

func (f *fakeGenerator) Draft(ctx context.Context, targetURL, analysis string, count int) ([]types.TestCase, error) {
	return f.drafts, f.err
}

func TestGenerateCandidates_CatalogOnly(t *testing.T) {
	p := New(nil, nil, nil, "http://target", 20, nil)

	cases, err := p.GenerateCandidates(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, cases)
	assert.LessOrEqual(t, len(cases), 20)

	for i, tc := range cases {
		assert.Equal(t, fmt.Sprintf("tc_%03d", i+1), tc.ID)
		assert.NotEmpty(t, tc.Name)
		assert.NotEmpty(t, tc.Steps)
		assert.NotEmpty(t, tc.Category)
		assert.NotEmpty(t, tc.Priority)
		assert.Positive(t, tc.EstimatedDuration)
	}
}

func TestGenerateCandidates_GeneratorFailureFallsBack(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("quota exhausted")}
	p := New(gen, nil, nil, "http://target", 5, nil)

	cases, err := p.GenerateCandidates(context.Background())
	require.NoError(t, err, "an LLM failure must not fail the planning cycle")
	assert.Len(t, cases, 5)
}

func TestGenerateCandidates_TopUpFromCatalog(t *testing.T) {
	gen := &fakeGenerator{drafts: []types.TestCase{
		{Name: "drafted case", Category: types.CategoryEdgeCase, Steps: []string{"Click the Start button"}, Priority: types.PriorityHigh, EstimatedDuration: 10},
	}}
	p := New(gen, nil, nil, "http://target", 4, nil)

	cases, err := p.GenerateCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, cases, 4)
	assert.Equal(t, "drafted case", cases[0].Name)
	// Remaining slots come from the catalog.
	for _, tc := range cases[1:] {
		assert.NotEqual(t, "drafted case", tc.Name)
	}
}

func TestGenerateCandidates_SanitizesDrafts(t *testing.T) {
	gen := &fakeGenerator{drafts: []types.TestCase{
		{Name: "", Steps: []string{"x"}},                                  // dropped: no name
		{Name: "no steps"},                                                // dropped: no steps
		{Name: "loose labels", Category: "weird", Priority: "URGENT", Steps: []string{"Click the Start button"}},
	}}
	p := New(gen, nil, nil, "http://target", 1, nil)

	cases, err := p.GenerateCandidates(context.Background())
	require.NoError(t, err)
	require.Len(t, cases, 1)

	tc := cases[0]
	assert.Equal(t, "loose labels", tc.Name)
	assert.Equal(t, types.CategoryFunctionality, tc.Category)
	assert.Equal(t, types.PriorityMedium, tc.Priority)
	assert.Positive(t, tc.EstimatedDuration)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `[{"name":"a"}]`, stripCodeFence("```json\n[{\"name\":\"a\"}]\n```"))
	assert.Equal(t, `[{"name":"a"}]`, stripCodeFence(`[{"name":"a"}]`))
}
