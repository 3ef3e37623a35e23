package knowledge

import (
	"context"
	"fmt"
	"testing"
)

// mockEngine is a deterministic embedding engine for tests. It hashes words
// into a small fixed-dimension vector so identical texts embed identically.
type mockEngine struct {
	fail bool
}

func (m *mockEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.fail {
		return nil, fmt.Errorf("embedding backend down")
	}
	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r % 13)
	}
	return vec, nil
}

func (m *mockEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (m *mockEngine) Dimensions() int { return 8 }
func (m *mockEngine) Name() string    { return "mock" }

func TestStore_RoundTrip(t *testing.T) {
	store, err := Open(":memory:", &mockEngine{}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	id, err := store.Append(ctx, Record{
		Kind:    KindTestHistory,
		Payload: "Test test_001 passed on puzzle target",
		Context: map[string]string{"target": "https://example.com"},
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if id == "" {
		t.Fatal("Append returned empty id")
	}

	results, err := store.Query(ctx, "Test test_001 passed on puzzle target", KindTestHistory, 1, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].ID != id {
		t.Errorf("Expected id %s, got %s", id, results[0].ID)
	}
	// Identical text must be maximally similar to itself.
	if results[0].Similarity < 0.999 {
		t.Errorf("Expected self-similarity ~1.0, got %f", results[0].Similarity)
	}
}

func TestStore_QueryOrdering(t *testing.T) {
	store, err := Open(":memory:", &mockEngine{}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	payloads := []string{
		"addition puzzle solved correctly",
		"subtraction puzzle timed out",
		"completely unrelated text about weather patterns",
	}
	for _, p := range payloads {
		if _, err := store.Append(ctx, Record{Kind: KindTestHistory, Payload: p}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	results, err := store.Query(ctx, "addition puzzle solved correctly", KindTestHistory, 3, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Expected results")
	}
	if results[0].Payload != payloads[0] {
		t.Errorf("Expected exact match first, got %q", results[0].Payload)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("Results not ordered by descending similarity at index %d", i)
		}
	}
}

func TestStore_MinSimilarityFilter(t *testing.T) {
	store, err := Open(":memory:", &mockEngine{}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Append(ctx, Record{Kind: KindFeedback, Payload: "great coverage of edge cases"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// An impossible threshold filters everything out.
	results, err := store.Query(ctx, "zzzz", KindFeedback, 5, 1.01)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results above threshold, got %d", len(results))
	}
}

func TestStore_UnavailableEngine(t *testing.T) {
	store, err := Open(":memory:", &mockEngine{fail: true}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	// Append still succeeds, just without a vector.
	if _, err := store.Append(ctx, Record{Kind: KindFeedback, Payload: "some feedback"}); err != nil {
		t.Fatalf("Append should succeed without embeddings: %v", err)
	}
	if store.Available() {
		t.Error("Store should report unavailable after embed failure")
	}

	// Queries degrade to empty, never an error.
	results, err := store.Query(ctx, "anything", "", 5, 0)
	if err != nil {
		t.Fatalf("Query should not error when unavailable: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected empty results when unavailable, got %d", len(results))
	}
}

func TestStore_NoEngine(t *testing.T) {
	store, err := Open(":memory:", nil, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if store.Available() {
		t.Error("Store without an engine should report unavailable")
	}

	results, err := store.Query(context.Background(), "anything", "", 5, 0)
	if err != nil {
		t.Fatalf("Query should not error without an engine: %v", err)
	}
	if results != nil {
		t.Errorf("Expected nil results, got %v", results)
	}
}

func TestStore_AppendValidation(t *testing.T) {
	store, err := Open(":memory:", &mockEngine{}, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if _, err := store.Append(ctx, Record{Payload: "no kind"}); err == nil {
		t.Error("Expected error for missing kind")
	}
	if _, err := store.Append(ctx, Record{Kind: KindFeedback}); err == nil {
		t.Error("Expected error for missing payload")
	}
}
