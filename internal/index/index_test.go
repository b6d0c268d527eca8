package index

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	chromem "github.com/philippgille/chromem-go"

	"github.com/campusbot/campusbot/internal/knowledge"
	"github.com/campusbot/campusbot/internal/log"
)

// fakeEmbed returns a deterministic EmbeddingFunc. Contents registered in
// vectors get exact embeddings (for controlled similarity); anything else
// gets a hash-derived unit vector.
func fakeEmbed(vectors map[string][]float32) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}
		return hashVector(text, 8), nil
	}
}

// hashVector generates a normalized vector from content via SHA-256, so the
// same content always embeds identically.
func hashVector(content string, dim int) []float32 {
	hash := sha256.Sum256([]byte(content))
	vec := make([]float32, dim)
	for i := range vec {
		idx := (i * 4) % len(hash)
		bits := binary.LittleEndian.Uint32([]byte{
			hash[idx%32], hash[(idx+1)%32], hash[(idx+2)%32], hash[(idx+3)%32],
		})
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

func chunk(content string) knowledge.Document {
	return knowledge.Document{
		Content:  content,
		Metadata: map[string]string{knowledge.MetaSource: knowledge.SourceTopicMap},
	}
}

var rankedVectors = map[string][]float32{
	"admissions open in june":   {1, 0, 0, 0, 0, 0, 0, 0},
	"the library closes at ten": {0, 1, 0, 0, 0, 0, 0, 0},
	"hostel fees are due july":  {0, 0, 1, 0, 0, 0, 0, 0},
	"when do admissions open":   {0.95, 0.2, 0.1, 0, 0, 0, 0, 0},
}

func TestManager_BuildAndRetrieve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, err := Open(t.TempDir(), "university", fakeEmbed(rankedVectors), log.NewNop())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if m.Ready() {
		t.Error("fresh store should not be ready")
	}

	chunks := []knowledge.Document{
		chunk("admissions open in june"),
		chunk("the library closes at ten"),
		chunk("hostel fees are due july"),
	}
	if err := m.Build(ctx, chunks); err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if !m.Ready() {
		t.Error("built store should be ready")
	}
	if got := m.Count(); got != 3 {
		t.Errorf("Count() = %d, want 3", got)
	}

	r := NewRetriever(m, log.NewNop())
	results, err := r.Retrieve(ctx, "when do admissions open", 3)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Retrieve() returned %d results, want 3", len(results))
	}
	if results[0].Content != "admissions open in june" {
		t.Errorf("top result = %q, want admissions chunk", results[0].Content)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Similarity > results[i-1].Similarity {
			t.Errorf("results not in descending similarity order at %d", i)
		}
	}
	if results[0].Metadata[knowledge.MetaSource] != knowledge.SourceTopicMap {
		t.Errorf("metadata lost: %v", results[0].Metadata)
	}
}

func TestRetrieve_FewerChunksThanK(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, err := Open(t.TempDir(), "small", fakeEmbed(nil), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Build(ctx, []knowledge.Document{chunk("only one chunk")}); err != nil {
		t.Fatal(err)
	}

	results, err := NewRetriever(m, log.NewNop()).Retrieve(ctx, "anything", 3)
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Retrieve(k=3) against 1 chunk returned %d results, want 1", len(results))
	}
	if results[0].Content != "only one chunk" {
		t.Errorf("result = %q", results[0].Content)
	}
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	t.Parallel()

	m, err := Open(t.TempDir(), "empty", fakeEmbed(nil), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	results, err := NewRetriever(m, log.NewNop()).Retrieve(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Retrieve() on empty index must not error, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Retrieve() on empty index = %d results, want 0", len(results))
	}
}

func TestManager_PersistLoadRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "store")

	chunks := []knowledge.Document{
		chunk("admissions open in june"),
		chunk("the library closes at ten"),
		chunk("hostel fees are due july"),
	}

	m1, err := Open(dir, "university", fakeEmbed(rankedVectors), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := m1.Build(ctx, chunks); err != nil {
		t.Fatal(err)
	}
	before, err := NewRetriever(m1, log.NewNop()).Retrieve(ctx, "when do admissions open", 3)
	if err != nil {
		t.Fatal(err)
	}

	// Reopen from disk: same collection, same ranking.
	m2, err := Open(dir, "university", fakeEmbed(rankedVectors), log.NewNop())
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	if !m2.Ready() {
		t.Fatal("reopened store should be ready without a rebuild")
	}
	if m2.Count() != len(chunks) {
		t.Errorf("reopened Count() = %d, want %d", m2.Count(), len(chunks))
	}

	after, err := NewRetriever(m2, log.NewNop()).Retrieve(ctx, "when do admissions open", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != len(after) {
		t.Fatalf("result count changed across reload: %d vs %d", len(before), len(after))
	}
	for i := range before {
		if before[i].Content != after[i].Content {
			t.Errorf("ranking changed at %d: %q vs %q", i, before[i].Content, after[i].Content)
		}
	}
}

func TestManager_UpdateAppends(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m, err := Open(t.TempDir(), "grow", fakeEmbed(rankedVectors), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Build(ctx, []knowledge.Document{chunk("admissions open in june")}); err != nil {
		t.Fatal(err)
	}
	if err := m.Update(ctx, []knowledge.Document{chunk("the library closes at ten")}); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if got := m.Count(); got != 2 {
		t.Errorf("Count() after update = %d, want 2", got)
	}

	// Updating with no chunks is a no-op, not an error.
	if err := m.Update(ctx, nil); err != nil {
		t.Errorf("Update(nil) error: %v", err)
	}
}

func TestManager_BuildFailsWhileAnotherWriterHoldsLock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()

	m, err := Open(dir, "locked", fakeEmbed(nil), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	// Simulate a second process mid-rebuild by holding the store's lock file.
	other := flock.New(filepath.Join(dir, "locked.lock"))
	held, err := other.TryLock()
	if err != nil || !held {
		t.Fatalf("could not take lock externally: held=%v err=%v", held, err)
	}

	if err := m.Build(ctx, []knowledge.Document{chunk("contested")}); err == nil {
		t.Error("Build() should fail while another writer holds the lock")
	}

	if err := other.Unlock(); err != nil {
		t.Fatal(err)
	}
	if err := m.Build(ctx, []knowledge.Document{chunk("contested")}); err != nil {
		t.Fatalf("Build() after lock release: %v", err)
	}
}

func TestManager_BuildEmptyFails(t *testing.T) {
	t.Parallel()

	m, err := Open(t.TempDir(), "none", fakeEmbed(nil), log.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Build(context.Background(), nil); err == nil {
		t.Error("Build() with no chunks should error: nothing to rebuild from")
	}
}
