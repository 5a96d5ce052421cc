package testutils

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/markdave123-py/contexta-ingest/internal/core"
	"github.com/markdave123-py/contexta-ingest/internal/models"
)

var _ core.DbClient = (*MemoryStore)(nil)

// MemoryStore is an in-memory DbClient with transactional staging.
type MemoryStore struct {
	mu     sync.Mutex
	docs   map[string]models.Document
	byHash map[string]string
	chunks map[string][]models.DocumentChunk

	// Failure hooks.
	FindErr          error
	InsertChunksErr  error
	CommitErr        error
	BeforeInsertHook func(doc *models.Document) // runs inside InsertDocument before the conflict check

	Calls      int // every DbClient or DocumentTx call
	Begun      int
	Committed  int
	RolledBack int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:   map[string]models.Document{},
		byHash: map[string]string{},
		chunks: map[string][]models.DocumentChunk{},
	}
}

func (s *MemoryStore) touch() {
	s.mu.Lock()
	s.Calls++
	s.mu.Unlock()
}

// Seed commits a document directly.
func (s *MemoryStore) Seed(doc models.Document, chunks ...models.DocumentChunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	s.byHash[doc.ContentHash] = doc.ID
	s.chunks[doc.ID] = append(s.chunks[doc.ID], chunks...)
}

// DocumentCount is the number of committed documents.
func (s *MemoryStore) DocumentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// ChunkCount is the number of committed chunks across documents.
func (s *MemoryStore) ChunkCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.chunks {
		n += len(c)
	}
	return n
}

func (s *MemoryStore) FindDocumentByFingerprint(_ context.Context, fingerprint string) (*models.Document, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FindErr != nil {
		return nil, &core.PersistenceError{Op: "find document by fingerprint", Err: s.FindErr}
	}
	id, ok := s.byHash[fingerprint]
	if !ok {
		return nil, nil
	}
	d := s.docs[id]
	return &d, nil
}

func (s *MemoryStore) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrDocumentNotFound, id)
	}
	return &d, nil
}

func (s *MemoryStore) ListDocuments(_ context.Context, limit, offset int) ([]models.Document, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []models.Document{}, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetChunksByDocument(_ context.Context, documentID string) ([]models.DocumentChunk, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.DocumentChunk{}, s.chunks[documentID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *MemoryStore) SearchDocumentChunks(_ context.Context, documentID string, embedding []float32, limit int) ([]models.DocumentChunk, error) {
	s.touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DocumentChunk
	for _, c := range s.chunks[documentID] {
		if c.Embedding == nil {
			continue
		}
		c.Similarity = cosine(c.Embedding, embedding)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) BeginTx(context.Context) (core.DocumentTx, error) {
	s.touch()
	s.mu.Lock()
	s.Begun++
	s.mu.Unlock()
	return &memoryTx{store: s}, nil
}

type memoryTx struct {
	store  *MemoryStore
	doc    *models.Document
	chunks []models.DocumentChunk
	done   bool
}

func (t *memoryTx) InsertDocument(_ context.Context, doc *models.Document) (string, error) {
	t.store.touch()
	if hook := t.store.BeforeInsertHook; hook != nil {
		hook(doc)
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if _, exists := t.store.byHash[doc.ContentHash]; exists {
		return "", fmt.Errorf("%w: %s", core.ErrDuplicateFingerprint, doc.ContentHash)
	}
	d := *doc
	t.doc = &d
	return doc.ID, nil
}

func (t *memoryTx) InsertChunks(_ context.Context, documentID string, chunks []models.DocumentChunk) error {
	t.store.touch()
	if t.store.InsertChunksErr != nil {
		return &core.PersistenceError{Op: "insert chunks", Err: t.store.InsertChunksErr}
	}
	for _, c := range chunks {
		c.DocumentID = documentID
		t.chunks = append(t.chunks, c)
	}
	return nil
}

func (t *memoryTx) Commit() error {
	t.store.touch()
	if t.store.CommitErr != nil {
		return &core.PersistenceError{Op: "commit", Err: t.store.CommitErr}
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.doc != nil {
		t.store.docs[t.doc.ID] = *t.doc
		t.store.byHash[t.doc.ContentHash] = t.doc.ID
		t.store.chunks[t.doc.ID] = append(t.store.chunks[t.doc.ID], t.chunks...)
	}
	t.store.Committed++
	t.done = true
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return nil
	}
	t.store.touch()
	t.store.mu.Lock()
	t.store.RolledBack++
	t.store.mu.Unlock()
	t.done = true
	t.doc, t.chunks = nil, nil
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range min(len(a), len(b)) {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
