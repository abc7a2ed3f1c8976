package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/istqb-chatbot/syllabus-core/internal/core/domain"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driven/mocks"
	"github.com/istqb-chatbot/syllabus-core/internal/core/ports/driving"
	"github.com/istqb-chatbot/syllabus-core/internal/postprocessors"
)

type ingestFixture struct {
	lock     *mocks.MockDistributedLock
	source   *mocks.MockSyllabusSource
	embedder *mocks.MockEmbeddingService
	store    *mocks.MockKnowledgeStore
	queue    *mocks.MockTaskQueue
}

func newIngestFixture() *ingestFixture {
	source := mocks.NewMockSyllabusSource(map[string][]driven.Page{
		"data/foundation.pdf": {
			{Number: 0, Text: "Certified Tester\n\nFoundation Level Syllabus"},
			{Number: 1, Text: "  1.1 What is Testing?   Testing shows the presence of defects.  "},
			{Number: 2, Text: "   "},
		},
		"data/agile.pdf": {
			{Number: 0, Text: "Agile Tester Extension"},
		},
	})
	return &ingestFixture{
		lock:     mocks.NewMockDistributedLock(),
		source:   source,
		embedder: mocks.NewMockEmbeddingService(),
		store:    mocks.NewMockKnowledgeStore(),
		queue:    mocks.NewMockTaskQueue(),
	}
}

func (f *ingestFixture) service(batchSize int) driving.IngestionService {
	return NewIngestionService(IngestionConfig{
		Lock:      f.lock,
		Source:    f.source,
		Extractor: &mocks.MockPageExtractor{Source: f.source},
		Pipeline:  postprocessors.DefaultPipeline(),
		Embedder:  f.embedder,
		Store:     f.store,
		Queue:     f.queue,
		BatchSize: batchSize,
	})
}

func TestIngestionService_Ingest(t *testing.T) {
	f := newIngestFixture()
	learned := &domain.Chunk{ID: "learned-1", Content: "Question: q\nAnswer: a", Metadata: domain.LearnedMetadata()}
	stale := &domain.Chunk{ID: "stale-1", Content: "old page", Metadata: domain.SyllabusMetadata("data/old.pdf", 0)}
	f.store.Put(learned)
	f.store.Put(stale)

	result, err := f.service(2).Ingest(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Documents)
	assert.Equal(t, 4, result.Pages)
	assert.Equal(t, 3, result.Chunks, "blank page yields no chunk")
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, 1, result.Refreshed)

	_, err = f.store.Get(context.Background(), "stale-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.store.Get(context.Background(), "learned-1")
	assert.NoError(t, err, "learned chunks survive ingestion")

	pages := map[string][]int{}
	for _, c := range f.store.All() {
		if c.Metadata.Status() != "" {
			continue
		}
		p, ok := c.Metadata.Page()
		require.True(t, ok)
		pages[c.Metadata.Source()] = append(pages[c.Metadata.Source()], p)
		assert.Len(t, c.Embedding, 8)
		assert.NotContains(t, c.Content, "  ")
	}
	assert.ElementsMatch(t, []int{0, 1}, pages["data/foundation.pdf"])
	assert.ElementsMatch(t, []int{0}, pages["data/agile.pdf"])

	assert.Len(t, learned.Embedding, 8, "learned chunk re-embedded with the current model")
	assert.Equal(t, 2, f.embedder.Calls(), "3 segments and 1 learned chunk in batches of 2")
	assert.Equal(t, 1, f.lock.Acquisitions(IngestLockName))
	assert.Equal(t, 1, f.lock.Releases(IngestLockName))
	assert.False(t, f.lock.IsHeld(IngestLockName))
}

func TestIngestionService_Ingest_LockHeld(t *testing.T) {
	f := newIngestFixture()
	f.lock.SetLockHeld(IngestLockName, time.Minute)

	_, err := f.service(0).Ingest(context.Background())
	assert.ErrorIs(t, err, domain.ErrLockNotAcquired)
	assert.Empty(t, f.store.All())
}

func TestIngestionService_Ingest_EmbeddingFailureKeepsIndex(t *testing.T) {
	f := newIngestFixture()
	f.store.Put(&domain.Chunk{ID: "page-1", Content: "existing", Metadata: domain.SyllabusMetadata("data/foundation.pdf", 0)})
	f.embedder.SetFailNext(true)

	_, err := f.service(0).Ingest(context.Background())
	require.Error(t, err)

	_, err = f.store.Get(context.Background(), "page-1")
	assert.NoError(t, err, "existing syllabus chunks stay when embedding fails")
	assert.False(t, f.lock.IsHeld(IngestLockName))
}

func TestIngestionService_Ingest_StoreFailureKeepsIndex(t *testing.T) {
	f := newIngestFixture()
	f.store.Put(&domain.Chunk{ID: "page-1", Content: "existing", Metadata: domain.SyllabusMetadata("data/foundation.pdf", 0)})
	f.store.Put(&domain.Chunk{ID: "learned-1", Content: "Question: q\nAnswer: a", Metadata: domain.LearnedMetadata()})
	f.store.ReplaceSyllabusFn = func([]*domain.Chunk) error {
		return errors.New("disk full")
	}

	result, err := f.service(2).Ingest(context.Background())
	require.ErrorContains(t, err, "disk full")
	assert.Nil(t, result)

	assert.Len(t, f.store.All(), 2, "previous syllabus and learned chunks are untouched")
	_, err = f.store.Get(context.Background(), "page-1")
	assert.NoError(t, err)
	assert.False(t, f.lock.IsHeld(IngestLockName))
}

func TestIngestionService_Ingest_NoDocuments(t *testing.T) {
	f := newIngestFixture()
	f.source.Docs = map[string][]driven.Page{}

	_, err := f.service(0).Ingest(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestionService_Ingest_SourceErrors(t *testing.T) {
	f := newIngestFixture()
	f.source.ListErr = errors.New("bucket missing")

	_, err := f.service(0).Ingest(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "bucket missing"))

	f = newIngestFixture()
	svc := NewIngestionService(IngestionConfig{
		Lock:      f.lock,
		Source:    f.source,
		Extractor: &mocks.MockPageExtractor{Source: f.source, Err: errors.New("encrypted pdf")},
		Pipeline:  postprocessors.DefaultPipeline(),
		Embedder:  f.embedder,
		Store:     f.store,
	})
	_, err = svc.Ingest(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data/agile.pdf")
}

func TestIngestionService_ScheduleAndStatus(t *testing.T) {
	f := newIngestFixture()
	svc := f.service(0)

	task, err := svc.Schedule(context.Background(), domain.AdminSubject)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTypeIngestSyllabus, task.Type)
	assert.Equal(t, domain.AdminSubject, task.Payload["requested_by"])
	assert.Equal(t, 1, f.queue.Pending())

	got, err := svc.TaskStatus(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)

	_, err = svc.TaskStatus(context.Background(), "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestionService_ScheduleWithoutQueue(t *testing.T) {
	f := newIngestFixture()
	svc := NewIngestionService(IngestionConfig{Lock: f.lock, Source: f.source})

	_, err := svc.Schedule(context.Background(), "admin")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	_, err = svc.TaskStatus(context.Background(), "x")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestIngestionService_IngestWithoutSource(t *testing.T) {
	f := newIngestFixture()
	svc := NewIngestionService(IngestionConfig{Lock: f.lock, Queue: f.queue})

	_, err := svc.Ingest(context.Background())
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Zero(t, f.lock.Acquisitions(IngestLockName))
}
