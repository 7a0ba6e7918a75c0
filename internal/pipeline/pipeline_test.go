package pipeline

import (
	"context"
	"testing"

	"github.com/chatrag/backend-go/internal/errors"
	"github.com/chatrag/backend-go/internal/kafka"
	"github.com/chatrag/backend-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSearcher 固定返回检索结果
type fakeSearcher struct {
	result  *models.SearchResult
	err     error
	lastReq models.SearchRequest
	tenant  string
}

func (s *fakeSearcher) Search(ctx context.Context, req models.SearchRequest, tenantID string) (*models.SearchResult, error) {
	s.lastReq = req
	s.tenant = tenantID
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

// fakeRewriter 固定返回改写结果
type fakeRewriter struct {
	output string
}

func (r *fakeRewriter) Rewrite(ctx context.Context, query string, history []models.HistoryTurn, filenames []string, tenantID string) string {
	if r.output == "" {
		return query
	}
	return r.output
}

// fakeAudit 收集审计事件
type fakeAudit struct {
	events []*kafka.RetrievalAuditEvent
	err    error
}

func (a *fakeAudit) SendAuditEvent(event *kafka.RetrievalAuditEvent) error {
	a.events = append(a.events, event)
	return a.err
}

func sampleChunks() []models.RetrievedChunk {
	return []models.RetrievedChunk{
		{ID: "c1", Filename: "auth.py", Text: "def login():", Similarity: 0.9, Role: models.ChunkRoleEntry},
		{ID: "c2", Filename: "db.py", Text: "def query():", Similarity: 0.7, Role: models.ChunkRoleDependency},
	}
}

func TestRetrieveRequiresTenant(t *testing.T) {
	p := NewPipeline(&fakeSearcher{}, &fakeRewriter{})

	_, err := p.Retrieve(context.Background(), RetrieveRequest{Query: "how does login work"})
	require.Error(t, err)
	assert.True(t, errors.IsUnauthorized(err))
}

func TestRetrieveRequiresQuery(t *testing.T) {
	p := NewPipeline(&fakeSearcher{}, &fakeRewriter{})

	_, err := p.Retrieve(context.Background(), RetrieveRequest{TenantID: "t1", Query: "   "})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.GetAppError(err).Code)
}

func TestRetrieveAssemblesTaggedMessage(t *testing.T) {
	searcher := &fakeSearcher{result: &models.SearchResult{Chunks: sampleChunks(), QueryID: "q1"}}
	p := NewPipeline(searcher, &fakeRewriter{})

	result, err := p.Retrieve(context.Background(), RetrieveRequest{
		TenantID:  "t1",
		MessageID: "m1",
		Query:     "how does login work",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Message)
	require.NotNil(t, result.Unit)

	assert.Equal(t, models.MessageKindRAGContext, result.Message.Kind)
	assert.True(t, result.Message.IsRAGContext())
	assert.Equal(t, []string{"c1", "c2"}, result.Unit.ChunkIDs)
	assert.Equal(t, "q1", result.QueryID)
	assert.Equal(t, "t1", searcher.tenant)
}

func TestRetrieveEmptyResultSkipsAssembly(t *testing.T) {
	searcher := &fakeSearcher{result: &models.SearchResult{Chunks: nil, QueryID: "q2"}}
	p := NewPipeline(searcher, &fakeRewriter{})

	result, err := p.Retrieve(context.Background(), RetrieveRequest{
		TenantID: "t1",
		Query:    "anything about billing",
	})
	require.NoError(t, err)
	assert.Nil(t, result.Message)
	assert.Nil(t, result.Unit)
	assert.Equal(t, "q2", result.QueryID)
}

func TestRetrievePropagatesSearchError(t *testing.T) {
	searcher := &fakeSearcher{err: errors.NewTransportError(500, "index unavailable")}
	p := NewPipeline(searcher, &fakeRewriter{})

	_, err := p.Retrieve(context.Background(), RetrieveRequest{TenantID: "t1", Query: "query"})
	require.Error(t, err)
	assert.True(t, errors.IsTransportError(err))
}

func TestRetrieveSetsRewriteQueryOnlyWhenChanged(t *testing.T) {
	searcher := &fakeSearcher{result: &models.SearchResult{Chunks: sampleChunks()}}
	p := NewPipeline(searcher, &fakeRewriter{output: "login flow implementation details"})

	result, err := p.Retrieve(context.Background(), RetrieveRequest{TenantID: "t1", Query: "fix that bug"})
	require.NoError(t, err)
	assert.Equal(t, "login flow implementation details", result.RewriteQuery)
	assert.Equal(t, "login flow implementation details", searcher.lastReq.RewriteQuery)
	assert.Equal(t, "fix that bug", searcher.lastReq.UserQuery)

	// 改写未改变时不携带RewriteQuery
	p = NewPipeline(searcher, &fakeRewriter{})
	result, err = p.Retrieve(context.Background(), RetrieveRequest{TenantID: "t1", Query: "fix that bug"})
	require.NoError(t, err)
	assert.Empty(t, result.RewriteQuery)
	assert.Empty(t, searcher.lastReq.RewriteQuery)
}

func TestRetrievePublishesAuditEvent(t *testing.T) {
	searcher := &fakeSearcher{result: &models.SearchResult{Chunks: sampleChunks(), QueryID: "q1"}}
	audit := &fakeAudit{}
	p := NewPipeline(searcher, &fakeRewriter{output: "login flow details"}, WithAuditSink(audit))

	_, err := p.Retrieve(context.Background(), RetrieveRequest{
		TenantID:  "t1",
		MessageID: "m1",
		Query:     "fix that bug",
	})
	require.NoError(t, err)

	require.Len(t, audit.events, 1)
	event := audit.events[0]
	assert.Equal(t, "t1", event.TenantID)
	assert.Equal(t, "m1", event.MessageID)
	assert.Equal(t, "fix that bug", event.UserQuery)
	assert.Equal(t, "login flow details", event.RewriteQuery)
	assert.Equal(t, "q1", event.QueryID)
	assert.Equal(t, 2, event.ChunkCount)
}

func TestRetrieveToleratesAuditFailure(t *testing.T) {
	searcher := &fakeSearcher{result: &models.SearchResult{Chunks: sampleChunks()}}
	audit := &fakeAudit{err: errors.NewNetworkError(nil)}
	p := NewPipeline(searcher, &fakeRewriter{}, WithAuditSink(audit))

	result, err := p.Retrieve(context.Background(), RetrieveRequest{TenantID: "t1", Query: "some question"})
	require.NoError(t, err)
	assert.NotNil(t, result.Message)
}
