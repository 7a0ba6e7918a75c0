package rewriter

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chatrag/backend-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubModel 固定返回的改写模型
type stubModel struct {
	output string
	err    error
	calls  int
}

func (m *stubModel) Complete(ctx context.Context, system, user string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	return m.output, nil
}

func sampleHistory() []models.HistoryTurn {
	return []models.HistoryTurn{
		{Role: "user", Content: "I uploaded auth.py yesterday"},
		{Role: "assistant", Content: "The login flow in auth.py concatenates SQL directly, which allows SQL injection."},
	}
}

func TestRewriteSkipsShortAndLongQueries(t *testing.T) {
	model := &stubModel{output: "should not be called"}
	r := NewRewriter(model)

	// 短于5字符：寒暄类
	assert.Equal(t, "hi", r.Rewrite(context.Background(), "hi", sampleHistory(), nil, "t1"))

	// 长于500字符：已经足够具体
	long := strings.Repeat("a", 501)
	assert.Equal(t, long, r.Rewrite(context.Background(), long, sampleHistory(), nil, "t1"))

	assert.Equal(t, 0, model.calls)
}

func TestRewriteSkipsFilenameWithActionIntent(t *testing.T) {
	model := &stubModel{output: "should not be called"}
	r := NewRewriter(model)

	queries := []string{
		"summarize auth.py for me please",
		"explain what utils/helpers.go does",
		"walk through the logic in main.rs",
	}
	for _, q := range queries {
		assert.Equal(t, q, r.Rewrite(context.Background(), q, sampleHistory(), nil, "t1"), q)
	}
	assert.Equal(t, 0, model.calls)
}

func TestRewriteSkipsSearchFriendlyQueries(t *testing.T) {
	model := &stubModel{output: "should not be called"}
	r := NewRewriter(model)

	queries := []string{
		"how does the retry implementation work",
		"function parseConfig return value",
		"error in token validation",
	}
	for _, q := range queries {
		assert.Equal(t, q, r.Rewrite(context.Background(), q, sampleHistory(), nil, "t1"), q)
	}
	assert.Equal(t, 0, model.calls)
}

func TestRewriteSkipsWithoutUsableHistory(t *testing.T) {
	model := &stubModel{output: "should not be called"}
	r := NewRewriter(model)

	// 系统轮次被丢弃后没有可用历史
	history := []models.HistoryTurn{
		{Role: "system", Content: "You are a helpful assistant."},
	}
	assert.Equal(t, "fix that bug", r.Rewrite(context.Background(), "fix that bug", history, nil, "t1"))
	assert.Equal(t, 0, model.calls)
}

func TestRewriteUsesModelOutput(t *testing.T) {
	model := &stubModel{output: "How is SQL injection prevented in the auth.py login flow"}
	r := NewRewriter(model)

	got := r.Rewrite(context.Background(), "fix that bug", sampleHistory(), []string{"auth.py"}, "t1")
	require.Equal(t, 1, model.calls)

	// 模型输出非确定，只断言保留了技术/文件线索
	hasCue := strings.Contains(got, "SQL injection") || strings.Contains(got, "auth.py")
	assert.True(t, hasCue, "rewritten query should keep a technical or file cue: %q", got)
	assert.NotEqual(t, "fix that bug", got)
}

func TestRewriteFallsBackOnModelError(t *testing.T) {
	model := &stubModel{err: errors.New("rate limited")}
	r := NewRewriter(model)

	got := r.Rewrite(context.Background(), "fix that bug", sampleHistory(), nil, "t1")
	assert.Equal(t, "fix that bug", got)
}

func TestRewriteRejectsEmptyOutput(t *testing.T) {
	model := &stubModel{output: "  \n "}
	r := NewRewriter(model)

	got := r.Rewrite(context.Background(), "fix that bug", sampleHistory(), nil, "t1")
	assert.Equal(t, "fix that bug", got)
}

func TestRewriteRejectsRunawayOutput(t *testing.T) {
	// 上限为 max(150, 4×原长)，原查询12字符 → 150
	model := &stubModel{output: strings.Repeat("x", 151)}
	r := NewRewriter(model)

	got := r.Rewrite(context.Background(), "fix that bug", sampleHistory(), nil, "t1")
	assert.Equal(t, "fix that bug", got)
}

func TestRewriteRejectsIdenticalOutput(t *testing.T) {
	// 大小写不敏感的原样改写被丢弃
	model := &stubModel{output: "Fix That Bug"}
	r := NewRewriter(model)

	got := r.Rewrite(context.Background(), "fix that bug", sampleHistory(), nil, "t1")
	assert.Equal(t, "fix that bug", got)
}

func TestRewriteRejectsWhenFilenameLost(t *testing.T) {
	model := &stubModel{output: "How does the crash happen during login"}
	r := NewRewriter(model)

	original := "debug the crash in auth.py during login"
	got := r.Rewrite(context.Background(), original, sampleHistory(), nil, "t1")
	assert.Equal(t, original, got)
}

func TestRewriteKeepsFilenamePreservingOutput(t *testing.T) {
	model := &stubModel{output: "auth.py login crash stack trace cause"}
	r := NewRewriter(model)

	original := "debug the crash in auth.py during login"
	got := r.Rewrite(context.Background(), original, sampleHistory(), nil, "t1")
	assert.Equal(t, "auth.py login crash stack trace cause", got)
}

func TestCleanModelOutput(t *testing.T) {
	cases := map[string]string{
		"<think>reasoning here</think>final query":  "final query",
		"\"quoted query\"":                          "quoted query",
		"`backticked query`":                        "backticked query",
		"Rewritten query: the actual query":         "the actual query",
		"query: the actual query":                   "the actual query",
		"  padded query  ":                          "padded query",
		"\"rewritten query: wrapped label\"":        "wrapped label",
		"<think>a</think> query: \"nested cleanup\"": "nested cleanup",
	}
	for raw, want := range cases {
		assert.Equal(t, want, cleanModelOutput(raw), "raw=%q", raw)
	}
}

func TestUsableHistoryDropsSystemAndTruncates(t *testing.T) {
	r := NewRewriter(nil, WithHistoryTurns(2))
	history := []models.HistoryTurn{
		{Role: "system", Content: "system prompt"},
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
		{Role: "user", Content: "third"},
	}

	kept := r.usableHistory(history)
	require.Len(t, kept, 2)
	assert.Equal(t, "second", kept[0].Content)
	assert.Equal(t, "third", kept[1].Content)
}

func TestContainsFilename(t *testing.T) {
	assert.True(t, ContainsFilename("look at src/auth.py please"))
	assert.True(t, ContainsFilename("check config.yaml"))
	assert.False(t, ContainsFilename("no file here"))
	// 未知扩展名不算文件名引用
	assert.False(t, ContainsFilename("open archive.zzz"))
}

func TestRewriteUsesCache(t *testing.T) {
	model := &stubModel{output: "cached rewrite about auth tokens"}
	cache := &memoryCache{values: map[string]string{}}
	r := NewRewriter(model, WithCache(cache))

	q := "fix that bug"
	first := r.Rewrite(context.Background(), q, sampleHistory(), nil, "t1")
	second := r.Rewrite(context.Background(), q, sampleHistory(), nil, "t1")

	assert.Equal(t, first, second)
	assert.Equal(t, 1, model.calls, "second call should hit the cache")
}

// memoryCache 测试用内存缓存
type memoryCache struct {
	values map[string]string
}

func (c *memoryCache) Get(ctx context.Context, tenantID, query string) (string, bool) {
	v, ok := c.values[tenantID+"|"+query]
	return v, ok
}

func (c *memoryCache) Set(ctx context.Context, tenantID, query, rewritten string) {
	c.values[tenantID+"|"+query] = rewritten
}
