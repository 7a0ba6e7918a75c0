package rewriter

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/chatrag/backend-go/internal/logger"
	"github.com/chatrag/backend-go/internal/models"
	"go.uber.org/zap"
)

// 改写门控常量
const (
	minQueryLen = 5   // 短于此视为寒暄类，不改写
	maxQueryLen = 500 // 长于此视为已足够具体，不改写
	// 历史轮次内容截断长度
	historyContentLimit = 300
	// 改写结果长度上限的绝对下限，实际上限为 max(150, 4×原查询长度)
	// 两个历史版本中的常量（150/4x 与 120/3x）取前者，见DESIGN.md
	maxRewriteFloor  = 150
	maxRewriteFactor = 4
)

// knownFileExtensions 识别文件名引用的扩展名集合
var knownFileExtensions = []string{
	"py", "js", "ts", "tsx", "jsx", "go", "java", "c", "cpp", "h", "hpp",
	"rs", "rb", "php", "swift", "kt", "cs", "sql", "sh", "yaml", "yml",
	"json", "xml", "toml", "md", "txt", "csv", "pdf", "docx", "html", "css", "vue",
}

// actionIntentPhrases 动作意图短语，出现时文件名+意图需逐字保留用于精确匹配
var actionIntentPhrases = []string{
	"summarize", "summary", "explain", "what does", "what is in",
	"walk through", "walk me through", "describe", "review", "analyze",
	"总结", "解释", "讲解", "说明", "分析",
}

var (
	// filenamePattern 词状片段 + "." + 已知扩展名
	filenamePattern = regexp.MustCompile(
		`(?i)\b[\w\-./\\]+\.(` + strings.Join(knownFileExtensions, "|") + `)\b`)

	// searchFriendlyPatterns 已经适合检索的技术表述，不需要改写
	searchFriendlyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(implementation|implement(s|ed)?)\b`),
		regexp.MustCompile(`(?i)\b(function|method|class|interface|struct)\s+\w+`),
		regexp.MustCompile(`(?i)\bAPI\b`),
		regexp.MustCompile(`(?i)\berror\s+(in|with|handling)\b`),
		regexp.MustCompile(`(?i)\bhow\s+(to|do|does)\b`),
	}

	// reasoningBlockPattern 模型输出中嵌入的推理标记
	reasoningBlockPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

	// leadingLabelPattern 输出开头的标签，如 "rewritten query:" / "query:"
	leadingLabelPattern = regexp.MustCompile(`(?i)^\s*(rewritten\s+query|query)\s*[:：]\s*`)
)

// ChatModel 改写模型调用契约：单次请求/响应，只返回最终文本
// 流式诊断与本契约无关（见DESIGN.md）
type ChatModel interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Cache 改写结果缓存，miss返回("", false)
type Cache interface {
	Get(ctx context.Context, tenantID, query string) (string, bool)
	Set(ctx context.Context, tenantID, query, rewritten string)
}

// Rewriter 查询改写器
// 永不向调用方返回错误：任何歧义或失败都回退到原查询
type Rewriter struct {
	model        ChatModel
	cache        Cache
	historyTurns int
	maxFilenames int
	logger       *zap.Logger
}

// Option 配置Rewriter
type Option func(*Rewriter)

// WithCache 启用改写结果缓存
func WithCache(cache Cache) Option {
	return func(r *Rewriter) { r.cache = cache }
}

// WithHistoryTurns 设置保留的历史轮数
func WithHistoryTurns(n int) Option {
	return func(r *Rewriter) {
		if n > 0 {
			r.historyTurns = n
		}
	}
}

// WithMaxFilenames 设置提示词中列出的文件名上限
func WithMaxFilenames(n int) Option {
	return func(r *Rewriter) {
		if n > 0 {
			r.maxFilenames = n
		}
	}
}

// NewRewriter 创建查询改写器
func NewRewriter(model ChatModel, opts ...Option) *Rewriter {
	r := &Rewriter{
		model:        model,
		historyTurns: 3,
		maxFilenames: 20,
		logger:       logger.Named("rewriter"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite 产出检索友好的查询
// 门控规则按序评估，命中即返回原查询；改写失败同样返回原查询
func (r *Rewriter) Rewrite(ctx context.Context, query string, history []models.HistoryTurn, filenames []string, tenantID string) string {
	query = strings.TrimSpace(query)

	if reason := r.skipReason(query, history); reason != "" {
		r.logger.Debug("rewrite skipped", zap.String("reason", reason))
		return query
	}

	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, tenantID, query); ok {
			r.logger.Debug("rewrite cache hit")
			return cached
		}
	}

	if r.model == nil {
		return query
	}

	system, user := r.buildPrompt(query, history, filenames)
	raw, err := r.model.Complete(ctx, system, user)
	if err != nil {
		// 模型调用失败一律回退，不向上传播
		r.logger.Warn("rewrite model invocation failed, falling back to original", zap.Error(err))
		return query
	}

	cleaned := cleanModelOutput(raw)
	if reason := rejectReason(query, cleaned); reason != "" {
		r.logger.Debug("rewrite rejected", zap.String("reason", reason))
		return query
	}

	if r.cache != nil {
		r.cache.Set(ctx, tenantID, query, cleaned)
	}

	r.logger.Info("query rewritten",
		zap.Int("original_len", len(query)),
		zap.Int("rewritten_len", len(cleaned)))
	return cleaned
}

// skipReason 门控：返回非空原因表示跳过改写
func (r *Rewriter) skipReason(query string, history []models.HistoryTurn) string {
	runeLen := len([]rune(query))
	if runeLen < minQueryLen || runeLen > maxQueryLen {
		return "length_out_of_range"
	}
	if ContainsFilename(query) && containsActionIntent(query) {
		// 文件名+动作意图必须逐字保留，改写会破坏精确匹配
		return "filename_with_action_intent"
	}
	if isSearchFriendly(query) {
		return "already_search_friendly"
	}
	if len(r.usableHistory(history)) == 0 {
		return "no_usable_history"
	}
	return ""
}

// usableHistory 去掉系统轮次，保留最近N轮
func (r *Rewriter) usableHistory(history []models.HistoryTurn) []models.HistoryTurn {
	var kept []models.HistoryTurn
	for _, turn := range history {
		if turn.Role == "system" {
			continue
		}
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		kept = append(kept, turn)
	}
	if len(kept) > r.historyTurns {
		kept = kept[len(kept)-r.historyTurns:]
	}
	return kept
}

// buildPrompt 构造改写提示词
func (r *Rewriter) buildPrompt(query string, history []models.HistoryTurn, filenames []string) (system, user string) {
	system = "You rewrite chat queries into search-optimized queries over the user's uploaded files. " +
		"Output plain text only: one sentence, 5-25 words, no meta commentary, no reasoning markup. " +
		"Preserve any filenames mentioned in the conversation verbatim."

	var b strings.Builder
	usable := r.usableHistory(history)
	if len(usable) > 0 {
		b.WriteString("Conversation history:\n")
		for _, turn := range usable {
			content := stripReasoningMarkup(turn.Content)
			if runes := []rune(content); len(runes) > historyContentLimit {
				content = string(runes[:historyContentLimit])
			}
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, content)
		}
		b.WriteString("\n")
	}

	if len(filenames) > 0 {
		if len(filenames) > r.maxFilenames {
			filenames = filenames[:r.maxFilenames]
		}
		b.WriteString("Known files: ")
		b.WriteString(strings.Join(filenames, ", "))
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Current query: %s\n", query)
	b.WriteString("Rewrite the current query into one search-optimized sentence.")
	return system, b.String()
}

// cleanModelOutput 清洗模型原始输出
// 依次去掉推理标记块、包裹引号/反引号、开头标签
// 标签可能在包裹引号内也可能在外，标签剥离后再剥一次引号
func cleanModelOutput(raw string) string {
	out := reasoningBlockPattern.ReplaceAllString(raw, "")
	out = strings.TrimSpace(out)
	out = strings.Trim(out, "\"'`")
	out = leadingLabelPattern.ReplaceAllString(out, "")
	out = strings.Trim(out, "\"'`")
	return strings.TrimSpace(out)
}

// rejectReason 验收检查：返回非空原因表示丢弃改写结果
func rejectReason(original, rewritten string) string {
	if rewritten == "" {
		return "empty_output"
	}
	limit := maxRewriteFloor
	if l := maxRewriteFactor * len([]rune(original)); l > limit {
		limit = l
	}
	if len([]rune(rewritten)) > limit {
		// 防止失控生成
		return "too_long"
	}
	if strings.EqualFold(strings.TrimSpace(original), rewritten) {
		// 原样改写没有意义，丢弃而不是重发
		return "identical_to_original"
	}
	if ContainsFilename(original) && !ContainsFilename(rewritten) {
		// 丢失文件名引用会破坏精确匹配检索，一律拒绝
		return "filename_lost"
	}
	return ""
}

// ContainsFilename 判断文本是否包含文件名引用
func ContainsFilename(text string) bool {
	return filenamePattern.MatchString(text)
}

// containsActionIntent 判断是否包含动作意图短语
func containsActionIntent(query string) bool {
	lower := strings.ToLower(query)
	for _, phrase := range actionIntentPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// isSearchFriendly 判断查询是否已经是检索友好的技术表述
func isSearchFriendly(query string) bool {
	for _, p := range searchFriendlyPatterns {
		if p.MatchString(query) {
			return true
		}
	}
	return false
}

// stripReasoningMarkup 去掉历史内容中嵌入的推理标记
func stripReasoningMarkup(content string) string {
	return strings.TrimSpace(reasoningBlockPattern.ReplaceAllString(content, ""))
}
