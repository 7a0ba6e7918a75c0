package assembler

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/chatrag/backend-go/internal/errors"
	"github.com/chatrag/backend-go/internal/models"
	"github.com/google/uuid"
)

// 上下文单元的固定前导与结尾说明
// 告知消费模型：引用文件、优先entry块、上下文不足时显式说明
const (
	contextPreamble = "The following context was retrieved from the user's uploaded files. " +
		"When answering, cite the relevant file by name. Chunks tagged [entry] are most " +
		"relevant to the question and take priority over [dependency] and [supporting] chunks."

	contextPostamble = "If the retrieved context is insufficient to answer the question, " +
		"state that explicitly instead of guessing."

	blockSeparator = "\n\n---\n\n"
)

// extensionLanguages 扩展名到展示语言标签的固定映射，未知扩展名用text
var extensionLanguages = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".go":    "go",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".swift": "swift",
	".kt":    "kotlin",
	".cs":    "csharp",
	".sql":   "sql",
	".sh":    "bash",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".xml":   "xml",
	".toml":  "toml",
	".html":  "html",
	".css":   "css",
	".vue":   "vue",
	".md":    "markdown",
}

// Assemble 将非空有序分块序列拼接为一个上下文单元
// 前置条件：至少一个分块，否则返回EmptyContext——调用方必须在检索结果为空时跳过拼接
func Assemble(chunks []models.RetrievedChunk) (*models.ContextUnit, error) {
	if len(chunks) == 0 {
		return nil, errors.NewEmptyContextError()
	}

	ordered := sortByRole(chunks)

	blocks := make([]string, 0, len(ordered))
	chunkIDs := make([]string, 0, len(ordered))
	for _, chunk := range ordered {
		blocks = append(blocks, renderBlock(chunk))
		chunkIDs = append(chunkIDs, chunk.ID)
	}

	var b strings.Builder
	b.WriteString(contextPreamble)
	b.WriteString("\n\n")
	b.WriteString(strings.Join(blocks, blockSeparator))
	b.WriteString("\n\n")
	b.WriteString(contextPostamble)

	return &models.ContextUnit{
		ID:        uuid.NewString(),
		TextBody:  b.String(),
		CreatedAt: time.Now(),
		ChunkIDs:  chunkIDs,
		RoleTag:   models.ContextUnitRoleTag,
	}, nil
}

// sortByRole 按角色优先级稳定排序：entry < dependency < supporting
// 同角色保持输入顺序（索引服务已按相似度预排序）
func sortByRole(chunks []models.RetrievedChunk) []models.RetrievedChunk {
	ordered := make([]models.RetrievedChunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Role.RolePriority() < ordered[j].Role.RolePriority()
	})
	return ordered
}

// renderBlock 渲染单个分块：文件名、整数百分比相似度、角色、可选页码、原文
func renderBlock(chunk models.RetrievedChunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s (similarity: %d%%, %s)",
		chunk.Role, chunk.Filename, similarityPercent(chunk.Similarity), languageTag(chunk.Filename))
	if chunk.PageNumber != nil {
		fmt.Fprintf(&b, " (page %d)", *chunk.PageNumber)
	}
	b.WriteString("\n")
	b.WriteString(chunk.Text)
	return b.String()
}

// similarityPercent 相似度转整数百分比，限制在[0,100]
func similarityPercent(similarity float64) int {
	p := int(math.Round(similarity * 100))
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// languageTag 从文件扩展名解析展示语言标签
func languageTag(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if lang, ok := extensionLanguages[ext]; ok {
		return lang
	}
	return "text"
}
