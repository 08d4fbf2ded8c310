package analyzer

import (
	"regexp"
	"strings"
)

// Clause 表示一个候选条款文本块
// Index为文档内的顺序编号，从0开始；Heading是切分时剥离的
// 内联小标题（如"Confidentiality:"），没有则为空
type Clause struct {
	Index   int    `json:"index"`             // 块顺序编号
	Heading string `json:"heading,omitempty"` // 剥离的小标题
	Text    string `json:"text"`              // 块文本内容
}

var (
	// 两个及以上连续换行符，作为段落边界
	blankLinePattern = regexp.MustCompile(`\n{2,}`)

	// 行首的内联小标题：形如"Confidentiality:"的短语，或"Section 3.1:"式编号
	headingPattern = regexp.MustCompile(`(?m)^(?:[A-Z][A-Za-z\s]{1,50}:|Section\s+\d+\.?\d*\s*[:\-]?)`)

	// 句子边界：.!?后跟空白
	sentenceBoundaryPattern = regexp.MustCompile(`[.!?]\s+`)
)

// ClauseSegmenter 条款分段器
// 用空行和小标题启发式把规范化文本切成有序的条款块
type ClauseSegmenter struct{}

// NewClauseSegmenter 创建条款分段器
func NewClauseSegmenter() *ClauseSegmenter {
	return &ClauseSegmenter{}
}

// Segment 把文本切分为非空的条款块序列
// 1. 按空行切段，去掉空白段
// 2. 段内按小标题再切分，标题从正文剥离但保留在Heading字段，
//    供分类器识别条款主题
// 3. 若没有切出任何块，则退化为按句子切分
// 空输入返回空序列，块内容不为空白且保持文档顺序
func (s *ClauseSegmenter) Segment(text string) []Clause {
	var clauses []Clause

	appendClause := func(heading, body string) {
		clauses = append(clauses, Clause{
			Index:   len(clauses),
			Heading: heading,
			Text:    body,
		})
	}

	for _, part := range blankLinePattern.Split(text, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		locs := headingPattern.FindAllStringIndex(part, -1)
		if len(locs) == 0 {
			appendClause("", part)
			continue
		}

		// 第一个小标题之前的内容没有标题
		if lead := strings.TrimSpace(part[:locs[0][0]]); lead != "" {
			appendClause("", lead)
		}
		for i, loc := range locs {
			end := len(part)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			heading := strings.TrimSpace(part[loc[0]:loc[1]])
			body := strings.TrimSpace(part[loc[1]:end])
			if body != "" {
				appendClause(heading, body)
			}
		}
	}

	// 没有空行结构时按句子切分兜底
	if len(clauses) == 0 {
		for _, sentence := range SplitSentences(text) {
			sentence = strings.TrimSpace(sentence)
			if sentence != "" {
				appendClause("", sentence)
			}
		}
	}

	return clauses
}

// SplitSentences 按标点边界切分句子
// 在.!?紧跟空白处断开，标点保留在前一句，空白被丢弃
// 没有句子标点时整段文本作为一个句子返回
func SplitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range sentenceBoundaryPattern.FindAllStringIndex(text, -1) {
		// 在标点字符之后断开
		sentences = append(sentences, text[start:loc[0]+1])
		start = loc[1]
	}
	if start < len(text) {
		sentences = append(sentences, text[start:])
	}
	return sentences
}
