package analyzer

import "strings"

// DefaultCategories 返回系统跟踪的15个法律条款类别
// 这是进程级的固定配置，顺序决定合规清单的展示顺序
func DefaultCategories() []string {
	return []string{
		"confidentiality",
		"termination",
		"indemnity",
		"liability",
		"governing law",
		"jurisdiction",
		"payment",
		"intellectual property",
		"warranty",
		"data protection",
		"force majeure",
		"assignment",
		"non-compete",
		"dispute resolution",
		"privacy",
	}
}

// ClauseMatch 类别命中的条款块
type ClauseMatch struct {
	Index int    `json:"index"` // 命中块在分段结果中的编号
	Text  string `json:"text"`  // 命中块原文
}

// FoundClauses 类别名到命中块列表的映射
// 没有命中的类别不会出现在映射里
type FoundClauses map[string][]ClauseMatch

// ClauseClassifier 条款分类器
// 用关键词子串匹配判断条款块属于哪些固定类别
type ClauseClassifier struct {
	categories []string // 固定类别列表
}

// NewClauseClassifier 创建条款分类器
// categories为nil时使用默认的15个类别
func NewClauseClassifier(categories []string) *ClauseClassifier {
	if categories == nil {
		categories = DefaultCategories()
	}
	return &ClauseClassifier{categories: categories}
}

// Categories 返回分类器使用的固定类别列表
func (c *ClauseClassifier) Categories() []string {
	return c.categories
}

// FindClauses 扫描条款块，返回各类别的命中结果
// 匹配对象是块的小标题加正文；匹配规则刻意宽松：类别全名作为子串
// 出现，或类别名中任意一个单词作为子串出现，都算命中（如
// "governing law"可由"governing"或"law"单独触发）。这是已知的
// 启发式误报来源，保留以维持行为兼容
func (c *ClauseClassifier) FindClauses(clauses []Clause) FoundClauses {
	lowered := make([]string, len(clauses))
	for i, clause := range clauses {
		lowered[i] = strings.ToLower(clause.Heading + " " + clause.Text)
	}

	found := make(FoundClauses)
	for _, category := range c.categories {
		words := strings.Fields(category)
		var matches []ClauseMatch
		for i, text := range lowered {
			if matchesCategory(text, category, words) {
				matches = append(matches, ClauseMatch{Index: clauses[i].Index, Text: clauses[i].Text})
			}
		}
		if len(matches) > 0 {
			found[category] = matches
		}
	}
	return found
}

// matchesCategory 判断小写文本是否命中类别
func matchesCategory(text, category string, words []string) bool {
	if strings.Contains(text, category) {
		return true
	}
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}
