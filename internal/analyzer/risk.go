package analyzer

import (
	"fmt"
	"strings"
)

// RiskTier 风险关键词层级
type RiskTier struct {
	Level    string   // 层级名称：High/Medium/Low
	Weight   int      // 每个命中关键词贡献的分值
	Keywords []string // 触发短语列表
}

// DefaultRiskTiers 返回固定的三级风险关键词配置
// 顺序即评估顺序：高、中、低
func DefaultRiskTiers() []RiskTier {
	return []RiskTier{
		{
			Level:  "High",
			Weight: 3,
			Keywords: []string{
				"no liability", "sole remedy", "exclusive remedy",
				"liquidated damages", "penalty", "irrevocable",
			},
		},
		{
			Level:  "Medium",
			Weight: 2,
			Keywords: []string{
				"indemnify", "third party", "limitations of liability",
				"cap on liability", "breach",
			},
		},
		{
			Level:  "Low",
			Weight: 1,
			Keywords: []string{
				"governing law", "jurisdiction", "notice", "term", "payment",
			},
		},
	}
}

// RiskEntry 单个类别的风险评估结果
type RiskEntry struct {
	Score   int      `json:"score"`   // 类别风险分，命中关键词权重之和
	Reasons []string `json:"reasons"` // 去重后的命中原因
	Text    string   `json:"text"`    // 该类别命中条款的拼接文本
}

// RiskReport 类别名到风险评估结果的映射
type RiskReport map[string]RiskEntry

// RiskScorer 风险评分器
// 对分类器命中的条款文本做分级关键词扫描
type RiskScorer struct {
	tiers []RiskTier // 固定关键词层级配置
}

// NewRiskScorer 创建风险评分器
// tiers为nil时使用默认三级配置
func NewRiskScorer(tiers []RiskTier) *RiskScorer {
	if tiers == nil {
		tiers = DefaultRiskTiers()
	}
	return &RiskScorer{tiers: tiers}
}

// Analyze 对分类结果做风险评估
// 每个类别把命中块的文本用空格拼接后转小写，逐层逐词扫描：
// 关键词作为子串出现一次即计入该层权重，重复出现不累加；
// 原因串按首次出现的顺序去重保留。返回各类别的评估和总分。
// 分类结果中不存在的类别不会出现在风险报告里
func (s *RiskScorer) Analyze(found FoundClauses) (RiskReport, int) {
	report := make(RiskReport)
	overall := 0

	for category, matches := range found {
		texts := make([]string, len(matches))
		for i, m := range matches {
			texts[i] = m.Text
		}
		clauseText := strings.Join(texts, " ")
		loweredText := strings.ToLower(clauseText)

		score := 0
		reasons := []string{}
		seen := make(map[string]bool)

		for _, tier := range s.tiers {
			for _, keyword := range tier.Keywords {
				if !strings.Contains(loweredText, keyword) {
					continue
				}
				score += tier.Weight
				reason := fmt.Sprintf("%s-risk keyword: %q", tier.Level, keyword)
				if !seen[reason] {
					seen[reason] = true
					reasons = append(reasons, reason)
				}
			}
		}

		report[category] = RiskEntry{
			Score:   score,
			Reasons: reasons,
			Text:    clauseText,
		}
		overall += score
	}

	return report, overall
}
