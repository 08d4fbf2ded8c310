// Package analyzer 实现合同文本的条款分析核心
// 包含文本清洗、条款分段、类别分类、风险评分、抽取式摘要和合规清单，
// 所有组件都是无状态的同步纯函数，数据严格单向流动
package analyzer

// Report 一次合同分析的完整结果
// 构建后不可变，可无损序列化为JSON导出
type Report struct {
	Summary          string          `json:"summary"`            // 摘要文本
	FoundClauses     FoundClauses    `json:"found_clauses"`      // 各类别命中的条款
	RiskReport       RiskReport      `json:"risk_report"`        // 各类别风险评估
	OverallRiskScore int             `json:"overall_risk_score"` // 总风险分
	Checklist        []ChecklistItem `json:"checklist"`          // 合规清单
}

// NewReport 聚合各组件输出为一份报告，不做任何额外计算
func NewReport(summary string, found FoundClauses, risks RiskReport, overallScore int, checklist []ChecklistItem) *Report {
	if found == nil {
		found = make(FoundClauses)
	}
	if risks == nil {
		risks = make(RiskReport)
	}
	return &Report{
		Summary:          summary,
		FoundClauses:     found,
		RiskReport:       risks,
		OverallRiskScore: overallScore,
		Checklist:        checklist,
	}
}
