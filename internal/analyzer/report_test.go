package analyzer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReportJSON 测试报告的JSON序列化形状
func TestReportJSON(t *testing.T) {
	found := FoundClauses{
		"liability": {{Index: 0, Text: "no liability accepted"}},
	}
	risks, overall := NewRiskScorer(nil).Analyze(found)
	checklist := BuildChecklist(DefaultCategories(), found)
	report := NewReport("a short summary", found, risks, overall, checklist)

	data, err := json.Marshal(report)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))

	// 导出报告的五个固定字段
	assert.Contains(t, decoded, "summary")
	assert.Contains(t, decoded, "found_clauses")
	assert.Contains(t, decoded, "risk_report")
	assert.Contains(t, decoded, "overall_risk_score")
	assert.Contains(t, decoded, "checklist")

	// 往返后内容一致
	var roundTrip Report
	require.NoError(t, json.Unmarshal(data, &roundTrip))
	assert.Equal(t, report.Summary, roundTrip.Summary)
	assert.Equal(t, report.OverallRiskScore, roundTrip.OverallRiskScore)
	assert.Equal(t, report.FoundClauses, roundTrip.FoundClauses)
	assert.Equal(t, report.RiskReport, roundTrip.RiskReport)
	assert.Len(t, roundTrip.Checklist, 15)
}

// TestNewReportDefaults 测试空输入下报告字段不为nil
func TestNewReportDefaults(t *testing.T) {
	report := NewReport("", nil, nil, 0, nil)
	assert.NotNil(t, report.FoundClauses)
	assert.NotNil(t, report.RiskReport)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"found_clauses":{}`)
	assert.Contains(t, string(data), `"risk_report":{}`)
}

// TestSearchClauses 测试条款检索
func TestSearchClauses(t *testing.T) {
	clauses := []Clause{
		{Index: 0, Text: "Payment is due in thirty days."},
		{Index: 1, Text: "All disputes go to arbitration."},
		{Index: 2, Text: "Late payment accrues interest."},
	}

	t.Run("case insensitive substring", func(t *testing.T) {
		hits := SearchClauses(clauses, "PAYMENT")
		require.Len(t, hits, 2)
		assert.Equal(t, 0, hits[0].Index)
		assert.Equal(t, 2, hits[1].Index)
	})

	t.Run("no hits", func(t *testing.T) {
		assert.Empty(t, SearchClauses(clauses, "warranty"))
	})

	t.Run("blank query", func(t *testing.T) {
		assert.Empty(t, SearchClauses(clauses, "   "))
	})
}
