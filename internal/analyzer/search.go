package analyzer

import "strings"

// SearchClauses 在条款块中做大小写不敏感的子串检索
// 返回命中的块，保持文档顺序；空查询返回空结果
func SearchClauses(clauses []Clause, query string) []Clause {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var hits []Clause
	for _, clause := range clauses {
		if strings.Contains(strings.ToLower(clause.Text), query) {
			hits = append(hits, clause)
		}
	}
	return hits
}
