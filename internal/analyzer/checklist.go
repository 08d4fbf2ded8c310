package analyzer

// ChecklistItem 合规清单条目
// Notes目前恒为空，保留字段供人工批注使用
type ChecklistItem struct {
	Item    string `json:"item"`    // 类别名称
	Present bool   `json:"present"` // 该类别是否在文档中检出
	Notes   string `json:"notes"`   // 备注
}

// BuildChecklist 根据分类结果生成合规清单
// 清单覆盖全部固定类别（不只是命中的），顺序与类别列表一致，
// 长度恒等于类别数
func BuildChecklist(categories []string, found FoundClauses) []ChecklistItem {
	checklist := make([]ChecklistItem, 0, len(categories))
	for _, category := range categories {
		matches, ok := found[category]
		checklist = append(checklist, ChecklistItem{
			Item:    category,
			Present: ok && len(matches) > 0,
			Notes:   "",
		})
	}
	return checklist
}
