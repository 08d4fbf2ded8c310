package analyzer

import "regexp"

// 非ASCII字符的连续片段（中文、日文、特殊符号等）
var nonASCIIPattern = regexp.MustCompile(`[^\x00-\x7F]+`)

// Normalize 清洗原始提取文本
// 将每一段连续的非ASCII字符替换为单个空格，其余内容原样保留
// 对任意输入都是全函数，空字符串返回空字符串
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	return nonASCIIPattern.ReplaceAllString(text, " ")
}
