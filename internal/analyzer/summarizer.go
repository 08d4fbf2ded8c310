package analyzer

import (
	"regexp"
	"sort"
	"strings"
)

// 词元：字母、数字、下划线的连续片段
var wordPattern = regexp.MustCompile(`\w+`)

// DefaultSummarySentences 抽取式摘要的默认句子数
const DefaultSummarySentences = 5

// Summarize 基于词频的抽取式摘要
// 把文本按标点边界切成句子；句子总数不超过numSentences时按原文顺序
// 全部返回。否则对全文做小写分词统计词频，每个句子的得分为其词频之和，
// 取得分最高的numSentences个句子（同分保持原文相对顺序），并按得分
// 顺序拼接——选中句子不还原为文档顺序，这是刻意保留的参考行为
func Summarize(text string, numSentences int) string {
	if numSentences <= 0 {
		numSentences = DefaultSummarySentences
	}

	sentences := SplitSentences(text)
	if len(sentences) <= numSentences {
		return strings.Join(sentences, " ")
	}

	// 全文词频表
	freq := make(map[string]int)
	for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		freq[word]++
	}

	type scoredSentence struct {
		score int
		text  string
	}
	scored := make([]scoredSentence, len(sentences))
	for i, sentence := range sentences {
		score := 0
		for _, word := range wordPattern.FindAllString(strings.ToLower(sentence), -1) {
			score += freq[word]
		}
		scored[i] = scoredSentence{score: score, text: sentence}
	}

	// 稳定排序保证同分句子维持原文相对顺序
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	top := make([]string, numSentences)
	for i := 0; i < numSentences; i++ {
		top[i] = scored[i].text
	}
	return strings.Join(top, " ")
}
