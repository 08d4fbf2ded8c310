package document

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser Markdown合同解析器
// 先渲染为HTML再剥离标签，比直接正则删标记更稳妥
type MarkdownParser struct{}

// NewMarkdownParser 创建Markdown解析器
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse 解析Markdown文件并提取文本内容
func (p *MarkdownParser) Parse(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open markdown file: %v", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParseReader 从Reader解析Markdown内容
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read markdown content: %v", err)
	}

	mdParser := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := mdParser.Parse(content)

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	htmlContent := markdown.Render(doc, renderer)

	return stripHTML(string(htmlContent)), nil
}

// 块级元素结束处补空行，保留段落结构供分段器使用
var blockEndTag = regexp.MustCompile(`</(?:p|h[1-6]|li|ul|ol|blockquote|pre|table|tr)>`)

// 其余HTML标签整体剥离
var anyTag = regexp.MustCompile(`<[^>]*>`)

// stripHTML 把渲染出的HTML还原为带段落结构的纯文本
func stripHTML(s string) string {
	s = strings.ReplaceAll(s, "<br>", "\n")
	s = strings.ReplaceAll(s, "<br/>", "\n")
	s = strings.ReplaceAll(s, "<br />", "\n")
	s = blockEndTag.ReplaceAllString(s, "\n\n")
	s = anyTag.ReplaceAllString(s, " ")

	// 行内规整空白，同时保留空行作为段落分隔
	var paragraphs []string
	for _, part := range regexp.MustCompile(`\n{2,}`).Split(s, -1) {
		part = strings.Join(strings.Fields(part), " ")
		if part != "" {
			paragraphs = append(paragraphs, part)
		}
	}
	return strings.Join(paragraphs, "\n\n")
}
