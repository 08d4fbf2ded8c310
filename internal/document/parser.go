package document

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Parser 合同文档解析器接口
// 负责把不同格式的合同文件提取为纯文本
type Parser interface {
	// Parse 解析文件，返回文本内容
	Parse(filePath string) (string, error)

	// ParseReader 从Reader解析文档，filename用于判断文档类型
	ParseReader(r io.Reader, filename string) (string, error)
}

// ContentType 文档内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// Word DOCX文档类型
	Word ContentType = "docx"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ErrUnsupportedType 不支持的文档类型
var ErrUnsupportedType = errors.New("unsupported document type")

// ParserFactory 根据文件类型创建对应的解析器
func ParserFactory(filePath string) (Parser, error) {
	switch detectContentType(filePath) {
	case PDF:
		return NewPDFParser(), nil
	case Word:
		return NewDocxParser(), nil
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, ErrUnsupportedType
	}
}

// IsSupportedExt 判断扩展名是否是受支持的合同文件类型
func IsSupportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".docx", ".doc", ".md", ".markdown", ".txt":
		return true
	default:
		return false
	}
}

// detectContentType 根据文件扩展名检测内容类型
func detectContentType(filePath string) ContentType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return PDF
	case ".docx", ".doc":
		return Word
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// DecodeRaw 对无法正常解析的文件做降级处理：
// 按UTF-8尽力解码原始字节，非法序列直接丢弃
// 提取库不可用或解析失败时的兜底，永远不报错
func DecodeRaw(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	var b strings.Builder
	b.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r != utf8.RuneError || size > 1 {
			b.WriteRune(r)
		}
		data = data[size:]
	}
	return b.String()
}
