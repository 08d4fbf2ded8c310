package document

import (
	"fmt"
	"io"
	"os"
)

// PlainTextParser 纯文本合同解析器
type PlainTextParser struct{}

// NewPlainTextParser 创建纯文本解析器
func NewPlainTextParser() Parser {
	return &PlainTextParser{}
}

// Parse 读取纯文本文件内容
func (p *PlainTextParser) Parse(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open text file: %v", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParseReader 从Reader读取纯文本内容
func (p *PlainTextParser) ParseReader(r io.Reader, filename string) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read text content: %v", err)
	}
	return string(content), nil
}
