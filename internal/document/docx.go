package document

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// DocxParser DOCX合同解析器
// DOCX本质是zip包，正文在word/document.xml里，
// 逐段读取文本节点即可，无需完整的OOXML模型
type DocxParser struct{}

// NewDocxParser 创建DOCX解析器
func NewDocxParser() Parser {
	return &DocxParser{}
}

// Parse 解析DOCX文件并提取文本内容
func (p *DocxParser) Parse(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open docx file: %v", err)
	}
	defer file.Close()

	return p.ParseReader(file, filePath)
}

// ParseReader 从Reader解析DOCX内容
func (p *DocxParser) ParseReader(r io.Reader, filename string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read docx content: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx archive: %v", err)
	}

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("failed to open document.xml: %v", err)
		}
		defer rc.Close()
		return extractDocxText(rc)
	}

	return "", fmt.Errorf("no document.xml found in docx archive")
}

// extractDocxText 从document.xml流里提取段落文本
// w:t节点携带文本，w:p边界转成空行以保留段落结构
func extractDocxText(r io.Reader) (string, error) {
	decoder := xml.NewDecoder(r)

	var b strings.Builder
	inText := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to decode document.xml: %v", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteString("\n\n")
			case "br", "cr":
				b.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}

	result := strings.TrimSpace(b.String())
	if result == "" {
		return "", fmt.Errorf("no text content found in docx")
	}
	return result, nil
}
