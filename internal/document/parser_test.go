package document

import (
	"archive/zip"
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
)

func createTempFile(t *testing.T, content, ext string) string {
	tmpFile, err := os.CreateTemp("", "contract-test-*"+ext)
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if _, err := tmpFile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func createTempPDF(t *testing.T, text string) string {
	tmpFile, err := os.CreateTemp("", "contract-test-*.pdf")
	if err != nil {
		t.Fatalf("Failed to create temp PDF file: %v", err)
	}
	defer tmpFile.Close()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, 10, text, "", "", false)
	if err := pdf.Output(tmpFile); err != nil {
		t.Fatalf("Failed to write PDF: %v", err)
	}
	return tmpFile.Name()
}

// createTempDocx 手工构造最小DOCX包：zip里只放word/document.xml
func createTempDocx(t *testing.T, paragraphs []string) string {
	var body strings.Builder
	body.WriteString(`<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		body.WriteString(`<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`)
	}
	body.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("Failed to create zip entry: %v", err)
	}
	if _, err := f.Write([]byte(body.String())); err != nil {
		t.Fatalf("Failed to write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}

	return createTempFile(t, buf.String(), ".docx")
}

func TestPlainTextParser(t *testing.T) {
	content := "Payment is due within thirty days.\nLate payment accrues interest."
	file := createTempFile(t, content, ".txt")
	defer os.Remove(file)

	parser := NewPlainTextParser()
	text, err := parser.Parse(file)
	if err != nil {
		t.Fatalf("PlainTextParser.Parse failed: %v", err)
	}
	if !strings.Contains(text, "thirty days") {
		t.Errorf("Expected content not found in parsed text: %s", text)
	}
}

func TestPlainTextParserReader(t *testing.T) {
	parser := NewPlainTextParser()
	text, err := parser.ParseReader(strings.NewReader("contract body"), "contract.txt")
	if err != nil {
		t.Fatalf("PlainTextParser.ParseReader failed: %v", err)
	}
	if text != "contract body" {
		t.Errorf("Unexpected parsed text: %s", text)
	}
}

func TestMarkdownParser(t *testing.T) {
	content := "# Service Agreement\n\nThe **supplier** shall deliver on time.\n\n- Term one\n- Term two"
	file := createTempFile(t, content, ".md")
	defer os.Remove(file)

	parser := NewMarkdownParser()
	text, err := parser.Parse(file)
	if err != nil {
		t.Fatalf("MarkdownParser.Parse failed: %v", err)
	}
	if !strings.Contains(text, "supplier shall deliver") {
		t.Errorf("Expected content not found in parsed text: %s", text)
	}
	if !strings.Contains(text, "Term one") {
		t.Errorf("Expected list item not found in parsed text: %s", text)
	}
	if strings.Contains(text, "<") {
		t.Errorf("HTML tags leaked into parsed text: %s", text)
	}
}

func TestMarkdownParserKeepsParagraphs(t *testing.T) {
	content := "First paragraph here.\n\nSecond paragraph here."
	parser := NewMarkdownParser()
	text, err := parser.ParseReader(strings.NewReader(content), "contract.md")
	if err != nil {
		t.Fatalf("MarkdownParser.ParseReader failed: %v", err)
	}
	if !strings.Contains(text, "\n\n") {
		t.Errorf("Expected paragraph break to survive rendering: %q", text)
	}
}

func TestPDFParser(t *testing.T) {
	content := "This agreement covers liability.\nGoverning law applies."
	file := createTempPDF(t, content)
	defer os.Remove(file)

	parser := NewPDFParser()
	text, err := parser.Parse(file)
	if err != nil {
		t.Fatalf("PDFParser.Parse failed: %v", err)
	}
	if !strings.Contains(text, "liability") {
		t.Errorf("Expected content not found in parsed PDF text: %s", text)
	}
}

func TestDocxParser(t *testing.T) {
	file := createTempDocx(t, []string{
		"Confidentiality: keep all terms secret.",
		"Termination: thirty days notice required.",
	})
	defer os.Remove(file)

	parser := NewDocxParser()
	text, err := parser.Parse(file)
	if err != nil {
		t.Fatalf("DocxParser.Parse failed: %v", err)
	}
	if !strings.Contains(text, "keep all terms secret") {
		t.Errorf("Expected content not found in parsed docx text: %s", text)
	}
	if !strings.Contains(text, "\n\n") {
		t.Errorf("Expected paragraph break between docx paragraphs: %q", text)
	}
}

func TestDocxParserNoDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, _ := zw.Create("word/other.xml")
	f.Write([]byte("<w:document/>"))
	zw.Close()

	parser := NewDocxParser()
	if _, err := parser.ParseReader(bytes.NewReader(buf.Bytes()), "broken.docx"); err == nil {
		t.Error("Expected error for docx without document.xml")
	}
}

func TestParserFactory(t *testing.T) {
	txtFile := createTempFile(t, "plain text contract", ".txt")
	defer os.Remove(txtFile)
	mdFile := createTempFile(t, "# Markdown contract", ".md")
	defer os.Remove(mdFile)
	pdfFile := createTempPDF(t, "PDF contract")
	defer os.Remove(pdfFile)
	docxFile := createTempDocx(t, []string{"Docx contract"})
	defer os.Remove(docxFile)

	tests := []struct {
		file     string
		expected string
	}{
		{txtFile, "plain text contract"},
		{mdFile, "Markdown contract"},
		{pdfFile, "PDF contract"},
		{docxFile, "Docx contract"},
	}

	for _, tt := range tests {
		parser, err := ParserFactory(tt.file)
		if err != nil {
			t.Fatalf("ParserFactory failed for %s: %v", tt.file, err)
		}
		text, err := parser.Parse(tt.file)
		if err != nil {
			t.Fatalf("Parser.Parse failed for %s: %v", tt.file, err)
		}
		if !strings.Contains(text, tt.expected) {
			t.Errorf("Expected '%s' in parsed text, got: %s", tt.expected, text)
		}
	}
}

func TestParserFactoryUnsupported(t *testing.T) {
	if _, err := ParserFactory("contract.xlsx"); err != ErrUnsupportedType {
		t.Errorf("Expected ErrUnsupportedType, got: %v", err)
	}
}

func TestIsSupportedExt(t *testing.T) {
	for _, ext := range []string{".pdf", ".docx", ".doc", ".md", ".markdown", ".txt", ".PDF"} {
		if !IsSupportedExt(ext) {
			t.Errorf("Expected %s to be supported", ext)
		}
	}
	for _, ext := range []string{".xlsx", ".png", ""} {
		if IsSupportedExt(ext) {
			t.Errorf("Expected %s to be unsupported", ext)
		}
	}
}

func TestDecodeRaw(t *testing.T) {
	if got := DecodeRaw([]byte("clean utf-8 text")); got != "clean utf-8 text" {
		t.Errorf("Unexpected decoded text: %s", got)
	}

	// 混入非法字节时丢弃坏序列，保留可解码部分
	raw := append([]byte("good"), 0xff, 0xfe)
	raw = append(raw, []byte("text")...)
	got := DecodeRaw(raw)
	if !strings.Contains(got, "good") || !strings.Contains(got, "text") {
		t.Errorf("Expected valid runes to survive, got: %q", got)
	}
}
