package services

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"go.uber.org/zap"

	"alfredoptarigan/resume-screener/internal/logger"
)

const (
	MIMETypePDF  = "application/pdf"
	MIMETypeText = "text/plain"
)

type DocumentFormat string

const (
	FormatPDF     DocumentFormat = "pdf"
	FormatDOCX    DocumentFormat = "docx"
	FormatText    DocumentFormat = "text"
	FormatUnknown DocumentFormat = "unknown"
)

// LoadedDocument is file content ready to be uploaded to the evaluator.
type LoadedDocument struct {
	Filename string
	Content  []byte
	MIMEType string
}

type DocumentParserService interface {
	// ValidateExtension accepts .pdf and .docx only.
	ValidateExtension(path string) error
	LoadForUpload(ctx context.Context, path string) (LoadedDocument, error)
	ExtractText(ctx context.Context, path string) (string, error)
	// ExtractPages keeps page boundaries. DOCX and text files come back as a
	// single page.
	ExtractPages(ctx context.Context, path string) (*PagedDocument, error)
}

// PageText is the text of one page. Number is 1-based.
type PageText struct {
	Number int
	Text   string
}

type PagedDocument struct {
	Path string
	// PageCount includes pages whose text could not be read.
	PageCount int
	Pages     []PageText
}

// Render prints every page under a "--- Page N ---" marker.
func (d *PagedDocument) Render() string {
	var b strings.Builder
	for _, page := range d.Pages {
		fmt.Fprintf(&b, "--- Page %d ---\n", page.Number)
		b.WriteString(page.Text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// execCommand runs the external converter used when the docx library
// cannot read a file.
var execCommand = exec.CommandContext

type documentParserService struct {
	fallbackCmd string
	log         *zap.Logger
}

func NewDocumentParserService(log *zap.Logger) DocumentParserService {
	return &documentParserService{
		fallbackCmd: "pandoc",
		log:         logger.OrNop(log),
	}
}

func (p *documentParserService) ValidateExtension(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".pdf", ".docx":
		return nil
	default:
		return &UnsupportedFormatError{Ext: ext}
	}
}

// LoadForUpload returns PDFs as raw bytes and DOCX files as UTF-8 text.
func (p *documentParserService) LoadForUpload(ctx context.Context, path string) (LoadedDocument, error) {
	if err := p.ValidateExtension(path); err != nil {
		return LoadedDocument{}, err
	}

	doc := LoadedDocument{Filename: filepath.Base(path)}

	if strings.ToLower(filepath.Ext(path)) == ".docx" {
		text, err := p.docxToText(ctx, path)
		if err != nil {
			return LoadedDocument{}, err
		}
		doc.Content = []byte(text)
		doc.MIMEType = MIMETypeText
		return doc, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return LoadedDocument{}, fmt.Errorf("failed to read %s: %w", doc.Filename, err)
	}
	doc.Content = content
	doc.MIMEType = MIMETypePDF
	return doc, nil
}

// SniffFormat looks at the leading bytes rather than the extension.
func SniffFormat(head []byte) DocumentFormat {
	switch {
	case bytes.HasPrefix(head, []byte("%PDF-")):
		return FormatPDF
	case bytes.HasPrefix(head, []byte("PK\x03\x04")):
		return FormatDOCX
	case len(head) > 0 && utf8.Valid(head):
		return FormatText
	default:
		return FormatUnknown
	}
}

func (p *documentParserService) ExtractText(ctx context.Context, path string) (string, error) {
	head, err := readHead(path)
	if err != nil {
		return "", err
	}

	switch SniffFormat(head) {
	case FormatPDF:
		return p.pdfToText(path)
	case FormatDOCX:
		return p.docxToText(ctx, path)
	case FormatText:
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}
		return string(content), nil
	default:
		return "", &UnsupportedFormatError{Ext: strings.ToLower(filepath.Ext(path))}
	}
}

// readHead returns up to the first 512 bytes of a file.
func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return head[:n], nil
}

func (p *documentParserService) ExtractPages(ctx context.Context, path string) (*PagedDocument, error) {
	head, err := readHead(path)
	if err != nil {
		return nil, err
	}

	if SniffFormat(head) == FormatPDF {
		pages, total, err := p.readPDFPages(path)
		if err != nil {
			return nil, err
		}
		return &PagedDocument{Path: path, PageCount: total, Pages: pages}, nil
	}

	text, err := p.ExtractText(ctx, path)
	if err != nil {
		return nil, err
	}
	return &PagedDocument{Path: path, PageCount: 1, Pages: []PageText{{Number: 1, Text: text}}}, nil
}

func (p *documentParserService) pdfToText(filePath string) (string, error) {
	pages, _, err := p.readPDFPages(filePath)
	if err != nil {
		return "", err
	}

	var textBuilder strings.Builder
	for _, page := range pages {
		textBuilder.WriteString(page.Text)
		textBuilder.WriteString("\n\n")
	}

	text := textBuilder.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text content found in PDF")
	}

	return text, nil
}

// readPDFPages returns the readable pages and the total page count.
func (p *documentParserService) readPDFPages(filePath string) ([]PageText, int, error) {
	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	totalPage := r.NumPage()
	pages := make([]PageText, 0, totalPage)

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			p.log.Debug("skipping unreadable page", zap.String(logger.FieldFile, filePath), zap.Int("page", pageIndex), zap.Error(err))
			continue
		}

		pages = append(pages, PageText{Number: pageIndex, Text: text})
	}

	return pages, totalPage, nil
}

// docxToText reads the document with the docx library and falls back to
// the external converter if that fails.
func (p *documentParserService) docxToText(ctx context.Context, path string) (string, error) {
	text, err := readDocxText(path)
	if err == nil {
		return text, nil
	}

	p.log.Warn("docx reader failed, trying fallback converter",
		zap.String(logger.FieldFile, filepath.Base(path)),
		zap.String("converter", p.fallbackCmd),
		zap.Error(err),
	)

	out, cmdErr := execCommand(ctx, p.fallbackCmd, "-t", "plain", path).Output()
	if cmdErr != nil {
		return "", fmt.Errorf("failed to convert %s to text: %w (fallback: %v)", filepath.Base(path), err, cmdErr)
	}
	return string(out), nil
}

func readDocxText(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	defer r.Close()

	return documentXMLToText(r.Editable().GetContent())
}

// documentXMLToText keeps the text runs of word/document.xml, one line per paragraph.
func documentXMLToText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))

	var b strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}

	return CleanText(b.String()), nil
}

// CleanText trims every line and drops the empty ones.
func CleanText(text string) string {
	text = strings.TrimSpace(text)

	lines := strings.Split(text, "\n")
	var cleanedLines []string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleanedLines = append(cleanedLines, line)
		}
	}

	return strings.Join(cleanedLines, "\n")
}
