package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"

	"github.com/cloo-solutions/docqa/internal/domain"
)

const pdfToolName = "pdftotext"

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner executes an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, ErrPDFToolNotFound
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// CheckPDFTool reports whether pdftotext can be found.
func CheckPDFTool() error {
	if _, err := exec.LookPath(pdfToolName); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// PDFInstallInstructions describes how to install the PDF text extractor.
func PDFInstallInstructions() string {
	return "PDF support requires pdftotext (poppler).\n" +
		"  macOS:  brew install poppler\n" +
		"  Debian: apt install poppler-utils"
}

// PDFParser extracts text page by page with pdftotext. Pages are separated
// by form feeds in the tool's output.
type PDFParser struct {
	runner CommandRunner
}

func NewPDFParser(runner CommandRunner) *PDFParser {
	if runner == nil {
		runner = execRunner{}
	}
	return &PDFParser{runner: runner}
}

func (p *PDFParser) Parse(ctx context.Context, r io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	uri := parser.GetCommonOptions(&parser.Options{}, opts...).URI
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-")) {
		return nil, fmt.Errorf("missing PDF header")
	}

	tmp, err := os.CreateTemp("", "docqa-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	out, err := p.runner.Run(ctx, pdfToolName, "-enc", "UTF-8", "-layout", tmp.Name(), "-")
	if err != nil {
		return nil, err
	}

	b := newSectionBuilder(uri)
	for i, page := range strings.Split(string(out), "\f") {
		text := normalizePDFPage(page)
		if text == "" {
			continue
		}
		if i == 0 {
			b.setTitle(pdfTitle(text))
		}
		b.add(nil, domain.SectionParagraph, text, i+1)
	}
	return b.documents(), nil
}

// normalizePDFPage drops layout padding and joins runs of blank lines.
func normalizePDFPage(page string) string {
	var lines []string
	blank := false
	for _, line := range strings.Split(page, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(lines) > 0 {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		blank = false
		lines = append(lines, collapseSpace(line))
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// pdfTitle uses the first short line of the first page.
func pdfTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && len(line) <= 200 {
			return line
		}
	}
	return ""
}
