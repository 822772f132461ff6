// Package document turns uploaded PDF bytes into cleaned, de-identified
// text suitable for seeding a conversation session.
//
// Extraction shells out to pdftotext (poppler-utils) rather than linking a
// PDF parser; the binary handles malformed clinical PDFs far better than
// any pure-Go option.
package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/glunkad/caresimplfyservice/internal/domain"
)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// CommandRunner abstracts command execution for testability.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands via os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Preparer extracts and de-identifies text from PDF reports.
type Preparer struct {
	runner CommandRunner
}

// NewPreparer creates a Preparer using the system pdftotext binary.
func NewPreparer() *Preparer {
	return &Preparer{runner: execRunner{}}
}

// NewPreparerWithRunner creates a Preparer with a custom command runner.
func NewPreparerWithRunner(runner CommandRunner) *Preparer {
	return &Preparer{runner: runner}
}

// CheckAvailable reports whether pdftotext is installed.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns help text for installing pdftotext.
func InstallInstructions() string {
	return "pdftotext is required for PDF extraction.\n" +
		"  macOS:  brew install poppler\n" +
		"  Debian: apt install poppler-utils"
}

// Extract converts PDF bytes into cleaned, de-identified text.
// Returns a document error if the PDF is unreadable or yields no text.
func (p *Preparer) Extract(ctx context.Context, pdf []byte) (string, error) {
	if len(pdf) == 0 {
		return "", domain.NewDocument("empty upload", nil)
	}

	tmpDir, err := os.MkdirTemp("", "caresimplify-pdf-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	src := filepath.Join(tmpDir, "report.pdf")
	if err := os.WriteFile(src, pdf, 0o600); err != nil {
		return "", fmt.Errorf("writing temp pdf: %w", err)
	}

	// "-" sends the extracted text to stdout; -layout keeps tabular lab
	// values readable.
	out, err := p.runner.Run(ctx, "pdftotext", "-layout", src, "-")
	if err != nil {
		return "", domain.NewDocument("pdftotext failed", err)
	}

	text := Prettify(Redact(string(out)))
	if strings.TrimSpace(text) == "" {
		return "", domain.NewDocument("no extractable text in pdf", nil)
	}
	return text, nil
}
