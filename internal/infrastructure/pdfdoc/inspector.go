package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/billing-console/internal/application/port"
)

// ErrNotPDF is returned for content without the PDF signature
var ErrNotPDF = errors.New("content is not a PDF document")

var pdfMagic = []byte("%PDF-")

// Inspector opens PDF documents in memory with mupdf
type Inspector struct {
	logger *zap.Logger
}

// NewInspector creates a new PDF inspector
func NewInspector(logger *zap.Logger) *Inspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inspector{logger: logger}
}

// PageCount implements port.PDFInspector
func (i *Inspector) PageCount(data []byte) (int, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic) {
		return 0, ErrNotPDF
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		i.logger.Warn("Failed to open PDF document", zap.Int("size", len(data)), zap.Error(err))
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	i.logger.Debug("PDF document inspected", zap.Int("pages", pages), zap.Int("size", len(data)))
	return pages, nil
}

// Verify interface compliance
var _ port.PDFInspector = (*Inspector)(nil)
