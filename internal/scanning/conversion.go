package scanning

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// MaxPDFPages bounds how many pages of a PDF are sent for extraction
const MaxPDFPages = 10

// ErrUnsupportedImage is returned when an upload cannot be prepared for extraction
var ErrUnsupportedImage = errors.New("unsupported image")

// Page is one image ready to be sent to a Scanner
type Page struct {
	Data      []byte
	MediaType string
}

// Pages prepares an upload for extraction. PDFs are rendered page by page and
// HEIC/HEIF photos are converted to PNG; everything else passes through as-is.
func Pages(data []byte, contentType string) ([]Page, error) {
	mimeType := normalizeMediaType(contentType)

	switch {
	case isPDF(data, mimeType):
		return pdfPages(data)
	case isHEICFormat(data) || isHEICMimeType(mimeType):
		pngData, err := heicToPNG(data)
		if err != nil {
			return nil, err
		}
		return []Page{{Data: pngData, MediaType: "image/png"}}, nil
	default:
		return []Page{{Data: data, MediaType: mimeType}}, nil
	}
}

func normalizeMediaType(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if mimeType == "" {
		return DefaultMediaType
	}
	return mimeType
}

func isPDF(data []byte, mimeType string) bool {
	return mimeType == "application/pdf" || bytes.HasPrefix(data, []byte("%PDF-"))
}

// pdfPages renders every page of a PDF to PNG
func pdfPages(pdfData []byte) ([]Page, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("%w: opening PDF: %v", ErrUnsupportedImage, err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n <= 0 {
		return nil, fmt.Errorf("%w: PDF has no pages", ErrUnsupportedImage)
	}
	if n > MaxPDFPages {
		return nil, fmt.Errorf("%w: PDF has %d pages, at most %d are supported", ErrUnsupportedImage, n, MaxPDFPages)
	}

	pages := make([]Page, 0, n)
	for i := 0; i < n; i++ {
		img, err := doc.Image(i)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", i+1, err)
		}
		pngData, err := encodePNG(img)
		if err != nil {
			return nil, err
		}
		pages = append(pages, Page{Data: pngData, MediaType: "image/png"})
	}
	return pages, nil
}

func heicToPNG(data []byte) ([]byte, error) {
	img, err := heic.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding HEIC/HEIF image: %v", ErrUnsupportedImage, err)
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEICFormat checks for an ftyp box with a HEIC-related brand
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
