package pdfsplit

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

// Splitter rasterizes PDF pages so multi-invoice uploads can be fanned
// out into one bill per page. Intake depends on this interface; tests
// substitute a stub.
type Splitter interface {
	PageCount(data []byte) (int, error)
	// RasterizePage renders one zero-based page to JPEG bytes.
	RasterizePage(data []byte, page int) ([]byte, error)
}

// FitzSplitter renders through MuPDF.
type FitzSplitter struct {
	// Quality is the JPEG encode quality, 1..100.
	Quality int
}

func New() *FitzSplitter {
	return &FitzSplitter{Quality: 90}
}

func (s *FitzSplitter) PageCount(data []byte) (int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	return reader.NumPage(), nil
}

func (s *FitzSplitter) RasterizePage(data []byte, page int) ([]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(page)
	if err != nil {
		return nil, fmt.Errorf("rasterize page %d: %w", page+1, err)
	}

	var buf bytes.Buffer
	quality := s.Quality
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", page+1, err)
	}
	return buf.Bytes(), nil
}
