package catalog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"yobot/internal/model"

	"github.com/parquet-go/parquet-go"
)

// CSV column names written by the embedding job
const (
	columnRendering = "property_string"
	columnEmbedding = "embedding"
)

// Source produces catalog entries from a persisted artifact
type Source interface {
	Load(ctx context.Context) ([]Entry, error)
	Name() string
}

// SourceFunc adapts a function to the Source interface
type SourceFunc struct {
	Label string
	Fn    func(ctx context.Context) ([]Entry, error)
}

// Load calls the wrapped function
func (s SourceFunc) Load(ctx context.Context) ([]Entry, error) { return s.Fn(ctx) }

// Name returns the source label
func (s SourceFunc) Name() string { return s.Label }

// CSVSource reads a CSV with a rendered listing column and an embedding column.
// The embedding is a serialized list such as "[0.1, -0.2, 0.3]".
type CSVSource struct {
	Path string
}

// Name returns the artifact path
func (s CSVSource) Name() string { return "csv:" + s.Path }

// Load parses every row of the CSV file
func (s CSVSource) Load(ctx context.Context) ([]Entry, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog header: %w", err)
	}
	renderCol, embedCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case columnRendering:
			renderCol = i
		case columnEmbedding:
			embedCol = i
		}
	}
	if renderCol < 0 || embedCol < 0 {
		return nil, fmt.Errorf("catalog must have %q and %q columns, got %v", columnRendering, columnEmbedding, header)
	}

	var entries []Entry
	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		rendering := strings.TrimSpace(record[renderCol])
		listing, err := ParseRendering(rendering)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		vec, err := ParseVector(record[embedCol])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		entries = append(entries, Entry{
			Listing:   listing,
			Rendering: rendering,
			Embedding: vec,
		})
	}

	return entries, nil
}

// ParseVector parses a bracketed list of numbers separated by commas or spaces
func ParseVector(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t' || r == '\r'
	})
	if len(parts) == 0 {
		return nil, ErrEmptyEmbedding
	}

	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid embedding value %q at %d: %w", p, i, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

// parquetRow is the columnar layout of a catalog artifact
type parquetRow struct {
	ID           int64     `parquet:"id"`
	Location     string    `parquet:"location"`
	Neighborhood string    `parquet:"neighborhood"`
	Area         string    `parquet:"area"`
	Price        string    `parquet:"price"`
	Fee          string    `parquet:"fee"`
	Bedrooms     *int64    `parquet:"bedrooms,optional"`
	Bathrooms    *int64    `parquet:"bathrooms,optional"`
	ParkingSpots *int64    `parquet:"parking_spots,optional"`
	Description  string    `parquet:"description"`
	URL          string    `parquet:"url"`
	Rendering    string    `parquet:"property_string"`
	Embedding    []float32 `parquet:"embedding,list"`
}

// ParquetSource reads a typed Parquet catalog artifact
type ParquetSource struct {
	Path string
}

// Name returns the artifact path
func (s ParquetSource) Name() string { return "parquet:" + s.Path }

// Load reads all rows of the Parquet file
func (s ParquetSource) Load(ctx context.Context) ([]Entry, error) {
	rows, err := parquet.ReadFile[parquetRow](s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet catalog: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]Entry, len(rows))
	for i, row := range rows {
		entries[i] = Entry{
			Listing: model.Listing{
				ID:           row.ID,
				Location:     row.Location,
				Neighborhood: row.Neighborhood,
				Area:         row.Area,
				Price:        row.Price,
				Fee:          row.Fee,
				Bedrooms:     fromInt64(row.Bedrooms),
				Bathrooms:    fromInt64(row.Bathrooms),
				ParkingSpots: fromInt64(row.ParkingSpots),
				Description:  row.Description,
				URL:          row.URL,
			},
			Rendering: row.Rendering,
			Embedding: row.Embedding,
		}
	}
	return entries, nil
}

// WriteParquet persists entries in the layout ParquetSource reads
func WriteParquet(path string, entries []Entry) error {
	rows := make([]parquetRow, len(entries))
	for i, e := range entries {
		rendering := e.Rendering
		if rendering == "" {
			rendering = Render(e.Listing)
		}
		rows[i] = parquetRow{
			ID:           e.Listing.ID,
			Location:     e.Listing.Location,
			Neighborhood: e.Listing.Neighborhood,
			Area:         e.Listing.Area,
			Price:        e.Listing.Price,
			Fee:          e.Listing.Fee,
			Bedrooms:     toInt64(e.Listing.Bedrooms),
			Bathrooms:    toInt64(e.Listing.Bathrooms),
			ParkingSpots: toInt64(e.Listing.ParkingSpots),
			Description:  e.Listing.Description,
			URL:          e.Listing.URL,
			Rendering:    rendering,
			Embedding:    e.Embedding,
		}
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("failed to write parquet catalog: %w", err)
	}
	return nil
}

func fromInt64(v *int64) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}

func toInt64(v *int) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}
