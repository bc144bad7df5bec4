package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"footballeyeq/internal/domain/plan"
)

// Format constants for export file format.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Version is bumped whenever the exported shape changes.
const Version = "1"

// Domain errors.
var ErrInvalidFormat = errors.New("invalid format: must be 'json' or 'csv'")

// Row is one planned exercise flattened for export.
type Row struct {
	Week     int               `json:"week"`
	Position int               `json:"position"`
	Name     string            `json:"name"`
	Type     plan.ExerciseType `json:"type"`
}

// Metadata contains information about the export itself.
type Metadata struct {
	ExportDate  time.Time `json:"export_date"`
	Format      string    `json:"format"`
	Version     string    `json:"version"`
	RecordCount int       `json:"record_count"`
}

// Document is a season plan prepared for download.
type Document struct {
	Metadata   Metadata `json:"metadata"`
	MaxPerWeek int      `json:"max_per_week"`
	Rows       []Row    `json:"rows"`
}

// NormalizeFormat defaults an empty format to JSON.
// POST: Returns FormatJSON or FormatCSV, or ErrInvalidFormat
func NormalizeFormat(format string) (string, error) {
	switch format {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", ErrInvalidFormat
	}
}

// Rows flattens a plan in week order, then position order.
// Positions are 1-based. Empty weeks contribute no rows.
func Rows(p plan.SeasonPlan) []Row {
	rows := []Row{}
	for _, w := range p.Weeks {
		for i, e := range w.Exercises {
			rows = append(rows, Row{Week: w.Week, Position: i + 1, Name: e.Name, Type: e.Type})
		}
	}
	return rows
}

// NewDocument builds an export of p.
// INVARIANT: p is not mutated
func NewDocument(p plan.SeasonPlan, format string, now time.Time) Document {
	rows := Rows(p)
	return Document{
		Metadata: Metadata{
			ExportDate:  now.UTC(),
			Format:      format,
			Version:     Version,
			RecordCount: len(rows),
		},
		MaxPerWeek: p.MaxPerWeek,
		Rows:       rows,
	}
}

// ToJSON serializes the document as indented JSON.
func (d Document) ToJSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// ToCSV serializes the rows with a header line.
func (d Document) ToCSV() ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write([]string{"week", "position", "name", "type"}); err != nil {
		return nil, err
	}
	for _, r := range d.Rows {
		rec := []string{strconv.Itoa(r.Week), strconv.Itoa(r.Position), r.Name, string(r.Type)}
		if err := cw.Write(rec); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode renders the document in its own format and returns the content type.
func (d Document) Encode() ([]byte, string, error) {
	if d.Metadata.Format == FormatCSV {
		b, err := d.ToCSV()
		return b, "text/csv; charset=utf-8", err
	}
	b, err := d.ToJSON()
	return b, "application/json", err
}
