package analytics

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/siddham-jain/msme-mitr-sub000/internal/store"
)

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ExportRow is one attribute record prepared for export. When anonymized,
// identifiers are replaced with stable one-way hashes and the raw
// pre-normalization values are dropped.
type ExportRow struct {
	UserID         string   `json:"user_id"`
	ConversationID string   `json:"conversation_id"`
	Location       string   `json:"location,omitempty"`
	Industry       string   `json:"industry,omitempty"`
	BusinessSize   string   `json:"business_size,omitempty"`
	AnnualTurnover int64    `json:"annual_turnover,omitempty"`
	EmployeeCount  int      `json:"employee_count,omitempty"`
	Languages      []string `json:"languages,omitempty"`
	Confidence     float64  `json:"confidence"`
	Method         string   `json:"method"`
	ExtractedAt    string   `json:"extracted_at"`
}

// Export writes all attributes matching the filter to w in the requested
// format.
func (a *Aggregator) Export(ctx context.Context, w io.Writer, f store.Filter, format ExportFormat, anonymize bool) error {
	attrs, err := a.attributes.AttributesInRange(ctx, f)
	if err != nil {
		return fmt.Errorf("load attributes: %w", err)
	}
	rows := make([]ExportRow, 0, len(attrs))
	for _, attr := range attrs {
		rows = append(rows, exportRow(attr, anonymize))
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case FormatCSV:
		return writeCSV(w, rows)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

func exportRow(attr store.UserAttribute, anonymize bool) ExportRow {
	row := ExportRow{
		UserID:         attr.UserID.String(),
		ConversationID: attr.ConversationID.String(),
		Location:       attr.Location,
		Industry:       attr.Industry,
		BusinessSize:   string(attr.BusinessSize),
		AnnualTurnover: attr.AnnualTurnover,
		EmployeeCount:  attr.EmployeeCount,
		Languages:      attr.DetectedLanguages,
		Confidence:     attr.ExtractionConfidence,
		Method:         attr.ExtractionMethod,
		ExtractedAt:    attr.CreatedAt.UTC().Format(time.RFC3339),
	}
	if anonymize {
		row.UserID = pseudonym(attr.UserID.String())
		row.ConversationID = pseudonym(attr.ConversationID.String())
	}
	return row
}

// pseudonym is a stable one-way token: the same identifier always maps to
// the same value, so anonymized exports still support cohort analysis.
func pseudonym(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:8])
}

var csvHeader = []string{
	"user_id", "conversation_id", "location", "industry", "business_size",
	"annual_turnover", "employee_count", "languages", "confidence", "method",
	"extracted_at",
}

func writeCSV(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.UserID,
			row.ConversationID,
			row.Location,
			row.Industry,
			row.BusinessSize,
			strconv.FormatInt(row.AnnualTurnover, 10),
			strconv.Itoa(row.EmployeeCount),
			strings.Join(row.Languages, ";"),
			strconv.FormatFloat(row.Confidence, 'f', 2, 64),
			row.Method,
			row.ExtractedAt,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
