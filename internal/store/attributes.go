package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const attributeColumns = `id, user_id, conversation_id, location, industry,
	business_size, annual_turnover, employee_count, detected_languages,
	original_language_data, extraction_confidence, extraction_method,
	anonymized, anonymized_at, created_at, updated_at`

func scanAttribute(row pgx.Row) (UserAttribute, error) {
	var a UserAttribute
	err := row.Scan(&a.ID, &a.UserID, &a.ConversationID, &a.Location, &a.Industry,
		&a.BusinessSize, &a.AnnualTurnover, &a.EmployeeCount, &a.DetectedLanguages,
		&a.OriginalLanguageData, &a.ExtractionConfidence, &a.ExtractionMethod,
		&a.Anonymized, &a.AnonymizedAt, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// UpsertAttribute keeps attributes monotonically improving: the conditional
// DO UPDATE only fires when the incoming confidence is strictly greater.
func (s *Postgres) UpsertAttribute(ctx context.Context, attr *UserAttribute) (bool, error) {
	if attr.ID == uuid.Nil {
		attr.ID = uuid.New()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO user_attributes
			(id, user_id, conversation_id, location, industry, business_size,
			 annual_turnover, employee_count, detected_languages,
			 original_language_data, extraction_confidence, extraction_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, conversation_id) DO UPDATE SET
			location = excluded.location,
			industry = excluded.industry,
			business_size = excluded.business_size,
			annual_turnover = excluded.annual_turnover,
			employee_count = excluded.employee_count,
			detected_languages = excluded.detected_languages,
			original_language_data = excluded.original_language_data,
			extraction_confidence = excluded.extraction_confidence,
			extraction_method = excluded.extraction_method,
			updated_at = now()
		WHERE user_attributes.extraction_confidence < excluded.extraction_confidence`,
		attr.ID, attr.UserID, attr.ConversationID, attr.Location, attr.Industry,
		attr.BusinessSize, attr.AnnualTurnover, attr.EmployeeCount,
		attr.DetectedLanguages, attr.OriginalLanguageData,
		attr.ExtractionConfidence, attr.ExtractionMethod,
	)
	if err != nil {
		return false, fmt.Errorf("upsert attribute: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Postgres) ListAttributes(ctx context.Context, f Filter, p Page) ([]UserAttribute, int, error) {
	where, args := attributeFilter(f)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM user_attributes`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count attributes: %w", err)
	}

	query := `SELECT ` + attributeColumns + ` FROM user_attributes` + where +
		` ORDER BY ` + attributeSortColumn(p.SortBy) + sortDirection(p.SortDesc) +
		fmt.Sprintf(" LIMIT %d OFFSET %d", p.Size, p.Offset())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list attributes: %w", err)
	}
	defer rows.Close()

	var attrs []UserAttribute
	for rows.Next() {
		a, err := scanAttribute(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan attribute: %w", err)
		}
		attrs = append(attrs, a)
	}
	return attrs, total, rows.Err()
}

func (s *Postgres) AttributesInRange(ctx context.Context, f Filter) ([]UserAttribute, error) {
	where, args := attributeFilter(f)
	rows, err := s.pool.Query(ctx, `SELECT `+attributeColumns+` FROM user_attributes`+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("attributes in range: %w", err)
	}
	defer rows.Close()

	var attrs []UserAttribute
	for rows.Next() {
		a, err := scanAttribute(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		attrs = append(attrs, a)
	}
	return attrs, rows.Err()
}

func attributeFilter(f Filter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}
	if f.Location != "" {
		add("location = $%d", f.Location)
	}
	if f.Industry != "" {
		add("industry = $%d", f.Industry)
	}
	if f.BusinessSize != "" {
		add("business_size = $%d", string(f.BusinessSize))
	}
	if len(f.Languages) > 0 {
		add("detected_languages && $%d", f.Languages)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// attributeSortColumn whitelists sortable columns; anything else falls back
// to created_at.
func attributeSortColumn(field string) string {
	switch field {
	case "location", "industry", "business_size", "extraction_confidence", "updated_at":
		return field
	default:
		return "created_at"
	}
}

func sortDirection(desc bool) string {
	if desc {
		return " DESC"
	}
	return " ASC"
}
