package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const interestColumns = `id, user_id, scheme_id, scheme_name, interest_level,
	mention_count, mentioned_in_languages, first_mentioned_at, last_mentioned_at`

func scanInterest(row pgx.Row) (SchemeInterest, error) {
	var in SchemeInterest
	err := row.Scan(&in.ID, &in.UserID, &in.SchemeID, &in.SchemeName, &in.InterestLevel,
		&in.MentionCount, &in.MentionedInLanguages, &in.FirstMentionedAt, &in.LastMentionedAt)
	return in, err
}

// UpsertInterest overwrites interest_level with the latest detected value
// (levels are not ratcheted), increments mention_count and unions the
// language set.
func (s *Postgres) UpsertInterest(ctx context.Context, in *SchemeInterest) error {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scheme_interests
			(id, user_id, scheme_id, scheme_name, interest_level, mention_count, mentioned_in_languages)
		VALUES ($1, $2, $3, $4, $5, 1, $6)
		ON CONFLICT (user_id, scheme_id) DO UPDATE SET
			interest_level = excluded.interest_level,
			mention_count = scheme_interests.mention_count + 1,
			mentioned_in_languages = (
				SELECT coalesce(array_agg(DISTINCT l), '{}')
				FROM unnest(scheme_interests.mentioned_in_languages || excluded.mentioned_in_languages) AS l
			),
			last_mentioned_at = now()`,
		in.ID, in.UserID, in.SchemeID, in.SchemeName, in.InterestLevel, in.MentionedInLanguages,
	)
	if err != nil {
		return fmt.Errorf("upsert interest: %w", err)
	}
	return nil
}

func (s *Postgres) ListInterests(ctx context.Context, p Page) ([]SchemeInterest, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM scheme_interests`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count interests: %w", err)
	}

	query := `SELECT ` + interestColumns + ` FROM scheme_interests ORDER BY ` +
		interestSortColumn(p.SortBy) + sortDirection(p.SortDesc) +
		fmt.Sprintf(" LIMIT %d OFFSET %d", p.Size, p.Offset())

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("list interests: %w", err)
	}
	defer rows.Close()

	var interests []SchemeInterest
	for rows.Next() {
		in, err := scanInterest(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan interest: %w", err)
		}
		interests = append(interests, in)
	}
	return interests, total, rows.Err()
}

func (s *Postgres) InterestsByUsers(ctx context.Context, userIDs []uuid.UUID) ([]SchemeInterest, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+interestColumns+` FROM scheme_interests
		WHERE user_id = ANY($1)`,
		userIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("interests by users: %w", err)
	}
	defer rows.Close()

	var interests []SchemeInterest
	for rows.Next() {
		in, err := scanInterest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interest: %w", err)
		}
		interests = append(interests, in)
	}
	return interests, rows.Err()
}

func interestSortColumn(field string) string {
	switch field {
	case "scheme_name", "interest_level", "mention_count", "first_mentioned_at":
		return field
	default:
		return "last_mentioned_at"
	}
}
