package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"shortlink/services/url-service/models"
)

// Dialect captures what differs between the SQL backends.
type Dialect struct {
	Name                  string
	Placeholder           sq.PlaceholderFormat
	IsUniqueViolation     func(error) bool
	IsForeignKeyViolation func(error) bool
}

// SQLStore implements Store on database/sql. Clicks live in their own table,
// ordered by their serial id.
type SQLStore struct {
	db      *sql.DB
	qb      sq.StatementBuilderType
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{
		db:      db,
		qb:      sq.StatementBuilder.PlaceholderFormat(dialect.Placeholder),
		dialect: dialect,
	}
}

var urlColumns = []string{"shortcode", "original_url", "created_at", "expires_at", "is_expired"}

var clickColumns = []string{"shortcode", "clicked_at", "ip", "user_agent", "referrer"}

func (s *SQLStore) Create(ctx context.Context, rec *models.URLRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = s.qb.Insert("urls").
		Columns(urlColumns...).
		Values(rec.Shortcode, rec.OriginalURL, rec.CreatedAt.UTC(), rec.ExpiresAt.UTC(), rec.IsExpired).
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		if s.dialect.IsUniqueViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert url %s: %w", rec.Shortcode, err)
	}

	if len(rec.Clicks) > 0 {
		if err := s.insertClicks(ctx, tx, rec.Shortcode, rec.Clicks); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLStore) FindByShortcode(ctx context.Context, code string) (*models.URLRecord, error) {
	var rec models.URLRecord
	err := s.qb.Select(urlColumns...).
		From("urls").
		Where(sq.Eq{"shortcode": code}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&rec.Shortcode, &rec.OriginalURL, &rec.CreatedAt, &rec.ExpiresAt, &rec.IsExpired)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select url %s: %w", code, err)
	}

	clicks, err := s.selectClicks(ctx, sq.Eq{"shortcode": code})
	if err != nil {
		return nil, err
	}
	rec.Clicks = clicks[code]
	return &rec, nil
}

func (s *SQLStore) ListAll(ctx context.Context) ([]*models.URLRecord, error) {
	rows, err := s.qb.Select(urlColumns...).
		From("urls").
		OrderBy("id").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select urls: %w", err)
	}
	defer rows.Close()

	var out []*models.URLRecord
	for rows.Next() {
		var rec models.URLRecord
		if err := rows.Scan(&rec.Shortcode, &rec.OriginalURL, &rec.CreatedAt, &rec.ExpiresAt, &rec.IsExpired); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	clicks, err := s.selectClicks(ctx, nil)
	if err != nil {
		return nil, err
	}
	for _, rec := range out {
		rec.Clicks = clicks[rec.Shortcode]
	}
	return out, nil
}

func (s *SQLStore) AppendClick(ctx context.Context, code string, click models.ClickEvent) error {
	return s.AppendClicks(ctx, models.Ref{Shortcode: code}, []models.ClickEvent{click})
}

func (s *SQLStore) AppendClicks(ctx context.Context, ref models.Ref, clicks []models.ClickEvent) error {
	if len(clicks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	code := ref.Shortcode
	var head models.URLRecord
	err = s.qb.Select("original_url", "created_at", "expires_at").
		From("urls").
		Where(sq.Eq{"shortcode": code}).
		RunWith(tx).
		QueryRowContext(ctx).
		Scan(&head.OriginalURL, &head.CreatedAt, &head.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("check url %s: %w", code, err)
	}
	if !ref.Matches(&head) {
		return ErrNotFound
	}

	if err := s.insertClicks(ctx, tx, code, clicks); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) MarkExpired(ctx context.Context, code string) error {
	res, err := s.qb.Update("urls").
		Set("is_expired", true).
		Where(sq.Eq{"shortcode": code}).
		RunWith(s.db).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("mark expired %s: %w", code, err)
	}
	return requireAffected(res)
}

func (s *SQLStore) Delete(ctx context.Context, code string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := s.qb.Delete("clicks").Where(sq.Eq{"shortcode": code}).RunWith(tx).ExecContext(ctx); err != nil {
		return fmt.Errorf("delete clicks %s: %w", code, err)
	}

	res, err := s.qb.Delete("urls").Where(sq.Eq{"shortcode": code}).RunWith(tx).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("delete url %s: %w", code, err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	if err := s.qb.Select("COUNT(*)").From("urls").RunWith(s.db).QueryRowContext(ctx).Scan(&t.URLs); err != nil {
		return Totals{}, fmt.Errorf("count urls: %w", err)
	}
	if err := s.qb.Select("COUNT(*)").From("clicks").RunWith(s.db).QueryRowContext(ctx).Scan(&t.Clicks); err != nil {
		return Totals{}, fmt.Errorf("count clicks: %w", err)
	}
	return t, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) insertClicks(ctx context.Context, tx *sql.Tx, code string, clicks []models.ClickEvent) error {
	query := s.qb.Insert("clicks").Columns(clickColumns...)
	for _, c := range clicks {
		query = query.Values(code, c.Timestamp.UTC(), c.IP, c.UserAgent, c.Referrer)
	}

	if _, err := query.RunWith(tx).ExecContext(ctx); err != nil {
		if s.dialect.IsForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("insert clicks %s: %w", code, err)
	}
	return nil
}

// selectClicks groups click rows by shortcode, preserving id order.
func (s *SQLStore) selectClicks(ctx context.Context, where sq.Sqlizer) (map[string][]models.ClickEvent, error) {
	query := s.qb.Select(clickColumns...).From("clicks").OrderBy("id")
	if where != nil {
		query = query.Where(where)
	}

	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("select clicks: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.ClickEvent)
	for rows.Next() {
		var (
			code string
			c    models.ClickEvent
		)
		if err := rows.Scan(&code, &c.Timestamp, &c.IP, &c.UserAgent, &c.Referrer); err != nil {
			return nil, err
		}
		out[code] = append(out[code], c)
	}
	return out, rows.Err()
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
