package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

var Postgres = Dialect{
	Name:                  "postgres",
	Placeholder:           sq.Dollar,
	IsUniqueViolation:     pqCode("23505"),
	IsForeignKeyViolation: pqCode("23503"),
}

func pqCode(code pq.ErrorCode) func(error) bool {
	return func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == code
	}
}

// OpenPostgres connects with lib/pq and verifies the connection. Schema
// migrations are applied separately by a Migrator.
func OpenPostgres(ctx context.Context, dsn string, maxOpenConns int) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(5)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return NewSQLStore(db, Postgres), nil
}
