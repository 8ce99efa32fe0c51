package repository

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-desk/internal/logger"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
)

// NewDuckDB opens the embedded single-file backend. The path ":memory:"
// yields a non-durable in-process database, used in tests.
func NewDuckDB(path string, log *logger.Logger) (Repository, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodePersistenceFailed, err, "failed to open duckdb at %s", path)
	}

	// The duckdb driver hands out one connection per in-memory catalog;
	// keep a single connection so all callers see the same database.
	db.SetMaxOpenConns(1)

	return &sqlRepository{
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger: log,
	}, nil
}
