package repository

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	"github.com/rxtech-lab/argo-desk/internal/logger"
	"github.com/rxtech-lab/argo-desk/pkg/errors"
)

// NewPostgres opens the networked relational backend.
func NewPostgres(url string, log *logger.Logger) (Repository, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodePersistenceFailed, "failed to open postgres connection", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodePersistenceFailed, "failed to reach postgres", err)
	}

	return &sqlRepository{
		db:     db,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
		logger: log,
	}, nil
}
