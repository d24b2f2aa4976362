package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

type documentRow struct {
	ID        uuid.UUID `db:"id"`
	Document  JSONB     `db:"document"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r documentRow) header() Document {
	return Document{ID: r.ID.String(), CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC()}
}

// PostgresGateway stores one entity type as JSONB documents in one table.
type PostgresGateway[T any, P Record[T]] struct {
	store *Store
	table string
	now   func() time.Time
}

func NewPostgresGateway[T any, P Record[T]](store *Store, collection string) *PostgresGateway[T, P] {
	return &PostgresGateway[T, P]{
		store: store,
		table: collection,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

const sqlInsertDocument = `
INSERT INTO %s (id, document, created_at, updated_at)
VALUES ($1, $2::jsonb, $3, $3)
`

func (g *PostgresGateway[T, P]) Insert(ctx context.Context, entity T) (T, error) {
	var zero T
	body, err := patchFields(entity)
	if err != nil {
		return zero, storeErr("insert into", g.table, err)
	}

	id := uuid.New()
	now := g.now()
	_, err = g.store.db.ExecContext(ctx, fmt.Sprintf(sqlInsertDocument, g.table), id, body, now)
	if err != nil {
		return zero, g.classify("insert into", err)
	}

	*P(&entity).document() = Document{ID: id.String(), CreatedAt: now, UpdatedAt: now}
	return entity, nil
}

const sqlGetDocumentByID = `
SELECT id, document, created_at, updated_at
FROM %s
WHERE id = $1
`

func (g *PostgresGateway[T, P]) FindByID(ctx context.Context, id string) (*T, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}

	var row documentRow
	err = g.store.db.GetContext(ctx, &row, fmt.Sprintf(sqlGetDocumentByID, g.table), uid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr("find in", g.table, err)
	}

	out, err := decodeDocument[T, P](row.Document, row.header())
	if err != nil {
		return nil, storeErr("decode", g.table, err)
	}
	return &out, nil
}

const sqlListDocuments = `
SELECT id, document, created_at, updated_at
FROM %s
ORDER BY created_at
`

func (g *PostgresGateway[T, P]) FindAll(ctx context.Context) ([]T, error) {
	var rows []documentRow
	if err := g.store.db.SelectContext(ctx, &rows, fmt.Sprintf(sqlListDocuments, g.table)); err != nil {
		return nil, storeErr("list", g.table, err)
	}

	out := make([]T, 0, len(rows))
	for _, row := range rows {
		entity, err := decodeDocument[T, P](row.Document, row.header())
		if err != nil {
			return nil, storeErr("decode", g.table, err)
		}
		out = append(out, entity)
	}
	return out, nil
}

const sqlUpdateDocument = `
UPDATE %s
SET document = document || $2::jsonb, updated_at = $3
WHERE id = $1
`

func (g *PostgresGateway[T, P]) UpdateByID(ctx context.Context, id string, entity T) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil
	}

	fields, err := patchFields(entity)
	if err != nil {
		return storeErr("update", g.table, err)
	}

	_, err = g.store.db.ExecContext(ctx, fmt.Sprintf(sqlUpdateDocument, g.table), uid, fields, g.now())
	if err != nil {
		return g.classify("update", err)
	}
	return nil
}

const sqlDeleteDocument = `
DELETE FROM %s
WHERE id = $1
`

func (g *PostgresGateway[T, P]) DeleteByID(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil
	}

	if _, err := g.store.db.ExecContext(ctx, fmt.Sprintf(sqlDeleteDocument, g.table), uid); err != nil {
		return storeErr("delete from", g.table, err)
	}
	return nil
}

func (g *PostgresGateway[T, P]) classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return &ConflictError{Collection: g.table, Err: err}
	}
	return storeErr(op, g.table, err)
}
