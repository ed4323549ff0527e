package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/metapantry/internal/apperror"
	"github.com/sakif/metapantry/internal/model"
	"github.com/sakif/metapantry/internal/repository"
)

var _ repository.ItemStore = (*DB)(nil)

const itemColumns = `id, owner_id, name, barcode, category, quantity, expiration_date, image_url, source, added_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanItem reads one food_items row. Nullable columns go through sql.Null so
// that NULL comes back as a nil pointer rather than an empty value.
func scanItem(row rowScanner) (model.FoodItem, error) {
	var (
		item     model.FoodItem
		barcode  sql.Null[string]
		category sql.Null[string]
		expires  sql.Null[model.Date]
		imageURL sql.Null[string]
		source   string
	)
	err := row.Scan(
		&item.ID, &item.OwnerID, &item.Name, &barcode, &category,
		&item.Quantity, &expires, &imageURL, &source, &item.AddedAt,
	)
	if err != nil {
		return model.FoodItem{}, err
	}
	item.Barcode = nullPtr(barcode)
	item.Category = nullPtr(category)
	item.ExpirationDate = nullPtr(expires)
	item.ImageURL = nullPtr(imageURL)
	item.Source = model.Source(source)
	item.AddedAt = item.AddedAt.UTC()
	return item, nil
}

func nullPtr[T any](n sql.Null[T]) *T {
	if !n.Valid {
		return nil
	}
	v := n.V
	return &v
}

// Insert writes a new item. Timestamps are truncated to microseconds, the
// resolution Postgres keeps, so a record reads back exactly as written.
func (db *DB) Insert(ctx context.Context, rec *model.FoodItem, ownerID string) error {
	rec.ID = xid.New().String()
	rec.OwnerID = ownerID
	rec.AddedAt = time.Now().UTC().Truncate(time.Microsecond)

	_, err := db.conn.ExecContext(ctx, db.rebind(
		`INSERT INTO food_items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.OwnerID, rec.Name, rec.Barcode, rec.Category,
		rec.Quantity, rec.ExpirationDate, rec.ImageURL, string(rec.Source), rec.AddedAt,
	)
	if err != nil {
		return storageErr("creating food item", err)
	}
	return nil
}

func (db *DB) FindByID(ctx context.Context, id string) (*model.FoodItem, error) {
	row := db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT `+itemColumns+` FROM food_items WHERE id = ?`), id)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("food item", id)
		}
		return nil, storageErr("getting food item", err)
	}
	return &item, nil
}

// FindByOwner translates the filter into a WHERE clause. The same rules are
// implemented in Go by model.ItemFilter.Matches.
func (db *DB) FindByOwner(ctx context.Context, ownerID string, filter model.ItemFilter, opts repository.ListOptions) ([]model.FoodItem, error) {
	where := []string{"owner_id = ?"}
	args := []any{ownerID}

	if filter.Category != nil {
		where = append(where, "category = ?")
		args = append(args, *filter.Category)
	}
	if filter.Barcode != nil {
		where = append(where, "barcode = ?")
		args = append(args, *filter.Barcode)
	}
	if filter.ExpiresFrom != nil {
		where = append(where, "expiration_date >= ?")
		args = append(args, *filter.ExpiresFrom)
	}
	if filter.ExpiresTo != nil {
		where = append(where, "expiration_date <= ?")
		args = append(args, *filter.ExpiresTo)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = math.MaxInt32
	}
	offset := max(opts.Offset, 0)
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, db.rebind(
		`SELECT `+itemColumns+` FROM food_items
		 WHERE `+strings.Join(where, " AND ")+`
		 ORDER BY added_at, id
		 LIMIT ? OFFSET ?`), args...)
	if err != nil {
		return nil, storageErr("listing food items", err)
	}
	defer rows.Close()

	items := make([]model.FoodItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, storageErr("scanning food item row", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating food items", err)
	}
	return items, nil
}

// Save overwrites the mutable columns. owner_id, source and added_at are
// never rewritten.
func (db *DB) Save(ctx context.Context, rec *model.FoodItem) error {
	result, err := db.conn.ExecContext(ctx, db.rebind(
		`UPDATE food_items
		 SET name = ?, barcode = ?, category = ?, quantity = ?, expiration_date = ?, image_url = ?
		 WHERE id = ?`),
		rec.Name, rec.Barcode, rec.Category, rec.Quantity, rec.ExpirationDate, rec.ImageURL,
		rec.ID,
	)
	if err != nil {
		return storageErr("updating food item", err)
	}
	return requireRow(result, "food item", rec.ID)
}

func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, db.rebind(`DELETE FROM food_items WHERE id = ?`), id)
	if err != nil {
		return storageErr("deleting food item", err)
	}
	return requireRow(result, "food item", id)
}

// requireRow turns "0 rows affected" into NotFound.
func requireRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return storageErr("checking rows affected", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
