package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/adityarao/campus-canteen/internal/model"
)

// MenuItemWithVariations is the read model for a counter's menu page:
// each dish with its orderable variations nested.
type MenuItemWithVariations struct {
	Item       model.MenuItem
	Variations []model.ItemVariation
}

// MenuRepo encapsulates database operations for menu_items and
// item_variations.  Reads serve the public menu; writes are vendor-side
// and must be ownership-checked by the caller through CounterRepo.
type MenuRepo struct {
	db *sql.DB
}

// NewMenuRepo constructs a MenuRepo given a DB handle.
func NewMenuRepo(db *sql.DB) *MenuRepo { return &MenuRepo{db: db} }

// ItemsByCounter returns the counter's menu items with their variations.
// Two queries instead of one joined scan keeps the grouping trivial.
func (r *MenuRepo) ItemsByCounter(ctx context.Context, counterID uint64) ([]MenuItemWithVariations, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, counter_id, name, description, price
         FROM menu_items WHERE counter_id = ? ORDER BY name`, counterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []MenuItemWithVariations{}
	index := map[uint64]int{}
	for rows.Next() {
		var mi model.MenuItem
		if err := rows.Scan(&mi.ID, &mi.CounterID, &mi.Name, &mi.Description, &mi.Price); err != nil {
			return nil, err
		}
		index[mi.ID] = len(out)
		out = append(out, MenuItemWithVariations{Item: mi})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	vrows, err := r.db.QueryContext(ctx,
		`SELECT iv.id, iv.menu_item_id, iv.name, iv.price
         FROM item_variations iv
         JOIN menu_items mi ON mi.id = iv.menu_item_id
         WHERE mi.counter_id = ?
         ORDER BY iv.menu_item_id, iv.id`, counterID)
	if err != nil {
		return nil, err
	}
	defer vrows.Close()
	for vrows.Next() {
		var v model.ItemVariation
		if err := vrows.Scan(&v.ID, &v.MenuItemID, &v.Name, &v.Price); err != nil {
			return nil, err
		}
		if i, ok := index[v.MenuItemID]; ok {
			out[i].Variations = append(out[i].Variations, v)
		}
	}
	return out, vrows.Err()
}

// VariationByID fetches one variation.  Returns ErrVariationNotFound
// when the id does not resolve.
func (r *MenuRepo) VariationByID(ctx context.Context, id uint64) (*model.ItemVariation, error) {
	var v model.ItemVariation
	err := r.db.QueryRowContext(ctx,
		`SELECT id, menu_item_id, name, price FROM item_variations WHERE id = ?`, id).
		Scan(&v.ID, &v.MenuItemID, &v.Name, &v.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVariationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// PricesByIDsTx returns a price per variation id within the caller's
// transaction.  Order placement uses this to snapshot prices while the
// cart rows are locked.
func (r *MenuRepo) PricesByIDsTx(ctx context.Context, tx *sql.Tx, ids []uint64) (map[uint64]decimal.Decimal, error) {
	prices := make(map[uint64]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return prices, nil
	}
	query := `SELECT id, price FROM item_variations WHERE id IN (?`
	args := []interface{}{ids[0]}
	for _, id := range ids[1:] {
		query += ",?"
		args = append(args, id)
	}
	query += ")"
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var p decimal.Decimal
		if err := rows.Scan(&id, &p); err != nil {
			return nil, err
		}
		prices[id] = p
	}
	return prices, rows.Err()
}

// CreateItem inserts a menu item and populates its ID.
func (r *MenuRepo) CreateItem(ctx context.Context, mi *model.MenuItem) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO menu_items (counter_id, name, description, price) VALUES (?, ?, ?, ?)`,
		mi.CounterID, mi.Name, mi.Description, mi.Price)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	mi.ID = uint64(id)
	return nil
}

// UpdateItem updates name, description and price of a menu item owned by
// the given vendor.  The ownership join keeps one vendor from editing
// another's menu even with a guessed id.
func (r *MenuRepo) UpdateItem(ctx context.Context, mi *model.MenuItem, vendorID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE menu_items mi
         JOIN counters co ON co.id = mi.counter_id
         SET mi.name = ?, mi.description = ?, mi.price = ?
         WHERE mi.id = ? AND co.vendor_id = ?`,
		mi.Name, mi.Description, mi.Price, mi.ID, vendorID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrForbidden
	}
	return nil
}

// CreateVariation inserts a variation for a menu item owned by the
// vendor.  Returns ErrForbidden when the parent item is not theirs.
func (r *MenuRepo) CreateVariation(ctx context.Context, v *model.ItemVariation, vendorID uint64) error {
	var owned bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(
            SELECT 1 FROM menu_items mi
            JOIN counters co ON co.id = mi.counter_id
            WHERE mi.id = ? AND co.vendor_id = ?)`,
		v.MenuItemID, vendorID).Scan(&owned)
	if err != nil {
		return err
	}
	if !owned {
		return ErrForbidden
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO item_variations (menu_item_id, name, price) VALUES (?, ?, ?)`,
		v.MenuItemID, v.Name, v.Price)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	v.ID = uint64(id)
	return nil
}
