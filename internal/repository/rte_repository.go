package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adityarao/campus-canteen/internal/model"
)

// RTEListing is the read model returned to customers browsing the
// ready-to-eat shelf.  It joins the unit with its variation, menu item
// and counter so the presentation layer needs no further lookups.
type RTEListing struct {
	ID            uint64          // rte_items.id
	VariationID   uint64          // item_variations.id
	CounterID     uint64          // counters.id
	ItemName      string          // menu_items.name
	VariationName string          // item_variations.name
	CounterName   string          // counters.name
	Price         decimal.Decimal // item_variations.price
	AddedAt       time.Time       // rte_items.added_at
}

// RTERepo provides data access to the rte_items table, the ledger of
// ready-to-eat inventory.  A unit's claim state is derived from the
// unique claimed_rte_item_id columns on cart_items and order_items, so
// every mutation of claim state goes through the claim columns'
// owners; this repository only ever locks, inserts and deletes unit
// rows.  All read-check-write sequences must run inside a transaction
// with the unit row locked via GetForUpdateTx.
type RTERepo struct {
	db *sql.DB
}

// NewRTERepo returns a new RTERepo bound to the provided database.
func NewRTERepo(db *sql.DB) *RTERepo { return &RTERepo{db: db} }

// DB exposes the underlying handle so handlers can begin transactions.
func (r *RTERepo) DB() *sql.DB { return r.db }

// ListAvailable returns all units available to the given viewer: units
// with no order-item claim and either no cart-item claim at all or a
// cart-item claim belonging to the viewer's own cart.  Pass viewer 0
// for unauthenticated callers, who see only wholly unclaimed units.
// This is a filtered read with no side effect.
func (r *RTERepo) ListAvailable(ctx context.Context, viewerUserID uint64) ([]RTEListing, error) {
	const q = `SELECT r.id, r.item_variation_id, r.counter_id,
                      mi.name, iv.name, co.name, iv.price, r.added_at
               FROM rte_items r
               JOIN item_variations iv ON iv.id = r.item_variation_id
               JOIN menu_items mi ON mi.id = iv.menu_item_id
               JOIN counters co ON co.id = r.counter_id
               LEFT JOIN order_items oi ON oi.claimed_rte_item_id = r.id
               LEFT JOIN cart_items ci ON ci.claimed_rte_item_id = r.id
               LEFT JOIN carts ca ON ca.id = ci.cart_id
               WHERE oi.id IS NULL AND (ci.id IS NULL OR ca.user_id = ?)
               ORDER BY r.added_at, r.id`
	rows, err := r.db.QueryContext(ctx, q, viewerUserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	listings := []RTEListing{}
	for rows.Next() {
		var l RTEListing
		if err := rows.Scan(&l.ID, &l.VariationID, &l.CounterID,
			&l.ItemName, &l.VariationName, &l.CounterName, &l.Price, &l.AddedAt); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// GetForUpdateTx loads a unit row and takes an exclusive row lock on it
// for the duration of the transaction.  Competing claim attempts on the
// same unit serialize on this lock, so the subsequent EnsureUnclaimedTx
// check never acts on a stale read.  Returns ErrRTEItemNotFound when the id
// does not resolve.
func (r *RTERepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.RTEItem, error) {
	const q = `SELECT id, item_variation_id, counter_id, quantity, added_at
               FROM rte_items WHERE id = ? FOR UPDATE`
	var it model.RTEItem
	err := tx.QueryRowContext(ctx, q, id).
		Scan(&it.ID, &it.ItemVariationID, &it.CounterID, &it.Quantity, &it.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRTEItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// EnsureUnclaimedTx checks that no cart item or order item currently
// claims the unit, returning ErrAlreadyClaimed when one does.  Must be
// called with the unit row locked.
func (r *RTERepo) EnsureUnclaimedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	const q = `SELECT EXISTS(SELECT 1 FROM cart_items WHERE claimed_rte_item_id = ?)
                   OR EXISTS(SELECT 1 FROM order_items WHERE claimed_rte_item_id = ?)`
	var claimed bool
	if err := tx.QueryRowContext(ctx, q, id, id).Scan(&claimed); err != nil {
		return err
	}
	if claimed {
		return ErrAlreadyClaimed
	}
	return nil
}

// RelistTx inserts count new unclaimed units for the given variation and
// counter, one row per physical unit with quantity fixed at 1.  Used
// when a cooking or cooked order is cancelled and its food returns to
// the shelf.  Passing count 0 has no effect and returns nil.
func (r *RTERepo) RelistTx(ctx context.Context, tx *sql.Tx, variationID, counterID uint64, count uint32) error {
	if count == 0 {
		return nil
	}
	query := `INSERT INTO rte_items (item_variation_id, counter_id, quantity) VALUES `
	args := make([]interface{}, 0, int(count)*3)
	for i := uint32(0); i < count; i++ {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, 1)"
		args = append(args, variationID, counterID)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ReleaseTx deletes a unit from the ledger after it was handed over.
// order_items.claimed_rte_item_id is ON DELETE SET NULL, so the
// completed order keeps its line while the claim disappears.  Releasing
// an already-released unit is a no-op; the boolean reports whether a
// row was actually deleted.
func (r *RTERepo) ReleaseTx(ctx context.Context, tx *sql.Tx, unitID uint64) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM rte_items WHERE id = ?`, unitID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
