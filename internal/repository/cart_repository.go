package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/adityarao/campus-canteen/internal/model"
)

// CartItemView is the read model for the cart page: one line per cart
// item with display names, the unit price and the computed line total.
type CartItemView struct {
	ID            uint64          // cart_items.id
	ItemName      string          // menu_items.name
	VariationName string          // item_variations.name
	Quantity      uint32          // cart_items.quantity
	UnitPrice     decimal.Decimal // item_variations.price
	LineTotal     decimal.Decimal // Quantity * UnitPrice
	Claimed       bool            // true when the line holds an RTE claim
}

// CartRepo provides data access to the carts and cart_items tables.
// Carts are created lazily, exactly one per user.  Claim-holding cart
// items are created only through CreateClaimItemTx inside the ledger's
// claim transaction; AddVariation never touches them.
type CartRepo struct {
	db *sql.DB
}

// NewCartRepo returns a new CartRepo bound to the provided database.
func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{db: db} }

// DB exposes the underlying handle so handlers can begin transactions.
func (r *CartRepo) DB() *sql.DB { return r.db }

// GetOrCreate returns the user's cart, creating it on first use.
func (r *CartRepo) GetOrCreate(ctx context.Context, userID uint64) (*model.Cart, error) {
	return r.getOrCreate(ctx, r.db, userID)
}

// GetOrCreateTx is GetOrCreate within an existing transaction.  Used by
// the claim flow so the cart creation commits or rolls back together
// with the claim itself.
func (r *CartRepo) GetOrCreateTx(ctx context.Context, tx *sql.Tx, userID uint64) (*model.Cart, error) {
	return r.getOrCreate(ctx, tx, userID)
}

// queryer is the subset of *sql.DB and *sql.Tx the lookups need.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (r *CartRepo) getOrCreate(ctx context.Context, q queryer, userID uint64) (*model.Cart, error) {
	var c model.Cart
	err := q.QueryRowContext(ctx,
		`SELECT id, user_id, created_at FROM carts WHERE user_id = ?`, userID).
		Scan(&c.ID, &c.UserID, &c.CreatedAt)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	res, err := q.ExecContext(ctx, `INSERT INTO carts (user_id) VALUES (?)`, userID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	c.ID = uint64(id)
	c.UserID = userID
	return &c, nil
}

// AddVariation adds one unit of a variation to the cart.  A pre-existing
// non-claiming line for the same variation has its quantity incremented;
// otherwise a new line with quantity 1 is inserted.  Claim-holding lines
// are never matched: their quantity is fixed at 1.
func (r *CartRepo) AddVariation(ctx context.Context, cartID, variationID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE cart_items SET quantity = quantity + 1
         WHERE cart_id = ? AND item_variation_id = ? AND claimed_rte_item_id IS NULL`,
		cartID, variationID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO cart_items (cart_id, item_variation_id, quantity) VALUES (?, ?, 1)`,
		cartID, variationID)
	return err
}

// CreateClaimItemTx inserts a quantity-1 cart item carrying an exclusive
// claim on the given ready-to-eat unit.  Must be called inside the claim
// transaction with the unit row locked; the unique index on
// claimed_rte_item_id backs up the lock against duplicate claims.
func (r *CartRepo) CreateClaimItemTx(ctx context.Context, tx *sql.Tx, cartID, variationID, unitID uint64) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO cart_items (cart_id, item_variation_id, quantity, claimed_rte_item_id)
         VALUES (?, ?, 1, ?)`,
		cartID, variationID, unitID)
	return err
}

// Items returns the cart's lines with display names and line totals.
func (r *CartRepo) Items(ctx context.Context, cartID uint64) ([]CartItemView, error) {
	const q = `SELECT ci.id, mi.name, iv.name, ci.quantity, iv.price,
                      ci.claimed_rte_item_id IS NOT NULL
               FROM cart_items ci
               JOIN item_variations iv ON iv.id = ci.item_variation_id
               JOIN menu_items mi ON mi.id = iv.menu_item_id
               WHERE ci.cart_id = ?
               ORDER BY ci.id`
	rows, err := r.db.QueryContext(ctx, q, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CartItemView{}
	for rows.Next() {
		var v CartItemView
		if err := rows.Scan(&v.ID, &v.ItemName, &v.VariationName, &v.Quantity, &v.UnitPrice, &v.Claimed); err != nil {
			return nil, err
		}
		v.LineTotal = v.UnitPrice.Mul(decimal.NewFromInt(int64(v.Quantity)))
		items = append(items, v)
	}
	return items, rows.Err()
}

// DeleteItemByIDAndUser removes a cart item if and only if it belongs to
// the requesting user's cart.  Returns ErrCartItemNotFound otherwise,
// deliberately not distinguishing "no such item" from "someone else's
// item".  If the line held an RTE claim the unit becomes available
// again simply because the claiming row is gone.
func (r *CartRepo) DeleteItemByIDAndUser(ctx context.Context, itemID, userID uint64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE ci FROM cart_items ci
         JOIN carts ca ON ca.id = ci.cart_id
         WHERE ci.id = ? AND ca.user_id = ?`,
		itemID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// ItemsForUpdateTx loads the cart's items under an exclusive row lock.
// Order placement uses this so a concurrent removal or claim cannot
// slip between reading the cart and writing the order.  Returns
// ErrEmptyCart when the cart has no items, including the case where a
// concurrent placement drained it first.
func (r *CartRepo) ItemsForUpdateTx(ctx context.Context, tx *sql.Tx, cartID uint64) ([]model.CartItem, error) {
	const q = `SELECT id, cart_id, item_variation_id, quantity, claimed_rte_item_id
               FROM cart_items WHERE cart_id = ? FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.CartItem
	for rows.Next() {
		var it model.CartItem
		if err := rows.Scan(&it.ID, &it.CartID, &it.ItemVariationID, &it.Quantity, &it.ClaimedRTEItemID); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}
	return items, nil
}

// DeleteAllTx removes every item from the cart.  Called at the end of
// order placement, after the claims have been transferred onto the new
// order items; the RTE unit rows themselves are untouched.
func (r *CartRepo) DeleteAllTx(ctx context.Context, tx *sql.Tx, cartID uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID)
	return err
}
