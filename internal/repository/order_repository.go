package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/adityarao/campus-canteen/internal/model"
)

// OrderItemDetail joins an order item with the catalog rows behind it.
// CounterID and the display names serve both the detail views and the
// cancellation re-listing path, which needs to know which counter each
// line's food belongs to.
type OrderItemDetail struct {
	model.OrderItem
	ItemName      string // menu_items.name
	VariationName string // item_variations.name
	CounterID     uint64 // counters.id
	CounterName   string // counters.name
}

const orderColumns = `id, user_id, total_price, status, external_id, pickup_code,
       is_ready_to_eat_purchase, cancellation_reason, cancelled_by,
       created_at, updated_at, preparing_at, ready_at, completed_at, cancelled_at`

// OrderRepo provides data access to the orders and order_items tables.
// Lifecycle mutations (status stamps, cancellation, completion) are Tx
// methods: the handler locks the order row first via GetForUpdateTx so
// concurrent transitions serialize, then applies the status write and
// its RTE side effects inside the same transaction.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the provided database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

// DB exposes the underlying handle so handlers can begin transactions.
func (r *OrderRepo) DB() *sql.DB { return r.db }

// CreateTx inserts the order row and populates its ID.  Status, totals,
// external id and pickup code must already be set by the caller; row
// timestamps default in the database.
func (r *OrderRepo) CreateTx(ctx context.Context, tx *sql.Tx, o *model.Order) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO orders (user_id, total_price, status, external_id, pickup_code, is_ready_to_eat_purchase)
         VALUES (?, ?, ?, ?, ?, ?)`,
		o.UserID, o.TotalPrice, string(o.Status), o.ExternalID, o.PickupCode, o.IsReadyToEatPurchase)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

// CreateItemsTx inserts the order's items in one statement.  The
// claimed_rte_item_id values are the same references the originating
// cart items held; this is the claim transfer, not a copy.
func (r *OrderRepo) CreateItemsTx(ctx context.Context, tx *sql.Tx, orderID uint64, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `INSERT INTO order_items (order_id, item_variation_id, quantity, price_at_order, claimed_rte_item_id) VALUES `
	args := make([]interface{}, 0, len(items)*5)
	for i, it := range items {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?)"
		args = append(args, orderID, it.ItemVariationID, it.Quantity, it.PriceAtOrder, it.ClaimedRTEItemID)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// PickupCodeTakenTx reports whether any order, regardless of status,
// already uses the code.  Codes are unique globally (not just among
// active orders) so a pickup lookup can never be ambiguous.
func (r *OrderRepo) PickupCodeTakenTx(ctx context.Context, tx *sql.Tx, code string) (bool, error) {
	var taken bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE pickup_code = ?)`, code).Scan(&taken)
	return taken, err
}

func scanOrder(row *sql.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.Status, &o.ExternalID, &o.PickupCode,
		&o.IsReadyToEatPurchase, &o.CancellationReason, &o.CancelledBy,
		&o.CreatedAt, &o.UpdatedAt, &o.PreparingAt, &o.ReadyAt, &o.CompletedAt, &o.CancelledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetForUpdateTx loads an order and takes an exclusive row lock on it.
// Every status transition starts here so concurrent transitions on the
// same order re-evaluate state instead of acting on a stale read.
func (r *OrderRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Order, error) {
	return scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ? FOR UPDATE`, id))
}

// GetActiveByPickupCodeForUpdateTx resolves a pickup code to the unique
// order still in an active state and locks it.  A code belonging to a
// completed or cancelled order does not resolve.
func (r *OrderRepo) GetActiveByPickupCodeForUpdateTx(ctx context.Context, tx *sql.Tx, code string) (*model.Order, error) {
	return scanOrder(tx.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders
         WHERE pickup_code = ? AND status IN ('Pending', 'Preparing', 'Ready for Pickup')
         FOR UPDATE`, code))
}

// VendorOwnsAllItemsTx reports whether the order has at least one item
// and every item's counter belongs to the vendor.  Status updates
// require full ownership.
func (r *OrderRepo) VendorOwnsAllItemsTx(ctx context.Context, tx *sql.Tx, orderID, vendorID uint64) (bool, error) {
	const q = `SELECT COUNT(*), COALESCE(SUM(co.vendor_id = ?), 0)
               FROM order_items oi
               JOIN item_variations iv ON iv.id = oi.item_variation_id
               JOIN menu_items mi ON mi.id = iv.menu_item_id
               JOIN counters co ON co.id = mi.counter_id
               WHERE oi.order_id = ?`
	var total, owned int
	if err := tx.QueryRowContext(ctx, q, vendorID, orderID).Scan(&total, &owned); err != nil {
		return false, err
	}
	return total > 0 && owned == total, nil
}

// VendorOwnsAnyItemTx reports whether any of the order's items belongs
// to the vendor.  Pickup verification only requires overlap.
func (r *OrderRepo) VendorOwnsAnyItemTx(ctx context.Context, tx *sql.Tx, orderID, vendorID uint64) (bool, error) {
	const q = `SELECT EXISTS(
                   SELECT 1 FROM order_items oi
                   JOIN item_variations iv ON iv.id = oi.item_variation_id
                   JOIN menu_items mi ON mi.id = iv.menu_item_id
                   JOIN counters co ON co.id = mi.counter_id
                   WHERE oi.order_id = ? AND co.vendor_id = ?)`
	var owns bool
	err := tx.QueryRowContext(ctx, q, orderID, vendorID).Scan(&owns)
	return owns, err
}

const itemDetailQuery = `SELECT oi.id, oi.order_id, oi.item_variation_id, oi.quantity,
                                oi.price_at_order, oi.claimed_rte_item_id,
                                mi.name, iv.name, co.id, co.name
                         FROM order_items oi
                         JOIN item_variations iv ON iv.id = oi.item_variation_id
                         JOIN menu_items mi ON mi.id = iv.menu_item_id
                         JOIN counters co ON co.id = mi.counter_id
                         WHERE oi.order_id = ?
                         ORDER BY oi.id`

func scanItemDetails(rows *sql.Rows) ([]OrderItemDetail, error) {
	defer rows.Close()
	items := []OrderItemDetail{}
	for rows.Next() {
		var d OrderItemDetail
		if err := rows.Scan(&d.ID, &d.OrderID, &d.ItemVariationID, &d.Quantity,
			&d.PriceAtOrder, &d.ClaimedRTEItemID,
			&d.ItemName, &d.VariationName, &d.CounterID, &d.CounterName); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// ItemsDetailTx loads the order's items with catalog context inside the
// caller's transaction.  Cancellation re-listing iterates over this.
func (r *OrderRepo) ItemsDetailTx(ctx context.Context, tx *sql.Tx, orderID uint64) ([]OrderItemDetail, error) {
	rows, err := tx.QueryContext(ctx, itemDetailQuery, orderID)
	if err != nil {
		return nil, err
	}
	return scanItemDetails(rows)
}

// ItemsDetail is ItemsDetailTx outside a transaction, for read views.
func (r *OrderRepo) ItemsDetail(ctx context.Context, orderID uint64) ([]OrderItemDetail, error) {
	rows, err := r.db.QueryContext(ctx, itemDetailQuery, orderID)
	if err != nil {
		return nil, err
	}
	return scanItemDetails(rows)
}

// ClaimedUnitIDsTx returns the RTE unit ids claimed by the order's
// items, in item order.  Completion releases exactly these units.
func (r *OrderRepo) ClaimedUnitIDsTx(ctx context.Context, tx *sql.Tx, orderID uint64) ([]uint64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT claimed_rte_item_id FROM order_items
         WHERE order_id = ? AND claimed_rte_item_id IS NOT NULL
         ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkPreparingTx moves the order to Preparing and stamps preparing_at.
func (r *OrderRepo) MarkPreparingTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, preparing_at = ? WHERE id = ?`,
		string(model.StatusPreparing), at.UTC(), id)
	return err
}

// MarkReadyTx moves the order to Ready for Pickup and stamps ready_at.
func (r *OrderRepo) MarkReadyTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, ready_at = ? WHERE id = ?`,
		string(model.StatusReady), at.UTC(), id)
	return err
}

// MarkCompletedTx moves the order to Completed and stamps completed_at.
// The caller releases the order's claimed RTE units in the same
// transaction; this method writes only the order row.
func (r *OrderRepo) MarkCompletedTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, completed_at = ? WHERE id = ?`,
		string(model.StatusCompleted), at.UTC(), id)
	return err
}

// MarkCancelledTx moves the order to Cancelled recording who cancelled
// and why.  cancelledAt is stamped only on the user-initiated path; the
// vendor path leaves it NULL and the dashboard's daily counts key off
// updated_at instead.
func (r *OrderRepo) MarkCancelledTx(ctx context.Context, tx *sql.Tx, id uint64, reason string, by model.CancelledBy, cancelledAt *time.Time) error {
	var at interface{}
	if cancelledAt != nil {
		at = cancelledAt.UTC()
	}
	_, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, cancellation_reason = ?, cancelled_by = ?, cancelled_at = ? WHERE id = ?`,
		string(model.StatusCancelled), reason, string(by), at, id)
	return err
}

// GetByIDForUser fetches an order owned by the user.  Not distinguishing
// missing from foreign orders keeps ids unguessable.
func (r *OrderRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Order, error) {
	return scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ? AND user_id = ?`, id, userID))
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanOrders(rows)
}

func scanOrders(rows *sql.Rows) ([]model.Order, error) {
	defer rows.Close()
	orders := []model.Order{}
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalPrice, &o.Status, &o.ExternalID, &o.PickupCode,
			&o.IsReadyToEatPurchase, &o.CancellationReason, &o.CancelledBy,
			&o.CreatedAt, &o.UpdatedAt, &o.PreparingAt, &o.ReadyAt, &o.CompletedAt, &o.CancelledAt); err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ActiveByVendor returns the in-flight orders containing at least one
// item from the vendor's counters, oldest first so the kitchen works
// the queue in arrival order.
func (r *OrderRepo) ActiveByVendor(ctx context.Context, vendorID uint64) ([]model.Order, error) {
	const q = `SELECT DISTINCT o.id, o.user_id, o.total_price, o.status, o.external_id, o.pickup_code,
                      o.is_ready_to_eat_purchase, o.cancellation_reason, o.cancelled_by,
                      o.created_at, o.updated_at, o.preparing_at, o.ready_at, o.completed_at, o.cancelled_at
               FROM orders o
               JOIN order_items oi ON oi.order_id = o.id
               JOIN item_variations iv ON iv.id = oi.item_variation_id
               JOIN menu_items mi ON mi.id = iv.menu_item_id
               JOIN counters co ON co.id = mi.counter_id
               WHERE co.vendor_id = ? AND o.status IN ('Pending', 'Preparing', 'Ready for Pickup')
               ORDER BY o.created_at, o.id`
	rows, err := r.db.QueryContext(ctx, q, vendorID)
	if err != nil {
		return nil, err
	}
	return scanOrders(rows)
}

// GetByIDForVendor fetches an order that contains at least one of the
// vendor's items.  Orders with no overlap resolve to ErrOrderNotFound,
// exactly like missing ids.
func (r *OrderRepo) GetByIDForVendor(ctx context.Context, id, vendorID uint64) (*model.Order, error) {
	const q = `SELECT DISTINCT o.id, o.user_id, o.total_price, o.status, o.external_id, o.pickup_code,
                      o.is_ready_to_eat_purchase, o.cancellation_reason, o.cancelled_by,
                      o.created_at, o.updated_at, o.preparing_at, o.ready_at, o.completed_at, o.cancelled_at
               FROM orders o
               JOIN order_items oi ON oi.order_id = o.id
               JOIN item_variations iv ON iv.id = oi.item_variation_id
               JOIN menu_items mi ON mi.id = iv.menu_item_id
               JOIN counters co ON co.id = mi.counter_id
               WHERE o.id = ? AND co.vendor_id = ?`
	return scanOrder(r.db.QueryRowContext(ctx, q, id, vendorID))
}

// CountCompletedOn counts the vendor's orders completed on the given
// local calendar date.
func (r *OrderRepo) CountCompletedOn(ctx context.Context, vendorID uint64, day time.Time) (int, error) {
	const q = `SELECT COUNT(DISTINCT o.id)
               FROM orders o
               JOIN order_items oi ON oi.order_id = o.id
               JOIN item_variations iv ON iv.id = oi.item_variation_id
               JOIN menu_items mi ON mi.id = iv.menu_item_id
               JOIN counters co ON co.id = mi.counter_id
               WHERE co.vendor_id = ? AND o.status = 'Completed' AND DATE(o.completed_at) = ?`
	var n int
	err := r.db.QueryRowContext(ctx, q, vendorID, day.Format("2006-01-02")).Scan(&n)
	return n, err
}

// CountCancelledOn counts the vendor's orders cancelled on the given
// local calendar date.  Keyed off updated_at because the vendor
// cancellation path does not stamp cancelled_at.
func (r *OrderRepo) CountCancelledOn(ctx context.Context, vendorID uint64, day time.Time) (int, error) {
	const q = `SELECT COUNT(DISTINCT o.id)
               FROM orders o
               JOIN order_items oi ON oi.order_id = o.id
               JOIN item_variations iv ON iv.id = oi.item_variation_id
               JOIN menu_items mi ON mi.id = iv.menu_item_id
               JOIN counters co ON co.id = mi.counter_id
               WHERE co.vendor_id = ? AND o.status = 'Cancelled' AND DATE(o.updated_at) = ?`
	var n int
	err := r.db.QueryRowContext(ctx, q, vendorID, day.Format("2006-01-02")).Scan(&n)
	return n, err
}
