package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/adityarao/campus-canteen/internal/model"
)

// CounterListing pairs a counter with its vendor's display name for the
// public counter list.
type CounterListing struct {
	ID          uint64  // counters.id
	Name        string  // counters.name
	Description string  // counters.description
	ImageURL    *string // counters.image_url (nullable)
	VendorID    uint64  // vendors.id
	VendorName  string  // vendors.name
}

// CounterRepo encapsulates database operations for counters.
type CounterRepo struct {
	db *sql.DB
}

// NewCounterRepo constructs a CounterRepo given a DB handle.
func NewCounterRepo(db *sql.DB) *CounterRepo { return &CounterRepo{db: db} }

// List returns all counters with their vendor names, ordered by name.
func (r *CounterRepo) List(ctx context.Context) ([]CounterListing, error) {
	const q = `SELECT co.id, co.name, co.description, co.image_url, v.id, v.name
               FROM counters co
               JOIN vendors v ON v.id = co.vendor_id
               ORDER BY co.name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []CounterListing{}
	for rows.Next() {
		var l CounterListing
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.ImageURL, &l.VendorID, &l.VendorName); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// GetByID fetches a single counter.  Returns ErrCounterNotFound when
// the id does not resolve.
func (r *CounterRepo) GetByID(ctx context.Context, id uint64) (*model.Counter, error) {
	var c model.Counter
	err := r.db.QueryRowContext(ctx,
		`SELECT id, vendor_id, name, description, image_url FROM counters WHERE id = ?`, id).
		Scan(&c.ID, &c.VendorID, &c.Name, &c.Description, &c.ImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCounterNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// BelongsToVendor reports whether the counter is owned by the vendor.
// Vendor-side menu management uses this before any write.
func (r *CounterRepo) BelongsToVendor(ctx context.Context, counterID, vendorID uint64) (bool, error) {
	var owned bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM counters WHERE id = ? AND vendor_id = ?)`,
		counterID, vendorID).Scan(&owned)
	return owned, err
}
