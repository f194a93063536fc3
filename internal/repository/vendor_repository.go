package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/adityarao/campus-canteen/internal/model"
)

// VendorRepo resolves the vendor behind an authenticated staff user.
// The JWT carries only the user id and a VENDOR role; the user row's
// vendor_id column is the durable link to the vendor aggregate.
type VendorRepo struct {
	db *sql.DB
}

// NewVendorRepo constructs a VendorRepo given a DB handle.
func NewVendorRepo(db *sql.DB) *VendorRepo { return &VendorRepo{db: db} }

// ByUserID returns the vendor attached to the given staff user.
// Returns ErrVendorNotFound when the user has no vendor, which means a
// VENDOR-role token without a provisioned vendor row.
func (r *VendorRepo) ByUserID(ctx context.Context, userID uint64) (*model.Vendor, error) {
	const q = `SELECT v.id, v.name, v.created_at
               FROM vendors v
               JOIN users u ON u.vendor_id = v.id
               WHERE u.id = ?`
	var v model.Vendor
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&v.ID, &v.Name, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVendorNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
