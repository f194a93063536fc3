package model

import "time"

// User represents an account as stored in the `users` table.  Identity
// and sessions are owned by an external provider; this service only
// consumes the authenticated user id and role from JWT claims.  The
// table exists for referential integrity and so the seeder can
// provision demo accounts.  Vendor staff link to their vendor through
// VendorID.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique login name.
//	PasswordHash – bcrypt hashed password (written by the seeder only).
//	Role         – CUSTOMER or VENDOR.
//	VendorID     – vendor this staff account belongs to (nullable).
//	CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	VendorID     *uint64   // users.vendor_id (nullable)
	CreatedAt    time.Time // users.created_at
}

// Role values stored in users.role and carried in the JWT "role" claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleVendor   = "VENDOR"
)
