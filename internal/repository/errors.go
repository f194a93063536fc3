// Package repository implements raw-SQL data access for the canteen
// service.  This file defines sentinel error values reused across
// repositories.  Handlers compare against them with errors.Is and
// translate them into HTTP responses, so the persistence layer never
// leaks MySQL error strings to clients.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own, e.g. a vendor touching an order whose items
// all belong to other vendors.  Handlers translate this into 403.
var ErrForbidden = errors.New("forbidden")

// ErrAlreadyClaimed is returned when a claim attempt loses the race for
// a ready-to-eat unit: by the time the row lock was acquired, another
// cart or order already held the claim.  Exactly one concurrent
// claimant ever succeeds; the rest receive this error.
var ErrAlreadyClaimed = errors.New("ready-to-eat unit already claimed")

// ErrEmptyCart is returned when an order placement finds no cart items
// under the row lock, including the case where a concurrent request
// emptied the cart between the caller's read and the transaction.
var ErrEmptyCart = errors.New("cart is empty")

// ErrOrderNotFound is returned when an order id or pickup code does not
// resolve, or resolves to an order outside the caller's scope.
var ErrOrderNotFound = errors.New("order not found")

// ErrCounterNotFound is returned when a counter id does not resolve.
var ErrCounterNotFound = errors.New("counter not found")

// ErrVariationNotFound is returned when an item variation id does not
// resolve.
var ErrVariationNotFound = errors.New("item variation not found")

// ErrRTEItemNotFound is returned when a ready-to-eat unit id does not
// resolve, typically because the unit was purchased and released.
var ErrRTEItemNotFound = errors.New("ready-to-eat item not found")

// ErrCartItemNotFound is returned when a cart item id does not resolve
// or does not belong to the requesting user's cart.
var ErrCartItemNotFound = errors.New("cart item not found")

// ErrVendorNotFound is returned when the authenticated user has no
// vendor attached, i.e. a staff token without a provisioned vendor row.
var ErrVendorNotFound = errors.New("vendor not found")
