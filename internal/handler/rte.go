package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/adityarao/campus-canteen/internal/repository"
)

// RTEHandler exposes the ready-to-eat shelf: customers browse leftover
// units and claim one for their cart.  Claiming is the contended
// operation of the whole system; it runs inside a transaction holding
// an exclusive lock on the unit row so that of two simultaneous claims
// exactly one succeeds and the other sees a conflict.
type RTEHandler struct {
	RTERepo  *repository.RTERepo
	CartRepo *repository.CartRepo
}

// NewRTEHandler constructs an RTEHandler with the provided
// repositories.  All dependencies must be non-nil.
func NewRTEHandler(rteRepo *repository.RTERepo, cartRepo *repository.CartRepo) *RTEHandler {
	if rteRepo == nil || cartRepo == nil {
		panic("nil repository passed to NewRTEHandler")
	}
	return &RTEHandler{RTERepo: rteRepo, CartRepo: cartRepo}
}

// ListAvailable handles GET /v1/ready-to-eat.  Authenticated viewers see
// unclaimed units plus units sitting in their own cart; guests see only
// wholly unclaimed units.  The optional-auth middleware leaves user_id
// unset for guests, in which case viewer 0 matches no cart.
func (h *RTEHandler) ListAvailable(c echo.Context) error {
	viewerID, err := getUserID(c)
	if err != nil {
		viewerID = 0 // guest view
	}
	listings, err := h.RTERepo.ListAvailable(c.Request().Context(), viewerID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load ready-to-eat items"})
	}
	items := make([]echo.Map, 0, len(listings))
	for _, l := range listings {
		items = append(items, echo.Map{
			"id":        l.ID,
			"item":      l.ItemName,
			"variation": l.VariationName,
			"counter":   echo.Map{"id": l.CounterID, "name": l.CounterName},
			"price":     l.Price,
			"added_at":  l.AddedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Claim handles POST /v1/ready-to-eat/:id/claim.  Within one
// transaction it locks the unit row, re-checks that no cart or order
// claims it, then creates a quantity-1 cart item carrying the claim.
// Losing the race yields 409 and a user-facing conflict message; the
// client may re-list and pick another unit, nothing is retried here.
func (h *RTEHandler) Claim(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	unitID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
	}
	ctx := c.Request().Context()
	tx, err := h.RTERepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	unit, err := h.RTERepo.GetForUpdateTx(ctx, tx, unitID)
	if err != nil {
		if errors.Is(err, repository.ErrRTEItemNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "ready-to-eat item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := h.RTERepo.EnsureUnclaimedTx(ctx, tx, unit.ID); err != nil {
		if errors.Is(err, repository.ErrAlreadyClaimed) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "sorry, this item was just claimed by someone else"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check claim state"})
	}
	cart, err := h.CartRepo.GetOrCreateTx(ctx, tx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load cart"})
	}
	if err := h.CartRepo.CreateClaimItemTx(ctx, tx, cart.ID, unit.ItemVariationID, unit.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reserve item"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusCreated, echo.Map{
		"message":     "item secured, it is now reserved in your cart",
		"rte_item_id": unit.ID,
	})
}
