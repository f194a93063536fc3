package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/adityarao/campus-canteen/internal/repository"
)

// CartHandler serves the per-user cart: adding variations, viewing
// contents with totals, and removing lines.  All methods assume JWT
// authentication has already run.
type CartHandler struct {
	CartRepo *repository.CartRepo
	MenuRepo *repository.MenuRepo
}

// NewCartHandler constructs a CartHandler with the provided
// repositories.  All dependencies must be non-nil.
func NewCartHandler(cartRepo *repository.CartRepo, menuRepo *repository.MenuRepo) *CartHandler {
	if cartRepo == nil || menuRepo == nil {
		panic("nil repository passed to NewCartHandler")
	}
	return &CartHandler{CartRepo: cartRepo, MenuRepo: menuRepo}
}

// AddItem handles POST /v1/cart/items.  The body carries a
// variation_id; a pre-existing line for that variation is incremented,
// otherwise a new quantity-1 line is created.  This path never touches
// claim-holding lines, which are created only through the claim flow.
func (h *CartHandler) AddItem(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		VariationID uint64 `json:"variation_id"`
	}
	if err := c.Bind(&body); err != nil || body.VariationID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "variation_id is required"})
	}
	ctx := c.Request().Context()
	variation, err := h.MenuRepo.VariationByID(ctx, body.VariationID)
	if err != nil {
		if errors.Is(err, repository.ErrVariationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "that item does not exist"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	cart, err := h.CartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load cart"})
	}
	if err := h.CartRepo.AddVariation(ctx, cart.ID, variation.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add item"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "added to cart"})
}

// View handles GET /v1/cart.  It returns every line with its computed
// line total and the cart's grand total.
func (h *CartHandler) View(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	cart, err := h.CartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load cart"})
	}
	items, err := h.CartRepo.Items(ctx, cart.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load cart items"})
	}
	total := decimal.Zero
	lines := make([]echo.Map, 0, len(items))
	for _, it := range items {
		total = total.Add(it.LineTotal)
		lines = append(lines, echo.Map{
			"id":         it.ID,
			"item":       it.ItemName,
			"variation":  it.VariationName,
			"quantity":   it.Quantity,
			"unit_price": it.UnitPrice,
			"line_total": it.LineTotal,
			"claimed":    it.Claimed,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": lines, "total": total})
}

// RemoveItem handles DELETE /v1/cart/items/:id.  The line is deleted
// only when it belongs to the caller's cart; a claim held by the line
// is released as a consequence, making the unit available again.
func (h *CartHandler) RemoveItem(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	itemID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid cart item id"})
	}
	if err := h.CartRepo.DeleteItemByIDAndUser(c.Request().Context(), itemID, userID); err != nil {
		if errors.Is(err, repository.ErrCartItemNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "cart item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to remove item"})
	}
	return c.NoContent(http.StatusNoContent)
}
