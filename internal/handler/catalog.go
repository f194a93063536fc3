package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/adityarao/campus-canteen/internal/repository"
)

// CatalogHandler serves the public, read-only catalog: counters and
// their menus.  No authentication is required; responses are good
// candidates for the Redis response cache.
type CatalogHandler struct {
	CounterRepo *repository.CounterRepo
	MenuRepo    *repository.MenuRepo
}

// NewCatalogHandler constructs a CatalogHandler with the provided
// repositories.  All dependencies must be non-nil.
func NewCatalogHandler(counterRepo *repository.CounterRepo, menuRepo *repository.MenuRepo) *CatalogHandler {
	if counterRepo == nil || menuRepo == nil {
		panic("nil repository passed to NewCatalogHandler")
	}
	return &CatalogHandler{CounterRepo: counterRepo, MenuRepo: menuRepo}
}

// ListCounters handles GET /v1/counters.  It returns every counter with
// its vendor name, ordered by counter name.
func (h *CatalogHandler) ListCounters(c echo.Context) error {
	counters, err := h.CounterRepo.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load counters"})
	}
	items := make([]echo.Map, 0, len(counters))
	for _, co := range counters {
		items = append(items, echo.Map{
			"id":          co.ID,
			"name":        co.Name,
			"description": co.Description,
			"image_url":   co.ImageURL,
			"vendor":      echo.Map{"id": co.VendorID, "name": co.VendorName},
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CounterMenu handles GET /v1/counters/:id/menu.  It returns the
// counter's menu items with their variations nested.
func (h *CatalogHandler) CounterMenu(c echo.Context) error {
	counterID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid counter id"})
	}
	ctx := c.Request().Context()
	counter, err := h.CounterRepo.GetByID(ctx, counterID)
	if err != nil {
		if errors.Is(err, repository.ErrCounterNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "counter not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	menu, err := h.MenuRepo.ItemsByCounter(ctx, counterID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load menu"})
	}
	items := make([]echo.Map, 0, len(menu))
	for _, m := range menu {
		variations := make([]echo.Map, 0, len(m.Variations))
		for _, v := range m.Variations {
			variations = append(variations, echo.Map{
				"id":    v.ID,
				"name":  v.Name,
				"price": v.Price,
			})
		}
		items = append(items, echo.Map{
			"id":          m.Item.ID,
			"name":        m.Item.Name,
			"description": m.Item.Description,
			"price":       m.Item.Price,
			"variations":  variations,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"counter": echo.Map{"id": counter.ID, "name": counter.Name, "description": counter.Description},
		"items":   items,
	})
}
