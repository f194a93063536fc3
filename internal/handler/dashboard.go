package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/adityarao/campus-canteen/internal/model"
	"github.com/adityarao/campus-canteen/internal/queue"
	"github.com/adityarao/campus-canteen/internal/repository"
	queue_publisher "github.com/adityarao/campus-canteen/internal/service"
)

// DashboardHandler implements the vendor-facing surface: the live order
// queue, status transitions, pickup verification, vendor cancellation
// with re-listing of cooked RTE food, and menu management.
//
// Fields:
//   - VendorRepo:  resolves the authenticated user to a vendor
//   - OrderRepo:   order reads and lifecycle mutations
//   - RTERepo:     claim release and re-listing of RTE units
//   - CounterRepo: counter ownership checks for menu management
//   - MenuRepo:    menu item and variation writes
type DashboardHandler struct {
	VendorRepo  *repository.VendorRepo
	OrderRepo   *repository.OrderRepo
	RTERepo     *repository.RTERepo
	CounterRepo *repository.CounterRepo
	MenuRepo    *repository.MenuRepo
}

// NewDashboardHandler constructs a DashboardHandler.  All dependencies
// must be non-nil.
func NewDashboardHandler(vendorRepo *repository.VendorRepo, orderRepo *repository.OrderRepo, rteRepo *repository.RTERepo, counterRepo *repository.CounterRepo, menuRepo *repository.MenuRepo) *DashboardHandler {
	if vendorRepo == nil || orderRepo == nil || rteRepo == nil || counterRepo == nil || menuRepo == nil {
		panic("nil repository passed to NewDashboardHandler")
	}
	return &DashboardHandler{
		VendorRepo:  vendorRepo,
		OrderRepo:   orderRepo,
		RTERepo:     rteRepo,
		CounterRepo: counterRepo,
		MenuRepo:    menuRepo,
	}
}

// vendorID resolves the authenticated user to their vendor record.
func (h *DashboardHandler) vendorID(c echo.Context) (uint64, error) {
	userID, err := getUserID(c)
	if err != nil {
		return 0, err
	}
	vendor, err := h.VendorRepo.ByUserID(c.Request().Context(), userID)
	if err != nil {
		return 0, err
	}
	return vendor.ID, nil
}

// Home handles GET /v1/dashboard.  It returns the vendor's live order
// queue (oldest first, so the kitchen works in arrival order) together
// with today's completed and cancelled counts.
func (h *DashboardHandler) Home(c echo.Context) error {
	vendorID, err := h.vendorID(c)
	if err != nil {
		if errors.Is(err, repository.ErrVendorNotFound) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "no vendor profile for this account"})
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	orders, err := h.OrderRepo.ActiveByVendor(ctx, vendorID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load active orders"})
	}
	today := time.Now()
	completed, err := h.OrderRepo.CountCompletedOn(ctx, vendorID, today)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to count completed orders"})
	}
	cancelled, err := h.OrderRepo.CountCancelledOn(ctx, vendorID, today)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to count cancelled orders"})
	}
	items := make([]echo.Map, 0, len(orders))
	for _, o := range orders {
		items = append(items, echo.Map{
			"id":          o.ID,
			"external_id": o.ExternalID,
			"status":      o.Status,
			"total_price": o.TotalPrice,
			"created_at":  o.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"active_orders":   items,
		"completed_today": completed,
		"cancelled_today": cancelled,
	})
}

// OrderDetail handles GET /v1/dashboard/orders/:id.  Only the lines
// sold by this vendor's counters are shown, so shared orders never leak
// another vendor's items.
func (h *DashboardHandler) OrderDetail(c echo.Context) error {
	vendorID, err := h.vendorID(c)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no vendor profile for this account"})
	}
	orderID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	ctx := c.Request().Context()
	order, err := h.OrderRepo.GetByIDForVendor(ctx, orderID, vendorID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load order"})
	}
	details, err := h.OrderRepo.ItemsDetail(ctx, order.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load order items"})
	}
	lines := make([]echo.Map, 0, len(details))
	vendorTotal := decimal.Zero
	for _, d := range details {
		lines = append(lines, echo.Map{
			"item":           d.ItemName,
			"variation":      d.VariationName,
			"counter":        d.CounterName,
			"quantity":       d.Quantity,
			"price_at_order": d.PriceAtOrder,
			"claimed_rte":    d.ClaimedRTEItemID != nil,
		})
		vendorTotal = vendorTotal.Add(d.PriceAtOrder.Mul(decimal.NewFromInt(int64(d.Quantity))))
	}
	resp := orderJSON(*order)
	resp["items"] = lines
	resp["vendor_total"] = vendorTotal
	return c.JSON(http.StatusOK, resp)
}

// UpdateStatus handles PATCH /v1/dashboard/orders/:id/status.  The body
// carries the target status as its exact display string.  Unknown
// values are rejected with 400, transitions out of a terminal state
// with 409, and orders containing another vendor's items with 403.
// Moving to Completed runs the full completion path, releasing any RTE
// claims the order still holds.
func (h *DashboardHandler) UpdateStatus(c echo.Context) error {
	vendorID, err := h.vendorID(c)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no vendor profile for this account"})
	}
	orderID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	target, err := model.ParseStatus(body.Status)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status: " + body.Status})
	}
	switch target {
	case model.StatusPreparing, model.StatusReady, model.StatusCompleted:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be Preparing, Ready for Pickup or Completed"})
	}
	ctx := c.Request().Context()
	tx, err := h.OrderRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	order, err := h.OrderRepo.GetForUpdateTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load order"})
	}
	owns, err := h.OrderRepo.VendorOwnsAllItemsTx(ctx, tx, order.ID, vendorID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check order ownership"})
	}
	if !owns {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "order contains items from other vendors"})
	}
	if order.Status.IsTerminal() {
		return c.JSON(http.StatusConflict, echo.Map{"error": "order is already " + strings.ToLower(string(order.Status))})
	}
	now := time.Now().UTC()
	var released int
	switch target {
	case model.StatusPreparing:
		err = h.OrderRepo.MarkPreparingTx(ctx, tx, order.ID, now)
	case model.StatusReady:
		err = h.OrderRepo.MarkReadyTx(ctx, tx, order.ID, now)
	case model.StatusCompleted:
		released, err = h.completeOrderTx(ctx, tx, order.ID, now)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update order status"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	if target == model.StatusCompleted {
		h.publishCompleted(order, released, now)
	}
	return c.JSON(http.StatusOK, echo.Map{"order_id": order.ID, "status": target})
}

// VerifyPickup handles POST /v1/dashboard/pickup/verify.  The vendor
// types the 5-digit code the customer shows; a matching active order
// containing at least one of this vendor's items is completed on the
// spot.  Codes on completed or cancelled orders are reported as
// invalid, same as codes that never existed.
func (h *DashboardHandler) VerifyPickup(c echo.Context) error {
	vendorID, err := h.vendorID(c)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no vendor profile for this account"})
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&body); err != nil || body.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "pickup code is required"})
	}
	ctx := c.Request().Context()
	tx, err := h.OrderRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	order, err := h.OrderRepo.GetActiveByPickupCodeForUpdateTx(ctx, tx, body.Code)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "invalid or expired pickup code"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to look up pickup code"})
	}
	owns, err := h.OrderRepo.VendorOwnsAnyItemTx(ctx, tx, order.ID, vendorID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check order ownership"})
	}
	if !owns {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "this order has no items from your counters"})
	}
	now := time.Now().UTC()
	released, err := h.completeOrderTx(ctx, tx, order.ID, now)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to complete order"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	h.publishCompleted(order, released, now)
	return c.JSON(http.StatusOK, echo.Map{
		"order_id":    order.ID,
		"external_id": order.ExternalID,
		"total_price": order.TotalPrice,
		"status":      model.StatusCompleted,
		"message":     "pickup verified, order completed",
	})
}

// completeOrderTx marks the order Completed and deletes any RTE units
// its items still claim.  Completed food left the shelf with the
// customer, so its units must never reappear in listings.  Returns the
// number of units released.
func (h *DashboardHandler) completeOrderTx(ctx context.Context, tx *sql.Tx, orderID uint64, at time.Time) (int, error) {
	unitIDs, err := h.OrderRepo.ClaimedUnitIDsTx(ctx, tx, orderID)
	if err != nil {
		return 0, err
	}
	if err := h.OrderRepo.MarkCompletedTx(ctx, tx, orderID, at); err != nil {
		return 0, err
	}
	released := 0
	for _, id := range unitIDs {
		deleted, err := h.RTERepo.ReleaseTx(ctx, tx, id)
		if err != nil {
			return 0, err
		}
		if deleted {
			released++
		}
	}
	return released, nil
}

func (h *DashboardHandler) publishCompleted(order *model.Order, released int, at time.Time) {
	ev := queue.OrderEvent{
		OrderID:     order.ID,
		ExternalID:  order.ExternalID,
		UserID:      order.UserID,
		TotalPrice:  order.TotalPrice.String(),
		RTEReleased: released,
		OccurredAt:  at.Format(time.RFC3339),
	}
	go func() { _ = queue_publisher.PublishOrderCompleted(context.Background(), ev) }()
}

// Cancel handles POST /v1/dashboard/orders/:id/cancel, the vendor
// cancellation.  Any active order may be cancelled.  When cooking had
// already started (Preparing or Ready for Pickup), every item line
// without an RTE claim becomes quantity new single-unit RTE listings:
// the food exists and should be sold, not wasted.  Lines that already
// claim an RTE unit keep it on the shelf simply because the claim row
// disappears with the order item.
func (h *DashboardHandler) Cancel(c echo.Context) error {
	vendorID, err := h.vendorID(c)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no vendor profile for this account"})
	}
	orderID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil || body.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "a cancellation reason is required"})
	}
	ctx := c.Request().Context()
	tx, err := h.OrderRepo.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to start transaction"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	order, err := h.OrderRepo.GetForUpdateTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load order"})
	}
	owns, err := h.OrderRepo.VendorOwnsAllItemsTx(ctx, tx, order.ID, vendorID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check order ownership"})
	}
	if !owns {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "order contains items from other vendors"})
	}
	if order.Status.IsTerminal() {
		return c.JSON(http.StatusConflict, echo.Map{"error": "order is already " + strings.ToLower(string(order.Status))})
	}
	relisted := 0
	if order.Status == model.StatusPreparing || order.Status == model.StatusReady {
		details, err := h.OrderRepo.ItemsDetailTx(ctx, tx, order.ID)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load order items"})
		}
		for _, d := range details {
			if d.ClaimedRTEItemID != nil {
				continue
			}
			if err := h.RTERepo.RelistTx(ctx, tx, d.ItemVariationID, d.CounterID, d.Quantity); err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to re-list items"})
			}
			relisted += int(d.Quantity)
		}
	}
	// Vendor cancellations deliberately leave cancelled_at unset; the
	// dashboard's daily cancelled count keys off updated_at.
	if err := h.OrderRepo.MarkCancelledTx(ctx, tx, order.ID, body.Reason, model.CancelledByVendor, nil); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel order"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{
		"message":      "order cancelled",
		"rte_relisted": relisted,
	})
}

// CreateMenuItem handles POST /v1/dashboard/menu/items.  The counter
// must belong to the caller's vendor.
func (h *DashboardHandler) CreateMenuItem(c echo.Context) error {
	vendorID, err := h.vendorID(c)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no vendor profile for this account"})
	}
	var body struct {
		CounterID   uint64          `json:"counter_id"`
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Price       decimal.Decimal `json:"price"`
	}
	if err := c.Bind(&body); err != nil || body.CounterID == 0 || body.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "counter_id and name are required"})
	}
	if body.Price.IsNegative() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price must not be negative"})
	}
	ctx := c.Request().Context()
	owns, err := h.CounterRepo.BelongsToVendor(ctx, body.CounterID, vendorID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check counter ownership"})
	}
	if !owns {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "counter does not belong to your vendor"})
	}
	item := &model.MenuItem{
		CounterID:   body.CounterID,
		Name:        body.Name,
		Description: body.Description,
		Price:       body.Price,
	}
	if err := h.MenuRepo.CreateItem(ctx, item); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create menu item"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": item.ID, "name": item.Name})
}

// UpdateMenuItem handles PUT /v1/dashboard/menu/items/:id.
func (h *DashboardHandler) UpdateMenuItem(c echo.Context) error {
	vendorID, err := h.vendorID(c)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no vendor profile for this account"})
	}
	itemID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid menu item id"})
	}
	var body struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Price       decimal.Decimal `json:"price"`
	}
	if err := c.Bind(&body); err != nil || body.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	if body.Price.IsNegative() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price must not be negative"})
	}
	item := &model.MenuItem{
		ID:          itemID,
		Name:        body.Name,
		Description: body.Description,
		Price:       body.Price,
	}
	if err := h.MenuRepo.UpdateItem(c.Request().Context(), item, vendorID); err != nil {
		if errors.Is(err, repository.ErrForbidden) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "menu item does not belong to your vendor"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update menu item"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": item.ID, "name": item.Name})
}

// CreateVariation handles POST /v1/dashboard/menu/items/:id/variations.
func (h *DashboardHandler) CreateVariation(c echo.Context) error {
	vendorID, err := h.vendorID(c)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "no vendor profile for this account"})
	}
	itemID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid menu item id"})
	}
	var body struct {
		Name  string          `json:"name"`
		Price decimal.Decimal `json:"price"`
	}
	if err := c.Bind(&body); err != nil || body.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and price are required"})
	}
	if body.Price.IsNegative() || body.Price.IsZero() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "price must be positive"})
	}
	v := &model.ItemVariation{
		MenuItemID: itemID,
		Name:       body.Name,
		Price:      body.Price,
	}
	if err := h.MenuRepo.CreateVariation(c.Request().Context(), v, vendorID); err != nil {
		if errors.Is(err, repository.ErrForbidden) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "menu item does not belong to your vendor"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create variation"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": v.ID, "name": v.Name, "price": v.Price})
}
