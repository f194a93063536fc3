package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/adityarao/campus-canteen/internal/model"
	"github.com/adityarao/campus-canteen/internal/queue"
	"github.com/adityarao/campus-canteen/internal/repository"
	queue_publisher "github.com/adityarao/campus-canteen/internal/service"
	"github.com/adityarao/campus-canteen/internal/utils"
)

// OrderHandler implements the customer side of the order lifecycle:
// placing an order from the cart, reading history and details, polling
// status, and the user cancellation path.  All state mutations run
// inside a single transaction so that the order, its items, the claim
// transfers and the cart cleanup commit or roll back together.
type OrderHandler struct {
	OrderRepo *repository.OrderRepo
	CartRepo  *repository.CartRepo
	MenuRepo  *repository.MenuRepo
}

// NewOrderHandler constructs an OrderHandler with the provided
// repositories.  All dependencies must be non-nil.
func NewOrderHandler(orderRepo *repository.OrderRepo, cartRepo *repository.CartRepo, menuRepo *repository.MenuRepo) *OrderHandler {
	if orderRepo == nil || cartRepo == nil || menuRepo == nil {
		panic("nil repository passed to NewOrderHandler")
	}
	return &OrderHandler{OrderRepo: orderRepo, CartRepo: cartRepo, MenuRepo: menuRepo}
}

// Place handles POST /v1/orders.  In one transaction it locks the
// cart's items, computes the total from live variation prices, finds a
// collision-free pickup code, creates the order and its items carrying
// over any RTE claims, and empties the cart.  A cart emptied by a
// concurrent request fails the whole operation with nothing created.
func (h *OrderHandler) Place(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	cart, err := h.CartRepo.GetOrCreate(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load cart"})
	}
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
	cartItems, err := h.CartRepo.ItemsForUpdateTx(ctx, tx, cart.ID)
	if err != nil {
		if errors.Is(err, repository.ErrEmptyCart) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "your cart is empty"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load cart items"})
	}
	variationIDs := make([]uint64, 0, len(cartItems))
	for _, it := range cartItems {
		variationIDs = append(variationIDs, it.ItemVariationID)
	}
	prices, err := h.MenuRepo.PricesByIDsTx(ctx, tx, variationIDs)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch prices"})
	}
	total := decimal.Zero
	isRTEPurchase := false
	orderItems := make([]model.OrderItem, 0, len(cartItems))
	for _, it := range cartItems {
		price, ok := prices[it.ItemVariationID]
		if !ok {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "price not found for item"})
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		if it.ClaimedRTEItemID != nil {
			isRTEPurchase = true
		}
		orderItems = append(orderItems, model.OrderItem{
			ItemVariationID:  it.ItemVariationID,
			Quantity:         it.Quantity,
			PriceAtOrder:     price,
			ClaimedRTEItemID: it.ClaimedRTEItemID, // transfer, not duplicate
		})
	}
	// Find a collision-free pickup code.  The code space is 90000 wide,
	// so this loop almost always runs once.
	var code string
	for {
		code, err = utils.NewPickupCode()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to generate pickup code"})
		}
		taken, err := h.OrderRepo.PickupCodeTakenTx(ctx, tx, code)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check pickup code"})
		}
		if !taken {
			break
		}
	}
	order := &model.Order{
		UserID:               userID,
		TotalPrice:           total,
		Status:               model.StatusPending,
		ExternalID:           uuid.NewString(),
		PickupCode:           code,
		IsReadyToEatPurchase: isRTEPurchase,
	}
	if err := h.OrderRepo.CreateTx(ctx, tx, order); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create order"})
	}
	if err := h.OrderRepo.CreateItemsTx(ctx, tx, order.ID, orderItems); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create order items"})
	}
	// The claims were carried onto the order items above, so deleting
	// the cart items is now safe.
	if err := h.CartRepo.DeleteAllTx(ctx, tx, cart.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to clear cart"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	h.publishPlaced(order)
	return c.JSON(http.StatusCreated, echo.Map{
		"order_id":    order.ID,
		"external_id": order.ExternalID,
		"pickup_code": order.PickupCode,
		"total_price": order.TotalPrice,
		"status":      order.Status,
		"message":     "order placed successfully, pay at the counter",
	})
}

// publishPlaced emits the order.placed event on a best-effort basis.
// Broker failures are logged by the publisher and never fail the order.
func (h *OrderHandler) publishPlaced(order *model.Order) {
	details, err := h.OrderRepo.ItemsDetail(context.Background(), order.ID)
	if err != nil {
		log.Printf("order: failed to load items for event: %v", err)
		return
	}
	ev := queue.OrderEvent{
		OrderID:    order.ID,
		ExternalID: order.ExternalID,
		UserID:     order.UserID,
		PickupCode: order.PickupCode,
		TotalPrice: order.TotalPrice.String(),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	for _, d := range details {
		ev.Items = append(ev.Items, queue.OrderEventItem{
			Item:      d.ItemName,
			Variation: d.VariationName,
			Quantity:  d.Quantity,
			Price:     d.PriceAtOrder.String(),
		})
	}
	go func() { _ = queue_publisher.PublishOrderPlaced(context.Background(), ev) }()
}

// orderJSON shapes an order for responses shared by List and Get.
func orderJSON(o model.Order) echo.Map {
	return echo.Map{
		"id":                       o.ID,
		"external_id":              o.ExternalID,
		"status":                   o.Status,
		"total_price":              o.TotalPrice,
		"pickup_code":              o.PickupCode,
		"is_ready_to_eat_purchase": o.IsReadyToEatPurchase,
		"cancellation_reason":      o.CancellationReason,
		"cancelled_by":             o.CancelledBy,
		"created_at":               o.CreatedAt,
		"preparing_at":             o.PreparingAt,
		"ready_at":                 o.ReadyAt,
		"completed_at":             o.CompletedAt,
		"cancelled_at":             o.CancelledAt,
	}
}

// List handles GET /v1/orders.  It returns the caller's orders, newest
// first.
func (h *OrderHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orders, err := h.OrderRepo.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load orders"})
	}
	items := make([]echo.Map, 0, len(orders))
	for _, o := range orders {
		items = append(items, orderJSON(o))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/orders/:id.  It returns the order with its lines
// when the order belongs to the caller, 404 otherwise.
func (h *OrderHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	ctx := c.Request().Context()
	order, err := h.OrderRepo.GetByIDForUser(ctx, orderID, userID)
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
	for _, d := range details {
		lines = append(lines, echo.Map{
			"item":           d.ItemName,
			"variation":      d.VariationName,
			"counter":        d.CounterName,
			"quantity":       d.Quantity,
			"price_at_order": d.PriceAtOrder,
			"claimed_rte":    d.ClaimedRTEItemID != nil,
		})
	}
	resp := orderJSON(*order)
	resp["items"] = lines
	return c.JSON(http.StatusOK, resp)
}

// Status handles GET /v1/orders/:id/status, the lightweight endpoint
// the live-tracking page polls.  Completed orders additionally report
// the total and completion time.
func (h *OrderHandler) Status(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	order, err := h.OrderRepo.GetByIDForUser(c.Request().Context(), orderID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"status": "Not Found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load order"})
	}
	if order.Status == model.StatusCompleted {
		return c.JSON(http.StatusOK, echo.Map{
			"status":       order.Status,
			"total_price":  order.TotalPrice,
			"completed_at": order.CompletedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": order.Status})
}

// Cancel handles POST /v1/orders/:id/cancel, the user-initiated
// cancellation.  Only Pending orders may be cancelled by their owner:
// once the kitchen starts cooking, cancellation is the vendor's call.
// Pending food was never cooked, so nothing is ever re-listed here.
func (h *OrderHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	orderID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid order id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body)
	if body.Reason == "" {
		body.Reason = "Changed my mind"
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
	if order.UserID != userID {
		// Treated as missing so order ids stay unguessable.
		return c.JSON(http.StatusNotFound, echo.Map{"error": "order not found"})
	}
	if order.Status != model.StatusPending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "this order is already being prepared and can no longer be cancelled"})
	}
	now := time.Now().UTC()
	if err := h.OrderRepo.MarkCancelledTx(ctx, tx, order.ID, body.Reason, model.CancelledByUser, &now); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel order"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to commit transaction"})
	}
	committed = true
	return c.JSON(http.StatusOK, echo.Map{"message": "order cancelled"})
}
