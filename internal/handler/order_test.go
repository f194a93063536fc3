package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityarao/campus-canteen/internal/repository"
)

func newOrderHandler(t *testing.T) (*OrderHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewOrderHandler(
		repository.NewOrderRepo(db),
		repository.NewCartRepo(db),
		repository.NewMenuRepo(db),
	), mock
}

func orderContext(t *testing.T, method, target, body string, userID uint64) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	return c, rec
}

func TestPlaceOrderTransfersClaimsAndClearsCart(t *testing.T) {
	h, mock := newOrderHandler(t)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, created_at FROM carts WHERE user_id = ?")).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at"}).AddRow(5, 42, now))
	mock.ExpectBegin()
	// Two lines: one carrying a claim on unit 7, one plain quantity-2.
	mock.ExpectQuery(regexp.QuoteMeta("FROM cart_items WHERE cart_id = ? FOR UPDATE")).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cart_id", "item_variation_id", "quantity", "claimed_rte_item_id"}).
			AddRow(1, 5, 3, 1, 7).
			AddRow(2, 5, 8, 2, nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, price FROM item_variations WHERE id IN (?,?)")).
		WithArgs(uint64(3), uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "price"}).AddRow(3, "15.00").AddRow(8, "40.00"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM orders WHERE pickup_code = ?)")).
		WillReturnRows(sqlmock.NewRows([]string{"taken"}).AddRow(false))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnResult(sqlmock.NewResult(17, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items (order_id, item_variation_id, quantity, price_at_order, claimed_rte_item_id) VALUES (?, ?, ?, ?, ?),(?, ?, ?, ?, ?)")).
		WillReturnResult(sqlmock.NewResult(30, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cart_items WHERE cart_id = ?")).
		WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()
	// publishPlaced loads the item details after commit for the event.
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_items oi")).
		WithArgs(uint64(17)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_id", "item_variation_id", "quantity", "price_at_order",
			"claimed_rte_item_id", "mi_name", "iv_name", "co_id", "co_name",
		}))

	c, rec := orderContext(t, http.MethodPost, "/v1/orders", "", 42)
	require.NoError(t, h.Place(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 17, resp["order_id"])
	// 15.00 + 2*40.00
	assert.Equal(t, "95", resp["total_price"])
	assert.Equal(t, "Pending", resp["status"])
	assert.Len(t, resp["pickup_code"], 5)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	h, mock := newOrderHandler(t)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, created_at FROM carts WHERE user_id = ?")).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at"}).AddRow(5, 42, now))
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM cart_items WHERE cart_id = ? FOR UPDATE")).
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "cart_id", "item_variation_id", "quantity", "claimed_rte_item_id"}))
	mock.ExpectRollback()

	c, rec := orderContext(t, http.MethodPost, "/v1/orders", "", 42)
	require.NoError(t, h.Place(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cart is empty")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCancelPendingOrder(t *testing.T) {
	h, mock := newOrderHandler(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(17)).
		WillReturnRows(pendingOrderRows(17, 42))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = ?, cancellation_reason = ?, cancelled_by = ?, cancelled_at = ? WHERE id = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := orderContext(t, http.MethodPost, "/v1/orders/17/cancel", `{"reason":"running late"}`, 42)
	c.SetParamNames("id")
	c.SetParamValues("17")
	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCancelPreparingOrderConflicts(t *testing.T) {
	h, mock := newOrderHandler(t)
	mock.ExpectBegin()
	rows := orderRows(17, 42, "Preparing")
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(17)).
		WillReturnRows(rows)
	mock.ExpectRollback()

	c, rec := orderContext(t, http.MethodPost, "/v1/orders/17/cancel", `{"reason":"too slow"}`, 42)
	c.SetParamNames("id")
	c.SetParamValues("17")
	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "no longer be cancelled")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCancelForeignOrderLooksMissing(t *testing.T) {
	h, mock := newOrderHandler(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(17)).
		WillReturnRows(pendingOrderRows(17, 99))
	mock.ExpectRollback()

	c, rec := orderContext(t, http.MethodPost, "/v1/orders/17/cancel", `{"reason":"x"}`, 42)
	c.SetParamNames("id")
	c.SetParamValues("17")
	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func orderColumnsList() []string {
	return []string{
		"id", "user_id", "total_price", "status", "external_id", "pickup_code",
		"is_ready_to_eat_purchase", "cancellation_reason", "cancelled_by",
		"created_at", "updated_at", "preparing_at", "ready_at", "completed_at", "cancelled_at",
	}
}

func orderRows(id, userID uint64, status string) *sqlmock.Rows {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(orderColumnsList()).
		AddRow(id, userID, "95.00", status, "ext-1", "12345", false,
			nil, nil, now, now, nil, nil, nil, nil)
}

func pendingOrderRows(id, userID uint64) *sqlmock.Rows {
	return orderRows(id, userID, "Pending")
}
