package handler

import (
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

func newDashboardHandler(t *testing.T) (*DashboardHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewDashboardHandler(
		repository.NewVendorRepo(db),
		repository.NewOrderRepo(db),
		repository.NewRTERepo(db),
		repository.NewCounterRepo(db),
		repository.NewMenuRepo(db),
	), mock
}

func dashContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
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
	c.Set("user_id", uint64(2)) // vendor staff account
	c.Set("role", "VENDOR")
	return c, rec
}

func expectVendorLookup(mock sqlmock.Sqlmock) {
	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM vendors v")).
		WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).AddRow(3, "Annapurna Foods", now))
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	h, mock := newDashboardHandler(t)
	expectVendorLookup(mock)

	c, rec := dashContext(t, http.MethodPatch, "/v1/dashboard/orders/17/status", `{"status":"Cooking"}`)
	c.SetParamNames("id")
	c.SetParamValues("17")
	require.NoError(t, h.UpdateStatus(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown status")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusRejectsPendingTarget(t *testing.T) {
	h, mock := newDashboardHandler(t)
	expectVendorLookup(mock)

	c, rec := dashContext(t, http.MethodPatch, "/v1/dashboard/orders/17/status", `{"status":"Pending"}`)
	c.SetParamNames("id")
	c.SetParamValues("17")
	require.NoError(t, h.UpdateStatus(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusForeignItemsForbidden(t *testing.T) {
	h, mock := newDashboardHandler(t)
	expectVendorLookup(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(17)).
		WillReturnRows(orderRows(17, 42, "Pending"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COALESCE(SUM(co.vendor_id = ?), 0)")).
		WithArgs(uint64(3), uint64(17)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "owned"}).AddRow(2, 1))
	mock.ExpectRollback()

	c, rec := dashContext(t, http.MethodPatch, "/v1/dashboard/orders/17/status", `{"status":"Preparing"}`)
	c.SetParamNames("id")
	c.SetParamValues("17")
	require.NoError(t, h.UpdateStatus(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusCompletedReleasesClaimedUnits(t *testing.T) {
	h, mock := newDashboardHandler(t)
	expectVendorLookup(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(17)).
		WillReturnRows(orderRows(17, 42, "Ready for Pickup"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COALESCE(SUM(co.vendor_id = ?), 0)")).
		WithArgs(uint64(3), uint64(17)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "owned"}).AddRow(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT claimed_rte_item_id FROM order_items")).
		WithArgs(uint64(17)).
		WillReturnRows(sqlmock.NewRows([]string{"claimed_rte_item_id"}).AddRow(7))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = ?, completed_at = ? WHERE id = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// The completed unit leaves the ledger so it never re-lists.
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rte_items WHERE id = ?")).
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := dashContext(t, http.MethodPatch, "/v1/dashboard/orders/17/status", `{"status":"Completed"}`)
	c.SetParamNames("id")
	c.SetParamValues("17")
	require.NoError(t, h.UpdateStatus(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Completed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusTerminalConflict(t *testing.T) {
	h, mock := newDashboardHandler(t)
	expectVendorLookup(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(17)).
		WillReturnRows(orderRows(17, 42, "Completed"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COALESCE(SUM(co.vendor_id = ?), 0)")).
		WithArgs(uint64(3), uint64(17)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "owned"}).AddRow(1, 1))
	mock.ExpectRollback()

	c, rec := dashContext(t, http.MethodPatch, "/v1/dashboard/orders/17/status", `{"status":"Preparing"}`)
	c.SetParamNames("id")
	c.SetParamValues("17")
	require.NoError(t, h.UpdateStatus(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVendorCancelRelistsCookedUnits(t *testing.T) {
	h, mock := newDashboardHandler(t)
	expectVendorLookup(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(17)).
		WillReturnRows(orderRows(17, 42, "Preparing"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COALESCE(SUM(co.vendor_id = ?), 0)")).
		WithArgs(uint64(3), uint64(17)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "owned"}).AddRow(3, 3))
	// Three lines: quantity-2 and quantity-1 without claims re-list as
	// three single units; the claimed line keeps its unit on the shelf
	// and is skipped.
	mock.ExpectQuery(regexp.QuoteMeta("FROM order_items oi")).
		WithArgs(uint64(17)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "order_id", "item_variation_id", "quantity", "price_at_order",
			"claimed_rte_item_id", "mi_name", "iv_name", "co_id", "co_name",
		}).
			AddRow(1, 17, 3, 2, "80.00", nil, "Veg Thali", "Regular", 2, "Main Course Counter").
			AddRow(2, 17, 8, 1, "40.00", nil, "Cold Coffee", "Regular", 2, "Main Course Counter").
			AddRow(3, 17, 9, 1, "15.00", 7, "Samosa", "Single", 2, "Main Course Counter"))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rte_items (item_variation_id, counter_id, quantity) VALUES (?, ?, 1),(?, ?, 1)")).
		WithArgs(uint64(3), uint64(2), uint64(3), uint64(2)).
		WillReturnResult(sqlmock.NewResult(40, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rte_items (item_variation_id, counter_id, quantity) VALUES (?, ?, 1)")).
		WithArgs(uint64(8), uint64(2)).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = ?, cancellation_reason = ?, cancelled_by = ?, cancelled_at = ? WHERE id = ?")).
		WithArgs("Cancelled", "ran out of gas", "vendor", nil, uint64(17)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := dashContext(t, http.MethodPost, "/v1/dashboard/orders/17/cancel", `{"reason":"ran out of gas"}`)
	c.SetParamNames("id")
	c.SetParamValues("17")
	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rte_relisted":3`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVendorCancelPendingDoesNotRelist(t *testing.T) {
	h, mock := newDashboardHandler(t)
	expectVendorLookup(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM orders WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(17)).
		WillReturnRows(orderRows(17, 42, "Pending"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*), COALESCE(SUM(co.vendor_id = ?), 0)")).
		WithArgs(uint64(3), uint64(17)).
		WillReturnRows(sqlmock.NewRows([]string{"total", "owned"}).AddRow(2, 2))
	// Nothing was cooked yet, so no units enter the ledger.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = ?, cancellation_reason = ?, cancelled_by = ?, cancelled_at = ? WHERE id = ?")).
		WithArgs("Cancelled", "kitchen closing", "vendor", nil, uint64(17)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := dashContext(t, http.MethodPost, "/v1/dashboard/orders/17/cancel", `{"reason":"kitchen closing"}`)
	c.SetParamNames("id")
	c.SetParamValues("17")
	require.NoError(t, h.Cancel(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rte_relisted":0`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyPickupInvalidCode(t *testing.T) {
	h, mock := newDashboardHandler(t)
	expectVendorLookup(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE pickup_code = ? AND status IN ('Pending', 'Preparing', 'Ready for Pickup')")).
		WithArgs("54321").
		WillReturnRows(sqlmock.NewRows(orderColumnsList()))
	mock.ExpectRollback()

	c, rec := dashContext(t, http.MethodPost, "/v1/dashboard/pickup/verify", `{"code":"54321"}`)
	require.NoError(t, h.VerifyPickup(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired pickup code")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyPickupCompletesOrder(t *testing.T) {
	h, mock := newDashboardHandler(t)
	expectVendorLookup(mock)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE pickup_code = ? AND status IN ('Pending', 'Preparing', 'Ready for Pickup')")).
		WithArgs("12345").
		WillReturnRows(orderRows(17, 42, "Ready for Pickup"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(")).
		WithArgs(uint64(17), uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"owns"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT claimed_rte_item_id FROM order_items")).
		WithArgs(uint64(17)).
		WillReturnRows(sqlmock.NewRows([]string{"claimed_rte_item_id"}))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = ?, completed_at = ? WHERE id = ?")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := dashContext(t, http.MethodPost, "/v1/dashboard/pickup/verify", `{"code":"12345"}`)
	require.NoError(t, h.VerifyPickup(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pickup verified")
	assert.NoError(t, mock.ExpectationsWereMet())
}
