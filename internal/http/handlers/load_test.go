package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	dbpkg "shopmetrics/internal/db"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, dbpkg.Migrate(gdb))
	return gdb
}

func postJSON(handler fasthttp.RequestHandler, body string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	ctx.Request.SetBodyString(body)
	handler(ctx)
	return ctx
}

func TestLoadDateFormats(t *testing.T) {
	var d loadDate
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-15"`), &d))
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), d.Time)

	require.NoError(t, json.Unmarshal([]byte(`"2024-03-15T10:30:00Z"`), &d))
	assert.Equal(t, time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC), d.Time)

	assert.Error(t, json.Unmarshal([]byte(`"15/03/2024"`), &d))
}

func TestLoadCustomersUpsert(t *testing.T) {
	gdb := newTestDB(t)
	handler := LoadCustomers(gdb)

	body := `{"customers":[
		{"customer_id":1,"customer_name":"Ada","email":"ada@example.com","country":"UK","city":"London","registration_date":"2024-01-10"},
		{"customer_id":2,"customer_name":"Ben","email":"ben@example.com","country":"USA","city":"Austin","registration_date":"2024-02-01"}
	]}`
	ctx := postJSON(handler, body)
	assert.Equal(t, fasthttp.StatusAccepted, ctx.Response.StatusCode())

	// A second push of the same batch, with one field changed, updates in
	// place instead of duplicating or failing on the primary key.
	body2 := `{"customers":[
		{"customer_id":1,"customer_name":"Ada L.","email":"ada@example.com","country":"UK","city":"London","registration_date":"2024-01-10"}
	]}`
	ctx = postJSON(handler, body2)
	assert.Equal(t, fasthttp.StatusAccepted, ctx.Response.StatusCode())

	var count int64
	require.NoError(t, gdb.Model(&dbpkg.Customer{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	var ada dbpkg.Customer
	require.NoError(t, gdb.First(&ada, 1).Error)
	assert.Equal(t, "Ada L.", ada.Name)
}

func TestLoadCustomersRejectsInvalid(t *testing.T) {
	gdb := newTestDB(t)
	handler := LoadCustomers(gdb)

	ctx := postJSON(handler, `not json`)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	ctx = postJSON(handler, `{"customers":[]}`)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	// Rows without an ID or email are dropped; a batch of only such rows
	// is rejected outright.
	ctx = postJSON(handler, `{"customers":[{"customer_name":"Nobody"}]}`)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestLoadOrdersUpsertWithItems(t *testing.T) {
	gdb := newTestDB(t)
	handler := LoadOrders(gdb)

	body := `{"orders":[
		{"order_id":10,"customer_id":1,"order_date":"2024-03-01","total_amount":120.5,"order_status":"Completed",
		 "items":[
			{"order_item_id":100,"product_id":5,"quantity":2,"unit_price":50,"line_total":100},
			{"order_item_id":101,"product_id":6,"quantity":1,"unit_price":20.5,"line_total":20.5}
		 ]}
	]}`
	ctx := postJSON(handler, body)
	require.Equal(t, fasthttp.StatusAccepted, ctx.Response.StatusCode(), string(ctx.Response.Body()))

	var resp struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
	assert.Equal(t, "accepted", resp.Status)
	assert.Equal(t, 1, resp.Count)

	// Replaying the batch with a corrected amount updates the existing row.
	body2 := `{"orders":[
		{"order_id":10,"customer_id":1,"order_date":"2024-03-01","total_amount":130.5,"order_status":"Completed",
		 "items":[{"order_item_id":100,"product_id":5,"quantity":2,"unit_price":55,"line_total":110}]}
	]}`
	ctx = postJSON(handler, body2)
	require.Equal(t, fasthttp.StatusAccepted, ctx.Response.StatusCode())

	var orderCount, itemCount int64
	require.NoError(t, gdb.Model(&dbpkg.Order{}).Count(&orderCount).Error)
	require.NoError(t, gdb.Model(&dbpkg.OrderItem{}).Count(&itemCount).Error)
	assert.Equal(t, int64(1), orderCount)
	assert.Equal(t, int64(2), itemCount)

	var order dbpkg.Order
	require.NoError(t, gdb.First(&order, 10).Error)
	assert.Equal(t, 130.5, order.TotalAmount)
}

func TestLoadOrdersRejectsUnknownStatus(t *testing.T) {
	gdb := newTestDB(t)
	handler := LoadOrders(gdb)

	ctx := postJSON(handler, `{"orders":[
		{"order_id":11,"customer_id":1,"order_date":"2024-03-01","total_amount":10,"order_status":"Shipped"}
	]}`)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())

	var count int64
	require.NoError(t, gdb.Model(&dbpkg.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestLoadOrdersDropsNonPositiveQuantities(t *testing.T) {
	gdb := newTestDB(t)
	handler := LoadOrders(gdb)

	ctx := postJSON(handler, `{"orders":[
		{"order_id":12,"customer_id":1,"order_date":"2024-03-02","total_amount":10,"order_status":"Pending",
		 "items":[{"order_item_id":110,"product_id":5,"quantity":0,"unit_price":10,"line_total":0}]}
	]}`)
	require.Equal(t, fasthttp.StatusAccepted, ctx.Response.StatusCode())

	var itemCount int64
	require.NoError(t, gdb.Model(&dbpkg.OrderItem{}).Count(&itemCount).Error)
	assert.Zero(t, itemCount)
}

func TestLoadProducts(t *testing.T) {
	gdb := newTestDB(t)
	handler := LoadProducts(gdb)

	ctx := postJSON(handler, `{"products":[
		{"product_id":5,"product_name":"Desk Model 2","category":"Home","sub_category":"Desk","unit_price":199.99}
	]}`)
	require.Equal(t, fasthttp.StatusAccepted, ctx.Response.StatusCode())

	var p dbpkg.Product
	require.NoError(t, gdb.First(&p, 5).Error)
	assert.Equal(t, "Desk Model 2", p.Name)
	assert.Equal(t, 199.99, p.UnitPrice)
}
