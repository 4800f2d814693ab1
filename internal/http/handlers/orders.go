package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "shopmetrics/internal/db"
)

// OrderDetail returns one order with its line items and product names.
func OrderDetail(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		idVal := ctx.UserValue("id")
		if idVal == nil {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			ctx.SetBodyString("id required")
			return
		}
		idStr, ok := idVal.(string)
		if !ok {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			ctx.SetBodyString("invalid id")
			return
		}
		id, err := strconv.Atoi(idStr)
		if err != nil || id <= 0 {
			ctx.SetStatusCode(fasthttp.StatusBadRequest)
			ctx.SetBodyString("invalid id")
			return
		}

		var o dbpkg.Order
		if err := db.Preload("Items").Preload("Items.Product").Preload("Customer").First(&o, id).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				ctx.SetStatusCode(fasthttp.StatusNotFound)
				ctx.SetBodyString("order not found")
				return
			}
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString("failed to load order")
			return
		}

		items := make([]map[string]any, 0, len(o.Items))
		for _, it := range o.Items {
			items = append(items, map[string]any{
				"order_item_id": it.ID,
				"product_id":    it.ProductID,
				"product":       it.Product.Name,
				"category":      it.Product.Category,
				"quantity":      it.Quantity,
				"unit_price":    it.UnitPrice,
				"discount":      it.Discount,
				"line_total":    it.LineTotal,
			})
		}

		resp := map[string]any{
			"order_id":     o.ID,
			"customer_id":  o.CustomerID,
			"customer":     o.Customer.Name,
			"order_date":   o.OrderDate.Format(time.RFC3339),
			"ship_date":    o.ShipDate,
			"total_amount": o.TotalAmount,
			"status":       o.Status,
			"attributes":   o.Attributes,
			"items":        items,
		}

		ctx.SetContentType("application/json")
		body, _ := json.Marshal(resp)
		ctx.SetBody(body)
	}
}
