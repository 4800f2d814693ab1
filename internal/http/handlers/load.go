package handlers

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "shopmetrics/internal/db"
	httpctx "shopmetrics/internal/http/ctx"
)

var recordsLoadedTotal *prometheus.CounterVec

// InitPrometheusMetrics registers the load-path metrics. Call once at startup.
func InitPrometheusMetrics() {
	recordsLoadedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopmetrics",
			Name:      "records_loaded_total",
			Help:      "Total number of base-table records accepted from loaders.",
		},
		[]string{"source", "entity"},
	)
	prometheus.MustRegister(recordsLoadedTotal)
}

// loadDate accepts the date formats loaders actually send: a bare
// YYYY-MM-DD or a full RFC 3339 timestamp.
type loadDate struct {
	time.Time
}

func (d *loadDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		d.Time = t.UTC()
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	d.Time = t.UTC()
	return nil
}

func loaderSource(ctx *fasthttp.RequestCtx) string {
	if ak, ok := httpctx.APIKeyFromCtx(ctx); ok && ak != nil {
		return ak.Name
	}
	return ""
}

func countLoaded(source, entity string, n int) {
	if recordsLoadedTotal == nil {
		return
	}
	recordsLoadedTotal.WithLabelValues(source, entity).Add(float64(n))
}

func acceptedResponse(ctx *fasthttp.RequestCtx, n int) {
	ctx.SetStatusCode(fasthttp.StatusAccepted)
	ctx.SetContentType("application/json")
	ctx.SetBodyString(`{"status":"accepted","count":` + strconv.Itoa(n) + `}`)
}

type loadCustomer struct {
	ID               uint     `json:"customer_id"`
	Name             string   `json:"customer_name"`
	Email            string   `json:"email"`
	Country          string   `json:"country"`
	City             string   `json:"city"`
	RegistrationDate loadDate `json:"registration_date"`
}

// LoadCustomers bulk-upserts customers pushed by the external loader.
// Re-pushing the same batch is safe: rows are keyed by customer_id.
func LoadCustomers(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var payload struct {
			Customers []loadCustomer `json:"customers"`
		}
		if err := json.Unmarshal(ctx.PostBody(), &payload); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(payload.Customers) == 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "no customers provided")
			return
		}

		records := make([]dbpkg.Customer, 0, len(payload.Customers))
		for _, c := range payload.Customers {
			if c.ID == 0 || c.Email == "" {
				continue
			}
			records = append(records, dbpkg.Customer{
				ID:               c.ID,
				Name:             c.Name,
				Email:            c.Email,
				Country:          c.Country,
				City:             c.City,
				RegistrationDate: c.RegistrationDate.Time,
			})
		}
		if len(records) == 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "no valid customers after validation")
			return
		}

		if err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "email", "country", "city", "registration_date",
			}),
		}).Create(&records).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to persist customers")
			return
		}

		countLoaded(loaderSource(ctx), "customers", len(records))
		acceptedResponse(ctx, len(records))
	}
}

type loadProduct struct {
	ID          uint    `json:"product_id"`
	Name        string  `json:"product_name"`
	Category    string  `json:"category"`
	SubCategory string  `json:"sub_category"`
	UnitPrice   float64 `json:"unit_price"`
}

// LoadProducts bulk-upserts catalog items pushed by the external loader.
func LoadProducts(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var payload struct {
			Products []loadProduct `json:"products"`
		}
		if err := json.Unmarshal(ctx.PostBody(), &payload); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(payload.Products) == 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "no products provided")
			return
		}

		records := make([]dbpkg.Product, 0, len(payload.Products))
		for _, p := range payload.Products {
			if p.ID == 0 || p.Name == "" || p.UnitPrice < 0 {
				continue
			}
			records = append(records, dbpkg.Product{
				ID:          p.ID,
				Name:        p.Name,
				Category:    p.Category,
				SubCategory: p.SubCategory,
				UnitPrice:   p.UnitPrice,
			})
		}
		if len(records) == 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "no valid products after validation")
			return
		}

		if err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "category", "sub_category", "unit_price",
			}),
		}).Create(&records).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to persist products")
			return
		}

		countLoaded(loaderSource(ctx), "products", len(records))
		acceptedResponse(ctx, len(records))
	}
}

type loadOrderItem struct {
	ID        uint    `json:"order_item_id"`
	ProductID uint    `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Discount  float64 `json:"discount"`
	LineTotal float64 `json:"line_total"`
}

type loadOrder struct {
	ID          uint            `json:"order_id"`
	CustomerID  uint            `json:"customer_id"`
	OrderDate   loadDate        `json:"order_date"`
	ShipDate    *loadDate       `json:"ship_date,omitempty"`
	TotalAmount float64         `json:"total_amount"`
	Status      string          `json:"order_status"`
	Attributes  map[string]any  `json:"attributes,omitempty"`
	Items       []loadOrderItem `json:"items"`
}

func validOrderStatus(s string) bool {
	switch s {
	case dbpkg.OrderCompleted, dbpkg.OrderPending, dbpkg.OrderCancelled:
		return true
	}
	return false
}

// LoadOrders bulk-upserts orders with their line items. Referential
// integrity to customers and products is the loader's responsibility;
// unknown statuses and non-positive quantities are rejected here since
// they would silently corrupt every downstream aggregate.
func LoadOrders(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var payload struct {
			Orders []loadOrder `json:"orders"`
		}
		if err := json.Unmarshal(ctx.PostBody(), &payload); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(payload.Orders) == 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "no orders provided")
			return
		}

		orders := make([]dbpkg.Order, 0, len(payload.Orders))
		items := make([]dbpkg.OrderItem, 0)
		for _, o := range payload.Orders {
			if o.ID == 0 || o.CustomerID == 0 || o.OrderDate.IsZero() || !validOrderStatus(o.Status) {
				continue
			}

			var shipDate *time.Time
			if o.ShipDate != nil && !o.ShipDate.IsZero() {
				t := o.ShipDate.Time
				shipDate = &t
			}

			attrs := datatypes.JSONMap{}
			for k, v := range o.Attributes {
				attrs[k] = v
			}

			orders = append(orders, dbpkg.Order{
				ID:          o.ID,
				CustomerID:  o.CustomerID,
				OrderDate:   o.OrderDate.Time,
				ShipDate:    shipDate,
				TotalAmount: o.TotalAmount,
				Status:      o.Status,
				Attributes:  attrs,
			})

			for _, it := range o.Items {
				if it.ID == 0 || it.ProductID == 0 || it.Quantity <= 0 {
					continue
				}
				items = append(items, dbpkg.OrderItem{
					ID:        it.ID,
					OrderID:   o.ID,
					ProductID: it.ProductID,
					Quantity:  it.Quantity,
					UnitPrice: it.UnitPrice,
					Discount:  it.Discount,
					LineTotal: it.LineTotal,
				})
			}
		}
		if len(orders) == 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "no valid orders after validation")
			return
		}

		if err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"customer_id", "order_date", "ship_date", "total_amount", "status", "attributes",
			}),
		}).Create(&orders).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to persist orders")
			return
		}
		if len(items) > 0 {
			if err := db.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"order_id", "product_id", "quantity", "unit_price", "discount", "line_total",
				}),
			}).Create(&items).Error; err != nil {
				errResponse(ctx, fasthttp.StatusInternalServerError, "failed to persist order items")
				return
			}
		}

		source := loaderSource(ctx)
		countLoaded(source, "orders", len(orders))
		countLoaded(source, "order_items", len(items))
		acceptedResponse(ctx, len(orders))
	}
}
