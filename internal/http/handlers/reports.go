package handlers

import (
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"shopmetrics/internal/config"
	dbpkg "shopmetrics/internal/db"
)

// LifetimeValue ranks customers by completed-order revenue with their
// recency-based activity tier (Active / At Risk / Churned).
func LifetimeValue(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		asOf, ok := parseAsOf(ctx)
		if !ok {
			return
		}
		limit := parseLimit(ctx, 50, 500)

		rows, err := dbpkg.LifetimeValueRanking(db, asOf, cfg.ActiveDays, cfg.ChurnDays, limit)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query lifetime value")
			return
		}
		jsonResponse(ctx, map[string]any{"as_of": asOf, "customers": rows})
	}
}

// Acquisition reports monthly new-customer counts with a running total.
func Acquisition(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		rows, err := dbpkg.MonthlyAcquisition(db)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query acquisition")
			return
		}
		jsonResponse(ctx, map[string]any{"series": rows})
	}
}

// RepeatRate reports the share of customers with more than one completed order.
func RepeatRate(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		report, err := dbpkg.RepeatPurchaseRate(db)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query repeat rate")
			return
		}
		jsonResponse(ctx, map[string]any{
			"customers":        report.Customers,
			"repeat_customers": report.RepeatCustomers,
			"repeat_rate_pct":  report.RatePct,
		})
	}
}

// TopProducts lists the best-selling products by revenue.
func TopProducts(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		limit := parseLimit(ctx, 10, 100)
		rows, err := dbpkg.TopProducts(db, limit)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query top products")
			return
		}
		jsonResponse(ctx, map[string]any{"products": rows})
	}
}

// Categories lists per-category sales performance.
func Categories(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		rows, err := dbpkg.CategoryPerformance(db)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query categories")
			return
		}
		jsonResponse(ctx, map[string]any{"categories": rows})
	}
}

// Affinity lists product pairs frequently bought together.
func Affinity(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		limit := parseLimit(ctx, cfg.AffinityLimit, 100)
		rows, err := dbpkg.ProductAffinity(db, cfg.AffinityMinSupport, limit)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query product affinity")
			return
		}
		jsonResponse(ctx, map[string]any{"pairs": rows, "min_support": cfg.AffinityMinSupport})
	}
}

// RevenueGrowth reports the month-over-month revenue growth series.
func RevenueGrowth(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		rows, err := dbpkg.RevenueGrowth(db)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query revenue growth")
			return
		}
		jsonResponse(ctx, map[string]any{"series": rows})
	}
}

// RevenueByCountry reports completed-order revenue per country.
func RevenueByCountry(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		rows, err := dbpkg.RevenueByCountry(db)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query revenue by country")
			return
		}
		jsonResponse(ctx, map[string]any{"countries": rows})
	}
}

// RevenueByWeekday reports completed-order revenue per day of week.
func RevenueByWeekday(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		rows, err := dbpkg.RevenueByWeekday(db)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query revenue by weekday")
			return
		}
		jsonResponse(ctx, map[string]any{"weekdays": rows})
	}
}

// Churn reports the share of customers inactive beyond the churn threshold.
func Churn(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		asOf, ok := parseAsOf(ctx)
		if !ok {
			return
		}
		report, err := dbpkg.ChurnRate(db, asOf, cfg.ChurnDays)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query churn rate")
			return
		}
		jsonResponse(ctx, map[string]any{
			"as_of":          asOf,
			"customers":      report.Customers,
			"churned":        report.Churned,
			"churn_rate_pct": report.RatePct,
			"churn_days":     cfg.ChurnDays,
		})
	}
}

// CustomerSummary returns the per-customer aggregate formerly exposed as
// the customer_summary view.
func CustomerSummary(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		asOf, ok := parseAsOf(ctx)
		if !ok {
			return
		}
		rows, err := dbpkg.CustomerSummaries(db, asOf)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query customer summary")
			return
		}
		jsonResponse(ctx, map[string]any{"as_of": asOf, "customers": rows})
	}
}

// MonthlyRevenue returns the per-month aggregate formerly exposed as the
// monthly_revenue view.
func MonthlyRevenue(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		rows, err := dbpkg.MonthlyRevenueSeries(db)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query monthly revenue")
			return
		}
		jsonResponse(ctx, map[string]any{"series": rows})
	}
}
