package main

import (
	"log"
	"time"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"

	"shopmetrics/internal/config"
	"shopmetrics/internal/db"
	"shopmetrics/internal/http/handlers"
	appmw "shopmetrics/internal/http/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	sqlDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	if err := db.EnsureBootstrapAdmin(sqlDB, cfg); err != nil {
		log.Fatalf("failed to ensure bootstrap admin: %v", err)
	}

	if cfg.LoaderAPIKey != "" {
		if err := db.EnsureBootstrapLoaderKey(sqlDB, cfg); err != nil {
			log.Printf("warning: failed to ensure bootstrap loader key: %v", err)
		} else {
			log.Printf("loader API key configured and associated with admin user")
		}
	}

	handlers.InitPrometheusMetrics()
	appmw.InitHTTPMetrics()
	db.InitAnalysisMetrics()

	db.StartAnalysisWorker(sqlDB, time.Duration(cfg.AnalysisIntervalHours)*time.Hour)

	r := router.New()

	// Global middleware chain: request logger, then instrumentation, then router
	handler := handlers.RequestLogger(appmw.Instrument(r.Handler))

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})

	r.GET("/metrics", handlers.SourceMetricsHandler(sqlDB))

	bearer := appmw.BearerAuth(sqlDB)
	admin := appmw.AdminAuth(sqlDB, cfg)

	// Loader surface: bulk upserts of the base tables.
	r.POST("/v1/load/customers", bearer(handlers.LoadCustomers(sqlDB)))
	r.POST("/v1/load/products", bearer(handlers.LoadProducts(sqlDB)))
	r.POST("/v1/load/orders", bearer(handlers.LoadOrders(sqlDB)))

	r.GET("/v1/orders/{id}", bearer(handlers.OrderDetail(sqlDB)))

	// Reporting surface consumed by the dashboard/export layer.
	r.GET("/v1/reports/segments", bearer(handlers.Segments(sqlDB)))
	r.GET("/v1/reports/rfm", bearer(handlers.RFMScores(sqlDB)))
	r.GET("/v1/reports/cohorts", bearer(handlers.Cohorts(sqlDB)))
	r.GET("/v1/reports/clv", bearer(handlers.LifetimeValue(sqlDB, cfg)))
	r.GET("/v1/reports/acquisition", bearer(handlers.Acquisition(sqlDB)))
	r.GET("/v1/reports/repeat-rate", bearer(handlers.RepeatRate(sqlDB)))
	r.GET("/v1/reports/top-products", bearer(handlers.TopProducts(sqlDB)))
	r.GET("/v1/reports/categories", bearer(handlers.Categories(sqlDB)))
	r.GET("/v1/reports/affinity", bearer(handlers.Affinity(sqlDB, cfg)))
	r.GET("/v1/reports/revenue-growth", bearer(handlers.RevenueGrowth(sqlDB)))
	r.GET("/v1/reports/revenue-by-country", bearer(handlers.RevenueByCountry(sqlDB)))
	r.GET("/v1/reports/revenue-by-weekday", bearer(handlers.RevenueByWeekday(sqlDB)))
	r.GET("/v1/reports/churn", bearer(handlers.Churn(sqlDB, cfg)))
	r.GET("/v1/reports/customer-summary", bearer(handlers.CustomerSummary(sqlDB)))
	r.GET("/v1/reports/monthly-revenue", bearer(handlers.MonthlyRevenue(sqlDB)))

	// Admin surface.
	r.POST("/admin/analysis/run", admin(handlers.RunAnalysis(sqlDB)))

	r.GET("/admin/users", admin(handlers.ListUsers(sqlDB)))
	r.POST("/admin/users/create", admin(handlers.CreateUser(sqlDB)))
	r.POST("/admin/users/{id}/reset-password", admin(handlers.ResetPassword(sqlDB, cfg)))
	r.POST("/admin/users/{id}/delete", admin(handlers.DeleteUser(sqlDB, cfg)))

	r.GET("/admin/apikeys", admin(handlers.ListAPIKeys(sqlDB)))
	r.POST("/admin/apikeys/create", admin(handlers.CreateAPIKey(sqlDB)))
	r.POST("/admin/apikeys/delete", admin(handlers.DeleteAPIKey(sqlDB, cfg)))
	r.POST("/admin/apikeys/set-active", admin(handlers.SetActiveAPIKey(sqlDB)))

	r.GET("/admin/healthz", admin(func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("admin ok")
	}))

	log.Printf("shopmetrics listening on %s", cfg.ListenAddr)
	if err := fasthttp.ListenAndServe(cfg.ListenAddr, handler); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
