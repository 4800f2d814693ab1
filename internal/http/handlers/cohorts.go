package handlers

import (
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "shopmetrics/internal/db"
)

// Cohorts returns the retention matrix from the last analysis run: one
// row per acquisition cohort with distinct-customer counts and retention
// percentages per months-since-acquisition index.
func Cohorts(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		rows, err := dbpkg.RetentionMatrix(db)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query cohorts")
			return
		}
		jsonResponse(ctx, map[string]any{"cohorts": rows})
	}
}
