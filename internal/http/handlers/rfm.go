package handlers

import (
	"strconv"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	dbpkg "shopmetrics/internal/db"
)

// Segments returns the RFM segment breakdown from the last analysis run,
// including the explicit "No Activity" bucket for customers without a
// completed order.
func Segments(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		rows, err := dbpkg.SegmentBreakdown(db)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query segments")
			return
		}
		jsonResponse(ctx, map[string]any{"segments": rows})
	}
}

type rfmScoreRow struct {
	CustomerID uint    `json:"customer_id"`
	Name       string  `json:"name"`
	Recency    *int    `json:"recency"`
	Frequency  int64   `json:"frequency"`
	Monetary   float64 `json:"monetary"`
	RScore     *int    `json:"r_score"`
	FScore     *int    `json:"f_score"`
	MScore     *int    `json:"m_score"`
	Segment    string  `json:"segment"`
}

// RFMScores lists persisted per-customer RFM scores, optionally filtered
// by segment, ordered by monetary value descending.
func RFMScores(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		limit := parseLimit(ctx, 50, 500)
		offset := 0
		if s := string(ctx.QueryArgs().Peek("offset")); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n >= 0 {
				offset = n
			}
		}
		segment := string(ctx.QueryArgs().Peek("segment"))

		q := db.Model(&dbpkg.RFMScore{}).
			Joins("JOIN customers ON customers.id = rfm_scores.customer_id")
		if segment != "" {
			q = q.Where("rfm_scores.segment = ?", segment)
		}

		var totalCount int64
		if err := q.Count(&totalCount).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to count RFM scores")
			return
		}

		var rows []rfmScoreRow
		if err := q.
			Select("rfm_scores.customer_id AS customer_id, customers.name AS name, " +
				"rfm_scores.recency AS recency, rfm_scores.frequency AS frequency, " +
				"rfm_scores.monetary AS monetary, rfm_scores.r_score AS r_score, " +
				"rfm_scores.f_score AS f_score, rfm_scores.m_score AS m_score, " +
				"rfm_scores.segment AS segment").
			Order("rfm_scores.monetary DESC, rfm_scores.customer_id").
			Limit(limit).
			Offset(offset).
			Scan(&rows).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to query RFM scores")
			return
		}

		hasMore := offset+limit < int(totalCount)
		jsonResponse(ctx, map[string]any{"scores": rows, "total": totalCount, "has_more": hasMore})
	}
}

// RunAnalysis synchronously recomputes the persisted RFM and cohort
// tables, optionally pinned to an explicit as_of time.
func RunAnalysis(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustAdmin(ctx); !ok {
			return
		}
		asOf, ok := parseAsOf(ctx)
		if !ok {
			return
		}

		if err := dbpkg.RunAnalysisOnce(db, asOf); err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "analysis run failed")
			return
		}
		jsonResponse(ctx, map[string]any{"status": "ok", "as_of": asOf})
	}
}
