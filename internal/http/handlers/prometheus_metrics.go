package handlers

import (
	"bytes"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"
)

// SourceMetricsHandler exposes the Prometheus registry in text format,
// authenticated with an API key via the api-key query parameter. Metric
// families carrying a "source" label are filtered down to the caller's
// own source (the key's name); unlabeled families pass through.
func SourceMetricsHandler(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		apiKeyValue := string(ctx.QueryArgs().Peek("api-key"))
		if apiKeyValue == "" {
			ctx.SetStatusCode(fasthttp.StatusUnauthorized)
			ctx.SetBodyString("missing api-key query parameter")
			return
		}

		var key struct {
			ID   uint
			Name string
		}
		if err := db.Table("api_keys").
			Select("id", "name").
			Where("key = ? AND active = ?", apiKeyValue, true).
			Take(&key).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("invalid API key")
				return
			}
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString("database error")
			return
		}

		sourceName := key.Name

		metricFamilies, err := prometheus.DefaultGatherer.Gather()
		if err != nil {
			ctx.SetStatusCode(fasthttp.StatusInternalServerError)
			ctx.SetBodyString("failed to gather metrics")
			return
		}

		filtered := make([]*dto.MetricFamily, 0, len(metricFamilies))
		for _, mf := range metricFamilies {
			hasSourceLabel := false
			for _, m := range mf.GetMetric() {
				for _, l := range m.GetLabel() {
					if l.GetName() == "source" {
						hasSourceLabel = true
						break
					}
				}
				if hasSourceLabel {
					break
				}
			}

			if !hasSourceLabel {
				filtered = append(filtered, mf)
				continue
			}

			var kept []*dto.Metric
			for _, m := range mf.GetMetric() {
				include := false
				for _, l := range m.GetLabel() {
					if l.GetName() == "source" && l.GetValue() == sourceName {
						include = true
						break
					}
				}
				if include {
					kept = append(kept, m)
				}
			}

			if len(kept) == 0 {
				continue
			}

			filtered = append(filtered, &dto.MetricFamily{
				Name:   mf.Name,
				Help:   mf.Help,
				Type:   mf.Type,
				Metric: kept,
			})
		}

		var buf bytes.Buffer
		encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
		for _, mf := range filtered {
			if err := encoder.Encode(mf); err != nil {
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetBodyString("failed to encode metrics")
				return
			}
		}

		ctx.SetContentType(string(expfmt.FmtText))
		ctx.Response.Header.Set("Cache-Control", "no-store")
		ctx.SetBody(buf.Bytes())
	}
}
