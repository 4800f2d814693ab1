package handlers

import (
	"encoding/json"
	"log"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	dbpkg "shopmetrics/internal/db"
	httpctx "shopmetrics/internal/http/ctx"
)

// MustUser returns the current user from context, or sends 401 and returns (nil, false).
func MustUser(ctx *fasthttp.RequestCtx) (*dbpkg.User, bool) {
	user, ok := httpctx.UserFromCtx(ctx)
	if !ok || user == nil {
		ctx.SetStatusCode(fasthttp.StatusUnauthorized)
		ctx.SetBodyString("unauthorized")
		return nil, false
	}
	return user, true
}

// MustAdmin is MustUser plus an admin check.
func MustAdmin(ctx *fasthttp.RequestCtx) (*dbpkg.User, bool) {
	user, ok := MustUser(ctx)
	if !ok {
		return nil, false
	}
	if !user.IsAdmin {
		ctx.SetStatusCode(fasthttp.StatusForbidden)
		ctx.SetBodyString("forbidden")
		return nil, false
	}
	return user, true
}

// RequestLogger returns fasthttp middleware that logs method, path, status, duration.
func RequestLogger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		log.Printf("%s %s -> %d (%s) ip=%s", ctx.Method(), ctx.Path(), ctx.Response.StatusCode(), time.Since(start), ctx.RemoteAddr())
	}
}

func jsonResponse(ctx *fasthttp.RequestCtx, data map[string]any) {
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(data)
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, code int, msg string) {
	ctx.SetStatusCode(code)
	ctx.SetBodyString(msg)
}

// parseAsOf reads the optional "as_of" query parameter (RFC 3339 or
// YYYY-MM-DD) used to pin recency computations to a fixed point in
// time. Defaults to now in UTC.
func parseAsOf(ctx *fasthttp.RequestCtx) (time.Time, bool) {
	v := string(ctx.QueryArgs().Peek("as_of"))
	if v == "" {
		return time.Now().UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t.UTC(), true
	}
	errResponse(ctx, fasthttp.StatusBadRequest, "invalid as_of (want RFC 3339 or YYYY-MM-DD)")
	return time.Time{}, false
}

// parseLimit reads "limit" from the query, clamped to maxLimit, with a default.
func parseLimit(ctx *fasthttp.RequestCtx, def, maxLimit int) int {
	limit := def
	if s := string(ctx.QueryArgs().Peek("limit")); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			if n > maxLimit {
				n = maxLimit
			}
			limit = n
		}
	}
	return limit
}
