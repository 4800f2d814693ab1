package middleware

import (
	"bytes"
	"encoding/base64"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"shopmetrics/internal/config"
	dbpkg "shopmetrics/internal/db"
	httpctx "shopmetrics/internal/http/ctx"
)

// AdminAuth returns middleware that authenticates admin endpoints with
// HTTP Basic credentials checked against the users table and sets the
// user on the context.
func AdminAuth(db *gorm.DB, cfg *config.Config) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			username, password, ok := basicCredentials(ctx)
			if !ok {
				unauthorized(ctx)
				return
			}

			var user dbpkg.User
			if err := db.Where("username = ?", username).First(&user).Error; err != nil {
				unauthorized(ctx)
				return
			}
			if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
				unauthorized(ctx)
				return
			}

			if user.Username == cfg.AdminUser {
				user.IsAdmin = true
			}

			httpctx.SetUser(ctx, &user)
			next(ctx)
		}
	}
}

func basicCredentials(ctx *fasthttp.RequestCtx) (username, password string, ok bool) {
	auth := ctx.Request.Header.Peek("Authorization")
	const prefix = "Basic "
	if !bytes.HasPrefix(auth, []byte(prefix)) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(string(auth[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	idx := bytes.IndexByte(decoded, ':')
	if idx < 0 {
		return "", "", false
	}
	return string(decoded[:idx]), string(decoded[idx+1:]), true
}

func unauthorized(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set("WWW-Authenticate", `Basic realm="shopmetrics admin"`)
	ctx.SetStatusCode(fasthttp.StatusUnauthorized)
	ctx.SetBodyString("unauthorized")
}
