package handlers

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/valyala/fasthttp"
	"gorm.io/gorm"

	"shopmetrics/internal/config"
	dbpkg "shopmetrics/internal/db"
)

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "sm_" + base64.URLEncoding.EncodeToString(b), nil
}

// ListAPIKeys returns the caller's API keys (key values included, they
// are bearer credentials the caller already owns).
func ListAPIKeys(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}

		var keys []dbpkg.APIKey
		if err := db.Where("user_id = ?", user.ID).Order("created_at DESC").Find(&keys).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load API keys")
			return
		}

		rows := make([]map[string]any, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, map[string]any{
				"id":          k.ID,
				"name":        k.Name,
				"environment": k.Environment,
				"key":         k.Key,
				"active":      k.Active,
			})
		}
		jsonResponse(ctx, map[string]any{"api_keys": rows})
	}
}

func CreateAPIKey(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}

		name := string(ctx.PostArgs().Peek("name"))
		environment := string(ctx.PostArgs().Peek("environment"))

		if name == "" || environment == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "name and environment required")
			return
		}

		key, err := generateAPIKey()
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to generate API key")
			return
		}

		apiKey := &dbpkg.APIKey{
			UserID:      user.ID,
			Name:        name,
			Environment: environment,
			Key:         key,
			Active:      true,
		}

		if err := db.Create(apiKey).Error; err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "failed to create API key (name may already exist for this user)")
			return
		}

		jsonResponse(ctx, map[string]any{"id": apiKey.ID, "name": apiKey.Name, "key": apiKey.Key})
	}
}

func DeleteAPIKey(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}

		id := string(ctx.QueryArgs().Peek("id"))
		if id == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "id required")
			return
		}

		var apiKey dbpkg.APIKey
		if err := db.First(&apiKey, id).Error; err != nil {
			errResponse(ctx, fasthttp.StatusNotFound, "API key not found")
			return
		}

		if apiKey.UserID != user.ID && !user.IsAdmin {
			errResponse(ctx, fasthttp.StatusForbidden, "forbidden")
			return
		}

		if cfg.LoaderAPIKey != "" && apiKey.Key == cfg.LoaderAPIKey {
			errResponse(ctx, fasthttp.StatusForbidden, "cannot delete bootstrap loader API key")
			return
		}

		if err := db.Delete(&apiKey).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to delete API key")
			return
		}

		jsonResponse(ctx, map[string]any{"status": "ok"})
	}
}

func SetActiveAPIKey(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		user, ok := MustUser(ctx)
		if !ok {
			return
		}

		id := string(ctx.PostArgs().Peek("id"))
		activeStr := string(ctx.PostArgs().Peek("active"))
		if id == "" || (activeStr != "true" && activeStr != "false") {
			errResponse(ctx, fasthttp.StatusBadRequest, "id and active (true|false) required")
			return
		}
		active := activeStr == "true"

		var apiKey dbpkg.APIKey
		if err := db.First(&apiKey, id).Error; err != nil {
			errResponse(ctx, fasthttp.StatusNotFound, "API key not found")
			return
		}
		if apiKey.UserID != user.ID && !user.IsAdmin {
			errResponse(ctx, fasthttp.StatusForbidden, "forbidden")
			return
		}

		if err := db.Model(&apiKey).Update("active", active).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to update API key")
			return
		}
		jsonResponse(ctx, map[string]any{"status": "ok"})
	}
}
