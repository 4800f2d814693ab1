package handlers

import (
	"strconv"

	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"shopmetrics/internal/config"
	dbpkg "shopmetrics/internal/db"
)

// ListUsers returns all operator accounts.
func ListUsers(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustAdmin(ctx); !ok {
			return
		}

		var users []dbpkg.User
		if err := db.Order("created_at DESC").Find(&users).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to load users")
			return
		}

		rows := make([]map[string]any, 0, len(users))
		for _, u := range users {
			rows = append(rows, map[string]any{
				"id":       u.ID,
				"username": u.Username,
				"is_admin": u.IsAdmin,
			})
		}
		jsonResponse(ctx, map[string]any{"users": rows})
	}
}

func CreateUser(db *gorm.DB) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustAdmin(ctx); !ok {
			return
		}

		username := string(ctx.PostArgs().Peek("username"))
		password := string(ctx.PostArgs().Peek("password"))
		isAdminStr := string(ctx.PostArgs().Peek("is_admin"))

		if username == "" || password == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "username and password required")
			return
		}

		isAdmin := isAdminStr == "true"

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to hash password")
			return
		}

		user := &dbpkg.User{
			Username:     username,
			PasswordHash: string(hash),
			IsAdmin:      isAdmin,
		}

		if err := db.Create(user).Error; err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "failed to create user (username may already exist)")
			return
		}

		jsonResponse(ctx, map[string]any{"id": user.ID, "username": user.Username, "is_admin": user.IsAdmin})
	}
}

func userFromPathID(ctx *fasthttp.RequestCtx, db *gorm.DB) (*dbpkg.User, bool) {
	idVal := ctx.UserValue("id")
	if idVal == nil {
		errResponse(ctx, fasthttp.StatusBadRequest, "invalid user ID")
		return nil, false
	}
	idStr, ok := idVal.(string)
	if !ok {
		errResponse(ctx, fasthttp.StatusBadRequest, "invalid user ID")
		return nil, false
	}
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		errResponse(ctx, fasthttp.StatusBadRequest, "invalid user ID")
		return nil, false
	}

	var user dbpkg.User
	if err := db.First(&user, id).Error; err != nil {
		errResponse(ctx, fasthttp.StatusNotFound, "user not found")
		return nil, false
	}
	return &user, true
}

func ResetPassword(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustAdmin(ctx); !ok {
			return
		}
		user, ok := userFromPathID(ctx, db)
		if !ok {
			return
		}

		if user.Username == cfg.AdminUser {
			errResponse(ctx, fasthttp.StatusForbidden, "cannot modify bootstrap admin user")
			return
		}

		password := string(ctx.PostArgs().Peek("password"))
		if password == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "password required")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to hash password")
			return
		}

		if err := db.Model(user).Update("password_hash", string(hash)).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to update password")
			return
		}

		jsonResponse(ctx, map[string]any{"status": "ok"})
	}
}

func DeleteUser(db *gorm.DB, cfg *config.Config) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		if _, ok := MustAdmin(ctx); !ok {
			return
		}
		user, ok := userFromPathID(ctx, db)
		if !ok {
			return
		}

		if user.Username == cfg.AdminUser {
			errResponse(ctx, fasthttp.StatusForbidden, "cannot delete bootstrap admin user")
			return
		}

		if err := db.Delete(user).Error; err != nil {
			errResponse(ctx, fasthttp.StatusInternalServerError, "failed to delete user")
			return
		}

		jsonResponse(ctx, map[string]any{"status": "ok"})
	}
}
