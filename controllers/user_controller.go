package controllers

import (
	"crypto/rand"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/stillalive/api/liveness"
	"github.com/stillalive/api/middleware"
	"github.com/stillalive/api/models"
	"github.com/stillalive/api/registry"
	"github.com/stillalive/api/utils"
)

// codeCharset excludes ambiguous characters (0/O, 1/I/L) so codes
// survive being read aloud over the phone.
const codeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 6

// UserController manages the caller's own account.
type UserController struct {
	db  *gorm.DB
	reg *registry.Registry
}

// NewUserController constructs the controller.
func NewUserController(db *gorm.DB) *UserController {
	return &UserController{
		db:  db,
		reg: registry.New(registry.NewGormStore(db)),
	}
}

// Me returns the caller's profile.
func (u *UserController) Me(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "device id required")
		return
	}
	utils.Success(ctx, user)
}

// UpdateName changes the caller's display name.
func (u *UserController) UpdateName(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "device id required")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request body")
		return
	}

	name := utils.SanitizeName(req.Name)
	if name == "" {
		utils.Error(ctx, http.StatusBadRequest, 40002, "name must not be empty")
		return
	}
	if len(name) > 64 {
		utils.Error(ctx, http.StatusBadRequest, 40003, "name too long")
		return
	}

	if err := u.db.WithContext(ctx.Request.Context()).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("display_name", name).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to update name")
		return
	}
	user.DisplayName = name
	utils.Success(ctx, gin.H{"display_name": name})
}

// UpdateFrequency changes how often the caller must check in, in days.
func (u *UserController) UpdateFrequency(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "device id required")
		return
	}

	var req struct {
		Frequency int `json:"frequency"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request body")
		return
	}
	if req.Frequency < liveness.MinFrequencyDays || req.Frequency > liveness.MaxFrequencyDays {
		utils.Error(ctx, http.StatusBadRequest, 40004,
			fmt.Sprintf("frequency must be between %d and %d days", liveness.MinFrequencyDays, liveness.MaxFrequencyDays))
		return
	}

	if err := u.db.WithContext(ctx.Request.Context()).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("check_in_frequency", req.Frequency).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to update frequency")
		return
	}
	utils.Success(ctx, gin.H{"check_in_frequency": req.Frequency})
}

// GenerateCode returns the caller's share code, minting one on first
// call. The code never changes once assigned.
func (u *UserController) GenerateCode(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "device id required")
		return
	}
	if user.Code != "" {
		utils.Success(ctx, gin.H{"code": user.Code})
		return
	}

	for attempt := 0; attempt < 10; attempt++ {
		code, err := randomCode(codeLength)
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to generate code")
			return
		}

		var taken int64
		if err := u.db.WithContext(ctx.Request.Context()).
			Model(&models.User{}).
			Where("code = ?", code).
			Count(&taken).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to generate code")
			return
		}
		if taken > 0 {
			continue
		}

		if err := u.db.WithContext(ctx.Request.Context()).
			Model(&models.User{}).
			Where("id = ?", user.ID).
			Update("code", code).Error; err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50005, "failed to generate code")
			return
		}
		user.Code = code
		utils.Success(ctx, gin.H{"code": code})
		return
	}
	utils.Error(ctx, http.StatusInternalServerError, 50006, "could not allocate a unique code")
}

// DeleteAccount removes the caller and every row referencing them:
// watches in both directions (with counter upkeep), squad members,
// check-in history, and the alert ledger.
func (u *UserController) DeleteAccount(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "device id required")
		return
	}

	rctx := ctx.Request.Context()
	if err := u.reg.RemoveAllForUser(rctx, user.ID); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to delete account")
		return
	}

	err := u.db.WithContext(rctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.SquadMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.CheckIn{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.MissedAlert{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, user.ID).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50007, "failed to delete account")
		return
	}

	// The user and alert counters just changed; drop cached stats so the
	// public endpoint does not serve the deleted account for a minute.
	utils.InvalidateByPrefix("stats:")

	utils.Success(ctx, gin.H{"deleted": true})
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = codeCharset[int(b)%len(codeCharset)]
	}
	return string(out), nil
}
