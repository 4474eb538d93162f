package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stillalive/api/models"
	"github.com/stillalive/api/utils"
)

// ContextUserKey is the gin context key holding the resolved user.
const ContextUserKey = "currentUser"

// ContextUserIDKey is the gin context key holding the resolved user ID.
const ContextUserIDKey = "currentUserID"

// DeviceAuth resolves the caller from the X-Device-ID header, creating
// the account on first contact. Devices are trusted as-is; there are no
// passwords in this model.
func DeviceAuth(db *gorm.DB) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		deviceID := strings.TrimSpace(ctx.GetHeader("X-Device-ID"))
		if deviceID == "" {
			deviceID = strings.TrimSpace(ctx.Query("deviceId"))
		}
		if deviceID == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "device id required")
			ctx.Abort()
			return
		}
		if len(deviceID) > 128 {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "device id too long")
			ctx.Abort()
			return
		}

		var user models.User
		err := db.WithContext(ctx.Request.Context()).
			Where("device_id = ?", deviceID).
			First(&user).Error
		if err == gorm.ErrRecordNotFound {
			user = models.User{DeviceID: deviceID, CheckInFrequency: 1}
			// The unique index on device_id absorbs the race when two
			// first requests from the same device land together.
			createErr := db.WithContext(ctx.Request.Context()).
				Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "device_id"}}, DoNothing: true}).
				Create(&user).Error
			if createErr != nil {
				utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to create account")
				ctx.Abort()
				return
			}
			if user.ID == 0 {
				err = db.WithContext(ctx.Request.Context()).
					Where("device_id = ?", deviceID).
					First(&user).Error
			} else {
				err = nil
			}
		}
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to load account")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserKey, &user)
		ctx.Set(ContextUserIDKey, user.ID)
		ctx.Next()
	}
}

// CurrentUser fetches the user placed on the context by DeviceAuth.
func CurrentUser(ctx *gin.Context) (*models.User, bool) {
	v, ok := ctx.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// CurrentUserID fetches the user ID placed on the context by DeviceAuth.
func CurrentUserID(ctx *gin.Context) (uint, bool) {
	v, ok := ctx.Get(ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
