package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stillalive/api/middleware"
	"github.com/stillalive/api/models"
	"github.com/stillalive/api/utils"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// SquadController manages a user's trusted alert recipients.
type SquadController struct {
	db *gorm.DB
}

// NewSquadController constructs the controller.
func NewSquadController(db *gorm.DB) *SquadController {
	return &SquadController{db: db}
}

// AddMember adds one email to the caller's squad. Emails are stored
// lowercased; duplicates conflict and the squad is capped.
func (s *SquadController) AddMember(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "device id required")
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailPattern.MatchString(email) {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid email address")
		return
	}

	member := models.SquadMember{
		MemberID: uuid.NewString(),
		UserID:   userID,
		Email:    email,
		AddedAt:  time.Now(),
	}

	err := s.db.WithContext(ctx.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.SquadMember{}).
			Where("user_id = ?", userID).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= models.MaxSquadMembers {
			return errSquadFull
		}

		var existing models.SquadMember
		err := tx.Where("user_id = ? AND email = ?", userID, email).First(&existing).Error
		if err == nil {
			return errSquadDuplicate
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		return tx.Create(&member).Error
	})

	switch {
	case errors.Is(err, errSquadFull):
		utils.Error(ctx, http.StatusBadRequest, 40011,
			fmt.Sprintf("squad is limited to %d members", models.MaxSquadMembers))
	case errors.Is(err, errSquadDuplicate), errors.Is(err, gorm.ErrDuplicatedKey):
		utils.Error(ctx, http.StatusConflict, 40901, "email already in squad")
	case err != nil:
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to add squad member")
	default:
		utils.Success(ctx, member)
	}
}

// List returns the caller's squad in insertion order.
func (s *SquadController) List(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "device id required")
		return
	}

	var members []models.SquadMember
	if err := s.db.WithContext(ctx.Request.Context()).
		Where("user_id = ?", userID).
		Order("added_at ASC").
		Find(&members).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to load squad")
		return
	}
	utils.Success(ctx, gin.H{"members": members, "count": len(members)})
}

// Remove deletes one squad member by its public id. Scoped to the
// caller so one user cannot remove another's contacts.
func (s *SquadController) Remove(ctx *gin.Context) {
	userID, ok := middleware.CurrentUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40101, "device id required")
		return
	}

	memberID := ctx.Param("memberId")
	res := s.db.WithContext(ctx.Request.Context()).
		Where("member_id = ? AND user_id = ?", memberID, userID).
		Delete(&models.SquadMember{})
	if res.Error != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to remove squad member")
		return
	}
	if res.RowsAffected == 0 {
		utils.Error(ctx, http.StatusNotFound, 40410, "squad member not found")
		return
	}
	utils.Success(ctx, gin.H{"removed": true})
}

var (
	errSquadFull      = errors.New("squad full")
	errSquadDuplicate = errors.New("duplicate squad email")
)
