package handlers

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dagalow/coach-assistant/internal/auth"
	"github.com/dagalow/coach-assistant/internal/common"
	emailpkg "github.com/dagalow/coach-assistant/internal/email"
	"github.com/dagalow/coach-assistant/internal/models"
)

const tokenTTL = 72 * time.Hour

type createUserReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid request body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing models.User
	err := h.DB.Where("email = ?", email).First(&existing).Error
	if err == nil {
		common.Fail(c, http.StatusConflict, 40901, "email already registered")
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	username, err := randomUsername()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	u := models.User{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(req.FullName),
		Phone:        strings.TrimSpace(req.Phone),
	}
	if err := h.DB.Create(&u).Error; err != nil {
		log.Printf("[Users] create failed email=%s: %v", email, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create user")
		return
	}

	if h.SMTP.Configured() {
		go func(to, name string) {
			body := fmt.Sprintf("Hi %s,\n\nWelcome! Your account is ready. Start a chat anytime to book a consultation or explore the coaching programs.\n", name)
			if err := emailpkg.SendText(h.SMTP, to, "Welcome to DaGalow Coaching", body); err != nil {
				log.Printf("[Users] welcome email failed to=%s: %v", to, err)
			}
		}(u.Email, u.FullName)
	}

	token, err := auth.SignJWT(u.ID, h.Cfg.JWTSecret, tokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{
		"token": token,
		"user": gin.H{
			"id":        u.ID,
			"email":     u.Email,
			"username":  u.Username,
			"full_name": u.FullName,
		},
	})
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid request body")
		return
	}

	var u models.User
	err := h.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).First(&u).Error
	if err != nil {
		common.Fail(c, http.StatusUnauthorized, 40102, "invalid credentials")
		return
	}
	if !auth.CheckPassword(u.PasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40102, "invalid credentials")
		return
	}

	token, err := auth.SignJWT(u.ID, h.Cfg.JWTSecret, tokenTTL)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	common.OK(c, gin.H{
		"token": token,
		"user": gin.H{
			"id":        u.ID,
			"email":     u.Email,
			"username":  u.Username,
			"full_name": u.FullName,
		},
	})
}

func (h *Handler) Me(c *gin.Context) {
	uid := userIDFromContext(c)
	if uid == nil {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var u models.User
	if err := h.DB.First(&u, *uid).Error; err != nil {
		common.Fail(c, http.StatusNotFound, 40401, "user not found")
		return
	}

	common.OK(c, gin.H{
		"id":        u.ID,
		"email":     u.Email,
		"username":  u.Username,
		"full_name": u.FullName,
		"phone":     u.Phone,
	})
}

const usernameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomUsername() (string, error) {
	b := make([]byte, 11)
	max := big.NewInt(int64(len(usernameAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = usernameAlphabet[n.Int64()]
	}
	return string(b), nil
}
