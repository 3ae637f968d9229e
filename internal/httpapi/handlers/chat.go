package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dagalow/coach-assistant/internal/assistant"
	"github.com/dagalow/coach-assistant/internal/common"
	"github.com/dagalow/coach-assistant/internal/httpapi/middleware"
	"github.com/dagalow/coach-assistant/internal/models"
)

func userIDFromContext(c *gin.Context) *uint64 {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return nil
	}
	id, ok := v.(uint64)
	if !ok {
		return nil
	}
	return &id
}

// caller resolves who is talking: optional user id, their profile, and the
// subject key for the ephemeral session tier (anonymous callers may supply
// a stable X-Client-ID; without one the tier is skipped).
func (h *Handler) caller(c *gin.Context) (*uint64, *models.Profile, string) {
	uid := userIDFromContext(c)
	if uid != nil {
		var u models.User
		if err := h.DB.First(&u, *uid).Error; err != nil {
			log.Printf("[Chat] profile load failed user=%d: %v", *uid, err)
			return uid, nil, fmt.Sprintf("user:%d", *uid)
		}
		return uid, u.Profile(), fmt.Sprintf("user:%d", *uid)
	}
	if cid := strings.TrimSpace(c.GetHeader("X-Client-ID")); cid != "" {
		return nil, nil, "anon:" + cid
	}
	return nil, nil, ""
}

// sessionParam accepts the id from the query string (session_id, then sid)
// or the request body value, in that order.
func sessionParam(c *gin.Context, bodyValue string) string {
	if v := c.Query("session_id"); v != "" {
		return v
	}
	if v := c.Query("sid"); v != "" {
		return v
	}
	return bodyValue
}

type sendMessageReq struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message" binding:"required"`
}

func (h *Handler) SendChatMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	uid, profile, subject := h.caller(c)
	sid, err := h.Resolver.Resolve(c.Request.Context(), sessionParam(c, req.SessionID), subject, uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	reply, action, err := h.ChatSvc.SendMessage(c.Request.Context(), sid, uid, profile, req.Message)
	if err != nil {
		log.Printf("[Chat] send failed session=%s: %v", sid, err)
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to send message")
		return
	}

	common.OK(c, gin.H{
		"session_id": sid,
		"reply":      reply.Content,
		"message_id": reply.ID,
		"action":     action,
	})
}

type welcomeReq struct {
	SessionID string `json:"session_id"`
}

// Welcome emits the opening assistant turn for an empty session. Safe to
// call repeatedly (page remounts): the controller guards guarantee at most
// one persisted welcome per session.
func (h *Handler) Welcome(c *gin.Context) {
	var req welcomeReq
	_ = c.ShouldBindJSON(&req) // empty body is fine

	uid, profile, subject := h.caller(c)
	sid, err := h.Resolver.Resolve(c.Request.Context(), sessionParam(c, req.SessionID), subject, uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	msg, created, err := h.ChatSvc.EnsureWelcome(c.Request.Context(), sid, uid, profile)
	if err != nil {
		log.Printf("[Chat] welcome failed session=%s: %v", sid, err)
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to generate welcome")
		return
	}

	resp := gin.H{"session_id": sid, "created": created}
	if msg != nil {
		resp["message"] = msg.Content
	}
	common.OK(c, resp)
}

// ListChatMessages returns the caller-visible transcript. Load errors,
// including row-policy denials, surface as an empty history rather than an
// error; detail goes to the log.
func (h *Handler) ListChatMessages(c *gin.Context) {
	sessionID := c.Param("session_id")
	uid, _, _ := h.caller(c)

	msgs := h.ChatSvc.ListHistory(c.Request.Context(), sessionID, uid)
	if msgs == nil {
		msgs = []assistant.Message{}
	}
	common.OK(c, gin.H{"session_id": sessionID, "messages": msgs})
}

func (h *Handler) ListConversations(c *gin.Context) {
	uid := userIDFromContext(c)
	if uid == nil {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	summaries, err := h.ChatSvc.ConversationSummaries(c.Request.Context(), *uid)
	if err != nil {
		log.Printf("[Chat] summaries failed user=%d: %v", *uid, err)
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to list conversations")
		return
	}
	common.OK(c, gin.H{"conversations": summaries})
}

// SendChatMessageAsync queues reply generation on the worker. The user turn
// is stored idempotently before the job is enqueued, so a retried request
// with the same Idempotency-Key neither duplicates the turn nor the job.
func (h *Handler) SendChatMessageAsync(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if h.Rabbit == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async processing unavailable")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	uid, _, subject := h.caller(c)
	sid, err := h.Resolver.Resolve(c.Request.Context(), sessionParam(c, req.SessionID), subject, uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	if _, _, err := h.ChatSvc.AppendUserTurn(c.Request.Context(), sid, uid, req.Message); err != nil {
		log.Printf("[Chat] async user turn persist failed session=%s: %v", sid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	jobID, err := common.NewULID()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	j := &assistant.Job{
		ID:             jobID,
		SessionID:      sid,
		UserID:         uid,
		Prompt:         req.Message,
		IdempotencyKey: idempoKeyPtr,
		Status:         assistant.JobQueued,
	}
	job, created, err := h.ChatSvc.Repo().CreateJobOrGetExisting(c.Request.Context(), j)
	if err != nil {
		log.Printf("[Chat] create job failed session=%s: %v", sid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	if created {
		if err := h.Rabbit.PublishJob(c.Request.Context(), job.ID); err != nil {
			log.Printf("[Chat] publish job failed job=%s: %v", job.ID, err)
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{"session_id": sid, "job_id": job.ID})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.ChatSvc.Repo().GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	// hide other users' jobs
	uid := userIDFromContext(c)
	if j.UserID != nil && (uid == nil || *uid != *j.UserID) {
		common.Fail(c, http.StatusNotFound, 40402, "job not found")
		return
	}

	common.OK(c, gin.H{
		"job": gin.H{
			"id":                j.ID,
			"session_id":        j.SessionID,
			"status":            j.Status,
			"result_message_id": j.ResultMessageID,
			"error":             j.Error,
			"created_at":        j.CreatedAt,
			"updated_at":        j.UpdatedAt,
		},
	})
}
