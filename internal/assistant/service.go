package assistant

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dagalow/coach-assistant/internal/ai"
	"github.com/dagalow/coach-assistant/internal/models"
)

const fallbackReply = "I'm having trouble processing your request right now. Please try again in a moment."

// Service is the conversation controller. It owns the message-send and
// welcome lifecycles: turns are appended through it only, the parser,
// reconciler and dispatcher stay pure and return values for it to apply.
// No collaborator error leaves this type as a raw error on the reply path;
// every failure branch degrades to a scripted assistant turn.
type Service struct {
	repo         *Repo
	registry     *ai.Registry
	dispatcher   *Dispatcher
	providerName string
	model        string
	window       int

	mu              sync.Mutex
	welcomeInFlight map[string]bool
}

func NewService(repo *Repo, registry *ai.Registry, dispatcher *Dispatcher, providerName, model string, contextWindowSize int) *Service {
	if contextWindowSize <= 0 || contextWindowSize > 100 {
		contextWindowSize = 20
	}
	return &Service{
		repo:            repo,
		registry:        registry,
		dispatcher:      dispatcher,
		providerName:    providerName,
		model:           model,
		window:          contextWindowSize,
		welcomeInFlight: make(map[string]bool),
	}
}

func (s *Service) Repo() *Repo { return s.repo }

// ListHistory returns the caller-visible transcript, oldest first. Load
// failures (including row-policy denials) read as an empty history; the
// error is for the operator log, not the user.
func (s *Service) ListHistory(ctx context.Context, sessionID string, userID *uint64) []Message {
	msgs, err := s.repo.ListHistory(ctx, sessionID, userID)
	if err != nil {
		log.Printf("[Assistant] history load failed session=%s: %v", sessionID, err)
		return nil
	}
	return msgs
}

// EnsureWelcome emits the opening assistant turn for an empty session,
// exactly once. Guards: a per-session in-flight flag (reentrancy), a
// pre-generation emptiness check, a post-generation re-check that discards
// the welcome if the transcript gained content while generating, and the
// welcome idempotency key on the insert itself. Returns the welcome turn
// and whether a new row was persisted.
func (s *Service) EnsureWelcome(ctx context.Context, sessionID string, userID *uint64, profile *models.Profile) (*Message, bool, error) {
	s.mu.Lock()
	if s.welcomeInFlight[sessionID] {
		s.mu.Unlock()
		return nil, false, nil
	}
	s.welcomeInFlight[sessionID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.welcomeInFlight, sessionID)
		s.mu.Unlock()
	}()

	if n, err := s.repo.CountMessages(ctx, sessionID, userID); err != nil {
		log.Printf("[Assistant] welcome pre-check failed session=%s: %v", sessionID, err)
	} else if n > 0 {
		return nil, false, nil
	}

	content := s.generateWelcome(ctx, profile)

	// The generation call suspends; real turns may have landed meanwhile
	// (a parallel history load, a fast first message). If so, discard the
	// welcome silently rather than shoving it under actual content.
	if n, err := s.repo.CountMessages(ctx, sessionID, userID); err == nil && n > 0 {
		return nil, false, nil
	}

	key := MessageKey(sessionID, RoleAssistant, content, true, time.Now())
	msg := &Message{
		SessionID:      sessionID,
		UserID:         userID,
		Role:           RoleAssistant,
		Content:        content,
		IdempotencyKey: &key,
	}
	inserted, err := s.repo.AppendMessage(ctx, msg)
	if err != nil {
		log.Printf("[Assistant] welcome persist failed session=%s: %v", sessionID, err)
		return msg, false, nil
	}
	return msg, inserted, nil
}

func (s *Service) generateWelcome(ctx context.Context, profile *models.Profile) string {
	provider, err := s.registry.Get(ctx, s.providerName, s.model)
	if err != nil {
		log.Printf("[Assistant] welcome provider unavailable: %v", err)
		return ai.FallbackWelcome(profile)
	}
	reply, err := provider.Chat(ctx, []ai.Message{
		{Role: ai.RoleSystem, Content: ai.SystemPrompt("", profile)},
		{Role: ai.RoleUser, Content: ai.WelcomePrompt(profile)},
	})
	if err != nil || strings.TrimSpace(reply) == "" {
		log.Printf("[Assistant] welcome generation failed: %v", err)
		return ai.FallbackWelcome(profile)
	}
	return reply
}

// SendMessage runs one full turn of the conversation: persist the user
// turn (best effort, the reply path does not depend on the write), ask the
// LLM, run the directive pipeline on the reply, persist and return the
// assistant turn. The returned action tag is "" for a plain reply.
func (s *Service) SendMessage(ctx context.Context, sessionID string, userID *uint64, profile *models.Profile, content string) (*Message, string, error) {
	now := time.Now()
	userKey := MessageKey(sessionID, RoleUser, content, false, now)
	userMsg := &Message{
		SessionID:      sessionID,
		UserID:         userID,
		Role:           RoleUser,
		Content:        content,
		IdempotencyKey: &userKey,
		CreatedAt:      now,
	}
	// Best-effort write: the turn is already part of the in-flight
	// transcript below, so a failed insert degrades history, not the reply.
	if _, err := s.repo.AppendMessage(ctx, userMsg); err != nil {
		log.Printf("[Assistant] user turn persist failed session=%s: %v", sessionID, err)
	}

	return s.respond(ctx, sessionID, userID, profile, userMsg)
}

// AppendUserTurn persists a user turn without generating a reply (the
// async enqueue path). Unlike SendMessage the write is not best-effort:
// the queued worker reads the turn back from the store.
func (s *Service) AppendUserTurn(ctx context.Context, sessionID string, userID *uint64, content string) (*Message, bool, error) {
	now := time.Now()
	key := MessageKey(sessionID, RoleUser, content, false, now)
	msg := &Message{
		SessionID:      sessionID,
		UserID:         userID,
		Role:           RoleUser,
		Content:        content,
		IdempotencyKey: &key,
		CreatedAt:      now,
	}
	inserted, err := s.repo.AppendMessage(ctx, msg)
	if err != nil {
		return nil, false, err
	}
	return msg, inserted, nil
}

// GenerateAssistantReply produces and persists the assistant turn for a
// session whose user turn was already stored (the async worker path).
func (s *Service) GenerateAssistantReply(ctx context.Context, sessionID string, userID *uint64, profile *models.Profile) (*Message, string, error) {
	return s.respond(ctx, sessionID, userID, profile, nil)
}

// respond builds the transcript, calls the provider and applies the
// parse → reconcile → dispatch pipeline. pendingUser, when set, is appended
// to the transcript tail if the store has not caught up with it.
func (s *Service) respond(ctx context.Context, sessionID string, userID *uint64, profile *models.Profile, pendingUser *Message) (*Message, string, error) {
	recentDesc, err := s.repo.ListRecentDesc(ctx, sessionID, userID, s.window)
	if err != nil {
		log.Printf("[Assistant] context load failed session=%s: %v", sessionID, err)
		recentDesc = nil
	}

	turns := make([]ai.Message, 0, len(recentDesc)+2)
	turns = append(turns, ai.Message{Role: ai.RoleSystem, Content: ai.SystemPrompt(uidString(userID), profile)})
	for i := len(recentDesc) - 1; i >= 0; i-- {
		m := recentDesc[i]
		turns = append(turns, ai.Message{Role: m.Role, Content: m.Content})
	}
	if pendingUser != nil {
		last := len(recentDesc) > 0 &&
			recentDesc[0].Role == RoleUser &&
			recentDesc[0].Content == pendingUser.Content
		if !last {
			turns = append(turns, ai.Message{Role: ai.RoleUser, Content: pendingUser.Content})
		}
	}

	replyContent, action := s.complete(ctx, turns, profile, userID)

	replyKey := MessageKey(sessionID, RoleAssistant, replyContent, false, time.Now())
	reply := &Message{
		SessionID:      sessionID,
		UserID:         userID,
		Role:           RoleAssistant,
		Content:        replyContent,
		IdempotencyKey: &replyKey,
	}
	if _, err := s.repo.AppendMessage(ctx, reply); err != nil {
		log.Printf("[Assistant] assistant turn persist failed session=%s: %v", sessionID, err)
	}
	return reply, action, nil
}

// complete calls the provider and runs the directive pipeline. It always
// returns something displayable.
func (s *Service) complete(ctx context.Context, turns []ai.Message, profile *models.Profile, userID *uint64) (string, string) {
	provider, err := s.registry.Get(ctx, s.providerName, s.model)
	if err != nil {
		log.Printf("[Assistant] provider unavailable: %v", err)
		return fallbackReply, ""
	}

	raw, err := provider.Chat(ctx, turns)
	if err != nil {
		log.Printf("[Assistant] completion failed: %v", err)
		return fallbackFor(err), ""
	}

	dir := ParseDirective(raw)
	if dir == nil {
		return raw, ""
	}
	if s.dispatcher == nil {
		log.Printf("[Assistant] directive %s parsed but no dispatcher wired", dir.Kind)
		return raw, ""
	}
	outcome := s.dispatcher.Dispatch(ctx, dir, profile, userID)
	return outcome.Message, outcome.Action
}

// fallbackFor maps common provider failures to more specific user-facing
// copy, without ever exposing the raw error.
func fallbackFor(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "quota"):
		return "I've reached my usage limit for today. Please try again later or contact support."
	case strings.Contains(msg, "api_key"), strings.Contains(msg, "api key"):
		return "There's a configuration issue with my AI service. Please contact support."
	default:
		return fallbackReply
	}
}

func uidString(userID *uint64) string {
	if userID == nil {
		return ""
	}
	return fmt.Sprintf("%d", *userID)
}
