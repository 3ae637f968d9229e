package assistant

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"
)

// ConversationSummary is one row of the profile-page history list.
type ConversationSummary struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	LastAt       time.Time `json:"last_at"`
	MessageCount int       `json:"message_count"`
}

// ConversationSummaries groups a user's turns by session: title from the
// first user turn, newest activity first.
func (s *Service) ConversationSummaries(ctx context.Context, userID uint64) ([]ConversationSummary, error) {
	msgs, err := s.repo.ListMessagesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	type group struct {
		titleSeed string
		lastAt    time.Time
		count     int
	}
	bySession := make(map[string]*group)
	order := make([]string, 0)

	for _, m := range msgs {
		g, ok := bySession[m.SessionID]
		if !ok {
			g = &group{}
			bySession[m.SessionID] = g
			order = append(order, m.SessionID)
		}
		g.count++
		g.lastAt = m.CreatedAt // rows arrive oldest first
		if g.titleSeed == "" && m.Role == RoleUser {
			g.titleSeed = m.Content
		}
	}

	out := make([]ConversationSummary, 0, len(order))
	for _, sid := range order {
		g := bySession[sid]
		out = append(out, ConversationSummary{
			SessionID:    sid,
			Title:        titleize(g.titleSeed),
			LastAt:       g.lastAt,
			MessageCount: g.count,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastAt.After(out[j].LastAt)
	})
	return out, nil
}

// titleize collapses whitespace, capitalizes the first rune and clips long
// seeds to 40 characters with an ellipsis.
func titleize(s string) string {
	oneLine := strings.Join(strings.Fields(s), " ")
	if oneLine == "" {
		return "Conversation"
	}
	runes := []rune(oneLine)
	runes[0] = unicode.ToUpper(runes[0])
	if len(runes) > 40 {
		return strings.TrimRight(string(runes[:37]), " ") + "…"
	}
	return string(runes)
}
