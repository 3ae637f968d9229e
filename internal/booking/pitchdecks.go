package booking

import (
	"context"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/dagalow/coach-assistant/internal/assistant"
	"github.com/dagalow/coach-assistant/internal/email"
)

// PitchDeckService records investor pitch-deck requests. Single-stage: no
// payment step, the deck is mailed out manually after review.
type PitchDeckService struct {
	db          *gorm.DB
	smtp        email.SMTPConfig
	notifyEmail string
}

func NewPitchDeckService(db *gorm.DB, smtp email.SMTPConfig, notifyEmail string) *PitchDeckService {
	return &PitchDeckService{db: db, smtp: smtp, notifyEmail: notifyEmail}
}

func (s *PitchDeckService) Request(ctx context.Context, in assistant.PitchDeckInput) (assistant.Result, error) {
	allowed := false
	for _, p := range assistant.AllowedProjects {
		if in.Project == p {
			allowed = true
			break
		}
	}
	if !allowed {
		return assistant.Result{}, fmt.Errorf("project must be one of: %s", strings.Join(assistant.AllowedProjects, ", "))
	}

	row := PitchRequest{
		UserID:  in.UserID,
		Project: in.Project,
		Name:    in.Name,
		Email:   in.Email,
		Phone:   in.Phone,
		Role:    in.Role,
		Status:  StatusSubmitted,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return assistant.Result{}, err
	}

	// operator heads-up, best effort
	if s.smtp.Configured() && s.notifyEmail != "" {
		go func(req PitchRequest) {
			subject := fmt.Sprintf("New %s pitch deck request", req.Project)
			body := fmt.Sprintf("Project: %s\nName: %s\nEmail: %s\nPhone: %s\nRole: %s\n",
				req.Project, req.Name, req.Email, req.Phone, req.Role)
			if err := email.SendText(s.smtp, s.notifyEmail, subject, body); err != nil {
				log.Printf("[PitchDecks] notify email failed: %v", err)
			}
		}(row)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Perfect! Your %s pitch deck request has been submitted.", in.Project)
	if in.Name != assistant.NotProvided {
		fmt.Fprintf(&b, "\n\n👤 **Name:** %s", in.Name)
	}
	if in.Email != assistant.NotProvided {
		fmt.Fprintf(&b, "\n📧 **Email:** %s", in.Email)
	}
	if in.Role != assistant.NotProvided {
		fmt.Fprintf(&b, "\n💼 **Role:** %s", in.Role)
	}
	b.WriteString("\n\n📧 **Next Steps:** We'll send the pitch deck to your email address within 24 hours.")

	return assistant.Result{Success: true, Message: b.String()}, nil
}
