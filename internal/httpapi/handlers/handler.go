package handlers

import (
	"context"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/dagalow/coach-assistant/internal/ai"
	"github.com/dagalow/coach-assistant/internal/assistant"
	"github.com/dagalow/coach-assistant/internal/booking"
	"github.com/dagalow/coach-assistant/internal/config"
	"github.com/dagalow/coach-assistant/internal/email"
	"github.com/dagalow/coach-assistant/internal/store/rabbitmq"
	"github.com/dagalow/coach-assistant/internal/store/redisstore"
)

type Handler struct {
	DB       *gorm.DB
	Cfg      config.Config
	Redis    *redisstore.Store
	Rabbit   *rabbitmq.Publisher
	ChatSvc  *assistant.Service
	Resolver *assistant.Resolver
	SMTP     email.SMTPConfig
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, rabbit *rabbitmq.Publisher) *Handler {
	smtp := email.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}

	repo := assistant.NewRepo(db)

	reg := ai.NewRegistry()
	reg.Register("ollama", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, m), nil
	})
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(ai.OpenAIConfig{
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   m,
		})
	})

	log.Printf("[Handler] ai providers registered: %s (active: %s)", strings.Join(reg.Names(), ", "), cfg.AIProvider)

	checkout := booking.NewCheckoutClient(cfg.CheckoutBaseURL)
	dispatcher := &assistant.Dispatcher{
		Appointments:  booking.NewAppointmentService(db, checkout, smtp),
		Subscriptions: booking.NewSubscriptionService(db, checkout, smtp),
		PitchDecks:    booking.NewPitchDeckService(db, smtp, cfg.NotifyEmail),
	}

	svc := assistant.NewService(repo, reg, dispatcher, cfg.AIProvider, "", cfg.ChatContextWindowSize)

	var ephemeral assistant.EphemeralStore
	if rds != nil {
		ephemeral = rds
	} else {
		log.Printf("[Handler] redis not configured, ephemeral session tier disabled")
	}

	return &Handler{
		DB:       db,
		Cfg:      cfg,
		Redis:    rds,
		Rabbit:   rabbit,
		ChatSvc:  svc,
		Resolver: assistant.NewResolver(repo, ephemeral),
		SMTP:     smtp,
	}
}
