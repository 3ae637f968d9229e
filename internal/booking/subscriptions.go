package booking

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/dagalow/coach-assistant/internal/assistant"
	"github.com/dagalow/coach-assistant/internal/email"
)

// SubscriptionService enrolls users into coaching plans, payment-first with
// a direct fallback, mirroring AppointmentService.
type SubscriptionService struct {
	db       *gorm.DB
	checkout *CheckoutClient
	smtp     email.SMTPConfig
}

func NewSubscriptionService(db *gorm.DB, checkout *CheckoutClient, smtp email.SMTPConfig) *SubscriptionService {
	return &SubscriptionService{db: db, checkout: checkout, smtp: smtp}
}

func (s *SubscriptionService) SubscribeWithPayment(ctx context.Context, in assistant.SubscriptionInput) (assistant.Result, error) {
	price, ok := PlanPrices[in.Plan]
	if !ok {
		return assistant.Result{}, fmt.Errorf("unknown plan %q (available: basic, standard, premium)", in.Plan)
	}

	resp, err := s.checkout.Invoke(ctx, "subscribe_coaching_payment", map[string]any{
		"plan":        in.Plan,
		"name":        in.Name,
		"email":       in.Email,
		"phone":       in.Phone,
		"amount_eur":  price,
	})
	if err != nil {
		return assistant.Result{}, err
	}
	if !resp.Success {
		return assistant.Result{Success: false, Message: resp.Message}, nil
	}

	row := Subscription{
		UserID:        in.UserID,
		Plan:          in.Plan,
		PriceEURMonth: price,
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		Status:        StatusPendingPayment,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return assistant.Result{}, err
	}

	msg := resp.Message
	if msg == "" {
		msg = fmt.Sprintf("💳 Your %s coaching subscription (€%d/month) is almost ready. [Complete Payment](%s) to activate it.",
			in.Plan, price, resp.URL)
	}
	return assistant.Result{Success: true, Message: msg}, nil
}

func (s *SubscriptionService) Subscribe(ctx context.Context, in assistant.SubscriptionInput) (assistant.Result, error) {
	price, ok := PlanPrices[in.Plan]
	if !ok {
		return assistant.Result{}, fmt.Errorf("unknown plan %q (available: basic, standard, premium)", in.Plan)
	}

	row := Subscription{
		UserID:        in.UserID,
		Plan:          in.Plan,
		PriceEURMonth: price,
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		Status:        StatusActive,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return assistant.Result{}, err
	}

	if s.smtp.Configured() && in.Email != assistant.NotProvided {
		go func(to, name, plan string, price int) {
			subject := "Welcome to your coaching subscription"
			body := fmt.Sprintf("Hello %s,\n\nYour %s coaching subscription (€%d/month) is now active. Welcome to the program!\n\nBest regards,\nDaniel DaGalow\n",
				name, plan, price)
			if err := email.SendText(s.smtp, to, subject, body); err != nil {
				log.Printf("[Subscriptions] confirmation email failed to=%s: %v", to, err)
			}
		}(in.Email, in.Name, in.Plan, price)
	}

	msg := fmt.Sprintf("✅ Perfect! Your %s coaching subscription (€%d/month) is now active. Welcome to the program!",
		in.Plan, price)
	return assistant.Result{Success: true, Message: msg}, nil
}
