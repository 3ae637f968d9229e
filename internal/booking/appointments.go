package booking

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/dagalow/coach-assistant/internal/assistant"
	"github.com/dagalow/coach-assistant/internal/email"
)

// AppointmentService books consultations. The payment path reserves a slot
// behind a hosted checkout; the direct path books immediately and is the
// dispatcher's fallback when checkout is down.
type AppointmentService struct {
	db       *gorm.DB
	checkout *CheckoutClient
	smtp     email.SMTPConfig
}

func NewAppointmentService(db *gorm.DB, checkout *CheckoutClient, smtp email.SMTPConfig) *AppointmentService {
	return &AppointmentService{db: db, checkout: checkout, smtp: smtp}
}

func consultationPrice(minutes int) float64 {
	return float64(minutes) / 60.0 * HourlyRateEUR
}

func (s *AppointmentService) ScheduleWithPayment(ctx context.Context, in assistant.AppointmentInput) (assistant.Result, error) {
	price := consultationPrice(in.DurationMinutes)

	resp, err := s.checkout.Invoke(ctx, "schedule_appointment_payment", map[string]any{
		"date":             in.Date,
		"startTime":        in.Time,
		"durationMinutes":  in.DurationMinutes,
		"contactName":      in.Name,
		"contactEmail":     in.Email,
		"contactPhone":     in.Phone,
		"timezone":         in.Timezone,
		"amount_eur":       price,
	})
	if err != nil {
		return assistant.Result{}, err
	}
	if !resp.Success {
		return assistant.Result{Success: false, Message: resp.Message}, nil
	}

	row := Appointment{
		UserID:          in.UserID,
		Date:            in.Date,
		StartTime:       in.Time,
		DurationMinutes: in.DurationMinutes,
		ContactName:     in.Name,
		ContactEmail:    in.Email,
		ContactPhone:    in.Phone,
		Timezone:        in.Timezone,
		PriceEUR:        price,
		Status:          StatusPendingPayment,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return assistant.Result{}, err
	}

	msg := resp.Message
	if msg == "" {
		msg = fmt.Sprintf("💳 Your consultation is reserved for %s at %s (%d minutes, €%.0f). [Complete Payment](%s) to confirm your booking.",
			in.Date, in.Time, in.DurationMinutes, price, resp.URL)
	}
	return assistant.Result{Success: true, Message: msg}, nil
}

func (s *AppointmentService) Schedule(ctx context.Context, in assistant.AppointmentInput) (assistant.Result, error) {
	price := consultationPrice(in.DurationMinutes)

	row := Appointment{
		UserID:          in.UserID,
		Date:            in.Date,
		StartTime:       in.Time,
		DurationMinutes: in.DurationMinutes,
		ContactName:     in.Name,
		ContactEmail:    in.Email,
		ContactPhone:    in.Phone,
		Timezone:        in.Timezone,
		PriceEUR:        price,
		Status:          StatusBooked,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return assistant.Result{}, err
	}

	// confirmation email, best effort
	if s.smtp.Configured() && in.Email != assistant.NotProvided {
		go func(to, name, date, start string, minutes int, price float64) {
			subject := "Your consultation with Daniel DaGalow is booked"
			body := fmt.Sprintf("Hello %s,\n\nYour consultation has been booked.\n\nDate: %s\nTime: %s\nDuration: %d minutes\nPrice: €%.0f\n\nSee you soon,\nDaniel DaGalow\n",
				name, date, start, minutes, price)
			if err := email.SendText(s.smtp, to, subject, body); err != nil {
				log.Printf("[Appointments] confirmation email failed to=%s: %v", to, err)
			}
		}(in.Email, in.Name, in.Date, in.Time, in.DurationMinutes, price)
	}

	msg := fmt.Sprintf("✅ Perfect! Your consultation has been booked for %s at %s (%d minutes, €%.0f). You'll receive a confirmation email shortly.",
		in.Date, in.Time, in.DurationMinutes, price)
	return assistant.Result{Success: true, Message: msg}, nil
}
