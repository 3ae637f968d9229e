package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dagalow/coach-assistant/internal/ai"
	"github.com/dagalow/coach-assistant/internal/assistant"
	"github.com/dagalow/coach-assistant/internal/booking"
	"github.com/dagalow/coach-assistant/internal/config"
	"github.com/dagalow/coach-assistant/internal/db"
	"github.com/dagalow/coach-assistant/internal/email"
	"github.com/dagalow/coach-assistant/internal/models"
	"github.com/dagalow/coach-assistant/internal/store/rabbitmq"
	"gorm.io/gorm"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	repo := assistant.NewRepo(gdb)

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

	smtp := email.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.SMTPFrom,
	}
	checkout := booking.NewCheckoutClient(cfg.CheckoutBaseURL)
	dispatcher := &assistant.Dispatcher{
		Appointments:  booking.NewAppointmentService(gdb, checkout, smtp),
		Subscriptions: booking.NewSubscriptionService(gdb, checkout, smtp),
		PitchDecks:    booking.NewPitchDeckService(gdb, smtp, cfg.NotifyEmail),
	}

	svc := assistant.NewService(repo, reg, dispatcher, cfg.AIProvider, "", cfg.ChatContextWindowSize)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("rabbit dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatalf("rabbit channel: %v", err)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareTopology(ch, cfg.RabbitQueue); err != nil {
		log.Fatalf("queue declare: %v", err)
	}

	concurrency := workerConcurrency()

	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Fatalf("qos: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("worker started, queue=%s concurrency=%d", cfg.RabbitQueue, concurrency)

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m rabbitmq.JobMessage
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					log.Printf("worker=%d bad message: %v", workerID, err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleJob(ctx, gdb, svc, repo, m.JobID); err != nil {
					log.Printf("worker=%d job %s failed cost=%s err=%v", workerID, m.JobID, time.Since(start), err)
					_ = d.Nack(false, false)
					continue
				}

				if err := d.Ack(false); err != nil {
					log.Printf("worker=%d ack failed job=%s err=%v", workerID, m.JobID, err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Printf("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func handleJob(ctx context.Context, gdb *gorm.DB, svc *assistant.Service, repo *assistant.Repo, jobID string) error {
	_ = repo.UpdateJobStatusRunning(ctx, jobID)

	j, err := repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	// The user turn was persisted at enqueue time; here we only need the
	// profile so directive dispatch can reconcile account data in.
	var profile *models.Profile
	if j.UserID != nil {
		var u models.User
		if err := gdb.WithContext(ctx).First(&u, *j.UserID).Error; err != nil {
			log.Printf("job=%s profile load failed user=%d: %v", jobID, *j.UserID, err)
		} else {
			profile = u.Profile()
		}
	}

	reply, action, err := svc.GenerateAssistantReply(ctx, j.SessionID, j.UserID, profile)
	if err != nil {
		_ = repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}
	if action != "" {
		log.Printf("job=%s session=%s action=%s", jobID, j.SessionID, action)
	}

	if err := repo.MarkJobSucceeded(ctx, jobID, reply.ID); err != nil {
		return err
	}
	return nil
}
