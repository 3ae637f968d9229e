package db

import (
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/dagalow/coach-assistant/internal/assistant"
	"github.com/dagalow/coach-assistant/internal/booking"
	"github.com/dagalow/coach-assistant/internal/models"
)

func Connect(dsn string) *gorm.DB {
	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := gdb.AutoMigrate(
		&models.User{},
		&assistant.Session{},
		&assistant.Message{},
		&assistant.Job{},
		&booking.Appointment{},
		&booking.Subscription{},
		&booking.PitchRequest{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	return gdb
}
