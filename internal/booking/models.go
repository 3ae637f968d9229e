package booking

import "time"

const (
	StatusPendingPayment = "pending_payment"
	StatusBooked         = "booked"
	StatusActive         = "active"
	StatusSubmitted      = "submitted"
)

// HourlyRateEUR is the consultation price per hour.
const HourlyRateEUR = 90.0

// PlanPrices maps coaching plan names to their monthly price in EUR.
var PlanPrices = map[string]int{
	"basic":    40,
	"standard": 90,
	"premium":  230,
}

// Appointment is a booked (or payment-pending) consultation.
type Appointment struct {
	ID              uint64  `gorm:"primaryKey;autoIncrement"`
	UserID          *uint64 `gorm:"index"`
	Date            string  `gorm:"type:varchar(10);not null"` // YYYY-MM-DD
	StartTime       string  `gorm:"type:varchar(5);not null"`  // HH:MM
	DurationMinutes int     `gorm:"not null"`
	ContactName     string  `gorm:"type:varchar(128);not null"`
	ContactEmail    string  `gorm:"type:varchar(255);not null"`
	ContactPhone    string  `gorm:"type:varchar(64);not null"`
	Timezone        string  `gorm:"type:varchar(64)"`
	PriceEUR        float64
	Status          string `gorm:"type:varchar(20);index;not null"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Appointment) TableName() string { return "appointments" }

// Subscription is a coaching plan enrollment.
type Subscription struct {
	ID            uint64  `gorm:"primaryKey;autoIncrement"`
	UserID        *uint64 `gorm:"index"`
	Plan          string  `gorm:"type:varchar(16);index;not null"`
	PriceEURMonth int     `gorm:"not null"`
	Name          string  `gorm:"type:varchar(128);not null"`
	Email         string  `gorm:"type:varchar(255);not null"`
	Phone         string  `gorm:"type:varchar(64);not null"`
	Status        string  `gorm:"type:varchar(20);index;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Subscription) TableName() string { return "coaching_subscriptions" }

// PitchRequest is an investor's ask for a project pitch deck. Phone is
// NOT NULL here, which is why callers pass the "Not provided" sentinel
// instead of an empty optional.
type PitchRequest struct {
	ID        uint64  `gorm:"primaryKey;autoIncrement"`
	UserID    *uint64 `gorm:"index"`
	Project   string  `gorm:"type:varchar(32);index;not null"`
	Name      string  `gorm:"type:varchar(128);not null"`
	Email     string  `gorm:"type:varchar(255);not null"`
	Phone     string  `gorm:"type:varchar(64);not null"`
	Role      string  `gorm:"type:varchar(64);not null"`
	Status    string  `gorm:"type:varchar(20);index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PitchRequest) TableName() string { return "pitch_requests" }
