package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

type (
	PaymentMethod string
	PaymentStatus string
	EventCategory string
	EventStatus   string
)

const (
	MethodRazorpay PaymentMethod = "Razorpay"
	MethodQR       PaymentMethod = "QR"
	MethodCash     PaymentMethod = "Cash"

	StatusPending             PaymentStatus = "Pending"
	StatusVerificationPending PaymentStatus = "Verification Pending"
	StatusPaid                PaymentStatus = "Paid"
	StatusFailed              PaymentStatus = "Failed"

	CategoryNormal EventCategory = "Normal"
	CategoryPrint  EventCategory = "Print"

	EventDraft     EventStatus = "Draft"
	EventPublished EventStatus = "Published"
)

var (
	PaymentMethods  = []PaymentMethod{MethodRazorpay, MethodQR, MethodCash}
	PaymentStatuses = []PaymentStatus{StatusPending, StatusVerificationPending, StatusPaid, StatusFailed}
	EventCategories = []EventCategory{CategoryNormal, CategoryPrint}
)

func (m PaymentMethod) Valid() bool {
	for _, pm := range PaymentMethods {
		if m == pm {
			return true
		}
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	for _, ps := range PaymentStatuses {
		if s == ps {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition out of s is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == StatusPaid || s == StatusFailed
}

func (c EventCategory) Valid() bool {
	return c == CategoryNormal || c == CategoryPrint
}

type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RollNo    string    `json:"roll_no"`
	Email     string    `json:"email"`
	Class     string    `json:"class"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Event struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Cost           decimal.Decimal `json:"cost"`
	Deadline       time.Time       `json:"deadline"`
	Category       EventCategory   `json:"category"`
	Status         EventStatus     `json:"status"`
	PaymentOptions []PaymentMethod `json:"payment_options"`
	QRCodeURL      string          `json:"qr_code_url"`
	ParticipantIDs []string        `json:"participant_ids"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Accepts reports whether students may pay the event with m. No options means every method is enabled.
func (e Event) Accepts(m PaymentMethod) bool {
	if len(e.PaymentOptions) == 0 {
		return true
	}
	for _, opt := range e.PaymentOptions {
		if opt == m {
			return true
		}
	}
	return false
}

func (e Event) HasParticipant(studentID string) bool {
	for _, id := range e.ParticipantIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// Payment is immutable once Paid, except for its audit fields (Notes, UpdatedAt).
type Payment struct {
	ID             string          `json:"id"`
	StudentID      string          `json:"student_id"`
	EventID        string          `json:"event_id"`
	Amount         decimal.Decimal `json:"amount"`
	Method         PaymentMethod   `json:"payment_method"`
	Status         PaymentStatus   `json:"status"`
	TransactionID  string          `json:"transaction_id,omitempty"`
	GatewayOrderID string          `json:"gateway_order_id,omitempty"`
	ScreenshotURL  string          `json:"screenshot_url,omitempty"`
	PaymentDate    time.Time       `json:"payment_date"`
	IsManualEntry  bool            `json:"is_manual_entry"`
	RecordedBy     string          `json:"recorded_by,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	ReceiptNumber  string          `json:"receipt_number,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type PrintDistribution struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	EventID       string    `json:"event_id"`
	DistributedAt time.Time `json:"distributed_at"`
}
