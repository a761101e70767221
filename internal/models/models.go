package models

import "strings"

// Identity is the end-user profile supplied by the Telegram host.
type Identity struct {
	ID              int64  `json:"id"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name,omitempty"`
	Username        string `json:"username,omitempty"`
	LanguageCode    string `json:"language_code,omitempty"`
	IsPremium       bool   `json:"is_premium,omitempty"`
	PhotoURL        string `json:"photo_url,omitempty"`
	AllowsWriteToPM bool   `json:"allows_write_to_pm,omitempty"`
}

func (i Identity) DisplayName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

type Experience string

const (
	ExperienceNone         Experience = "none"
	ExperienceBeginner     Experience = "beginner"
	ExperienceIntermediate Experience = "intermediate"
	ExperienceAdvanced     Experience = "advanced"
)

// RegistrationRecord is the body sent on registration and profile update.
type RegistrationRecord struct {
	FullName              string     `json:"fullName"`
	Email                 string     `json:"email"`
	PhoneNumber           string     `json:"phoneNumber"`
	Age                   int        `json:"age"`
	Weight                float64    `json:"weight"`
	Height                float64    `json:"height"`
	HorseRidingExperience Experience `json:"horseRidingExperience"`
	ReferralSource        string     `json:"referralSource,omitempty"`
	TelegramData          *Identity  `json:"telegramData"`
}

// User is the remote copy of a registration.
type User struct {
	MongoID               string        `json:"_id,omitempty"`
	ID                    string        `json:"id,omitempty"`
	FullName              string        `json:"fullName"`
	Email                 string        `json:"email"`
	PhoneNumber           string        `json:"phoneNumber"`
	Age                   int           `json:"age"`
	Weight                float64       `json:"weight"`
	Height                float64       `json:"height"`
	HorseRidingExperience Experience    `json:"horseRidingExperience"`
	ReferralSource        string        `json:"referralSource,omitempty"`
	TelegramData          *Identity     `json:"telegramData,omitempty"`
	RegisteredEvents      []EventSignup `json:"registeredEvents,omitempty"`
	CreatedAt             string        `json:"createdAt,omitempty"`
}

// Key returns the remote identifier, whichever field the API filled in.
func (u User) Key() string {
	if u.MongoID != "" {
		return u.MongoID
	}
	return u.ID
}

// Registered reports whether the record carries a name, which is how the
// API marks a completed registration.
func (u User) Registered() bool {
	return strings.TrimSpace(u.FullName) != ""
}

type Event struct {
	ID          string  `json:"_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	Location    string  `json:"location"`
	Price       float64 `json:"price"`
	Capacity    int     `json:"capacity"`
	IsActive    bool    `json:"isActive"`
}

type EventSignup struct {
	EventID string `json:"eventId"`
	UserID  string `json:"userId,omitempty"`
	Status  string `json:"status,omitempty"`
}

type MemoryEvent struct {
	ID   string `json:"_id,omitempty"`
	Name string `json:"name"`
}

type Memory struct {
	ID        string      `json:"_id"`
	PhotoURL  string      `json:"photoUrl"`
	Caption   string      `json:"caption"`
	Event     MemoryEvent `json:"event"`
	CreatedAt string      `json:"createdAt"`
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

func (p Pagination) HasMore() bool {
	return p.Page < p.TotalPages
}

type MemoryPage struct {
	Data       []Memory   `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type TicketStatus string

const (
	TicketValid   TicketStatus = "valid"
	TicketUsed    TicketStatus = "used"
	TicketExpired TicketStatus = "expired"
)

type Ticket struct {
	Reference     string       `json:"reference"`
	InvoiceID     string       `json:"invoiceId"`
	TransactionID string       `json:"transactionId"`
	UserID        string       `json:"userId"`
	EventName     string       `json:"eventName"`
	Amount        float64      `json:"amount"`
	Status        TicketStatus `json:"status"`
	CreatedAt     string       `json:"createdAt"`
	ExpiresAt     string       `json:"expiresAt,omitempty"`
}

type Receipt struct {
	SenderName      string  `json:"senderName"`
	ConfirmedAmount float64 `json:"confirmedAmount"`
	Date            string  `json:"date"`
	Receiver        string  `json:"receiver"`
}

type InvoiceMetadata struct {
	EventName string `json:"eventName"`
	Place     string `json:"place"`
	Time      string `json:"time"`
}

type Invoice struct {
	InvoiceID   string          `json:"invoiceId"`
	Amount      float64         `json:"amount"`
	Currency    string          `json:"currency"`
	PaidAt      string          `json:"paidAt"`
	ReceiptData Receipt         `json:"receiptData"`
	Metadata    InvoiceMetadata `json:"metadata"`
}

type TicketHolder struct {
	FullName         string `json:"fullName"`
	Email            string `json:"email"`
	TelegramUsername string `json:"telegramUsername,omitempty"`
}

type TicketEvent struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
}

// TicketVerification is the composite returned by GET /ticket/{reference}.
type TicketVerification struct {
	Ticket  Ticket       `json:"ticket"`
	Invoice Invoice      `json:"invoice"`
	User    TicketHolder `json:"user"`
	Event   TicketEvent  `json:"event"`
}
