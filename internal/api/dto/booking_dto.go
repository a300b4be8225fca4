package dto

import "time"

type CreateBookingRequest struct {
	CustomerID     string `json:"customer_id" binding:"required"`
	ConsumerType   string `json:"consumer_type"`
	FromLanguageID string `json:"from_language_id"`
	Due            string `json:"due"`
	Duration       int    `json:"duration"`
	Immediate      bool   `json:"immediate"`
	PhoneType      bool   `json:"customer_phone_type"`
	PhysicalType   bool   `json:"customer_physical_type"`
	Gender         string `json:"gender"`
	Certification  string `json:"certification"`
	Town           string `json:"town"`
	Address        string `json:"address"`
	Instructions   string `json:"instructions"`
	CustomerEmail  string `json:"customer_email"`
	Reference      string `json:"reference"`
}

type UpdateBookingRequest struct {
	Due             string `json:"due"`
	FromLanguageID  string `json:"from_language_id"`
	TranslatorID    string `json:"translator_id"`
	TranslatorEmail string `json:"translator_email"`
	Status          string `json:"status"`
	AdminComments   string `json:"admin_comments"`
	SessionTime     string `json:"session_time"`
	Reference       string `json:"reference"`
}

type AcceptBookingRequest struct {
	TranslatorID string `json:"translator_id" binding:"required"`
}

type CancelBookingRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	IsCustomer bool   `json:"is_customer"`
}

type EndBookingRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type BookingDTO struct {
	ID             string  `json:"id"`
	CustomerID     string  `json:"customer_id"`
	Status         string  `json:"status"`
	Due            string  `json:"due"`
	FromLanguageID string  `json:"from_language_id"`
	Gender         string  `json:"gender,omitempty"`
	Certification  string  `json:"certification,omitempty"`
	JobType        string  `json:"job_type"`
	Immediate      bool    `json:"immediate"`
	PhoneType      bool    `json:"customer_phone_type"`
	PhysicalType   bool    `json:"customer_physical_type"`
	Duration       int     `json:"duration"`
	Town           string  `json:"town,omitempty"`
	Address        string  `json:"address,omitempty"`
	Instructions   string  `json:"instructions,omitempty"`
	CustomerEmail  string  `json:"customer_email,omitempty"`
	Reference      string  `json:"reference,omitempty"`
	AdminComments  string  `json:"admin_comments,omitempty"`
	SessionTime    string  `json:"session_time,omitempty"`
	EndAt          *string `json:"end_at,omitempty"`
	WithdrawAt     *string `json:"withdraw_at,omitempty"`
	WillExpireAt   *string `json:"will_expire_at,omitempty"`
	TranslatorID   string  `json:"translator_id,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

type UpdateBookingResponse struct {
	Booking           BookingDTO `json:"booking"`
	StatusChanged     bool       `json:"status_changed"`
	Refused           bool       `json:"refused"`
	RefusedField      string     `json:"refused_field,omitempty"`
	TranslatorChanged bool       `json:"translator_changed"`
	DateChanged       bool       `json:"date_changed"`
	LanguageChanged   bool       `json:"language_changed"`
}

// FormatTimePtr renders an optional timestamp for transport.
func FormatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
