package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	InquiryFieldName    = "name"
	InquiryFieldEmail   = "email"
	InquiryFieldMessage = "message"
)

var ErrMissingInquiryField = errors.New("missing_inquiry_field")

// Inquiry is a persisted contact-form submission. Rows are only ever inserted.
type Inquiry struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"not null;type:text" json:"name"`
	Email     string    `gorm:"not null;type:text" json:"email"`
	Message   string    `gorm:"not null;type:text" json:"message"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// InquiryInput holds the raw values submitted through the contact form.
type InquiryInput struct {
	Name    string
	Email   string
	Message string
}

// NewInquiry trims the submitted values and checks that each one is present.
// Format and length rules belong to the submitting client.
func NewInquiry(input InquiryInput) (Inquiry, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(input.Email)
	message := strings.TrimSpace(input.Message)

	var missingFields []string
	if name == "" {
		missingFields = append(missingFields, InquiryFieldName)
	}
	if email == "" {
		missingFields = append(missingFields, InquiryFieldEmail)
	}
	if message == "" {
		missingFields = append(missingFields, InquiryFieldMessage)
	}
	if len(missingFields) > 0 {
		return Inquiry{}, fmt.Errorf("%w: %s", ErrMissingInquiryField, strings.Join(missingFields, ", "))
	}

	return Inquiry{
		Name:    name,
		Email:   email,
		Message: message,
	}, nil
}
