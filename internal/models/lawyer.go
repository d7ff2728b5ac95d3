package models

import "time"

// VerificationStatus of a lawyer profile or a submitted document.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// Lawyer is the professional profile attached to a lawyer account.
type Lawyer struct {
	ID                 int64              `json:"id"`
	UserID             int64              `json:"user_id"`
	Specialization     string             `json:"specialization"`
	ExperienceYears    int                `json:"experience_years"`
	BarCouncilNumber   string             `json:"bar_council_number"`
	VerificationStatus VerificationStatus `json:"verification_status"`
	HourlyRateCents    int64              `json:"hourly_rate_cents"`
	Languages          []string           `json:"languages"`
	Bio                string             `json:"bio"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// LawyerVerification is a document submitted for admin review.
type LawyerVerification struct {
	ID           int64              `json:"id"`
	LawyerID     int64              `json:"lawyer_id"`
	DocumentType string             `json:"document_type"`
	DocumentKey  string             `json:"-"`
	Status       VerificationStatus `json:"status"`
	Notes        string             `json:"notes,omitempty"`
	ReviewedBy   *int64             `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time         `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`

	// Joined for admin listings.
	LawyerName       string `json:"lawyer_name,omitempty"`
	LawyerEmail      string `json:"lawyer_email,omitempty"`
	Specialization   string `json:"specialization,omitempty"`
	BarCouncilNumber string `json:"bar_council_number,omitempty"`
}
