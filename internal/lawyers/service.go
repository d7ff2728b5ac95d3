package lawyers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/pkg/storage"
)

var (
	ErrLawyerOnly            = errors.New("Only lawyers have a professional profile")
	ErrInvalidSpecialization = errors.New("Specialization is required")
	ErrInvalidExperience     = errors.New("Experience must be between 0 and 70 years")
	ErrInvalidBarNumber      = errors.New("Bar council number must be at most 50 characters")
	ErrInvalidRate           = errors.New("Hourly rate cannot be negative")
	ErrInvalidLanguages      = errors.New("Languages must be chosen from en, si and ta")
	ErrBioTooLong            = errors.New("Bio must be at most 2000 characters")
	ErrInvalidDocumentType   = errors.New("Invalid document type")
	ErrInvalidFile           = errors.New("Only PDF, JPG and PNG files are allowed")
	ErrFileTooLarge          = errors.New("File size exceeds 10MB limit")
	ErrStorageUnavailable    = errors.New("Document storage is not configured")
)

// DocumentTypes are the verification documents a lawyer may submit.
var DocumentTypes = []string{"bar_certificate", "national_id", "degree_certificate", "practising_license", "other"}

var supportedLanguages = []string{"en", "si", "ta"}

// Profile holds the editable lawyer profile fields.
type Profile struct {
	Specialization   string
	ExperienceYears  int
	BarCouncilNumber string
	HourlyRateCents  int64
	Languages        []string
	Bio              string
}

// Store is the lawyer persistence the service needs.
type Store interface {
	Ensure(ctx context.Context, userID int64) (*models.Lawyer, error)
	Update(ctx context.Context, userID int64, p Profile) (*models.Lawyer, error)
	CreateVerification(ctx context.Context, v *models.LawyerVerification) error
	LatestVerification(ctx context.Context, lawyerID int64) (*models.LawyerVerification, error)
}

// DocumentStore keeps uploaded verification documents.
type DocumentStore interface {
	UploadDocument(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) error
	DeleteDocument(ctx context.Context, key string) error
}

// Service implements the lawyer's own profile and document submission.
type Service struct {
	store  Store
	docs   DocumentStore
	logger *zap.Logger
}

// NewService creates a lawyer service. docs may be nil when S3 is not configured.
func NewService(store Store, docs DocumentStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, docs: docs, logger: logger}
}

// Me is the caller's profile with their latest submitted document.
type Me struct {
	Profile      *models.Lawyer             `json:"profile"`
	Verification *models.LawyerVerification `json:"latest_verification,omitempty"`
}

// Get returns the caller's profile, creating a default one on first access.
func (s *Service) Get(ctx context.Context, id auth.Identity) (*Me, error) {
	if id.UserType != models.UserTypeLawyer {
		return nil, ErrLawyerOnly
	}
	l, err := s.store.Ensure(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	v, err := s.store.LatestVerification(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("latest verification: %w", err)
	}
	return &Me{Profile: l, Verification: v}, nil
}

// Update validates and stores the caller's profile.
func (s *Service) Update(ctx context.Context, id auth.Identity, p Profile) (*models.Lawyer, error) {
	if id.UserType != models.UserTypeLawyer {
		return nil, ErrLawyerOnly
	}
	p.Specialization = strings.TrimSpace(p.Specialization)
	p.BarCouncilNumber = strings.TrimSpace(p.BarCouncilNumber)
	p.Bio = strings.TrimSpace(p.Bio)
	switch {
	case p.Specialization == "" || len(p.Specialization) > 100:
		return nil, ErrInvalidSpecialization
	case p.ExperienceYears < 0 || p.ExperienceYears > 70:
		return nil, ErrInvalidExperience
	case len(p.BarCouncilNumber) > 50:
		return nil, ErrInvalidBarNumber
	case p.HourlyRateCents < 0:
		return nil, ErrInvalidRate
	case len([]rune(p.Bio)) > 2000:
		return nil, ErrBioTooLong
	}
	if p.BarCouncilNumber == "" {
		p.BarCouncilNumber = "PENDING"
	}
	langs, err := normalizeLanguages(p.Languages)
	if err != nil {
		return nil, err
	}
	p.Languages = langs
	l, err := s.store.Update(ctx, id.UserID, p)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.logger.Info("lawyer profile updated", zap.Int64("user_id", id.UserID), zap.String("specialization", p.Specialization))
	return l, nil
}

func normalizeLanguages(in []string) ([]string, error) {
	if len(in) == 0 {
		return []string{"en"}, nil
	}
	out := make([]string, 0, len(in))
	for _, l := range in {
		l = strings.ToLower(strings.TrimSpace(l))
		if !slices.Contains(supportedLanguages, l) {
			return nil, ErrInvalidLanguages
		}
		if !slices.Contains(out, l) {
			out = append(out, l)
		}
	}
	return out, nil
}

// Document is an uploaded verification file.
type Document struct {
	Type        string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// SubmitVerification stores a document and records it for admin review.
func (s *Service) SubmitVerification(ctx context.Context, id auth.Identity, doc Document) (*models.LawyerVerification, error) {
	if id.UserType != models.UserTypeLawyer {
		return nil, ErrLawyerOnly
	}
	if !slices.Contains(DocumentTypes, doc.Type) {
		return nil, ErrInvalidDocumentType
	}
	if doc.Size > storage.MaxDocumentSize {
		return nil, ErrFileTooLarge
	}
	ext, ok := storage.ValidateDocumentType(doc.ContentType, doc.Filename)
	if !ok {
		return nil, ErrInvalidFile
	}
	if s.docs == nil {
		return nil, ErrStorageUnavailable
	}
	l, err := s.store.Ensure(ctx, id.UserID)
	if err != nil {
		return nil, err
	}
	key := storage.VerificationKey(l.ID, ext)
	if err := s.docs.UploadDocument(ctx, key, storage.ContentTypeForExtension(ext), doc.Body, doc.Size); err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}
	v := &models.LawyerVerification{LawyerID: l.ID, DocumentType: doc.Type, DocumentKey: key}
	if err := s.store.CreateVerification(ctx, v); err != nil {
		if derr := s.docs.DeleteDocument(ctx, key); derr != nil {
			s.logger.Warn("orphaned verification document", zap.String("key", key), zap.Error(derr))
		}
		return nil, fmt.Errorf("record verification: %w", err)
	}
	s.logger.Info("verification document submitted",
		zap.Int64("lawyer_id", l.ID), zap.String("document_type", doc.Type), zap.String("key", key))
	return v, nil
}
