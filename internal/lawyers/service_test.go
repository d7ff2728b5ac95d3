package lawyers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/cyblex/backend/internal/auth"
	"github.com/cyblex/backend/internal/models"
	"github.com/cyblex/backend/pkg/storage"
)

type memStore struct {
	lawyers       map[int64]*models.Lawyer
	verifications []models.LawyerVerification
	failCreate    bool
}

func newMemStore() *memStore {
	return &memStore{lawyers: map[int64]*models.Lawyer{}}
}

func (m *memStore) Ensure(_ context.Context, userID int64) (*models.Lawyer, error) {
	l, ok := m.lawyers[userID]
	if !ok {
		l = &models.Lawyer{
			ID:                 int64(len(m.lawyers) + 100),
			UserID:             userID,
			Specialization:     "General",
			BarCouncilNumber:   "PENDING",
			VerificationStatus: models.VerificationPending,
			Languages:          []string{"en"},
			CreatedAt:          time.Now(),
		}
		m.lawyers[userID] = l
	}
	cp := *l
	return &cp, nil
}

func (m *memStore) Update(ctx context.Context, userID int64, p Profile) (*models.Lawyer, error) {
	if _, err := m.Ensure(ctx, userID); err != nil {
		return nil, err
	}
	l := m.lawyers[userID]
	l.Specialization = p.Specialization
	l.ExperienceYears = p.ExperienceYears
	l.BarCouncilNumber = p.BarCouncilNumber
	l.HourlyRateCents = p.HourlyRateCents
	l.Languages = p.Languages
	l.Bio = p.Bio
	cp := *l
	return &cp, nil
}

func (m *memStore) CreateVerification(_ context.Context, v *models.LawyerVerification) error {
	if m.failCreate {
		return errors.New("insert failed")
	}
	v.ID = int64(len(m.verifications) + 1)
	v.Status = models.VerificationPending
	v.CreatedAt = time.Now()
	m.verifications = append(m.verifications, *v)
	return nil
}

func (m *memStore) LatestVerification(_ context.Context, lawyerID int64) (*models.LawyerVerification, error) {
	for i := len(m.verifications) - 1; i >= 0; i-- {
		if m.verifications[i].LawyerID == lawyerID {
			cp := m.verifications[i]
			return &cp, nil
		}
	}
	return nil, nil
}

type fakeDocs struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeDocs) UploadDocument(_ context.Context, key, contentType string, body io.Reader, _ int64) error {
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = b
	f.types[key] = contentType
	return nil
}

func (f *fakeDocs) DeleteDocument(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

var (
	lawyer = auth.Identity{UserID: 20, UserType: models.UserTypeLawyer}
	client = auth.Identity{UserID: 10, UserType: models.UserTypeClient}
)

func TestGetCreatesDefaultProfile(t *testing.T) {
	svc := NewService(newMemStore(), newFakeDocs(), zap.NewNop())
	me, err := svc.Get(context.Background(), lawyer)
	require.NoError(t, err)
	assert.Equal(t, int64(20), me.Profile.UserID)
	assert.Equal(t, "General", me.Profile.Specialization)
	assert.Nil(t, me.Verification)

	_, err = svc.Get(context.Background(), client)
	assert.ErrorIs(t, err, ErrLawyerOnly)
}

func TestUpdate(t *testing.T) {
	svc := NewService(newMemStore(), nil, zap.NewNop())
	ctx := context.Background()

	l, err := svc.Update(ctx, lawyer, Profile{
		Specialization:  " Family Law ",
		ExperienceYears: 8,
		HourlyRateCents: 500000,
		Languages:       []string{"SI", "en", "si"},
		Bio:             "Colombo bar",
	})
	require.NoError(t, err)
	assert.Equal(t, "Family Law", l.Specialization)
	assert.Equal(t, "PENDING", l.BarCouncilNumber)
	assert.Equal(t, []string{"si", "en"}, l.Languages)

	l, err = svc.Update(ctx, lawyer, Profile{Specialization: "Tax Law"})
	require.NoError(t, err)
	assert.Equal(t, []string{"en"}, l.Languages)

	cases := []struct {
		name string
		p    Profile
		want error
	}{
		{"empty specialization", Profile{}, ErrInvalidSpecialization},
		{"negative experience", Profile{Specialization: "x", ExperienceYears: -1}, ErrInvalidExperience},
		{"long bar number", Profile{Specialization: "x", BarCouncilNumber: strings.Repeat("1", 51)}, ErrInvalidBarNumber},
		{"negative rate", Profile{Specialization: "x", HourlyRateCents: -1}, ErrInvalidRate},
		{"unknown language", Profile{Specialization: "x", Languages: []string{"fr"}}, ErrInvalidLanguages},
		{"long bio", Profile{Specialization: "x", Bio: strings.Repeat("b", 2001)}, ErrBioTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Update(ctx, lawyer, tc.p)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSubmitVerification(t *testing.T) {
	store := newMemStore()
	docs := newFakeDocs()
	svc := NewService(store, docs, zap.NewNop())
	ctx := context.Background()

	v, err := svc.SubmitVerification(ctx, lawyer, Document{
		Type:        "bar_certificate",
		Filename:    "cert.PDF",
		ContentType: "application/octet-stream",
		Size:        4,
		Body:        strings.NewReader("%PDF"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationPending, v.Status)
	assert.True(t, strings.HasPrefix(v.DocumentKey, "verifications/100/"))
	assert.True(t, strings.HasSuffix(v.DocumentKey, ".pdf"))
	assert.Equal(t, []byte("%PDF"), docs.objects[v.DocumentKey])
	assert.Equal(t, "application/pdf", docs.types[v.DocumentKey])

	me, err := svc.Get(ctx, lawyer)
	require.NoError(t, err)
	require.NotNil(t, me.Verification)
	assert.Equal(t, v.ID, me.Verification.ID)
}

func TestSubmitVerificationRejections(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore(), newFakeDocs(), zap.NewNop())
	pdf := func() Document {
		return Document{Type: "national_id", Filename: "id.pdf", ContentType: "application/pdf", Size: 1, Body: strings.NewReader("x")}
	}

	_, err := svc.SubmitVerification(ctx, client, pdf())
	assert.ErrorIs(t, err, ErrLawyerOnly)

	d := pdf()
	d.Type = "selfie"
	_, err = svc.SubmitVerification(ctx, lawyer, d)
	assert.ErrorIs(t, err, ErrInvalidDocumentType)

	d = pdf()
	d.Size = storage.MaxDocumentSize + 1
	_, err = svc.SubmitVerification(ctx, lawyer, d)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	d = pdf()
	d.Filename, d.ContentType = "run.exe", "application/x-msdownload"
	_, err = svc.SubmitVerification(ctx, lawyer, d)
	assert.ErrorIs(t, err, ErrInvalidFile)

	_, err = NewService(newMemStore(), nil, zap.NewNop()).SubmitVerification(ctx, lawyer, pdf())
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestSubmitVerificationRemovesOrphan(t *testing.T) {
	store := newMemStore()
	store.failCreate = true
	docs := newFakeDocs()
	svc := NewService(store, docs, zap.NewNop())

	_, err := svc.SubmitVerification(context.Background(), lawyer, Document{
		Type: "other", Filename: "scan.png", ContentType: "image/png", Size: 3, Body: strings.NewReader("png"),
	})
	require.Error(t, err)
	assert.Empty(t, docs.objects)
}

func TestHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	docs := newFakeDocs()
	h := NewHandler(NewService(newMemStore(), docs, zap.NewNop()), zap.NewNop())
	caller := lawyer
	r := gin.New()
	r.Use(func(c *gin.Context) {
		auth.SetIdentity(c, caller)
		c.Next()
	})
	r.GET("/lawyers/me", h.Me)
	r.PUT("/lawyers/me", h.Update)
	r.POST("/lawyers/me/verification", h.SubmitVerification)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lawyers/me", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pending", gjson.Get(w.Body.String(), "data.profile.verification_status").String())

	body := `{"specialization": "Property Law", "experience_years": "12", "hourly_rate": 2500.5, "languages": ["ta"]}`
	req := httptest.NewRequest(http.MethodPut, "/lawyers/me", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(12), gjson.Get(w.Body.String(), "data.experience_years").Int())
	assert.Equal(t, int64(250050), gjson.Get(w.Body.String(), "data.hourly_rate_cents").Int())

	req = httptest.NewRequest(http.MethodPut, "/lawyers/me", strings.NewReader(`{"specialization": "x", "hourly_rate": "abc"}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	upload := func(docType, filename, contentType string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("document_type", docType))
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="document"; filename="`+filename+`"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, _ = part.Write([]byte("\x89PNG"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/lawyers/me/verification", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w = upload("bar_certificate", "cert.png", "image/png")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "pending", gjson.Get(w.Body.String(), "data.status").String())
	assert.False(t, gjson.Get(w.Body.String(), "data.document_key").Exists())
	assert.Len(t, docs.objects, 1)

	w = upload("bar_certificate", "notes.txt", "text/plain")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/lawyers/me/verification", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	caller = client
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lawyers/me", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}
