package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/stevi10623-crypto/deductly-intake/internal/intake"
	"github.com/stevi10623-crypto/deductly-intake/internal/models"
	"github.com/stevi10623-crypto/deductly-intake/internal/repository"
	"github.com/stevi10623-crypto/deductly-intake/internal/storage"
	"github.com/stevi10623-crypto/deductly-intake/internal/wizard"
)

// DefaultMaxUpload is the per-file upload limit when none is configured.
const DefaultMaxUpload = 12 << 20

// IntakeService is the client-facing gateway to a stored intake. It is the
// wizard's persistence backend and owns document uploads.
type IntakeService struct {
	schema    *intake.Schema
	intakes   repository.IntakeStore
	files     storage.FileStore
	maxUpload int64
	log       *zap.Logger
	now       func() time.Time
}

func NewIntakeService(schema *intake.Schema, intakes repository.IntakeStore, files storage.FileStore, maxUpload int64, log *zap.Logger) *IntakeService {
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUpload
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IntakeService{
		schema:    schema,
		intakes:   intakes,
		files:     files,
		maxUpload: maxUpload,
		log:       log,
		now:       time.Now,
	}
}

var _ wizard.Backend = (*IntakeService)(nil)

func (s *IntakeService) LoadIntake(ctx context.Context, token string) (*models.Intake, error) {
	if token == "" {
		return nil, fmt.Errorf("intake %w", ErrNotFound)
	}
	in, err := s.intakes.FindByToken(ctx, token)
	if err != nil {
		return nil, notFound(err, "intake")
	}
	in.Data = s.normalize(in.Data)
	return in, nil
}

// Load implements wizard.Backend.
func (s *IntakeService) Load(ctx context.Context, token string) (wizard.State, error) {
	in, err := s.LoadIntake(ctx, token)
	if err != nil {
		return wizard.State{}, err
	}
	return wizard.State{Token: in.Token, Answers: in.Data, Version: in.Version}, nil
}

// Persist implements wizard.Backend: the whole answer set replaces the stored
// one unless a newer version was already written.
func (s *IntakeService) Persist(ctx context.Context, token string, answers intake.AnswerSet, version int64) error {
	if err := s.intakes.SaveAnswers(ctx, token, answers, version, s.stamp()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("intake %w", ErrNotFound)
		}
		return fmt.Errorf("save answers: %w", err)
	}
	return nil
}

// Submit implements wizard.Backend. Repeated submits and submits of an
// already reviewed intake leave it unchanged.
func (s *IntakeService) Submit(ctx context.Context, token string) error {
	in, err := s.intakes.FindByToken(ctx, token)
	if err != nil {
		return notFound(err, "intake")
	}
	if in.Status == models.StatusSubmitted || in.Status == models.StatusReviewed {
		return nil
	}
	now := s.stamp()
	if err := s.intakes.SetStatus(ctx, token, models.StatusSubmitted, now, now); err != nil {
		return fmt.Errorf("submit intake: %w", err)
	}
	s.log.Info("intake submitted", zap.String("client_id", in.ClientID))
	return nil
}

// UploadFile stores a document for a section and returns its descriptor. The
// caller attaches the descriptor to the answer set.
func (s *IntakeService) UploadFile(ctx context.Context, token, sectionID, name string, data []byte, contentType string) (intake.UploadedFile, error) {
	if _, ok := s.schema.Section(sectionID); !ok {
		return intake.UploadedFile{}, fmt.Errorf("%w: %s", intake.ErrUnknownSection, sectionID)
	}
	if len(data) == 0 {
		return intake.UploadedFile{}, invalidf("file is empty")
	}
	if int64(len(data)) > s.maxUpload {
		return intake.UploadedFile{}, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, s.maxUpload)
	}
	if _, err := s.LoadIntake(ctx, token); err != nil {
		return intake.UploadedFile{}, err
	}

	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" {
		name = "document"
	}
	if contentType == "" {
		contentType = detectContentType(name)
	}
	key := fmt.Sprintf("%s/%s/%d-%s", token, sectionID, s.now().UnixMilli(), safeName(name))
	if err := s.files.Put(ctx, key, data, contentType); err != nil {
		return intake.UploadedFile{}, fmt.Errorf("store file: %w", err)
	}
	return intake.UploadedFile{Name: name, Path: key, Size: int64(len(data))}, nil
}

// DeleteFile removes a stored document. Paths outside the intake's own
// prefix are rejected; a missing object is not an error.
func (s *IntakeService) DeleteFile(ctx context.Context, token, key string) error {
	if !ownsKey(token, key) {
		return ErrForbidden
	}
	if err := s.files.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// SectionOfKey returns the section id encoded in a document key.
func SectionOfKey(token, key string) (string, bool) {
	if !ownsKey(token, key) {
		return "", false
	}
	rest := strings.TrimPrefix(key, token+"/")
	sec, _, ok := strings.Cut(rest, "/")
	return sec, ok && sec != ""
}

func ownsKey(token, key string) bool {
	return token != "" && strings.HasPrefix(key, token+"/") && !strings.Contains(key, "..")
}

// normalize converts a stored answer set into canonical values. Values that
// no longer coerce, and keys outside the catalog, are kept as stored.
func (s *IntakeService) normalize(data intake.AnswerSet) intake.AnswerSet {
	out := make(intake.AnswerSet, len(data))
	for k, v := range data {
		if !s.schema.AllowsKey(k) {
			out[k] = v
			continue
		}
		cv, err := s.schema.Coerce(k, v)
		if err != nil {
			out[k] = v
			continue
		}
		if cv != nil {
			out[k] = cv
		}
	}
	return out
}

func (s *IntakeService) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// safeName keeps ASCII letters, digits, dot, dash and underscore.
func safeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func detectContentType(fileName string) string {
	switch strings.ToLower(path.Ext(fileName)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".heic":
		return "image/heic"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".csv":
		return "text/csv"
	case ".txt":
		return "text/plain"
	}
	return "application/octet-stream"
}
