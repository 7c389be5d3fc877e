package compliance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"auditflow/internal/model"
)

// maxCodeAttempts bounds unique code generation retries on collision.
const maxCodeAttempts = 20

// RegisterParams describes a new account.
type RegisterParams struct {
	CompanyName  string
	ContactName  string
	ContactPhone string
	ContactEmail string
	Role         model.Role
}

// ProfileUpdate carries editable profile fields. Nil fields are left alone.
type ProfileUpdate struct {
	CompanyName  *string
	ContactName  *string
	ContactPhone *string
	ContactEmail *string
}

// Register creates a profile with a fresh unique code.
func (s *Service) Register(ctx context.Context, p RegisterParams) (*model.Profile, error) {
	company := strings.TrimSpace(p.CompanyName)
	email := strings.TrimSpace(p.ContactEmail)
	if company == "" {
		return nil, invalid("company name is required")
	}
	if email == "" {
		return nil, invalid("contact email is required")
	}
	if !p.Role.Valid() {
		return nil, invalid("unknown role %q", p.Role)
	}

	s.registMu.Lock()
	defer s.registMu.Unlock()

	existing, err := s.repo.FindProfileByEmail(ctx, email, p.Role)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateEmail
	}

	profile := &model.Profile{
		ID:           s.idgen.New(),
		CompanyName:  company,
		ContactName:  strings.TrimSpace(p.ContactName),
		ContactPhone: strings.TrimSpace(p.ContactPhone),
		ContactEmail: email,
		Role:         p.Role,
		CreatedAt:    s.clock.Now(),
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		profile.UniqueCode = s.codes.New(company)
		err = s.repo.CreateProfile(ctx, profile)
		if err == nil {
			s.logger.Info("profile registered", "id", profile.ID, "role", profile.Role, "code", profile.UniqueCode)
			return profile, nil
		}
		if !errors.Is(err, ErrDuplicateCode) {
			return nil, fmt.Errorf("creating profile: %w", err)
		}
		s.logger.Debug("unique code collision", "code", profile.UniqueCode)
	}
	return nil, fmt.Errorf("allocating unique code after %d attempts: %w", maxCodeAttempts, ErrDuplicateCode)
}

// GetProfile returns a profile by ID.
func (s *Service) GetProfile(ctx context.Context, id string) (*model.Profile, error) {
	p, err := s.repo.FindProfileByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding profile: %w", err)
	}
	if p == nil {
		return nil, notFound("profile", id)
	}
	return p, nil
}

// UpdateProfile edits company and contact details. Role and unique code
// never change.
func (s *Service) UpdateProfile(ctx context.Context, id string, u ProfileUpdate) (*model.Profile, error) {
	p, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.CompanyName != nil {
		if strings.TrimSpace(*u.CompanyName) == "" {
			return nil, invalid("company name is required")
		}
		p.CompanyName = strings.TrimSpace(*u.CompanyName)
	}
	if u.ContactName != nil {
		p.ContactName = strings.TrimSpace(*u.ContactName)
	}
	if u.ContactPhone != nil {
		p.ContactPhone = strings.TrimSpace(*u.ContactPhone)
	}
	if u.ContactEmail != nil {
		if strings.TrimSpace(*u.ContactEmail) == "" {
			return nil, invalid("contact email is required")
		}
		p.ContactEmail = strings.TrimSpace(*u.ContactEmail)
	}
	if err := s.repo.UpdateProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return p, nil
}

// LoginByEmail finds the profile registered with email for role.
func (s *Service) LoginByEmail(ctx context.Context, email string, role model.Role) (*model.Profile, error) {
	if strings.TrimSpace(email) == "" {
		return nil, invalid("email is required")
	}
	p, err := s.repo.FindProfileByEmail(ctx, strings.TrimSpace(email), role)
	if err != nil {
		return nil, fmt.Errorf("finding profile by email: %w", err)
	}
	if p == nil {
		return nil, notFound("profile with email", email)
	}
	return p, nil
}

// FindProfileByCode looks a profile up by its unique code, ignoring case.
func (s *Service) FindProfileByCode(ctx context.Context, code string) (*model.Profile, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, invalid("code is required")
	}
	p, err := s.repo.FindProfileByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("finding profile by code: %w", err)
	}
	if p == nil {
		return nil, notFound("profile with code", code)
	}
	return p, nil
}

// SetProfilePhoto stores photo as the profile's company photo and removes
// the one it replaces.
func (s *Service) SetProfilePhoto(ctx context.Context, id string, photo Upload) (*model.Profile, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	stored, err := s.storeUploads(ctx, []Upload{photo})
	if err != nil {
		return nil, err
	}

	old := p.PhotoURL
	p.PhotoURL = stored[0].URL
	if err := s.repo.UpdateProfile(ctx, p); err != nil {
		s.discardUploads(ctx, stored)
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	if old != "" {
		s.discardUploads(ctx, []model.EvidenceFile{{URL: old}})
	}
	s.logger.Info("profile photo updated", "id", p.ID)
	return p, nil
}

// ReadProfilePhoto writes the profile's company photo to w.
func (s *Service) ReadProfilePhoto(ctx context.Context, id string, w io.Writer) error {
	p, err := s.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if p.PhotoURL == "" {
		return notFound("photo of profile", id)
	}
	if s.blobs == nil {
		return fmt.Errorf("no blob store configured")
	}
	if err := s.blobs.Get(ctx, p.PhotoURL, w); err != nil {
		return fmt.Errorf("reading photo: %w", err)
	}
	return nil
}
