package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"auditflow/internal/compliance"
	"auditflow/internal/model"
)

type registerRequest struct {
	CompanyName  string     `json:"company_name"`
	ContactName  string     `json:"contact_name"`
	ContactPhone string     `json:"contact_phone"`
	ContactEmail string     `json:"contact_email"`
	Role         model.Role `json:"role"`
}

type loginRequest struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

type updateProfileRequest struct {
	CompanyName  *string `json:"company_name"`
	ContactName  *string `json:"contact_name"`
	ContactPhone *string `json:"contact_phone"`
	ContactEmail *string `json:"contact_email"`
}

func (s *Server) register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return errBadRequest("invalid request body")
	}

	p, err := s.svc.Register(c.Request().Context(), compliance.RegisterParams{
		CompanyName:  req.CompanyName,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
		Role:         req.Role,
	})
	s.metrics.recordAuth("register", err)
	if err != nil {
		return err
	}
	return s.session(c, http.StatusCreated, p)
}

// login is passwordless: the email and role identify the account.
func (s *Server) login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return errBadRequest("invalid request body")
	}
	if !req.Role.Valid() {
		return errBadRequest("role must be buyer or supplier")
	}

	p, err := s.svc.LoginByEmail(c.Request().Context(), req.Email, req.Role)
	s.metrics.recordAuth("login", err)
	if err != nil {
		return err
	}
	return s.session(c, http.StatusOK, p)
}

func (s *Server) session(c echo.Context, code int, p *model.Profile) error {
	token, err := s.tokens.Issue(p)
	if err != nil {
		return err
	}
	return c.JSON(code, sessionJSON{Token: token, Profile: toProfile(p)})
}

func (s *Server) getMe(c echo.Context) error {
	p, err := s.svc.GetProfile(c.Request().Context(), caller(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProfile(p))
}

func (s *Server) updateMe(c echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return errBadRequest("invalid request body")
	}

	p, err := s.svc.UpdateProfile(c.Request().Context(), caller(c).UserID, compliance.ProfileUpdate{
		CompanyName:  req.CompanyName,
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProfile(p))
}

// updateMyPhoto takes a single image in the "files" multipart field.
func (s *Server) updateMyPhoto(c echo.Context) error {
	files, done, err := uploads(c)
	if err != nil {
		return err
	}
	defer done()
	if len(files) != 1 {
		return errBadRequest("exactly one photo is required")
	}

	head := make([]byte, 512)
	n, _ := io.ReadFull(files[0].Reader, head)
	if !strings.HasPrefix(http.DetectContentType(head[:n]), "image/") {
		return errBadRequest("photo must be an image")
	}
	files[0].Reader = io.MultiReader(bytes.NewReader(head[:n]), files[0].Reader)

	p, err := s.svc.SetProfilePhoto(c.Request().Context(), caller(c).UserID, files[0])
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toProfile(p))
}

func (s *Server) getProfilePhoto(c echo.Context) error {
	var buf bytes.Buffer
	if err := s.svc.ReadProfilePhoto(c.Request().Context(), c.Param("id"), &buf); err != nil {
		return err
	}
	return c.Blob(http.StatusOK, http.DetectContentType(buf.Bytes()), buf.Bytes())
}
