package httpapi

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"auditflow/internal/compliance"
	"auditflow/internal/model"
)

type reviewRequest struct {
	Decision compliance.Decision `json:"decision"`
	Comment  string              `json:"comment"`
}

type commentRequest struct {
	Text string `json:"text"`
}

type reviewResponse struct {
	Item      *itemJSON `json:"item"`
	Finalized bool      `json:"audit_finalized"`
}

// itemFor loads the item named by the id parameter and checks the caller is
// a party to its audit.
func (s *Server) itemFor(c echo.Context) (*model.Item, *model.Audit, error) {
	ctx := c.Request().Context()
	item, err := s.svc.GetItem(ctx, c.Param("id"))
	if err != nil {
		return nil, nil, err
	}
	d, err := s.svc.GetAudit(ctx, item.AuditID)
	if err != nil {
		return nil, nil, err
	}
	if err := checkParty(c, d.Audit); err != nil {
		return nil, nil, err
	}
	return item, d.Audit, nil
}

func (s *Server) writeItem(c echo.Context, code int, it *model.Item, a *model.Audit) error {
	out, err := s.itemJSON(c, it, a)
	if err != nil {
		return err
	}
	return c.JSON(code, out)
}

func (s *Server) itemJSON(c echo.Context, it *model.Item, a *model.Audit) (*itemJSON, error) {
	idx, err := s.templateIndex(c.Request().Context(), a)
	if err != nil {
		return nil, err
	}
	return toItem(it, idx)
}

func (s *Server) getItem(c echo.Context) error {
	item, audit, err := s.itemFor(c)
	if err != nil {
		return err
	}
	return s.writeItem(c, http.StatusOK, item, audit)
}

// uploads opens every file of the "files" multipart field. The returned
// closer must be called once the uploads are consumed.
func uploads(c echo.Context) ([]compliance.Upload, func(), error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, func() {}, nil
		}
		return nil, nil, errBadRequest("invalid multipart form")
	}

	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	var ups []compliance.Upload
	for _, fh := range form.File["files"] {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		ups = append(ups, compliance.Upload{Name: fh.Filename, Size: fh.Size, Reader: f})
	}
	return ups, closeAll, nil
}

func (s *Server) submitEvidence(c echo.Context) error {
	_, audit, err := s.itemFor(c)
	if err != nil {
		return err
	}
	files, done, err := uploads(c)
	if err != nil {
		return err
	}
	defer done()

	item, err := s.svc.SubmitEvidence(c.Request().Context(), c.Param("id"), compliance.Evidence{
		Files:        files,
		EvidenceText: c.FormValue("evidence_text"),
		Notes:        c.FormValue("notes"),
	})
	if err != nil {
		return err
	}
	s.metrics.recordEvidence(len(files))
	return s.writeItem(c, http.StatusOK, item, audit)
}

func (s *Server) addCustomItem(c echo.Context) error {
	d, err := s.auditFor(c)
	if err != nil {
		return err
	}
	files, done, err := uploads(c)
	if err != nil {
		return err
	}
	defer done()

	item, err := s.svc.AddCustomItem(c.Request().Context(), d.Audit.ID, c.FormValue("title"), files, c.FormValue("notes"))
	if err != nil {
		return err
	}
	s.metrics.recordEvidence(len(files))
	return s.writeItem(c, http.StatusCreated, item, d.Audit)
}

func (s *Server) reviewItem(c echo.Context) error {
	_, audit, err := s.itemFor(c)
	if err != nil {
		return err
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return errBadRequest("invalid request body")
	}

	res, err := s.svc.ReviewItem(c.Request().Context(), c.Param("id"), caller(c).UserID, req.Decision, req.Comment)
	if err != nil {
		return err
	}
	s.metrics.recordReview(req.Decision, res.Finalized)

	out, err := s.itemJSON(c, res.Item, audit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, reviewResponse{Item: out, Finalized: res.Finalized})
}

func (s *Server) listComments(c echo.Context) error {
	item, _, err := s.itemFor(c)
	if err != nil {
		return err
	}
	comments, err := s.svc.ListComments(c.Request().Context(), item.ID)
	if err != nil {
		return err
	}
	out := make([]*commentJSON, len(comments))
	for i, cm := range comments {
		out[i] = toComment(cm)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) addComment(c echo.Context) error {
	item, _, err := s.itemFor(c)
	if err != nil {
		return err
	}
	var req commentRequest
	if err := c.Bind(&req); err != nil {
		return errBadRequest("invalid request body")
	}
	cm, err := s.svc.AddComment(c.Request().Context(), item.ID, caller(c).UserID, req.Text)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toComment(cm))
}

func (s *Server) downloadEvidence(c echo.Context) error {
	item, _, err := s.itemFor(c)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil {
		return errBadRequest("file index must be a number")
	}

	var buf bytes.Buffer
	f, err := s.svc.ReadEvidenceFile(c.Request().Context(), item.ID, n, &buf)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", f.Name))
	return c.Blob(http.StatusOK, http.DetectContentType(buf.Bytes()), buf.Bytes())
}
