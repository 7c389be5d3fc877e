package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"auditflow/internal/compliance"
	"auditflow/internal/model"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type customItemRequest struct {
	Title        string `json:"title"`
	SupplierHelp string `json:"supplier_help"`
	BuyerHelp    string `json:"buyer_help"`
}

type createAuditRequest struct {
	SupplierID  string              `json:"supplier_id"`
	Title       string              `json:"title"`
	TemplateIDs []string            `json:"template_ids"`
	DueDate     string              `json:"due_date"`
	CustomItems []customItemRequest `json:"custom_items"`
}

type addItemsRequest struct {
	TemplateIDs []string            `json:"template_ids"`
	CustomItems []customItemRequest `json:"custom_items"`
}

func customSpecs(reqs []customItemRequest) []compliance.CustomItemSpec {
	specs := make([]compliance.CustomItemSpec, len(reqs))
	for i, r := range reqs {
		specs[i] = compliance.CustomItemSpec{
			Title:    r.Title,
			HelpText: model.HelpText{Supplier: r.SupplierHelp, Buyer: r.BuyerHelp},
		}
	}
	return specs
}

func (s *Server) listTemplates(c echo.Context) error {
	ts, err := s.svc.ListTemplates(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]templateJSON, len(ts))
	for i, t := range ts {
		out[i] = templateJSON{ID: t.ID, Name: t.Name, Category: t.Category}
	}
	return c.JSON(http.StatusOK, out)
}

// listTemplateItems takes an optional repeated template_id query parameter.
func (s *Server) listTemplateItems(c echo.Context) error {
	ids := c.QueryParams()["template_id"]
	items, err := s.svc.ListTemplateItems(c.Request().Context(), ids...)
	if err != nil {
		return err
	}
	out := make([]templateItemJSON, len(items))
	for i, ti := range items {
		out[i] = templateItemJSON{
			ID:         ti.ID,
			TemplateID: ti.TemplateID,
			Title:      ti.Title,
			HelpText:   helpTextJSON{Supplier: ti.HelpText.Supplier, Buyer: ti.HelpText.Buyer},
			Basis:      ti.Basis,
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) createAudit(c echo.Context) error {
	var req createAuditRequest
	if err := c.Bind(&req); err != nil {
		return errBadRequest("invalid request body")
	}
	due, err := time.Parse(dateLayout, req.DueDate)
	if err != nil {
		return errBadRequest("due_date must be YYYY-MM-DD")
	}

	audit, err := s.svc.CreateAudit(c.Request().Context(), compliance.CreateAuditParams{
		BuyerID:     caller(c).UserID,
		SupplierID:  req.SupplierID,
		Title:       req.Title,
		TemplateIDs: req.TemplateIDs,
		DueDate:     due,
		CustomItems: customSpecs(req.CustomItems),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toAudit(audit))
}

func (s *Server) listAudits(c echo.Context) error {
	audits, err := s.svc.ListAuditsForUser(c.Request().Context(), caller(c).UserID)
	if err != nil {
		return err
	}
	out := make([]*auditJSON, len(audits))
	for i, a := range audits {
		out[i] = toAudit(a)
	}
	return c.JSON(http.StatusOK, out)
}

// auditFor loads the audit named by the id parameter and checks the caller is
// its buyer or supplier.
func (s *Server) auditFor(c echo.Context) (*compliance.AuditDetails, error) {
	d, err := s.svc.GetAudit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, err
	}
	if err := checkParty(c, d.Audit); err != nil {
		return nil, err
	}
	return d, nil
}

func checkParty(c echo.Context, a *model.Audit) error {
	me := caller(c).UserID
	if a.BuyerID != me && a.SupplierID != me {
		return errForbidden("not a party to this audit")
	}
	return nil
}

func (s *Server) getAudit(c echo.Context) error {
	d, err := s.auditFor(c)
	if err != nil {
		return err
	}
	out := toAudit(d.Audit)
	out.Buyer = toProfile(d.Buyer)
	out.Supplier = toProfile(d.Supplier)
	return c.JSON(http.StatusOK, out)
}

func (s *Server) getAuditItems(c echo.Context) error {
	return s.writeItems(c, s.svc.GetAuditItems)
}

func (s *Server) getCustomItems(c echo.Context) error {
	return s.writeItems(c, s.svc.GetSupplierItems)
}

func (s *Server) writeItems(c echo.Context, list func(context.Context, string) ([]*model.Item, error)) error {
	d, err := s.auditFor(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	items, err := list(ctx, d.Audit.ID)
	if err != nil {
		return err
	}
	idx, err := s.templateIndex(ctx, d.Audit)
	if err != nil {
		return err
	}
	out := make([]*itemJSON, len(items))
	for i, it := range items {
		if out[i], err = toItem(it, idx); err != nil {
			return err
		}
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) templateIndex(ctx context.Context, a *model.Audit) (map[string]*model.TemplateItem, error) {
	idx := make(map[string]*model.TemplateItem)
	if len(a.TemplateIDs) == 0 {
		return idx, nil
	}
	tis, err := s.svc.ListTemplateItems(ctx, a.TemplateIDs...)
	if err != nil {
		return nil, err
	}
	for _, ti := range tis {
		idx[ti.ID] = ti
	}
	return idx, nil
}

func (s *Server) addAuditItems(c echo.Context) error {
	d, err := s.auditFor(c)
	if err != nil {
		return err
	}
	var req addItemsRequest
	if err := c.Bind(&req); err != nil {
		return errBadRequest("invalid request body")
	}

	ok, err := s.svc.AddItemsToAudit(c.Request().Context(), d.Audit.ID, req.TemplateIDs, customSpecs(req.CustomItems))
	if err != nil {
		return err
	}
	if !ok {
		return echo.NewHTTPError(http.StatusConflict, "items can only be added to a pending audit")
	}
	return s.writeItems(c, s.svc.GetAuditItems)
}

func (s *Server) submitAudit(c echo.Context) error {
	d, err := s.auditFor(c)
	if err != nil {
		return err
	}
	ok, err := s.svc.SubmitForReview(c.Request().Context(), d.Audit.ID)
	if err != nil {
		return err
	}
	if !ok {
		return echo.NewHTTPError(http.StatusConflict, "audit is not pending or has items waiting for evidence")
	}
	d, err = s.auditFor(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toAudit(d.Audit))
}

// getCertificate renders the certificate workbook. preview=true renders an
// unapproved audit with the literal item statuses.
func (s *Server) getCertificate(c echo.Context) error {
	d, err := s.auditFor(c)
	if err != nil {
		return err
	}
	preview := false
	if v := c.QueryParam("preview"); v != "" {
		if preview, err = strconv.ParseBool(v); err != nil {
			return errBadRequest("preview must be true or false")
		}
	}

	var buf bytes.Buffer
	if err := s.svc.RenderCertificate(c.Request().Context(), d.Audit.ID, preview, s.renderer, &buf); err != nil {
		return err
	}

	kind := "certificate"
	if preview {
		kind = "preview"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("audit-%s-%s.xlsx", d.Audit.ID, kind)))
	return c.Blob(http.StatusOK, xlsxContentType, buf.Bytes())
}
