package compliance

import (
	"context"
	"fmt"
	"io"
	"time"

	"auditflow/internal/model"
)

// CertificateRenderer turns an audit snapshot into a document. It must be a
// pure function of the snapshot.
type CertificateRenderer interface {
	Render(w io.Writer, snap *CertificateSnapshot) error
}

// CertificateSnapshot is a consistent view of an audit for rendering.
//
// With Preview set, renderers show each item's literal status and omit the
// final verification page. Without it, only approved items are included and
// every included item is shown as approved.
type CertificateSnapshot struct {
	Audit         *model.Audit
	Buyer         *model.Profile
	Supplier      *model.Profile
	Templates     []*model.ChecklistTemplate
	TemplateItems []*model.TemplateItem
	Items         []*model.Item // buyer-defined items
	CustomItems   []*model.Item // supplier custom items
	Preview       bool
	GeneratedAt   time.Time
}

// TemplateItemIndex maps template item IDs to template items.
func (c *CertificateSnapshot) TemplateItemIndex() map[string]*model.TemplateItem {
	idx := make(map[string]*model.TemplateItem, len(c.TemplateItems))
	for _, ti := range c.TemplateItems {
		idx[ti.ID] = ti
	}
	return idx
}

// CertificateSnapshot reads the audit and everything a renderer needs under
// the audit lock. A final (non-preview) snapshot needs an approved audit.
func (s *Service) CertificateSnapshot(ctx context.Context, auditID string, preview bool) (*CertificateSnapshot, error) {
	unlock := s.locks.Lock(auditID)
	defer unlock()

	details, err := s.getAuditDetails(ctx, auditID)
	if err != nil {
		return nil, err
	}
	if !preview && details.Audit.Status != model.AuditApproved {
		return nil, fmt.Errorf("%w: certificate requires an approved audit (status %s)", ErrInvalidState, details.Audit.Status)
	}

	items, err := s.repo.ListItemsForAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	templates := make([]*model.ChecklistTemplate, 0, len(details.Audit.TemplateIDs))
	for _, id := range details.Audit.TemplateIDs {
		t, err := s.repo.FindTemplateByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("finding template: %w", err)
		}
		if t == nil {
			return nil, notFound("template", id)
		}
		templates = append(templates, t)
	}

	templateItems, err := s.repo.ListTemplateItems(ctx, details.Audit.TemplateIDs)
	if err != nil {
		return nil, fmt.Errorf("listing template items: %w", err)
	}

	snap := &CertificateSnapshot{
		Audit:         details.Audit,
		Buyer:         details.Buyer,
		Supplier:      details.Supplier,
		Templates:     templates,
		TemplateItems: templateItems,
		Preview:       preview,
		GeneratedAt:   s.clock.Now(),
	}
	for _, it := range items {
		if it.BuyerDefined() {
			snap.Items = append(snap.Items, it)
		} else {
			snap.CustomItems = append(snap.CustomItems, it)
		}
	}
	return snap, nil
}

// RenderCertificate snapshots the audit and renders it to w.
func (s *Service) RenderCertificate(ctx context.Context, auditID string, preview bool, r CertificateRenderer, w io.Writer) error {
	snap, err := s.CertificateSnapshot(ctx, auditID, preview)
	if err != nil {
		return err
	}
	if err := r.Render(w, snap); err != nil {
		return fmt.Errorf("rendering certificate: %w", err)
	}
	s.logger.Info("certificate rendered", "audit", auditID, "preview", preview)
	return nil
}
