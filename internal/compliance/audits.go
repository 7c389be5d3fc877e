package compliance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"auditflow/internal/model"
)

// CustomItemSpec describes a buyer-defined checklist item.
type CustomItemSpec struct {
	Title    string
	HelpText model.HelpText
}

// CreateAuditParams describes a new audit.
type CreateAuditParams struct {
	BuyerID     string
	SupplierID  string
	Title       string
	TemplateIDs []string
	DueDate     time.Time
	CustomItems []CustomItemSpec
}

// AuditDetails is an audit together with both parties.
type AuditDetails struct {
	Audit    *model.Audit
	Buyer    *model.Profile
	Supplier *model.Profile
}

// CreateAudit creates a pending audit from templates and custom items. The
// buyer and supplier must be actively connected. Every item starts in
// pending_upload.
func (s *Service) CreateAudit(ctx context.Context, p CreateAuditParams) (*model.Audit, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, invalid("audit title is required")
	}
	customs, err := validateCustomItems(p.CustomItems)
	if err != nil {
		return nil, err
	}

	buyer, err := s.GetProfile(ctx, p.BuyerID)
	if err != nil {
		return nil, err
	}
	supplier, err := s.GetProfile(ctx, p.SupplierID)
	if err != nil {
		return nil, err
	}
	if buyer.Role != model.RoleBuyer {
		return nil, invalid("profile %s is not a buyer", buyer.ID)
	}
	if supplier.Role != model.RoleSupplier {
		return nil, invalid("profile %s is not a supplier", supplier.ID)
	}

	connected, err := s.activeConnection(ctx, buyer.ID, supplier.ID)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, ErrNotConnected
	}

	templateIDs, templateItems, err := s.requireTemplates(ctx, p.TemplateIDs)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	audit := &model.Audit{
		ID:          s.idgen.New(),
		BuyerID:     buyer.ID,
		SupplierID:  supplier.ID,
		Status:      model.AuditPending,
		Title:       title,
		DueDate:     dateOf(p.DueDate),
		TemplateIDs: templateIDs,
		CreatedAt:   now,
	}
	if audit.TemplateIDs == nil {
		audit.TemplateIDs = []string{}
	}

	items := make([]*model.Item, 0, len(templateItems)+len(customs))
	for _, ti := range templateItems {
		items = append(items, s.newTemplateItem(audit.ID, ti, now))
	}
	for _, c := range customs {
		items = append(items, s.newBuyerCustomItem(audit.ID, c, now))
	}

	if err := s.repo.CreateAudit(ctx, audit, items); err != nil {
		return nil, fmt.Errorf("creating audit: %w", err)
	}

	s.logger.Info("audit created", "audit", audit.ID, "buyer", buyer.ID, "supplier", supplier.ID, "items", len(items))
	return audit, nil
}

// AddItemsToAudit attaches more templates and custom items to a pending
// audit. Template items already on the audit are not added twice; custom
// items are always appended. It returns false, without error, when the audit
// is no longer pending.
func (s *Service) AddItemsToAudit(ctx context.Context, auditID string, templateIDs []string, customItems []CustomItemSpec) (bool, error) {
	customs, err := validateCustomItems(customItems)
	if err != nil {
		return false, err
	}

	unlock := s.locks.Lock(auditID)
	defer unlock()

	audit, err := s.findAudit(ctx, auditID)
	if err != nil {
		return false, err
	}
	if audit.Status != model.AuditPending {
		s.logger.Debug("items not added to non-pending audit", "audit", auditID, "status", audit.Status)
		return false, nil
	}

	ids, templateItems, err := s.requireTemplates(ctx, templateIDs)
	if err != nil {
		return false, err
	}

	existing, err := s.repo.ListItemsForAudit(ctx, auditID)
	if err != nil {
		return false, fmt.Errorf("listing items: %w", err)
	}
	present := make(map[string]bool, len(existing))
	for _, it := range existing {
		if it.Source == model.SourceBuyerTemplate {
			present[it.TemplateItemID] = true
		}
	}

	for _, id := range ids {
		if !audit.HasTemplate(id) {
			audit.TemplateIDs = append(audit.TemplateIDs, id)
		}
	}

	now := s.clock.Now()
	var added []*model.Item
	for _, ti := range templateItems {
		if present[ti.ID] {
			continue
		}
		present[ti.ID] = true
		added = append(added, s.newTemplateItem(audit.ID, ti, now))
	}
	for _, c := range customs {
		added = append(added, s.newBuyerCustomItem(audit.ID, c, now))
	}

	if err := s.repo.AddAuditItems(ctx, audit, added); err != nil {
		return false, fmt.Errorf("adding items: %w", err)
	}

	s.logger.Info("items added to audit", "audit", auditID, "items", len(added))
	return true, nil
}

// SubmitForReview moves a pending audit to in_review once no buyer-defined
// item is still waiting for an upload. Supplier custom items do not count.
// It returns false, without error, when the gate does not pass.
func (s *Service) SubmitForReview(ctx context.Context, auditID string) (bool, error) {
	unlock := s.locks.Lock(auditID)
	defer unlock()

	audit, err := s.findAudit(ctx, auditID)
	if err != nil {
		return false, err
	}
	if audit.Status != model.AuditPending {
		return false, nil
	}

	items, err := s.repo.ListItemsForAudit(ctx, auditID)
	if err != nil {
		return false, fmt.Errorf("listing items: %w", err)
	}
	for _, it := range items {
		if it.BuyerDefined() && it.Status == model.ItemPendingUpload {
			s.logger.Debug("audit not ready for review", "audit", auditID, "item", it.ID)
			return false, nil
		}
	}

	audit.Status = model.AuditInReview
	if err := s.repo.UpdateAudit(ctx, audit); err != nil {
		return false, fmt.Errorf("updating audit: %w", err)
	}

	s.logger.Info("audit submitted for review", "audit", auditID)
	return true, nil
}

// GetAudit returns an audit with its buyer and supplier profiles.
func (s *Service) GetAudit(ctx context.Context, auditID string) (*AuditDetails, error) {
	return s.getAuditDetails(ctx, auditID)
}

// GetAuditItems returns the buyer-defined items of an audit.
func (s *Service) GetAuditItems(ctx context.Context, auditID string) ([]*model.Item, error) {
	return s.auditItems(ctx, auditID, true)
}

// GetSupplierItems returns the supplier custom items of an audit.
func (s *Service) GetSupplierItems(ctx context.Context, auditID string) ([]*model.Item, error) {
	return s.auditItems(ctx, auditID, false)
}

// ListAuditsForUser returns the audits the user created (buyer) or was
// assigned (supplier).
func (s *Service) ListAuditsForUser(ctx context.Context, userID string) ([]*model.Audit, error) {
	p, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	audits, err := s.repo.ListAuditsForProfile(ctx, p.ID, p.Role)
	if err != nil {
		return nil, fmt.Errorf("listing audits: %w", err)
	}
	return audits, nil
}

func (s *Service) auditItems(ctx context.Context, auditID string, buyerDefined bool) ([]*model.Item, error) {
	if _, err := s.findAudit(ctx, auditID); err != nil {
		return nil, err
	}
	items, err := s.repo.ListItemsForAudit(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	out := make([]*model.Item, 0, len(items))
	for _, it := range items {
		if it.BuyerDefined() == buyerDefined {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *Service) findAudit(ctx context.Context, auditID string) (*model.Audit, error) {
	audit, err := s.repo.FindAuditByID(ctx, auditID)
	if err != nil {
		return nil, fmt.Errorf("finding audit: %w", err)
	}
	if audit == nil {
		return nil, notFound("audit", auditID)
	}
	return audit, nil
}

func (s *Service) getAuditDetails(ctx context.Context, auditID string) (*AuditDetails, error) {
	audit, err := s.findAudit(ctx, auditID)
	if err != nil {
		return nil, err
	}
	buyer, err := s.GetProfile(ctx, audit.BuyerID)
	if err != nil {
		return nil, err
	}
	supplier, err := s.GetProfile(ctx, audit.SupplierID)
	if err != nil {
		return nil, err
	}
	return &AuditDetails{Audit: audit, Buyer: buyer, Supplier: supplier}, nil
}

func (s *Service) newTemplateItem(auditID string, ti *model.TemplateItem, now time.Time) *model.Item {
	return &model.Item{
		ID:             s.idgen.New(),
		AuditID:        auditID,
		Source:         model.SourceBuyerTemplate,
		TemplateItemID: ti.ID,
		Status:         model.ItemPendingUpload,
		CreatedAt:      now,
	}
}

func (s *Service) newBuyerCustomItem(auditID string, c CustomItemSpec, now time.Time) *model.Item {
	return &model.Item{
		ID:        s.idgen.New(),
		AuditID:   auditID,
		Source:    model.SourceBuyerCustom,
		Title:     c.Title,
		HelpText:  c.HelpText,
		Status:    model.ItemPendingUpload,
		CreatedAt: now,
	}
}

func validateCustomItems(specs []CustomItemSpec) ([]CustomItemSpec, error) {
	out := make([]CustomItemSpec, 0, len(specs))
	for i, c := range specs {
		c.Title = strings.TrimSpace(c.Title)
		if c.Title == "" {
			return nil, invalid("custom item %d: title is required", i)
		}
		out = append(out, c)
	}
	return out, nil
}
