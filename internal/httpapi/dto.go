package httpapi

import (
	"time"

	"auditflow/internal/compliance"
	"auditflow/internal/model"
)

const dateLayout = "2006-01-02"

type profileJSON struct {
	ID           string     `json:"id"`
	CompanyName  string     `json:"company_name"`
	ContactName  string     `json:"contact_name"`
	ContactPhone string     `json:"contact_phone"`
	ContactEmail string     `json:"contact_email"`
	Role         model.Role `json:"role"`
	UniqueCode   string     `json:"unique_code"`
	PhotoURL     string     `json:"photo_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toProfile(p *model.Profile) *profileJSON {
	if p == nil {
		return nil
	}
	var photo string
	if p.PhotoURL != "" {
		photo = "/api/v1/profiles/" + p.ID + "/photo"
	}
	return &profileJSON{
		ID:           p.ID,
		CompanyName:  p.CompanyName,
		ContactName:  p.ContactName,
		ContactPhone: p.ContactPhone,
		ContactEmail: p.ContactEmail,
		Role:         p.Role,
		UniqueCode:   p.UniqueCode,
		PhotoURL:     photo,
		CreatedAt:    p.CreatedAt,
	}
}

type sessionJSON struct {
	Token   string       `json:"token"`
	Profile *profileJSON `json:"profile"`
}

type connectionJSON struct {
	ID                string                 `json:"id"`
	BuyerProfileID    string                 `json:"buyer_profile_id"`
	SupplierProfileID string                 `json:"supplier_profile_id"`
	InitiatorID       string                 `json:"initiator_id"`
	Status            model.ConnectionStatus `json:"status"`
	CreatedAt         time.Time              `json:"created_at"`
	Counterpart       *profileJSON           `json:"counterpart,omitempty"`
	IsInitiator       bool                   `json:"is_initiator"`
}

func toConnection(c *model.Connection, viewerID string) *connectionJSON {
	return &connectionJSON{
		ID:                c.ID,
		BuyerProfileID:    c.BuyerProfileID,
		SupplierProfileID: c.SupplierProfileID,
		InitiatorID:       c.InitiatorID,
		Status:            c.Status,
		CreatedAt:         c.CreatedAt,
		IsInitiator:       c.InitiatorID == viewerID,
	}
}

func toConnectionView(v *compliance.ConnectionView) *connectionJSON {
	out := toConnection(v.Connection, "")
	out.Counterpart = toProfile(v.Counterpart)
	out.IsInitiator = v.IsInitiator
	return out
}

type helpTextJSON struct {
	Supplier string `json:"supplier"`
	Buyer    string `json:"buyer"`
}

type templateJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type templateItemJSON struct {
	ID         string       `json:"id"`
	TemplateID string       `json:"template_id"`
	Title      string       `json:"title"`
	HelpText   helpTextJSON `json:"help_text"`
	Basis      string       `json:"basis,omitempty"`
}

type auditJSON struct {
	ID           string            `json:"id"`
	BuyerID      string            `json:"buyer_id"`
	SupplierID   string            `json:"supplier_id"`
	Status       model.AuditStatus `json:"status"`
	Title        string            `json:"title"`
	DueDate      string            `json:"due_date"`
	TemplateIDs  []string          `json:"template_ids"`
	ApprovalDate *string           `json:"approval_date"`
	CreatedAt    time.Time         `json:"created_at"`
	Buyer        *profileJSON      `json:"buyer,omitempty"`
	Supplier     *profileJSON      `json:"supplier,omitempty"`
}

func toAudit(a *model.Audit) *auditJSON {
	out := &auditJSON{
		ID:          a.ID,
		BuyerID:     a.BuyerID,
		SupplierID:  a.SupplierID,
		Status:      a.Status,
		Title:       a.Title,
		DueDate:     a.DueDate.Format(dateLayout),
		TemplateIDs: a.TemplateIDs,
		CreatedAt:   a.CreatedAt,
	}
	if a.ApprovalDate != nil {
		d := a.ApprovalDate.Format(dateLayout)
		out.ApprovalDate = &d
	}
	return out
}

type evidenceFileJSON struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

type itemJSON struct {
	ID             string             `json:"id"`
	AuditID        string             `json:"audit_id"`
	Source         model.ItemSource   `json:"source"`
	TemplateItemID string             `json:"template_item_id,omitempty"`
	Title          string             `json:"title"`
	HelpText       helpTextJSON       `json:"help_text"`
	Basis          string             `json:"basis,omitempty"`
	Status         model.ItemStatus   `json:"status"`
	EvidenceFiles  []evidenceFileJSON `json:"evidence_files"`
	EvidenceText   string             `json:"evidence_text"`
	Notes          string             `json:"notes"`
	CreatedAt      time.Time          `json:"created_at"`
}

// toItem renders it with its resolved title, help text and basis. Blob URLs
// stay server-side; clients download files by index.
func toItem(it *model.Item, idx map[string]*model.TemplateItem) (*itemJSON, error) {
	r, err := it.Resolve(idx)
	if err != nil {
		return nil, err
	}
	files := make([]evidenceFileJSON, len(it.EvidenceFiles))
	for i, f := range it.EvidenceFiles {
		files[i] = evidenceFileJSON{Index: i, Name: f.Name}
	}
	return &itemJSON{
		ID:             it.ID,
		AuditID:        it.AuditID,
		Source:         it.Source,
		TemplateItemID: it.TemplateItemID,
		Title:          r.Title,
		HelpText:       helpTextJSON{Supplier: r.HelpText.Supplier, Buyer: r.HelpText.Buyer},
		Basis:          r.Basis,
		Status:         it.Status,
		EvidenceFiles:  files,
		EvidenceText:   it.EvidenceText,
		Notes:          it.Notes,
		CreatedAt:      it.CreatedAt,
	}, nil
}

type commentJSON struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func toComment(c *model.Comment) *commentJSON {
	return &commentJSON{ID: c.ID, ItemID: c.ItemID, UserID: c.UserID, Text: c.Text, CreatedAt: c.CreatedAt}
}
