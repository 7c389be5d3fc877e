package model

import "time"

// Role is the account type of a profile.
type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleSupplier Role = "supplier"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleSupplier
}

// Counterpart returns the role a profile with role r connects with.
func (r Role) Counterpart() Role {
	if r == RoleBuyer {
		return RoleSupplier
	}
	return RoleBuyer
}

// ConnectionStatus is the lifecycle state of a buyer/supplier connection.
// Rejected requests are deleted, so there is no rejected state.
type ConnectionStatus string

const (
	ConnectionPending ConnectionStatus = "pending"
	ConnectionActive  ConnectionStatus = "active"
)

// AuditStatus is the lifecycle state of an audit.
type AuditStatus string

const (
	AuditPending  AuditStatus = "pending"
	AuditInReview AuditStatus = "in_review"
	AuditApproved AuditStatus = "approved"
	AuditRejected AuditStatus = "rejected" // declared for storage compatibility; never entered
)

// ItemStatus is the review state of a single audit item.
type ItemStatus string

const (
	ItemPendingUpload ItemStatus = "pending_upload"
	ItemPendingReview ItemStatus = "pending_review"
	ItemApproved      ItemStatus = "approved"
	ItemRejected      ItemStatus = "rejected"
)

// ItemSource tells where an item came from. It decides how the item's title
// and help text are resolved.
type ItemSource string

const (
	SourceBuyerTemplate  ItemSource = "buyer_template"  // materialized from a TemplateItem
	SourceBuyerCustom    ItemSource = "buyer_custom"    // defined by the buyer on the audit
	SourceSupplierCustom ItemSource = "supplier_custom" // extra evidence added by the supplier
)

// Profile is a buyer or supplier account.
type Profile struct {
	ID           string
	CompanyName  string
	ContactName  string
	ContactPhone string
	ContactEmail string
	Role         Role
	UniqueCode   string // shareable lookup key, unique case-insensitively
	PhotoURL     string // blob URL of the company photo; empty when unset
	CreatedAt    time.Time
}

// Connection links one buyer profile and one supplier profile.
type Connection struct {
	ID                string
	BuyerProfileID    string
	SupplierProfileID string
	InitiatorID       string
	Status            ConnectionStatus
	CreatedAt         time.Time
}

// Involves reports whether profileID is either side of the connection.
func (c *Connection) Involves(profileID string) bool {
	return c.BuyerProfileID == profileID || c.SupplierProfileID == profileID
}

// CounterpartOf returns the other side of the connection.
func (c *Connection) CounterpartOf(profileID string) string {
	if c.BuyerProfileID == profileID {
		return c.SupplierProfileID
	}
	return c.BuyerProfileID
}

// HelpText carries the two audiences' guidance for an item.
type HelpText struct {
	Supplier string
	Buyer    string
}

// ChecklistTemplate is seeded reference data grouping TemplateItems.
type ChecklistTemplate struct {
	ID       string
	Name     string
	Category string
}

// TemplateItem is one checklist entry of a template.
type TemplateItem struct {
	ID         string
	TemplateID string
	Title      string
	HelpText   HelpText
	Basis      string // regulatory citation, may be empty
	Position   int
}

// Audit is a compliance review package assigned by a buyer to a supplier.
type Audit struct {
	ID           string
	BuyerID      string
	SupplierID   string
	Status       AuditStatus
	Title        string
	DueDate      time.Time
	TemplateIDs  []string
	ApprovalDate *time.Time // set once, on finalization
	CreatedAt    time.Time
}

// HasTemplate reports whether templateID is attached to the audit.
func (a *Audit) HasTemplate(templateID string) bool {
	for _, id := range a.TemplateIDs {
		if id == templateID {
			return true
		}
	}
	return false
}

// EvidenceFile is a stored upload as returned by the blob store.
type EvidenceFile struct {
	URL  string
	Name string
}

// Item is a checklist item of an audit. Buyer-defined items (template or
// custom) and supplier custom items share this shape; Source tells them apart.
type Item struct {
	ID             string
	AuditID        string
	Source         ItemSource
	TemplateItemID string   // only for SourceBuyerTemplate
	Title          string   // empty for SourceBuyerTemplate
	HelpText       HelpText // empty for SourceBuyerTemplate and SourceSupplierCustom
	Status         ItemStatus
	EvidenceFiles  []EvidenceFile
	EvidenceText   string
	Notes          string
	CreatedAt      time.Time
}

// BuyerDefined reports whether the item belongs to the buyer's checklist.
func (i *Item) BuyerDefined() bool {
	return i.Source == SourceBuyerTemplate || i.Source == SourceBuyerCustom
}

// Comment is an entry in an item's append-only discussion thread.
type Comment struct {
	ID        string
	ItemID    string
	UserID    string
	Text      string
	CreatedAt time.Time
}
