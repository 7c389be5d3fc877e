package compliance

import (
	"context"

	"auditflow/internal/model"
)

// Repository provides persistence for every entity of the audit workflow.
// Lookups return (nil, nil) when nothing matches. Methods that write more
// than one row must do so atomically.
type Repository interface {
	// Profile operations

	// CreateProfile inserts a profile. Returns ErrDuplicateCode when the
	// unique code is taken (case-insensitive) and ErrDuplicateEmail when the
	// email is already registered for the same role.
	CreateProfile(ctx context.Context, p *model.Profile) error

	// UpdateProfile saves the company and contact fields of a profile.
	UpdateProfile(ctx context.Context, p *model.Profile) error

	FindProfileByID(ctx context.Context, id string) (*model.Profile, error)

	// FindProfileByCode matches the unique code case-insensitively.
	FindProfileByCode(ctx context.Context, code string) (*model.Profile, error)

	// FindProfileByEmail matches the email case-insensitively within a role.
	FindProfileByEmail(ctx context.Context, email string, role model.Role) (*model.Profile, error)

	// Connection operations

	// CreateConnection inserts a connection. Returns ErrDuplicateConnection
	// when the (buyer, supplier) pair already has one.
	CreateConnection(ctx context.Context, c *model.Connection) error

	FindConnectionByID(ctx context.Context, id string) (*model.Connection, error)

	FindConnectionByPair(ctx context.Context, buyerID, supplierID string) (*model.Connection, error)

	// ListConnectionsForProfile returns connections where the profile is either side.
	ListConnectionsForProfile(ctx context.Context, profileID string) ([]*model.Connection, error)

	UpdateConnectionStatus(ctx context.Context, id string, status model.ConnectionStatus) error

	DeleteConnection(ctx context.Context, id string) error

	// Template catalog operations

	// CreateTemplate inserts a template together with its items.
	CreateTemplate(ctx context.Context, t *model.ChecklistTemplate, items []*model.TemplateItem) error

	FindTemplateByID(ctx context.Context, id string) (*model.ChecklistTemplate, error)

	ListTemplates(ctx context.Context) ([]*model.ChecklistTemplate, error)

	// ListTemplateItems returns the items of the given templates, or of every
	// template when templateIDs is empty, ordered by template then position.
	ListTemplateItems(ctx context.Context, templateIDs []string) ([]*model.TemplateItem, error)

	// Audit operations

	// CreateAudit inserts an audit and its initial items.
	CreateAudit(ctx context.Context, a *model.Audit, items []*model.Item) error

	FindAuditByID(ctx context.Context, id string) (*model.Audit, error)

	// ListAuditsForProfile returns audits where the profile is the buyer
	// (role buyer) or the supplier (role supplier), newest first.
	ListAuditsForProfile(ctx context.Context, profileID string, role model.Role) ([]*model.Audit, error)

	// UpdateAudit saves the status and approval date of an audit.
	UpdateAudit(ctx context.Context, a *model.Audit) error

	// AddAuditItems saves the audit's template list and inserts new items.
	AddAuditItems(ctx context.Context, a *model.Audit, items []*model.Item) error

	// Item operations

	// CreateItem inserts a single item with its evidence files.
	CreateItem(ctx context.Context, item *model.Item) error

	// FindItemByID returns an item with its evidence files loaded.
	FindItemByID(ctx context.Context, id string) (*model.Item, error)

	// ListItemsForAudit returns every item of an audit in creation order,
	// with evidence files loaded.
	ListItemsForAudit(ctx context.Context, auditID string) ([]*model.Item, error)

	// SaveItemEvidence saves the item's status, evidence text and notes and
	// appends files after the item's stored evidence files.
	SaveItemEvidence(ctx context.Context, item *model.Item, appended []model.EvidenceFile) error

	// ReviewItem saves a review decision. A non-nil comment is inserted in
	// the same transaction, so a failed insert leaves the status unchanged.
	ReviewItem(ctx context.Context, id string, status model.ItemStatus, comment *model.Comment) error

	// Comment operations

	CreateComment(ctx context.Context, c *model.Comment) error

	// ListCommentsForItem returns comments oldest first.
	ListCommentsForItem(ctx context.Context, itemID string) ([]*model.Comment, error)

	// Close releases the underlying connection.
	Close() error
}
