package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"auditflow/internal/compliance"
	"auditflow/internal/model"
)

// PostgresRepository implements compliance.Repository with gorm on PostgreSQL.
type PostgresRepository struct {
	db *gorm.DB
}

var _ compliance.Repository = (*PostgresRepository)(nil)

type profileRow struct {
	ID           string `gorm:"primaryKey"`
	CompanyName  string `gorm:"not null"`
	ContactName  string `gorm:"not null;default:''"`
	ContactPhone string `gorm:"not null;default:''"`
	ContactEmail string `gorm:"not null"`
	Role         string `gorm:"not null"`
	UniqueCode   string `gorm:"not null"`
	PhotoURL     string `gorm:"not null;default:''"`
	CreatedAt    time.Time
}

func (profileRow) TableName() string { return "profiles" }

type connectionRow struct {
	ID                string `gorm:"primaryKey"`
	BuyerProfileID    string `gorm:"not null;uniqueIndex:connections_pair_key"`
	SupplierProfileID string `gorm:"not null;uniqueIndex:connections_pair_key"`
	InitiatorID       string `gorm:"not null"`
	Status            string `gorm:"not null"`
	CreatedAt         time.Time
	Seq               int64 `gorm:"autoIncrement"`
}

func (connectionRow) TableName() string { return "connections" }

type templateRow struct {
	ID       string `gorm:"primaryKey"`
	Name     string `gorm:"not null"`
	Category string `gorm:"not null;default:''"`
	Seq      int64  `gorm:"autoIncrement"`
}

func (templateRow) TableName() string { return "checklist_templates" }

type templateItemRow struct {
	ID           string `gorm:"primaryKey"`
	TemplateID   string `gorm:"not null;index:template_items_template_idx,priority:1"`
	Title        string `gorm:"not null"`
	HelpSupplier string `gorm:"not null;default:''"`
	HelpBuyer    string `gorm:"not null;default:''"`
	Basis        string `gorm:"not null;default:''"`
	Position     int    `gorm:"not null;index:template_items_template_idx,priority:2"`
}

func (templateItemRow) TableName() string { return "template_items" }

type auditRow struct {
	ID           string `gorm:"primaryKey"`
	BuyerID      string `gorm:"not null;index"`
	SupplierID   string `gorm:"not null;index"`
	Status       string `gorm:"not null"`
	Title        string `gorm:"not null"`
	DueDate      time.Time
	ApprovalDate *time.Time
	CreatedAt    time.Time
	Seq          int64 `gorm:"autoIncrement"`
}

func (auditRow) TableName() string { return "audits" }

type auditTemplateRow struct {
	AuditID    string `gorm:"primaryKey"`
	TemplateID string `gorm:"primaryKey"`
	Position   int    `gorm:"not null"`
}

func (auditTemplateRow) TableName() string { return "audit_templates" }

type itemRow struct {
	ID             string `gorm:"primaryKey"`
	AuditID        string `gorm:"not null;index"`
	Source         string `gorm:"not null"`
	TemplateItemID *string
	Title          string `gorm:"not null;default:''"`
	HelpSupplier   string `gorm:"not null;default:''"`
	HelpBuyer      string `gorm:"not null;default:''"`
	Status         string `gorm:"not null"`
	EvidenceText   string `gorm:"not null;default:''"`
	Notes          string `gorm:"not null;default:''"`
	CreatedAt      time.Time
	Seq            int64 `gorm:"autoIncrement"`
}

func (itemRow) TableName() string { return "audit_items" }

type evidenceFileRow struct {
	ItemID   string `gorm:"primaryKey"`
	Position int    `gorm:"primaryKey"`
	URL      string `gorm:"not null"`
	Name     string `gorm:"not null"`
}

func (evidenceFileRow) TableName() string { return "evidence_files" }

type commentRow struct {
	ID        string `gorm:"primaryKey"`
	ItemID    string `gorm:"not null;index"`
	UserID    string `gorm:"not null"`
	Text      string `gorm:"column:comment_text;not null"`
	CreatedAt time.Time
	Seq       int64 `gorm:"autoIncrement"`
}

func (commentRow) TableName() string { return "item_comments" }

// postgresMigrations is the ordered gormigrate history of the schema.
func postgresMigrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID: "20260301_create_profiles_and_connections",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&profileRow{}, &connectionRow{}); err != nil {
					return err
				}
				for _, stmt := range []string{
					`CREATE UNIQUE INDEX IF NOT EXISTS profiles_unique_code_key ON profiles (LOWER(unique_code))`,
					`CREATE UNIQUE INDEX IF NOT EXISTS profiles_email_role_key ON profiles (LOWER(contact_email), role)`,
				} {
					if err := tx.Exec(stmt).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&connectionRow{}, &profileRow{})
			},
		},
		{
			ID: "20260301_create_templates",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&templateRow{}, &templateItemRow{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&templateItemRow{}, &templateRow{})
			},
		},
		{
			ID: "20260302_create_audits",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&auditRow{}, &auditTemplateRow{}, &itemRow{}, &evidenceFileRow{}, &commentRow{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS audit_items_template_item_key
					ON audit_items (audit_id, template_item_id) WHERE template_item_id IS NOT NULL`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&commentRow{}, &evidenceFileRow{}, &itemRow{}, &auditTemplateRow{}, &auditRow{})
			},
		},
		{
			ID: "20261017_add_profile_photo",
			Migrate: func(tx *gorm.DB) error {
				// Fresh databases already got the column from the first migration.
				if tx.Migrator().HasColumn(&profileRow{}, "PhotoURL") {
					return nil
				}
				return tx.Migrator().AddColumn(&profileRow{}, "PhotoURL")
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropColumn(&profileRow{}, "PhotoURL")
			},
		},
	}
}

// NewPostgresRepository connects to the database described by dsn.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &PostgresRepository{db: db}, nil
}

// Migrate applies pending gormigrate migrations.
func (r *PostgresRepository) Migrate() error {
	m := gormigrate.New(r.db, gormigrate.DefaultOptions, postgresMigrations())
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("migrating postgres schema: %w", err)
	}
	return nil
}

// Rollback reverts the last steps gormigrate migrations.
func (r *PostgresRepository) Rollback(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	m := gormigrate.New(r.db, gormigrate.DefaultOptions, postgresMigrations())
	for i := 0; i < steps; i++ {
		if err := m.RollbackLast(); err != nil {
			return fmt.Errorf("rolling back postgres migration %d of %d: %w", i+1, steps, err)
		}
	}
	return nil
}

// CheckMigrations returns an error unless every known migration has been applied.
func (r *PostgresRepository) CheckMigrations() error {
	all := postgresMigrations()
	latest := all[len(all)-1].ID

	if !r.db.Migrator().HasTable(gormigrate.DefaultOptions.TableName) {
		return fmt.Errorf("postgres schema has no migrations applied")
	}
	var n int64
	err := r.db.Table(gormigrate.DefaultOptions.TableName).
		Where(gormigrate.DefaultOptions.IDColumnName+" = ?", latest).Count(&n).Error
	if err != nil {
		return fmt.Errorf("checking postgres migrations: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("postgres schema is behind: migration %s not applied", latest)
	}
	return nil
}

// Close closes the underlying connection pool.
func (r *PostgresRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

const pgUniqueViolationCode = "23505"

// pgUniqueViolation reports whether err is a unique violation on the named
// constraint.
func pgUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraint
}

func (r *PostgresRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// first loads a single row into dest, reporting false on a miss.
func first(q *gorm.DB, dest any) (bool, error) {
	err := q.First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Profile operations

func toProfileRow(p *model.Profile) *profileRow {
	return &profileRow{
		ID: p.ID, CompanyName: p.CompanyName, ContactName: p.ContactName, ContactPhone: p.ContactPhone,
		ContactEmail: p.ContactEmail, Role: string(p.Role), UniqueCode: p.UniqueCode, PhotoURL: p.PhotoURL,
		CreatedAt: p.CreatedAt.UTC(),
	}
}

func (row *profileRow) model() *model.Profile {
	return &model.Profile{
		ID: row.ID, CompanyName: row.CompanyName, ContactName: row.ContactName, ContactPhone: row.ContactPhone,
		ContactEmail: row.ContactEmail, Role: model.Role(row.Role), UniqueCode: row.UniqueCode, PhotoURL: row.PhotoURL,
		CreatedAt: row.CreatedAt.UTC(),
	}
}

func (r *PostgresRepository) CreateProfile(ctx context.Context, p *model.Profile) error {
	err := r.conn(ctx).Create(toProfileRow(p)).Error
	switch {
	case pgUniqueViolation(err, "profiles_unique_code_key"):
		return compliance.ErrDuplicateCode
	case pgUniqueViolation(err, "profiles_email_role_key"):
		return compliance.ErrDuplicateEmail
	case err != nil:
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, p *model.Profile) error {
	err := r.conn(ctx).Model(&profileRow{ID: p.ID}).Updates(map[string]any{
		"company_name":  p.CompanyName,
		"contact_name":  p.ContactName,
		"contact_phone": p.ContactPhone,
		"contact_email": p.ContactEmail,
		"photo_url":     p.PhotoURL,
	}).Error
	if pgUniqueViolation(err, "profiles_email_role_key") {
		return compliance.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return nil
}

func (r *PostgresRepository) findProfile(ctx context.Context, query string, args ...any) (*model.Profile, error) {
	var row profileRow
	found, err := first(r.conn(ctx).Where(query, args...), &row)
	if err != nil {
		return nil, fmt.Errorf("finding profile: %w", err)
	}
	if !found {
		return nil, nil
	}
	return row.model(), nil
}

func (r *PostgresRepository) FindProfileByID(ctx context.Context, id string) (*model.Profile, error) {
	return r.findProfile(ctx, "id = ?", id)
}

func (r *PostgresRepository) FindProfileByCode(ctx context.Context, code string) (*model.Profile, error) {
	return r.findProfile(ctx, "LOWER(unique_code) = LOWER(?)", code)
}

func (r *PostgresRepository) FindProfileByEmail(ctx context.Context, email string, role model.Role) (*model.Profile, error) {
	return r.findProfile(ctx, "LOWER(contact_email) = LOWER(?) AND role = ?", email, string(role))
}

// Connection operations

func (row *connectionRow) model() *model.Connection {
	return &model.Connection{
		ID: row.ID, BuyerProfileID: row.BuyerProfileID, SupplierProfileID: row.SupplierProfileID,
		InitiatorID: row.InitiatorID, Status: model.ConnectionStatus(row.Status), CreatedAt: row.CreatedAt.UTC(),
	}
}

func (r *PostgresRepository) CreateConnection(ctx context.Context, c *model.Connection) error {
	err := r.conn(ctx).Create(&connectionRow{
		ID: c.ID, BuyerProfileID: c.BuyerProfileID, SupplierProfileID: c.SupplierProfileID,
		InitiatorID: c.InitiatorID, Status: string(c.Status), CreatedAt: c.CreatedAt.UTC(),
	}).Error
	if pgUniqueViolation(err, "connections_pair_key") {
		return compliance.ErrDuplicateConnection
	}
	if err != nil {
		return fmt.Errorf("inserting connection: %w", err)
	}
	return nil
}

func (r *PostgresRepository) findConnection(ctx context.Context, query string, args ...any) (*model.Connection, error) {
	var row connectionRow
	found, err := first(r.conn(ctx).Where(query, args...), &row)
	if err != nil {
		return nil, fmt.Errorf("finding connection: %w", err)
	}
	if !found {
		return nil, nil
	}
	return row.model(), nil
}

func (r *PostgresRepository) FindConnectionByID(ctx context.Context, id string) (*model.Connection, error) {
	return r.findConnection(ctx, "id = ?", id)
}

func (r *PostgresRepository) FindConnectionByPair(ctx context.Context, buyerID, supplierID string) (*model.Connection, error) {
	return r.findConnection(ctx, "buyer_profile_id = ? AND supplier_profile_id = ?", buyerID, supplierID)
}

func (r *PostgresRepository) ListConnectionsForProfile(ctx context.Context, profileID string) ([]*model.Connection, error) {
	var rows []connectionRow
	err := r.conn(ctx).
		Where("buyer_profile_id = ? OR supplier_profile_id = ?", profileID, profileID).
		Order("created_at, seq").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	conns := make([]*model.Connection, len(rows))
	for i := range rows {
		conns[i] = rows[i].model()
	}
	return conns, nil
}

func (r *PostgresRepository) UpdateConnectionStatus(ctx context.Context, id string, status model.ConnectionStatus) error {
	err := r.conn(ctx).Model(&connectionRow{}).Where("id = ?", id).Update("status", string(status)).Error
	if err != nil {
		return fmt.Errorf("updating connection status: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteConnection(ctx context.Context, id string) error {
	if err := r.conn(ctx).Delete(&connectionRow{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}
	return nil
}

// Template catalog operations

func (r *PostgresRepository) CreateTemplate(ctx context.Context, t *model.ChecklistTemplate, items []*model.TemplateItem) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&templateRow{ID: t.ID, Name: t.Name, Category: t.Category}).Error; err != nil {
			return fmt.Errorf("inserting template %s: %w", t.ID, err)
		}
		for _, ti := range items {
			row := &templateItemRow{
				ID: ti.ID, TemplateID: t.ID, Title: ti.Title, HelpSupplier: ti.HelpText.Supplier,
				HelpBuyer: ti.HelpText.Buyer, Basis: ti.Basis, Position: ti.Position,
			}
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("inserting template item %s: %w", ti.ID, err)
			}
		}
		return nil
	})
}

func (r *PostgresRepository) FindTemplateByID(ctx context.Context, id string) (*model.ChecklistTemplate, error) {
	var row templateRow
	found, err := first(r.conn(ctx).Where("id = ?", id), &row)
	if err != nil {
		return nil, fmt.Errorf("finding template: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &model.ChecklistTemplate{ID: row.ID, Name: row.Name, Category: row.Category}, nil
}

func (r *PostgresRepository) ListTemplates(ctx context.Context) ([]*model.ChecklistTemplate, error) {
	var rows []templateRow
	if err := r.conn(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	ts := make([]*model.ChecklistTemplate, len(rows))
	for i, row := range rows {
		ts[i] = &model.ChecklistTemplate{ID: row.ID, Name: row.Name, Category: row.Category}
	}
	return ts, nil
}

func (r *PostgresRepository) ListTemplateItems(ctx context.Context, templateIDs []string) ([]*model.TemplateItem, error) {
	q := r.conn(ctx).Table("template_items ti").
		Select("ti.*").
		Joins("JOIN checklist_templates t ON t.id = ti.template_id")
	if len(templateIDs) > 0 {
		q = q.Where("ti.template_id IN ?", templateIDs)
	}
	var rows []templateItemRow
	if err := q.Order("t.seq, ti.position").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing template items: %w", err)
	}
	items := make([]*model.TemplateItem, len(rows))
	for i, row := range rows {
		items[i] = &model.TemplateItem{
			ID: row.ID, TemplateID: row.TemplateID, Title: row.Title,
			HelpText: model.HelpText{Supplier: row.HelpSupplier, Buyer: row.HelpBuyer},
			Basis:    row.Basis, Position: row.Position,
		}
	}
	return items, nil
}

// Audit operations

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (row *auditRow) model(templateIDs []string) *model.Audit {
	return &model.Audit{
		ID: row.ID, BuyerID: row.BuyerID, SupplierID: row.SupplierID, Status: model.AuditStatus(row.Status),
		Title: row.Title, DueDate: row.DueDate.UTC(), TemplateIDs: templateIDs,
		ApprovalDate: utcPtr(row.ApprovalDate), CreatedAt: row.CreatedAt.UTC(),
	}
}

func (r *PostgresRepository) CreateAudit(ctx context.Context, a *model.Audit, items []*model.Item) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		row := &auditRow{
			ID: a.ID, BuyerID: a.BuyerID, SupplierID: a.SupplierID, Status: string(a.Status), Title: a.Title,
			DueDate: a.DueDate.UTC(), ApprovalDate: utcPtr(a.ApprovalDate), CreatedAt: a.CreatedAt.UTC(),
		}
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("inserting audit: %w", err)
		}
		if err := gormAttachTemplates(tx, a.ID, a.TemplateIDs, 0); err != nil {
			return err
		}
		return gormInsertItems(tx, items)
	})
}

func gormAttachTemplates(tx *gorm.DB, auditID string, templateIDs []string, from int) error {
	for i, id := range templateIDs {
		if err := tx.Create(&auditTemplateRow{AuditID: auditID, TemplateID: id, Position: from + i}).Error; err != nil {
			return fmt.Errorf("attaching template %s: %w", id, err)
		}
	}
	return nil
}

func gormTemplateIDs(q *gorm.DB, auditID string) ([]string, error) {
	ids := []string{}
	err := q.Model(&auditTemplateRow{}).Where("audit_id = ?", auditID).Order("position").Pluck("template_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("listing audit templates: %w", err)
	}
	return ids, nil
}

func (r *PostgresRepository) FindAuditByID(ctx context.Context, id string) (*model.Audit, error) {
	var row auditRow
	found, err := first(r.conn(ctx).Where("id = ?", id), &row)
	if err != nil {
		return nil, fmt.Errorf("finding audit: %w", err)
	}
	if !found {
		return nil, nil
	}
	ids, err := gormTemplateIDs(r.conn(ctx), id)
	if err != nil {
		return nil, err
	}
	return row.model(ids), nil
}

func (r *PostgresRepository) ListAuditsForProfile(ctx context.Context, profileID string, role model.Role) ([]*model.Audit, error) {
	column := "buyer_id"
	if role == model.RoleSupplier {
		column = "supplier_id"
	}
	var rows []auditRow
	if err := r.conn(ctx).Where(column+" = ?", profileID).Order("created_at DESC, seq DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing audits: %w", err)
	}
	audits := make([]*model.Audit, len(rows))
	for i := range rows {
		ids, err := gormTemplateIDs(r.conn(ctx), rows[i].ID)
		if err != nil {
			return nil, err
		}
		audits[i] = rows[i].model(ids)
	}
	return audits, nil
}

func (r *PostgresRepository) UpdateAudit(ctx context.Context, a *model.Audit) error {
	err := r.conn(ctx).Model(&auditRow{}).Where("id = ?", a.ID).Updates(map[string]any{
		"status":        string(a.Status),
		"approval_date": utcPtr(a.ApprovalDate),
	}).Error
	if err != nil {
		return fmt.Errorf("updating audit: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AddAuditItems(ctx context.Context, a *model.Audit, items []*model.Item) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		stored, err := gormTemplateIDs(tx, a.ID)
		if err != nil {
			return err
		}
		have := make(map[string]bool, len(stored))
		for _, id := range stored {
			have[id] = true
		}
		var missing []string
		for _, id := range a.TemplateIDs {
			if !have[id] {
				missing = append(missing, id)
			}
		}
		if err := gormAttachTemplates(tx, a.ID, missing, len(stored)); err != nil {
			return err
		}
		return gormInsertItems(tx, items)
	})
}

// Item operations

func toItemRow(it *model.Item) *itemRow {
	var templateItemID *string
	if it.TemplateItemID != "" {
		id := it.TemplateItemID
		templateItemID = &id
	}
	return &itemRow{
		ID: it.ID, AuditID: it.AuditID, Source: string(it.Source), TemplateItemID: templateItemID,
		Title: it.Title, HelpSupplier: it.HelpText.Supplier, HelpBuyer: it.HelpText.Buyer,
		Status: string(it.Status), EvidenceText: it.EvidenceText, Notes: it.Notes, CreatedAt: it.CreatedAt.UTC(),
	}
}

func (row *itemRow) model() *model.Item {
	it := &model.Item{
		ID: row.ID, AuditID: row.AuditID, Source: model.ItemSource(row.Source), Title: row.Title,
		HelpText: model.HelpText{Supplier: row.HelpSupplier, Buyer: row.HelpBuyer},
		Status:   model.ItemStatus(row.Status), EvidenceText: row.EvidenceText, Notes: row.Notes,
		CreatedAt: row.CreatedAt.UTC(),
	}
	if row.TemplateItemID != nil {
		it.TemplateItemID = *row.TemplateItemID
	}
	return it
}

func gormInsertItems(tx *gorm.DB, items []*model.Item) error {
	for _, it := range items {
		if err := tx.Create(toItemRow(it)).Error; err != nil {
			return fmt.Errorf("inserting item %s: %w", it.ID, err)
		}
		if err := gormInsertFiles(tx, it.ID, it.EvidenceFiles, 0); err != nil {
			return err
		}
	}
	return nil
}

func gormInsertFiles(tx *gorm.DB, itemID string, files []model.EvidenceFile, from int) error {
	for i, f := range files {
		if err := tx.Create(&evidenceFileRow{ItemID: itemID, Position: from + i, URL: f.URL, Name: f.Name}).Error; err != nil {
			return fmt.Errorf("inserting evidence file %s: %w", f.Name, err)
		}
	}
	return nil
}

func (r *PostgresRepository) loadFiles(ctx context.Context, items ...*model.Item) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	var rows []evidenceFileRow
	if err := r.conn(ctx).Where("item_id IN ?", ids).Order("item_id, position").Find(&rows).Error; err != nil {
		return fmt.Errorf("listing evidence files: %w", err)
	}
	byItem := make(map[string][]model.EvidenceFile)
	for _, row := range rows {
		byItem[row.ItemID] = append(byItem[row.ItemID], model.EvidenceFile{URL: row.URL, Name: row.Name})
	}
	for _, it := range items {
		it.EvidenceFiles = byItem[it.ID]
	}
	return nil
}

func (r *PostgresRepository) CreateItem(ctx context.Context, item *model.Item) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return gormInsertItems(tx, []*model.Item{item})
	})
}

func (r *PostgresRepository) FindItemByID(ctx context.Context, id string) (*model.Item, error) {
	var row itemRow
	found, err := first(r.conn(ctx).Where("id = ?", id), &row)
	if err != nil {
		return nil, fmt.Errorf("finding item: %w", err)
	}
	if !found {
		return nil, nil
	}
	it := row.model()
	if err := r.loadFiles(ctx, it); err != nil {
		return nil, err
	}
	return it, nil
}

func (r *PostgresRepository) ListItemsForAudit(ctx context.Context, auditID string) ([]*model.Item, error) {
	var rows []itemRow
	if err := r.conn(ctx).Where("audit_id = ?", auditID).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	items := make([]*model.Item, len(rows))
	for i := range rows {
		items[i] = rows[i].model()
	}
	if err := r.loadFiles(ctx, items...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PostgresRepository) SaveItemEvidence(ctx context.Context, item *model.Item, appended []model.EvidenceFile) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&itemRow{}).Where("id = ?", item.ID).Updates(map[string]any{
			"status":        string(item.Status),
			"evidence_text": item.EvidenceText,
			"notes":         item.Notes,
		}).Error
		if err != nil {
			return fmt.Errorf("updating item evidence: %w", err)
		}
		var next int
		if err := tx.Model(&evidenceFileRow{}).Where("item_id = ?", item.ID).
			Select("COALESCE(MAX(position) + 1, 0)").Scan(&next).Error; err != nil {
			return fmt.Errorf("finding next evidence position: %w", err)
		}
		return gormInsertFiles(tx, item.ID, appended, next)
	})
}

func (r *PostgresRepository) ReviewItem(ctx context.Context, id string, status model.ItemStatus, comment *model.Comment) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&itemRow{}).Where("id = ?", id).Update("status", string(status)).Error; err != nil {
			return fmt.Errorf("updating item status: %w", err)
		}
		if comment == nil {
			return nil
		}
		return gormInsertComment(tx, comment)
	})
}

// Comment operations

func gormInsertComment(tx *gorm.DB, c *model.Comment) error {
	row := &commentRow{ID: c.ID, ItemID: c.ItemID, UserID: c.UserID, Text: c.Text, CreatedAt: c.CreatedAt.UTC()}
	if err := tx.Create(row).Error; err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateComment(ctx context.Context, c *model.Comment) error {
	return gormInsertComment(r.conn(ctx), c)
}

func (r *PostgresRepository) ListCommentsForItem(ctx context.Context, itemID string) ([]*model.Comment, error) {
	var rows []commentRow
	if err := r.conn(ctx).Where("item_id = ?", itemID).Order("created_at, seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	comments := make([]*model.Comment, len(rows))
	for i, row := range rows {
		comments[i] = &model.Comment{ID: row.ID, ItemID: row.ItemID, UserID: row.UserID, Text: row.Text, CreatedAt: row.CreatedAt.UTC()}
	}
	return comments, nil
}
