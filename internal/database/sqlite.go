package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"auditflow/internal/compliance"
	"auditflow/internal/database/migrations"
	"auditflow/internal/model"
)

// SQLiteRepository implements compliance.Repository on SQLite.
//
// The pool is limited to one connection: in-memory databases are per
// connection, and SQLite serializes writers anyway. Consequently no method
// may start a query while another result set is still open.
type SQLiteRepository struct {
	db   *sql.DB
	path string
}

var _ compliance.Repository = (*SQLiteRepository)(nil)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteRepository opens the database at path (a file path or
// ":memory:"). The schema is not migrated; see Migrate and CheckMigrations.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteRepository{db: db, path: path}, nil
}

// NewSQLiteRepositoryFromDB wraps an existing, configured connection.
func NewSQLiteRepositoryFromDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the schema relies on.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}
	return db, nil
}

// Migrate applies pending schema migrations.
func (r *SQLiteRepository) Migrate() error {
	return migrations.Up(r.db)
}

// CheckMigrations returns an error unless the schema is current.
func (r *SQLiteRepository) CheckMigrations() error {
	return migrations.Check(r.db)
}

// Rollback reverts the last steps migrations.
func (r *SQLiteRepository) Rollback(steps int) error {
	return migrations.Down(r.db, steps)
}

// DB exposes the underlying connection for tools and tests.
func (r *SQLiteRepository) DB() *sql.DB { return r.db }

// Path returns the database file path.
func (r *SQLiteRepository) Path() string { return r.path }

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// uniqueViolation reports whether err is a UNIQUE constraint failure whose
// message mentions one of names.
func uniqueViolation(err error, names ...string) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.ExtendedCode != sqlite3.ErrConstraintUnique {
		return false
	}
	msg := se.Error()
	for _, n := range names {
		if strings.Contains(msg, n) {
			return true
		}
	}
	return false
}

// Profile operations

const profileColumns = `id, company_name, contact_name, contact_phone, contact_email, role, unique_code, photo_url, created_at`

func scanProfile(row interface{ Scan(...any) error }) (*model.Profile, error) {
	var p model.Profile
	var role string
	if err := row.Scan(&p.ID, &p.CompanyName, &p.ContactName, &p.ContactPhone, &p.ContactEmail, &role, &p.UniqueCode, &p.PhotoURL, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.Role = model.Role(role)
	return &p, nil
}

func (r *SQLiteRepository) CreateProfile(ctx context.Context, p *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.CompanyName, p.ContactName, p.ContactPhone, p.ContactEmail, string(p.Role), p.UniqueCode, p.PhotoURL, p.CreatedAt.UTC())
	switch {
	case uniqueViolation(err, "unique_code"):
		return compliance.ErrDuplicateCode
	case uniqueViolation(err, "contact_email", "email_role"):
		return compliance.ErrDuplicateEmail
	case err != nil:
		return fmt.Errorf("inserting profile: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdateProfile(ctx context.Context, p *model.Profile) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET company_name = ?, contact_name = ?, contact_phone = ?, contact_email = ?, photo_url = ? WHERE id = ?`,
		p.CompanyName, p.ContactName, p.ContactPhone, p.ContactEmail, p.PhotoURL, p.ID)
	if uniqueViolation(err, "contact_email", "email_role") {
		return compliance.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("updating profile: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) findProfile(ctx context.Context, where string, args ...any) (*model.Profile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE `+where, args...)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding profile: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) FindProfileByID(ctx context.Context, id string) (*model.Profile, error) {
	return r.findProfile(ctx, `id = ?`, id)
}

func (r *SQLiteRepository) FindProfileByCode(ctx context.Context, code string) (*model.Profile, error) {
	return r.findProfile(ctx, `unique_code = ? COLLATE NOCASE`, code)
}

func (r *SQLiteRepository) FindProfileByEmail(ctx context.Context, email string, role model.Role) (*model.Profile, error) {
	return r.findProfile(ctx, `contact_email = ? COLLATE NOCASE AND role = ?`, email, string(role))
}

// Connection operations

const connectionColumns = `id, buyer_profile_id, supplier_profile_id, initiator_id, status, created_at`

func scanConnection(row interface{ Scan(...any) error }) (*model.Connection, error) {
	var c model.Connection
	var status string
	if err := row.Scan(&c.ID, &c.BuyerProfileID, &c.SupplierProfileID, &c.InitiatorID, &status, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Status = model.ConnectionStatus(status)
	return &c, nil
}

func (r *SQLiteRepository) CreateConnection(ctx context.Context, c *model.Connection) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO connections (`+connectionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.BuyerProfileID, c.SupplierProfileID, c.InitiatorID, string(c.Status), c.CreatedAt.UTC())
	if uniqueViolation(err, "connections.buyer_profile_id") {
		return compliance.ErrDuplicateConnection
	}
	if err != nil {
		return fmt.Errorf("inserting connection: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) findConnection(ctx context.Context, where string, args ...any) (*model.Connection, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE `+where, args...)
	c, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding connection: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) FindConnectionByID(ctx context.Context, id string) (*model.Connection, error) {
	return r.findConnection(ctx, `id = ?`, id)
}

func (r *SQLiteRepository) FindConnectionByPair(ctx context.Context, buyerID, supplierID string) (*model.Connection, error) {
	return r.findConnection(ctx, `buyer_profile_id = ? AND supplier_profile_id = ?`, buyerID, supplierID)
}

func (r *SQLiteRepository) ListConnectionsForProfile(ctx context.Context, profileID string) ([]*model.Connection, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+connectionColumns+` FROM connections
		 WHERE buyer_profile_id = ? OR supplier_profile_id = ?
		 ORDER BY created_at, rowid`, profileID, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	defer rows.Close()

	var conns []*model.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning connection: %w", err)
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

func (r *SQLiteRepository) UpdateConnectionStatus(ctx context.Context, id string, status model.ConnectionStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE connections SET status = ? WHERE id = ?`, string(status), id); err != nil {
		return fmt.Errorf("updating connection status: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteConnection(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}
	return nil
}

// Template catalog operations

func (r *SQLiteRepository) CreateTemplate(ctx context.Context, t *model.ChecklistTemplate, items []*model.TemplateItem) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO checklist_templates (id, name, category) VALUES (?, ?, ?)`,
			t.ID, t.Name, t.Category); err != nil {
			return fmt.Errorf("inserting template %s: %w", t.ID, err)
		}
		for _, ti := range items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO template_items (id, template_id, title, help_supplier, help_buyer, basis, position)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				ti.ID, t.ID, ti.Title, ti.HelpText.Supplier, ti.HelpText.Buyer, ti.Basis, ti.Position); err != nil {
				return fmt.Errorf("inserting template item %s: %w", ti.ID, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) FindTemplateByID(ctx context.Context, id string) (*model.ChecklistTemplate, error) {
	var t model.ChecklistTemplate
	err := r.db.QueryRowContext(ctx, `SELECT id, name, category FROM checklist_templates WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding template: %w", err)
	}
	return &t, nil
}

func (r *SQLiteRepository) ListTemplates(ctx context.Context) ([]*model.ChecklistTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, category FROM checklist_templates ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var ts []*model.ChecklistTemplate
	for rows.Next() {
		var t model.ChecklistTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.Category); err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		ts = append(ts, &t)
	}
	return ts, rows.Err()
}

func (r *SQLiteRepository) ListTemplateItems(ctx context.Context, templateIDs []string) ([]*model.TemplateItem, error) {
	query := `SELECT ti.id, ti.template_id, ti.title, ti.help_supplier, ti.help_buyer, ti.basis, ti.position
		FROM template_items ti JOIN checklist_templates t ON t.id = ti.template_id`
	var args []any
	if len(templateIDs) > 0 {
		query += ` WHERE ti.template_id IN (` + placeholders(len(templateIDs)) + `)`
		for _, id := range templateIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY t.rowid, ti.position`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing template items: %w", err)
	}
	defer rows.Close()

	var items []*model.TemplateItem
	for rows.Next() {
		var ti model.TemplateItem
		if err := rows.Scan(&ti.ID, &ti.TemplateID, &ti.Title, &ti.HelpText.Supplier, &ti.HelpText.Buyer, &ti.Basis, &ti.Position); err != nil {
			return nil, fmt.Errorf("scanning template item: %w", err)
		}
		items = append(items, &ti)
	}
	return items, rows.Err()
}

// Audit operations

const auditColumns = `id, buyer_id, supplier_id, status, title, due_date, approval_date, created_at`

func scanAudit(row interface{ Scan(...any) error }) (*model.Audit, error) {
	var a model.Audit
	var status string
	var approval sql.NullTime
	if err := row.Scan(&a.ID, &a.BuyerID, &a.SupplierID, &status, &a.Title, &a.DueDate, &approval, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Status = model.AuditStatus(status)
	if approval.Valid {
		t := approval.Time.UTC()
		a.ApprovalDate = &t
	}
	return &a, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func (r *SQLiteRepository) CreateAudit(ctx context.Context, a *model.Audit, items []*model.Item) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO audits (`+auditColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.BuyerID, a.SupplierID, string(a.Status), a.Title, a.DueDate.UTC(), nullTime(a.ApprovalDate), a.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("inserting audit: %w", err)
		}
		if err := insertAuditTemplates(ctx, tx, a.ID, a.TemplateIDs, 0); err != nil {
			return err
		}
		for _, it := range items {
			if err := insertItem(ctx, tx, it); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertAuditTemplates(ctx context.Context, q querier, auditID string, templateIDs []string, from int) error {
	for i, id := range templateIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO audit_templates (audit_id, template_id, position) VALUES (?, ?, ?)`,
			auditID, id, from+i); err != nil {
			return fmt.Errorf("attaching template %s: %w", id, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) FindAuditByID(ctx context.Context, id string) (*model.Audit, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audits WHERE id = ?`, id)
	a, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding audit: %w", err)
	}
	ids, err := r.auditTemplateIDs(ctx, r.db, a.ID)
	if err != nil {
		return nil, err
	}
	a.TemplateIDs = ids
	return a, nil
}

func (r *SQLiteRepository) auditTemplateIDs(ctx context.Context, q querier, auditID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT template_id FROM audit_templates WHERE audit_id = ? ORDER BY position`, auditID)
	if err != nil {
		return nil, fmt.Errorf("listing audit templates: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning audit template: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) ListAuditsForProfile(ctx context.Context, profileID string, role model.Role) ([]*model.Audit, error) {
	column := "buyer_id"
	if role == model.RoleSupplier {
		column = "supplier_id"
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audits WHERE `+column+` = ? ORDER BY created_at DESC, rowid DESC`, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing audits: %w", err)
	}

	var audits []*model.Audit
	for rows.Next() {
		a, err := scanAudit(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning audit: %w", err)
		}
		audits = append(audits, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, a := range audits {
		if a.TemplateIDs, err = r.auditTemplateIDs(ctx, r.db, a.ID); err != nil {
			return nil, err
		}
	}
	return audits, nil
}

func (r *SQLiteRepository) UpdateAudit(ctx context.Context, a *model.Audit) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE audits SET status = ?, approval_date = ? WHERE id = ?`,
		string(a.Status), nullTime(a.ApprovalDate), a.ID); err != nil {
		return fmt.Errorf("updating audit: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) AddAuditItems(ctx context.Context, a *model.Audit, items []*model.Item) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		stored, err := r.auditTemplateIDs(ctx, tx, a.ID)
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
		if err := insertAuditTemplates(ctx, tx, a.ID, missing, len(stored)); err != nil {
			return err
		}
		for _, it := range items {
			if err := insertItem(ctx, tx, it); err != nil {
				return err
			}
		}
		return nil
	})
}

// Item operations

const itemColumns = `id, audit_id, source, template_item_id, title, help_supplier, help_buyer, status, evidence_text, notes, created_at`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	var it model.Item
	var source, status string
	var templateItemID sql.NullString
	if err := row.Scan(&it.ID, &it.AuditID, &source, &templateItemID, &it.Title, &it.HelpText.Supplier, &it.HelpText.Buyer,
		&status, &it.EvidenceText, &it.Notes, &it.CreatedAt); err != nil {
		return nil, err
	}
	it.Source = model.ItemSource(source)
	it.Status = model.ItemStatus(status)
	it.TemplateItemID = templateItemID.String
	return &it, nil
}

func insertItem(ctx context.Context, q querier, it *model.Item) error {
	var templateItemID sql.NullString
	if it.TemplateItemID != "" {
		templateItemID = sql.NullString{String: it.TemplateItemID, Valid: true}
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO audit_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.AuditID, string(it.Source), templateItemID, it.Title, it.HelpText.Supplier, it.HelpText.Buyer,
		string(it.Status), it.EvidenceText, it.Notes, it.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("inserting item %s: %w", it.ID, err)
	}
	return insertEvidenceFiles(ctx, q, it.ID, it.EvidenceFiles, 0)
}

func insertEvidenceFiles(ctx context.Context, q querier, itemID string, files []model.EvidenceFile, from int) error {
	for i, f := range files {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO evidence_files (item_id, position, url, name) VALUES (?, ?, ?, ?)`,
			itemID, from+i, f.URL, f.Name); err != nil {
			return fmt.Errorf("inserting evidence file %s: %w", f.Name, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) CreateItem(ctx context.Context, item *model.Item) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return insertItem(ctx, tx, item)
	})
}

func (r *SQLiteRepository) FindItemByID(ctx context.Context, id string) (*model.Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM audit_items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding item: %w", err)
	}
	files, err := r.evidenceFiles(ctx, `ef.item_id = ?`, id)
	if err != nil {
		return nil, err
	}
	it.EvidenceFiles = files[id]
	return it, nil
}

func (r *SQLiteRepository) ListItemsForAudit(ctx context.Context, auditID string) ([]*model.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM audit_items WHERE audit_id = ? ORDER BY rowid`, auditID)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}

	var items []*model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	files, err := r.evidenceFiles(ctx,
		`ef.item_id IN (SELECT id FROM audit_items WHERE audit_id = ?)`, auditID)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		it.EvidenceFiles = files[it.ID]
	}
	return items, nil
}

// evidenceFiles loads evidence files matching where, grouped by item ID.
func (r *SQLiteRepository) evidenceFiles(ctx context.Context, where string, args ...any) (map[string][]model.EvidenceFile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ef.item_id, ef.url, ef.name FROM evidence_files ef WHERE `+where+` ORDER BY ef.item_id, ef.position`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing evidence files: %w", err)
	}
	defer rows.Close()

	files := make(map[string][]model.EvidenceFile)
	for rows.Next() {
		var itemID string
		var f model.EvidenceFile
		if err := rows.Scan(&itemID, &f.URL, &f.Name); err != nil {
			return nil, fmt.Errorf("scanning evidence file: %w", err)
		}
		files[itemID] = append(files[itemID], f)
	}
	return files, rows.Err()
}

func (r *SQLiteRepository) SaveItemEvidence(ctx context.Context, item *model.Item, appended []model.EvidenceFile) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE audit_items SET status = ?, evidence_text = ?, notes = ? WHERE id = ?`,
			string(item.Status), item.EvidenceText, item.Notes, item.ID); err != nil {
			return fmt.Errorf("updating item evidence: %w", err)
		}
		var next int
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position) + 1, 0) FROM evidence_files WHERE item_id = ?`, item.ID).Scan(&next); err != nil {
			return fmt.Errorf("finding next evidence position: %w", err)
		}
		return insertEvidenceFiles(ctx, tx, item.ID, appended, next)
	})
}

func (r *SQLiteRepository) ReviewItem(ctx context.Context, id string, status model.ItemStatus, comment *model.Comment) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE audit_items SET status = ? WHERE id = ?`, string(status), id); err != nil {
			return fmt.Errorf("updating item status: %w", err)
		}
		if comment == nil {
			return nil
		}
		return insertComment(ctx, tx, comment)
	})
}

// Comment operations

func insertComment(ctx context.Context, q querier, c *model.Comment) error {
	if _, err := q.ExecContext(ctx,
		`INSERT INTO item_comments (id, item_id, user_id, comment_text, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.ItemID, c.UserID, c.Text, c.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("inserting comment: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CreateComment(ctx context.Context, c *model.Comment) error {
	return insertComment(ctx, r.db, c)
}

func (r *SQLiteRepository) ListCommentsForItem(ctx context.Context, itemID string) ([]*model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, item_id, user_id, comment_text, created_at FROM item_comments
		 WHERE item_id = ? ORDER BY created_at, rowid`, itemID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	defer rows.Close()

	var comments []*model.Comment
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.ItemID, &c.UserID, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning comment: %w", err)
		}
		comments = append(comments, &c)
	}
	return comments, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
