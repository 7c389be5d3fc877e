package compliance_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"auditflow/internal/blob"
	"auditflow/internal/compliance"
	"auditflow/internal/database"
	"auditflow/internal/model"
	"auditflow/internal/testutil"
)

type fixture struct {
	svc   *compliance.Service
	repo  *database.SQLiteRepository
	clock *testutil.StubClock
	blobs *blob.MemoryStore
	codes *testutil.StubCodeGenerator
	ids   *testutil.StubIDGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  testutil.NewTestRepository(t),
		clock: testutil.FixedClock(),
		blobs: testutil.NewTestBlobStore(),
		codes: testutil.NewStubCodeGenerator(),
		ids:   testutil.NewStubIDGenerator(),
	}
	f.svc = f.serviceWith(f.repo)
	return f
}

// serviceWith builds a second service over repo that shares the fixture's
// blobs, clock and generators.
func (f *fixture) serviceWith(repo compliance.Repository) *compliance.Service {
	return compliance.NewService(repo, f.blobs, compliance.NewNopLogger(), f.clock, f.ids, f.codes)
}

// failingRepo fails the writes whose error field is set.
type failingRepo struct {
	*database.SQLiteRepository
	reviewErr   error
	evidenceErr error
	createErr   error
	profileErr  error
}

func (r *failingRepo) UpdateProfile(ctx context.Context, p *model.Profile) error {
	if r.profileErr != nil {
		return r.profileErr
	}
	return r.SQLiteRepository.UpdateProfile(ctx, p)
}

func (r *failingRepo) ReviewItem(ctx context.Context, id string, status model.ItemStatus, c *model.Comment) error {
	if r.reviewErr != nil {
		return r.reviewErr
	}
	return r.SQLiteRepository.ReviewItem(ctx, id, status, c)
}

func (r *failingRepo) SaveItemEvidence(ctx context.Context, item *model.Item, appended []model.EvidenceFile) error {
	if r.evidenceErr != nil {
		return r.evidenceErr
	}
	return r.SQLiteRepository.SaveItemEvidence(ctx, item, appended)
}

func (r *failingRepo) CreateItem(ctx context.Context, item *model.Item) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.SQLiteRepository.CreateItem(ctx, item)
}

func (f *fixture) register(t *testing.T, company string, role model.Role) *model.Profile {
	t.Helper()
	p, err := f.svc.Register(context.Background(), compliance.RegisterParams{
		CompanyName:  company,
		ContactName:  "Contact " + company,
		ContactEmail: strings.ToLower(strings.ReplaceAll(company, " ", "")) + "@example.com",
		Role:         role,
	})
	if err != nil {
		t.Fatalf("Register(%s) error = %v", company, err)
	}
	return p
}

// connected registers a buyer and a supplier with an active connection.
func (f *fixture) connected(t *testing.T) (buyer, supplier *model.Profile) {
	t.Helper()
	ctx := context.Background()
	buyer = f.register(t, "Fresh Foods", model.RoleBuyer)
	supplier = f.register(t, "Green Farms", model.RoleSupplier)

	conn, err := f.svc.RequestConnection(ctx, buyer.ID, supplier.UniqueCode)
	if err != nil {
		t.Fatalf("RequestConnection() error = %v", err)
	}
	if _, err := f.svc.RespondToConnection(ctx, conn.ID, compliance.DecisionAccept); err != nil {
		t.Fatalf("RespondToConnection() error = %v", err)
	}
	return buyer, supplier
}

// template stores a template with n items named "<id> item <i>".
func (f *fixture) template(t *testing.T, id string, n int) []*model.TemplateItem {
	t.Helper()
	items := make([]*model.TemplateItem, n)
	for i := range items {
		items[i] = &model.TemplateItem{
			ID:         fmt.Sprintf("%s_item_%d", id, i+1),
			TemplateID: id,
			Title:      fmt.Sprintf("%s item %d", id, i+1),
			HelpText:   model.HelpText{Supplier: "Upload the record", Buyer: "Check the record"},
			Basis:      fmt.Sprintf("Regulation %d", i+1),
			Position:   i,
		}
	}
	tmpl := &model.ChecklistTemplate{ID: id, Name: "Template " + id, Category: "Food Safety"}
	if err := f.repo.CreateTemplate(context.Background(), tmpl, items); err != nil {
		t.Fatalf("CreateTemplate(%s) error = %v", id, err)
	}
	return items
}

func (f *fixture) createAudit(t *testing.T, buyer, supplier *model.Profile, templateIDs []string, customs ...string) *model.Audit {
	t.Helper()
	var specs []compliance.CustomItemSpec
	for _, c := range customs {
		specs = append(specs, compliance.CustomItemSpec{Title: c, HelpText: model.HelpText{Supplier: "help " + c}})
	}
	audit, err := f.svc.CreateAudit(context.Background(), compliance.CreateAuditParams{
		BuyerID:     buyer.ID,
		SupplierID:  supplier.ID,
		Title:       "Annual compliance",
		TemplateIDs: templateIDs,
		DueDate:     f.clock.Now().Add(30 * 24 * time.Hour),
		CustomItems: specs,
	})
	if err != nil {
		t.Fatalf("CreateAudit() error = %v", err)
	}
	return audit
}

func (f *fixture) items(t *testing.T, auditID string) []*model.Item {
	t.Helper()
	items, err := f.svc.GetAuditItems(context.Background(), auditID)
	if err != nil {
		t.Fatalf("GetAuditItems() error = %v", err)
	}
	return items
}

func (f *fixture) audit(t *testing.T, auditID string) *model.Audit {
	t.Helper()
	d, err := f.svc.GetAudit(context.Background(), auditID)
	if err != nil {
		t.Fatalf("GetAudit() error = %v", err)
	}
	return d.Audit
}

func (f *fixture) submit(t *testing.T, itemID string, files ...string) *model.Item {
	t.Helper()
	ev := compliance.Evidence{EvidenceText: "evidence for " + itemID}
	for _, name := range files {
		body := "content of " + name
		ev.Files = append(ev.Files, compliance.Upload{Name: name, Size: int64(len(body)), Reader: strings.NewReader(body)})
	}
	item, err := f.svc.SubmitEvidence(context.Background(), itemID, ev)
	if err != nil {
		t.Fatalf("SubmitEvidence(%s) error = %v", itemID, err)
	}
	return item
}

func (f *fixture) review(t *testing.T, itemID, reviewerID string, d compliance.Decision, comment string) *compliance.ReviewResult {
	t.Helper()
	res, err := f.svc.ReviewItem(context.Background(), itemID, reviewerID, d, comment)
	if err != nil {
		t.Fatalf("ReviewItem(%s, %s) error = %v", itemID, d, err)
	}
	return res
}
