package compliance_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"auditflow/internal/compliance"
	"auditflow/internal/model"
)

func TestService_CreateAudit(t *testing.T) {
	ctx := context.Background()

	t.Run("materializes template and custom items", func(t *testing.T) {
		f := newFixture(t)
		buyer, supplier := f.connected(t)
		t1 := f.template(t, "template_1", 2)
		f.template(t, "template_2", 1)

		audit := f.createAudit(t, buyer, supplier, []string{"template_1", "template_2", "template_1"}, "Water test")

		if audit.Status != model.AuditPending {
			t.Errorf("Status = %s, want pending", audit.Status)
		}
		if audit.ApprovalDate != nil {
			t.Errorf("ApprovalDate = %v, want nil", audit.ApprovalDate)
		}
		if got := audit.TemplateIDs; len(got) != 2 || got[0] != "template_1" || got[1] != "template_2" {
			t.Errorf("TemplateIDs = %v, want [template_1 template_2]", got)
		}
		wantDue := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		if !audit.DueDate.Equal(wantDue) {
			t.Errorf("DueDate = %v, want %v", audit.DueDate, wantDue)
		}

		items := f.items(t, audit.ID)
		if len(items) != 4 {
			t.Fatalf("items = %d, want 4", len(items))
		}
		if items[0].TemplateItemID != t1[0].ID || items[1].TemplateItemID != t1[1].ID {
			t.Errorf("template item order = %s, %s", items[0].TemplateItemID, items[1].TemplateItemID)
		}
		for _, it := range items {
			if it.Status != model.ItemPendingUpload {
				t.Errorf("item %s status = %s, want pending_upload", it.ID, it.Status)
			}
		}
		custom := items[3]
		if custom.Source != model.SourceBuyerCustom || custom.Title != "Water test" || custom.HelpText.Supplier != "help Water test" {
			t.Errorf("custom item = %+v", custom)
		}
	})

	t.Run("requires an active connection", func(t *testing.T) {
		f := newFixture(t)
		buyer := f.register(t, "Fresh Foods", model.RoleBuyer)
		supplier := f.register(t, "Green Farms", model.RoleSupplier)
		f.template(t, "template_1", 1)

		params := compliance.CreateAuditParams{
			BuyerID: buyer.ID, SupplierID: supplier.ID, Title: "Annual", TemplateIDs: []string{"template_1"},
		}
		if _, err := f.svc.CreateAudit(ctx, params); !errors.Is(err, compliance.ErrNotConnected) {
			t.Errorf("CreateAudit() without connection error = %v, want ErrNotConnected", err)
		}

		if _, err := f.svc.RequestConnection(ctx, buyer.ID, supplier.UniqueCode); err != nil {
			t.Fatalf("RequestConnection() error = %v", err)
		}
		if _, err := f.svc.CreateAudit(ctx, params); !errors.Is(err, compliance.ErrNotConnected) {
			t.Errorf("CreateAudit() with pending connection error = %v, want ErrNotConnected", err)
		}
	})

	t.Run("rejects bad input", func(t *testing.T) {
		f := newFixture(t)
		buyer, supplier := f.connected(t)
		f.template(t, "template_1", 1)

		tests := []struct {
			name   string
			params compliance.CreateAuditParams
			want   error
		}{
			{"blank title", compliance.CreateAuditParams{BuyerID: buyer.ID, SupplierID: supplier.ID, Title: " "}, compliance.ErrValidation},
			{"blank custom title", compliance.CreateAuditParams{BuyerID: buyer.ID, SupplierID: supplier.ID, Title: "A", CustomItems: []compliance.CustomItemSpec{{Title: ""}}}, compliance.ErrValidation},
			{"swapped roles", compliance.CreateAuditParams{BuyerID: supplier.ID, SupplierID: buyer.ID, Title: "A"}, compliance.ErrValidation},
			{"unknown template", compliance.CreateAuditParams{BuyerID: buyer.ID, SupplierID: supplier.ID, Title: "A", TemplateIDs: []string{"template_9"}}, compliance.ErrNotFound},
			{"unknown buyer", compliance.CreateAuditParams{BuyerID: "nobody", SupplierID: supplier.ID, Title: "A"}, compliance.ErrNotFound},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := f.svc.CreateAudit(ctx, tt.params); !errors.Is(err, tt.want) {
					t.Errorf("CreateAudit() error = %v, want %v", err, tt.want)
				}
			})
		}
	})
}

func TestService_AddItemsToAudit(t *testing.T) {
	ctx := context.Background()

	t.Run("skips template items already present", func(t *testing.T) {
		f := newFixture(t)
		buyer, supplier := f.connected(t)
		f.template(t, "template_1", 2)
		f.template(t, "template_2", 3)
		audit := f.createAudit(t, buyer, supplier, []string{"template_1"})

		ok, err := f.svc.AddItemsToAudit(ctx, audit.ID, []string{"template_1", "template_2"}, []compliance.CustomItemSpec{{Title: "Pest log"}})
		if err != nil || !ok {
			t.Fatalf("AddItemsToAudit() = %v, %v", ok, err)
		}
		if n := len(f.items(t, audit.ID)); n != 6 {
			t.Errorf("items = %d, want 6", n)
		}

		ok, err = f.svc.AddItemsToAudit(ctx, audit.ID, []string{"template_2"}, nil)
		if err != nil || !ok {
			t.Fatalf("second AddItemsToAudit() = %v, %v", ok, err)
		}
		if n := len(f.items(t, audit.ID)); n != 6 {
			t.Errorf("items after repeat = %d, want 6", n)
		}

		got := f.audit(t, audit.ID).TemplateIDs
		if len(got) != 2 || got[1] != "template_2" {
			t.Errorf("TemplateIDs = %v, want [template_1 template_2]", got)
		}
	})

	t.Run("returns false once the audit left pending", func(t *testing.T) {
		f := newFixture(t)
		buyer, supplier := f.connected(t)
		f.template(t, "template_1", 1)
		f.template(t, "template_2", 1)
		audit := f.createAudit(t, buyer, supplier, []string{"template_1"})

		f.submit(t, f.items(t, audit.ID)[0].ID)
		if ok, err := f.svc.SubmitForReview(ctx, audit.ID); err != nil || !ok {
			t.Fatalf("SubmitForReview() = %v, %v", ok, err)
		}

		ok, err := f.svc.AddItemsToAudit(ctx, audit.ID, []string{"template_2"}, nil)
		if err != nil {
			t.Fatalf("AddItemsToAudit() error = %v", err)
		}
		if ok {
			t.Error("AddItemsToAudit() = true, want false for in_review audit")
		}
		if n := len(f.items(t, audit.ID)); n != 1 {
			t.Errorf("items = %d, want 1", n)
		}
	})

	t.Run("missing audit", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.AddItemsToAudit(ctx, "missing", nil, nil); !errors.Is(err, compliance.ErrNotFound) {
			t.Errorf("AddItemsToAudit() error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_SubmitForReview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	buyer, supplier := f.connected(t)
	f.template(t, "template_1", 2)
	audit := f.createAudit(t, buyer, supplier, []string{"template_1"})
	items := f.items(t, audit.ID)

	f.submit(t, items[0].ID)
	if _, err := f.svc.AddCustomItem(ctx, audit.ID, "Extra cert", nil, ""); err != nil {
		t.Fatalf("AddCustomItem() error = %v", err)
	}

	ok, err := f.svc.SubmitForReview(ctx, audit.ID)
	if err != nil {
		t.Fatalf("SubmitForReview() error = %v", err)
	}
	if ok {
		t.Fatal("SubmitForReview() = true with an item still pending upload")
	}

	f.submit(t, items[1].ID)
	ok, err = f.svc.SubmitForReview(ctx, audit.ID)
	if err != nil || !ok {
		t.Fatalf("SubmitForReview() = %v, %v; want true", ok, err)
	}
	if got := f.audit(t, audit.ID).Status; got != model.AuditInReview {
		t.Errorf("Status = %s, want in_review", got)
	}

	ok, err = f.svc.SubmitForReview(ctx, audit.ID)
	if err != nil || ok {
		t.Errorf("repeat SubmitForReview() = %v, %v; want false, nil", ok, err)
	}
}

func TestService_ListAuditsForUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	buyer, supplier := f.connected(t)
	f.template(t, "template_1", 1)

	first := f.createAudit(t, buyer, supplier, []string{"template_1"})
	f.clock.Advance(time.Hour)
	second := f.createAudit(t, buyer, supplier, []string{"template_1"})

	for _, p := range []*model.Profile{buyer, supplier} {
		audits, err := f.svc.ListAuditsForUser(ctx, p.ID)
		if err != nil {
			t.Fatalf("ListAuditsForUser(%s) error = %v", p.Role, err)
		}
		if len(audits) != 2 || audits[0].ID != second.ID || audits[1].ID != first.ID {
			t.Errorf("ListAuditsForUser(%s) = %v, want newest first", p.Role, audits)
		}
	}

	other := f.register(t, "Other Buyer", model.RoleBuyer)
	audits, err := f.svc.ListAuditsForUser(ctx, other.ID)
	if err != nil || len(audits) != 0 {
		t.Errorf("ListAuditsForUser(other) = %v, %v", audits, err)
	}

	details, err := f.svc.GetAudit(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetAudit() error = %v", err)
	}
	if details.Buyer.ID != buyer.ID || details.Supplier.ID != supplier.ID {
		t.Errorf("GetAudit() parties = %s/%s", details.Buyer.ID, details.Supplier.ID)
	}
}
