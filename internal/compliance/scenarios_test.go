package compliance_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"auditflow/internal/compliance"
	"auditflow/internal/model"
)

// TestAuditLifecycle walks one audit from creation to approval.
func TestAuditLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	buyer, supplier := f.connected(t)
	f.template(t, "template_1", 2)

	// Creation: two template items and one custom item.
	audit := f.createAudit(t, buyer, supplier, []string{"template_1"}, "Water test")
	items := f.items(t, audit.ID)
	if len(items) != 3 {
		t.Fatalf("items = %d, want 3", len(items))
	}
	for _, it := range items {
		if it.Status != model.ItemPendingUpload {
			t.Fatalf("item %s status = %s, want pending_upload", it.ID, it.Status)
		}
	}
	if audit.Status != model.AuditPending {
		t.Fatalf("audit status = %s, want pending", audit.Status)
	}

	// Supplier uploads everything and submits.
	for _, it := range items {
		if got := f.submit(t, it.ID, it.ID+".pdf"); got.Status != model.ItemPendingReview {
			t.Fatalf("item %s status = %s, want pending_review", it.ID, got.Status)
		}
	}
	if ok, err := f.svc.SubmitForReview(ctx, audit.ID); err != nil || !ok {
		t.Fatalf("SubmitForReview() = %v, %v; want true", ok, err)
	}
	if got := f.audit(t, audit.ID).Status; got != model.AuditInReview {
		t.Fatalf("audit status = %s, want in_review", got)
	}

	// Buyer approves two and rejects one.
	f.review(t, items[0].ID, buyer.ID, compliance.DecisionApprove, "")
	f.review(t, items[1].ID, buyer.ID, compliance.DecisionApprove, "")
	res := f.review(t, items[2].ID, buyer.ID, compliance.DecisionReject, "blurry photo")
	if res.Finalized {
		t.Fatal("audit finalized with a rejected item")
	}
	if got := f.audit(t, audit.ID).Status; got != model.AuditInReview {
		t.Fatalf("audit status = %s, want in_review", got)
	}
	comments, err := f.svc.ListComments(ctx, items[2].ID)
	if err != nil {
		t.Fatalf("ListComments() error = %v", err)
	}
	if len(comments) != 1 || !strings.Contains(comments[0].Text, "blurry photo") {
		t.Fatalf("comments = %+v, want the rejection reason", comments)
	}

	// Supplier resubmits, buyer approves, audit finalizes.
	f.clock.Advance(26 * time.Hour)
	if got := f.submit(t, items[2].ID, "sharp.jpg"); got.Status != model.ItemPendingReview || len(got.EvidenceFiles) != 2 {
		t.Fatalf("resubmitted item = %+v", got)
	}
	res = f.review(t, items[2].ID, buyer.ID, compliance.DecisionApprove, "")
	if !res.Finalized {
		t.Fatal("last approval did not finalize the audit")
	}

	final := f.audit(t, audit.ID)
	if final.Status != model.AuditApproved {
		t.Errorf("audit status = %s, want approved", final.Status)
	}
	wantDate := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	if final.ApprovalDate == nil || !final.ApprovalDate.Equal(wantDate) {
		t.Errorf("ApprovalDate = %v, want %v", final.ApprovalDate, wantDate)
	}

	// An approved audit is frozen.
	if _, err := f.svc.SubmitEvidence(ctx, items[0].ID, compliance.Evidence{}); !errors.Is(err, compliance.ErrAuditFinalized) {
		t.Errorf("SubmitEvidence() on approved audit error = %v, want ErrAuditFinalized", err)
	}
	if _, err := f.svc.AddCustomItem(ctx, audit.ID, "Late extra", nil, ""); !errors.Is(err, compliance.ErrAuditFinalized) {
		t.Errorf("AddCustomItem() on approved audit error = %v, want ErrAuditFinalized", err)
	}
}

func TestConnectionLookupFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	buyer := f.register(t, "Fresh Foods", model.RoleBuyer)
	otherBuyer := f.register(t, "Market Hall", model.RoleBuyer)

	if _, err := f.svc.RequestConnection(ctx, buyer.ID, "ZZZZ999"); !errors.Is(err, compliance.ErrNotFound) {
		t.Errorf("unknown code error = %v, want ErrNotFound", err)
	}
	_, err := f.svc.RequestConnection(ctx, buyer.ID, otherBuyer.UniqueCode)
	if !errors.Is(err, compliance.ErrConflict) || !errors.Is(err, compliance.ErrSameRole) {
		t.Errorf("same role error = %v, want ErrConflict and ErrSameRole", err)
	}
}

func TestRecomputeFinalization(t *testing.T) {
	ctx := context.Background()

	t.Run("supplier items block finalization", func(t *testing.T) {
		f := newFixture(t)
		buyer, supplier := f.connected(t)
		f.template(t, "template_1", 1)
		audit := f.createAudit(t, buyer, supplier, []string{"template_1"})
		itemID := f.items(t, audit.ID)[0].ID

		extra, err := f.svc.AddCustomItem(ctx, audit.ID, "Extra cert", nil, "")
		if err != nil {
			t.Fatalf("AddCustomItem() error = %v", err)
		}
		f.submit(t, itemID)
		if res := f.review(t, itemID, buyer.ID, compliance.DecisionApprove, ""); res.Finalized {
			t.Fatal("finalized with a supplier item still pending review")
		}
		if res := f.review(t, extra.ID, buyer.ID, compliance.DecisionApprove, ""); !res.Finalized {
			t.Fatal("approving the last supplier item did not finalize")
		}
	})

	t.Run("empty audit never finalizes", func(t *testing.T) {
		f := newFixture(t)
		buyer, supplier := f.connected(t)
		audit := f.createAudit(t, buyer, supplier, nil)

		ok, err := f.svc.RecomputeFinalization(ctx, audit.ID)
		if err != nil || ok {
			t.Errorf("RecomputeFinalization() = %v, %v; want false, nil", ok, err)
		}
		if got := f.audit(t, audit.ID).Status; got != model.AuditPending {
			t.Errorf("status = %s, want pending", got)
		}
	})

	t.Run("approval date is stamped once", func(t *testing.T) {
		f := newFixture(t)
		buyer, supplier := f.connected(t)
		f.template(t, "template_1", 1)
		audit := f.createAudit(t, buyer, supplier, []string{"template_1"})
		itemID := f.items(t, audit.ID)[0].ID
		f.submit(t, itemID)
		f.review(t, itemID, buyer.ID, compliance.DecisionApprove, "")

		first := *f.audit(t, audit.ID).ApprovalDate
		f.clock.Advance(72 * time.Hour)
		ok, err := f.svc.RecomputeFinalization(ctx, audit.ID)
		if err != nil || !ok {
			t.Fatalf("RecomputeFinalization() = %v, %v; want true, nil", ok, err)
		}
		if got := f.audit(t, audit.ID).ApprovalDate; got == nil || !got.Equal(first) {
			t.Errorf("ApprovalDate = %v, want unchanged %v", got, first)
		}
	})

	t.Run("finalizes straight from pending", func(t *testing.T) {
		f := newFixture(t)
		buyer, supplier := f.connected(t)
		f.template(t, "template_1", 1)
		audit := f.createAudit(t, buyer, supplier, []string{"template_1"})
		itemID := f.items(t, audit.ID)[0].ID
		f.submit(t, itemID)

		if res := f.review(t, itemID, buyer.ID, compliance.DecisionApprove, ""); !res.Finalized {
			t.Fatal("pending audit with every item approved did not finalize")
		}
	})

	t.Run("concurrent reviews finalize once", func(t *testing.T) {
		f := newFixture(t)
		buyer, supplier := f.connected(t)
		f.template(t, "template_1", 4)
		audit := f.createAudit(t, buyer, supplier, []string{"template_1"})
		items := f.items(t, audit.ID)
		for _, it := range items {
			f.submit(t, it.ID)
		}

		var wg sync.WaitGroup
		results := make(chan *compliance.ReviewResult, len(items))
		for _, it := range items {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				res, err := f.svc.ReviewItem(ctx, id, buyer.ID, compliance.DecisionApprove, "")
				if err != nil {
					t.Errorf("ReviewItem(%s) error = %v", id, err)
					return
				}
				results <- res
			}(it.ID)
		}
		wg.Wait()
		close(results)

		finalized := 0
		for res := range results {
			if res.Finalized {
				finalized++
			}
		}
		if finalized != 1 {
			t.Errorf("reviews reporting finalization = %d, want 1", finalized)
		}
		if got := f.audit(t, audit.ID).Status; got != model.AuditApproved {
			t.Errorf("status = %s, want approved", got)
		}
	})
}
