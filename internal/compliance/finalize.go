package compliance

import (
	"context"
	"fmt"

	"auditflow/internal/model"
)

// IsComplete reports whether an audit with these items can be finalized:
// at least one item, and every item approved.
func IsComplete(items []*model.Item) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it.Status != model.ItemApproved {
			return false
		}
	}
	return true
}

// RecomputeFinalization approves the audit when IsComplete holds for all of
// its items, stamping the approval date once. It reports whether the audit is
// approved after the call. Calling it again on an approved audit changes
// nothing.
func (s *Service) RecomputeFinalization(ctx context.Context, auditID string) (bool, error) {
	unlock := s.locks.Lock(auditID)
	defer unlock()
	return s.recomputeFinalization(ctx, auditID)
}

// recomputeFinalization expects the audit lock to be held.
func (s *Service) recomputeFinalization(ctx context.Context, auditID string) (bool, error) {
	audit, err := s.findAudit(ctx, auditID)
	if err != nil {
		return false, err
	}
	if audit.Status == model.AuditApproved {
		return true, nil
	}

	items, err := s.repo.ListItemsForAudit(ctx, auditID)
	if err != nil {
		return false, fmt.Errorf("listing items: %w", err)
	}
	if !IsComplete(items) {
		return false, nil
	}

	approved := dateOf(s.clock.Now())
	audit.Status = model.AuditApproved
	audit.ApprovalDate = &approved
	if err := s.repo.UpdateAudit(ctx, audit); err != nil {
		return false, fmt.Errorf("finalizing audit: %w", err)
	}

	s.logger.Info("audit finalized", "audit", auditID, "items", len(items), "approval_date", approved.Format("2006-01-02"))
	return true, nil
}
