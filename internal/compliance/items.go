package compliance

import (
	"context"
	"fmt"
	"io"
	"strings"

	"auditflow/internal/model"
)

// RejectionPrefix marks a comment written as the reason for a rejection.
const RejectionPrefix = "REJECTION: "

// ReviewResult is the outcome of ReviewItem.
type ReviewResult struct {
	Item      *model.Item
	Finalized bool // the review completed the audit
}

// GetItem returns an item with its evidence files.
func (s *Service) GetItem(ctx context.Context, itemID string) (*model.Item, error) {
	item, err := s.repo.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("finding item: %w", err)
	}
	if item == nil {
		return nil, notFound("item", itemID)
	}
	return item, nil
}

// ReadEvidenceFile writes the n-th evidence file of an item, counting from
// zero in upload order, to w.
func (s *Service) ReadEvidenceFile(ctx context.Context, itemID string, n int, w io.Writer) (model.EvidenceFile, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return model.EvidenceFile{}, err
	}
	if n < 0 || n >= len(item.EvidenceFiles) {
		return model.EvidenceFile{}, notFound("evidence file", fmt.Sprintf("%s/%d", itemID, n))
	}
	if s.blobs == nil {
		return model.EvidenceFile{}, fmt.Errorf("no blob store configured")
	}
	f := item.EvidenceFiles[n]
	if err := s.blobs.Get(ctx, f.URL, w); err != nil {
		return model.EvidenceFile{}, fmt.Errorf("reading %s: %w", f.Name, err)
	}
	return f, nil
}

// lockItem takes the lock of the item's audit and re-reads the item under it.
func (s *Service) lockItem(ctx context.Context, itemID string) (*model.Item, *model.Audit, func(), error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return nil, nil, nil, err
	}
	unlock := s.locks.Lock(item.AuditID)

	item, err = s.GetItem(ctx, itemID)
	if err != nil {
		unlock()
		return nil, nil, nil, err
	}
	audit, err := s.findAudit(ctx, item.AuditID)
	if err != nil {
		unlock()
		return nil, nil, nil, err
	}
	return item, audit, unlock, nil
}

// SubmitEvidence stores the uploaded files and records a submission for an
// item. Files are appended to earlier uploads; evidence text and notes are
// replaced. The item always moves to pending_review, even for an empty
// submission.
func (s *Service) SubmitEvidence(ctx context.Context, itemID string, ev Evidence) (*model.Item, error) {
	item, audit, unlock, err := s.lockItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if audit.Status == model.AuditApproved {
		return nil, ErrAuditFinalized
	}

	files, err := s.storeUploads(ctx, ev.Files)
	if err != nil {
		return nil, err
	}

	item.EvidenceFiles = append(item.EvidenceFiles, files...)
	item.EvidenceText = ev.EvidenceText
	item.Notes = ev.Notes
	item.Status = model.ItemPendingReview
	if err := s.repo.SaveItemEvidence(ctx, item, files); err != nil {
		s.discardUploads(ctx, files)
		return nil, fmt.Errorf("saving evidence: %w", err)
	}

	s.logger.Info("evidence submitted", "item", item.ID, "audit", item.AuditID, "files", len(files))
	return item, nil
}

// ReviewItem approves or rejects an item waiting for review. A rejection
// needs a reason, which is appended to the item's thread as a comment by
// reviewerID. The audit's finalization is recomputed afterwards.
func (s *Service) ReviewItem(ctx context.Context, itemID, reviewerID string, decision Decision, comment string) (*ReviewResult, error) {
	comment = strings.TrimSpace(comment)
	var status model.ItemStatus
	switch decision {
	case DecisionApprove:
		status = model.ItemApproved
	case DecisionReject:
		if comment == "" {
			return nil, invalid("rejection reason is required")
		}
		status = model.ItemRejected
	default:
		return nil, invalid("unknown review decision %q", decision)
	}

	if _, err := s.GetProfile(ctx, reviewerID); err != nil {
		return nil, err
	}

	item, audit, unlock, err := s.lockItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if audit.Status == model.AuditApproved {
		return nil, ErrAuditFinalized
	}
	if item.Status != model.ItemPendingReview {
		return nil, fmt.Errorf("%w: item %s is %s, not %s", ErrInvalidState, item.ID, item.Status, model.ItemPendingReview)
	}

	var reason *model.Comment
	if status == model.ItemRejected {
		reason = s.newComment(item.ID, reviewerID, RejectionPrefix+comment)
	}
	if err := s.repo.ReviewItem(ctx, item.ID, status, reason); err != nil {
		return nil, fmt.Errorf("saving review: %w", err)
	}
	item.Status = status
	s.logger.Info("item reviewed", "item", item.ID, "audit", item.AuditID, "status", status)

	finalized, err := s.recomputeFinalization(ctx, item.AuditID)
	if err != nil {
		return nil, err
	}
	return &ReviewResult{Item: item, Finalized: finalized}, nil
}

// AddCustomItem lets the supplier add an evidence item outside the buyer's
// checklist. It is created straight in pending_review. Finalized audits take
// no new items.
func (s *Service) AddCustomItem(ctx context.Context, auditID, title string, files []Upload, notes string) (*model.Item, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, invalid("custom item title is required")
	}

	unlock := s.locks.Lock(auditID)
	defer unlock()

	audit, err := s.findAudit(ctx, auditID)
	if err != nil {
		return nil, err
	}
	if audit.Status == model.AuditApproved {
		return nil, ErrAuditFinalized
	}

	stored, err := s.storeUploads(ctx, files)
	if err != nil {
		return nil, err
	}

	item := &model.Item{
		ID:            s.idgen.New(),
		AuditID:       audit.ID,
		Source:        model.SourceSupplierCustom,
		Title:         title,
		Status:        model.ItemPendingReview,
		EvidenceFiles: stored,
		Notes:         notes,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		s.discardUploads(ctx, stored)
		return nil, fmt.Errorf("creating custom item: %w", err)
	}

	s.logger.Info("supplier item added", "item", item.ID, "audit", audit.ID, "files", len(stored))
	return item, nil
}

// AddComment appends a comment to an item's thread.
func (s *Service) AddComment(ctx context.Context, itemID, userID, text string) (*model.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, invalid("comment text is required")
	}
	item, _, unlock, err := s.lockItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return s.appendComment(ctx, item.ID, userID, text)
}

// ListComments returns an item's thread, oldest first.
func (s *Service) ListComments(ctx context.Context, itemID string) ([]*model.Comment, error) {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	comments, err := s.repo.ListCommentsForItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return comments, nil
}

func (s *Service) appendComment(ctx context.Context, itemID, userID, text string) (*model.Comment, error) {
	if _, err := s.GetProfile(ctx, userID); err != nil {
		return nil, err
	}
	c := s.newComment(itemID, userID, text)
	if err := s.repo.CreateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("creating comment: %w", err)
	}
	return c, nil
}

func (s *Service) newComment(itemID, userID, text string) *model.Comment {
	return &model.Comment{
		ID:        s.idgen.New(),
		ItemID:    itemID,
		UserID:    userID,
		Text:      text,
		CreatedAt: s.clock.Now(),
	}
}
