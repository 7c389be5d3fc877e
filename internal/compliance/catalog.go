package compliance

import (
	"context"
	"fmt"

	"auditflow/internal/model"
)

// ListTemplates returns every checklist template.
func (s *Service) ListTemplates(ctx context.Context) ([]*model.ChecklistTemplate, error) {
	ts, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	return ts, nil
}

// ListTemplateItems returns the items of the given templates, or all items
// when none are given.
func (s *Service) ListTemplateItems(ctx context.Context, templateIDs ...string) ([]*model.TemplateItem, error) {
	items, err := s.repo.ListTemplateItems(ctx, templateIDs)
	if err != nil {
		return nil, fmt.Errorf("listing template items: %w", err)
	}
	return items, nil
}

// requireTemplates checks every template exists and returns their items
// grouped in request order. Duplicate IDs are dropped.
func (s *Service) requireTemplates(ctx context.Context, templateIDs []string) ([]string, []*model.TemplateItem, error) {
	seen := make(map[string]bool, len(templateIDs))
	var ids []string
	for _, id := range templateIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		t, err := s.repo.FindTemplateByID(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("finding template: %w", err)
		}
		if t == nil {
			return nil, nil, notFound("template", id)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil, nil
	}

	all, err := s.repo.ListTemplateItems(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("listing template items: %w", err)
	}
	byTemplate := make(map[string][]*model.TemplateItem, len(ids))
	for _, ti := range all {
		byTemplate[ti.TemplateID] = append(byTemplate[ti.TemplateID], ti)
	}
	var ordered []*model.TemplateItem
	for _, id := range ids {
		ordered = append(ordered, byTemplate[id]...)
	}
	return ids, ordered, nil
}
