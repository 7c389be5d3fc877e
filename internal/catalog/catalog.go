// Package catalog holds the seeded checklist templates.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"

	"github.com/BurntSushi/toml"

	"auditflow/internal/compliance"
	"auditflow/internal/model"
)

//go:embed templates.toml
var templatesTOML []byte

// Store is the part of the repository Seed writes through.
type Store interface {
	FindTemplateByID(ctx context.Context, id string) (*model.ChecklistTemplate, error)
	CreateTemplate(ctx context.Context, t *model.ChecklistTemplate, items []*model.TemplateItem) error
}

// Template is a checklist template with its items.
type Template struct {
	Template *model.ChecklistTemplate
	Items    []*model.TemplateItem
}

type seedFile struct {
	Templates []seedTemplate `toml:"template"`
}

type seedTemplate struct {
	ID       string     `toml:"id"`
	Name     string     `toml:"name"`
	Category string     `toml:"category"`
	Items    []seedItem `toml:"item"`
}

type seedItem struct {
	ID           string `toml:"id"`
	Title        string `toml:"title"`
	SupplierHelp string `toml:"supplier_help"`
	BuyerHelp    string `toml:"buyer_help"`
	Basis        string `toml:"basis"`
}

// Templates decodes the built-in templates in catalog order.
func Templates() ([]Template, error) {
	var f seedFile
	if _, err := toml.NewDecoder(bytes.NewReader(templatesTOML)).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode template catalog: %w", err)
	}

	out := make([]Template, 0, len(f.Templates))
	for _, st := range f.Templates {
		t := Template{
			Template: &model.ChecklistTemplate{ID: st.ID, Name: st.Name, Category: st.Category},
			Items:    make([]*model.TemplateItem, 0, len(st.Items)),
		}
		for i, si := range st.Items {
			t.Items = append(t.Items, &model.TemplateItem{
				ID:         si.ID,
				TemplateID: st.ID,
				Title:      si.Title,
				HelpText:   model.HelpText{Supplier: si.SupplierHelp, Buyer: si.BuyerHelp},
				Basis:      si.Basis,
				Position:   i,
			})
		}
		out = append(out, t)
	}
	return out, nil
}

// Seed inserts every built-in template missing from store and returns how
// many it added. Templates already present are left as they are.
func Seed(ctx context.Context, store Store, logger compliance.Logger) (int, error) {
	if logger == nil {
		logger = compliance.NewNopLogger()
	}
	templates, err := Templates()
	if err != nil {
		return 0, err
	}

	added := 0
	for _, t := range templates {
		existing, err := store.FindTemplateByID(ctx, t.Template.ID)
		if err != nil {
			return added, fmt.Errorf("checking template %s: %w", t.Template.ID, err)
		}
		if existing != nil {
			continue
		}
		if err := store.CreateTemplate(ctx, t.Template, t.Items); err != nil {
			return added, fmt.Errorf("seeding template %s: %w", t.Template.ID, err)
		}
		logger.Debug("template seeded", "template", t.Template.ID, "items", len(t.Items))
		added++
	}

	logger.Info("template catalog seeded", "added", added, "total", len(templates))
	return added, nil
}
