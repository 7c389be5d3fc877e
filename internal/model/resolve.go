package model

import "fmt"

// ResolvedItem is the display form of an Item.
type ResolvedItem struct {
	Title    string
	HelpText HelpText
	Basis    string
}

// Resolve returns the title, help text and basis of the item. Template items
// take them from their TemplateItem, looked up in templateItems by ID.
func (i *Item) Resolve(templateItems map[string]*TemplateItem) (ResolvedItem, error) {
	switch i.Source {
	case SourceBuyerTemplate:
		ti, ok := templateItems[i.TemplateItemID]
		if !ok {
			return ResolvedItem{}, fmt.Errorf("template item %s of item %s not loaded", i.TemplateItemID, i.ID)
		}
		return ResolvedItem{Title: ti.Title, HelpText: ti.HelpText, Basis: ti.Basis}, nil
	case SourceBuyerCustom:
		return ResolvedItem{Title: i.Title, HelpText: i.HelpText}, nil
	case SourceSupplierCustom:
		return ResolvedItem{Title: i.Title, Basis: "Custom Supplier Item"}, nil
	default:
		return ResolvedItem{}, fmt.Errorf("item %s has unknown source %q", i.ID, i.Source)
	}
}
