// Package certificate renders audit certificates as Excel workbooks.
package certificate

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"auditflow/internal/compliance"
	"auditflow/internal/model"
)

// Sheet names of a rendered certificate.
const (
	SheetCertificate  = "Certificate"
	SheetItems        = "Items"
	SheetVerification = "Verification"
)

const dateLayout = "2006-01-02"

var itemHeaders = []string{"Section", "Item", "Basis", "Status", "Purpose", "Evidence Text", "Evidence Files", "Notes"}

var statusLabels = map[model.ItemStatus]string{
	model.ItemApproved:      "Approved",
	model.ItemRejected:      "Rejected",
	model.ItemPendingReview: "Pending Review",
	model.ItemPendingUpload: "Pending Upload",
}

// XLSXRenderer writes a certificate workbook: a cover sheet, one row per
// item, and for final certificates a verification sheet.
type XLSXRenderer struct {
	// Brand is printed on the cover sheet. Defaults to "auditflow".
	Brand string
}

var _ compliance.CertificateRenderer = (*XLSXRenderer)(nil)

// section is a titled group of items in display order.
type section struct {
	title string
	items []*model.Item
}

// Render writes the workbook for snap to w.
func (r *XLSXRenderer) Render(w io.Writer, snap *compliance.CertificateSnapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(SheetCertificate)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to remove default sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return err
	}

	if err := r.writeCover(f, styles, snap); err != nil {
		return err
	}
	if err := writeItems(f, styles, snap); err != nil {
		return err
	}
	if !snap.Preview {
		if err := writeVerification(f, styles, snap); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type styles struct {
	title, header, label, data, verified int
}

func newStyles(f *excelize.File) (*styles, error) {
	var s styles
	var err error
	border := []excelize.Border{
		{Type: "left", Color: "CCCCCC", Style: 1},
		{Type: "right", Color: "CCCCCC", Style: 1},
		{Type: "top", Color: "CCCCCC", Style: 1},
		{Type: "bottom", Color: "CCCCCC", Style: 1},
	}

	if s.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	}); err != nil {
		return nil, fmt.Errorf("failed to create title style: %w", err)
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#15803D"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	}); err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	if s.label, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err != nil {
		return nil, fmt.Errorf("failed to create label style: %w", err)
	}
	if s.data, err = f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
		Border:    border,
	}); err != nil {
		return nil, fmt.Errorf("failed to create data style: %w", err)
	}
	if s.verified, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 48, Color: "16A34A"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	}); err != nil {
		return nil, fmt.Errorf("failed to create verified style: %w", err)
	}
	return &s, nil
}

func (r *XLSXRenderer) writeCover(f *excelize.File, st *styles, snap *compliance.CertificateSnapshot) error {
	brand := r.Brand
	if brand == "" {
		brand = "auditflow"
	}
	a := snap.Audit
	heading := "Supply Chain Compliance Audit Report"
	if snap.Preview {
		heading += " (Preview)"
	}

	rows := [][]any{
		{brand},
		{heading},
		{fmt.Sprintf("This document certifies that %s has met the compliance standards required by %s for the audit %q.",
			snap.Supplier.CompanyName, snap.Buyer.CompanyName, a.Title)},
		{},
		{"Audit Title", a.Title},
		{"Report ID", a.ID},
		{"Status", string(a.Status)},
		{"Due Date", a.DueDate.Format(dateLayout)},
		{"Approval Date", approvalDateText(snap)},
		{"Generated", snap.GeneratedAt.UTC().Format("2006-01-02 15:04:05")},
		{},
		{"Auditing Party (Buyer)", "", "Audited Party (Supplier)"},
		{"Company", snap.Buyer.CompanyName, "Company", snap.Supplier.CompanyName},
		{"Contact", snap.Buyer.ContactName, "Contact", snap.Supplier.ContactName},
		{"Phone", snap.Buyer.ContactPhone, "Phone", snap.Supplier.ContactPhone},
		{"Email", snap.Buyer.ContactEmail, "Email", snap.Supplier.ContactEmail},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(SheetCertificate, cell, &row); err != nil {
			return fmt.Errorf("failed to write cover row %d: %w", i+1, err)
		}
	}

	f.SetCellStyle(SheetCertificate, "A1", "A2", st.title)
	f.SetCellStyle(SheetCertificate, "A5", "A10", st.label)
	f.SetCellStyle(SheetCertificate, "A12", "C12", st.label)
	f.SetColWidth(SheetCertificate, "A", "A", 24)
	f.SetColWidth(SheetCertificate, "B", "B", 36)
	f.SetColWidth(SheetCertificate, "C", "C", 24)
	f.SetColWidth(SheetCertificate, "D", "D", 36)
	return nil
}

func writeItems(f *excelize.File, st *styles, snap *compliance.CertificateSnapshot) error {
	if _, err := f.NewSheet(SheetItems); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetItems, "A1", &itemHeaders); err != nil {
		return fmt.Errorf("failed to write item headers: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(itemHeaders), 1)
	f.SetCellStyle(SheetItems, "A1", last, st.header)

	idx := snap.TemplateItemIndex()
	row := 2
	for _, sec := range sections(snap) {
		for _, it := range sec.items {
			resolved, err := it.Resolve(idx)
			if err != nil {
				return fmt.Errorf("resolving item: %w", err)
			}
			purpose := resolved.HelpText.Buyer
			if it.Source == model.SourceSupplierCustom {
				purpose = "Custom evidence provided by the supplier to support the audit."
			}
			values := []any{
				sec.title,
				resolved.Title,
				orNA(resolved.Basis),
				statusText(it, snap.Preview),
				purpose,
				it.EvidenceText,
				fileNames(it.EvidenceFiles),
				it.Notes,
			}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(SheetItems, cell, &values); err != nil {
				return fmt.Errorf("failed to write item row %d: %w", row, err)
			}
			end, _ := excelize.CoordinatesToCellName(len(values), row)
			f.SetCellStyle(SheetItems, cell, end, st.data)
			row++
		}
	}

	f.SetColWidth(SheetItems, "A", "A", 32)
	f.SetColWidth(SheetItems, "B", "C", 36)
	f.SetColWidth(SheetItems, "D", "D", 16)
	f.SetColWidth(SheetItems, "E", "H", 40)
	return f.SetPanes(SheetItems, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeVerification(f *excelize.File, st *styles, snap *compliance.CertificateSnapshot) error {
	if _, err := f.NewSheet(SheetVerification); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	cells := map[string]string{
		"A1": "VERIFIED",
		"A3": "Date of Final Approval: " + approvalDateText(snap),
		"A5": "Report ID: " + snap.Audit.ID,
	}
	for cell, v := range cells {
		if err := f.SetCellValue(SheetVerification, cell, v); err != nil {
			return fmt.Errorf("failed to write %s: %w", cell, err)
		}
	}
	f.SetCellStyle(SheetVerification, "A1", "A1", st.verified)
	f.SetRowHeight(SheetVerification, 1, 72)
	f.SetColWidth(SheetVerification, "A", "A", 60)
	return nil
}

// sections groups the items shown on the certificate: one section per
// attached template in audit order, then buyer custom items, then supplier
// items. Final certificates list approved items only. Empty sections are
// dropped.
func sections(snap *compliance.CertificateSnapshot) []section {
	include := func(it *model.Item) bool {
		return snap.Preview || it.Status == model.ItemApproved
	}
	templateOf := make(map[string]string, len(snap.TemplateItems))
	for _, ti := range snap.TemplateItems {
		templateOf[ti.ID] = ti.TemplateID
	}
	names := make(map[string]string, len(snap.Templates))
	for _, t := range snap.Templates {
		names[t.ID] = t.Name
	}

	var out []section
	for _, tid := range snap.Audit.TemplateIDs {
		name := names[tid]
		if name == "" {
			name = "Unknown Template"
		}
		sec := section{title: "Details: " + name}
		for _, it := range snap.Items {
			if it.Source == model.SourceBuyerTemplate && templateOf[it.TemplateItemID] == tid && include(it) {
				sec.items = append(sec.items, it)
			}
		}
		out = append(out, sec)
	}

	buyer := section{title: "Other Requirements (Buyer-defined)"}
	for _, it := range snap.Items {
		if it.Source == model.SourceBuyerCustom && include(it) {
			buyer.items = append(buyer.items, it)
		}
	}
	supplier := section{title: "Supplier-Added Evidence"}
	for _, it := range snap.CustomItems {
		if include(it) {
			supplier.items = append(supplier.items, it)
		}
	}
	out = append(out, buyer, supplier)

	kept := out[:0]
	for _, s := range out {
		if len(s.items) > 0 {
			kept = append(kept, s)
		}
	}
	return kept
}

func statusText(it *model.Item, preview bool) string {
	if !preview {
		return "Approved"
	}
	if s, ok := statusLabels[it.Status]; ok {
		return s
	}
	return "Unknown"
}

func approvalDateText(snap *compliance.CertificateSnapshot) string {
	switch {
	case snap.Audit.ApprovalDate != nil:
		return snap.Audit.ApprovalDate.Format(dateLayout)
	case snap.Preview:
		return "Pending Approval"
	default:
		return "N/A"
	}
}

func fileNames(files []model.EvidenceFile) string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return strings.Join(names, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
