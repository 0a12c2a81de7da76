package documents

import (
	"fmt"
	"io"

	"gym-manager/internal/models"

	"github.com/xuri/excelize/v2"
)

const membersSheet = "Members"

// WriteMembersSheet writes an .xlsx workbook listing every member and whether
// they paid for the status month.
func WriteMembersSheet(w io.Writer, status models.PaymentStatus) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if err := f.SetSheetName("Sheet1", membersSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	rows := [][]any{{"ID", "Name", "Phone", "Status", "Last Payment"}}
	for _, m := range status.Paid {
		rows = append(rows, []any{m.ID, m.Name, m.Phone, "PAID", m.LastPaid})
	}
	for _, m := range status.Unpaid {
		rows = append(rows, []any{m.ID, m.Name, m.Phone, "UNPAID", "N/A"})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(membersSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
