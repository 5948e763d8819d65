package cli

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"retail-ledger/internal/core"
)

const movementsSheet = "Movements"

var movementHeadings = []string{
	"ID", "Date", "Product", "Branch", "Direction", "Cause",
	"Quantity", "Before", "After", "Document", "Reason",
}

// writeMovementsXLSX renders stock movements as a single-sheet workbook.
func writeMovementsXLSX(w io.Writer, movements []core.StockMovement) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", movementsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, h := range movementHeadings {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(movementsSheet, cell, h); err != nil {
			return fmt.Errorf("failed to write heading %s: %w", h, err)
		}
	}

	for i, m := range movements {
		row := []any{
			m.ID,
			m.CreatedAt.Format("2006-01-02 15:04:05"),
			m.ProductID,
			m.BranchID,
			m.Direction,
			m.Cause,
			m.Quantity.InexactFloat64(),
			m.QtyBefore.InexactFloat64(),
			m.QtyAfter.InexactFloat64(),
			movementDocument(m),
			m.Reason,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(movementsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write movement %d: %w", m.ID, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func movementDocument(m core.StockMovement) string {
	switch {
	case m.SaleID != nil:
		return fmt.Sprintf("sale %d", *m.SaleID)
	case m.PurchaseID != nil:
		return fmt.Sprintf("purchase %d", *m.PurchaseID)
	case m.TransferID != nil:
		return fmt.Sprintf("transfer %d", *m.TransferID)
	}
	return ""
}
