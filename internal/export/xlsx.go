package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"go-putusan-scraper/internal/model"
)

// writeXLSX writes one worksheet in the shared column order.
func writeXLSX(records []model.Decision, path string) error {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Sheet1"
	for col, h := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("set header cell: %w", err)
		}
	}
	for i, d := range records {
		for col, v := range row(d) {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("set cell for %s: %w", d.Number, err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx %s: %w", path, err)
	}
	return nil
}
