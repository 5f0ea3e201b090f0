package intake

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/lead-qualifier/internal/model"
)

// ReadXLSX parses the first sheet of an uploaded workbook.
func ReadXLSX(data []byte) (Batch, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return Batch{}, eris.Wrap(err, "xlsx: open workbook")
	}
	return readWorkbook(f)
}

func readWorkbook(f *xlsx.File) (Batch, error) {
	if len(f.Sheets) == 0 {
		return Batch{}, eris.New("xlsx: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return fromRows(rows, model.SourceXLSX), nil
}
