package extractor

import (
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ExcelExtractor pulls cell text out of XLSX evidence documents: one line
// per row, cells joined by tabs, sheets prefixed with their name.
type ExcelExtractor struct{}

func (e *ExcelExtractor) Extract(r io.Reader) (string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.Rows(sheet)
		if err != nil {
			continue
		}
		sb.WriteString("# ")
		sb.WriteString(sheet)
		sb.WriteByte('\n')
		for rows.Next() {
			cells, err := rows.Columns()
			if err != nil {
				break
			}
			// Guard against absurdly wide sheets.
			if len(cells) > 1000 {
				cells = cells[:1000]
			}
			sb.WriteString(strings.Join(cells, "\t"))
			sb.WriteByte('\n')
		}
		rows.Close()
	}
	return sb.String(), nil
}
