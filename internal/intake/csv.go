package intake

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/lead-qualifier/internal/model"
)

// ReadCSV parses a lead CSV with a header row. A UTF-8 or UTF-16 byte
// order mark is honoured and stripped.
func ReadCSV(ctx context.Context, r io.Reader) (Batch, error) {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	reader := csv.NewReader(transform.NewReader(r, dec))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return Batch{}, eris.Wrap(err, "csv: context cancelled")
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Batch{}, eris.Wrap(err, "csv: read row")
		}
		for i, f := range record {
			record[i] = strings.TrimSpace(f)
		}
		rows = append(rows, record)
	}
	return fromRows(rows, model.SourceCSV), nil
}
