package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docpen/internal/doctree"
)

// CSVImporter handles CSV files. The header row becomes a heading and each
// data row a bulleted item of "header: cell" pairs.
type CSVImporter struct{}

func (p *CSVImporter) Import(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return doctree.New(), nil
	}

	headers := records[0]
	blocks := []doctree.Block{doctree.NewBlock(doctree.KindHeading2, strings.Join(headers, ", "))}
	for _, row := range records[1:] {
		var text strings.Builder
		for j, cell := range row {
			if j > 0 {
				text.WriteString(", ")
			}
			if j < len(headers) && headers[j] != "" {
				text.WriteString(headers[j] + ": ")
			}
			text.WriteString(cell)
		}
		blocks = append(blocks, doctree.NewBlock(doctree.KindBulletedListItem, text.String()))
	}
	return doctree.FromBlocks(blocks), nil
}
