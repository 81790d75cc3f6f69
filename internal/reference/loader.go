package reference

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadCSV reads the reference tool's detailed classification export: a
// semicolon-delimited file with a header row naming at least the commit and
// purity columns. Rows with a missing or implausibly short commit hash are
// dropped; unparseable purity cells load as absent flags.
func LoadCSV(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening reference dataset: %w", err)
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("reading reference dataset %s: %w", path, err)
	}
	return records, nil
}

// ReadRecords parses reference records from r. Exposed separately so tests
// and alternative sources can feed data without touching the filesystem.
func ReadRecords(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.Comma = ';'
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("dataset is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := columnIndex(header)
	commitCol, ok := cols["commit"]
	if !ok {
		return nil, fmt.Errorf("dataset has no commit column (header: %s)", strings.Join(header, ";"))
	}
	purityCol, ok := cols["purity"]
	if !ok {
		return nil, fmt.Errorf("dataset has no purity column (header: %s)", strings.Join(header, ";"))
	}
	typeCol, hasType := cols["refactoring_type"]
	descCol, hasDesc := cols["refactoring_description"]
	if !hasDesc {
		descCol, hasDesc = cols["description"]
	}

	var records []Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}

		hash := strings.TrimSpace(field(row, commitCol))
		if len(hash) < MinHashLength {
			continue
		}

		rec := Record{
			Hash:   hash,
			Purity: ParseFlag(field(row, purityCol)),
		}
		if hasType {
			rec.Type = strings.TrimSpace(field(row, typeCol))
		}
		if hasDesc {
			rec.Description = strings.TrimSpace(field(row, descCol))
		}
		records = append(records, rec)
	}
	return records, nil
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
