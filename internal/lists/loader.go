package lists

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/tphakala/birdalert-go/internal/errors"
)

// scientificNameColumn is the one column the life list export must carry.
const scientificNameColumn = "Scientific Name"

// ReferenceSet is the set of scientific names already on the user's life
// list. Membership is exact string equality; there is no alias matching.
type ReferenceSet map[string]struct{}

// Contains reports whether a scientific name is on the life list.
func (r ReferenceSet) Contains(scientificName string) bool {
	_, ok := r[scientificName]
	return ok
}

// LoadReferenceSet parses a life list CSV export into a ReferenceSet.
// The header row must contain a "Scientific Name" column; all other columns
// are ignored. Rows with an empty scientific name are skipped.
func LoadReferenceSet(path string) (ReferenceSet, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Newf("failed to open life list %s: %w", path, err).
			Category(errors.CategoryFileIO).
			Context("path", path).
			Component("lists").
			Build()
	}
	defer func() {
		_ = file.Close()
	}()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // exports have varied per-row column counts

	header, err := reader.Read()
	if err != nil {
		return nil, errors.Newf("failed to read life list header: %w", err).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Component("lists").
			Build()
	}

	nameIdx := -1
	for i, col := range header {
		if strings.TrimSpace(col) == scientificNameColumn {
			nameIdx = i
			break
		}
	}
	if nameIdx < 0 {
		return nil, errors.Newf("life list is missing the %q column", scientificNameColumn).
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Context("header", strings.Join(header, ",")).
			Component("lists").
			Build()
	}

	set := make(ReferenceSet)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Newf("failed to read life list row: %w", err).
				Category(errors.CategoryFileParsing).
				Context("path", path).
				Component("lists").
				Build()
		}
		if nameIdx >= len(record) {
			continue
		}
		if name := strings.TrimSpace(record[nameIdx]); name != "" {
			set[name] = struct{}{}
		}
	}

	return set, nil
}
