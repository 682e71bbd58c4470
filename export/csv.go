package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/carelens/emisx/lookup"
)

// CSV column order is fixed. The three source columns are omitted from
// global-unique display output but retained for full exports.
var csvColumns = []string{
	"ValueSet Description",
	"EMIS GUID",
	"SNOMED Code",
	"SNOMED Description",
	"Mapping Found",
	"Include Children",
	"Descendants",
	"Has Qualifier",
	"Code System",
	"Source Type",
	"Source Name",
	"Source Container",
}

const sourceColumnCount = 3

// WriteCSV writes rows as a flat table. When includeSource is false the
// trailing source columns are dropped.
func WriteCSV(w io.Writer, rows []lookup.EnrichedRow, includeSource bool) error {
	writer := csv.NewWriter(w)

	header := csvColumns
	if !includeSource {
		header = csvColumns[:len(csvColumns)-sourceColumnCount]
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range rows {
		record := csvRecord(row)
		if !includeSource {
			record = record[:len(record)-sourceColumnCount]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func csvRecord(row lookup.EnrichedRow) []string {
	return []string{
		row.ValueSetDescription,
		row.CodeValue,
		row.SNOMEDCode,
		row.DisplayName,
		mappingLabel(row.MappingFound),
		strconv.FormatBool(row.IncludeChildren),
		strconv.Itoa(row.Descendants),
		strconv.FormatBool(row.HasQualifier),
		row.CodeSystem,
		row.SourceType,
		row.SourceName,
		row.SourceContainer,
	}
}

func mappingLabel(found bool) string {
	if found {
		return "Found"
	}
	return "Not Found"
}
