// Package export renders deduplicated code rows into EMIS-compatible XML
// fragments, hierarchical JSON payloads and flat CSV tables.
package export

import (
	"fmt"
	"strings"

	"github.com/carelens/emisx/lookup"
)

// xmlEscaper covers the five XML special characters permitted in
// displayName and value text.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// BuildValuesXML renders one row as an EMIS import values block. The
// format is a byte-exact contract with EMIS import tooling:
//
//	<values><value>V</value><displayName>D</displayName><includeChildren>B</includeChildren>[<isRefset>true</isRefset>]</values>
//
// The isRefset tag is present exactly when the row's code type is refset.
func BuildValuesXML(row lookup.EnrichedRow) string {
	var b strings.Builder
	b.WriteString("<values><value>")
	b.WriteString(xmlEscaper.Replace(row.CodeValue))
	b.WriteString("</value><displayName>")
	b.WriteString(xmlEscaper.Replace(row.DisplayName))
	b.WriteString("</displayName><includeChildren>")
	b.WriteString(fmt.Sprintf("%t", row.IncludeChildren))
	b.WriteString("</includeChildren>")
	if row.CodeType == lookup.CodeTypeRefset {
		b.WriteString("<isRefset>true</isRefset>")
	}
	b.WriteString("</values>")
	return b.String()
}

// BuildValuesXMLAll renders each row on its own line.
func BuildValuesXMLAll(rows []lookup.EnrichedRow) string {
	blocks := make([]string, 0, len(rows))
	for _, row := range rows {
		blocks = append(blocks, BuildValuesXML(row))
	}
	return strings.Join(blocks, "\n")
}
