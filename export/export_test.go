package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelens/emisx/lookup"
	"github.com/carelens/emisx/resolver"
)

func row(code, display string, includeChildren bool) lookup.EnrichedRow {
	return lookup.EnrichedRow{
		CodeReference: resolver.CodeReference{
			CodeValue:       code,
			DisplayName:     display,
			IncludeChildren: includeChildren,
		},
	}
}

func TestBuildValuesXMLExactFormat(t *testing.T) {
	got := BuildValuesXML(row("195967001", "Asthma", true))
	assert.Equal(t,
		"<values><value>195967001</value><displayName>Asthma</displayName><includeChildren>true</includeChildren></values>",
		got)

	got = BuildValuesXML(row("777", "Widget", false))
	assert.Equal(t,
		"<values><value>777</value><displayName>Widget</displayName><includeChildren>false</includeChildren></values>",
		got)
}

func TestBuildValuesXMLRefsetTagOnlyForRefsets(t *testing.T) {
	refset := row("999011000000105", "AST_COD", false)
	refset.CodeType = lookup.CodeTypeRefset
	got := BuildValuesXML(refset)
	assert.Equal(t,
		"<values><value>999011000000105</value><displayName>AST_COD</displayName><includeChildren>false</includeChildren><isRefset>true</isRefset></values>",
		got)

	// A non-refset row must not carry the tag, not even as isRefset=false.
	assert.NotContains(t, BuildValuesXML(row("195967001", "Asthma", true)), "isRefset")
}

func TestBuildValuesXMLEscapesSpecials(t *testing.T) {
	got := BuildValuesXML(row("1", `Crohn's <disease> & "colitis"`, false))
	assert.Contains(t, got, "Crohn&apos;s &lt;disease&gt; &amp; &quot;colitis&quot;")
	assert.NotContains(t, got, `Crohn's`)
}

func TestBuildValuesXMLAllOneBlockPerLine(t *testing.T) {
	got := BuildValuesXMLAll([]lookup.EnrichedRow{
		row("1", "a", false),
		row("2", "b", true),
	})
	require.Len(t, splitLines(got), 2)
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	return append(lines, s[start:])
}

func TestWriteCSVHeaderAndColumnOrder(t *testing.T) {
	full := lookup.EnrichedRow{
		CodeReference: resolver.CodeReference{
			CodeValue:           "guid-1",
			CodeSystem:          "SNOMED_CONCEPT",
			DisplayName:         "Asthma",
			IncludeChildren:     true,
			ValueSetDescription: "Asthma codes",
			SourceType:          "[Search]",
			SourceName:          "Asthma register",
			SourceContainer:     "LTC Searches",
		},
		SNOMEDCode:   "195967001",
		MappingFound: true,
		Descendants:  12,
		HasQualifier: true,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []lookup.EnrichedRow{full}, true))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []string{
		"ValueSet Description", "EMIS GUID", "SNOMED Code", "SNOMED Description",
		"Mapping Found", "Include Children", "Descendants", "Has Qualifier",
		"Code System", "Source Type", "Source Name", "Source Container",
	}, records[0])
	assert.Equal(t, []string{
		"Asthma codes", "guid-1", "195967001", "Asthma",
		"Found", "true", "12", "true",
		"SNOMED_CONCEPT", "[Search]", "Asthma register", "LTC Searches",
	}, records[1])
}

func TestWriteCSVWithoutSourceColumns(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []lookup.EnrichedRow{row("guid-1", "Asthma", false)}, false))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records[0], 9)
	assert.NotContains(t, records[0], "Source Type")
	assert.Equal(t, "Not Found", records[1][4])
}

func TestBuildHierarchicalJSONDedupesEdges(t *testing.T) {
	rows := []HierarchyRow{
		{ParentCode: "p1", Code: "c2", Display: "second"},
		{ParentCode: "p1", Code: "c1", Display: "first"},
		{ParentCode: "p1", Code: "c1", Display: "first again"},
		{ParentCode: "p2", Code: "c1", Display: "first"},
	}

	export := BuildHierarchicalJSON(rows, []string{"c1", "c1"})

	require.Len(t, export.Hierarchy, 2)
	require.Len(t, export.Hierarchy["p1"], 2)
	assert.Equal(t, "c1", export.Hierarchy["p1"][0].Code, "children sorted by code")
	assert.Equal(t, "c2", export.Hierarchy["p1"][1].Code)
	assert.Len(t, export.Hierarchy["p2"], 1, "the same child under another parent is a distinct edge")

	assert.Equal(t, "hierarchy", export.ExportMetadata.ExportType)
	assert.Equal(t, 3, export.ExportMetadata.TotalCodes)
	assert.Equal(t, 2, export.ExportMetadata.RootCount)
	assert.Equal(t, []string{"c1"}, export.SharedLineageCodes)
}
