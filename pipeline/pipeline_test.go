package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelens/emisx/dedupe"
	"github.com/carelens/emisx/lookup"
	"github.com/carelens/emisx/models/emis"
)

const sampleDocument = `<?xml version="1.0"?>
<enquiryDocument xmlns="http://www.e-mis.com/emisopen">
  <report>
    <id>r-1</id>
    <name>Asthma register</name>
    <population>
      <criteriaGroup>
        <definition>
          <criteria>
            <criterion>
              <table>EVENTS</table>
              <filterAttribute>
                <columnValue>
                  <column>READCODE</column>
                  <valueSet>
                    <id>vs-1</id>
                    <codeSystem>SNOMED_CONCEPT</codeSystem>
                    <description>Asthma codes</description>
                    <values>
                      <value>guid-asthma</value>
                      <displayName>Asthma</displayName>
                    </values>
                    <values>
                      <value>N/A</value>
                      <displayName>Placeholder</displayName>
                    </values>
                  </valueSet>
                </columnValue>
              </filterAttribute>
            </criterion>
            <criterion>
              <table>MEDICATION_ISSUES</table>
              <filterAttribute>
                <columnValue>
                  <column>DRUGCODE</column>
                  <valueSet>
                    <id>vs-2</id>
                    <codeSystem>SCT_PREP</codeSystem>
                    <values>
                      <value>guid-salbutamol</value>
                      <displayName>Salbutamol</displayName>
                    </values>
                  </valueSet>
                </columnValue>
              </filterAttribute>
            </criterion>
          </criteria>
        </definition>
      </criteriaGroup>
    </population>
  </report>
</enquiryDocument>`

func TestRunEndToEnd(t *testing.T) {
	doc, err := emis.DecodeDocument(strings.NewReader(sampleDocument))
	require.NoError(t, err)

	index := lookup.NewMemoryIndex([]lookup.Record{
		{EMISGUID: "guid-asthma", SNOMEDCode: "195967001", Descendants: 30},
		{EMISGUID: "guid-salbutamol", SNOMEDCode: "91143003"},
	})

	report, err := New(index, zerolog.Nop()).Run(context.Background(), doc, dedupe.GlobalUnique)
	require.NoError(t, err)

	assert.Equal(t, "global-unique", report.Mode)
	require.Len(t, report.Result.Clinical, 1)
	assert.Equal(t, "195967001", report.Result.Clinical[0].SNOMEDCode)
	require.Len(t, report.Result.Medications, 1)
	assert.Equal(t, "91143003", report.Result.Medications[0].SNOMEDCode)

	// The placeholder value is counted once, by the resolver, and folded
	// into the report's combined tally.
	assert.Equal(t, 1, report.Skipped.MissingGUID)
	assert.Equal(t, report.Skipped, report.Result.Skipped)
}
