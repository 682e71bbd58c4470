package emis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeDropsMalformedReportKeepsSiblings(t *testing.T) {
	// The first report carries an unparseable includeChildren value; only
	// that report is lost, not the document.
	raw := `<?xml version="1.0"?>
<enquiryDocument xmlns="http://www.e-mis.com/emisopen">
  <report>
    <id>r-broken</id>
    <name>Broken</name>
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
                    <values>
                      <value>guid-1</value>
                      <includeChildren>not-a-bool</includeChildren>
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
  <report>
    <id>r-healthy</id>
    <name>Healthy</name>
    <population>
      <criteriaGroup>
        <definition>
          <criteria>
            <criterion>
              <table>EVENTS</table>
            </criterion>
          </criteria>
        </definition>
      </criteriaGroup>
    </population>
  </report>
</enquiryDocument>`

	doc, err := DecodeDocument(strings.NewReader(raw))
	require.NoError(t, err)

	require.Len(t, doc.Reports, 1)
	assert.Equal(t, "r-healthy", doc.Reports[0].ID)
	// Defaults still apply to the surviving report.
	assert.Equal(t, DefaultSearchDate, doc.Reports[0].SearchDate)
	assert.Equal(t, DefaultMemberOperator, doc.Reports[0].Population.CriteriaGroups[0].Definition.MemberOperator)
}

func TestDecodeMalformedCriterionDropsItsReportOnly(t *testing.T) {
	raw := `<?xml version="1.0"?>
<enquiryDocument xmlns="http://www.e-mis.com/emisopen">
  <reportFolder>
    <id>f-1</id>
    <name>Registers</name>
  </reportFolder>
  <report>
    <id>r-broken</id>
    <population>
      <criteriaGroup>
        <definition>
          <criteria>
            <criterion>
              <table>EVENTS</table>
              <negation>yes-ish</negation>
            </criterion>
          </criteria>
        </definition>
      </criteriaGroup>
    </population>
  </report>
  <report>
    <id>r-healthy</id>
    <name>Asthma register</name>
    <folder>f-1</folder>
  </report>
</enquiryDocument>`

	doc, err := DecodeDocument(strings.NewReader(raw))
	require.NoError(t, err)

	require.Len(t, doc.Folders, 1, "folders are unaffected by a bad report")
	require.Len(t, doc.Reports, 1)
	assert.Equal(t, "r-healthy", doc.Reports[0].ID)
}

func TestDecodeRejectsUnparseableDocument(t *testing.T) {
	// Damage at the document level is still fatal; recovery is per
	// element, not per byte.
	_, err := DecodeDocument(strings.NewReader(`<enquiryDocument><report><id>r-1`))
	assert.Error(t, err)
}
