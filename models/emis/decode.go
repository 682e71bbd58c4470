package emis

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// Defaults substituted for elements missing from the source document.
// EMIS omits these when the authoring UI left them at their defaults.
const (
	DefaultSearchDate     = "BASELINE"
	DefaultMemberOperator = "AND"
	DefaultActionIfTrue   = "SELECT"
	DefaultActionIfFalse  = "REJECT"
)

// rawDocument defers element parsing so one malformed entity cannot abort
// the whole document.
type rawDocument struct {
	XMLName xml.Name     `xml:"enquiryDocument"`
	Folders []rawElement `xml:"reportFolder"`
	Reports []rawElement `xml:"report"`
}

type rawElement struct {
	Inner []byte `xml:",innerxml"`
}

// DecodeDocument decodes an enquiry document and applies element defaults.
// Folders and reports are decoded one element at a time: a malformed
// element is dropped and its healthy siblings survive. The decoder trusts
// the overall shape of EMIS exports; it does not validate against a schema.
func DecodeDocument(r io.Reader) (*EnquiryDocument, error) {
	var raw rawDocument
	if err := xml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode enquiry document: %w", err)
	}

	doc := &EnquiryDocument{XMLName: raw.XMLName}
	for _, el := range raw.Folders {
		var folder ReportFolder
		if err := decodeElement("reportFolder", el.Inner, &folder); err != nil {
			continue
		}
		doc.Folders = append(doc.Folders, folder)
	}
	for _, el := range raw.Reports {
		var report Report
		if err := decodeElement("report", el.Inner, &report); err != nil {
			continue
		}
		doc.Reports = append(doc.Reports, report)
	}
	applyDefaults(doc)
	return doc, nil
}

// decodeElement re-parses one element's captured inner XML into its typed
// form.
func decodeElement(name string, inner []byte, v any) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<%s>", name)
	buf.Write(inner)
	fmt.Fprintf(&buf, "</%s>", name)
	return xml.Unmarshal(buf.Bytes(), v)
}

func applyDefaults(doc *EnquiryDocument) {
	for i := range doc.Reports {
		report := &doc.Reports[i]
		if report.SearchDate == "" {
			report.SearchDate = DefaultSearchDate
		}
		if report.Population != nil {
			for j := range report.Population.CriteriaGroups {
				applyGroupDefaults(report.Population.CriteriaGroups[j].Definition)
			}
		}
	}
}

func applyGroupDefaults(def *GroupDefinition) {
	if def == nil {
		return
	}
	if def.MemberOperator == "" {
		def.MemberOperator = DefaultMemberOperator
	}
	if def.ActionIfTrue == "" {
		def.ActionIfTrue = DefaultActionIfTrue
	}
	if def.ActionIfFalse == "" {
		def.ActionIfFalse = DefaultActionIfFalse
	}
}
