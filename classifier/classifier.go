// Package classifier decides whether a code reference belongs to the
// clinical or the medication output set, or is internal bookkeeping that
// never appears in either.
package classifier

import "strings"

// Category is the classification of a code reference.
type Category int

const (
	// Clinical is the default category for SNOMED concept references.
	Clinical Category = iota
	// Medication covers drug/preparation references.
	Medication
	// Internal marks EMIS-internal bookkeeping codes, excluded from all
	// clinical and medication output.
	Internal
)

func (c Category) String() string {
	switch c {
	case Clinical:
		return "clinical"
	case Medication:
		return "medication"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// CodeSystemEMISInternal identifies internal EMIS codes.
const CodeSystemEMISInternal = "EMISINTERNAL"

// CodeSystemSNOMED is the canonical code system for concept references.
const CodeSystemSNOMED = "SNOMED_CONCEPT"

// medicationCodeSystems always classify as medication, regardless of the
// table or column the reference was found under.
var medicationCodeSystems = map[string]bool{
	"SCT_CONST":   true,
	"SCT_DRGGRP":  true,
	"SCT_PREP":    true,
	"SCT_SUB":     true,
	"SCT_FORM":    true,
	"SCT_APPNAME": true,
}

// tableNamesSeenAsCodeSystems are logical table names that occasionally
// leak into the codeSystem attribute of exported value sets. They are not
// code systems and are corrected to SNOMED_CONCEPT before classification.
var tableNamesSeenAsCodeSystems = map[string]bool{
	"EVENTS":                true,
	"PATIENTS":              true,
	"MEDICATION_ISSUES":     true,
	"MEDICATION_COURSES":    true,
	"REFERRALS":             true,
	"CONSULTATION_HEADINGS": true,
}

var medicationTables = []string{"MEDICATION_ISSUES", "MEDICATION_COURSES"}

var medicationTablePrefixes = []string{"DRUG_", "REPEAT_", "ACUTE_"}

var medicationColumnSignals = []string{"DRUGCODE", "DRUG_", "MEDICATION_", "REPEAT_", "ACUTE_", "COMPOUND_"}

// NormalizeCodeSystem corrects table names accidentally stored as code
// system values. Anything recognised as a table name becomes
// SNOMED_CONCEPT; other values pass through upper-cased and trimmed.
func NormalizeCodeSystem(codeSystem string) string {
	cs := strings.ToUpper(strings.TrimSpace(codeSystem))
	if tableNamesSeenAsCodeSystems[cs] {
		return CodeSystemSNOMED
	}
	return cs
}

// Classify maps a code reference's code system and its table/column
// context to a category. The medication code-system list wins over any
// context; otherwise the absence of a medication signal, not the presence
// of a clinical one, drives the clinical default.
func Classify(codeSystem string, tableContext, columnContext []string) Category {
	cs := NormalizeCodeSystem(codeSystem)

	if cs == CodeSystemEMISInternal {
		return Internal
	}
	if medicationCodeSystems[cs] {
		return Medication
	}
	for _, table := range tableContext {
		if isMedicationTable(table) {
			return Medication
		}
	}
	for _, column := range columnContext {
		if isMedicationColumn(column) {
			return Medication
		}
	}
	return Clinical
}

func isMedicationTable(table string) bool {
	t := strings.ToUpper(strings.TrimSpace(table))
	for _, name := range medicationTables {
		if strings.Contains(t, name) {
			return true
		}
	}
	for _, prefix := range medicationTablePrefixes {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}

func isMedicationColumn(column string) bool {
	c := strings.ToUpper(strings.TrimSpace(column))
	for _, signal := range medicationColumnSignals {
		if strings.Contains(c, signal) {
			return true
		}
	}
	return false
}
