package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMedicationCodeSystemsAlwaysWin(t *testing.T) {
	// An explicit medication code system overrides any table context,
	// including a table that looks clinical.
	for _, cs := range []string{"SCT_CONST", "SCT_DRGGRP", "SCT_PREP", "SCT_SUB", "SCT_FORM", "SCT_APPNAME"} {
		got := Classify(cs, []string{"EVENTS"}, []string{"READCODE"})
		assert.Equal(t, Medication, got, "code system %s", cs)
	}
}

func TestClassifyEMISInternalIsNeverClinicalNorMedication(t *testing.T) {
	got := Classify("EMISINTERNAL", []string{"MEDICATION_ISSUES"}, []string{"DRUGCODE"})
	assert.Equal(t, Internal, got)
}

func TestClassifyTableContextSignals(t *testing.T) {
	tests := []struct {
		table string
		want  Category
	}{
		{"MEDICATION_ISSUES", Medication},
		{"MEDICATION_COURSES", Medication},
		{"DRUG_ALLERGIES", Medication},
		{"REPEAT_TEMPLATES", Medication},
		{"ACUTE_ISSUES", Medication},
		{"EVENTS", Clinical},
		{"PATIENTS", Clinical},
	}
	for _, tt := range tests {
		got := Classify("SNOMED_CONCEPT", []string{tt.table}, nil)
		assert.Equal(t, tt.want, got, "table %s", tt.table)
	}
}

func TestClassifyColumnContextSignals(t *testing.T) {
	tests := []struct {
		column string
		want   Category
	}{
		{"DRUGCODE", Medication},
		{"MEDICATION_STATUS", Medication},
		{"COMPOUND_NAME", Medication},
		{"READCODE", Clinical},
		{"DISPLAYTERM", Clinical},
	}
	for _, tt := range tests {
		got := Classify("SNOMED_CONCEPT", []string{"EVENTS"}, []string{tt.column})
		assert.Equal(t, tt.want, got, "column %s", tt.column)
	}
}

func TestClassifyDefaultsToClinical(t *testing.T) {
	assert.Equal(t, Clinical, Classify("SNOMED_CONCEPT", nil, nil))
}

func TestClassifyTotality(t *testing.T) {
	// Every non-internal input lands in exactly one of the two output
	// categories.
	systems := []string{"SNOMED_CONCEPT", "SCT_PREP", "EVENTS", "", "SOMETHING_ELSE"}
	tables := [][]string{nil, {"EVENTS"}, {"MEDICATION_ISSUES"}}
	for _, cs := range systems {
		for _, tc := range tables {
			got := Classify(cs, tc, nil)
			assert.Contains(t, []Category{Clinical, Medication}, got)
		}
	}
}

func TestNormalizeCodeSystemCorrectsTableNames(t *testing.T) {
	assert.Equal(t, "SNOMED_CONCEPT", NormalizeCodeSystem("EVENTS"))
	assert.Equal(t, "SNOMED_CONCEPT", NormalizeCodeSystem("PATIENTS"))
	assert.Equal(t, "SNOMED_CONCEPT", NormalizeCodeSystem(" events "))
	assert.Equal(t, "SCT_PREP", NormalizeCodeSystem("SCT_PREP"))
	assert.Equal(t, "EMISINTERNAL", NormalizeCodeSystem("EMISINTERNAL"))
}
