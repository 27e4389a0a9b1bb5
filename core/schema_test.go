package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeInsuranceSummary(t *testing.T) {
	t.Run("object and string fields", func(t *testing.T) {
		payload := `{
			"life_insurance_ad_d": {
				"schedule": {"value": "Flat $25,000", "page": 2, "bbox": {"l": 0.1, "t": 0.2, "r": 0.5, "b": 0.3}},
				"reduction": "Reduces by 50% at age 65",
				"non_evidence_maximum": null,
				"termination_age": null
			},
			"critical_illness": null
		}`

		s, err := DecodeInsuranceSummary([]byte(payload))
		require.NoError(t, err)
		require.NotNil(t, s.LifeInsuranceADD)

		assert.Equal(t, "Flat $25,000", s.LifeInsuranceADD.Schedule.Value)
		require.NotNil(t, s.LifeInsuranceADD.Schedule.Page)
		assert.Equal(t, 2, *s.LifeInsuranceADD.Schedule.Page)
		assert.Equal(t, "Reduces by 50% at age 65", s.LifeInsuranceADD.Reduction.Value)
		assert.Nil(t, s.LifeInsuranceADD.NonEvidenceMaximum)
		assert.Nil(t, s.CriticalIllness)
	})

	t.Run("unknown section rejected", func(t *testing.T) {
		_, err := DecodeInsuranceSummary([]byte(`{"basic_info": {"company_name": "x"}}`))
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := DecodeInsuranceSummary([]byte(`{"dependent_life": {"colour": "x"}}`))
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("unknown provenance key rejected", func(t *testing.T) {
		_, err := DecodeInsuranceSummary([]byte(`{"dependent_life": {"schedule": {"value": "x", "confidence": 1}}}`))
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("inverted bounding box rejected", func(t *testing.T) {
		_, err := DecodeInsuranceSummary([]byte(`{"dependent_life": {"schedule": {"value": "x", "bbox": {"l": 0.9, "t": 0, "r": 0.1, "b": 1}}}}`))
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := DecodeInsuranceSummary([]byte(`{"dependent_life": `))
		assert.ErrorIs(t, err, ErrInvalidSchema)
	})
}

func TestMissingFields(t *testing.T) {
	s := &InsuranceSummary{
		LifeInsuranceADD: &LifeInsuranceADD{
			Schedule:           nil,
			Reduction:          &ExtractionField{Value: "none"},
			NonEvidenceMaximum: &ExtractionField{Value: "$25,000"},
			TerminationAge:     &ExtractionField{Value: "75"},
		},
		DependentLife: &DependentLife{
			Schedule: &ExtractionField{Value: "$10,000"},
		},
		// every other section is null and must be skipped
	}

	missing := s.MissingFields()

	assert.Equal(t, []FieldPath{
		{Section: "life_insurance_ad_d", Field: "schedule"},
		{Section: "dependent_life", Field: "termination_age"},
	}, missing)
}

func TestMissingFields_EmptySummary(t *testing.T) {
	assert.Empty(t, (&InsuranceSummary{}).MissingFields())
}

func TestMerge_NeverOverwrites(t *testing.T) {
	s := &InsuranceSummary{
		DependentLife: &DependentLife{
			Schedule:       nil,
			TerminationAge: &ExtractionField{Value: "x"},
		},
	}

	merged := s.Merge(map[FieldPath]*ExtractionField{
		{Section: "dependent_life", Field: "schedule"}:        {Value: "y"},
		{Section: "dependent_life", Field: "termination_age"}: {Value: "z"},
	})

	assert.Equal(t, 1, merged)
	assert.Equal(t, "y", s.DependentLife.Schedule.Value)
	assert.Equal(t, "x", s.DependentLife.TerminationAge.Value)
}

func TestMerge_SkipsNullSectionsAndUnknownPaths(t *testing.T) {
	s := &InsuranceSummary{}

	merged := s.Merge(map[FieldPath]*ExtractionField{
		{Section: "dental_care", Field: "fee_guide"}: {Value: "current"},
		{Section: "nope", Field: "nothing"}:          {Value: "x"},
		{Section: "dependent_life"}:                  nil,
	})

	assert.Equal(t, 0, merged)
	assert.Nil(t, s.DentalCare)
}

func TestMerge_CopiesValue(t *testing.T) {
	s := &InsuranceSummary{CriticalIllness: &CriticalIllness{}}
	val := &ExtractionField{Value: "original"}

	s.Merge(map[FieldPath]*ExtractionField{{Section: "critical_illness", Field: "schedule"}: val})
	val.Value = "mutated"

	assert.Equal(t, "original", s.CriticalIllness.Schedule.Value)
}

func TestGet(t *testing.T) {
	s := &InsuranceSummary{HealthCare: &HealthCare{Vaccines: &ExtractionField{Value: "Included"}}}

	f, err := s.Get(FieldPath{Section: "health_care", Field: "vaccines"})
	require.NoError(t, err)
	assert.Equal(t, "Included", f.Value)

	f, err = s.Get(FieldPath{Section: "dental_care", Field: "fee_guide"})
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = s.Get(FieldPath{Section: "health_care", Field: "bogus"})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = s.Get(FieldPath{Section: "bogus", Field: "vaccines"})
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestParseFieldPath(t *testing.T) {
	p, err := ParseFieldPath("long_term_disability.offsets")
	require.NoError(t, err)
	assert.Equal(t, FieldPath{Section: "long_term_disability", Field: "offsets"}, p)
	assert.Equal(t, "long_term_disability.offsets", p.String())

	for _, bad := range []string{"", "offsets", ".offsets", "long_term_disability.", "long_term_disability.colour"} {
		_, err := ParseFieldPath(bad)
		assert.Error(t, err, bad)
	}
}

func TestSchemaIntrospection(t *testing.T) {
	assert.Equal(t, []string{
		"life_insurance_ad_d",
		"dependent_life",
		"critical_illness",
		"long_term_disability",
		"short_term_disability",
		"health_care",
		"dental_care",
		"notes_and_definitions",
	}, SectionNames())

	fields, err := SectionFields("dependent_life")
	require.NoError(t, err)
	assert.Equal(t, []string{"schedule", "termination_age"}, fields)

	_, err = SectionFields("nope")
	assert.ErrorIs(t, err, ErrUnknownSection)
}

func TestSummaryMarshalsNullSections(t *testing.T) {
	data, err := json.Marshal(&InsuranceSummary{DependentLife: &DependentLife{}})
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(data, &generic))
	assert.Contains(t, generic, "critical_illness")
	assert.Nil(t, generic["critical_illness"])
	assert.Equal(t, map[string]any{"schedule": nil, "termination_age": nil}, generic["dependent_life"])

	// round trip through the strict decoder
	back, err := DecodeInsuranceSummary(data)
	require.NoError(t, err)
	assert.NotNil(t, back.DependentLife)
	assert.True(t, back.HasSection("dependent_life"))
	assert.False(t, back.HasSection("critical_illness"))
}

func TestGroupBySection(t *testing.T) {
	groups := GroupBySection([]FieldPath{
		{Section: "a", Field: "1"},
		{Section: "b", Field: "1"},
		{Section: "a", Field: "2"},
	})
	assert.Len(t, groups, 2)
	assert.Equal(t, []FieldPath{{Section: "a", Field: "1"}, {Section: "a", Field: "2"}}, groups["a"])
}
