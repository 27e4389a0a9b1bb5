package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ExtractionField is a single extracted value with its provenance.
type ExtractionField struct {
	Value         string       `json:"value"`
	Page          *int         `json:"page,omitempty"`
	BBox          *BoundingBox `json:"bbox,omitempty"`
	SourceSnippet *string      `json:"source_snippet,omitempty"`
}

// extractionFieldJSON mirrors ExtractionField without its UnmarshalJSON method.
type extractionFieldJSON ExtractionField

// UnmarshalJSON accepts either a provenance object or a bare string value.
// Unknown keys in the object form are rejected.
func (f *ExtractionField) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = ExtractionField{Value: s}
		return nil
	}

	var raw extractionFieldJSON
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*f = ExtractionField(raw)
	return f.Validate()
}

// Validate checks provenance metadata for internal consistency.
func (f *ExtractionField) Validate() error {
	if f.Page != nil && *f.Page < 0 {
		return fmt.Errorf("%w: negative page %d", ErrInvalidField, *f.Page)
	}
	if b := f.BBox; b != nil && (b.Left > b.Right || b.Top > b.Bottom) {
		return fmt.Errorf("%w: inverted bounding box", ErrInvalidField)
	}
	return nil
}

// LifeInsuranceADD covers basic life and accidental death & dismemberment.
type LifeInsuranceADD struct {
	Schedule           *ExtractionField `json:"schedule"`
	Reduction          *ExtractionField `json:"reduction"`
	NonEvidenceMaximum *ExtractionField `json:"non_evidence_maximum"`
	TerminationAge     *ExtractionField `json:"termination_age"`
}

type DependentLife struct {
	Schedule       *ExtractionField `json:"schedule"`
	TerminationAge *ExtractionField `json:"termination_age"`
}

type CriticalIllness struct {
	Schedule       *ExtractionField `json:"schedule"`
	Impairments    *ExtractionField `json:"impairments"`
	TerminationAge *ExtractionField `json:"termination_age"`
}

type LongTermDisability struct {
	Schedule               *ExtractionField `json:"schedule"`
	MonthlyMaximum         *ExtractionField `json:"monthly_maximum"`
	TaxStatus              *ExtractionField `json:"tax_status"`
	EliminationPeriod      *ExtractionField `json:"elimination_period"`
	BenefitPeriod          *ExtractionField `json:"benefit_period"`
	Definition             *ExtractionField `json:"definition"`
	Offsets                *ExtractionField `json:"offsets"`
	CostOfLivingAdjustment *ExtractionField `json:"cost_of_living_adjustment"`
	PreExisting            *ExtractionField `json:"pre_existing"`
	SurvivorBenefit        *ExtractionField `json:"survivor_benefit"`
	NonEvidenceMaximum     *ExtractionField `json:"non_evidence_maximum"`
	TerminationAge         *ExtractionField `json:"termination_age"`
}

type ShortTermDisability struct {
	Schedule           *ExtractionField `json:"schedule"`
	WeeklyMaximum      *ExtractionField `json:"weekly_maximum"`
	TaxStatus          *ExtractionField `json:"tax_status"`
	EliminationPeriod  *ExtractionField `json:"elimination_period"`
	BenefitPeriod      *ExtractionField `json:"benefit_period"`
	NonEvidenceMaximum *ExtractionField `json:"non_evidence_maximum"`
	TerminationAge     *ExtractionField `json:"termination_age"`
}

type HealthCare struct {
	PrescriptionDrugs        *ExtractionField `json:"prescription_drugs"`
	PayDirectDrugCard        *ExtractionField `json:"pay_direct_drug_card"`
	Maximum                  *ExtractionField `json:"maximum"`
	FertilityDrugs           *ExtractionField `json:"fertility_drugs"`
	SmokingCessations        *ExtractionField `json:"smoking_cessations"`
	Vaccines                 *ExtractionField `json:"vaccines"`
	MajorMedical             *ExtractionField `json:"major_medical"`
	AnnualDeductible         *ExtractionField `json:"annual_deductible"`
	Hospitalization          *ExtractionField `json:"hospitalization"`
	OrthoticShoes            *ExtractionField `json:"orthotic_shoes"`
	OrthoticInserts          *ExtractionField `json:"orthotic_inserts"`
	HearingAids              *ExtractionField `json:"hearing_aids"`
	VisionCare               *ExtractionField `json:"vision_care"`
	EyeExams                 *ExtractionField `json:"eye_exams"`
	ParamedicalPractitioners *ExtractionField `json:"paramedical_practitioners"`
	IncludedSpecialists      *ExtractionField `json:"included_specialists"`
	OutOfCountry             *ExtractionField `json:"out_of_country"`
	MaximumDuration          *ExtractionField `json:"maximum_duration"`
	TripCancellation         *ExtractionField `json:"trip_cancellation"`
	PrivateDutyNursing       *ExtractionField `json:"private_duty_nursing"`
	SurvivorBenefit          *ExtractionField `json:"survivor_benefit"`
	TerminationAge           *ExtractionField `json:"termination_age"`
}

type DentalCare struct {
	AnnualDeductible         *ExtractionField `json:"annual_deductible"`
	BasicAndPreventative     *ExtractionField `json:"basic_and_preventative"`
	PeriodonticAndEndodontic *ExtractionField `json:"periodontic_and_endodontic"`
	AnnualMaximum            *ExtractionField `json:"annual_maximum"`
	MajorRestorativeServices *ExtractionField `json:"major_restorative_services"`
	OrthodonticServices      *ExtractionField `json:"orthodontic_services"`
	LifetimeMaximum          *ExtractionField `json:"lifetime_maximum"`
	RecallFrequency          *ExtractionField `json:"recall_frequency"`
	ScalingAndRootingUnits   *ExtractionField `json:"scaling_and_rooting_units"`
	WhiteFilings             *ExtractionField `json:"white_filings"`
	FeeGuide                 *ExtractionField `json:"fee_guide"`
	SurvivorBenefit          *ExtractionField `json:"survivor_benefit"`
	TerminationAge           *ExtractionField `json:"termination_age"`
}

type NotesAndDefinitions struct {
	DependentChildDefinition  *ExtractionField `json:"dependent_child_definition"`
	BenefitYear               *ExtractionField `json:"benefit_year"`
	SecondMedicalOpinion      *ExtractionField `json:"second_medical_opinion"`
	EAP                       *ExtractionField `json:"eap"`
	DigitalWellnessProgram    *ExtractionField `json:"digital_wellness_program"`
	VirtualHealthcareServices *ExtractionField `json:"virtual_healthcare_services"`
}

// InsuranceSummary is the structured result of extracting a benefits summary.
// A nil section means the section does not apply to the document; a nil
// field inside a present section means the value was not found.
type InsuranceSummary struct {
	LifeInsuranceADD    *LifeInsuranceADD    `json:"life_insurance_ad_d"`
	DependentLife       *DependentLife       `json:"dependent_life"`
	CriticalIllness     *CriticalIllness     `json:"critical_illness"`
	LongTermDisability  *LongTermDisability  `json:"long_term_disability"`
	ShortTermDisability *ShortTermDisability `json:"short_term_disability"`
	HealthCare          *HealthCare          `json:"health_care"`
	DentalCare          *DentalCare          `json:"dental_care"`
	NotesAndDefinitions *NotesAndDefinitions `json:"notes_and_definitions"`
}

type insuranceSummaryJSON InsuranceSummary

// UnmarshalJSON decodes a summary, rejecting unknown sections and fields.
func (s *InsuranceSummary) UnmarshalJSON(data []byte) error {
	var raw insuranceSummaryJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	*s = InsuranceSummary(raw)
	return nil
}

// DecodeInsuranceSummary parses and validates an extraction payload.
func DecodeInsuranceSummary(data []byte) (*InsuranceSummary, error) {
	var s InsuranceSummary
	if err := json.Unmarshal(data, &s); err != nil {
		if errors.Is(err, ErrInvalidSchema) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
	}
	return &s, nil
}

// FieldPath addresses one field of one section.
type FieldPath struct {
	Section string
	Field   string
}

func (p FieldPath) String() string {
	return p.Section + "." + p.Field
}

// ParseFieldPath parses "section.field" and checks it against the schema.
func ParseFieldPath(s string) (FieldPath, error) {
	section, field, ok := strings.Cut(s, ".")
	if !ok || section == "" || field == "" {
		return FieldPath{}, fmt.Errorf("%w: %q", ErrUnknownField, s)
	}
	p := FieldPath{Section: section, Field: field}
	if _, _, err := lookup(p); err != nil {
		return FieldPath{}, err
	}
	return p, nil
}

type fieldInfo struct {
	name  string
	index int
}

type sectionInfo struct {
	name   string
	index  int
	fields []fieldInfo
}

var schema = buildSchema()

func buildSchema() []sectionInfo {
	t := reflect.TypeOf(InsuranceSummary{})
	sections := make([]sectionInfo, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		info := sectionInfo{name: jsonName(sf), index: i}
		st := sf.Type.Elem()
		for j := 0; j < st.NumField(); j++ {
			info.fields = append(info.fields, fieldInfo{name: jsonName(st.Field(j)), index: j})
		}
		sections = append(sections, info)
	}
	return sections
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	return name
}

func lookup(p FieldPath) (sectionInfo, fieldInfo, error) {
	for _, sec := range schema {
		if sec.name != p.Section {
			continue
		}
		for _, f := range sec.fields {
			if f.name == p.Field {
				return sec, f, nil
			}
		}
		return sec, fieldInfo{}, fmt.Errorf("%w: %s", ErrUnknownField, p)
	}
	return sectionInfo{}, fieldInfo{}, fmt.Errorf("%w: %s", ErrUnknownSection, p.Section)
}

// SectionNames returns the schema's section names in declaration order.
func SectionNames() []string {
	names := make([]string, len(schema))
	for i, sec := range schema {
		names[i] = sec.name
	}
	return names
}

// SectionFields returns the field names of a section in declaration order.
func SectionFields(section string) ([]string, error) {
	for _, sec := range schema {
		if sec.name == section {
			names := make([]string, len(sec.fields))
			for i, f := range sec.fields {
				names[i] = f.name
			}
			return names, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSection, section)
}

// sectionValue returns the addressable section struct, or false if it is nil.
func (s *InsuranceSummary) sectionValue(sec sectionInfo) (reflect.Value, bool) {
	v := reflect.ValueOf(s).Elem().Field(sec.index)
	if v.IsNil() {
		return reflect.Value{}, false
	}
	return v.Elem(), true
}

// HasSection reports whether the named section is present.
func (s *InsuranceSummary) HasSection(section string) bool {
	for _, sec := range schema {
		if sec.name == section {
			_, ok := s.sectionValue(sec)
			return ok
		}
	}
	return false
}

// Get returns the field at p. It returns nil if the section or field is null.
func (s *InsuranceSummary) Get(p FieldPath) (*ExtractionField, error) {
	sec, f, err := lookup(p)
	if err != nil {
		return nil, err
	}
	v, ok := s.sectionValue(sec)
	if !ok {
		return nil, nil
	}
	return v.Field(f.index).Interface().(*ExtractionField), nil
}

// MissingFields lists every null field inside a non-null section.
// Null sections are skipped entirely.
func (s *InsuranceSummary) MissingFields() []FieldPath {
	var missing []FieldPath
	for _, sec := range schema {
		v, ok := s.sectionValue(sec)
		if !ok {
			continue
		}
		for _, f := range sec.fields {
			if v.Field(f.index).IsNil() {
				missing = append(missing, FieldPath{Section: sec.name, Field: f.name})
			}
		}
	}
	return missing
}

// Merge fills fields that are currently null with the given values.
// Non-null fields are never overwritten, null sections are never created,
// and nil values are ignored. It returns the number of fields filled.
func (s *InsuranceSummary) Merge(values map[FieldPath]*ExtractionField) int {
	merged := 0
	for p, val := range values {
		if val == nil {
			continue
		}
		sec, f, err := lookup(p)
		if err != nil {
			continue
		}
		v, ok := s.sectionValue(sec)
		if !ok {
			continue
		}
		fv := v.Field(f.index)
		if !fv.IsNil() {
			continue
		}
		copied := *val
		fv.Set(reflect.ValueOf(&copied))
		merged++
	}
	return merged
}

// GroupBySection groups field paths by their section, preserving order.
func GroupBySection(paths []FieldPath) map[string][]FieldPath {
	groups := make(map[string][]FieldPath)
	for _, p := range paths {
		groups[p.Section] = append(groups[p.Section], p)
	}
	return groups
}
