package cases

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/dairysangam/vetcore/internal/domain/audit"
	"github.com/dairysangam/vetcore/internal/platform/apperr"
)

// AddDiagnosis records a clinical assessment against a case.
func (s *Service) AddDiagnosis(ctx context.Context, actor uuid.UUID, caseNo string, d *CaseDiagnosis) (*CaseDiagnosis, error) {
	if d.Disease == nil && len(d.Symptoms) == 0 {
		return nil, apperr.New(apperr.KindValidation,
			"a diagnosis needs a disease or at least one symptom")
	}
	for _, sym := range d.Symptoms {
		if sym.Name == "" {
			return nil, apperr.New(apperr.KindValidation, "symptom name must not be empty")
		}
	}
	c, err := s.cases.GetByCaseNo(ctx, caseNo, false)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "case not found", err)
	}
	d.CaseID = c.ID
	d.CreatedBy = actor
	if err := s.diagnoses.Create(ctx, d); err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, audit.ActionCreated, "case_diagnosis", d.ID, actor,
		map[string]interface{}{"case_no": caseNo})
	return d, nil
}

// AddTreatment records an administered treatment against a case.
func (s *Service) AddTreatment(ctx context.Context, actor uuid.UUID, caseNo string, t *CaseTreatment) (*CaseTreatment, error) {
	if t.ProviderID == uuid.Nil {
		t.ProviderID = actor
	}
	c, err := s.cases.GetByCaseNo(ctx, caseNo, false)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindReference, "case not found", err)
	}
	if c.Status == StatusCancelled {
		return nil, apperr.New(apperr.KindForbiddenTransition,
			"cannot treat a cancelled case")
	}
	t.CaseID = c.ID
	t.CreatedBy = actor
	if err := s.treatments.Create(ctx, t); err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, audit.ActionCreated, "case_treatment", t.ID, actor,
		map[string]interface{}{"case_no": caseNo})
	return t, nil
}

// DiseaseSuggestion is one ranked hit of the symptom lookup.
type DiseaseSuggestion struct {
	Disease string `json:"disease"`
	Matched int    `json:"matched_symptoms"`
}

// diseaseSymptoms is the field reference table mapping common bovine
// diseases to their presenting symptoms.
var diseaseSymptoms = map[string][]string{
	"Mastitis":                  {"swollen udder", "abnormal milk", "fever", "reduced milk yield"},
	"Foot and Mouth Disease":    {"fever", "mouth blisters", "drooling", "lameness", "reduced milk yield"},
	"Milk Fever":                {"recumbency", "cold ears", "muscle tremors", "loss of appetite"},
	"Ketosis":                   {"loss of appetite", "weight loss", "reduced milk yield", "acetone breath"},
	"Bloat":                     {"distended abdomen", "discomfort", "difficulty breathing"},
	"Haemorrhagic Septicaemia":  {"fever", "throat swelling", "difficulty breathing", "drooling"},
	"Black Quarter":             {"fever", "lameness", "muscle swelling", "loss of appetite"},
	"Theileriosis":              {"fever", "swollen lymph nodes", "anaemia", "reduced milk yield"},
	"Retention of Placenta":     {"retained membranes", "foul discharge", "loss of appetite"},
	"Repeat Breeding":           {"failure to conceive", "irregular heat"},
}

// SuggestDiseases ranks diseases by how many of the given symptoms they
// present, most matches first. Unknown symptoms simply match nothing.
func SuggestDiseases(symptoms []string) []DiseaseSuggestion {
	given := make(map[string]bool, len(symptoms))
	for _, s := range symptoms {
		given[strings.ToLower(strings.TrimSpace(s))] = true
	}

	var out []DiseaseSuggestion
	for disease, known := range diseaseSymptoms {
		matched := 0
		for _, sym := range known {
			if given[sym] {
				matched++
			}
		}
		if matched > 0 {
			out = append(out, DiseaseSuggestion{Disease: disease, Matched: matched})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Matched != out[j].Matched {
			return out[i].Matched > out[j].Matched
		}
		return out[i].Disease < out[j].Disease
	})
	return out
}
