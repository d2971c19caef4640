package persona

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation 表示 persona 数据不满足结构约束。
var ErrValidation = errors.New("persona validation failed")

// Persona captures a generated character profile. The two list fields are
// tag-style views of their narrative counterparts.
type Persona struct {
	Persona                 string   `json:"persona" yaml:"persona"`
	ProfessionalPersona     string   `json:"professional_persona" yaml:"professional_persona"`
	SportsPersona           string   `json:"sports_persona" yaml:"sports_persona"`
	ArtsPersona             string   `json:"arts_persona" yaml:"arts_persona"`
	TravelPersona           string   `json:"travel_persona" yaml:"travel_persona"`
	CulinaryPersona         string   `json:"culinary_persona" yaml:"culinary_persona"`
	SkillsAndExpertise      string   `json:"skills_and_expertise" yaml:"skills_and_expertise"`
	SkillsAndExpertiseList  []string `json:"skills_and_expertise_list" yaml:"skills_and_expertise_list"`
	HobbiesAndInterests     string   `json:"hobbies_and_interests" yaml:"hobbies_and_interests"`
	HobbiesAndInterestsList []string `json:"hobbies_and_interests_list" yaml:"hobbies_and_interests_list"`
	CareerGoalsAndAmbitions string   `json:"career_goals_and_ambitions" yaml:"career_goals_and_ambitions"`
}

// Validate checks that every narrative field is filled in and both list
// fields are non-nil.
func (p Persona) Validate() error {
	for _, f := range p.narratives() {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, f.key)
		}
	}
	if p.SkillsAndExpertiseList == nil {
		return fmt.Errorf("%w: skills_and_expertise_list is required", ErrValidation)
	}
	if p.HobbiesAndInterestsList == nil {
		return fmt.Errorf("%w: hobbies_and_interests_list is required", ErrValidation)
	}
	return nil
}

type namedField struct {
	key   string
	value string
}

func (p Persona) narratives() []namedField {
	return []namedField{
		{"persona", p.Persona},
		{"professional_persona", p.ProfessionalPersona},
		{"sports_persona", p.SportsPersona},
		{"arts_persona", p.ArtsPersona},
		{"travel_persona", p.TravelPersona},
		{"culinary_persona", p.CulinaryPersona},
		{"skills_and_expertise", p.SkillsAndExpertise},
		{"hobbies_and_interests", p.HobbiesAndInterests},
		{"career_goals_and_ambitions", p.CareerGoalsAndAmbitions},
	}
}

// Record is the wire form shared by persisted YAML files and model output.
// Pointer fields let a missing key be told apart from an empty value.
type Record struct {
	Persona                 *string   `json:"persona" yaml:"persona"`
	ProfessionalPersona     *string   `json:"professional_persona" yaml:"professional_persona"`
	SportsPersona           *string   `json:"sports_persona" yaml:"sports_persona"`
	ArtsPersona             *string   `json:"arts_persona" yaml:"arts_persona"`
	TravelPersona           *string   `json:"travel_persona" yaml:"travel_persona"`
	CulinaryPersona         *string   `json:"culinary_persona" yaml:"culinary_persona"`
	SkillsAndExpertise      *string   `json:"skills_and_expertise" yaml:"skills_and_expertise"`
	SkillsAndExpertiseList  *[]string `json:"skills_and_expertise_list" yaml:"skills_and_expertise_list"`
	HobbiesAndInterests     *string   `json:"hobbies_and_interests" yaml:"hobbies_and_interests"`
	HobbiesAndInterestsList *[]string `json:"hobbies_and_interests_list" yaml:"hobbies_and_interests_list"`
	CareerGoalsAndAmbitions *string   `json:"career_goals_and_ambitions" yaml:"career_goals_and_ambitions"`
}

// ToPersona converts a decoded record into a validated Persona.
func (r Record) ToPersona() (Persona, error) {
	missing := make([]string, 0)
	str := func(key string, v *string) string {
		if v == nil {
			missing = append(missing, key)
			return ""
		}
		return *v
	}
	list := func(key string, v *[]string) []string {
		if v == nil || *v == nil {
			missing = append(missing, key)
			return nil
		}
		return append([]string{}, (*v)...)
	}

	p := Persona{
		Persona:                 str("persona", r.Persona),
		ProfessionalPersona:     str("professional_persona", r.ProfessionalPersona),
		SportsPersona:           str("sports_persona", r.SportsPersona),
		ArtsPersona:             str("arts_persona", r.ArtsPersona),
		TravelPersona:           str("travel_persona", r.TravelPersona),
		CulinaryPersona:         str("culinary_persona", r.CulinaryPersona),
		SkillsAndExpertise:      str("skills_and_expertise", r.SkillsAndExpertise),
		SkillsAndExpertiseList:  list("skills_and_expertise_list", r.SkillsAndExpertiseList),
		HobbiesAndInterests:     str("hobbies_and_interests", r.HobbiesAndInterests),
		HobbiesAndInterestsList: list("hobbies_and_interests_list", r.HobbiesAndInterestsList),
		CareerGoalsAndAmbitions: str("career_goals_and_ambitions", r.CareerGoalsAndAmbitions),
	}
	if len(missing) > 0 {
		return Persona{}, fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	if err := p.Validate(); err != nil {
		return Persona{}, err
	}
	return p, nil
}

// Render formats the persona as "key: value" lines, the same shape used for
// dataset examples in prompts.
func (p Persona) Render() string {
	var b strings.Builder
	for _, f := range p.narratives() {
		b.WriteString(f.key)
		b.WriteString(": ")
		b.WriteString(f.value)
		b.WriteString("\n")
	}
	b.WriteString("skills_and_expertise_list: ")
	b.WriteString(strings.Join(p.SkillsAndExpertiseList, ", "))
	b.WriteString("\nhobbies_and_interests_list: ")
	b.WriteString(strings.Join(p.HobbiesAndInterestsList, ", "))
	b.WriteString("\n")
	return b.String()
}
