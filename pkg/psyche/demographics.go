package psyche

import (
	"fmt"
	"strconv"
	"strings"
)

// Demographics holds descriptive attributes of an agent. They are static
// context for behavior generation and take no part in scoring.
type Demographics struct {
	// Age in years.
	Age int

	// Gender identity of the agent.
	Gender string

	// Occupation is the current professional role.
	Occupation string

	// Location is the geographic residence.
	Location string

	// EducationLevel is the highest education completed.
	EducationLevel string

	// IncomeBracket is an optional economic category.
	IncomeBracket string
}

// Summary renders the demographics as a short line for prompt context.
// Empty fields are omitted.
func (d *Demographics) Summary() string {
	var parts []string
	if d.Age > 0 {
		parts = append(parts, fmt.Sprintf("age %d", d.Age))
	}
	for _, v := range []string{d.Gender, d.Occupation, d.Location, d.EducationLevel, d.IncomeBracket} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// ToMap converts the demographics to a string map for persistence.
func (d *Demographics) ToMap() map[string]string {
	m := map[string]string{}
	if d.Age > 0 {
		m["age"] = strconv.Itoa(d.Age)
	}
	if d.Gender != "" {
		m["gender"] = d.Gender
	}
	if d.Occupation != "" {
		m["occupation"] = d.Occupation
	}
	if d.Location != "" {
		m["location"] = d.Location
	}
	if d.EducationLevel != "" {
		m["education_level"] = d.EducationLevel
	}
	if d.IncomeBracket != "" {
		m["income_bracket"] = d.IncomeBracket
	}
	return m
}

// DemographicsFromMap restores demographics from a persisted string map.
func DemographicsFromMap(m map[string]string) *Demographics {
	d := &Demographics{
		Gender:         m["gender"],
		Occupation:     m["occupation"],
		Location:       m["location"],
		EducationLevel: m["education_level"],
		IncomeBracket:  m["income_bracket"],
	}
	if age, err := strconv.Atoi(m["age"]); err == nil {
		d.Age = age
	}
	return d
}
