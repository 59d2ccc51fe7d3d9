// Package seeder loads the reference catalogs (clients, activities,
// outcomes) from a YAML file into the database.
package seeder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

// File is the YAML seed document:
//
//	clients:
//	  - name: North Clinic
//	    code: NC
//	activities:
//	  - name: Assessment
//	    description: First visit
//	outcomes:
//	  - name: Discharged
//	    category: closed
type File struct {
	Clients    []ClientSeed   `yaml:"clients"`
	Activities []ActivitySeed `yaml:"activities"`
	Outcomes   []OutcomeSeed  `yaml:"outcomes"`
}

type ClientSeed struct {
	Name     string  `yaml:"name"`
	Code     *string `yaml:"code"`
	Inactive bool    `yaml:"inactive"`
}

type ActivitySeed struct {
	Name        string  `yaml:"name"`
	Description *string `yaml:"description"`
	Inactive    bool    `yaml:"inactive"`
}

type OutcomeSeed struct {
	Name     string  `yaml:"name"`
	Category *string `yaml:"category"`
	Inactive bool    `yaml:"inactive"`
}

// Load reads and validates the seed file at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed file: %w", err)
	}
	defer f.Close()

	file, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	return file, nil
}

// Parse decodes a seed document. Unknown keys, empty names and names
// repeated within one section (case-insensitive) are rejected.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}

	var errs []domain.FieldError
	errs = append(errs, checkNames("clients", file.Clients, func(s ClientSeed) string { return s.Name })...)
	errs = append(errs, checkNames("activities", file.Activities, func(s ActivitySeed) string { return s.Name })...)
	errs = append(errs, checkNames("outcomes", file.Outcomes, func(s OutcomeSeed) string { return s.Name })...)
	if len(errs) > 0 {
		return nil, domain.NewValidationErrors(errs)
	}
	return &file, nil
}

func checkNames[T any](section string, items []T, name func(T) string) []domain.FieldError {
	var errs []domain.FieldError
	seen := make(map[string]int, len(items))
	for i, item := range items {
		field := fmt.Sprintf("%s[%d].name", section, i)
		n := strings.ToLower(strings.TrimSpace(name(item)))
		if n == "" {
			errs = append(errs, domain.FieldError{Field: field, Message: "required"})
			continue
		}
		if first, dup := seen[n]; dup {
			errs = append(errs, domain.FieldError{Field: field, Message: fmt.Sprintf("duplicates %s[%d]", section, first)})
			continue
		}
		seen[n] = i
	}
	return errs
}

func (s ClientSeed) toDomain() domain.Client {
	return domain.Client{Name: strings.TrimSpace(s.Name), Code: s.Code, IsActive: !s.Inactive}
}

func (s ActivitySeed) toDomain() domain.Activity {
	return domain.Activity{Name: strings.TrimSpace(s.Name), Description: s.Description, IsActive: !s.Inactive}
}

func (s OutcomeSeed) toDomain() domain.Outcome {
	return domain.Outcome{Name: strings.TrimSpace(s.Name), Category: s.Category, IsActive: !s.Inactive}
}
