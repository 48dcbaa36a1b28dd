package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

type categoryFile struct {
	Name        string         `yaml:"name"`
	Label       string         `yaml:"label"`
	Description string         `yaml:"description"`
	Emoji       string         `yaml:"emoji"`
	Urgent      bool           `yaml:"urgent"`
	Questions   []questionFile `yaml:"questions"`
}

type questionFile struct {
	ID          string       `yaml:"id"`
	Label       string       `yaml:"label"`
	Placeholder string       `yaml:"placeholder"`
	Style       int          `yaml:"style"`
	Required    *bool        `yaml:"required"`
	MaxLength   int          `yaml:"maxLength"`
	Options     []optionFile `yaml:"options"`
}

type optionFile struct {
	Label string `yaml:"label"`
	Value string `yaml:"value"`
}

// LoadCategories reads the categories file at path.
func LoadCategories(path string) (domain.CategorySet, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.CategorySet{}, fmt.Errorf("read categories: %w", err)
	}
	return ParseCategories(content)
}

// ParseCategories decodes a YAML mapping of category key to definition.
// Mapping order is preserved since thread classification is first-match.
func ParseCategories(content []byte) (domain.CategorySet, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return domain.CategorySet{}, fmt.Errorf("parse categories: %w", err)
	}
	if len(root.Content) == 0 {
		return domain.CategorySet{}, errors.New("no categories defined")
	}
	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return domain.CategorySet{}, errors.New("categories file must be a mapping of category key to definition")
	}
	if len(mapping.Content) == 0 {
		return domain.CategorySet{}, errors.New("no categories defined")
	}

	categories := make([]domain.Category, 0, len(mapping.Content)/2)
	seen := map[string]struct{}{}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i].Value
		if _, dup := seen[key]; dup {
			return domain.CategorySet{}, fmt.Errorf("duplicate category %q", key)
		}
		seen[key] = struct{}{}

		var raw categoryFile
		if err := mapping.Content[i+1].Decode(&raw); err != nil {
			return domain.CategorySet{}, fmt.Errorf("category %s: %w", key, err)
		}
		category, err := buildCategory(key, raw)
		if err != nil {
			return domain.CategorySet{}, err
		}
		categories = append(categories, category)
	}
	return domain.NewCategorySet(categories), nil
}

func buildCategory(key string, raw categoryFile) (domain.Category, error) {
	required := map[string]string{
		"name":        raw.Name,
		"label":       raw.Label,
		"description": raw.Description,
		"emoji":       raw.Emoji,
	}
	for _, field := range []string{"name", "label", "description", "emoji"} {
		if required[field] == "" {
			return domain.Category{}, fmt.Errorf("category %s missing required field: %s", key, field)
		}
	}
	if len(raw.Questions) == 0 {
		return domain.Category{}, fmt.Errorf("category %s must have at least one question", key)
	}

	category := domain.Category{
		Key:         key,
		Name:        raw.Name,
		Label:       raw.Label,
		Emoji:       raw.Emoji,
		Description: raw.Description,
		Urgent:      raw.Urgent,
		Questions:   make([]domain.Question, 0, len(raw.Questions)),
	}
	ids := map[string]struct{}{}
	for _, q := range raw.Questions {
		question, err := buildQuestion(key, q)
		if err != nil {
			return domain.Category{}, err
		}
		if _, dup := ids[question.ID]; dup {
			return domain.Category{}, fmt.Errorf("category %s has duplicate question id %q", key, question.ID)
		}
		ids[question.ID] = struct{}{}
		category.Questions = append(category.Questions, question)
	}
	return category, nil
}

func buildQuestion(categoryKey string, raw questionFile) (domain.Question, error) {
	if raw.ID == "" || raw.Label == "" || raw.Placeholder == "" || raw.Required == nil {
		return domain.Question{}, fmt.Errorf("question in category %s missing one of id, label, placeholder, required", categoryKey)
	}
	style := domain.QuestionStyle(raw.Style)
	switch style {
	case domain.QuestionStyleShort, domain.QuestionStyleParagraph, domain.QuestionStyleSelect:
	default:
		return domain.Question{}, fmt.Errorf("question %s in category %s has invalid style: %d", raw.ID, categoryKey, raw.Style)
	}
	if style == domain.QuestionStyleSelect && len(raw.Options) == 0 {
		return domain.Question{}, fmt.Errorf("question %s in category %s is a select menu but has no options", raw.ID, categoryKey)
	}
	if raw.MaxLength < 0 {
		return domain.Question{}, fmt.Errorf("question %s in category %s has negative maxLength", raw.ID, categoryKey)
	}

	question := domain.Question{
		ID:          raw.ID,
		Label:       raw.Label,
		Placeholder: raw.Placeholder,
		Style:       style,
		Required:    *raw.Required,
		MaxLength:   raw.MaxLength,
	}
	for _, opt := range raw.Options {
		if opt.Label == "" || opt.Value == "" {
			return domain.Question{}, fmt.Errorf("invalid option in question %s in category %s", raw.ID, categoryKey)
		}
		question.Options = append(question.Options, domain.QuestionOption{Label: opt.Label, Value: opt.Value})
	}
	return question, nil
}
