package domain

import "strings"

// QuestionStyle is the input style of a category question.
type QuestionStyle int

const (
	QuestionStyleShort     QuestionStyle = 1
	QuestionStyleParagraph QuestionStyle = 2
	QuestionStyleSelect    QuestionStyle = 3
)

// QuestionOption is a choice of a select-style question.
type QuestionOption struct {
	Label string
	Value string
}

// Question is one form field of a category. ID is the form-data key.
type Question struct {
	ID          string
	Label       string
	Placeholder string
	Style       QuestionStyle
	Required    bool
	MaxLength   int
	Options     []QuestionOption
}

// HasOption reports whether value is one of the select options.
func (q Question) HasOption(value string) bool {
	for _, opt := range q.Options {
		if opt.Value == value {
			return true
		}
	}
	return false
}

// Category is a configured ticket type.
type Category struct {
	Key         string
	Name        string
	Label       string
	Emoji       string
	Description string
	Urgent      bool
	Questions   []Question
}

// Question returns the question with the given id.
func (c Category) Question(id string) (Question, bool) {
	for _, q := range c.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// CategorySet is the immutable, ordered set of configured categories.
type CategorySet struct {
	ordered []Category
	byKey   map[string]int
}

// NewCategorySet builds a set preserving the given order.
func NewCategorySet(categories []Category) CategorySet {
	set := CategorySet{
		ordered: make([]Category, len(categories)),
		byKey:   make(map[string]int, len(categories)),
	}
	copy(set.ordered, categories)
	for i, c := range set.ordered {
		set.byKey[c.Key] = i
	}
	return set
}

// Get returns the category registered under key.
func (s CategorySet) Get(key string) (Category, bool) {
	idx, ok := s.byKey[key]
	if !ok {
		return Category{}, false
	}
	return s.ordered[idx], true
}

// All returns the categories in configuration order.
func (s CategorySet) All() []Category {
	out := make([]Category, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Len returns the number of categories.
func (s CategorySet) Len() int {
	return len(s.ordered)
}

// Classify maps a thread name to a category key by looking for the
// category emoji in the name. The first configured category whose emoji
// appears wins. This is a naming heuristic, not a stored relation.
func (s CategorySet) Classify(threadName string) (string, bool) {
	for _, c := range s.ordered {
		if c.Emoji != "" && strings.Contains(threadName, c.Emoji) {
			return c.Key, true
		}
	}
	return "", false
}
