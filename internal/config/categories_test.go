package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

const validCategories = `
support:
  name: General Support
  label: Support
  description: Questions about the server
  emoji: "🍬"
  questions:
    - id: topic
      label: Topic
      placeholder: What is it about?
      style: 1
      required: true
      maxLength: 100
report:
  name: Report a User
  label: Report
  description: Report rule breaking
  emoji: "🚨"
  urgent: true
  questions:
    - id: severity
      label: Severity
      placeholder: Pick one
      style: 3
      required: false
      options:
        - label: Low
          value: low
        - label: High
          value: high
`

func TestParseCategoriesPreservesOrder(t *testing.T) {
	set, err := ParseCategories([]byte(validCategories))
	require.NoError(t, err)

	all := set.All()
	require.Len(t, all, 2)
	assert.Equal(t, "support", all[0].Key)
	assert.Equal(t, "report", all[1].Key)
	assert.True(t, all[1].Urgent)

	q, ok := all[1].Question("severity")
	require.True(t, ok)
	assert.Equal(t, domain.QuestionStyleSelect, q.Style)
	assert.True(t, q.HasOption("high"))
	assert.False(t, q.HasOption("medium"))
}

func TestParseCategoriesRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":          ``,
		"not a mapping":  `- a`,
		"missing emoji":  "a:\n  name: A\n  label: A\n  description: d\n  questions:\n    - {id: q, label: Q, placeholder: p, style: 1, required: true}\n",
		"no questions":   "a:\n  name: A\n  label: A\n  description: d\n  emoji: x\n  questions: []\n",
		"bad style":      "a:\n  name: A\n  label: A\n  description: d\n  emoji: x\n  questions:\n    - {id: q, label: Q, placeholder: p, style: 7, required: true}\n",
		"select no opts": "a:\n  name: A\n  label: A\n  description: d\n  emoji: x\n  questions:\n    - {id: q, label: Q, placeholder: p, style: 3, required: true}\n",
		"no required":    "a:\n  name: A\n  label: A\n  description: d\n  emoji: x\n  questions:\n    - {id: q, label: Q, placeholder: p, style: 1}\n",
		"dup question":   "a:\n  name: A\n  label: A\n  description: d\n  emoji: x\n  questions:\n    - {id: q, label: Q, placeholder: p, style: 1, required: true}\n    - {id: q, label: Q, placeholder: p, style: 1, required: true}\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCategories([]byte(content))
			assert.Error(t, err)
		})
	}
}

func TestCategorySetClassifyFirstMatchWins(t *testing.T) {
	set, err := ParseCategories([]byte(validCategories))
	require.NoError(t, err)

	key, ok := set.Classify("🍬 General Support - alice")
	assert.True(t, ok)
	assert.Equal(t, "support", key)

	key, ok = set.Classify("🚨🍬 mixed - bob")
	assert.True(t, ok)
	assert.Equal(t, "support", key)

	_, ok = set.Classify("random chat")
	assert.False(t, ok)
}

func TestParseMapping(t *testing.T) {
	m, err := parseMapping("ticket_created=https://a, default=https://b")
	require.NoError(t, err)
	assert.Equal(t, "https://a", m["ticket_created"])
	assert.Equal(t, "https://b", m["default"])

	_, err = parseMapping("broken")
	assert.Error(t, err)
}
