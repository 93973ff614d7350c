package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "english marker", in: "Primary query: grapple rules", want: "grapple rules"},
		{name: "chinese marker", in: "首要查询: 擒抱", want: "擒抱"},
		{name: "full width colon", in: "首要查询：擒抱 规则", want: "擒抱 规则"},
		{name: "preamble before marker", in: "Sure.\nprimary query: opportunity attack", want: "opportunity attack"},
		{name: "bold marker", in: "**Primary query**: cover", want: "cover"},
		{name: "marker absent", in: "  grappling size limits \n", want: "grappling size limits"},
		{name: "empty capture falls back", in: "primary query:", want: "primary query:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseQuery(tt.in))
		})
	}
}

func TestParseBlacklist(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []int
	}{
		{name: "plain list", in: "blacklist ids: 0, 2", want: []int{0, 2}},
		{name: "chinese marker and comma", in: "拉黑ID: 1，3", want: []int{1, 3}},
		{name: "bad entries skipped", in: "Blacklist IDs: 1, x, 2.5, 4", want: []int{1, 4}},
		{name: "bracketed", in: "blacklist ids: [3, 5]", want: []int{3, 5}},
		{name: "none", in: "blacklist ids: none", want: nil},
		{name: "chinese none", in: "拉黑ID: 无", want: nil},
		{name: "empty", in: "blacklist ids:", want: nil},
		{name: "marker absent", in: "documents 1 and 2 are irrelevant", want: nil},
		{name: "trailing explanation on next line", in: "blacklist ids: 7\nbecause they cover spells", want: []int{7}},
		{name: "ids on next line", in: "blacklist ids:\n2, 6", want: []int{2, 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseBlacklist(tt.in))
		})
	}
}

func TestParseDecision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want Decision
	}{
		{name: "stop", in: "decision: STOP", want: Decision{Action: ActionStop}},
		{name: "next with query", in: "decision: NEXT\nnew query: escape grapple", want: Decision{Action: ActionNext, NextQuery: "escape grapple"}},
		{name: "lowercase verdict", in: "Decision: next\nNew query: shove", want: Decision{Action: ActionNext, NextQuery: "shove"}},
		{name: "chinese", in: "决策: NEXT\n新查询词: 擒抱 逃脱", want: Decision{Action: ActionNext, NextQuery: "擒抱 逃脱"}},
		{name: "next without query", in: "decision: NEXT", want: Decision{Action: ActionNext}},
		{name: "query only read from its own line", in: "decision: NEXT\nnew query: prone\nextra words", want: Decision{Action: ActionNext, NextQuery: "prone"}},
		{name: "stop ignores new query", in: "decision: STOP\nnew query: prone", want: Decision{Action: ActionStop}},
		{name: "unparseable is stop", in: "I think we have enough", want: Decision{Action: ActionStop}},
		{name: "unknown verdict is stop", in: "decision: MAYBE", want: Decision{Action: ActionStop}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ParseDecision(tt.in))
		})
	}
}

func TestDecision_Continue(t *testing.T) {
	t.Parallel()

	assert.True(t, Decision{Action: ActionNext, NextQuery: "b"}.Continue("a"))
	assert.False(t, Decision{Action: ActionNext, NextQuery: "a"}.Continue("a"))
	assert.False(t, Decision{Action: ActionNext}.Continue("a"))
	assert.False(t, Decision{Action: ActionStop, NextQuery: "b"}.Continue("a"))
}

func TestDecision_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "STOP", Decision{Action: ActionStop}.String())
	assert.Equal(t, "NEXT | grapple", Decision{Action: ActionNext, NextQuery: "grapple"}.String())
}

func TestParseAnswer(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "You can grapple a creature up to one size larger.",
		ParseAnswer("Answer: You can grapple a creature up to one size larger."))
	assert.Equal(t, "line one\nline two", ParseAnswer("回答：line one\nline two"))
	assert.Equal(t, "No marker here.", ParseAnswer("\n No marker here. \n"))
	assert.Empty(t, ParseAnswer("   "))
}
