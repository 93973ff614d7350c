// Package decision extracts structured values from free-form model output.
//
// Every parser is tolerant: malformed output never produces an error, it falls
// back to a documented default instead. Markers are matched case-insensitively,
// accept both ASCII and full-width colons, and exist in English and Chinese.
package decision

import (
	"regexp"
	"strconv"
	"strings"
)

// Markers the prompts ask the model to emit.
const (
	MarkerQuery     = "primary query"
	MarkerBlacklist = "blacklist ids"
	MarkerDecision  = "decision"
	MarkerNextQuery = "new query"
	MarkerAnswer    = "answer"
)

// Action is the controller verdict of one evaluation.
type Action string

const (
	ActionStop Action = "STOP"
	ActionNext Action = "NEXT"
)

// Decision is the parsed result of an evaluation response.
// NextQuery is only meaningful when Action is ActionNext.
type Decision struct {
	Action    Action
	NextQuery string
}

// Continue reports whether the decision asks for another round with a usable
// query that differs from current.
func (d Decision) Continue(current string) bool {
	return d.Action == ActionNext && d.NextQuery != "" && d.NextQuery != current
}

func (d Decision) String() string {
	if d.NextQuery == "" {
		return string(d.Action)
	}
	return string(d.Action) + " | " + d.NextQuery
}

// markerPattern builds a line-anchored pattern for "<marker>: <capture>". A
// leading list bullet or markdown emphasis around the marker is tolerated.
func markerPattern(capture string, markers ...string) *regexp.Regexp {
	quoted := make([]string, len(markers))
	for i, m := range markers {
		quoted[i] = regexp.QuoteMeta(m)
	}
	return regexp.MustCompile(`(?im)^[\s>*#-]*(?:` + strings.Join(quoted, "|") + `)\**\s*[:：]\**[ \t]*` + capture)
}

var (
	queryRe     = markerPattern(`((?s).*)`, MarkerQuery, "首要查询")
	blacklistRe = markerPattern(`\s*([^\n]*)`, MarkerBlacklist, "blacklist id", "拉黑ID")
	decisionRe  = markerPattern(`\**\s*(STOP|NEXT)\b`, MarkerDecision, "决策")
	nextQueryRe = markerPattern(`([^\n]*)`, MarkerNextQuery, "新查询词")
	answerRe    = markerPattern(`((?s).*)`, MarkerAnswer, "回答")
)

// ParseQuery returns the text after the primary query marker, or the whole
// trimmed output when the marker is absent.
func ParseQuery(text string) string {
	if m := queryRe.FindStringSubmatch(text); m != nil {
		if q := strings.TrimSpace(m[1]); q != "" {
			return q
		}
	}
	return strings.TrimSpace(text)
}

// ParseBlacklist returns the integer ids listed after the blacklist marker.
// Entries that are not integers are skipped. An absent marker, an empty list
// or an explicit "none" yields no ids.
func ParseBlacklist(text string) []int {
	m := blacklistRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	content := strings.TrimSpace(m[1])
	if content == "" || strings.Contains(content, "无") || strings.Contains(strings.ToLower(content), "none") {
		return nil
	}

	content = strings.NewReplacer("，", ",", "、", ",", ";", ",").Replace(content)
	content = strings.Trim(content, "[]<>() ")

	var ids []int
	for part := range strings.SplitSeq(content, ",") {
		id, err := strconv.Atoi(strings.Trim(strings.TrimSpace(part), "[]<>()#*"))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// ParseDecision reads the evaluation verdict. Anything that cannot be read as
// NEXT is STOP; the next query is taken from the first line after its marker.
func ParseDecision(text string) Decision {
	d := Decision{Action: ActionStop}

	m := decisionRe.FindStringSubmatch(text)
	if m == nil || !strings.EqualFold(m[1], string(ActionNext)) {
		return d
	}
	d.Action = ActionNext

	if q := nextQueryRe.FindStringSubmatch(text); q != nil {
		d.NextQuery = strings.TrimSpace(strings.Trim(q[1], "*`\"'"))
	}
	return d
}

// ParseAnswer returns the text after the answer marker, or the whole trimmed
// output when the marker is absent.
func ParseAnswer(text string) string {
	if m := answerRe.FindStringSubmatch(text); m != nil {
		if a := strings.TrimSpace(m[1]); a != "" {
			return a
		}
	}
	return strings.TrimSpace(text)
}
