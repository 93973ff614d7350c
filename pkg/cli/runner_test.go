package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/docker/rulelawyer/pkg/agent"
	"github.com/docker/rulelawyer/pkg/history"
)

type scriptedConversation struct {
	questions []string
	resets    int
	sessions  int
	fail      error
}

func (c *scriptedConversation) Ask(_ context.Context, question string) (*agent.Result, error) {
	c.questions = append(c.questions, question)
	if c.fail != nil {
		return &agent.Result{
			Trace: []agent.TraceEntry{{Kind: agent.KindError, Label: "Error", Content: c.fail.Error()}},
			Err:   c.fail,
		}, c.fail
	}
	return &agent.Result{
		Answer: "answer to " + question,
		Trace:  []agent.TraceEntry{{Kind: agent.KindThink, Label: "Final Generate", Content: "generating final answer"}},
	}, nil
}

func (c *scriptedConversation) Reset(context.Context) error {
	c.resets++
	return nil
}

func (c *scriptedConversation) NewSession(context.Context) error {
	c.sessions++
	return nil
}

func TestRun_CommandsAndQuestions(t *testing.T) {
	var buf bytes.Buffer
	conv := &scriptedConversation{}

	err := Run(context.Background(), NewPrinter(&buf), Config{AppName: "rulelawyer"}, conv,
		strings.NewReader("How does grappling work?\n\n/reset\n/new\n/bogus\nflanking\n/exit\nnever asked\n"))

	assert.NilError(t, err)
	assert.DeepEqual(t, []string{"How does grappling work?", "flanking"}, conv.questions)
	assert.Equal(t, 1, conv.resets)
	assert.Equal(t, 1, conv.sessions)

	out := buf.String()
	assert.Assert(t, is.Contains(out, "Welcome to rulelawyer"))
	assert.Assert(t, is.Contains(out, "answer to flanking"))
	assert.Assert(t, is.Contains(out, "💭 [Final Generate] generating final answer"))
	assert.Assert(t, is.Contains(out, "Context cleared."))
	assert.Assert(t, is.Contains(out, "unknown command /bogus"))
}

func TestRun_EndOfInput(t *testing.T) {
	var buf bytes.Buffer
	conv := &scriptedConversation{}

	err := Run(context.Background(), NewPrinter(&buf), Config{}, conv, strings.NewReader("last question"))

	assert.NilError(t, err)
	assert.DeepEqual(t, []string{"last question"}, conv.questions)
}

func TestRun_FailedQuestionKeepsGoing(t *testing.T) {
	var buf bytes.Buffer
	conv := &scriptedConversation{fail: errors.New("model unavailable")}

	err := Run(context.Background(), NewPrinter(&buf), Config{}, conv, strings.NewReader("one\ntwo\n"))

	assert.NilError(t, err)
	assert.Equal(t, 2, len(conv.questions))
	assert.Assert(t, is.Contains(buf.String(), "❌ model unavailable"))
}

func TestAsk_WrapsFailure(t *testing.T) {
	var buf bytes.Buffer
	conv := &scriptedConversation{fail: errors.New("model unavailable")}

	err := Ask(context.Background(), NewPrinter(&buf), Config{HideTrace: true}, conv, "grapple")

	var rtErr RuntimeError
	assert.Assert(t, errors.As(err, &rtErr))
	assert.Equal(t, "❌ model unavailable\n", buf.String())
}

func TestAsk_Empty(t *testing.T) {
	err := Ask(context.Background(), NewPrinter(&bytes.Buffer{}), Config{}, &scriptedConversation{}, "   ")
	assert.ErrorContains(t, err, "question is empty")
}

func TestRun_History(t *testing.T) {
	var buf bytes.Buffer
	conv := &scriptedConversation{}
	hist, err := history.Load(history.Path(t.TempDir()))
	assert.NilError(t, err)

	err = Run(context.Background(), NewPrinter(&buf), Config{History: hist}, conv,
		strings.NewReader("/history\ngrapple\nshove\n/history\n!1\n!!\n!9\n!x\n"))

	assert.NilError(t, err)
	assert.DeepEqual(t, []string{"grapple", "shove", "grapple", "grapple"}, conv.questions)
	assert.DeepEqual(t, []string{"shove", "grapple"}, hist.Recent(10))

	out := buf.String()
	assert.Assert(t, is.Contains(out, "No questions yet."))
	assert.Assert(t, is.Contains(out, "   1  grapple\n   2  shove\n"))
	assert.Assert(t, is.Contains(out, "no question !9 in history"))
	assert.Assert(t, is.Contains(out, "invalid history reference !x"))
}
