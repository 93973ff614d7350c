// Package prompts holds the instructions sent to the model at each step of the
// retrieval loop and the renderers that turn documents and conversation
// history into prompt text.
package prompts

import (
	"fmt"

	"github.com/docker/rulelawyer/pkg/chat"
	"github.com/docker/rulelawyer/pkg/rag/decision"
)

// Prompt is a system instruction plus the user turn it applies to.
type Prompt struct {
	Name   string
	System string
	User   string
}

func (p Prompt) Messages() []chat.Message {
	return []chat.Message{
		chat.SystemMessage(p.System),
		chat.UserMessage(p.User),
	}
}

const querySystem = `You are a search expert for a tabletop game rules reference.
Your task is to produce one precise keyword query for a lexical search engine over the rules.
Extract only the core content keywords of the user's question.
Do not include instruction words such as "search" or "find".
Reply strictly in this format:
` + decision.MarkerQuery + `: <keywords>`

// QueryExtraction asks for the search keywords of a long question.
func QueryExtraction(history, input string) Prompt {
	return Prompt{
		Name:   "query",
		System: querySystem,
		User:   fmt.Sprintf("[Conversation history]\n%s\n\n[Current question]\n%s", history, input),
	}
}

const blacklistSystem = `You are a rules reviewer.
Identify the documents in the list that are unrelated to the user's question.
Reply strictly in this format:
` + decision.MarkerBlacklist + `: <id1, id2, ...>
If every document is related, reply with "` + decision.MarkerBlacklist + `: none".`

// BlacklistJudgment asks which of the rendered documents are irrelevant.
func BlacklistJudgment(input, context string) Prompt {
	return Prompt{
		Name:   "blacklist",
		System: blacklistSystem,
		User:   fmt.Sprintf("[Question]\n%s\n\n[Documents to review (with IDs)]\n%s", input, context),
	}
}

const evaluateSystem = `You are a rules guide. Decide whether the documents below are enough to answer the question or another search is needed.
Reply strictly in this format:
` + decision.MarkerDecision + `: <STOP or NEXT>
[only if NEXT]
` + decision.MarkerNextQuery + `: <keywords>`

// Evaluation asks whether the cleaned pool suffices.
func Evaluation(input, context string) Prompt {
	return Prompt{
		Name:   "evaluate",
		System: evaluateSystem,
		User:   fmt.Sprintf("[Question]\n%s\n\n[Current document pool]\n%s", input, context),
	}
}

const answerSystem = `You are a rules expert. Answer the user's question from the rules documents provided.
1. Ground the answer in the context and cite the documents you rely on.
2. If the context does not contain the answer, say plainly that it was not found.`

// FinalAnswer asks for the answer grounded in the final pool.
func FinalAnswer(history, input, context string) Prompt {
	return Prompt{
		Name:   "answer",
		System: answerSystem,
		User: fmt.Sprintf("[Conversation history]\n%s\n\n[Question]\n%s\n\n[Rules documents (context)]\n%s\n",
			history, input, context),
	}
}
