package agent

import (
	"github.com/glunkad/caresimplfyservice/internal/domain"
	"github.com/glunkad/caresimplfyservice/internal/llm"
)

// BuildContext assembles the message list for one chat turn: the persona
// plus seed document as the system prompt, a window of recent history, and
// the new question last.
//
// maxHistoryTurns counts question/answer exchanges, not individual turns.
// The window is cut at an exchange boundary so the model never sees an
// answer without its question. Zero or negative means unlimited history.
func BuildContext(sess *domain.Session, question string, maxHistoryTurns int) (string, []llm.Message) {
	system := BuildSystemPrompt(sess.SeedDocument)

	history := sess.Turns
	if maxHistoryTurns > 0 && len(history) > maxHistoryTurns*2 {
		start := len(history) - maxHistoryTurns*2
		// History is appended in pairs, but realign anyway in case the
		// first visible turn is an answer.
		if history[start].Role == domain.RoleAssistant {
			start++
		}
		history = history[start:]
	}

	msgs := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		msgs = append(msgs, llm.Message{Role: string(turn.Role), Content: turn.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: question})
	return system, msgs
}
