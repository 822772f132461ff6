package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glunkad/caresimplfyservice/internal/domain"
	"github.com/glunkad/caresimplfyservice/internal/llm"
)

func sessionWithExchanges(n int) *domain.Session {
	sess := &domain.Session{ID: "s1", SeedDocument: "Your results look normal."}
	seq := 0
	for i := 1; i <= n; i++ {
		seq++
		sess.Turns = append(sess.Turns, domain.Turn{Role: domain.RoleUser, Content: "q" + string(rune('0'+i)), Seq: seq})
		seq++
		sess.Turns = append(sess.Turns, domain.Turn{Role: domain.RoleAssistant, Content: "a" + string(rune('0'+i)), Seq: seq})
	}
	return sess
}

func TestBuildContextFreshSession(t *testing.T) {
	sess := sessionWithExchanges(0)
	system, msgs := BuildContext(sess, "what does this mean?", 10)

	assert.Contains(t, system, "Natasha")
	assert.Contains(t, system, "Your results look normal.")
	require.Len(t, msgs, 1)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, "what does this mean?", msgs[0].Content)
}

func TestBuildContextFullHistory(t *testing.T) {
	sess := sessionWithExchanges(3)
	_, msgs := BuildContext(sess, "next", 10)

	require.Len(t, msgs, 7)
	assert.Equal(t, "q1", msgs[0].Content)
	assert.Equal(t, "a3", msgs[5].Content)
	assert.Equal(t, "next", msgs[6].Content)
}

func TestBuildContextWindow(t *testing.T) {
	sess := sessionWithExchanges(3)
	_, msgs := BuildContext(sess, "next", 2)

	// Last two exchanges plus the new question.
	require.Len(t, msgs, 5)
	assert.Equal(t, "q2", msgs[0].Content)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, "a3", msgs[3].Content)
	assert.Equal(t, "next", msgs[4].Content)
}

func TestBuildContextWindowNeverStartsWithAnswer(t *testing.T) {
	// Odd history (a lone trailing question) still cuts at an exchange
	// boundary.
	sess := sessionWithExchanges(2)
	sess.Turns = append(sess.Turns, domain.Turn{Role: domain.RoleUser, Content: "q3", Seq: 5})

	_, msgs := BuildContext(sess, "next", 2)
	require.NotEmpty(t, msgs)
	assert.Equal(t, llm.RoleUser, msgs[0].Role)
	assert.Equal(t, "next", msgs[len(msgs)-1].Content)
}

func TestBuildContextUnlimited(t *testing.T) {
	sess := sessionWithExchanges(5)
	_, msgs := BuildContext(sess, "next", 0)
	assert.Len(t, msgs, 11)
}
