package gateway

import (
	"context"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glunkad/caresimplfyservice/internal/agent"
	"github.com/glunkad/caresimplfyservice/internal/llm"
)

func streamMock() *llm.MockClient {
	return &llm.MockClient{
		CompleteFunc: func(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
			return &llm.CompletionResponse{Content: "Simple report."}, nil
		},
		StreamFunc: func(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamEvent, error) {
			ch := make(chan llm.StreamEvent, 3)
			ch <- llm.StreamEvent{Type: "delta", Content: "Your results "}
			ch <- llm.StreamEvent{Type: "delta", Content: "look fine."}
			ch <- llm.StreamEvent{Type: "done", Response: &llm.CompletionResponse{Model: "mock-model"}}
			close(ch)
			return ch, nil
		},
	}
}

func dialStream(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	wsURL := strings.Replace(url, "http://", "ws://", 1) + "/api/v1/chat/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestChatStreamOverWebSocket(t *testing.T) {
	ts, _ := testServer(t, streamMock())

	up := uploadPDF(t, ts, "report.pdf")
	var uploaded agent.UploadResult
	decodeJSON(t, up, &uploaded)

	conn := dialStream(t, ts.URL)
	require.NoError(t, conn.WriteJSON(streamRequest{
		SessionID: uploaded.SessionID,
		Question:  "How do my results look?",
	}))

	var deltas []string
	for {
		var frame streamFrame
		require.NoError(t, conn.ReadJSON(&frame))

		switch frame.Type {
		case "delta":
			deltas = append(deltas, frame.Content)
		case "done":
			assert.Equal(t, []string{"Your results ", "look fine."}, deltas)
			assert.Equal(t, "Your results look fine.", frame.Answer)
			assert.Equal(t, 2, frame.Seq)
			return
		case "error":
			t.Fatalf("unexpected error frame: %s", frame.Message)
		}
	}
}

func TestChatStreamUnknownSession(t *testing.T) {
	ts, _ := testServer(t, streamMock())
	conn := dialStream(t, ts.URL)

	require.NoError(t, conn.WriteJSON(streamRequest{
		SessionID: "3b3c1f9e-0000-0000-0000-000000000000",
		Question:  "q",
	}))

	var frame streamFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "not_found", frame.Kind)
}

func TestChatStreamMalformedFrame(t *testing.T) {
	ts, _ := testServer(t, streamMock())
	conn := dialStream(t, ts.URL)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{broken")))

	var frame streamFrame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "error", frame.Type)
	assert.Equal(t, "validation", frame.Kind)
}

func TestChatStreamMultipleTurns(t *testing.T) {
	ts, _ := testServer(t, streamMock())

	up := uploadPDF(t, ts, "report.pdf")
	var uploaded agent.UploadResult
	decodeJSON(t, up, &uploaded)

	conn := dialStream(t, ts.URL)

	for turn := 1; turn <= 2; turn++ {
		require.NoError(t, conn.WriteJSON(streamRequest{
			SessionID: uploaded.SessionID,
			Question:  "again?",
		}))
		for {
			var frame streamFrame
			require.NoError(t, conn.ReadJSON(&frame))
			if frame.Type == "done" {
				assert.Equal(t, turn*2, frame.Seq)
				break
			}
			require.NotEqual(t, "error", frame.Type)
		}
	}
}
