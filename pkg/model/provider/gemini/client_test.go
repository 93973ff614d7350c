package gemini

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docker/rulelawyer/pkg/chat"
	"github.com/docker/rulelawyer/pkg/model/provider/base"
)

func TestCreateChatCompletion(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "answer: you can"}]}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 5, "candidatesTokenCount": 3}
		}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(t.Context(), &base.ModelConfig{Model: "gemini-test", APIKey: "g-key", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	reply, err := client.CreateChatCompletion(t.Context(), []chat.Message{
		chat.SystemMessage("be an expert"),
		chat.UserMessage("can I grapple?"),
	})
	require.NoError(t, err)
	assert.Equal(t, "answer: you can", reply)

	assert.Contains(t, body, "systemInstruction")
	contents, ok := body["contents"].([]any)
	require.True(t, ok)
	assert.Len(t, contents, 1)
}

func TestConvertMessages(t *testing.T) {
	t.Parallel()

	system, contents := convertMessages([]chat.Message{
		chat.UserMessage("q"),
		chat.AssistantMessage("a"),
	})

	assert.Nil(t, system)
	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
}
