package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcal/internal/model"
)

func reply(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
		}},
	})
	return string(b)
}

func TestChatSendsInstructionAndReturnsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.SystemInstruction)
		assert.Contains(t, req.SystemInstruction.Parts[0].Text, "2026-10-15")
		assert.Equal(t, "추석 여행지 추천해줘", req.Contents[0].Parts[0].Text)

		_, _ = w.Write([]byte(reply("  경주를 추천해요  ")))
	}))
	defer srv.Close()

	g := NewGemini("k", "", srv.Client(), WithBaseURL(srv.URL))
	assert.Equal(t, "경주를 추천해요", g.Chat(context.Background(), "추석 여행지 추천해줘", "2026-10-15"))
}

func TestMissingKeyMessages(t *testing.T) {
	g := NewGemini(" ", "", nil)
	assert.Equal(t, MsgChatNoKey, g.Chat(context.Background(), "hi", "2026-01-01"))
	assert.Equal(t, MsgSummaryNoKey, g.Summarize(context.Background(), nil, "2026년 1월"))
}

func TestFailuresBecomeApologies(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := NewGemini("k", "", srv.Client(), WithBaseURL(srv.URL), WithRetryDelay(time.Millisecond))
	assert.Equal(t, MsgChatFailed, g.Chat(context.Background(), "hi", "2026-01-01"))
	assert.Equal(t, int32(3), calls.Load())

	assert.Equal(t, MsgSummaryFailed, g.Summarize(context.Background(), nil, "2026년 1월"))
}

func TestEmptyAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	g := NewGemini("k", "", srv.Client(), WithBaseURL(srv.URL))
	assert.Equal(t, MsgChatEmpty, g.Chat(context.Background(), "hi", "x"))
	assert.Equal(t, MsgSummaryEmpty, g.Summarize(context.Background(), nil, "x"))
}

func TestSummaryPrompt(t *testing.T) {
	done := model.Personal{
		Meta:      model.Meta{Title: "여행"},
		Start:     model.MustParseDate("2026-10-01"),
		End:       model.MustParseDate("2026-10-03"),
		Completed: true,
	}
	call := model.Contact{Meta: model.Meta{Title: "병원 전화"}, Date: model.MustParseDate("2026-10-07")}

	p := SummaryPrompt([]model.Event{done, call}, "2026년 10월")
	assert.Contains(t, p, "2026년 10월 일정 목록")
	assert.Contains(t, p, "- 2026-10-01 ~ 2026-10-03: 여행 (완료)")
	assert.Contains(t, p, "- 2026-10-07: 병원 전화 (진행중)")

	assert.Contains(t, SummaryPrompt(nil, "2026년 11월"), noEventsPlaceholder)
}
