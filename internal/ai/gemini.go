// Package ai produces the assistant chat answers and monthly briefings.
// Every failure is turned into a user-facing apology; callers never see an
// error.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	appLog "smartcal/internal/log"
	"smartcal/internal/model"
)

const (
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel  = "gemini-2.5-flash"
)

// Messages shown instead of a model answer.
const (
	MsgChatNoKey     = "API Key가 설정되지 않았습니다. 환경 변수를 확인해주세요."
	MsgChatEmpty     = "죄송합니다. 답변을 생성할 수 없습니다."
	MsgChatFailed    = "요청을 처리하는 중에 오류가 발생했습니다."
	MsgSummaryNoKey  = "API 키가 필요합니다."
	MsgSummaryEmpty  = "브리핑을 생성할 수 없습니다."
	MsgSummaryFailed = "AI 브리핑 생성 중 오류가 발생했습니다."
)

const noEventsPlaceholder = "등록된 일정이 없습니다."

// Provider is the assistant used by the HTTP API.
type Provider interface {
	Summarize(ctx context.Context, events []model.Event, periodLabel string) string
	Chat(ctx context.Context, prompt, contextLabel string) string
}

// Gemini talks to the generateContent REST endpoint.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	httpc   *http.Client

	throttleMu  sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
	retryDelay  time.Duration
}

type Option func(*Gemini)

func WithBaseURL(u string) Option { return func(g *Gemini) { g.baseURL = strings.TrimRight(u, "/") } }

func WithRetryDelay(d time.Duration) Option { return func(g *Gemini) { g.retryDelay = d } }

func NewGemini(apiKey, model string, httpc *http.Client, opts ...Option) *Gemini {
	if httpc == nil {
		httpc = &http.Client{Timeout: 60 * time.Second}
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	g := &Gemini{
		apiKey:      strings.TrimSpace(apiKey),
		model:       model,
		baseURL:     geminiBaseURL,
		httpc:       httpc,
		minInterval: 100 * time.Millisecond,
		retryDelay:  500 * time.Millisecond,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gemini) Configured() bool {
	return g.apiKey != ""
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// text joins the parts of the first candidate.
func (r geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String())
}

// errEmpty is a successful call that produced no text.
var errEmpty = errors.New("gemini: empty response")

func chatInstruction(contextLabel string) string {
	return fmt.Sprintf(`당신은 달력 앱의 친절하고 유능한 AI 비서입니다.
사용자의 일정 계획, 휴일 여행 추천, 기념일 축하 메시지 작성 등을 도와줍니다.
현재 사용자가 보고 있는 달력의 기준 날짜는 %s입니다.
한국의 문화와 휴일 맥락을 잘 이해하고 답변해주세요.
답변은 마크다운 형식을 사용하여 깔끔하게 정리해주세요.`, contextLabel)
}

// Chat answers a free-form prompt about the calendar.
func (g *Gemini) Chat(ctx context.Context, prompt, contextLabel string) string {
	if !g.Configured() {
		return MsgChatNoKey
	}
	text, err := g.generate(ctx, geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: chatInstruction(contextLabel)}}},
		Contents:          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig:  &geminiGenerationConfig{Temperature: 0.7},
	})
	switch {
	case errors.Is(err, errEmpty):
		return MsgChatEmpty
	case err != nil:
		appLog.Error("gemini chat failed", err, "model", g.model)
		return MsgChatFailed
	}
	return text
}

// SummaryPrompt lists events the way the briefing prompt expects them.
func SummaryPrompt(events []model.Event, periodLabel string) string {
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		start, end := ev.Span()
		span := start.String()
		if !start.Equal(end) {
			span += " ~ " + end.String()
		}
		status := "진행중"
		if p, ok := ev.(model.Personal); ok && p.Completed {
			status = "완료"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s (%s)", span, ev.Info().Title, status))
	}
	list := strings.Join(lines, "\n")
	if list == "" {
		list = noEventsPlaceholder
	}
	return fmt.Sprintf(`다음은 사용자의 %s 일정 목록입니다:
%s

이 일정들을 분석하여 다음 내용을 포함한 짧고 친절한 브리핑을 작성해주세요:
1. 이번 달의 전체적인 바쁨 정도 (상/중/하)
2. 가장 일정이 몰려있는 시기나 중요한 특징
3. 생산성을 높이기 위한 조언이나 격려의 말

답변은 한국어로, 친근한 말투(~해요)를 사용해 마크다운 형식으로 작성해주세요.`, periodLabel, list)
}

// Summarize writes a short briefing of the given events.
func (g *Gemini) Summarize(ctx context.Context, events []model.Event, periodLabel string) string {
	if !g.Configured() {
		return MsgSummaryNoKey
	}
	text, err := g.generate(ctx, geminiRequest{
		Contents:         []geminiContent{{Role: "user", Parts: []geminiPart{{Text: SummaryPrompt(events, periodLabel)}}}},
		GenerationConfig: &geminiGenerationConfig{Temperature: 0.6},
	})
	switch {
	case errors.Is(err, errEmpty):
		return MsgSummaryEmpty
	case err != nil:
		appLog.Error("gemini summary failed", err, "model", g.model)
		return MsgSummaryFailed
	}
	return text
}

func (g *Gemini) throttle() {
	g.throttleMu.Lock()
	defer g.throttleMu.Unlock()
	if since := time.Since(g.lastRequest); since < g.minInterval {
		time.Sleep(g.minInterval - since)
	}
	g.lastRequest = time.Now()
}

func (g *Gemini) generate(ctx context.Context, body geminiRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)

	g.throttle()

	return retry.DoWithData(
		func() (string, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
			if err != nil {
				return "", retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("x-goog-api-key", g.apiKey)

			resp, err := g.httpc.Do(req)
			if err != nil {
				return "", err
			}
			defer resp.Body.Close()

			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return "", fmt.Errorf("gemini request failed: status %d", resp.StatusCode)
			}
			if resp.StatusCode >= 400 {
				raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
				return "", retry.Unrecoverable(fmt.Errorf("gemini API error %d: %s", resp.StatusCode, raw))
			}

			var gr geminiResponse
			if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
				return "", retry.Unrecoverable(fmt.Errorf("decode gemini response: %w", err))
			}
			if gr.Error != nil {
				return "", retry.Unrecoverable(fmt.Errorf("gemini API error: %s", gr.Error.Message))
			}
			text := gr.text()
			if text == "" {
				return "", retry.Unrecoverable(errEmpty)
			}
			return text, nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(g.retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			appLog.Error("gemini request failed, retrying", err, "attempt", n+1)
		}),
	)
}
