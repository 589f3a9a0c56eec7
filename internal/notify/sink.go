package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	appLog "smartcal/internal/log"
)

// Permission mirrors the platform notification permission states.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

func ParsePermission(s string) (Permission, bool) {
	switch p := Permission(strings.ToLower(strings.TrimSpace(s))); p {
	case PermissionGranted, PermissionDenied, PermissionDefault:
		return p, true
	}
	return "", false
}

// Sink delivers notifications to the user.
type Sink interface {
	PermissionStatus(ctx context.Context) Permission
	RequestPermission(ctx context.Context) (Permission, error)
	Dispatch(ctx context.Context, title, body string) error
}

// LogSink writes notifications to the application log. It starts out
// granted and is what the server uses when no push service is configured.
type LogSink struct {
	mu   sync.Mutex
	perm Permission
	sent []Sent
}

// Sent is a notification a LogSink accepted.
type Sent struct {
	Title string
	Body  string
	At    time.Time
}

func NewLogSink() *LogSink {
	return &LogSink{perm: PermissionGranted}
}

func (s *LogSink) PermissionStatus(context.Context) Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perm
}

func (s *LogSink) RequestPermission(context.Context) (Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.perm == PermissionDefault {
		s.perm = PermissionGranted
	}
	return s.perm, nil
}

// SetPermission overrides the permission state, e.g. when a user turns
// notifications off at the device level.
func (s *LogSink) SetPermission(p Permission) {
	s.mu.Lock()
	s.perm = p
	s.mu.Unlock()
}

func (s *LogSink) Dispatch(_ context.Context, title, body string) error {
	s.mu.Lock()
	s.sent = append(s.sent, Sent{Title: title, Body: body, At: time.Now()})
	s.mu.Unlock()
	appLog.Info("notification", "title", title, "body", strings.ReplaceAll(body, "\n", " | "))
	return nil
}

// Sent returns a copy of everything dispatched so far.
func (s *LogSink) Sent() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sent(nil), s.sent...)
}

const pushoverBaseURL = "https://api.pushover.net/1"

// PushoverSink sends notifications through the Pushover message API.
//
// Permission is "default" until credentials are configured, "granted" while
// they are, and "denied" once Pushover has rejected them.
type PushoverSink struct {
	token   string
	user    string
	baseURL string
	httpc   *http.Client

	attempts uint
	delay    time.Duration

	mu       sync.Mutex
	rejected bool
}

type PushoverOption func(*PushoverSink)

// WithPushoverBaseURL points the sink at another endpoint (tests).
func WithPushoverBaseURL(u string) PushoverOption {
	return func(s *PushoverSink) { s.baseURL = strings.TrimRight(u, "/") }
}

func WithPushoverRetry(attempts uint, delay time.Duration) PushoverOption {
	return func(s *PushoverSink) {
		s.attempts = attempts
		s.delay = delay
	}
}

func NewPushoverSink(token, user string, httpc *http.Client, opts ...PushoverOption) *PushoverSink {
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	s := &PushoverSink{
		token:    strings.TrimSpace(token),
		user:     strings.TrimSpace(user),
		baseURL:  pushoverBaseURL,
		httpc:    httpc,
		attempts: 3,
		delay:    500 * time.Millisecond,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *PushoverSink) configured() bool {
	return s.token != "" && s.user != ""
}

func (s *PushoverSink) PermissionStatus(context.Context) Permission {
	if !s.configured() {
		return PermissionDefault
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejected {
		return PermissionDenied
	}
	return PermissionGranted
}

// RequestPermission validates the configured credentials with Pushover.
func (s *PushoverSink) RequestPermission(ctx context.Context) (Permission, error) {
	if !s.configured() {
		return PermissionDefault, nil
	}
	err := s.post(ctx, "/users/validate.json", url.Values{})
	var rej *pushoverRejection
	switch {
	case err == nil:
		s.setRejected(false)
		return PermissionGranted, nil
	case errors.As(err, &rej):
		s.setRejected(true)
		return PermissionDenied, nil
	}
	return s.PermissionStatus(ctx), err
}

func (s *PushoverSink) Dispatch(ctx context.Context, title, body string) error {
	if !s.configured() {
		return errors.New("pushover: token and user are not configured")
	}
	err := s.post(ctx, "/messages.json", url.Values{
		"title":   {title},
		"message": {body},
	})
	var rej *pushoverRejection
	if errors.As(err, &rej) {
		s.setRejected(true)
	}
	return err
}

func (s *PushoverSink) setRejected(v bool) {
	s.mu.Lock()
	s.rejected = v
	s.mu.Unlock()
}

// pushoverRejection is a 4xx answer; retrying will not help.
type pushoverRejection struct {
	status int
	errors []string
}

func (e *pushoverRejection) Error() string {
	return fmt.Sprintf("pushover rejected request (%d): %s", e.status, strings.Join(e.errors, "; "))
}

type pushoverResponse struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Errors  []string `json:"errors"`
}

func (s *PushoverSink) post(ctx context.Context, path string, form url.Values) error {
	form.Set("token", s.token)
	form.Set("user", s.user)
	encoded := form.Encode()

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(encoded))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			resp, err := s.httpc.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			var pr pushoverResponse
			_ = json.Unmarshal(raw, &pr)

			switch {
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				return fmt.Errorf("pushover: status %d", resp.StatusCode)
			case resp.StatusCode >= 400 || pr.Status != 1:
				return retry.Unrecoverable(&pushoverRejection{status: resp.StatusCode, errors: pr.Errors})
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			appLog.Error("pushover request failed, retrying", err, "attempt", n+1, "path", path)
		}),
	)
}
