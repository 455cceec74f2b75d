package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/grading"
)

var req = grading.EssayRequest{
	Answer:    "Water boils at 100 degrees at sea level.",
	AnswerKey: "At standard pressure water boils at 100 C.",
	MinScore:  0,
	MaxScore:  5,
}

func chatServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}

		var body chatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.Model != "grader-1" || len(body.Messages) != 2 {
			t.Errorf("unexpected request %+v", body)
		}
		if !strings.Contains(body.Messages[1].Content, req.AnswerKey) {
			t.Errorf("user prompt missing answer key: %q", body.Messages[1].Content)
		}

		w.WriteHeader(status)
		fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, content)
	}))
}

func TestChatProviderScore(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
		want    float64
		wantErr error
	}{
		{name: "json reply", status: 200, content: `{"score": 4}`, want: 4},
		{name: "fenced reply", status: 200, content: "```json\n{\"score\": 3.5}\n```", want: 3.5},
		{name: "bare number", status: 200, content: " 2 ", want: 2},
		{name: "prose reply", status: 200, content: "I would give this a four.", wantErr: grading.ErrInvalidResponse},
		{name: "missing score", status: 200, content: `{"grade": 4}`, wantErr: grading.ErrInvalidResponse},
		{name: "server error", status: 500, content: "", wantErr: grading.ErrTransport},
		{name: "rate limited", status: 429, content: "", wantErr: grading.ErrTransport},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := chatServer(t, tc.status, tc.content)
			defer srv.Close()

			p := NewChatProvider("primary", srv.URL+"/", "secret", "grader-1", srv.Client())
			got, err := p.Score(context.Background(), req)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Score() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Score() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("Score() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestChatProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewChatProvider("primary", url, "secret", "grader-1", nil)
	if _, err := p.Score(context.Background(), req); !errors.Is(err, grading.ErrTransport) {
		t.Errorf("Score() error = %v, want ErrTransport", err)
	}
}

func TestChatProviderHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	p := NewChatProvider("primary", srv.URL, "", "grader-1", srv.Client())
	if _, err := p.Score(ctx, req); !errors.Is(err, grading.ErrTransport) {
		t.Errorf("Score() error = %v, want ErrTransport", err)
	}
}

func TestChatProviderEnvelopeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"message":"model overloaded"}}`)
	}))
	defer srv.Close()

	p := NewChatProvider("primary", srv.URL, "", "grader-1", srv.Client())
	_, err := p.Score(context.Background(), req)
	if !errors.Is(err, grading.ErrInvalidResponse) || !strings.Contains(err.Error(), "model overloaded") {
		t.Errorf("Score() error = %v, want invalid response carrying provider message", err)
	}
}

func TestFromConfigSkipsDisabled(t *testing.T) {
	cfg := &config.Config{
		PrimaryProvider:   config.ProviderConfig{Name: "openai", URL: "https://api.example.com/v1", Model: "m"},
		SecondaryProvider: config.ProviderConfig{Name: "backup"},
	}

	got := FromConfig(cfg)
	if len(got) != 1 || got[0].Name() != "openai" {
		t.Errorf("FromConfig() = %v, want only the primary provider", got)
	}
}
