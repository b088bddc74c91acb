package gemini

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/spigell/interviewer/internal/utils"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type scriptedReply struct {
	text string
	err  error
}

// scriptedChats answers each created chat with the next scripted reply and records what was sent.
type scriptedChats struct {
	replies []scriptedReply
	configs []*genai.GenerateContentConfig
	sent    [][]genai.Part
}

type scriptedChat struct {
	owner *scriptedChats
	reply scriptedReply
}

func (s *scriptedChats) Create(_ context.Context, _ string, config *genai.GenerateContentConfig, _ []*genai.Content) (chatSession, error) {
	if len(s.replies) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	s.configs = append(s.configs, config)
	return &scriptedChat{owner: s, reply: reply}, nil
}

func (c *scriptedChat) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	c.owner.sent = append(c.owner.sent, parts)
	if c.reply.err != nil {
		return nil, c.reply.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: c.reply.text}}},
		}},
	}, nil
}

func newScriptedGenerator(t *testing.T, maxRetries int, replies ...scriptedReply) (*Generator, *scriptedChats, *[]time.Duration) {
	t.Helper()

	var waits []time.Duration
	original := wait
	wait = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	t.Cleanup(func() { wait = original })

	chats := &scriptedChats{replies: replies}
	return &Generator{chats: chats, model: defaultModel, maxRetries: maxRetries, logger: zap.NewNop()}, chats, &waits
}

func serverError() error {
	return genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}
}

func TestGenerateContentRetriesServerErrors(t *testing.T) {
	g, chats, waits := newScriptedGenerator(t, 3,
		scriptedReply{err: serverError()},
		scriptedReply{err: serverError()},
		scriptedReply{text: "  What is a goroutine?  "},
	)

	out, err := g.GenerateContent(context.Background(), "interviewer", "ask something")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "What is a goroutine?" {
		t.Fatalf("unexpected output %q", out)
	}

	if len(*waits) != 2 || (*waits)[0] != time.Second || (*waits)[1] != 2*time.Second {
		t.Fatalf("unexpected backoff %v", *waits)
	}
	for _, cfg := range chats.configs {
		if cfg.SystemInstruction == nil || cfg.SystemInstruction.Parts[0].Text != "interviewer" {
			t.Fatalf("system instruction not set: %+v", cfg)
		}
		if cfg.ResponseMIMEType != "" {
			t.Fatalf("text requests must not force a response type, got %q", cfg.ResponseMIMEType)
		}
	}
	if last := chats.sent[len(chats.sent)-1]; len(last) != 1 || last[0].Text != "ask something" {
		t.Fatalf("unexpected parts %+v", last)
	}
}

func TestGenerateContentGivesUpAfterMaxRetries(t *testing.T) {
	g, chats, _ := newScriptedGenerator(t, 2,
		scriptedReply{err: serverError()},
		scriptedReply{err: serverError()},
	)

	if _, err := g.GenerateContent(context.Background(), "", "ask"); err == nil {
		t.Fatal("expected an error once retries are exhausted")
	}
	if len(chats.configs) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(chats.configs))
	}
}

func TestGenerateContentWithMedia(t *testing.T) {
	g, chats, _ := newScriptedGenerator(t, 1, scriptedReply{text: `{"score": 7}`})

	audio := []byte("RIFF0000WAVEfmt ")
	out, err := g.GenerateContentWithMedia(context.Background(), "assessor", "rate the delivery", audio, "audio/wave")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != `{"score": 7}` {
		t.Fatalf("unexpected output %q", out)
	}

	if chats.configs[0].ResponseMIMEType != "application/json" {
		t.Fatalf("media requests must ask for json, got %q", chats.configs[0].ResponseMIMEType)
	}
	parts := chats.sent[0]
	if len(parts) != 2 || parts[0].InlineData == nil {
		t.Fatalf("expected inline media followed by the prompt, got %+v", parts)
	}
	if parts[0].InlineData.MIMEType != "audio/wave" || string(parts[0].InlineData.Data) != string(audio) {
		t.Fatalf("unexpected inline data %+v", parts[0].InlineData)
	}
	if parts[1].Text != "rate the delivery" {
		t.Fatalf("unexpected prompt part %q", parts[1].Text)
	}
}

func TestGeneratorRejectsEmptyInput(t *testing.T) {
	g, chats, _ := newScriptedGenerator(t, 1)

	if _, err := g.GenerateContent(context.Background(), "sys", "   "); err == nil {
		t.Fatal("expected error for an empty message")
	}
	if _, err := g.GenerateContentWithMedia(context.Background(), "sys", "rate", nil, "audio/webm"); err == nil {
		t.Fatal("expected error for empty media")
	}
	if len(chats.configs) != 0 {
		t.Fatalf("no request should be sent, got %d", len(chats.configs))
	}
}

func TestGeneratorEmptyResponse(t *testing.T) {
	g, _, _ := newScriptedGenerator(t, 1, scriptedReply{text: "   "})

	if _, err := g.GenerateContent(context.Background(), "sys", "ask"); err == nil {
		t.Fatal("expected error for a blank model response")
	}
}

func TestGeneratorStopsOnCanceledContext(t *testing.T) {
	g, chats, _ := newScriptedGenerator(t, 3, scriptedReply{text: "unused"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.GenerateContent(ctx, "sys", "ask"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(chats.configs) != 0 {
		t.Fatalf("no request should be sent, got %d", len(chats.configs))
	}
}

func TestGeneratorStopsWaitingWhenContextEnds(t *testing.T) {
	g, chats, _ := newScriptedGenerator(t, 3,
		scriptedReply{err: serverError()},
		scriptedReply{text: "too late"},
	)
	wait = utils.WaitFor

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := g.GenerateContent(ctx, "sys", "ask")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed >= baseRetryDelay {
		t.Fatalf("backoff ignored the deadline, took %s", elapsed)
	}
	if len(chats.configs) != 1 {
		t.Fatalf("expected no retry after the deadline, got %d attempts", len(chats.configs))
	}
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		attempt   int
		wantDelay time.Duration
		wantRetry bool
	}{
		{
			name:      "server error backs off exponentially",
			err:       genai.APIError{Code: http.StatusInternalServerError},
			attempt:   3,
			wantDelay: 4 * time.Second,
			wantRetry: true,
		},
		{
			name:      "wrapped pointer error",
			err:       errors.Join(errors.New("generate content"), &genai.APIError{Code: http.StatusBadGateway}),
			attempt:   1,
			wantDelay: time.Second,
			wantRetry: true,
		},
		{
			name:      "short quota delay is honoured",
			err:       genai.APIError{Code: http.StatusTooManyRequests, Message: "Please retry in 2.5s."},
			attempt:   1,
			wantDelay: 2500 * time.Millisecond,
			wantRetry: true,
		},
		{
			name:    "long quota delay is not worth waiting for",
			err:     genai.APIError{Code: http.StatusTooManyRequests, Message: "quota exhausted, retry after 60 seconds"},
			attempt: 1,
		},
		{
			name:      "quota error without a hint backs off",
			err:       genai.APIError{Code: http.StatusTooManyRequests},
			attempt:   2,
			wantDelay: 2 * time.Second,
			wantRetry: true,
		},
		{
			name:    "bad request is final",
			err:     genai.APIError{Code: http.StatusBadRequest},
			attempt: 1,
		},
		{
			name:    "non api error is final",
			err:     errors.New("dial tcp: connection refused"),
			attempt: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay, retry := retryDelay(tt.err, tt.attempt)
			if retry != tt.wantRetry || delay != tt.wantDelay {
				t.Fatalf("expected (%s, %t), got (%s, %t)", tt.wantDelay, tt.wantRetry, delay, retry)
			}
		})
	}
}
