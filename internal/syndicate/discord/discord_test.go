package discord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/blacktop/syndicate/internal/syndicate"
)

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing bot token",
			cfg:     Config{ChannelID: "123"},
			wantErr: "missing bot token",
		},
		{
			name:    "missing channel ID",
			cfg:     Config{BotToken: "tok"},
			wantErr: "missing channel ID",
		},
		{
			name: "complete",
			cfg:  Config{BotToken: "tok", ChannelID: "123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("New() = %v, want nil", err)
				}
				return
			}
			var verr syndicate.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("New() error is %T, want ValidationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("New() = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/123456789/messages" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bot tok" {
			t.Errorf("Authorization = %q, want %q", got, "Bot tok")
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type = %q, want %q", got, "application/json")
		}

		var body struct {
			Content string `json:"content"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Content != "Hello Discord!" {
			t.Errorf("content = %q, want %q", body.Content, "Hello Discord!")
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"987654321","channel_id":"123456789","content":"Hello Discord!"}`)
	}))
	defer srv.Close()

	client, err := New(Config{BotToken: "tok", ChannelID: "123456789", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	resp, err := client.Post(context.Background(), "Hello Discord!", nil)
	if err != nil {
		t.Fatalf("Post() = %v", err)
	}

	want := syndicate.Response{"id": "987654321", "channel_id": "123456789", "content": "Hello Discord!"}
	for key, value := range want {
		if resp[key] != value {
			t.Errorf("resp[%q] = %v, want %v", key, resp[key], value)
		}
	}
}

func TestPostPlatformError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"message":"No good","code":123}`)
	}))
	defer srv.Close()

	client, err := New(Config{BotToken: "tok", ChannelID: "123", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	_, err = client.Post(context.Background(), "hi", nil)
	if err == nil {
		t.Fatal("Post() = nil, want error")
	}

	want := "401 Failed to post message: Unauthorized\nNo good (code: 123)"
	if err.Error() != want {
		t.Errorf("Post() error = %q, want %q", err, want)
	}

	var perr *syndicate.PlatformError
	if !errors.As(err, &perr) {
		t.Fatalf("Post() error is %T, want *PlatformError", err)
	}
	if perr.StatusCode != 401 || perr.Code != 123 {
		t.Errorf("PlatformError = %+v, want status 401 code 123", perr)
	}
}

func TestPostPlatformErrorEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, err := New(Config{BotToken: "tok", ChannelID: "123", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	_, err = client.Post(context.Background(), "hi", nil)
	if err == nil {
		t.Fatal("Post() = nil, want error")
	}

	want := "401 Failed to post message: Unauthorized"
	if err.Error() != want {
		t.Errorf("Post() error = %q, want %q", err, want)
	}
}

func TestPostMissingMessage(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client, err := New(Config{BotToken: "tok", ChannelID: "123", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	for _, message := range []string{"", "   "} {
		_, err := client.Post(context.Background(), message, nil)
		var verr syndicate.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Post(%q) error is %T, want ValidationError", message, err)
		}
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times, want 0", hits.Load())
	}
}

func TestPostBadOptions(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client, err := New(Config{BotToken: "tok", ChannelID: "123", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	_, err = client.Post(context.Background(), "hi", &syndicate.Options{
		Images: []syndicate.Image{{Alt: "no data"}},
	})
	var verr syndicate.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Post() error is %T, want ValidationError", err)
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times, want 0", hits.Load())
	}
}

func TestPostCanceled(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client, err := New(Config{BotToken: "tok", ChannelID: "123", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Post(ctx, "hi", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Post() = %v, want context.Canceled", err)
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times, want 0", hits.Load())
	}
}

func TestPostWithImages(t *testing.T) {
	imageData := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}

		var payload struct {
			Content     string `json:"content"`
			Attachments []struct {
				ID          int    `json:"id"`
				Filename    string `json:"filename"`
				Description string `json:"description"`
			} `json:"attachments"`
		}
		if err := json.Unmarshal([]byte(r.FormValue("payload_json")), &payload); err != nil {
			t.Fatalf("decode payload_json: %v", err)
		}
		if payload.Content != "look at this" {
			t.Errorf("content = %q, want %q", payload.Content, "look at this")
		}
		if len(payload.Attachments) != 1 || payload.Attachments[0].Description != "a png" {
			t.Errorf("attachments = %+v, want one with alt text", payload.Attachments)
		}

		files := r.MultipartForm.File["files[0]"]
		if len(files) != 1 {
			t.Fatalf("files[0] parts = %d, want 1", len(files))
		}
		file, err := files[0].Open()
		if err != nil {
			t.Fatalf("open file part: %v", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			t.Fatalf("read file part: %v", err)
		}
		if string(data) != string(imageData) {
			t.Errorf("file bytes = %v, want %v", data, imageData)
		}

		io.WriteString(w, `{"id":"55","channel_id":"123"}`)
	}))
	defer srv.Close()

	client, err := New(Config{BotToken: "tok", ChannelID: "123", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	resp, err := client.Post(context.Background(), "look at this", &syndicate.Options{
		Images: []syndicate.Image{{Data: imageData, Alt: "a png"}},
	})
	if err != nil {
		t.Fatalf("Post() = %v", err)
	}
	if resp["id"] != "55" {
		t.Errorf("resp id = %v, want 55", resp["id"])
	}
}

func TestPostURL(t *testing.T) {
	client, err := New(Config{BotToken: "tok", ChannelID: "123"})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	tests := []struct {
		name    string
		resp    syndicate.Response
		want    string
		wantErr bool
	}{
		{
			name: "channel and message IDs",
			resp: syndicate.Response{"channel_id": "123456789", "id": "987654321"},
			want: "https://discord.com/channels/@me/123456789/987654321",
		},
		{
			name:    "missing message ID",
			resp:    syndicate.Response{"channel_id": "123456789"},
			wantErr: true,
		},
		{
			name:    "empty response",
			resp:    syndicate.Response{},
			wantErr: true,
		},
		{
			name:    "nil response",
			resp:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.PostURL(tt.resp)
			if tt.wantErr {
				if !errors.Is(err, syndicate.ErrNoPostID) {
					t.Fatalf("PostURL() = %v, want ErrNoPostID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PostURL() = %v", err)
			}
			if got != tt.want {
				t.Errorf("PostURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageLength(t *testing.T) {
	client, err := New(Config{BotToken: "tok", ChannelID: "123"})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	if got := client.MessageLength("Hello \U0001F604"); got != 7 {
		t.Errorf("MessageLength = %d, want 7 (emoji counts once)", got)
	}
	if got := client.MaxMessageLength(); got != 2000 {
		t.Errorf("MaxMessageLength = %d, want 2000", got)
	}
}
