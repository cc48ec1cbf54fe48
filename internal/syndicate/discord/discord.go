package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/blacktop/syndicate/internal/logutil"
	"github.com/blacktop/syndicate/internal/syndicate"
)

const (
	envBotToken  = "SYNDICATE_DISCORD_BOT_TOKEN"
	envChannelID = "SYNDICATE_DISCORD_CHANNEL_ID"

	providerName   = "discord"
	requestTimeout = 30 * time.Second

	defaultBaseURL = "https://discord.com/api/v10"

	maxMessageLength = 2000
)

// Config contains the settings needed to post to a Discord channel. BaseURL
// is overridable so tests can point the client at a fake server.
type Config struct {
	BotToken  string
	ChannelID string
	BaseURL   string
}

// Client implements the syndicate.Poster interface for Discord.
type Client struct {
	botToken   string
	channelID  string
	baseURL    string
	httpClient *http.Client
}

// New constructs a Discord poster from explicit configuration.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, syndicate.ValidationError{Provider: providerName, Reason: "missing bot token"}
	}
	if strings.TrimSpace(cfg.ChannelID) == "" {
		return nil, syndicate.ValidationError{Provider: providerName, Reason: "missing channel ID"}
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		botToken:   strings.TrimSpace(cfg.BotToken),
		channelID:  strings.TrimSpace(cfg.ChannelID),
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
	}, nil
}

// NewFromEnv constructs a Discord poster, letting environment variables
// override the supplied base configuration.
func NewFromEnv(base Config) (*Client, error) {
	cfg, err := loadConfig(base)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// Name identifies the provider.
func (c *Client) Name() string { return providerName }

// MaxMessageLength returns Discord's message length ceiling.
func (c *Client) MaxMessageLength() int { return maxMessageLength }

// MessageLength counts Unicode codepoints, so an emoji outside the BMP
// counts as one.
func (c *Client) MessageLength(message string) int {
	return utf8.RuneCountInString(message)
}

// Post creates a new message in the configured channel, attaching any images
// in a single request.
func (c *Client) Post(ctx context.Context, message string, opts *syndicate.Options) (syndicate.Response, error) {
	if strings.TrimSpace(message) == "" {
		return nil, syndicate.ValidationError{Provider: providerName, Reason: "missing message to post"}
	}
	if err := syndicate.ValidateOptions(opts); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/channels/%s/messages", c.baseURL, c.channelID)

	var (
		body        io.Reader
		contentType string
		err         error
	)
	if opts != nil && len(opts.Images) > 0 {
		body, contentType, err = multipartBody(message, opts.Images)
	} else {
		body, contentType, err = jsonBody(message)
	}
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.botToken)
	req.Header.Set("Content-Type", contentType)

	logutil.Debugf("posting to discord: channel=%s images=%d", c.channelID, imageCount(opts))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp)
	}

	var result syndicate.Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

// PostURL builds a message link from the channel and message IDs in the
// response.
func (c *Client) PostURL(resp syndicate.Response) (string, error) {
	if resp == nil {
		return "", syndicate.ErrNoPostID
	}
	channelID, _ := resp["channel_id"].(string)
	messageID, _ := resp["id"].(string)
	if channelID == "" || messageID == "" {
		return "", syndicate.ErrNoPostID
	}
	return fmt.Sprintf("https://discord.com/channels/@me/%s/%s", channelID, messageID), nil
}

func jsonBody(message string) (io.Reader, string, error) {
	payload, err := json.Marshal(map[string]string{"content": message})
	if err != nil {
		return nil, "", fmt.Errorf("encode payload: %w", err)
	}
	return bytes.NewReader(payload), "application/json", nil
}

// multipartBody builds the payload_json + files[i] form Discord expects for
// messages with attachments.
func multipartBody(message string, images []syndicate.Image) (io.Reader, string, error) {
	type attachment struct {
		ID          int    `json:"id"`
		Filename    string `json:"filename"`
		Description string `json:"description,omitempty"`
	}

	attachments := make([]attachment, len(images))
	for i, img := range images {
		attachments[i] = attachment{
			ID:          i,
			Filename:    imageFilename(i, img.Data),
			Description: img.Alt,
		}
	}

	payload, err := json.Marshal(map[string]any{
		"content":     message,
		"attachments": attachments,
	})
	if err != nil {
		return nil, "", fmt.Errorf("encode payload: %w", err)
	}

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	if err := writer.WriteField("payload_json", string(payload)); err != nil {
		return nil, "", fmt.Errorf("write payload: %w", err)
	}
	for i, img := range images {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files[%d]"; filename=%q`, i, attachments[i].Filename))
		header.Set("Content-Type", http.DetectContentType(img.Data))
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("write image %d: %w", i, err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", fmt.Errorf("write image %d: %w", i, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize form: %w", err)
	}

	return buf, writer.FormDataContentType(), nil
}

func imageFilename(index int, data []byte) string {
	ext := ".bin"
	switch detected := http.DetectContentType(data); {
	case strings.Contains(detected, "jpeg"):
		ext = ".jpg"
	case strings.Contains(detected, "png"):
		ext = ".png"
	case strings.Contains(detected, "gif"):
		ext = ".gif"
	case strings.Contains(detected, "webp"):
		ext = ".webp"
	}
	return fmt.Sprintf("image%d%s", index, ext)
}

func imageCount(opts *syndicate.Options) int {
	if opts == nil {
		return 0
	}
	return len(opts.Images)
}

// apiError turns a non-2xx response into a PlatformError carrying Discord's
// own message and numeric code.
func apiError(resp *http.Response) error {
	var detail struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	}
	// An empty or undecodable body leaves the error at status text only.
	decoded := json.NewDecoder(resp.Body).Decode(&detail) == nil

	return &syndicate.PlatformError{
		Provider:   providerName,
		StatusCode: resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Operation:  "Failed to post message",
		Message:    detail.Message,
		Code:       detail.Code,
		HasCode:    decoded,
	}
}

// loadConfig merges environment-defined values over the supplied defaults.
func loadConfig(base Config) (Config, error) {
	cfg := Config{
		BotToken:  strings.TrimSpace(os.Getenv(envBotToken)),
		ChannelID: strings.TrimSpace(os.Getenv(envChannelID)),
		BaseURL:   base.BaseURL,
	}

	if cfg.BotToken == "" {
		cfg.BotToken = strings.TrimSpace(base.BotToken)
	}
	if cfg.ChannelID == "" {
		cfg.ChannelID = strings.TrimSpace(base.ChannelID)
	}

	var missing []string
	if cfg.BotToken == "" {
		missing = append(missing, envBotToken)
	}
	if cfg.ChannelID == "" {
		missing = append(missing, envChannelID)
	}

	if len(missing) > 0 {
		return Config{}, syndicate.MissingEnvError{Provider: providerName, Variables: missing}
	}

	return cfg, nil
}
