package facebook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/blacktop/syndicate/internal/logutil"
	"github.com/blacktop/syndicate/internal/syndicate"
)

const (
	envAccessToken = "SYNDICATE_FACEBOOK_ACCESS_TOKEN"
	envPageID      = "SYNDICATE_FACEBOOK_PAGE_ID"

	providerName   = "facebook"
	requestTimeout = 30 * time.Second

	defaultBaseURL = "https://graph.facebook.com/v18.0"

	maxMessageLength = 63206
)

// Config contains the settings needed to post to a Facebook feed. PageID is
// optional; when empty, posts go to the token owner's own feed. BaseURL is
// overridable so tests can point the client at a fake server.
type Config struct {
	AccessToken string
	PageID      string
	BaseURL     string
}

// Client implements the syndicate.Poster interface for Facebook's Graph API.
type Client struct {
	accessToken string
	pageID      string
	baseURL     string
	httpClient  *http.Client
}

// New constructs a Facebook poster from explicit configuration.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, syndicate.ValidationError{Provider: providerName, Reason: "missing access token"}
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		accessToken: strings.TrimSpace(cfg.AccessToken),
		pageID:      strings.TrimSpace(cfg.PageID),
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: requestTimeout},
	}, nil
}

// NewFromEnv constructs a Facebook poster, letting environment variables
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

// MaxMessageLength returns Facebook's message length ceiling.
func (c *Client) MaxMessageLength() int { return maxMessageLength }

// MessageLength counts Unicode codepoints, so an emoji outside the BMP
// counts as one.
func (c *Client) MessageLength(message string) int {
	return utf8.RuneCountInString(message)
}

// Post publishes message to the configured feed. With images, the first
// image is uploaded unpublished and then attached to the feed post; the two
// requests are strictly sequential and the second is never issued if the
// first fails or is aborted. An abort after the upload committed is not
// rolled back.
func (c *Client) Post(ctx context.Context, message string, opts *syndicate.Options) (syndicate.Response, error) {
	if strings.TrimSpace(message) == "" {
		return nil, syndicate.ValidationError{Provider: providerName, Reason: "missing message to post"}
	}
	if err := syndicate.ValidateOptions(opts); err != nil {
		return nil, err
	}

	var photoID string
	if opts != nil && len(opts.Images) > 0 {
		id, err := c.uploadPhoto(ctx, opts.Images[0])
		if err != nil {
			return nil, err
		}
		photoID = id
	}

	return c.createPost(ctx, message, photoID)
}

// PostURL builds a public post link from the response. A post_id of the form
// <pageID>_<postID> (or a bare id of the same shape) maps to the page's
// posts path; anything else falls back to the bare posts path.
func (c *Client) PostURL(resp syndicate.Response) (string, error) {
	if resp == nil {
		return "", syndicate.ErrNoPostID
	}
	id, _ := resp["post_id"].(string)
	if id == "" {
		id, _ = resp["id"].(string)
	}
	if id == "" {
		return "", syndicate.ErrNoPostID
	}
	if page, post, ok := strings.Cut(id, "_"); ok {
		return fmt.Sprintf("https://www.facebook.com/%s/posts/%s", page, post), nil
	}
	return "https://www.facebook.com/posts/" + id, nil
}

// uploadPhoto sends the image bytes to me/photos without publishing and
// returns the photo ID for attachment to the feed post.
func (c *Client) uploadPhoto(ctx context.Context, img syndicate.Image) (string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="source"; filename="photo"`)
	header.Set("Content-Type", http.DetectContentType(img.Data))
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return "", fmt.Errorf("write photo: %w", err)
	}

	fields := map[string]string{
		"access_token": c.accessToken,
		"published":    "false",
	}
	if img.Alt != "" {
		fields["alt_text_custom"] = img.Alt
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return "", fmt.Errorf("write form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/me/photos", buf)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	logutil.Debugf("uploading photo to facebook: bytes=%d", len(img.Data))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apiError(resp, "Failed to create photo post")
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode photo response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("upload photo: empty response")
	}

	logutil.Debugf("photo uploaded: id=%s", result.ID)
	return result.ID, nil
}

func (c *Client) createPost(ctx context.Context, message, photoID string) (syndicate.Response, error) {
	target := "me"
	if c.pageID != "" {
		target = c.pageID
	}

	form := url.Values{}
	form.Set("message", message)
	form.Set("access_token", c.accessToken)
	if photoID != "" {
		media, err := json.Marshal(map[string]string{"media_fbid": photoID})
		if err != nil {
			return nil, fmt.Errorf("encode attachment: %w", err)
		}
		form.Set("attached_media[0]", string(media))
	}

	endpoint := fmt.Sprintf("%s/%s/feed", c.baseURL, target)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	logutil.Debugf("posting to facebook: target=%s photo=%q", target, photoID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apiError(resp, "Failed to create post")
	}

	var result syndicate.Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

// apiError turns a non-2xx Graph API response into a PlatformError carrying
// the platform's own error message.
func apiError(resp *http.Response, operation string) error {
	var detail struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	// A body that fails to decode leaves the detail fields zeroed.
	_ = json.NewDecoder(resp.Body).Decode(&detail)

	return &syndicate.PlatformError{
		Provider:   providerName,
		StatusCode: resp.StatusCode,
		Operation:  operation,
		Message:    detail.Error.Message,
	}
}

// loadConfig merges environment-defined values over the supplied defaults.
func loadConfig(base Config) (Config, error) {
	cfg := Config{
		AccessToken: strings.TrimSpace(os.Getenv(envAccessToken)),
		PageID:      strings.TrimSpace(os.Getenv(envPageID)),
		BaseURL:     base.BaseURL,
	}

	if cfg.AccessToken == "" {
		cfg.AccessToken = strings.TrimSpace(base.AccessToken)
	}
	if cfg.PageID == "" {
		cfg.PageID = strings.TrimSpace(base.PageID)
	}

	if cfg.AccessToken == "" {
		return Config{}, syndicate.MissingEnvError{Provider: providerName, Variables: []string{envAccessToken}}
	}

	return cfg, nil
}
