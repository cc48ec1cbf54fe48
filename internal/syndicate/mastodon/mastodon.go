package mastodon

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/blacktop/syndicate/internal/syndicate"
	mastodonapi "github.com/mattn/go-mastodon"
)

const (
	envServer       = "SYNDICATE_MASTODON_SERVER"
	envAccessToken  = "SYNDICATE_MASTODON_ACCESS_TOKEN"
	envClientID     = "SYNDICATE_MASTODON_CLIENT_ID"
	envClientSecret = "SYNDICATE_MASTODON_CLIENT_SECRET"

	providerName   = "mastodon"
	requestTimeout = 30 * time.Second

	maxMessageLength = 500
	maxAttachments   = 4
)

// Config contains the settings needed to reach a Mastodon server.
type Config struct {
	Server       string
	AccessToken  string
	ClientID     string
	ClientSecret string
}

// Client wraps the Mastodon API client behind the syndicate.Poster interface.
type Client struct {
	client *mastodonapi.Client
}

// New constructs a Mastodon poster from explicit configuration.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Server) == "" {
		return nil, syndicate.ValidationError{Provider: providerName, Reason: "missing server"}
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, syndicate.ValidationError{Provider: providerName, Reason: "missing access token"}
	}

	mastodonClient := mastodonapi.NewClient(&mastodonapi.Config{
		Server:       strings.TrimSpace(cfg.Server),
		AccessToken:  strings.TrimSpace(cfg.AccessToken),
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	})
	mastodonClient.Timeout = requestTimeout

	return &Client{client: mastodonClient}, nil
}

// NewFromEnv constructs a Mastodon poster, letting environment variables
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

// MaxMessageLength returns the default Mastodon status length ceiling.
func (c *Client) MaxMessageLength() int { return maxMessageLength }

// MessageLength counts Unicode codepoints, so an emoji outside the BMP
// counts as one.
func (c *Client) MessageLength(message string) int {
	return utf8.RuneCountInString(message)
}

// Post publishes a new toot with up to four media attachments.
func (c *Client) Post(ctx context.Context, message string, opts *syndicate.Options) (syndicate.Response, error) {
	if strings.TrimSpace(message) == "" {
		return nil, syndicate.ValidationError{Provider: providerName, Reason: "missing message to post"}
	}
	if err := syndicate.ValidateOptions(opts); err != nil {
		return nil, err
	}

	var mediaIDs []mastodonapi.ID
	if opts != nil {
		if len(opts.Images) > maxAttachments {
			return nil, syndicate.ValidationError{
				Provider: providerName,
				Reason:   fmt.Sprintf("at most %d images per toot", maxAttachments),
			}
		}
		for _, img := range opts.Images {
			attachment, err := c.uploadMedia(ctx, img)
			if err != nil {
				return nil, err
			}
			mediaIDs = append(mediaIDs, attachment.ID)
		}
	}

	status, err := c.client.PostStatus(ctx, &mastodonapi.Toot{
		Status:   message,
		MediaIDs: mediaIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("post status: %w", err)
	}

	return syndicate.Response{
		"id":      string(status.ID),
		"url":     status.URL,
		"content": status.Content,
	}, nil
}

// PostURL returns the status URL the server reported.
func (c *Client) PostURL(resp syndicate.Response) (string, error) {
	if resp == nil {
		return "", syndicate.ErrNoPostID
	}
	statusURL, _ := resp["url"].(string)
	if statusURL == "" {
		return "", syndicate.ErrNoPostID
	}
	return statusURL, nil
}

func (c *Client) uploadMedia(ctx context.Context, img syndicate.Image) (*mastodonapi.Attachment, error) {
	attachment, err := c.client.UploadMediaFromMedia(ctx, &mastodonapi.Media{
		File:        bytes.NewReader(img.Data),
		Description: img.Alt,
	})
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}
	return attachment, nil
}

// loadConfig merges environment-defined values over the supplied defaults.
func loadConfig(base Config) (Config, error) {
	cfg := Config{
		Server:       strings.TrimSpace(os.Getenv(envServer)),
		AccessToken:  strings.TrimSpace(os.Getenv(envAccessToken)),
		ClientID:     strings.TrimSpace(os.Getenv(envClientID)),
		ClientSecret: strings.TrimSpace(os.Getenv(envClientSecret)),
	}

	if cfg.Server == "" {
		cfg.Server = strings.TrimSpace(base.Server)
	}
	if cfg.AccessToken == "" {
		cfg.AccessToken = strings.TrimSpace(base.AccessToken)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = base.ClientID
	}
	if cfg.ClientSecret == "" {
		cfg.ClientSecret = base.ClientSecret
	}

	var missing []string
	if cfg.Server == "" {
		missing = append(missing, envServer)
	}
	if cfg.AccessToken == "" {
		missing = append(missing, envAccessToken)
	}

	if len(missing) > 0 {
		return Config{}, syndicate.MissingEnvError{Provider: providerName, Variables: missing}
	}

	return cfg, nil
}
