package syndicate

import "context"

// Options carries the optional extras for a post. A nil Options is valid and
// means a plain text-only post.
type Options struct {
	Images []Image
}

// Image is a single attachment: raw bytes plus optional alt text.
type Image struct {
	Data []byte
	Alt  string
}

// Response is the platform's raw decoded response body. Each provider defines
// and interprets its own shape; nothing here normalizes it.
type Response map[string]any

// Poster abstracts a social network that can publish content.
type Poster interface {
	// Name identifies the provider.
	Name() string

	// MaxMessageLength returns the provider's ceiling on message length,
	// measured with MessageLength.
	MaxMessageLength() int

	// MessageLength returns the provider's length metric for message.
	MessageLength(message string) int

	// Post publishes message with the given options and returns the
	// provider's raw response. The context is attached to every outgoing
	// request; cancellation aborts whichever request is in flight.
	Post(ctx context.Context, message string, opts *Options) (Response, error)

	// PostURL derives a public URL from a Post response without any
	// network call. It returns ErrNoPostID when the response lacks the
	// identifying fields.
	PostURL(resp Response) (string, error)
}
