package syndicate

import "testing"

func TestPlatformErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *PlatformError
		want string
	}{
		{
			name: "status text plus platform detail and code",
			err: &PlatformError{
				StatusCode: 401,
				StatusText: "Unauthorized",
				Operation:  "Failed to post message",
				Message:    "No good",
				Code:       123,
				HasCode:    true,
			},
			want: "401 Failed to post message: Unauthorized\nNo good (code: 123)",
		},
		{
			name: "platform message only",
			err: &PlatformError{
				StatusCode: 400,
				Operation:  "Failed to create post",
				Message:    "Invalid parameter",
			},
			want: "400 Failed to create post: Invalid parameter",
		},
		{
			name: "photo upload",
			err: &PlatformError{
				StatusCode: 500,
				Operation:  "Failed to create photo post",
				Message:    "An unknown error occurred",
			},
			want: "500 Failed to create photo post: An unknown error occurred",
		},
		{
			name: "no detail at all",
			err: &PlatformError{
				StatusCode: 502,
				StatusText: "Bad Gateway",
				Operation:  "Failed to post message",
			},
			want: "502 Failed to post message: Bad Gateway",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	withProvider := ValidationError{Provider: "discord", Reason: "missing bot token"}
	if got, want := withProvider.Error(), "discord validation failed: missing bot token"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	shared := ValidationError{Reason: "image 0 must have data"}
	if got, want := shared.Error(), "validation failed: image 0 must have data"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestMissingEnvErrorMessage(t *testing.T) {
	err := MissingEnvError{Provider: "facebook", Variables: []string{"SYNDICATE_FACEBOOK_ACCESS_TOKEN"}}
	want := "facebook credentials not configured (missing SYNDICATE_FACEBOOK_ACCESS_TOKEN)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := MissingEnvError{Provider: "discord"}
	if got, want := bare.Error(), "discord credentials not configured"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
