package syndicate

import "fmt"

// ValidateOptions checks post options before any network request is made, so
// a bad attachment never causes a partial multi-step failure. A nil Options
// or an Options with no images passes.
func ValidateOptions(opts *Options) error {
	if opts == nil {
		return nil
	}
	for i, img := range opts.Images {
		if img.Data == nil {
			return ValidationError{Reason: fmt.Sprintf("image %d must have data", i)}
		}
	}
	return nil
}
