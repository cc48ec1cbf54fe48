/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/blacktop/syndicate/internal/config"
	"github.com/blacktop/syndicate/internal/logutil"
	"github.com/blacktop/syndicate/internal/syndicate"
	"github.com/blacktop/syndicate/internal/syndicate/discord"
	"github.com/blacktop/syndicate/internal/syndicate/facebook"
	"github.com/blacktop/syndicate/internal/syndicate/mastodon"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	messageFlag string
	imagePaths  []string
	imageAlts   []string
	targetsFlag []string
	configPath  string
	dryRun      bool
	verbose     bool
)

var supportedTargets = map[string]struct{}{
	"discord":  {},
	"facebook": {},
	"mastodon": {},
}

// Execute runs the root command.
func Execute() error {
	return newRootCommand().Execute()
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "syndicate [message]",
		Short: "Post to social networks",
		Long: "syndicate publishes the same update to Discord, Facebook, and Mastodon. " +
			"Provide your message as an argument or with --message and optional --image.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
		Example: `  syndicate --message "hello world" --image ./shot.png
  syndicate "Ship it!" --target discord --target mastodon
  echo "Release shipped" | syndicate --target all`,
	}

	cmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Message text to post")
	cmd.Flags().StringSliceVar(&imagePaths, "image", nil, "Path to an image to attach (repeatable)")
	cmd.Flags().StringSliceVar(&imageAlts, "alt-text", nil, "Alternative text for the matching --image")
	cmd.Flags().StringSliceVar(&targetsFlag, "target", []string{"discord", "facebook", "mastodon"}, "Targets to post to (discord, facebook, mastodon, or all)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to the config file (default ~/.config/syndicate/config.toml)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print actions without posting")
	cmd.Flags().BoolVarP(&verbose, "verbose", "V", false, "Enable debug logging")
	cmd.Flags().SortFlags = false

	cmd.AddCommand(newCompletionCommand())

	return cmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logutil.SetVerbose(verbose)

	message, err := resolveMessage(cmd, args)
	if err != nil {
		return err
	}

	resolvedTargets, err := normalizeTargets(targetsFlag)
	if err != nil {
		return err
	}

	opts, err := loadImages(imagePaths, imageAlts)
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	posters, err := buildPosters(resolvedTargets, cfg)
	if err != nil {
		return err
	}

	return dispatch(ctx, posters, message, opts, cmd.OutOrStdout(), dryRun)
}

func resolveMessage(cmd *cobra.Command, args []string) (string, error) {
	var message string

	if messageFlag != "" {
		message = messageFlag
	}

	if len(args) > 0 {
		if message != "" {
			return "", errors.New("provide the message either as an argument or with --message, not both")
		}
		message = strings.Join(args, " ")
	}

	if message != "" {
		return strings.TrimSpace(message), nil
	}

	stdin := cmd.InOrStdin()
	if file, ok := stdin.(*os.File); ok && !term.IsTerminal(int(file.Fd())) {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		message = strings.TrimSpace(string(data))
	}

	if message == "" {
		return "", errors.New("message is required")
	}

	return message, nil
}

func normalizeTargets(values []string) ([]string, error) {
	if len(values) == 0 {
		return sortedTargets([]string{"discord", "facebook", "mastodon"}), nil
	}

	result := make([]string, 0, len(values))
	seen := map[string]struct{}{}
	for _, raw := range values {
		raw = strings.TrimSpace(strings.ToLower(raw))
		if raw == "" {
			continue
		}
		if raw == "all" {
			return sortedTargets([]string{"discord", "facebook", "mastodon"}), nil
		}
		if _, ok := supportedTargets[raw]; !ok {
			return nil, fmt.Errorf("unsupported target %q", raw)
		}
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}
		result = append(result, raw)
	}

	if len(result) == 0 {
		return nil, errors.New("no targets selected")
	}

	return sortedTargets(result), nil
}

func sortedTargets(targets []string) []string {
	out := append([]string(nil), targets...)
	sort.Strings(out)
	return out
}

// loadImages pairs each --image path with the --alt-text at the same index.
func loadImages(paths, alts []string) (*syndicate.Options, error) {
	if len(paths) == 0 {
		if len(alts) > 0 {
			return nil, errors.New("--alt-text requires a matching --image")
		}
		return nil, nil
	}
	if len(alts) > len(paths) {
		return nil, errors.New("more --alt-text values than --image paths")
	}

	images := make([]syndicate.Image, 0, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read image %q: %w", path, err)
		}
		var alt string
		if i < len(alts) {
			alt = strings.TrimSpace(alts[i])
		}
		images = append(images, syndicate.Image{Data: data, Alt: alt})
	}

	return &syndicate.Options{Images: images}, nil
}

func buildPosters(targets []string, cfg config.Config) ([]syndicate.Poster, error) {
	constructors := map[string]func() (syndicate.Poster, error){
		"discord": func() (syndicate.Poster, error) {
			return discord.NewFromEnv(discord.Config{
				BotToken:  cfg.Discord.BotToken,
				ChannelID: cfg.Discord.ChannelID,
			})
		},
		"facebook": func() (syndicate.Poster, error) {
			return facebook.NewFromEnv(facebook.Config{
				AccessToken: cfg.Facebook.AccessToken,
				PageID:      cfg.Facebook.PageID,
			})
		},
		"mastodon": func() (syndicate.Poster, error) {
			return mastodon.NewFromEnv(mastodon.Config{
				Server:       cfg.Mastodon.Server,
				AccessToken:  cfg.Mastodon.AccessToken,
				ClientID:     cfg.Mastodon.ClientID,
				ClientSecret: cfg.Mastodon.ClientSecret,
			})
		},
	}

	posters := make([]syndicate.Poster, 0, len(targets))
	var errs []error
	for _, target := range targets {
		constructor, ok := constructors[target]
		if !ok {
			errs = append(errs, fmt.Errorf("target %q is not implemented", target))
			continue
		}
		poster, err := constructor()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target, err))
			continue
		}
		posters = append(posters, poster)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if len(posters) == 0 {
		return nil, errors.New("no targets available")
	}
	return posters, nil
}

func dispatch(ctx context.Context, posters []syndicate.Poster, message string, opts *syndicate.Options, out io.Writer, simulate bool) error {
	if simulate {
		for _, poster := range posters {
			fmt.Fprintf(out, "[dry-run] would post to %s: %q (%d/%d)\n",
				poster.Name(), message, poster.MessageLength(message), poster.MaxMessageLength())
		}
		if opts != nil {
			for i, img := range opts.Images {
				fmt.Fprintf(out, "[dry-run] image %d: %d bytes (alt: %q)\n", i, len(img.Data), img.Alt)
			}
		}
		return nil
	}

	logutil.Debugf("payload: %s", syndicate.EncodeToUnicode(message))

	var errs []error
	for _, poster := range posters {
		if length := poster.MessageLength(message); length > poster.MaxMessageLength() {
			errs = append(errs, fmt.Errorf("%s: message is %d characters, limit is %d",
				poster.Name(), length, poster.MaxMessageLength()))
			continue
		}

		fmt.Fprintf(out, "posting to %s...\n", poster.Name())
		resp, err := poster.Post(ctx, message, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", poster.Name(), err))
			continue
		}

		postURL, err := poster.PostURL(resp)
		if err != nil {
			logutil.Warnf("%s: %v", poster.Name(), err)
			fmt.Fprintf(out, "posted to %s\n", poster.Name())
			continue
		}
		fmt.Fprintf(out, "posted to %s: %s\n", poster.Name(), postURL)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
