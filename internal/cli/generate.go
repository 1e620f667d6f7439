package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/braincargo/brainblog/internal/services/blogs"
	"github.com/braincargo/brainblog/internal/validation"
	"github.com/spf13/cobra"
)

// Generator is implemented by *blogs.Service.
type Generator interface {
	FromURL(ctx context.Context, rawURL, customTitle string) (*blogs.Published, error)
	FromTopic(ctx context.Context, topic, style string) (*blogs.Published, error)
	FromContent(ctx context.Context, content, title string) (*blogs.Published, error)
}

var errNoPipeline = errors.New("pipeline not available: check config/pipeline.yaml and provider API keys")

func NewGenerateCmd() *cobra.Command {
	var req validation.GenerateRequest

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and publish one blog post",
		Long: `Generate a single blog post from a URL, a topic or raw content and
print the published post as JSON.

Examples:
  blogctl generate --url https://example.com/article
  blogctl generate --topic "self-custody wallets" --style casual
  blogctl generate --content "$(cat notes.md)" --title "Field notes"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateGenerateRequest(req); err != nil {
				return err
			}
			deps, err := loadDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()
			if deps.Blogs == nil {
				return errNoPipeline
			}

			published, err := generate(cmd.Context(), deps.Blogs, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), published)
		},
	}

	cmd.Flags().StringVar(&req.URL, "url", "", "Article URL to turn into a post")
	cmd.Flags().StringVar(&req.Topic, "topic", "", "Topic to write about")
	cmd.Flags().StringVar(&req.Content, "content", "", "Raw content to turn into a post")
	cmd.Flags().StringVar(&req.Title, "title", "", "Custom title")
	cmd.Flags().StringVar(&req.Style, "style", "", "Writing style for topic posts")
	cmd.MarkFlagsMutuallyExclusive("url", "topic", "content")
	cmd.MarkFlagsOneRequired("url", "topic", "content")

	return cmd
}

func generate(ctx context.Context, g Generator, req validation.GenerateRequest) (*blogs.Published, error) {
	switch req.Source() {
	case "url":
		return g.FromURL(ctx, req.URL, req.Title)
	case "topic":
		return g.FromTopic(ctx, req.Topic, req.Style)
	case "content":
		return g.FromContent(ctx, req.Content, req.Title)
	}
	return nil, fmt.Errorf("no input given")
}
