package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/braincargo/brainblog/internal/services/blogs"
	"github.com/spf13/cobra"
)

// URLPublisher is implemented by *blogs.Service.
type URLPublisher interface {
	FromURL(ctx context.Context, rawURL, customTitle string) (*blogs.Published, error)
}

// LoadLinks reads one link per line. Blank lines and lines starting with #
// are skipped.
func LoadLinks(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("links file not found: %w", err)
	}
	defer f.Close()

	var links []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		links = append(links, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read links file: %w", err)
	}
	return links, nil
}

type BatchItem struct {
	URL   string `json:"url"`
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Error string `json:"error,omitempty"`
}

type BatchSummary struct {
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Items     []BatchItem `json:"items"`
}

// RunBatch publishes every link in order. A failed link is recorded and the
// batch continues; only cancellation stops it early.
func RunBatch(ctx context.Context, p URLPublisher, links []string, delay time.Duration) (BatchSummary, error) {
	sum := BatchSummary{Total: len(links), Items: make([]BatchItem, 0, len(links))}
	for i, link := range links {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-time.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		item := BatchItem{URL: link}
		published, err := p.FromURL(ctx, link, "")
		if err != nil {
			sum.Failed++
			item.Error = err.Error()
			slog.Warn("Link failed", "url", link, "error", err)
		} else {
			sum.Succeeded++
			item.ID = published.Post.ID
			item.Title = published.Post.Title
			slog.Info("Link published", "url", link, "id", item.ID, "progress", fmt.Sprintf("%d/%d", i+1, len(links)))
		}
		sum.Items = append(sum.Items, item)
	}
	return sum, nil
}

func NewBatchCmd() *cobra.Command {
	var (
		linksFile string
		limit     int
		delay     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Publish a post for every link in a file",
		Long: `Read a links file (one URL per line, # for comments) and run the
full pipeline for each link. Prints a JSON summary.

Example:
  blogctl batch --links-file blog_links.txt --delay 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			links, err := LoadLinks(linksFile)
			if err != nil {
				return err
			}
			if limit > 0 && len(links) > limit {
				links = links[:limit]
			}
			if len(links) == 0 {
				return fmt.Errorf("no links in %s", linksFile)
			}
			slog.Info("Loaded links", "file", linksFile, "count", len(links))

			deps, err := loadDeps(cmd.Context())
			if err != nil {
				return err
			}
			defer deps.Close()
			if deps.Blogs == nil {
				return errNoPipeline
			}

			sum, err := RunBatch(cmd.Context(), deps.Blogs, links, delay)
			if perr := printJSON(cmd.OutOrStdout(), sum); perr != nil {
				return perr
			}
			if err != nil {
				return err
			}
			if sum.Succeeded == 0 {
				return fmt.Errorf("all %d links failed", sum.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&linksFile, "links-file", "blog_links.txt", "File with one link per line")
	cmd.Flags().IntVar(&limit, "limit", 0, "Process at most this many links (0 for all)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Pause between links")

	return cmd
}
