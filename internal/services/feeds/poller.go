// Package feeds publishes new items of RSS and Atom feeds as blog posts.
package feeds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/braincargo/brainblog/internal/db"
	"github.com/braincargo/brainblog/internal/httpclient"
	"github.com/braincargo/brainblog/internal/services/blogs"
	"github.com/mmcdole/gofeed"
)

// DefaultMaxItems bounds how many new items of one feed are published per
// poll, so a feed added with a long backlog does not flood the blog.
const DefaultMaxItems = 3

// Store is implemented by *db.Queries.
type Store interface {
	FeedItemExists(ctx context.Context, guid string) (bool, error)
	InsertFeedItem(ctx context.Context, item db.FeedItem) error
}

// Publisher is implemented by *blogs.Service.
type Publisher interface {
	FromURL(ctx context.Context, rawURL, customTitle string) (*blogs.Published, error)
}

type Poller struct {
	client    *http.Client
	store     Store
	publisher Publisher
	urls      []string
	maxItems  int
}

type Option func(*Poller)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Poller) { p.client = c }
}

func WithMaxItems(n int) Option {
	return func(p *Poller) { p.maxItems = n }
}

func NewPoller(urls []string, store Store, publisher Publisher, opts ...Option) *Poller {
	p := &Poller{
		client:    httpclient.New(httpclient.WithTimeout(30 * time.Second)),
		store:     store,
		publisher: publisher,
		urls:      urls,
		maxItems:  DefaultMaxItems,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Summary counts the outcome of one poll.
type Summary struct {
	Feeds     int `json:"feeds"`
	FeedErrs  int `json:"feed_errors"`
	Seen      int `json:"seen"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// Poll fetches every feed and publishes the items not seen before. A broken
// feed is logged and skipped; only a cancelled context aborts the poll.
func (p *Poller) Poll(ctx context.Context) (Summary, error) {
	var sum Summary
	for _, feedURL := range p.urls {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Feeds++

		feed, err := p.fetch(ctx, feedURL)
		if err != nil {
			sum.FeedErrs++
			slog.Warn("Failed to fetch feed", "feed", feedURL, "error", err)
			continue
		}

		published := 0
		for _, item := range feed.Items {
			if published >= p.maxItems {
				break
			}
			guid := itemGUID(item)
			if guid == "" || item.Link == "" {
				continue
			}

			seen, err := p.store.FeedItemExists(ctx, guid)
			if err != nil {
				return sum, fmt.Errorf("failed to check feed item: %w", err)
			}
			if seen {
				sum.Seen++
				continue
			}

			published++
			record := db.FeedItem{GUID: guid, FeedURL: feedURL, Link: item.Link, Title: item.Title}
			if post, err := p.publisher.FromURL(ctx, item.Link, ""); err != nil {
				sum.Failed++
				msg := err.Error()
				record.Error = &msg
				slog.Warn("Feed item failed", "link", item.Link, "error", err)
			} else {
				sum.Published++
				record.PostID = &post.Post.ID
				slog.Info("Feed item published", "link", item.Link, "post_id", post.Post.ID)
			}

			if err := p.store.InsertFeedItem(ctx, record); err != nil {
				slog.Error("Failed to record feed item", "guid", guid, "error", err)
			}
		}
	}

	slog.Info("Feed poll completed", "feeds", sum.Feeds, "published", sum.Published, "failed", sum.Failed)
	return sum, nil
}

func (p *Poller) fetch(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	fp := gofeed.NewParser()
	fp.Client = p.client

	feed, err := fp.ParseURLWithContext(feedURL, httpclient.WithOperation(ctx, "feed"))
	if err != nil {
		return nil, fmt.Errorf("parsing feed %q: %w", feedURL, err)
	}
	return feed, nil
}

func itemGUID(item *gofeed.Item) string {
	if guid := strings.TrimSpace(item.GUID); guid != "" {
		return guid
	}
	return strings.TrimSpace(item.Link)
}
