package api

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/braincargo/brainblog/internal/utils"
	"github.com/braincargo/brainblog/internal/validation"
)

// MaxWebhookURLs bounds how many links of one message are processed.
const MaxWebhookURLs = 3

const (
	msgUnauthorized = "⚠️ Unauthorized"
	msgNoURLs       = "❌ No URLs found in your message. Please send a message with a URL to generate a blog post."
	msgNoneWorked   = "❌ Failed to process any URLs. Please check the URLs and try again."
	msgUnavailable  = "❌ Sorry, there was an error processing your request. Please try again later."
)

// TwiML is the reply document Twilio expects from a messaging webhook.
type TwiML struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

func writeTwiML(w http.ResponseWriter, message string) {
	out, err := xml.MarshalIndent(TwiML{Message: message}, "", "    ")
	if err != nil {
		slog.Error("Failed to encode TwiML", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}

type webhookOutcome struct {
	url   string
	title string
	err   error
}

// HandleWebhook turns the links of an SMS into blog posts. Twilio posts the
// message as a form with Body, From and To fields.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeTwiML(w, msgUnavailable)
		return
	}
	from := r.PostForm.Get("From")
	body := r.PostForm.Get("Body")

	if !s.cfg.Security.IsPhoneAuthorized(from) {
		slog.Warn("Unauthorized SMS attempt", "from", from)
		writeTwiML(w, msgUnauthorized)
		return
	}
	slog.Info("Authorized SMS received", "from", from)

	urls := validation.ExtractURLs(body)
	if len(urls) == 0 {
		writeTwiML(w, msgNoURLs)
		return
	}

	if s.generator == nil {
		slog.Error("Webhook received without a pipeline")
		writeTwiML(w, msgUnavailable)
		return
	}

	outcomes := make([]webhookOutcome, 0, MaxWebhookURLs)
	for _, u := range urls[:min(len(urls), MaxWebhookURLs)] {
		published, err := s.generator.FromURL(r.Context(), u, "")
		if err != nil {
			slog.Error("Failed to process URL", "url", u, "error", err)
			outcomes = append(outcomes, webhookOutcome{url: u, err: err})
			continue
		}
		slog.Info("Blog post generated from SMS", "url", u, "title", published.Post.Title)
		outcomes = append(outcomes, webhookOutcome{url: u, title: published.Post.Title})
	}

	writeTwiML(w, s.webhookSummary(len(urls), outcomes))
}

func (s *Server) webhookSummary(total int, outcomes []webhookOutcome) string {
	var ok, failed []webhookOutcome
	for _, o := range outcomes {
		if o.err != nil {
			failed = append(failed, o)
		} else {
			ok = append(ok, o)
		}
	}
	if len(ok) == 0 && len(failed) == 0 {
		return msgNoneWorked
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🤖 Processed %d URL(s):\n", total)
	if len(ok) > 0 {
		fmt.Fprintf(&b, "\n📝 Successfully generated %d blog post(s):\n", len(ok))
		for _, o := range ok {
			fmt.Fprintf(&b, "• %s\n", o.title)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(&b, "\n❌ Failed to process %d URL(s):\n", len(failed))
		for _, o := range failed {
			fmt.Fprintf(&b, "• %s...\n", utils.TruncateRunes(o.url, 50))
		}
	}
	fmt.Fprintf(&b, "\nView your blog posts at %s/blog", s.cfg.Blog.Domain)
	return b.String()
}

// HandleWebhookInfo describes the webhook for GET requests.
func (s *Server) HandleWebhookInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":           "Brain Blog Generator Webhook",
		"status":            "active",
		"supported_methods": []string{http.MethodPost},
		"description":       "Send SMS with URLs to generate blog posts",
	})
}
