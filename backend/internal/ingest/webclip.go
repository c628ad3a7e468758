package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	apperrors "notegraph/backend/pkg/errors"
	"notegraph/backend/pkg/logger"
)

const (
	clipTimeout       = 10 * time.Second
	maxBodyBytes      = 512 * 1024
	maxClipRunes      = 5000
	minParagraphChars = 40
)

// WebClipper fetches a page and reduces it to note text
type WebClipper struct {
	client *http.Client
	logger *zap.Logger
}

// NewWebClipper creates a web clipper with a bounded request timeout
func NewWebClipper() *WebClipper {
	return &WebClipper{
		client: &http.Client{Timeout: clipTimeout},
		logger: logger.Named("webclip"),
	}
}

// Clip fetches a URL and returns the page title and its readable text
func (w *WebClipper) Clip(ctx context.Context, pageURL string) (string, string, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return "", "", apperrors.NewInvalidArgument("url must not be empty")
	}
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		pageURL = "https://" + pageURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", apperrors.NewInvalidArgument(fmt.Sprintf("invalid url: %v", err))
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; NotegraphBot/1.0)")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", "", apperrors.NewUpstreamFailed("webclip", 1, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("clip %s: HTTP %d", pageURL, resp.StatusCode)
	}

	title, text, err := extractReadableText(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", "", fmt.Errorf("parse %s: %w", pageURL, err)
	}
	if text == "" {
		return "", "", fmt.Errorf("clip %s: no readable text found", pageURL)
	}

	w.logger.Info("Clipped page",
		zap.String("url", pageURL),
		zap.String("title", title),
		zap.Int("chars", len(text)),
	)
	return title, text, nil
}

// extractReadableText pulls the title and main paragraph text out of an HTML
// document, dropping scripts, navigation and other boilerplate. Output is
// capped so a long article becomes a bounded note.
func extractReadableText(r io.Reader) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", "", err
	}

	title := strings.Join(strings.Fields(doc.Find("title").First().Text()), " ")

	doc.Find("script, style, noscript, iframe, svg, nav, header, footer, aside, form").Remove()

	// Prefer the article body when the page marks one up
	root := doc.Find("article, main").First()
	if root.Length() == 0 {
		root = doc.Find("body")
	}

	var parts []string
	root.Find("p, li").Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if len(text) >= minParagraphChars {
			parts = append(parts, text)
		}
	})

	text := strings.Join(parts, "\n\n")
	runes := []rune(text)
	if len(runes) > maxClipRunes {
		text = string(runes[:maxClipRunes]) + "..."
	}
	return title, text, nil
}
