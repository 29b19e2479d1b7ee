package ingestion_engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/markdave123-py/railchat/internal/core"
)

// URLExtractor fetches a web page and keeps only its visible text.
type URLExtractor struct {
	client   *http.Client
	maxBytes int64
}

func NewURLExtractor(timeout time.Duration, maxBytes int) *URLExtractor {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &URLExtractor{
		client:   &http.Client{Timeout: timeout},
		maxBytes: int64(maxBytes),
	}
}

// Fetch downloads rawURL and returns its text. Transport failures, non-2xx
// statuses and timeouts are NetworkError; non-text responses are
// UnsupportedFormat; a page with nothing visible is NoTextFound.
func (u *URLExtractor) Fetch(ctx context.Context, rawURL string) (*core.ExtractedText, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, core.NewExtractionError(rawURL, core.ReasonUnsupportedFormat, fmt.Errorf("not an http(s) url"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, core.NewExtractionError(rawURL, core.ReasonNetworkError, err)
	}
	req.Header.Set("User-Agent", "railchat/1.0 (+document ingestion)")
	req.Header.Set("Accept", "text/html,text/plain;q=0.9")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, core.NewExtractionError(rawURL, core.ReasonNetworkError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, core.NewExtractionError(rawURL, core.ReasonNetworkError, fmt.Errorf("status %d", resp.StatusCode))
	}

	body := io.Reader(resp.Body)
	if u.maxBytes > 0 {
		body = &io.LimitedReader{R: resp.Body, N: u.maxBytes}
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return nil, core.NewExtractionError(rawURL, core.ReasonNetworkError, err)
	}

	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	var text, title string
	switch ct {
	case "text/plain":
		text = normalizeLines(strings.Split(string(b), "\n"))
	case "text/html", "application/xhtml+xml", "":
		text, title, err = htmlVisibleText(b)
		if err != nil {
			return nil, core.NewExtractionError(rawURL, core.ReasonUnsupportedFormat, err)
		}
	default:
		return nil, core.NewExtractionError(rawURL, core.ReasonUnsupportedFormat, fmt.Errorf("content-type %s", ct))
	}

	if text == "" {
		return nil, core.NewExtractionError(rawURL, core.ReasonNoTextFound, nil)
	}
	return &core.ExtractedText{Text: text, Title: title, Strategy: "web"}, nil
}

// htmlVisibleText drops non-content markup and returns one line per text
// node, preferring main/article content when the page has it.
func htmlVisibleText(b []byte) (text, title string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		return "", "", err
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript, template, svg, head").Remove()

	root := doc.Find("main, article")
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	if root.Length() == 0 {
		root = doc.Selection
	}

	var lines []string
	collectText(root, &lines)
	return normalizeLines(lines), title, nil
}

func collectText(sel *goquery.Selection, lines *[]string) {
	sel.Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "#text" {
			*lines = append(*lines, s.Text())
			return
		}
		collectText(s, lines)
	})
}

// normalizeLines collapses runs of whitespace inside each line and drops
// blank lines.
func normalizeLines(lines []string) string {
	out := lines[:0:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
