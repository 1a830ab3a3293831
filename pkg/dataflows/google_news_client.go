package dataflows

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

const googleNewsRSS = "https://news.google.com/rss"

type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

type Channel struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Items       []Item `xml:"item"`
}

type Item struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	Source      Source `xml:"source"`
	GUID        string `xml:"guid"`
}

type Source struct {
	URL  string `xml:"url,attr"`
	Text string `xml:",chardata"`
}

// GoogleNewsParams represents parameters for a Google News RSS search
type GoogleNewsParams struct {
	Query      string `json:"query"`
	Language   string `json:"language"` // en-US, zh-CN, ...
	Country    string `json:"country"`  // US, CN, ...
	MaxResults int    `json:"max_results"`
}

// GoogleNewsClient handles Google News operations
type GoogleNewsClient struct {
	client  *resty.Client
	cache   Cache
	retry   *RetryConfig
	baseURL string
}

// NewGoogleNewsClient creates a new Google News client
func NewGoogleNewsClient(cache Cache) *GoogleNewsClient {
	if cache == nil {
		cache = NopCache{}
	}
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")

	return &GoogleNewsClient{
		client:  client,
		cache:   cache,
		retry:   DefaultRetryConfig(),
		baseURL: googleNewsRSS,
	}
}

// WithBaseURL points the client at another RSS endpoint.
func (gnc *GoogleNewsClient) WithBaseURL(u string) *GoogleNewsClient {
	gnc.baseURL = strings.TrimRight(u, "/")
	return gnc
}

func (gnc *GoogleNewsClient) WithRetry(cfg *RetryConfig) *GoogleNewsClient {
	gnc.retry = cfg
	return gnc
}

func (gnc *GoogleNewsClient) Name() string { return "google" }

// SearchNews queries Google News for stock coverage of symbol.
func (gnc *GoogleNewsClient) SearchNews(ctx context.Context, symbol string, limit int) ([]*NewsArticle, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	return gnc.GetGoogleNewsRSS(ctx, GoogleNewsParams{
		Query:      NormalizeSymbol(symbol) + " stock news analysis market trends",
		Language:   "en-US",
		Country:    "US",
		MaxResults: limit,
	})
}

// GetGoogleNewsRSS fetches the RSS feed for params.Query
func (gnc *GoogleNewsClient) GetGoogleNewsRSS(ctx context.Context, params GoogleNewsParams) ([]*NewsArticle, error) {
	if strings.TrimSpace(params.Query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	var cached []*NewsArticle
	if gnc.cache.Get(ctx, "google_news_rss", "query", params, &cached) {
		return cached, nil
	}

	rssURL := gnc.buildGoogleNewsRSSURL(params)
	articles := make([]*NewsArticle, 0)
	err := WithRetry(ctx, gnc.retry, func() error {
		resp, err := gnc.client.R().SetContext(ctx).Get(rssURL)
		if err != nil {
			return fmt.Errorf("failed to fetch RSS feed: %w", err)
		}
		if resp.StatusCode() != http.StatusOK {
			return fmt.Errorf("HTTP error %d when fetching RSS feed", resp.StatusCode())
		}

		var rss RSS
		if err := xml.Unmarshal(resp.Body(), &rss); err != nil {
			return fmt.Errorf("failed to parse RSS XML: %w", err)
		}

		articles = articles[:0]
		for i, item := range rss.Channel.Items {
			if params.MaxResults > 0 && i >= params.MaxResults {
				break
			}
			articles = append(articles, convertRSSItem(item, params.Query))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = gnc.cache.Set(ctx, "google_news_rss", "query", params, articles)
	return articles, nil
}

func (gnc *GoogleNewsClient) buildGoogleNewsRSSURL(params GoogleNewsParams) string {
	v := url.Values{}
	v.Set("q", params.Query)
	if params.Language != "" {
		v.Set("hl", params.Language)
	}
	if params.Country != "" {
		v.Set("gl", params.Country)
		v.Set("ceid", fmt.Sprintf("%s:%s", params.Country, strings.Split(params.Language, "-")[0]))
	}
	return gnc.baseURL + "/search?" + v.Encode()
}

func convertRSSItem(item Item, query string) *NewsArticle {
	pubTime, err := time.Parse(time.RFC1123Z, item.PubDate)
	if err != nil {
		pubTime, _ = time.Parse(time.RFC1123, item.PubDate)
	}

	source := strings.TrimSpace(item.Source.Text)
	if source == "" && item.Source.URL != "" {
		if u, err := url.Parse(item.Source.URL); err == nil {
			source = u.Host
		}
	}

	return &NewsArticle{
		Title:       strings.TrimSpace(item.Title),
		Content:     cleanHTMLContent(item.Description),
		URL:         strings.TrimSpace(item.Link),
		Source:      source,
		PublishedAt: pubTime,
		Keywords:    []string{query},
		Metadata: map[string]string{
			"scraper":    "google_news_rss",
			"guid":       item.GUID,
			"source_url": item.Source.URL,
		},
	}
}

var (
	htmlTagRegex = regexp.MustCompile(`<[^>]*>`)
	spaceRegex   = regexp.MustCompile(`\s+`)
)

// cleanHTMLContent extracts the plain text of an HTML fragment
func cleanHTMLContent(htmlContent string) string {
	if htmlContent == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return stripHTMLTags(htmlContent)
	}
	text := strings.TrimSpace(spaceRegex.ReplaceAllString(doc.Text(), " "))
	if text == "" {
		return stripHTMLTags(htmlContent)
	}
	return text
}

func stripHTMLTags(content string) string {
	content = htmlTagRegex.ReplaceAllString(content, "")
	content = strings.NewReplacer(
		"&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&#39;", "'",
	).Replace(content)
	return strings.TrimSpace(spaceRegex.ReplaceAllString(content, " "))
}
