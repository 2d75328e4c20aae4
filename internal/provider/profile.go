package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/rstrack/rstrack/internal/contracts"
)

// profileBaseURL serves the instrument profile pages the classification
// scraper reads. Overridable for tests.
var profileBaseURL = "https://finance.yahoo.com"

// FetchProfile scrapes sector/industry classification for a symbol from
// its profile page. It shares the chart client's rate limiter, so
// classification lookups never exceed the provider request cadence.
func (c *YahooClient) FetchProfile(ctx context.Context, symbol string) (string, string, error) {
	url := fmt.Sprintf("%s/quote/%s/profile", profileBaseURL, symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s profile: %v", contracts.ErrProviderUnavailable, symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", "", fmt.Errorf("%w: %s profile", contracts.ErrNoData, symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: %s profile: status %d", contracts.ErrProviderUnavailable, symbol, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("parse profile for %s: %w", symbol, err)
	}

	sector := labeledValue(doc, "Sector")
	industry := labeledValue(doc, "Industry")

	if sector == "" {
		sector = "Unknown"
	}
	if industry == "" {
		industry = "Unknown"
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"sector":   sector,
		"industry": industry,
	}).Debug("Fetched profile")

	return sector, industry, nil
}

// labeledValue finds the value span following a label span such as
// "Sector(s):" in the profile markup.
func labeledValue(doc *goquery.Document, label string) string {
	var value string
	doc.Find("span").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.HasPrefix(strings.TrimSpace(s.Text()), label) {
			return true
		}
		next := s.NextFiltered("span")
		if next.Length() == 0 {
			next = s.Parent().Find("a").First()
		}
		value = strings.TrimSpace(next.Text())
		return value == ""
	})
	return value
}
