// wikipedia.go: reference image provider backed by the Wikipedia API.
package imageprovider

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"cgt.name/pkg/go-mwclient"
	"github.com/antonholmquist/jason"
	"github.com/google/uuid"
	"github.com/k3a/html2text"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
)

const (
	wikiProviderName = "wikimedia"
	wikiAPIURL       = "https://en.wikipedia.org/w/api.php"

	// User-Agent per the Wikimedia robot policy:
	// https://foundation.wikimedia.org/wiki/Policy:Wikimedia_Foundation_User-Agent_Policy
	userAgentName    = "Reefey-Backend"
	userAgentContact = "https://github.com/Reefey/Backend-sub000"

	wikiMaxRetries = 3
)

// wikiMediaProvider implements Provider using the Wikipedia page image and
// extract APIs.
type wikiMediaProvider struct {
	client  *mwclient.Client
	limiter *rate.Limiter
	debug   bool
}

type wikiMediaAuthor struct {
	name        string
	url         string
	licenseName string
	licenseURL  string
}

func buildUserAgent(appVersion string) string {
	if appVersion == "" {
		appVersion = "unknown"
	}
	return fmt.Sprintf("%s/%s (%s) Go-HTTP-Client/%s",
		userAgentName, appVersion, userAgentContact, runtime.Version())
}

// NewWikiMediaProvider creates a Wikipedia-backed reference image provider.
func NewWikiMediaProvider(settings *conf.SpeciesImagesSettings) (Provider, error) {
	logger := imageProviderLogger.With("provider", wikiProviderName)

	userAgent := buildUserAgent(conf.Setting().Version)
	client, err := mwclient.New(wikiAPIURL, userAgent)
	if err != nil {
		return nil, errors.New(err).
			Component("imageprovider").
			Category(errors.CategoryNetwork).
			Context("provider", wikiProviderName).
			Context("operation", "create_mwclient").
			Build()
	}
	logger.Info("WikiMedia provider initialized", "user_agent", userAgent)

	// Wikipedia asks automated clients to stay polite; enrichment is
	// background work so 2 rps is plenty.
	return &wikiMediaProvider{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(2), 2),
		debug:   settings.Debug,
	}, nil
}

func (p *wikiMediaProvider) Name() string { return wikiProviderName }

// Fetch retrieves the reference image, page summary and attribution for the
// given scientific name.
func (p *wikiMediaProvider) Fetch(ctx context.Context, scientificName string) (SpeciesImage, error) {
	reqID := uuid.New().String()[:8]
	logger := imageProviderLogger.With("provider", wikiProviderName, "scientific_name", scientificName, "request_id", reqID)
	logger.Debug("Fetching reference image")

	thumbnailURL, sourceFile, summary, err := p.queryPage(ctx, reqID, scientificName)
	if err != nil {
		if errors.Is(err, ErrImageNotFound) {
			logger.Debug("No Wikipedia page image for species")
		} else {
			logger.Error("Failed to query species page", "error", err)
		}
		return SpeciesImage{}, err
	}

	author, err := p.queryAuthorInfo(ctx, reqID, sourceFile)
	if err != nil {
		// Attribution is best effort; the image itself is the payload.
		logger.Debug("Author info unavailable, using defaults", "error", err)
		author = &wikiMediaAuthor{name: "Unknown", licenseName: "Unknown"}
	}

	logger.Info("Reference image fetched",
		"thumbnail_url", thumbnailURL,
		"author", author.name,
		"license", author.licenseName)

	return SpeciesImage{
		URL:            thumbnailURL,
		ScientificName: scientificName,
		Summary:        summary,
		AuthorName:     author.name,
		AuthorURL:      author.url,
		LicenseName:    author.licenseName,
		LicenseURL:     author.licenseURL,
		SourceProvider: wikiProviderName,
	}, nil
}

// queryPage fetches the page image and a short plain-text extract in one
// API round trip.
func (p *wikiMediaProvider) queryPage(ctx context.Context, reqID, scientificName string) (thumbnailURL, fileName, summary string, err error) {
	params := map[string]string{
		"action":        "query",
		"format":        "json",
		"formatversion": "2",
		"prop":          "pageimages|extracts",
		"piprop":        "thumbnail|name",
		"pilicense":     "free",
		"pithumbsize":   "400",
		"exintro":       "",
		"explaintext":   "",
		"exsentences":   "3",
		"titles":        scientificName,
		"redirects":     "",
	}

	page, err := p.queryFirstPage(ctx, reqID, params)
	if err != nil {
		return "", "", "", err
	}

	thumbnailURL, err = page.GetString("thumbnail", "source")
	if err != nil {
		// Pages without a free-licensed lead image are common.
		return "", "", "", ErrImageNotFound
	}
	fileName, err = page.GetString("pageimage")
	if err != nil {
		return "", "", "", ErrImageNotFound
	}
	summary, _ = page.GetString("extract")

	return thumbnailURL, fileName, strings.TrimSpace(summary), nil
}

// queryAuthorInfo fetches author and license metadata for the image file
// backing the thumbnail.
func (p *wikiMediaProvider) queryAuthorInfo(ctx context.Context, reqID, fileName string) (*wikiMediaAuthor, error) {
	params := map[string]string{
		"action":        "query",
		"format":        "json",
		"formatversion": "2",
		"prop":          "imageinfo",
		"iiprop":        "extmetadata",
		"titles":        "File:" + fileName,
		"redirects":     "",
	}

	page, err := p.queryFirstPage(ctx, reqID, params)
	if err != nil {
		return nil, err
	}

	imgInfo, err := page.GetObjectArray("imageinfo")
	if err != nil || len(imgInfo) == 0 {
		return nil, ErrImageNotFound
	}
	extMetadata, err := imgInfo[0].GetObject("extmetadata")
	if err != nil {
		return nil, ErrImageNotFound
	}

	artistHTML, _ := extMetadata.GetString("Artist", "value")
	licenseName, _ := extMetadata.GetString("LicenseShortName", "value")
	licenseURL, _ := extMetadata.GetString("LicenseUrl", "value")

	authorName, authorURL := "", ""
	if artistHTML != "" {
		authorURL, authorName, err = extractArtistInfo(artistHTML)
		if err != nil {
			authorName = html2text.HTML2Text(artistHTML)
		}
	}
	if authorName == "" {
		authorName = "Unknown"
	}
	if licenseName == "" {
		licenseName = "Unknown"
	}

	return &wikiMediaAuthor{
		name:        authorName,
		url:         authorURL,
		licenseName: licenseName,
		licenseURL:  licenseURL,
	}, nil
}

// queryFirstPage performs a rate-limited query with retries and returns the
// first page object of the response. A response without pages maps to
// ErrImageNotFound.
func (p *wikiMediaProvider) queryFirstPage(ctx context.Context, reqID string, params map[string]string) (*jason.Object, error) {
	logger := imageProviderLogger.With("provider", wikiProviderName, "request_id", reqID, "titles", params["titles"])

	var lastErr error
	for attempt := range wikiMaxRetries {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, errors.New(err).
				Component("imageprovider").
				Category(errors.CategoryNetwork).
				Context("provider", wikiProviderName).
				Context("request_id", reqID).
				Context("operation", "rate_limiter_wait").
				Build()
		}

		resp, err := p.client.Get(params)
		if err == nil {
			return firstPage(logger, resp)
		}
		lastErr = err
		logger.Warn("Wikipedia API request failed",
			"error", err,
			"attempt", attempt+1,
			"will_retry", attempt < wikiMaxRetries-1)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second * time.Duration(1<<attempt)):
		}
	}

	return nil, errors.New(lastErr).
		Component("imageprovider").
		Category(errors.CategoryNetwork).
		Context("provider", wikiProviderName).
		Context("request_id", reqID).
		Context("operation", "query_with_retry").
		Context("species_query", params["titles"]).
		Context("max_retries", wikiMaxRetries).
		Build()
}

func firstPage(logger *slog.Logger, resp *jason.Object) (*jason.Object, error) {
	query, err := resp.GetObject("query")
	if err != nil {
		// Structured API errors and missing pages both land here; neither
		// is worth telemetry.
		if errorObj, errCheck := resp.GetObject("error"); errCheck == nil {
			code, _ := errorObj.GetString("code")
			info, _ := errorObj.GetString("info")
			logger.Debug("Wikipedia API returned structured error", "code", code, "info", info)
		}
		return nil, ErrImageNotFound
	}
	pages, err := query.GetObjectArray("pages")
	if err != nil || len(pages) == 0 {
		logger.Debug("No pages in Wikipedia response")
		return nil, ErrImageNotFound
	}
	return pages[0], nil
}

// extractArtistInfo pulls the artist's name and profile URL out of the
// attribution HTML. Wikipedia user links win over other links; plain text
// is the last resort.
func extractArtistInfo(htmlStr string) (href, text string, err error) {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return "", "", errors.New(err).
			Component("imageprovider").
			Category(errors.CategoryImageFetch).
			Context("operation", "parse_artist_html").
			Build()
	}

	allLinks := findLinks(doc)
	userLinks := findWikipediaUserLinks(allLinks)
	if len(userLinks) > 0 {
		return extractHref(userLinks[0]), extractText(userLinks[0]), nil
	}
	if len(allLinks) > 0 {
		return extractHref(allLinks[0]), extractText(allLinks[0]), nil
	}
	return "", html2text.HTML2Text(htmlStr), nil
}

func findWikipediaUserLinks(nodes []*html.Node) []*html.Node {
	var userLinks []*html.Node
	for _, node := range nodes {
		for _, attr := range node.Attr {
			if attr.Key == "href" && strings.Contains(attr.Val, "/wiki/User:") {
				userLinks = append(userLinks, node)
				break
			}
		}
	}
	return userLinks
}

func findLinks(doc *html.Node) []*html.Node {
	var linkNodes []*html.Node
	var traverse func(*html.Node)
	traverse = func(node *html.Node) {
		if node.Type == html.ElementNode && node.Data == "a" {
			linkNodes = append(linkNodes, node)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			traverse(child)
		}
	}
	traverse(doc)
	return linkNodes
}

func extractHref(link *html.Node) string {
	for _, attr := range link.Attr {
		if attr.Key == "href" {
			return attr.Val
		}
	}
	return ""
}

func extractText(link *html.Node) string {
	if link.FirstChild == nil {
		return ""
	}
	var b bytes.Buffer
	if err := html.Render(&b, link.FirstChild); err != nil {
		return ""
	}
	return html2text.HTML2Text(b.String())
}
