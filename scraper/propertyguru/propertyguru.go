package propertyguru

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"propertyguru-scraper/config"
	"propertyguru-scraper/models"
	"propertyguru-scraper/utils"
)

const baseURL = "https://www.propertyguru.com.sg"

var listingIDRegexp = regexp.MustCompile(`/listing/(\d+)`)

// Scraper drives the PropertyGuru search and detail pages through a headless
// browser and emits raw field maps for the normalizer.
type Scraper struct {
	cfg        *config.Config
	logger     *utils.Logger
	pool       *utils.WorkerPool
	visitedURL *utils.URLSet
	retry      *utils.RetryConfig
}

// New creates a ready-to-use PropertyGuru Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:        cfg,
		logger:     logger,
		pool:       utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		visitedURL: utils.NewURLSet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

// searchURL builds the search results URL for one page, applying the
// configured selling mode, bedroom filter and recency filter.
func (s *Scraper) searchURL(page int) string {
	path, listingType := "property-for-rent", "rent"
	if s.cfg.ScrapeMode == "Buy" {
		path, listingType = "property-for-sale", "sale"
	}

	url := fmt.Sprintf(
		"%s/%s/%d?listingType=%s&cur_page=%d&isCommercial=false&sort=date&order=desc&bedrooms=%d",
		baseURL, path, page, listingType, page, s.cfg.UnitTypeCode,
	)
	if s.cfg.LastPostedDays > 0 {
		url += fmt.Sprintf("&lastPosted=%d", s.cfg.LastPostedDays)
	}
	return url
}

// ScrapeListings walks the search result pages and returns the raw card
// fields in page order. Pagination stops at the configured page count, at
// the portal's own last page, or at the first empty page.
func (s *Scraper) ScrapeListings(ctx context.Context) ([]models.RawFields, error) {
	s.logger.Info("[propertyguru] Starting listing scrape: mode=%s bedrooms=%d pages=%d",
		s.cfg.ScrapeMode, s.cfg.UnitTypeCode, s.cfg.PagesToScrape)

	allocCtx, cancel := s.newBrowser(ctx)
	defer cancel()

	var all []models.RawFields
	maxPages := 0

	for page := 1; ; page++ {
		if s.cfg.PagesToScrape > 0 && page > s.cfg.PagesToScrape {
			break
		}
		if maxPages > 0 && page > maxPages {
			s.logger.Info("[propertyguru] Reached last page (%d)", maxPages)
			break
		}

		url := s.searchURL(page)
		s.logger.Info("[propertyguru] Scraping page %d: %s", page, url)

		cards, lastPage, err := s.scrapePage(allocCtx, url, page)
		if err != nil {
			return all, fmt.Errorf("page %d: %w", page, err)
		}
		if lastPage > maxPages {
			maxPages = lastPage
		}
		if len(cards) == 0 {
			s.logger.Warn("[propertyguru] Page %d returned 0 cards, stopping", page)
			break
		}

		fresh := 0
		for _, raw := range cards {
			url := raw[models.FieldURL]
			if url == "" || !s.visitedURL.Add(url) {
				continue
			}
			all = append(all, raw)
			fresh++
		}
		s.logger.Info("[propertyguru] Page %d done: %d cards, %d new, %d total",
			page, len(cards), fresh, len(all))

		time.Sleep(time.Duration(s.cfg.RateLimitMs) * time.Millisecond)
	}

	s.logger.Info("[propertyguru] Listing scrape complete: %d raw cards", len(all))
	return all, nil
}

// scrapePage loads one search results page and extracts its listing cards.
func (s *Scraper) scrapePage(allocCtx context.Context, pageURL string, pageNum int) ([]models.RawFields, int, error) {
	var cards []models.RawFields
	var lastPage int

	err := s.retry.Do(allocCtx, fmt.Sprintf("scrape-page-%d", pageNum), func() error {
		ctx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()

		ctx, cancelTimeout := context.WithTimeout(ctx, 90*time.Second)
		defer cancelTimeout()

		var pageTitle string
		var cardHTML []string
		var maxPage int

		err := chromedp.Run(ctx,
			chromedp.Navigate(pageURL),
			chromedp.Sleep(5*time.Second),

			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),

			chromedp.Evaluate(`
				(function() {
					var h1 = document.querySelector('h1.page-title');
					return h1 ? h1.innerText.trim() : '';
				})()
			`, &pageTitle),

			chromedp.Evaluate(`
				Array.from(document.querySelectorAll('.listing-card-banner-root'))
					.map(function(el) { return el.outerHTML; })
			`, &cardHTML),

			// Last numeric entry in the pagination strip
			chromedp.Evaluate(`
				(function() {
					var max = 0;
					var items = document.querySelectorAll('li.page-item a');
					for (var i = 0; i < items.length; i++) {
						var n = parseInt(items[i].innerText.trim(), 10);
						if (!isNaN(n) && n > max) max = n;
					}
					return max;
				})()
			`, &maxPage),
		)
		if err != nil {
			return fmt.Errorf("chromedp page scrape: %w", err)
		}

		if pageTitle != "" {
			s.logger.Debug("[propertyguru] Page %d title: %s", pageNum, pageTitle)
		}

		cards = cards[:0]
		for _, html := range cardHTML {
			raw, err := parseCard(html)
			if err != nil {
				s.logger.Warn("[propertyguru] Card parse failed on page %d: %v", pageNum, err)
				continue
			}
			cards = append(cards, raw)
		}

		lastPage = maxPage
		return nil
	})

	return cards, lastPage, err
}

// parseCard extracts the raw listing fields from one search result card.
func parseCard(html string) (models.RawFields, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("card html: %w", err)
	}

	raw := models.RawFields{}

	raw[models.FieldExternalID] = doc.Find("div[data-listing-id]").First().AttrOr("data-listing-id", "")
	raw[models.FieldTitle] = text(doc.Find("h3.listing-title"))
	raw[models.FieldAddress] = text(doc.Find("div.listing-address"))

	href := doc.Find("a.listing-card-link").First().AttrOr("href", "")
	if href != "" && !strings.HasPrefix(href, "http") {
		href = baseURL + href
	}
	raw[models.FieldURL] = href

	// Fallback: derive the listing id from the URL when the card omits the
	// data attribute.
	if raw[models.FieldExternalID] == "" {
		if m := listingIDRegexp.FindStringSubmatch(href); m != nil {
			raw[models.FieldExternalID] = m[1]
		}
	}

	raw[models.FieldAvailability] = text(doc.Find(`span[da-id="lc-price-badge"]`))

	// Info badges carry both the build year and the "everyone welcome" tag.
	var badges []string
	everyoneWelcomed := false
	doc.Find(`span[da-id="lc-info-badge"]`).Each(func(_ int, sel *goquery.Selection) {
		t := strings.TrimSpace(sel.Text())
		if t == "" {
			return
		}
		badges = append(badges, t)
		if strings.Contains(strings.ToLower(t), "everyone welcome") {
			everyoneWelcomed = true
		}
	})
	raw[models.FieldProjectYear] = strings.Join(badges, "; ")
	raw[models.FieldEveryoneWelcomed] = fmt.Sprintf("%t", everyoneWelcomed)

	location := text(doc.Find("span.listing-location-value"))
	raw[models.FieldClosestMRT] = location
	raw[models.FieldDistanceToMRT] = location

	verified := doc.Find(`span[da-id="verified-listing-badge-button"]`).Length() > 0
	raw[models.FieldVerified] = fmt.Sprintf("%t", verified)

	raw[models.FieldListedDate] = text(doc.Find("ul.listing-recency span.info-value"))
	raw[models.FieldAgentName] = text(doc.Find(`div.agent-info-group a[da-id="lc-agent-name"]`))
	raw[models.FieldAgentRating] = text(doc.Find("div.agent-info-group span.rating-value"))

	price := text(doc.Find("div.listing-price"))
	raw[models.FieldSellingPrice] = price
	raw[models.FieldSellingPriceText] = price

	return raw, nil
}

// ScrapeDetails visits the detail page of every given listing through the
// worker pool and returns the raw detail fields keyed by listing identity.
// Individual page failures are logged and skipped, the listing simply stays
// pending for the next run.
func (s *Scraper) ScrapeDetails(ctx context.Context, pending []*models.Listing) map[models.ListingKey]models.RawFields {
	s.logger.Info("[propertyguru] Starting detail scrape for %d listings", len(pending))

	allocCtx, cancel := s.newBrowser(ctx)
	defer cancel()

	var mu sync.Mutex
	results := make(map[models.ListingKey]models.RawFields, len(pending))

	for _, l := range pending {
		l := l
		if l.URL == "" {
			s.logger.Warn("[propertyguru] Listing %s has no URL, skipping details", l.Key())
			continue
		}

		s.pool.Submit(func() {
			raw, err := s.scrapeDetailPage(allocCtx, l.URL)
			if err != nil {
				s.logger.Warn("[propertyguru] Detail page failed for %s: %v", l.Key(), err)
				return
			}
			mu.Lock()
			results[l.Key()] = raw
			mu.Unlock()
			s.logger.Debug("[propertyguru] Details fetched for %s", l.Key())
		})
	}
	s.pool.Wait()

	s.logger.Info("[propertyguru] Detail scrape complete: %d/%d fetched", len(results), len(pending))
	return results
}

// scrapeDetailPage loads one property page, expands the collapsed detail and
// amenity sections, and parses the resulting document.
func (s *Scraper) scrapeDetailPage(allocCtx context.Context, url string) (models.RawFields, error) {
	var raw models.RawFields

	err := s.retry.Do(allocCtx, "detail-page", func() error {
		ctx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()

		ctx, cancelTimeout := context.WithTimeout(ctx, 60*time.Second)
		defer cancelTimeout()

		var hasSnapshot bool
		var pageHTML string

		err := chromedp.Run(ctx,
			chromedp.Navigate(url),
			chromedp.Sleep(4*time.Second),

			chromedp.Evaluate(`!!document.querySelector('div.property-snapshot-section')`, &hasSnapshot),

			// Expand the "See All" modals so the full tables are in the DOM
			chromedp.Evaluate(`
				(function() {
					var selectors = [
						'section.details-section button[da-id="meta-table-see-more-btn"]',
						'section.property-amenities-section button[da-id="amenities-see-all-btn"]',
						'section.property-facilities-section button[da-id="facilities-see-all-btn"]'
					];
					for (var i = 0; i < selectors.length; i++) {
						var btn = document.querySelector(selectors[i]);
						if (btn) btn.click();
					}
					return true;
				})()
			`, nil),
			chromedp.Sleep(time.Second),

			chromedp.OuterHTML("html", &pageHTML),
		)
		if err != nil {
			return fmt.Errorf("chromedp detail extract: %w", err)
		}
		if !hasSnapshot {
			return fmt.Errorf("no property snapshot section, page likely blocked or removed")
		}

		parsed, err := parseDetails(pageHTML)
		if err != nil {
			return err
		}
		raw = parsed
		return nil
	})

	return raw, err
}

// parseDetails extracts the raw detail fields from a property page. The
// expanded modal is preferred, with the inline details section as the
// fallback when the page is short enough to have no "See All" button.
func parseDetails(html string) (models.RawFields, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("detail html: %w", err)
	}

	raw := models.RawFields{}

	raw[models.FieldDescription] = joinNonEmpty([]string{
		text(doc.Find("h3.subtitle")),
		text(doc.Find("div.description")),
	}, "\n")

	doc.Find("div.amenity").Each(func(_ int, sel *goquery.Selection) {
		alt := sel.Find("img").First().AttrOr("alt", "")
		value := text(sel.Find("p"))
		switch {
		case strings.Contains(alt, "Bed"):
			raw[models.FieldBedroomCount] = value
		case strings.Contains(alt, "Bath"):
			raw[models.FieldBathroomCount] = value
		}
	})

	raw[models.FieldPropertyCategory] = metaValue(doc, "home-open-o")
	raw[models.FieldTenure] = metaValue(doc, "calendar-days-o")

	lines := collectTexts(doc.Find("div.property-modal-body-wrapper p"))
	if len(lines) == 0 {
		lines = collectTexts(doc.Find("section.details-section td div"))
	}
	for _, line := range lines {
		lower := strings.ToLower(line)
		switch {
		case strings.Contains(lower, "furnish") && raw[models.FieldFurnishing] == "":
			raw[models.FieldFurnishing] = line
		case strings.Contains(lower, "sqft floor area") && raw[models.FieldFloorSizeSqft] == "":
			raw[models.FieldFloorSizeSqft] = line
		case strings.Contains(lower, "sqft land area") && raw[models.FieldLandSizeSqft] == "":
			raw[models.FieldLandSizeSqft] = line
		case strings.Contains(lower, "psf") && strings.Contains(lower, "(land)") && raw[models.FieldPSFLand] == "":
			raw[models.FieldPSFLand] = line
		case strings.Contains(lower, "psf") && raw[models.FieldPSFFloor] == "":
			raw[models.FieldPSFFloor] = line
		}
	}
	raw[models.FieldRawDetailsText] = strings.Join(lines, models.AuditDelimiter)

	amenities := collectTexts(doc.Find("div.amenities-facilties-modal-body-wrapper p"))
	if len(amenities) == 0 {
		amenities = collectTexts(doc.Find("section.property-amenities-section p"))
	}
	raw[models.FieldRawAmenitiesText] = strings.Join(amenities, models.AuditDelimiter)

	facilities := collectTexts(doc.Find("section.property-facilities-section p"))
	if len(facilities) == 0 {
		facilities = collectTexts(doc.Find("div.amenities-facilties-modal-body-wrapper p"))
	}
	raw[models.FieldRawFacilitiesText] = strings.Join(facilities, models.AuditDelimiter)

	return raw, nil
}

// metaValue reads the value cell next to a detail-table icon, trying the
// expanded modal first and the inline table second.
func metaValue(doc *goquery.Document, iconAlt string) string {
	for _, scope := range []string{
		"div.property-modal-body-wrapper",
		`div[da-id="property-details"]`,
	} {
		icon := doc.Find(fmt.Sprintf(`%s img[alt=%q]`, scope, iconAlt)).First()
		if icon.Length() == 0 {
			continue
		}
		if v := text(icon.Parent().Children().Eq(1)); v != "" {
			return v
		}
	}
	return ""
}

func collectTexts(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}

func joinNonEmpty(parts []string, sep string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.First().Text())
}

// newBrowser builds the shared headless-browser allocator.
func (s *Scraper) newBrowser(ctx context.Context) (context.Context, context.CancelFunc) {
	chromeBin := s.findChromeBinary()
	s.logger.Debug("[propertyguru] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)

	// Suppress chromedp log noise
	silentCtx, cancelSilent := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	cancel := func() {
		cancelSilent()
		cancelAlloc()
	}
	return silentCtx, cancel
}

// findChromeBinary locates a Chrome/Chromium binary, preferring the
// configured path.
func (s *Scraper) findChromeBinary() string {
	if s.cfg.ChromeBin != "" {
		return s.cfg.ChromeBin
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
