package discovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
	"github.com/ternarybob/venator/internal/models"
)

// personSelectors are tried in priority order when scanning a page for
// people. Team pages overwhelmingly mark people up with one of these.
var personSelectors = []string{
	".team-member h3", ".team-member h4", ".team .name",
	"[class*='team'] h3", "[class*='people'] h3", "[class*='staff'] h3",
	".person .name", ".member-name",
}

const confidenceTeamPage = 72

// TeamPageConfig controls which pages are probed and how fast.
type TeamPageConfig struct {
	Paths         []string
	Timeout       time.Duration
	RateInterval  time.Duration
	MaxCandidates int
}

// TeamPageProvider discovers contacts by fetching a domain's team/about pages
// and deriving first.last pattern emails from the names found there. Page
// fetches are rate limited so a discovery run cannot hammer a small site.
type TeamPageProvider struct {
	client  *http.Client
	limiter *rate.Limiter
	config  TeamPageConfig
	logger  arbor.ILogger
}

// NewTeamPageProvider creates the scraping provider.
func NewTeamPageProvider(config TeamPageConfig, logger arbor.ILogger) *TeamPageProvider {
	if len(config.Paths) == 0 {
		config.Paths = []string{"/about", "/team", "/about-us", "/contact"}
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.RateInterval <= 0 {
		config.RateInterval = 500 * time.Millisecond
	}
	if config.MaxCandidates <= 0 {
		config.MaxCandidates = 20
	}

	return &TeamPageProvider{
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Every(config.RateInterval), 1),
		config:  config,
		logger:  logger,
	}
}

// Name returns the provider name used in source provenance.
func (p *TeamPageProvider) Name() string {
	return "teampage"
}

// Discover probes the configured paths and emits first.last candidates for
// every person name found. Pages that 404 or fail to parse are skipped.
func (p *TeamPageProvider) Discover(ctx context.Context, domain string, opts interfaces.DiscoveryOptions) ([]models.Contact, error) {
	return p.discoverWithScheme(ctx, domain, "https", opts)
}

func (p *TeamPageProvider) discoverWithScheme(ctx context.Context, domain, scheme string, opts interfaces.DiscoveryOptions) ([]models.Contact, error) {
	if domain == "" {
		return nil, fmt.Errorf("teampage provider requires a domain")
	}

	var contacts []models.Contact
	seen := make(map[string]bool)

	for _, path := range p.config.Paths {
		if len(contacts) >= p.config.MaxCandidates {
			break
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return contacts, err
		}

		pageURL := scheme + "://" + domain + path
		names, err := p.fetchNames(ctx, pageURL)
		if err != nil {
			p.logger.Debug().
				Err(err).
				Str("url", pageURL).
				Msg("Team page fetch skipped")
			continue
		}

		for _, name := range names {
			first, last, ok := splitName(name)
			if !ok {
				continue
			}

			email := fmt.Sprintf("%s.%s@%s", first, last, domain)
			if seen[email] {
				continue
			}
			seen[email] = true

			contacts = append(contacts, models.Contact{
				Email:      email,
				FirstName:  titleCase(first),
				LastName:   titleCase(last),
				Domain:     domain,
				Pattern:    "first.last",
				Confidence: confidenceTeamPage,
				Sources: []models.Source{
					{Provider: p.Name(), URL: pageURL, Notes: "name scraped from team page"},
				},
			})

			if len(contacts) >= p.config.MaxCandidates {
				break
			}
		}
	}

	return contacts, nil
}

// fetchNames downloads a page and extracts person names.
func (p *TeamPageProvider) fetchNames(ctx context.Context, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "venator/"+common.GetVersion())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	return ExtractNames(doc), nil
}

// ExtractNames scans a parsed document for person names using the selector
// priority list. Exported for testing against fixture HTML.
func ExtractNames(doc *goquery.Document) []string {
	var names []string
	seen := make(map[string]bool)

	for _, selector := range personSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			name := strings.TrimSpace(sel.Text())
			if name == "" || seen[name] {
				return
			}
			seen[name] = true
			names = append(names, name)
		})
		if len(names) > 0 {
			break
		}
	}

	return names
}

// splitName reduces a display name to lower-cased first/last tokens. Names
// that are not two-or-more plain words are rejected rather than guessed at.
func splitName(name string) (string, string, bool) {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return "", "", false
	}

	first := sanitizeNameToken(fields[0])
	last := sanitizeNameToken(fields[len(fields)-1])
	if first == "" || last == "" {
		return "", "", false
	}

	return first, last, true
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func sanitizeNameToken(token string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(token) {
		if r >= 'a' && r <= 'z' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
