package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/venator/internal/common"
	"github.com/ternarybob/venator/internal/interfaces"
)

const teamPageFixture = `
<html><body>
  <div class="team">
    <div class="team-member"><h3>Jane Doe</h3><p>Owner</p></div>
    <div class="team-member"><h3>Sam Q. Smith</h3><p>General Manager</p></div>
    <div class="team-member"><h3>Cher</h3><p>Front desk</p></div>
    <div class="team-member"><h3>Jane Doe</h3><p>Duplicate entry</p></div>
  </div>
</body></html>`

func TestExtractNames(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(teamPageFixture))
	require.NoError(t, err)

	names := ExtractNames(doc)
	assert.Equal(t, []string{"Jane Doe", "Sam Q. Smith", "Cher"}, names)
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		name  string
		first string
		last  string
		ok    bool
	}{
		{"Jane Doe", "jane", "doe", true},
		{"Sam Q. Smith", "sam", "smith", true},
		{"  O'Brien  MacDonald ", "obrien", "macdonald", true},
		{"Cher", "", "", false},
		{"123 456", "", "", false},
	}

	for _, tt := range tests {
		first, last, ok := splitName(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		if tt.ok {
			assert.Equal(t, tt.first, first, tt.name)
			assert.Equal(t, tt.last, last, tt.name)
		}
	}
}

func TestTeamPageProviderDiscover(t *testing.T) {
	var userAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		if r.URL.Path != "/team" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, teamPageFixture)
	}))
	defer srv.Close()

	p := NewTeamPageProvider(TeamPageConfig{
		Paths:        []string{"/about", "/team"},
		RateInterval: time.Millisecond,
	}, arbor.NewLogger())
	// Point the provider at the test server instead of https://{domain}
	p.client = srv.Client()

	domain := strings.TrimPrefix(srv.URL, "http://")
	contacts, err := p.discoverWithScheme(context.Background(), domain, "http", interfaces.DiscoveryOptions{})
	require.NoError(t, err)

	require.Len(t, contacts, 2, "one-word names are rejected, duplicates collapse")
	assert.Equal(t, "jane.doe@"+domain, contacts[0].Email)
	assert.Equal(t, "Jane", contacts[0].FirstName)
	assert.Equal(t, "first.last", contacts[0].Pattern)
	require.Len(t, contacts[0].Sources, 1)
	assert.Equal(t, "teampage", contacts[0].Sources[0].Provider)
	assert.Equal(t, "venator/"+common.GetVersion(), userAgent, "outbound requests identify the build version")
}
