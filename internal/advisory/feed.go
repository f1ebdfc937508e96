package advisory

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"codeguardian/internal/detect"
	"codeguardian/types"
)

const (
	defaultUpdateInterval = 24 * time.Hour
	fetchTimeout          = 30 * time.Second
)

// Advisory is one entry from the remote sensitive-data advisory feed
type Advisory struct {
	ID         string   `json:"id"`
	Keyword    string   `json:"keyword"`
	Category   string   `json:"category"`
	Severity   string   `json:"severity"`
	Summary    string   `json:"summary"`
	References []string `json:"references"`
}

// feedPayload is the wire format of the advisory endpoint. References may
// arrive as plain URLs or embedded in an HTML snippet.
type feedPayload struct {
	Version    string `json:"version"`
	Advisories []struct {
		ID             string   `json:"id"`
		Keyword        string   `json:"keyword"`
		Category       string   `json:"category"`
		Severity       string   `json:"severity"`
		Summary        string   `json:"summary"`
		References     []string `json:"references"`
		ReferencesHTML string   `json:"references_html"`
	} `json:"advisories"`
}

// Feed keeps an up-to-date set of advisory keywords that extend the builtin
// detection catalog. Without a feed URL, or while the remote endpoint is
// unreachable, detectors simply run on the builtin catalog alone.
type Feed struct {
	url         string
	interval    time.Duration
	client      *http.Client
	advisories  map[string]Advisory
	version     string
	lastUpdated time.Time
	mutex       sync.RWMutex
	stopChan    chan struct{}
	onUpdate    func(source string, keywordCount int)
}

// NewFeed creates a feed for the given endpoint. An empty URL disables
// remote updates entirely.
func NewFeed(url string, interval time.Duration) *Feed {
	if interval <= 0 {
		interval = defaultUpdateInterval
	}
	return &Feed{
		url:        url,
		interval:   interval,
		client:     &http.Client{Timeout: fetchTimeout},
		advisories: make(map[string]Advisory),
		stopChan:   make(chan struct{}),
	}
}

// OnUpdate registers a callback invoked after each successful refresh
func (f *Feed) OnUpdate(fn func(source string, keywordCount int)) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.onUpdate = fn
}

// EnsureLoaded fetches the feed once if nothing has been loaded yet
func (f *Feed) EnsureLoaded() {
	f.mutex.RLock()
	loaded := len(f.advisories) > 0
	f.mutex.RUnlock()

	if !loaded && f.url != "" {
		log.Println("🔄 Loading advisory feed for the first time...")
		f.update()
	}
}

// update fetches the latest advisories and swaps them in atomically.
// Failures leave the previous set in place.
func (f *Feed) update() {
	if f.url == "" {
		return
	}
	log.Println("🔄 Updating advisory feed...")

	resp, err := f.client.Get(f.url)
	if err != nil {
		log.Printf("⚠️  Failed to fetch advisory feed: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("⚠️  Failed to fetch advisory feed: HTTP %d", resp.StatusCode)
		return
	}

	var payload feedPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Printf("⚠️  Failed to parse advisory feed JSON: %v", err)
		return
	}
	if len(payload.Advisories) == 0 {
		log.Printf("⚠️  No advisories found in feed data")
		return
	}

	next := make(map[string]Advisory, len(payload.Advisories))
	for _, raw := range payload.Advisories {
		keyword := strings.ToLower(strings.TrimSpace(raw.Keyword))
		if keyword == "" {
			continue
		}

		references := raw.References
		if raw.ReferencesHTML != "" {
			references = append(references, ExtractReferenceLinks(raw.ReferencesHTML)...)
		}

		next[keyword] = Advisory{
			ID:         raw.ID,
			Keyword:    keyword,
			Category:   raw.Category,
			Severity:   raw.Severity,
			Summary:    raw.Summary,
			References: references,
		}
	}
	if len(next) == 0 {
		log.Printf("⚠️  Advisory feed contained no usable keywords")
		return
	}

	f.mutex.Lock()
	f.advisories = next
	f.version = payload.Version
	f.lastUpdated = time.Now()
	onUpdate := f.onUpdate
	f.mutex.Unlock()

	log.Printf("✅ Advisory feed updated: %d keywords (version %s)", len(next), payload.Version)
	if onUpdate != nil {
		onUpdate(f.url, len(next))
	}
}

// StartPeriodicUpdates refreshes immediately and then on the interval
func (f *Feed) StartPeriodicUpdates(ctx context.Context) {
	if f.url == "" {
		log.Println("📋 Advisory feed disabled: no URL configured")
		return
	}

	f.update()
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.update()
		case <-ctx.Done():
			return
		case <-f.stopChan:
			return
		}
	}
}

// Stop halts the periodic updates
func (f *Feed) Stop() {
	close(f.stopChan)
}

// CatalogEntries converts the current advisories into extra detection
// catalog entries. Empty when nothing has been loaded.
func (f *Feed) CatalogEntries() []detect.CatalogEntry {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	if len(f.advisories) == 0 {
		return nil
	}

	entries := make([]detect.CatalogEntry, 0, len(f.advisories))
	for _, advisory := range f.advisories {
		category := detect.Category(advisory.Category)
		if advisory.Category == "" {
			category = detect.CategoryGeneric
		}
		entries = append(entries, detect.CatalogEntry{
			Keyword:  advisory.Keyword,
			Category: category,
			Severity: types.ParseSeverity(advisory.Severity),
		})
	}
	return entries
}

// Advisories returns a copy of the current advisory set
func (f *Feed) Advisories() []Advisory {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	out := make([]Advisory, 0, len(f.advisories))
	for _, advisory := range f.advisories {
		out = append(out, advisory)
	}
	return out
}

// Lookup returns the advisory for a keyword, if any
func (f *Feed) Lookup(keyword string) (Advisory, bool) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	advisory, ok := f.advisories[strings.ToLower(keyword)]
	return advisory, ok
}

// LastUpdated returns when the feed last refreshed successfully
func (f *Feed) LastUpdated() time.Time {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return f.lastUpdated
}

// ExtractReferenceLinks pulls anchor hrefs out of an HTML snippet
func ExtractReferenceLinks(content string) []string {
	var links []string
	tokenizer := html.NewTokenizer(strings.NewReader(content))

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return links
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			if token.Data != "a" {
				continue
			}
			for _, attr := range token.Attr {
				if attr.Key == "href" && attr.Val != "" {
					links = append(links, attr.Val)
				}
			}
		}
	}
}
