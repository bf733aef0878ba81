package replay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

var (
	gameIDRe = regexp.MustCompile(`/game/([a-f0-9-]+)`)
	playerRe = regexp.MustCompile(`/leaderboard/[^/]+/([^/]+)/stats`)
)

const userAgent = "snork-replay/1.0"

// Player is an entry of a leaderboard page.
type Player struct {
	Name     string
	StatsURL string
}

func fetch(ctx context.Context, client *http.Client, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d", pageURL, resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// Discover returns the game ids linked from a page, in page order and
// without duplicates.
func Discover(ctx context.Context, client *http.Client, pageURL string) ([]string, error) {
	doc, err := fetch(ctx, client, pageURL)
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := map[string]bool{}
	doc.Find("a[href*='/game/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		if m := gameIDRe.FindStringSubmatch(href); len(m) == 2 && !seen[m[1]] {
			seen[m[1]] = true
			ids = append(ids, m[1])
		}
	})
	return ids, nil
}

// Players returns the players linked from a leaderboard page. Stats URLs
// are resolved against the page URL.
func Players(ctx context.Context, client *http.Client, leaderboardURL string) ([]Player, error) {
	base, err := url.Parse(leaderboardURL)
	if err != nil {
		return nil, err
	}
	doc, err := fetch(ctx, client, leaderboardURL)
	if err != nil {
		return nil, err
	}

	var players []Player
	seen := map[string]bool{}
	doc.Find("a[href*='/leaderboard/']").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		m := playerRe.FindStringSubmatch(href)
		if len(m) != 2 || seen[m[1]] {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		seen[m[1]] = true
		players = append(players, Player{Name: m[1], StatsURL: base.ResolveReference(ref).String()})
	})
	return players, nil
}
