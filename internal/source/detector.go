package source

import (
	"bytes"
	"context"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/hitoshi/postflow/internal/model"
)

// FeedFormat はフィードの形式を表す。
type FeedFormat string

const (
	FeedFormatRSS  FeedFormat = "rss"
	FeedFormatAtom FeedFormat = "atom"
)

// Candidate はWebサイトのheadから見つかったフィードリンク。
type Candidate struct {
	URL    string
	Format FeedFormat
	Title  string
}

const detectAccept = "application/rss+xml, application/atom+xml, application/xml, text/xml, text/html;q=0.9, */*;q=0.1"

// Detector はWebサイトURLからブログフィードのURLを特定する。
type Detector struct {
	guard URLGuard
	fetch fetchConfig
}

// NewDetector はDetectorを生成する。
func NewDetector(guard URLGuard, cfg Config) *Detector {
	return &Detector{
		guard: guard,
		fetch: fetchConfig{timeout: cfg.Timeout, maxBodySize: cfg.MaxBodySize},
	}
}

// Detect はURLを取得し、フィードそのものならそのURLを、
// HTMLなら<link rel="alternate">から選んだフィードURLを返す。
func (d *Detector) Detect(ctx context.Context, siteURL string) (string, error) {
	p, err := fetchPage(ctx, d.guard, d.fetch, siteURL, detectAccept)
	if err != nil {
		return "", err
	}

	mediaType := mediaTypeOf(p.contentType)
	if looksLikeFeed(mediaType, p.body) {
		return siteURL, nil
	}
	if !strings.Contains(mediaType, "html") {
		return "", model.NewFeedNotDetectedError(siteURL)
	}

	best := pickCandidate(alternateLinks(p.body, siteURL), siteURL)
	if best == nil {
		return "", model.NewFeedNotDetectedError(siteURL)
	}
	return best.URL, nil
}

func mediaTypeOf(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mediaType)
}

// looksLikeFeed はメディアタイプとボディ先頭からRSS/Atomかを判定する。
// text/xmlやapplication/xmlはボディを見ないと判別できない。
func looksLikeFeed(mediaType string, body []byte) bool {
	switch mediaType {
	case "application/rss+xml", "application/atom+xml":
		return true
	case "text/xml", "application/xml":
	default:
		return false
	}

	head := body
	if len(head) > 4096 {
		head = head[:4096]
	}
	prefix := strings.ToLower(string(head))
	switch {
	case strings.Contains(prefix, "<rss"), strings.Contains(prefix, "<rdf:rdf"):
		return true
	case strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom"):
		return true
	}
	return false
}

// alternateLinks はheadのうちRSS/Atomを指す<link rel="alternate">を列挙する。
// 相対URLはbaseURLで解決する。bodyに到達した時点で打ち切る。
func alternateLinks(htmlBody []byte, baseURL string) []Candidate {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var found []Candidate
	z := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return found
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return found
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "head":
				inHead = true
				continue
			case "body":
				return found
			case "link":
			default:
				continue
			}
			if !inHead || !hasAttr {
				continue
			}
			if c, ok := linkCandidate(z, base); ok {
				found = append(found, c)
			}
		}
	}
}

func linkCandidate(z *html.Tokenizer, base *url.URL) (Candidate, bool) {
	attrs := make(map[string]string, 4)
	for {
		key, val, more := z.TagAttr()
		attrs[strings.ToLower(string(key))] = string(val)
		if !more {
			break
		}
	}

	if !relContains(attrs["rel"], "alternate") || attrs["href"] == "" {
		return Candidate{}, false
	}

	var format FeedFormat
	switch strings.ToLower(attrs["type"]) {
	case "application/rss+xml":
		format = FeedFormatRSS
	case "application/atom+xml":
		format = FeedFormatAtom
	default:
		return Candidate{}, false
	}

	ref, err := url.Parse(attrs["href"])
	if err != nil {
		return Candidate{}, false
	}
	return Candidate{
		URL:    base.ResolveReference(ref).String(),
		Format: format,
		Title:  attrs["title"],
	}, true
}

// relContains はスペース区切りのrel属性に値が含まれるかを返す。
func relContains(rel, want string) bool {
	for _, v := range strings.Fields(strings.ToLower(rel)) {
		if v == want {
			return true
		}
	}
	return false
}

// pickCandidate は同一ホスト > Atom > 出現順 の優先度で1件選ぶ。
func pickCandidate(candidates []Candidate, siteURL string) *Candidate {
	if len(candidates) == 0 {
		return nil
	}
	siteHost := hostOf(siteURL)

	best, bestScore := 0, -1
	for i, c := range candidates {
		score := 0
		if hostOf(c.URL) == siteHost {
			score += 100
		}
		if c.Format == FeedFormatAtom {
			score += 10
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return &candidates[best]
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
