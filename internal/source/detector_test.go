package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/postflow/internal/model"
	"github.com/hitoshi/postflow/internal/security"
)

// mockGuard はテスト用のURLGuard。httptestサーバー（127.0.0.1）に接続できるよう素のクライアントを返す。
type mockGuard struct {
	validateFn func(rawURL string) error
}

func (m *mockGuard) ValidateURL(rawURL string) error {
	if m.validateFn != nil {
		return m.validateFn(rawURL)
	}
	return nil
}

func (m *mockGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func newTestDetector(guard URLGuard) *Detector {
	return NewDetector(guard, DefaultConfig())
}

func TestLooksLikeFeed(t *testing.T) {
	tests := []struct {
		name      string
		mediaType string
		body      string
		want      bool
	}{
		{"RSSのContent-Type", "application/rss+xml", "", true},
		{"AtomのContent-Type", "application/atom+xml", "", true},
		{"text/xmlとRSSボディ", "text/xml", `<?xml version="1.0"?><rss version="2.0"></rss>`, true},
		{"application/xmlとRDFボディ", "application/xml", `<rdf:RDF xmlns:rdf="x"></rdf:RDF>`, true},
		{"text/xmlとAtomボディ", "text/xml", `<feed xmlns="http://www.w3.org/2005/Atom"></feed>`, true},
		{"名前空間のないfeed要素", "text/xml", `<feed></feed>`, false},
		{"text/xmlとHTMLボディ", "text/xml", `<html><head></head></html>`, false},
		{"HTML", "text/html", `<rss></rss>`, false},
		{"text/xmlで空ボディ", "text/xml", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeFeed(tt.mediaType, []byte(tt.body)); got != tt.want {
				t.Errorf("looksLikeFeed(%q) = %v, want %v", tt.mediaType, got, tt.want)
			}
		})
	}
}

func TestMediaTypeOf(t *testing.T) {
	if got := mediaTypeOf("Application/RSS+XML; charset=utf-8"); got != "application/rss+xml" {
		t.Errorf("mediaTypeOf = %q", got)
	}
	if got := mediaTypeOf("text/html;;"); got != "text/html" {
		t.Errorf("mediaTypeOf(malformed) = %q", got)
	}
}

func TestAlternateLinks(t *testing.T) {
	body := `<html><head>
		<link rel="stylesheet" href="/style.css">
		<link rel="alternate" type="application/rss+xml" href="/feed.xml" title="RSS">
		<link rel="alternate nofollow" type="application/atom+xml" href="https://brand.example.com/atom.xml">
		<link rel="alternate" type="text/html" href="/ja/">
		<link rel="alternate" type="application/rss+xml" href="">
	</head><body>
		<link rel="alternate" type="application/rss+xml" href="/in-body.xml">
	</body></html>`

	got := alternateLinks([]byte(body), "https://brand.example.com/blog/")
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(got), got)
	}
	if got[0].URL != "https://brand.example.com/feed.xml" || got[0].Format != FeedFormatRSS || got[0].Title != "RSS" {
		t.Errorf("unexpected first candidate: %+v", got[0])
	}
	if got[1].URL != "https://brand.example.com/atom.xml" || got[1].Format != FeedFormatAtom {
		t.Errorf("unexpected second candidate: %+v", got[1])
	}
}

func TestAlternateLinks_NoHead(t *testing.T) {
	if got := alternateLinks([]byte(`<p>no head</p>`), "https://brand.example.com"); len(got) != 0 {
		t.Errorf("expected no candidates, got %+v", got)
	}
}

func TestPickCandidate(t *testing.T) {
	tests := []struct {
		name       string
		candidates []Candidate
		want       string
	}{
		{
			name: "同一ホストを優先",
			candidates: []Candidate{
				{URL: "https://feeds.example.net/atom.xml", Format: FeedFormatAtom},
				{URL: "https://brand.example.com/rss.xml", Format: FeedFormatRSS},
			},
			want: "https://brand.example.com/rss.xml",
		},
		{
			name: "同条件ならAtom",
			candidates: []Candidate{
				{URL: "https://brand.example.com/rss.xml", Format: FeedFormatRSS},
				{URL: "https://brand.example.com/atom.xml", Format: FeedFormatAtom},
			},
			want: "https://brand.example.com/atom.xml",
		},
		{
			name: "完全に同条件なら先頭",
			candidates: []Candidate{
				{URL: "https://brand.example.com/a.xml", Format: FeedFormatRSS},
				{URL: "https://brand.example.com/b.xml", Format: FeedFormatRSS},
			},
			want: "https://brand.example.com/a.xml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pickCandidate(tt.candidates, "https://brand.example.com/")
			if got == nil || got.URL != tt.want {
				t.Errorf("pickCandidate() = %+v, want %s", got, tt.want)
			}
		})
	}

	if pickCandidate(nil, "https://brand.example.com/") != nil {
		t.Error("pickCandidate(nil) should return nil")
	}
}

func TestDetect_DirectFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		fmt.Fprint(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>Blog</title></channel></rss>`)
	}))
	defer server.Close()

	got, err := newTestDetector(&mockGuard{}).Detect(context.Background(), server.URL+"/feed")
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if got != server.URL+"/feed" {
		t.Errorf("Detect = %s, want %s/feed", got, server.URL)
	}
}

func TestDetect_HTMLWithRelativeLink(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><link rel="alternate" type="application/atom+xml" href="/atom.xml"></head><body></body></html>`)
	}))
	defer server.Close()

	got, err := newTestDetector(&mockGuard{}).Detect(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("Detect returned error: %v", err)
	}
	if got != server.URL+"/atom.xml" {
		t.Errorf("Detect = %s, want %s/atom.xml", got, server.URL)
	}
}

func TestDetect_Errors(t *testing.T) {
	htmlNoFeed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Brand</title></head><body></body></html>`)
	}))
	defer htmlNoFeed.Close()

	image := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	defer image.Close()

	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer notFound.Close()

	blocked := &mockGuard{validateFn: func(string) error {
		return fmt.Errorf("%w: 10.0.0.1", security.ErrBlockedDestination)
	}}
	invalid := &mockGuard{validateFn: func(string) error {
		return fmt.Errorf("%w: disallowed scheme", security.ErrInvalidURL)
	}}

	tests := []struct {
		name     string
		guard    URLGuard
		url      string
		wantCode string
	}{
		{"フィードリンクのないHTML", &mockGuard{}, htmlNoFeed.URL, model.ErrCodeFeedNotDetected},
		{"HTMLでもフィードでもない", &mockGuard{}, image.URL, model.ErrCodeFeedNotDetected},
		{"404", &mockGuard{}, notFound.URL, model.ErrCodeFetchFailed},
		{"SSRFブロック", blocked, "http://10.0.0.1/", model.ErrCodeSSRFBlocked},
		{"不正なURL", invalid, "ftp://example.com/", model.ErrCodeInvalidURL},
		{"空URL", &mockGuard{}, "", model.ErrCodeInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestDetector(tt.guard).Detect(context.Background(), tt.url)
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *model.APIError, got %T (%v)", err, err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", apiErr.Code, tt.wantCode)
			}
			if apiErr.Action == "" {
				t.Error("Action should not be empty")
			}
		})
	}
}
