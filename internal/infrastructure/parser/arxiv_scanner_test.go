package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsDigest/internal/domain"
	"NewsDigest/internal/scanner"
)

func TestBuildPageURL(t *testing.T) {
	t.Parallel()

	base := "https://export.arxiv.org/list/cs.AI/pastweek"
	u, err := buildPageURL(base, 200, 100)
	if err != nil {
		t.Fatalf("buildPageURL returned error: %v", err)
	}

	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("parse result: %v", err)
	}

	if parsed.Scheme != "https" || parsed.Host != "export.arxiv.org" {
		t.Fatalf("unexpected host: %s", parsed.Host)
	}

	q := parsed.Query()
	if q.Get("skip") != "200" {
		t.Fatalf("expected skip=200, got %s", q.Get("skip"))
	}
	if q.Get("show") != "100" {
		t.Fatalf("expected show=100, got %s", q.Get("show"))
	}
}

func TestParseEntry(t *testing.T) {
	t.Parallel()

	html := `
	<dl>
	  <dt>
	    <span class="list-identifier"><a href="/abs/1234.56789">arXiv:1234.56789</a></span>
	  </dt>
	  <dd>
	    <div class="list-date">Date: 8 Nov 2025</div>
	    <div class="list-title mathjax">Title: Sample Title</div>
	    <p class="mathjax">Abstract: Sample abstract text.</p>
	  </dd>
	</dl>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	item, err := parseEntry(doc.Find("dt").First(), doc.Find("dd").First(), "arxiv-ai", "cs.AI")
	if err != nil {
		t.Fatalf("parseEntry error: %v", err)
	}

	if item.OriginID != "https://arxiv.org/abs/1234.56789" {
		t.Fatalf("unexpected origin id: %s", item.OriginID)
	}
	if item.Metadata[metaArxivID] != "arXiv:1234.56789" {
		t.Fatalf("unexpected arxiv id: %s", item.Metadata[metaArxivID])
	}
	if item.Title != "Sample Title" {
		t.Fatalf("unexpected title: %s", item.Title)
	}
	if item.ShortDescription != "Sample abstract text." {
		t.Fatalf("unexpected abstract: %s", item.ShortDescription)
	}
	if item.SourceName != "arxiv-ai" || item.Metadata[domain.MetaCategory] != "cs.AI" {
		t.Fatalf("unexpected source: %s %v", item.SourceName, item.Metadata)
	}

	wantDate := time.Date(2025, time.November, 8, 0, 0, 0, 0, time.UTC)
	if !item.PublishedAt.Equal(wantDate) {
		t.Fatalf("unexpected published date: %v", item.PublishedAt)
	}
}

func TestParseEntryRejectsMissingDate(t *testing.T) {
	t.Parallel()

	html := `<dl><dt><a href="/abs/1.2">arXiv:1.2</a></dt><dd><div class="list-title">Title: No date</div></dd></dl>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	if _, err := parseEntry(doc.Find("dt").First(), doc.Find("dd").First(), "arxiv-ai", ""); err == nil {
		t.Fatalf("expected error for entry without date")
	}
}

func TestArxivScannerScan(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<dl>
		  <dt>
		    <span class="list-identifier"><a href="/abs/2501.00001">arXiv:2501.00001</a></span>
		  </dt>
		  <dd>
		    <div class="list-date">Date: 8 Nov 2025</div>
		    <div class="list-title mathjax">Title: Fresh Article</div>
		    <p class="mathjax">Abstract: brand new.</p>
		  </dd>
		  <dt>
		    <span class="list-identifier"><a href="/abs/2501.00003">arXiv:2501.00003</a></span>
		  </dt>
		  <dd>
		    <div class="list-title mathjax">Title: Undated Article</div>
		    <p class="mathjax">Abstract: no date.</p>
		  </dd>
		  <dt>
		    <span class="list-identifier"><a href="/abs/2501.00002">arXiv:2501.00002</a></span>
		  </dt>
		  <dd>
		    <div class="list-date">Date: 6 Nov 2025</div>
		    <div class="list-title mathjax">Title: Old Article</div>
		    <p class="mathjax">Abstract: older.</p>
		  </dd>
		</dl>`))
	}))
	defer server.Close()

	sc := NewArxivScanner(server.Client(), nil)
	sc.pageSize = 10

	req := scanner.Request{
		Now:      time.Date(2025, time.November, 8, 15, 0, 0, 0, time.UTC),
		Window:   24 * time.Hour,
		SiteName: "arxiv-ai",
		Categories: []scanner.Category{
			{Name: "cs.AI", URL: server.URL + "/list/cs.AI"},
		},
	}

	items, err := sc.Scan(context.Background(), req)
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].OriginID != "https://arxiv.org/abs/2501.00001" {
		t.Fatalf("unexpected origin id: %s", items[0].OriginID)
	}
	if items[0].ShortDescription != "brand new." {
		t.Fatalf("unexpected abstract: %s", items[0].ShortDescription)
	}
}

func TestParseEntryWithoutAbstractKeepsTitleOut(t *testing.T) {
	t.Parallel()

	html := `
	<dl>
	  <dt><a href="/abs/2501.00002">arXiv:2501.00002</a></dt>
	  <dd>
	    <div class="list-date">Date: 8 Nov 2025</div>
	    <div class="list-title mathjax">Title: Only A Title</div>
	  </dd>
	</dl>`

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("new document: %v", err)
	}

	item, err := parseEntry(doc.Find("dt").First(), doc.Find("dd").First(), "arxiv-ai", "")
	if err != nil {
		t.Fatalf("parseEntry error: %v", err)
	}
	if item.Title != "Only A Title" {
		t.Fatalf("unexpected title: %s", item.Title)
	}
	if item.ShortDescription != "" {
		t.Fatalf("expected empty abstract, got %q", item.ShortDescription)
	}
}

func TestArxivScannerRequiresCategories(t *testing.T) {
	t.Parallel()

	sc := NewArxivScanner(nil, nil)
	if _, err := sc.Scan(context.Background(), scanner.Request{SiteName: "arxiv-ai"}); err == nil {
		t.Fatalf("expected error without categories")
	}
}
