// Package session drives the register's stateful search walk: landing page,
// search form submission, and the hidden-state-bearing document export.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/tkummer/hrfetch/internal/model"
)

// CacheMode controls whether a cached results page may stand in for the
// live search fetch.
type CacheMode int

const (
	// CacheUse serves the results page from the cache when present.
	CacheUse CacheMode = iota
	// CacheFresh forces a live fetch and overwrites any cached page.
	CacheFresh
)

// ResponseCache stores raw results-page bytes keyed by the exact keyword
// string. The document export is never cached.
type ResponseCache interface {
	Get(ctx context.Context, keywords string) ([]byte, bool, error)
	Put(ctx context.Context, keywords string, body []byte) error
}

// Phase is the navigator's position in the walk. Transitions are strictly
// ordered; a step invoked out of order is a programming error, not a
// network failure.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseSearchSubmitted
	PhaseResultsReceived
	PhaseDocumentRequested
)

// Result is the outcome of one completed walk.
type Result struct {
	ResultsHTML   string
	DocumentBytes []byte
}

// exportTarget carries the facts threaded from the results page into the
// document-export request.
type exportTarget struct {
	queryString string // query portion of the results form's action URL
	viewState   string // hidden javax.faces.ViewState token
	anchorID    string // id of the row's last anchor; names the export field
}

// Navigator owns one query's session: cookies, phase, and the view-state
// token threaded between steps. It is single-use; run one query, then
// discard it.
type Navigator struct {
	transport Transport
	cache     ResponseCache // nil disables caching
	baseURL   string
	logger    *slog.Logger

	phase   Phase
	cookies map[string]string
}

// New creates a navigator for a single query. baseURL is the register's
// application root, e.g. https://www.handelsregister.de/rp_web.
func New(transport Transport, cache ResponseCache, baseURL string, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{
		transport: transport,
		cache:     cache,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
		phase:     PhaseStart,
		cookies:   map[string]string{},
	}
}

// Phase reports where the walk currently stands.
func (n *Navigator) Phase() Phase { return n.phase }

// RunQuery performs the full walk for one query and returns the raw results
// page plus the raw document export. There are no retries: a failure at any
// step aborts the query.
func (n *Navigator) RunQuery(ctx context.Context, query model.SearchQuery, mode CacheMode) (*Result, error) {
	// Reject bad modes before any network traffic.
	code, err := query.Mode.Code()
	if err != nil {
		return nil, err
	}

	if err := n.openStart(ctx); err != nil {
		return nil, err
	}

	resultsHTML, err := n.fetchResults(ctx, query, code, mode)
	if err != nil {
		return nil, err
	}

	target, err := n.readExportTarget(resultsHTML)
	if err != nil {
		return nil, err
	}

	documentBytes, err := n.requestDocument(ctx, target)
	if err != nil {
		return nil, err
	}

	return &Result{ResultsHTML: resultsHTML, DocumentBytes: documentBytes}, nil
}

// openStart loads the landing page to establish the session cookie.
func (n *Navigator) openStart(ctx context.Context) error {
	if n.phase != PhaseStart {
		return fmt.Errorf("walk out of order: phase %d at start", n.phase)
	}

	_, err := n.get(ctx, n.baseURL+"/welcome.xhtml")
	if err != nil {
		return model.NavErr(model.StepStart, err)
	}

	n.logger.Debug("session established", "cookies", len(n.cookies))
	return nil
}

// fetchResults produces the raw results page, from cache when allowed or by
// submitting the advanced-search form.
func (n *Navigator) fetchResults(ctx context.Context, query model.SearchQuery, code string, mode CacheMode) (string, error) {
	if n.cache != nil && mode == CacheUse {
		body, ok, err := n.cache.Get(ctx, query.Keywords)
		if err != nil {
			n.logger.Debug("cache read failed, fetching live", "error", err)
		} else if ok {
			n.logger.Debug("results page served from cache", "keywords", query.Keywords)
			n.phase = PhaseResultsReceived
			return string(body), nil
		}
	}

	html, err := n.submitSearch(ctx, query, code)
	if err != nil {
		return "", err
	}

	if n.cache != nil {
		if err := n.cache.Put(ctx, query.Keywords, []byte(html)); err != nil {
			n.logger.Debug("cache write failed", "error", err)
		}
	}
	return html, nil
}

// submitSearch loads the advanced-search page, fills the named search form
// and submits it. The response is the raw results page.
func (n *Navigator) submitSearch(ctx context.Context, query model.SearchQuery, code string) (string, error) {
	if n.phase != PhaseStart {
		return "", fmt.Errorf("walk out of order: phase %d at search", n.phase)
	}

	searchURL := n.baseURL + "/erweitertesuche.xhtml"
	page, err := n.get(ctx, searchURL)
	if err != nil {
		return "", model.NavErr(model.StepSearch, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(page)))
	if err != nil {
		return "", model.NavErr(model.StepSearch, err)
	}

	form := doc.Find("form[name='form']").First()
	if form.Length() == 0 {
		return "", model.NavErr(model.StepSearch, errors.New("search form not found"))
	}

	// Carry every hidden input (the UI framework's form state), then set
	// the two fields a user would fill in.
	values := url.Values{}
	form.Find("input[type='hidden']").Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok {
			return
		}
		values.Set(name, in.AttrOr("value", ""))
	})
	values.Set("form", "form")
	values.Set("form:schlagwoerter", query.Keywords)
	values.Set("form:schlagwortOptionen", code)

	action := form.AttrOr("action", "")
	actionURL, err := n.resolve(searchURL, action)
	if err != nil {
		return "", model.NavErr(model.StepSearch, err)
	}
	n.phase = PhaseSearchSubmitted

	body, err := n.postForm(ctx, actionURL, values)
	if err != nil {
		return "", model.NavErr(model.StepSearch, err)
	}

	n.phase = PhaseResultsReceived
	n.logger.Debug("search submitted", "keywords", query.Keywords, "mode", code)
	return string(body), nil
}

// readExportTarget checks the results page for a hit and collects the facts
// the export request must echo back. A missing results table, first row or
// row anchor means the search found nothing.
func (n *Navigator) readExportTarget(resultsHTML string) (*exportTarget, error) {
	if n.phase != PhaseResultsReceived {
		return nil, fmt.Errorf("walk out of order: phase %d at results", n.phase)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(resultsHTML))
	if err != nil {
		return nil, model.NavErr(model.StepResults, err)
	}

	tbody := doc.Find("tbody[id='ergebnissForm:selectedSuchErgebnisFormTable_data']").First()
	if tbody.Length() == 0 {
		return nil, model.ErrNoResults
	}
	firstRow := tbody.Find("tr").First()
	if firstRow.Length() == 0 {
		return nil, model.ErrNoResults
	}
	anchors := firstRow.Find("a[id]")
	if anchors.Length() == 0 {
		return nil, model.ErrNoResults
	}
	anchorID := anchors.Last().AttrOr("id", "")

	form := doc.Find("form[id='ergebnissForm']").First()
	if form.Length() == 0 {
		return nil, model.NavErr(model.StepResults, errors.New("results form not found"))
	}
	action := form.AttrOr("action", "")
	queryString := ""
	if i := strings.Index(action, "?"); i >= 0 {
		queryString = action[i+1:]
	}

	viewState := doc.Find("input[name='javax.faces.ViewState']").First().AttrOr("value", "")
	if viewState == "" {
		return nil, model.NavErr(model.StepResults, errors.New("view-state token not found"))
	}

	return &exportTarget{
		queryString: queryString,
		viewState:   viewState,
		anchorID:    anchorID,
	}, nil
}

// requestDocument issues the export POST. The row's anchor id doubles as
// field name and value; that is how the application addresses the row.
func (n *Navigator) requestDocument(ctx context.Context, target *exportTarget) ([]byte, error) {
	if n.phase != PhaseResultsReceived {
		return nil, fmt.Errorf("walk out of order: phase %d at export", n.phase)
	}

	exportURL := n.baseURL + "/xhtml/research/sucheErgebnisse.xhtml"
	if target.queryString != "" {
		exportURL += "?" + target.queryString
	}

	values := url.Values{}
	values.Set("ergebnissForm", "ergebnissForm")
	values.Set("ergebnissForm:selectedSuchErgebnisFormTable_rppDD", "10")
	values.Set("javax.faces.ViewState", target.viewState)
	values.Set("property2", "")
	values.Set(target.anchorID, target.anchorID)
	values.Set("property", "Global.Dokumentart.SI")

	body, err := n.postForm(ctx, exportURL, values)
	if err != nil {
		return nil, model.NavErr(model.StepExport, err)
	}

	n.phase = PhaseDocumentRequested
	n.logger.Debug("document export received", "bytes", len(body))
	return body, nil
}

func (n *Navigator) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	return n.send(req)
}

func (n *Navigator) postForm(ctx context.Context, rawURL string, values url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return n.send(req)
}

// send issues one request with browser headers and the session cookies,
// then absorbs any Set-Cookie values into the session state.
func (n *Navigator) send(req *http.Request) ([]byte, error) {
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	if header := n.cookieHeader(); header != "" {
		req.Header.Set("Cookie", header)
	}

	resp, err := n.transport.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	for _, c := range resp.Cookies() {
		n.cookies[c.Name] = c.Value
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s for %s", resp.Status, req.URL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// cookieHeader renders the session cookies, JSESSIONID first.
func (n *Navigator) cookieHeader() string {
	var parts []string
	if v, ok := n.cookies["JSESSIONID"]; ok {
		parts = append(parts, "JSESSIONID="+v)
	}
	for name, v := range n.cookies {
		if name == "JSESSIONID" {
			continue
		}
		parts = append(parts, name+"="+v)
	}
	return strings.Join(parts, "; ")
}

// resolve interprets a form action relative to the page it came from.
func (n *Navigator) resolve(pageURL, action string) (string, error) {
	if action == "" {
		return pageURL, nil
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(action)
	if err != nil {
		return "", fmt.Errorf("bad form action %q: %w", action, err)
	}
	return base.ResolveReference(ref).String(), nil
}
