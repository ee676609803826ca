package driver

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tkummer/hrfetch/internal/config"
	"github.com/tkummer/hrfetch/internal/model"
	"github.com/tkummer/hrfetch/internal/session"
	"github.com/tkummer/hrfetch/internal/store"
)

const searchPage = `<form id="form" name="form" action="/rp_web/erweitertesuche.xhtml">
<input type="hidden" name="javax.faces.ViewState" value="form-state"/>
</form>`

const resultsPage = `<form id="ergebnissForm" action="/rp_web/xhtml/research/sucheErgebnisse.xhtml?cid=7">
<table role="grid">
<tbody id="ergebnissForm:selectedSuchErgebnisFormTable_data">
<tr data-ri="0">
  <td>1</td><td>AG Musterstadt</td><td>Acme GmbH</td><td>Musterstadt</td><td>aktiv</td>
  <td><a id="ergebnissForm:tbl:0:fade">ja</a></td>
</tr>
</tbody>
</table>
<input type="hidden" name="javax.faces.ViewState" value="results-state"/>
</form>`

const emptyResultsPage = `<form id="ergebnissForm" action="/x?cid=7"></form>`

const exportXML = `<?xml version="1.0"?>
<tns:nachricht xmlns:tns="http://www.xjustiz.de">
  <tns:angabenZurRechtsform>
    <tns:rechtsform><!-- Gesellschaft mit beschränkter Haftung --></tns:rechtsform>
  </tns:angabenZurRechtsform>
  <tns:vollerName>
    <tns:vorname>Max</tns:vorname>
    <tns:nachname>Mustermann</tns:nachname>
  </tns:vollerName>
</tns:nachricht>`

// fakeTransport serves the canned walk. failKeyword makes the search
// submission for that keyword fail with a network error.
type fakeTransport struct {
	mu          sync.Mutex
	resultsHTML string
	exportXML   string
	failKeyword string
	requests    int
}

func (f *fakeTransport) Do(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.requests++
	f.mu.Unlock()

	var form string
	if req.Body != nil {
		body, _ := io.ReadAll(req.Body)
		form = string(body)
	}

	switch {
	case strings.HasSuffix(req.URL.Path, "/welcome.xhtml"):
		return respond("", http.Header{"Set-Cookie": {"JSESSIONID=sess-1"}}), nil
	case strings.HasSuffix(req.URL.Path, "/erweitertesuche.xhtml") && req.Method == http.MethodGet:
		return respond(searchPage, nil), nil
	case strings.HasSuffix(req.URL.Path, "/erweitertesuche.xhtml"):
		if f.failKeyword != "" && strings.Contains(form, strings.ReplaceAll(f.failKeyword, " ", "+")) {
			return nil, io.ErrUnexpectedEOF
		}
		return respond(f.resultsHTML, nil), nil
	case strings.HasSuffix(req.URL.Path, "/sucheErgebnisse.xhtml"):
		return respond(f.exportXML, nil), nil
	}
	return respond("", nil), nil
}

func respond(body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestDriver(t *testing.T, ft *fakeTransport) (*Driver, string, *bytes.Buffer) {
	t.Helper()

	cfg := &config.Config{
		BaseURL:     "https://register.example/rp_web",
		Concurrency: 2,
	}
	path := filepath.Join(t.TempDir(), "result.xlsx")
	out := &bytes.Buffer{}

	d := New(cfg, store.New(path), nil, nil, out)
	d.SetTransport(ft)
	return d, path, out
}

func TestRunEndToEnd(t *testing.T) {
	ft := &fakeTransport{resultsHTML: resultsPage, exportXML: exportXML}
	d, path, out := newTestDriver(t, ft)

	outcomes := d.Run(context.Background(), []string{"Acme GmbH"}, model.MatchExact, session.CacheFresh)
	require.Len(t, outcomes, 1)
	require.NoError(t, outcomes[0].Err)
	assert.Contains(t, out.String(), "[1/1] Acme GmbH: OK")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	raw, err := f.GetRows("Current output")
	require.NoError(t, err)
	require.Len(t, raw, 2)

	reconciled, err := f.GetRows("Goal output")
	require.NoError(t, err)
	require.Len(t, reconciled, 2)

	row := reconciled[1]
	assert.Equal(t, "Acme GmbH", row[0])
	assert.Equal(t, "AG Musterstadt", row[1])
	assert.Equal(t, "Musterstadt", row[2])
	assert.Equal(t, "aktiv", row[3])
	assert.Equal(t, "Gesellschaft mit beschränkter Haftung", row[5])
	assert.Equal(t, "Max", row[10])
	assert.Equal(t, "Mustermann", row[11])
}

func TestRunNoResultsWritesNothing(t *testing.T) {
	ft := &fakeTransport{resultsHTML: emptyResultsPage, exportXML: exportXML}
	d, path, out := newTestDriver(t, ft)

	outcomes := d.Run(context.Background(), []string{"Nirgendwo AG"}, model.MatchExact, session.CacheFresh)
	require.ErrorIs(t, outcomes[0].Err, model.ErrNoResults)
	assert.Contains(t, out.String(), "NO RESULTS")

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "no sheet may gain a row for a no-results input")
}

func TestRunUnparseableExportDegrades(t *testing.T) {
	ft := &fakeTransport{resultsHTML: resultsPage, exportXML: ""}
	d, path, _ := newTestDriver(t, ft)

	outcomes := d.Run(context.Background(), []string{"Acme GmbH"}, model.MatchExact, session.CacheFresh)
	require.NoError(t, outcomes[0].Err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	// The listing side persists; the document side stays empty.
	reconciled, err := f.GetRows("Goal output")
	require.NoError(t, err)
	require.Len(t, reconciled, 2)
	assert.Equal(t, "Acme GmbH", reconciled[1][0])
	assert.Less(t, len(reconciled[1]), 11, "document fields must be empty")
}

func TestRunContinuesPastFailures(t *testing.T) {
	ft := &fakeTransport{resultsHTML: resultsPage, exportXML: exportXML, failKeyword: "Bad GmbH"}
	d, _, out := newTestDriver(t, ft)

	outcomes := d.Run(context.Background(), []string{"Bad GmbH", "Acme GmbH"}, model.MatchExact, session.CacheFresh)
	require.Len(t, outcomes, 2)

	var navErr *model.NavigationError
	require.ErrorAs(t, outcomes[0].Err, &navErr)
	assert.Equal(t, model.StepSearch, navErr.Step)

	require.NoError(t, outcomes[1].Err, "a bad name never aborts the batch")
	assert.Contains(t, out.String(), "FAIL")
	assert.Contains(t, out.String(), "[2/2]")
}

func TestReadNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companies.csv")
	content := "Company Name,Note\nAcme GmbH,first\nBeta AG,\n,\n\nGamma KG\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	names, err := ReadNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme GmbH", "Beta AG", "Gamma KG"}, names)
}

func TestReadNamesMissingFile(t *testing.T) {
	_, err := ReadNames(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}
