package filter

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/CompassSecurity/scanview/pkg/config"
	rowfilter "github.com/CompassSecurity/scanview/pkg/filter"
	"github.com/CompassSecurity/scanview/pkg/page"
	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<!DOCTYPE html>
<html><body>
<input type="checkbox" id="showClosed" checked>
<select id="minConfidence"><option value="all">All</option><option value="high" selected>High</option><option value="medium">Medium</option></select>
<table>
<tr id="ssh" class="result-row" data-status="OPEN" data-confidence="high"><td>22</td></tr>
<tr id="http" class="result-row" data-status="OPEN" data-confidence="medium"><td>80</td></tr>
<tr id="https" class="result-row" data-status="CLOSED" data-confidence="high"><td>443</td></tr>
<tr id="alt" class="result-row" data-status="OPEN" data-confidence="low"><td>8080</td></tr>
</table>
</body></html>`

func writePage(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.html")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func hiddenIDs(t *testing.T, html []byte) []string {
	t.Helper()
	doc, err := page.Parse(bytes.NewReader(html))
	require.NoError(t, err)

	ids := []string{}
	doc.Find(page.RowSelector).Each(func(_ int, s *goquery.Selection) {
		if page.Hidden(s) {
			ids = append(ids, s.AttrOr("id", ""))
		}
	})
	return ids
}

func newOptions(input string) FilterCommandOptions {
	return FilterCommandOptions{ViewOptions: config.DefaultViewOptions(), Input: input}
}

func TestFilterWithFlags(t *testing.T) {
	tests := []struct {
		name     string
		view     config.ViewOptions
		expected []string
	}{
		{
			name:     "defaults hide closed",
			view:     config.ViewOptions{ShowClosed: false, MinConfidence: "all"},
			expected: []string{"https"},
		},
		{
			name:     "medium threshold",
			view:     config.ViewOptions{ShowClosed: true, MinConfidence: "medium"},
			expected: []string{"alt"},
		},
		{
			name:     "high threshold without closed",
			view:     config.ViewOptions{ShowClosed: false, MinConfidence: "high"},
			expected: []string{"http", "https", "alt"},
		},
		{
			name:     "unknown threshold behaves like all",
			view:     config.ViewOptions{ShowClosed: true, MinConfidence: "critical"},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := newOptions(writePage(t, resultsPage))
			options.ViewOptions = tt.view

			var out bytes.Buffer
			require.NoError(t, Filter(context.Background(), options, &out))
			assert.Equal(t, tt.expected, hiddenIDs(t, out.Bytes()))

			doc, err := page.Parse(bytes.NewReader(out.Bytes()))
			require.NoError(t, err)
			assert.Equal(t, tt.view.ShowClosed, page.ReadConfig(doc).ShowClosed)
		})
	}
}

func TestFilterFromPage(t *testing.T) {
	options := newOptions(writePage(t, resultsPage))
	options.FromPage = true

	var out bytes.Buffer
	require.NoError(t, Filter(context.Background(), options, &out))

	// page controls: show closed, high only
	assert.Equal(t, []string{"http", "alt"}, hiddenIDs(t, out.Bytes()))
}

func TestFilterFromPageWithoutControls(t *testing.T) {
	src := `<html><body><table><tr id="a" class="result-row" data-status="CLOSED" data-confidence="low"><td>1</td></tr></table></body></html>`
	options := newOptions(writePage(t, src))
	options.FromPage = true

	var out bytes.Buffer
	require.NoError(t, Filter(context.Background(), options, &out))
	assert.Empty(t, hiddenIDs(t, out.Bytes()))
}

func TestFilterIdempotent(t *testing.T) {
	options := newOptions(writePage(t, resultsPage))
	options.MinConfidence = "medium"

	var first bytes.Buffer
	require.NoError(t, Filter(context.Background(), options, &first))

	again := newOptions(writePage(t, first.String()))
	again.MinConfidence = "medium"

	var second bytes.Buffer
	require.NoError(t, Filter(context.Background(), again, &second))

	assert.Equal(t, first.String(), second.String())
}

func TestFilterWritesOutputFile(t *testing.T) {
	options := newOptions(writePage(t, resultsPage))
	options.Output = filepath.Join(t.TempDir(), "filtered.html")

	var stdout bytes.Buffer
	require.NoError(t, Filter(context.Background(), options, &stdout))
	assert.Empty(t, stdout.String())

	content, err := os.ReadFile(options.Output)
	require.NoError(t, err)
	assert.Equal(t, []string{"https"}, hiddenIDs(t, content))
}

func TestFilterFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "scanview", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(resultsPage))
	}))
	defer server.Close()

	options := FilterCommandOptions{ViewOptions: config.DefaultViewOptions(), URL: server.URL}
	options.ShowClosed = true
	options.MinConfidence = string(rowfilter.ThresholdHigh)

	var out bytes.Buffer
	require.NoError(t, Filter(context.Background(), options, &out))
	assert.Equal(t, []string{"http", "alt"}, hiddenIDs(t, out.Bytes()))
}

func TestFilterErrors(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		options := newOptions(filepath.Join(t.TempDir(), "missing.html"))
		assert.Error(t, Filter(context.Background(), options, &bytes.Buffer{}))
	})

	t.Run("input too large", func(t *testing.T) {
		options := newOptions(writePage(t, resultsPage))
		options.MaxResultsSize = 10
		assert.Error(t, Filter(context.Background(), options, &bytes.Buffer{}))
	})

	t.Run("output directory missing", func(t *testing.T) {
		options := newOptions(writePage(t, resultsPage))
		options.Output = filepath.Join(t.TempDir(), "missing", "out.html")
		assert.Error(t, Filter(context.Background(), options, &bytes.Buffer{}))
	})
}

func TestFilterCommand(t *testing.T) {
	input := writePage(t, resultsPage)
	output := filepath.Join(t.TempDir(), "out.html")

	cmd := NewFilterCmd()
	cmd.SetArgs([]string{"--input", input, "--output", output, "--show-closed", "--min-confidence", "medium"})
	require.NoError(t, cmd.Execute())

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, []string{"alt"}, hiddenIDs(t, content))
}

func TestFilterCommandFlagValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no source", args: []string{}},
		{name: "both sources", args: []string{"--input", "a.html", "--url", "http://localhost"}},
		{name: "invalid url", args: []string{"--url", "localhost/results"}},
		{name: "invalid size", args: []string{"--input", "a.html", "--max-size", "huge"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewFilterCmd()
			cmd.SetArgs(tt.args)
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetErr(&bytes.Buffer{})
			assert.Error(t, cmd.Execute())
		})
	}
}
