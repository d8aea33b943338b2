package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/CompassSecurity/scanview/pkg/filter"
	"github.com/CompassSecurity/scanview/pkg/page"
	"github.com/CompassSecurity/scanview/pkg/result"
	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() PageData {
	return PageData{
		Target:   "10.0.0.1",
		ReportID: "job-1",
		Action:   "/",
		Results: []result.ScanResult{
			{Host: "10.0.0.1", Port: 22, Protocol: "tcp", Status: "OPEN", Service: "ssh", Confidence: "high"},
			{Host: "10.0.0.1", Port: 80, Protocol: "tcp", Status: "OPEN", Confidence: "medium"},
			{Host: "10.0.0.1", Port: 443, Protocol: "tcp", Status: "CLOSED", Confidence: "high"},
			{Host: "10.0.0.1", Port: 8080, Protocol: "tcp", Status: "OPEN"},
		},
	}
}

func TestRender(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, sampleData()))

	doc, err := page.Parse(&buf)
	require.NoError(t, err)

	rows := page.Rows(doc)
	require.Len(t, rows, 4)
	assert.Equal(t, "CLOSED", rows[2].Status())
	assert.Equal(t, "", rows[3].Confidence())
	assert.Equal(t, "Unknown", strings.TrimSpace(doc.Find(".confidence-unknown").Text()))
	assert.Equal(t, filter.DefaultConfig(), page.ReadConfig(doc))
	assert.Contains(t, doc.Find("footer").Text(), "job-1")
}

func TestRenderWithoutResults(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, PageData{Error: "Invalid target"}))

	doc, err := page.Parse(&buf)
	require.NoError(t, err)

	assert.Equal(t, 0, doc.Find("#showClosed").Length())
	assert.Equal(t, "Invalid target", doc.Find(".error").Text())
}

func TestRenderFiltered(t *testing.T) {
	tests := []struct {
		name          string
		cfg           filter.Config
		expectedStats filter.Stats
		hiddenPorts   []string
	}{
		{
			name:          "defaults hide closed",
			cfg:           filter.DefaultConfig(),
			expectedStats: filter.Stats{Total: 4, Visible: 3, Hidden: 1},
			hiddenPorts:   []string{"443"},
		},
		{
			name:          "high threshold",
			cfg:           filter.Config{ShowClosed: true, MinConfidence: filter.ThresholdHigh},
			expectedStats: filter.Stats{Total: 4, Visible: 2, Hidden: 2},
			hiddenPorts:   []string{"80", "8080"},
		},
		{
			name:          "medium threshold without closed",
			cfg:           filter.Config{ShowClosed: false, MinConfidence: filter.ThresholdMedium},
			expectedStats: filter.Stats{Total: 4, Visible: 2, Hidden: 2},
			hiddenPorts:   []string{"443", "8080"},
		},
		{
			name:          "everything",
			cfg:           filter.Config{ShowClosed: true, MinConfidence: filter.ThresholdAll},
			expectedStats: filter.Stats{Total: 4, Visible: 4, Hidden: 0},
		},
	}

	r, err := NewRenderer()
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			stats, err := r.RenderFiltered(&buf, sampleData(), tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStats, stats)

			doc, err := page.Parse(&buf)
			require.NoError(t, err)
			assert.Equal(t, tt.cfg, page.ReadConfig(doc))

			var hidden []string
			doc.Find(page.RowSelector).Each(func(_ int, row *goquery.Selection) {
				if page.Hidden(row) {
					hidden = append(hidden, row.Find("td").Eq(1).Text())
				}
			})
			assert.Equal(t, tt.hiddenPorts, hidden)

			if tt.expectedStats.Total > 0 {
				assert.Contains(t, doc.Find("#summary").Text(), "Showing")
			}
		})
	}
}
