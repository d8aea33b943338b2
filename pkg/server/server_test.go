package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/CompassSecurity/scanview/pkg/filter"
	"github.com/CompassSecurity/scanview/pkg/page"
	"github.com/CompassSecurity/scanview/pkg/report"
	"github.com/CompassSecurity/scanview/pkg/result"
	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport() *result.Report {
	return &result.Report{
		ID:     "job-1",
		Target: "10.0.0.1",
		Results: []result.ScanResult{
			{Host: "10.0.0.1", Port: 22, Protocol: "tcp", Status: "OPEN", Confidence: "high"},
			{Host: "10.0.0.1", Port: 80, Protocol: "tcp", Status: "OPEN", Confidence: "medium"},
			{Host: "10.0.0.1", Port: 443, Protocol: "tcp", Status: "CLOSED", Confidence: "high"},
			{Host: "10.0.0.1", Port: 8080, Protocol: "tcp", Status: "OPEN", Confidence: "low"},
		},
	}
}

func newTestServer(t *testing.T, defaults filter.Config) *httptest.Server {
	t.Helper()
	renderer, err := report.NewRenderer()
	require.NoError(t, err)

	srv := httptest.NewServer(NewHandler(renderer, testReport(), defaults).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func fetch(t *testing.T, url string) (*http.Response, *goquery.Document) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	doc, err := page.Parse(resp.Body)
	require.NoError(t, err)
	return resp, doc
}

func visiblePorts(doc *goquery.Document) []string {
	ports := []string{}
	doc.Find(page.RowSelector).Each(func(_ int, s *goquery.Selection) {
		if !page.Hidden(s) {
			ports = append(ports, s.Find("td").Eq(1).Text())
		}
	})
	return ports
}

func TestConfigFromQuery(t *testing.T) {
	defaults := filter.Config{ShowClosed: true, MinConfidence: filter.ThresholdMedium}

	tests := []struct {
		name     string
		query    string
		expected filter.Config
	}{
		{name: "no parameters", query: "", expected: defaults},
		{name: "unrelated parameter", query: "?page=2", expected: defaults},
		{name: "form without checkbox", query: "?minConfidence=high", expected: filter.Config{ShowClosed: false, MinConfidence: filter.ThresholdHigh}},
		{name: "form with checkbox", query: "?showClosed=on&minConfidence=all", expected: filter.Config{ShowClosed: true, MinConfidence: filter.ThresholdAll}},
		{name: "checkbox only keeps default threshold", query: "?showClosed=true", expected: filter.Config{ShowClosed: true, MinConfidence: filter.ThresholdMedium}},
		{name: "unknown threshold", query: "?minConfidence=critical", expected: filter.Config{ShowClosed: false, MinConfidence: filter.ThresholdAll}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/"+tt.query, nil)
			assert.Equal(t, tt.expected, ConfigFromQuery(r, defaults))
		})
	}
}

func TestResultsPage(t *testing.T) {
	srv := newTestServer(t, filter.DefaultConfig())

	tests := []struct {
		name     string
		query    string
		expected []string
	}{
		{name: "defaults", query: "", expected: []string{"22", "80", "8080"}},
		{name: "high only", query: "?minConfidence=high", expected: []string{"22"}},
		{name: "medium with closed", query: "?showClosed=on&minConfidence=medium", expected: []string{"22", "80", "443"}},
		{name: "everything", query: "?showClosed=on&minConfidence=all", expected: []string{"22", "80", "443", "8080"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, doc := fetch(t, srv.URL+"/"+tt.query)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
			assert.Equal(t, tt.expected, visiblePorts(doc))
			assert.Equal(t, ConfigFromQuery(httptest.NewRequest(http.MethodGet, "/"+tt.query, nil), filter.DefaultConfig()), page.ReadConfig(doc))
		})
	}
}

func TestResultsPageUsesServerDefaults(t *testing.T) {
	srv := newTestServer(t, filter.Config{ShowClosed: true, MinConfidence: filter.ThresholdHigh})

	_, doc := fetch(t, srv.URL+"/")
	assert.Equal(t, []string{"22", "443"}, visiblePorts(doc))
}

func TestServedCounter(t *testing.T) {
	renderer, err := report.NewRenderer()
	require.NoError(t, err)
	h := NewHandler(renderer, testReport(), filter.DefaultConfig())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "ok", rec.Body.String())

	assert.Equal(t, int64(3), h.Served())
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t, filter.DefaultConfig())

	resp, err := http.Get(srv.URL + "/unknown")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/", "text/plain", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRunStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, Options{Addr: addr, ReadTimeout: time.Second, WriteTimeout: time.Second}, http.NotFoundHandler())
	}()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReportsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() {
		_ = ln.Close()
	}()

	err = Run(context.Background(), Options{Addr: ln.Addr().String()}, http.NotFoundHandler())
	assert.Error(t, err)
}
