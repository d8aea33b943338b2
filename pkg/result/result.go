// Package result holds the scan results shown by the viewer and loads them
// from JSON, YAML and Shodan export files or archives of those.
package result

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CompassSecurity/scanview/pkg/archive"
	"github.com/CompassSecurity/scanview/pkg/filter"
	"github.com/CompassSecurity/scanview/pkg/format"
	"github.com/acarl005/stripansi"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

const (
	StatusOpen   = "OPEN"
	StatusClosed = string(filter.StatusClosed)
)

var resultExtensions = []string{".json", ".yaml", ".yml", ".jsonl", ".ndjson"}

// ScanResult is a single scanned port of a host.
type ScanResult struct {
	Host       string `yaml:"host" json:"host"`
	Port       int    `yaml:"port" json:"port"`
	Protocol   string `yaml:"protocol,omitempty" json:"protocol,omitempty"`
	Status     string `yaml:"status" json:"status"`
	Service    string `yaml:"service,omitempty" json:"service,omitempty"`
	Banner     string `yaml:"banner,omitempty" json:"banner,omitempty"`
	Confidence string `yaml:"confidence,omitempty" json:"confidence,omitempty"`
}

// Report is a complete result file.
type Report struct {
	ID      string       `yaml:"id" json:"id"`
	Target  string       `yaml:"target" json:"target"`
	Results []ScanResult `yaml:"results" json:"results"`
}

type yamlResult struct {
	ScanResult `yaml:",inline"`
	Open       *bool `yaml:"open"`
}

type yamlReport struct {
	ID      string       `yaml:"id"`
	Target  string       `yaml:"target"`
	Results []yamlResult `yaml:"results"`
}

// Load reads a report from path. maxSize limits the file size in bytes, 0 disables the limit.
// Archives are unpacked and every result file inside is merged into one report.
func Load(path string, maxSize int64) (*Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed reading results file: %w", err)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, fmt.Errorf("results file %s is %d bytes, limit is %d", path, info.Size(), maxSize)
	}

	// #nosec G304 - User-provided results file path via --results flag
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed reading results file: %w", err)
	}

	if archive.IsArchive(data) {
		return loadArchive(path, data, maxSize)
	}

	return Parse(path, data)
}

// Parse decodes data according to the extension of name.
func Parse(name string, data []byte) (*Report, error) {
	switch {
	case format.HasExtension(name, ".json"):
		return ParseJSON(data)
	case format.HasExtension(name, ".yaml", ".yml"):
		return ParseYAML(data)
	case format.HasExtension(name, ".jsonl", ".ndjson"):
		return ParseShodan(data)
	default:
		return nil, fmt.Errorf("unsupported results file extension %q, use .json, .yaml, .yml or .jsonl", filepath.Ext(name))
	}
}

func loadArchive(path string, data []byte, maxSize int64) (*Report, error) {
	entries, err := archive.Extract(filepath.Base(path), data, maxSize)
	if err != nil {
		return nil, err
	}

	reports := []*Report{}
	for _, entry := range entries {
		if !format.HasExtension(entry.Name, resultExtensions...) {
			log.Debug().Str("archive", path).Str("file", entry.Name).Msg("Skipping non results file")
			continue
		}

		rep, err := Parse(entry.Name, entry.Content)
		if err != nil {
			return nil, fmt.Errorf("%s in %s: %w", entry.Name, path, err)
		}
		reports = append(reports, rep)
	}

	if len(reports) == 0 {
		return nil, fmt.Errorf("archive %s contains no results files", path)
	}

	return Merge(reports...), nil
}

// ParseJSON decodes a JSON report.
func ParseJSON(data []byte) (*Report, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json results document")
	}

	doc := gjson.ParseBytes(data)
	report := &Report{
		ID:     doc.Get("id").String(),
		Target: doc.Get("target").String(),
	}

	doc.Get("results").ForEach(func(_, value gjson.Result) bool {
		res := ScanResult{
			Host:       value.Get("host").String(),
			Port:       int(value.Get("port").Int()),
			Protocol:   value.Get("protocol").String(),
			Status:     value.Get("status").String(),
			Service:    value.Get("service").String(),
			Banner:     value.Get("banner").String(),
			Confidence: value.Get("confidence").String(),
		}
		var open *bool
		if o := value.Get("open"); o.Exists() {
			b := o.Bool()
			open = &b
		}
		report.Results = append(report.Results, normalize(res, open))
		return true
	})

	return finalize(report), nil
}

// ParseYAML decodes a YAML report.
func ParseYAML(data []byte) (*Report, error) {
	var raw yamlReport
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid yaml results document: %w", err)
	}

	report := &Report{ID: raw.ID, Target: raw.Target}
	for _, r := range raw.Results {
		report.Results = append(report.Results, normalize(r.ScanResult, r.Open))
	}

	return finalize(report), nil
}

// normalize fills in the status from the legacy open flag. Results without
// either are closed. Confidence is left as is, empty reads as unknown.
// Banners are flattened to one line without terminal escape sequences.
func normalize(res ScanResult, open *bool) ScanResult {
	res.Banner = cleanBanner(res.Banner)
	if res.Protocol == "" {
		res.Protocol = "tcp"
	}
	if res.Status == "" {
		res.Status = StatusClosed
		if open != nil && *open {
			res.Status = StatusOpen
		}
	}
	return res
}

func cleanBanner(banner string) string {
	banner = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(banner)
	return strings.TrimSpace(stripansi.Strip(banner))
}

func finalize(report *Report) *Report {
	if report.ID == "" {
		report.ID = uuid.New().String()
	}
	if report.Results == nil {
		report.Results = []ScanResult{}
	}
	return report
}

// Visible returns the results passing cfg, in their original order.
func (r *Report) Visible(cfg filter.Config) []ScanResult {
	visible := []ScanResult{}
	for _, res := range r.Results {
		if filter.Visible(cfg, res.Status, res.Confidence) {
			visible = append(visible, res)
		}
	}
	return visible
}
