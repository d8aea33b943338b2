package result

import (
	"bytes"
	"fmt"

	"github.com/perimeterx/marshmallow"
	"github.com/rs/zerolog/log"
)

type shodanModule struct {
	Module string `json:"module"`
}

type shodanBanner struct {
	Hostnames []string     `json:"hostnames"`
	Port      int          `json:"port"`
	IPString  string       `json:"ip_str"`
	Transport string       `json:"transport"`
	Product   string       `json:"product"`
	Data      string       `json:"data"`
	Shodan    shodanModule `json:"shodan"`
}

// ParseShodan decodes a Shodan search export, one JSON banner per line.
// Shodan only lists open ports. Banners with a detected product are high
// confidence, banners with data only medium and empty banners low.
func ParseShodan(data []byte) (*Report, error) {
	report := &Report{}
	lines := 0

	for i, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		lines++

		b := shodanBanner{}
		if _, err := marshmallow.Unmarshal(line, &b); err != nil {
			log.Debug().Err(err).Int("line", i+1).Msg("Skipping invalid shodan banner")
			continue
		}

		res := ScanResult{
			Port:       b.Port,
			Protocol:   b.Transport,
			Status:     StatusOpen,
			Service:    b.Shodan.Module,
			Banner:     b.Data,
			Confidence: shodanConfidence(b),
		}

		if len(b.Hostnames) == 0 {
			res.Host = b.IPString
			report.Results = append(report.Results, normalize(res, nil))
			continue
		}
		for _, hostname := range b.Hostnames {
			res.Host = hostname
			report.Results = append(report.Results, normalize(res, nil))
		}
	}

	if lines > 0 && len(report.Results) == 0 {
		return nil, fmt.Errorf("invalid shodan export, no banner could be decoded")
	}

	return finalize(report), nil
}

func shodanConfidence(b shodanBanner) string {
	switch {
	case b.Product != "":
		return "high"
	case b.Data != "":
		return "medium"
	default:
		return "low"
	}
}
