package filter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/CompassSecurity/scanview/pkg/config"
	rowfilter "github.com/CompassSecurity/scanview/pkg/filter"
	"github.com/CompassSecurity/scanview/pkg/format"
	"github.com/CompassSecurity/scanview/pkg/httpclient"
	"github.com/CompassSecurity/scanview/pkg/page"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type FilterCommandOptions struct {
	config.ViewOptions
	Input    string
	URL      string
	Output   string
	FromPage bool
	MaxSize  string
	Insecure bool
}

func NewFilterCmd() *cobra.Command {
	options := FilterCommandOptions{ViewOptions: config.DefaultViewOptions()}

	filterCmd := &cobra.Command{
		Use:   "filter",
		Short: "Apply the result filter to a rendered results page",
		Long: `Load a rendered results page, hide every result row that does not match the filter and write the page out again.
Rows are the elements with the result-row class, their data-status and data-confidence attributes decide the visibility.`,
		Example: `
# Hide closed results and everything below medium confidence
scanview filter --input results.html --min-confidence medium --output filtered.html

# Use the filter controls stored in the page itself
scanview filter --url https://scanner.example.com/results --from-page
		`,
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := config.ParseMaxSize(options.MaxSize)
			if err != nil {
				return err
			}
			options.MaxResultsSize = size

			if err := validate(options); err != nil {
				return err
			}

			return Filter(cmd.Context(), options, cmd.OutOrStdout())
		},
	}

	filterCmd.Flags().StringVarP(&options.Input, "input", "i", "", "Rendered results page to filter")
	filterCmd.Flags().StringVarP(&options.URL, "url", "u", "", "URL of a rendered results page to filter")
	filterCmd.Flags().StringVarP(&options.Output, "output", "o", "", "Write the filtered page to this file instead of stdout")
	filterCmd.Flags().BoolVarP(&options.ShowClosed, "show-closed", "", options.ShowClosed, "Keep CLOSED results visible")
	filterCmd.Flags().StringVarP(&options.MinConfidence, "min-confidence", "c", options.MinConfidence, "Minimum confidence to keep visible: all, high, medium")
	filterCmd.Flags().BoolVarP(&options.FromPage, "from-page", "", false, "Read the filter from the page controls instead of the flags")
	filterCmd.Flags().StringVarP(&options.MaxSize, "max-size", "", "50MB", "Maximum page size, e.g. 500KB, 10MB")
	filterCmd.Flags().BoolVarP(&options.Insecure, "insecure", "", false, "Skip TLS certificate verification when fetching --url")
	filterCmd.MarkFlagsMutuallyExclusive("input", "url")
	filterCmd.MarkFlagsOneRequired("input", "url")

	return filterCmd
}

func validate(options FilterCommandOptions) error {
	if options.URL != "" {
		if err := config.ValidateURL(options.URL, "page URL"); err != nil {
			return err
		}
	}

	if !options.FromPage && rowfilter.ParseThreshold(options.MinConfidence).String() != options.MinConfidence {
		log.Warn().Str("minConfidence", options.MinConfidence).Msg("Unknown minimum confidence, no confidence filtering is applied")
	}
	return nil
}

// Filter loads the page, applies the filter and writes the page to the output file or stdout.
func Filter(ctx context.Context, options FilterCommandOptions, stdout io.Writer) error {
	data, err := readPage(ctx, options)
	if err != nil {
		return err
	}

	doc, err := page.Parse(bytes.NewReader(data))
	if err != nil {
		return err
	}

	var cfg rowfilter.Config
	if options.FromPage {
		if !page.OnReady(doc) {
			log.Warn().Msg("Page has no filter controls, writing it unchanged")
		}
		cfg = page.ReadConfig(doc)
	} else {
		cfg = options.FilterConfig()
		page.SetControls(doc, cfg)
		rowfilter.Apply(cfg, page.Rows(doc))
	}

	stats := rowfilter.Count(cfg, page.Rows(doc))
	log.Info().
		Bool("showClosed", cfg.ShowClosed).
		Str("minConfidence", cfg.MinConfidence.String()).
		Int("rows", stats.Total).
		Int("visible", stats.Visible).
		Int("hidden", stats.Hidden).
		Msg("Filtered results page")

	if options.Output == "" {
		return page.Render(stdout, doc)
	}

	// #nosec G304 - User-provided output path via --output flag
	out, err := os.OpenFile(options.Output, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, format.FilePublicRead)
	if err != nil {
		return fmt.Errorf("failed opening output file: %w", err)
	}
	if err := page.Render(out, doc); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed writing output file: %w", err)
	}

	log.Info().Str("file", options.Output).Msg("Wrote filtered page")
	return nil
}

func readPage(ctx context.Context, options FilterCommandOptions) ([]byte, error) {
	if options.URL != "" {
		if ctx == nil {
			ctx = context.Background()
		}
		client := httpclient.GetScanviewHTTPClient(map[string]string{"User-Agent": "scanview"}, options.Insecure)
		log.Debug().Str("url", options.URL).Msg("Fetching results page")
		return httpclient.FetchPage(ctx, client, options.URL, options.MaxResultsSize)
	}

	info, err := os.Stat(options.Input)
	if err != nil {
		return nil, fmt.Errorf("failed reading input page: %w", err)
	}
	if options.MaxResultsSize > 0 && info.Size() > options.MaxResultsSize {
		return nil, fmt.Errorf("input page %s is %d bytes, limit is %d", options.Input, info.Size(), options.MaxResultsSize)
	}

	// #nosec G304 - User-provided input path via --input flag
	data, err := os.ReadFile(options.Input)
	if err != nil {
		return nil, fmt.Errorf("failed reading input page: %w", err)
	}
	return data, nil
}
