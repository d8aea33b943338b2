package list

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/CompassSecurity/scanview/pkg/config"
	"github.com/CompassSecurity/scanview/pkg/filter"
	"github.com/CompassSecurity/scanview/pkg/format"
	"github.com/CompassSecurity/scanview/pkg/result"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	FormatTable = "table"
	FormatYAML  = "yaml"

	maxBannerWidth = 40
)

type ListCommandOptions struct {
	config.ViewOptions
	Results []string
	Threads int
	Format  string
	Search  string
	MaxSize string
	NoColor bool
}

func NewListCmd() *cobra.Command {
	options := ListCommandOptions{ViewOptions: config.DefaultViewOptions()}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the results that pass the filter",
		Example: `
scanview list --results scan.json --min-confidence high
scanview list --results scan.yaml --show-closed --format yaml
scanview list --results web.json,db.json --results artifacts.zip --search ssh
		`,
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := config.ParseMaxSize(options.MaxSize)
			if err != nil {
				return err
			}
			options.MaxResultsSize = size

			rep, err := result.LoadAll(cmd.Context(), options.Results, options.MaxResultsSize, options.Threads)
			if err != nil {
				return err
			}

			return List(cmd.OutOrStdout(), rep, options)
		},
	}

	listCmd.Flags().StringSliceVarP(&options.Results, "results", "r", []string{}, "Results files (.json, .yaml, .yml or an archive of them), repeat or separate by comma to merge")
	listCmd.Flags().IntVarP(&options.Threads, "threads", "", 4, "Nr of results files loaded in parallel")
	listCmd.Flags().BoolVarP(&options.ShowClosed, "show-closed", "", options.ShowClosed, "Include CLOSED results")
	listCmd.Flags().StringVarP(&options.MinConfidence, "min-confidence", "c", options.MinConfidence, "Minimum confidence: all, high, medium")
	listCmd.Flags().StringVarP(&options.Format, "format", "f", FormatTable, "Output format: table, yaml")
	listCmd.Flags().StringVarP(&options.Search, "search", "s", "", "Only show results whose host, service or banner contains this text (case insensitive)")
	listCmd.Flags().StringVarP(&options.MaxSize, "max-size", "", "50MB", "Maximum results file size, e.g. 500KB, 10MB")
	listCmd.Flags().BoolVarP(&options.NoColor, "no-color", "", false, "Disable colored table output")
	_ = listCmd.MarkFlagRequired("results")

	return listCmd
}

// List writes the visible results of rep to w.
func List(w io.Writer, rep *result.Report, options ListCommandOptions) error {
	cfg := options.FilterConfig()
	visible := []result.ScanResult{}
	for _, res := range rep.Visible(cfg) {
		if matches(res, options.Search) {
			visible = append(visible, res)
		}
	}

	log.Debug().
		Str("report", rep.ID).
		Int("total", len(rep.Results)).
		Int("visible", len(visible)).
		Msg("Filtered results")

	switch options.Format {
	case FormatYAML:
		out, err := format.PrettyPrintYAML(visible)
		if err != nil {
			return fmt.Errorf("failed encoding results: %w", err)
		}
		_, err = io.WriteString(w, out)
		return err
	case FormatTable, "":
		return printTable(w, visible, options.NoColor)
	default:
		return fmt.Errorf("unsupported output format %q, use table or yaml", options.Format)
	}
}

func matches(res result.ScanResult, search string) bool {
	if search == "" {
		return true
	}
	return format.ContainsI(res.Host, search) || format.ContainsI(res.Service, search) || format.ContainsI(res.Banner, search)
}

func printTable(w io.Writer, results []result.ScanResult, noColor bool) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "no results match the filter.")
		return err
	}

	statusColor := map[bool]*color.Color{
		true:  color.New(color.FgRed),
		false: color.New(color.FgGreen),
	}
	confidenceColor := map[filter.Confidence]*color.Color{
		filter.ConfidenceHigh:    color.New(color.FgGreen, color.Bold),
		filter.ConfidenceMedium:  color.New(color.FgYellow),
		filter.ConfidenceLow:     color.New(color.FgHiBlack),
		filter.ConfidenceUnknown: color.New(color.FgHiBlack),
	}
	paint := func(c *color.Color, s string) string {
		if noColor {
			return s
		}
		c.EnableColor()
		return c.Sprint(s)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tPORT\tPROTOCOL\tSTATUS\tSERVICE\tCONFIDENCE\tBANNER")
	for _, res := range results {
		confidence := filter.ParseConfidence(res.Confidence)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			res.Host,
			strconv.Itoa(res.Port),
			res.Protocol,
			paint(statusColor[filter.ParseStatus(res.Status).Closed()], res.Status),
			res.Service,
			paint(confidenceColor[confidence], confidence.String()),
			format.Truncate(res.Banner, maxBannerWidth),
		)
	}
	return tw.Flush()
}
