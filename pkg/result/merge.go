package result

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/rxwycdh/rxhash"
	"github.com/wandb/parallel"
)

type loadedReport struct {
	index  int
	report *Report
}

// LoadAll loads the result files in paths with at most workers files in flight and merges them.
func LoadAll(ctx context.Context, paths []string, maxSize int64, workers int) (*Report, error) {
	if len(paths) == 1 {
		return Load(paths[0], maxSize)
	}
	if workers < 1 {
		workers = 1
	}

	group := parallel.Collect[loadedReport](parallel.Limited(ctx, workers))
	for i, path := range paths {
		group.Go(func(ctx context.Context) (loadedReport, error) {
			log.Debug().Str("file", path).Msg("Loading results")
			rep, err := Load(path, maxSize)
			if err != nil {
				return loadedReport{}, err
			}
			return loadedReport{index: i, report: rep}, nil
		})
	}

	loaded, err := group.Wait()
	if err != nil {
		return nil, err
	}

	slices.SortFunc(loaded, func(a, b loadedReport) int {
		return a.index - b.index
	})

	reports := make([]*Report, 0, len(loaded))
	for _, l := range loaded {
		reports = append(reports, l.report)
	}

	return Merge(reports...), nil
}

// Merge concatenates reports in order and drops results identical to an earlier one.
// A single report is returned unchanged.
func Merge(reports ...*Report) *Report {
	if len(reports) == 1 {
		return reports[0]
	}

	merged := &Report{ID: uuid.New().String(), Results: []ScanResult{}}
	targets := []string{}
	seen := map[string]struct{}{}

	for _, rep := range reports {
		if rep.Target != "" && !slices.Contains(targets, rep.Target) {
			targets = append(targets, rep.Target)
		}

		for _, res := range rep.Results {
			hash, err := rxhash.HashStruct(res)
			if err != nil {
				merged.Results = append(merged.Results, res)
				continue
			}
			if _, ok := seen[hash]; ok {
				log.Trace().Str("host", res.Host).Int("port", res.Port).Msg("Dropping duplicate result")
				continue
			}
			seen[hash] = struct{}{}
			merged.Results = append(merged.Results, res)
		}
	}

	merged.Target = strings.Join(targets, ", ")
	return merged
}
