package geofilter

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/1F47E/geo-filter/pkg/bbox"
	"github.com/1F47E/geo-filter/pkg/models"
)

// span is a contiguous partition of the input
type span struct {
	start, end int
}

// partition splits n items into at most workers contiguous spans
func partition(n, workers int) []span {
	if n == 0 {
		return nil
	}
	if workers > n {
		workers = n
	}
	size := (n + workers - 1) / workers

	spans := make([]span, 0, workers)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		spans = append(spans, span{start, end})
	}
	return spans
}

// ParallelFilterByBox is FilterByBox with the input split across
// goroutines. The result is identical to the sequential call.
func ParallelFilterByBox[R Record](records []R, box models.BoundingBox, opts ...Option) ([]R, error) {
	o := newOptions(opts)
	if err := bbox.Validate(box); err != nil {
		return nil, fmt.Errorf("box: %w", err)
	}

	spans := partition(len(records), o.Workers)
	parts := make([][]located[R], len(spans))
	errs := make([]error, len(spans))

	var g errgroup.Group
	for i, s := range spans {
		g.Go(func() error {
			parts[i], errs[i] = scanBox(records[s.start:s.end], box, o, s.start)
			return errs[i]
		})
	}
	if err := g.Wait(); err != nil {
		return nil, firstError(errs)
	}

	out := make([]R, 0)
	for _, p := range parts {
		out = append(out, unwrapLocated(p)...)
	}
	return out, nil
}

// ParallelFilterByRadius is FilterByRadius with the input split across
// goroutines. Sorted partitions are combined with a stable k-way merge, so
// the result is identical to the sequential call. Distances are written
// only after every partition succeeded.
func ParallelFilterByRadius[R Record](records []R, center models.Location, radius float64, order Order, opts ...Option) ([]Match[R], error) {
	o := newOptions(opts)
	if err := validateRadiusQuery(center, radius); err != nil {
		return nil, err
	}

	spans := partition(len(records), o.Workers)
	parts := make([][]Match[R], len(spans))
	errs := make([]error, len(spans))

	var g errgroup.Group
	for i, s := range spans {
		g.Go(func() error {
			parts[i], errs[i] = scanRadius(records[s.start:s.end], center, radius, o, s.start)
			if errs[i] == nil {
				sortMatches(parts[i], order)
			}
			return errs[i]
		})
	}
	if err := g.Wait(); err != nil {
		return nil, firstError(errs)
	}

	for _, p := range parts {
		annotate(p, o)
	}
	return MergeMatches(parts, order), nil
}

// MergeMatches combines per-partition results. Unsorted parts are
// concatenated in order; sorted parts are merged, with ties resolved in
// favor of the earlier part.
func MergeMatches[R Record](parts [][]Match[R], order Order) []Match[R] {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]Match[R], 0, total)

	if order == Unsorted {
		for _, p := range parts {
			out = append(out, p...)
		}
		return out
	}

	compare := compareMatches[R](order)
	heads := make([]int, len(parts))
	for len(out) < total {
		best := -1
		for i, p := range parts {
			if heads[i] == len(p) {
				continue
			}
			if best == -1 || compare(p[heads[i]], parts[best][heads[best]]) < 0 {
				best = i
			}
		}
		out = append(out, parts[best][heads[best]])
		heads[best]++
	}
	return out
}

// firstError returns the error of the earliest partition so that the
// reported record does not depend on goroutine scheduling
func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
