package plan

import (
	"sort"

	"github.com/evmstream/processor/internal/common"
	"github.com/evmstream/processor/internal/filter"
)

// Entry is one unit of work: a block range plus the filter request that
// applies to it.
type Entry struct {
	Range   common.Range
	Request filter.BatchRequest
}

// Build reduces the user's registrations into a disjoint, strictly increasing
// plan. Registration ranges are split at every boundary so that each output
// segment carries the merged request of every registration covering it.
// Requests merge in registration order.
func Build(registrations []Entry) []Entry {
	boundaries := common.NewSet[int64]()
	hasOpenEnd := false
	for _, reg := range registrations {
		if !reg.Range.Valid() {
			continue
		}
		boundaries.Add(reg.Range.From)
		if reg.Range.IsOpen() {
			hasOpenEnd = true
		} else {
			boundaries.Add(*reg.Range.To + 1)
		}
	}

	points := boundaries.List()
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })

	var plan []Entry
	for i, start := range points {
		var segment common.Range
		if i+1 < len(points) {
			segment = common.NewRange(start, points[i+1]-1)
		} else {
			if !hasOpenEnd {
				break
			}
			segment = common.OpenRange(start)
		}

		request := filter.BatchRequest{}
		covered := false
		for _, reg := range registrations {
			if reg.Range.Valid() && reg.Range.Contains(start) {
				request = request.Merge(reg.Request)
				covered = true
			}
		}
		if covered {
			plan = append(plan, Entry{Range: segment, Request: request})
		}
	}
	return plan
}

// ApplyBound clips every plan entry to the outer range, dropping segments
// that fall outside it. Order is preserved.
func ApplyBound(plan []Entry, bound common.Range) []Entry {
	bounded := make([]Entry, 0, len(plan))
	for _, entry := range plan {
		clipped, ok := entry.Range.Intersect(bound)
		if !ok {
			continue
		}
		bounded = append(bounded, Entry{Range: clipped, Request: entry.Request})
	}
	return bounded
}
