package services

import (
	"math/rand"
	"sort"

	"github.com/Hommy-master/capcut-mate-data/apperr"
)

// timelineSeed fixes the PRNG so repeated requests with the same parameters
// produce identical cut points.
const timelineSeed = 42

// TimelineItem is a single [start, end) span in microseconds.
type TimelineItem struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// TimelinesRequest carries the segmentation parameters. Duration and Start
// are microseconds; Type selects the strategy.
type TimelinesRequest struct {
	Duration int64 `json:"duration"`
	Num      int   `json:"num"`
	Start    int64 `json:"start"`
	Type     int   `json:"type"`
}

// TimelinesResult pairs the generated segments with the whole span.
type TimelinesResult struct {
	Timelines    []TimelineItem `json:"timelines"`
	AllTimelines []TimelineItem `json:"all_timelines"`
}

// GenerateTimelines splits [start, start+duration) into num segments.
// Type 0 yields equal segments with the last one absorbing the remainder;
// any other type draws random cut points from the fixed seed. A num of zero
// or less returns no segments but still reports the whole span.
func GenerateTimelines(req TimelinesRequest) (TimelinesResult, error) {
	all := []TimelineItem{{Start: req.Start, End: req.Start + req.Duration}}

	if req.Num <= 0 {
		return TimelinesResult{Timelines: []TimelineItem{}, AllTimelines: all}, nil
	}

	timelines := make([]TimelineItem, 0, req.Num)
	if req.Type == 0 {
		segment := req.Duration / int64(req.Num)
		for i := 0; i < req.Num; i++ {
			start := req.Start + int64(i)*segment
			end := start + segment
			if i == req.Num-1 {
				end = req.Start + req.Duration
			}
			timelines = append(timelines, TimelineItem{Start: start, End: end})
		}
		return TimelinesResult{Timelines: timelines, AllTimelines: all}, nil
	}

	if req.Duration < 0 {
		return TimelinesResult{}, apperr.New(apperr.InternalServerError, "empty range for random cut points")
	}

	rng := rand.New(rand.NewSource(timelineSeed))
	points := make([]int64, 0, req.Num-1)
	for i := 0; i < req.Num-1; i++ {
		points = append(points, req.Start+rng.Int63n(req.Duration+1))
	}
	sort.Slice(points, func(i, j int) bool { return points[i] < points[j] })

	bounds := make([]int64, 0, req.Num+1)
	bounds = append(bounds, req.Start)
	bounds = append(bounds, points...)
	bounds = append(bounds, req.Start+req.Duration)
	for i := 0; i < len(bounds)-1; i++ {
		timelines = append(timelines, TimelineItem{Start: bounds[i], End: bounds[i+1]})
	}
	return TimelinesResult{Timelines: timelines, AllTimelines: all}, nil
}
