package storage

import (
	"math"
	"sort"
	"strings"

	"github.com/cuemby/potato/pkg/types"
	"go.mongodb.org/mongo-driver/bson"
)

// aggregator evaluates one query over posts fed one at a time. It produces the
// same documents the server-side pipeline does.
type aggregator struct {
	q    Query
	term string

	groups map[groupKey]int64

	authors map[groupKey]struct{}

	likeSum   float64
	likeCount int64
	matched   int64
}

// groupKey is a nullable group id; the zero value is null
type groupKey struct {
	valid bool
	s     string
	i     int64
}

func newAggregator(q Query) *aggregator {
	return &aggregator{
		q:       q,
		term:    strings.ToLower(q.Term),
		groups:  make(map[groupKey]int64),
		authors: make(map[groupKey]struct{}),
	}
}

func matchesTerm(p *types.Post, lowerTerm string) bool {
	if p.Text == nil {
		return false
	}
	return strings.Contains(strings.ToLower(*p.Text), lowerTerm)
}

func (a *aggregator) add(p *types.Post) {
	if !matchesTerm(p, a.term) {
		return
	}

	switch a.q.Kind {
	case PipelineDailyCounts:
		if p.CreatedAt == nil {
			return
		}
		a.groups[groupKey{valid: true, s: p.CreatedAt.UTC().Format("2006-01-02")}]++

	case PipelineTimeOfDay:
		if p.CreatedAt == nil {
			return
		}
		a.groups[groupKey{valid: true, s: p.CreatedAt.UTC().Format(a.q.Granularity.layout())}]++

	case PipelineUniqueUsers:
		if p.AuthorID == nil {
			a.authors[groupKey{}] = struct{}{}
			return
		}
		a.authors[groupKey{valid: true, i: *p.AuthorID}] = struct{}{}

	case PipelineAverageLikes:
		a.matched++
		if p.LikeCount != nil {
			a.likeSum += float64(*p.LikeCount)
			a.likeCount++
		}

	case PipelineTopPlaces:
		a.groups[stringKey(p.PlaceID)]++

	case PipelineTopUser:
		a.groups[stringKey(p.AuthorHandle)]++
	}
}

func stringKey(s *string) groupKey {
	if s == nil {
		return groupKey{}
	}
	return groupKey{valid: true, s: *s}
}

func (a *aggregator) result() []bson.D {
	out := []bson.D{}

	switch a.q.Kind {
	case PipelineDailyCounts:
		for _, g := range a.sortedByKey() {
			out = append(out, bson.D{{Key: "date", Value: g.key.s}, {Key: "count", Value: countValue(g.count)}})
		}

	case PipelineTimeOfDay:
		for _, g := range a.sortedByKey() {
			out = append(out, bson.D{{Key: "time_bucket", Value: g.key.s}, {Key: "count", Value: countValue(g.count)}})
		}

	case PipelineUniqueUsers:
		if len(a.authors) > 0 {
			out = append(out, bson.D{{Key: "unique_users", Value: countValue(int64(len(a.authors)))}})
		}

	case PipelineAverageLikes:
		if a.matched > 0 {
			var avg interface{}
			if a.likeCount > 0 {
				avg = a.likeSum / float64(a.likeCount)
			}
			out = append(out, bson.D{{Key: "avg_likes", Value: avg}})
		}

	case PipelineTopPlaces:
		out = a.topN("place_id", 10)

	case PipelineTopUser:
		out = a.topN("author_handle", 1)
	}

	return out
}

type group struct {
	key   groupKey
	count int64
}

func (a *aggregator) groupList() []group {
	list := make([]group, 0, len(a.groups))
	for k, c := range a.groups {
		list = append(list, group{key: k, count: c})
	}
	return list
}

func (a *aggregator) sortedByKey() []group {
	list := a.groupList()
	sort.Slice(list, func(i, j int) bool {
		return lessKey(list[i].key, list[j].key)
	})
	return list
}

// topN sorts by count descending, then key ascending with null first
func (a *aggregator) topN(name string, n int) []bson.D {
	list := a.groupList()
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return lessKey(list[i].key, list[j].key)
	})
	if len(list) > n {
		list = list[:n]
	}

	out := make([]bson.D, 0, len(list))
	for _, g := range list {
		var key interface{}
		if g.key.valid {
			key = g.key.s
		}
		out = append(out, bson.D{{Key: name, Value: key}, {Key: "count", Value: countValue(g.count)}})
	}
	return out
}

func lessKey(a, b groupKey) bool {
	if a.valid != b.valid {
		return !a.valid
	}
	return a.s < b.s
}

// countValue mirrors $sum:1, which yields a 32-bit integer until it overflows
func countValue(n int64) interface{} {
	if n > math.MaxInt32 {
		return n
	}
	return int32(n)
}
