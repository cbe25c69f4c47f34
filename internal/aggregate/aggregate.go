// Package aggregate groups records by a key and computes counts and means
// for chart series. Grouping never fails: empty input yields empty groups.
package aggregate

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"time"
)

// Mean is an average that may be undefined. An undefined mean is NaN, encodes
// as JSON null and prints as "NaN"; it is never coerced to zero.
type Mean float64

// NaN returns the undefined mean.
func NaN() Mean { return Mean(math.NaN()) }

// Defined reports whether the mean has a value.
func (m Mean) Defined() bool { return !math.IsNaN(float64(m)) }

// MarshalJSON renders undefined means as null.
func (m Mean) MarshalJSON() ([]byte, error) {
	if !m.Defined() || math.IsInf(float64(m), 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(m))
}

// UnmarshalJSON accepts null as NaN.
func (m *Mean) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*m = NaN()
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*m = Mean(f)
	return nil
}

// String formats the mean for tabular exports.
func (m Mean) String() string {
	if !m.Defined() {
		return "NaN"
	}
	return strconv.FormatFloat(float64(m), 'f', 2, 64)
}

// CountBy counts items per key.
func CountBy[T any, K comparable](items []T, key func(T) K) map[K]int {
	out := make(map[K]int)
	for _, item := range items {
		out[key(item)]++
	}
	return out
}

// MeanBy averages value over items per key. Items for which value reports
// false still create their group, so a group without contributions is NaN.
func MeanBy[T any, K comparable](items []T, key func(T) K, value func(T) (float64, bool)) map[K]Mean {
	type acc struct {
		sum float64
		n   int
	}
	groups := make(map[K]*acc)
	for _, item := range items {
		k := key(item)
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		if v, ok := value(item); ok {
			a.sum += v
			a.n++
		}
	}
	out := make(map[K]Mean, len(groups))
	for k, a := range groups {
		if a.n == 0 {
			out[k] = NaN()
			continue
		}
		out[k] = Mean(a.sum / float64(a.n))
	}
	return out
}

// Count is one point of a count series.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Average is one point of a mean series.
type Average struct {
	Key  string `json:"key"`
	Mean Mean   `json:"mean"`
}

// Counts flattens a count map into a series sorted by key.
func Counts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Averages flattens a mean map into a series sorted by key.
func Averages(m map[string]Mean) []Average {
	out := make([]Average, 0, len(m))
	for k, v := range m {
		out = append(out, Average{Key: k, Mean: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Bucket is a calendar period used to group timestamps.
type Bucket string

// Supported time buckets.
const (
	BucketMonth Bucket = "month"
	BucketWeek  Bucket = "week"
	BucketDay   Bucket = "day"
)

// ParseBucket returns the bucket for s, defaulting to month.
func ParseBucket(s string) (Bucket, bool) {
	switch Bucket(s) {
	case "", BucketMonth:
		return BucketMonth, true
	case BucketWeek:
		return BucketWeek, true
	case BucketDay:
		return BucketDay, true
	}
	return "", false
}

// Truncate returns the start of the bucket containing t, in UTC.
func (b Bucket) Truncate(t time.Time) time.Time {
	switch b {
	case BucketWeek:
		return TruncateWeek(t)
	case BucketDay:
		t = t.UTC()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return TruncateMonth(t)
	}
}

// Label formats a bucket start for display keys.
func (b Bucket) Label(t time.Time) string {
	start := b.Truncate(t)
	if b == BucketMonth {
		return start.Format("2006-01")
	}
	return start.Format("2006-01-02")
}

// TruncateMonth returns the first instant of t's month in UTC.
func TruncateMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// TruncateWeek returns the Monday 00:00 UTC starting t's ISO week.
func TruncateWeek(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}
