package history

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/panbanda/prism/pkg/analyzer"
)

// Period bounds the entries a metrics query looks at.
type Period string

const (
	Period7d  Period = "7d"
	Period30d Period = "30d"
	Period90d Period = "90d"
	PeriodAll Period = "all"
)

// DefaultPeriod is used when none is given.
const DefaultPeriod = Period30d

// RecentLimit is the number of entries in Metrics.Recent.
const RecentLimit = 10

// ParsePeriod accepts 7d, 30d, 90d and all; empty means DefaultPeriod.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DefaultPeriod, nil
	case Period7d, Period30d, Period90d, PeriodAll:
		return p, nil
	default:
		return "", fmt.Errorf("unknown period %q (want 7d, 30d, 90d or all)", s)
	}
}

// Since is the earliest creation time included relative to now. The zero
// time means no bound.
func (p Period) Since(now time.Time) time.Time {
	switch p {
	case Period7d:
		return now.AddDate(0, 0, -7)
	case Period90d:
		return now.AddDate(0, 0, -90)
	case PeriodAll:
		return time.Time{}
	default:
		return now.AddDate(0, 0, -30)
	}
}

// Filter selects the entries aggregated by Metrics.
type Filter struct {
	Period Period
	// Kind restricts to one file kind; empty means all kinds.
	Kind analyzer.Kind
}

// DayTrend is the activity of one calendar day (UTC).
type DayTrend struct {
	Date          string  `json:"date" toon:"date"`
	Count         int     `json:"count" toon:"count"`
	AverageIssues float64 `json:"averageIssues" toon:"averageIssues"`
}

// Metrics is the overview of stored analyses.
type Metrics struct {
	Period         Period                `json:"period" toon:"period"`
	Kind           analyzer.Kind         `json:"fileType,omitempty" toon:"fileType,omitempty"`
	TotalAnalyses  int                   `json:"totalAnalyses" toon:"totalAnalyses"`
	ByKind         map[analyzer.Kind]int `json:"byFileType" toon:"byFileType"`
	AverageIssues  float64               `json:"averageIssues" toon:"averageIssues"`
	IssuesStdDev   float64               `json:"issuesStdDev" toon:"issuesStdDev"`
	Recent         []Entry               `json:"recent" toon:"recent"`
	Trend          []DayTrend            `json:"trend" toon:"trend"`
	AvailableKinds []analyzer.Kind       `json:"availableFileTypes" toon:"availableFileTypes"`
}

// Metrics aggregates the entries selected by f.
func (s *Store) Metrics(ctx context.Context, f Filter) (*Metrics, error) {
	if f.Period == "" {
		f.Period = DefaultPeriod
	}

	entries := []Entry{}
	q := s.db.NewSelect().
		Model(&entries).
		ExcludeColumn("result", "summary").
		OrderExpr("created_at DESC, id DESC")
	if since := f.Period.Since(s.now().UTC()); !since.IsZero() {
		q = q.Where("created_at >= ?", since)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to load analyses: %w", err)
	}

	var available []analyzer.Kind
	if err := s.db.NewSelect().
		Model((*Entry)(nil)).
		ColumnExpr("DISTINCT kind").
		OrderExpr("kind ASC").
		Scan(ctx, &available); err != nil {
		return nil, fmt.Errorf("failed to load file types: %w", err)
	}

	m := aggregate(entries, f)
	m.AvailableKinds = available
	if m.AvailableKinds == nil {
		m.AvailableKinds = []analyzer.Kind{}
	}
	return m, nil
}

// aggregate computes everything but AvailableKinds from entries ordered
// newest first.
func aggregate(entries []Entry, f Filter) *Metrics {
	m := &Metrics{
		Period:        f.Period,
		Kind:          f.Kind,
		TotalAnalyses: len(entries),
		ByKind:        make(map[analyzer.Kind]int, len(analyzer.Kinds)),
		Recent:        entries[:min(len(entries), RecentLimit)],
		Trend:         []DayTrend{},
	}
	for _, k := range analyzer.Kinds {
		m.ByKind[k] = 0
	}

	issues := make([]float64, len(entries))
	days := map[string][]float64{}
	for i, e := range entries {
		m.ByKind[e.Kind]++
		issues[i] = float64(e.IssuesCount)
		day := e.CreatedAt.UTC().Format(time.DateOnly)
		days[day] = append(days[day], issues[i])
	}

	if len(issues) > 0 {
		m.AverageIssues = round2(stat.Mean(issues, nil))
	}
	if len(issues) > 1 {
		m.IssuesStdDev = round2(stat.StdDev(issues, nil))
	}

	for day, counts := range days {
		m.Trend = append(m.Trend, DayTrend{
			Date:          day,
			Count:         len(counts),
			AverageIssues: round2(stat.Mean(counts, nil)),
		})
	}
	sort.Slice(m.Trend, func(i, j int) bool { return m.Trend[i].Date < m.Trend[j].Date })
	return m
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
