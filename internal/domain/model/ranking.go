package model

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Geo is the location attached to a ranked subject.
type Geo struct {
	City      string   `json:"city,omitempty"`
	StateProv string   `json:"stateProv,omitempty"`
	Country   string   `json:"country,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
}

// IsZero reports whether g carries no location at all.
func (g Geo) IsZero() bool {
	return g.City == "" && g.StateProv == "" && g.Country == "" && g.Lat == nil && g.Lng == nil
}

// Row is one ranked subject. Geo is never stored with the row; it is attached on read.
type Row struct {
	SubjectKey  string             `json:"subjectKey"`
	MetricValue float64            `json:"metricValue"`
	Details     map[string]float64 `json:"details,omitempty"`
	Geo         *Geo               `json:"geo"`
}

// RankingSnapshot is the full row set stored under one ranking set id.
type RankingSnapshot struct {
	RankingSetID string    `json:"rankingSetId"`
	Rows         []Row     `json:"rows"`
	SubmittedAt  time.Time `json:"submittedAt"`
	Revision     string    `json:"revision"`
}

// NewRankingSnapshot validates rows and returns a snapshot holding a private copy
// of them with geo stripped.
func NewRankingSnapshot(id string, rows []Row, submittedAt time.Time, revision string) (*RankingSnapshot, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty ranking set id", ErrInvalidIdentity)
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		if strings.TrimSpace(r.SubjectKey) == "" {
			return nil, fmt.Errorf("%w: row %d has no subjectKey", ErrInvalidRow, i)
		}
		if math.IsNaN(r.MetricValue) || math.IsInf(r.MetricValue, 0) {
			return nil, fmt.Errorf("%w: row %d metricValue is not finite", ErrInvalidRow, i)
		}
		out[i] = Row{SubjectKey: strings.TrimSpace(r.SubjectKey), MetricValue: r.MetricValue, Details: copyDetails(r.Details)}
	}
	return &RankingSnapshot{
		RankingSetID: id,
		Rows:         out,
		SubmittedAt:  submittedAt.UTC(),
		Revision:     revision,
	}, nil
}

// Clone returns a deep copy of s.
func (s *RankingSnapshot) Clone() *RankingSnapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Rows = make([]Row, len(s.Rows))
	for i, r := range s.Rows {
		out.Rows[i] = Row{SubjectKey: r.SubjectKey, MetricValue: r.MetricValue, Details: copyDetails(r.Details)}
		if r.Geo != nil {
			g := *r.Geo
			out.Rows[i].Geo = &g
		}
	}
	return &out
}

// SubjectKeys returns the distinct subject keys in row order.
func (s *RankingSnapshot) SubjectKeys() []string {
	seen := make(map[string]struct{}, len(s.Rows))
	keys := make([]string, 0, len(s.Rows))
	for _, r := range s.Rows {
		if _, ok := seen[r.SubjectKey]; ok {
			continue
		}
		seen[r.SubjectKey] = struct{}{}
		keys = append(keys, r.SubjectKey)
	}
	return keys
}

// AttachGeo sets each row's geo from the lookup; subjects without an entry keep nil.
func (s *RankingSnapshot) AttachGeo(geo map[string]Geo) {
	for i := range s.Rows {
		if g, ok := geo[s.Rows[i].SubjectKey]; ok {
			s.Rows[i].Geo = &g
		}
	}
}

func copyDetails(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// EnrichmentTask asks for the location of one subject referenced by a ranking set write.
type EnrichmentTask struct {
	SubjectKey   string
	RankingSetID string
	QueuedAt     time.Time
}
