package model

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

const dateLayout = "2006-01-02"

// Event is an event record from the results provider.
type Event struct {
	Key       string  `json:"key"`
	Name      string  `json:"name"`
	EventCode string  `json:"event_code,omitempty"`
	Year      int     `json:"year"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Timezone  *string `json:"timezone,omitempty"`
	City      *string `json:"city,omitempty"`
	StateProv *string `json:"state_prov,omitempty"`
	Country   *string `json:"country,omitempty"`
	EventType *int    `json:"event_type,omitempty"`
}

// Validate checks the fields the recency test depends on.
func (e *Event) Validate() error {
	if e.Key == "" {
		return fmt.Errorf("%w: event without key", ErrInvalidPayload)
	}
	if _, _, err := e.Window(); err != nil {
		return err
	}
	return nil
}

// Window returns the first and last instant of the event in its own time zone.
// The end is the last nanosecond of EndDate.
func (e *Event) Window() (time.Time, time.Time, error) {
	loc := time.UTC
	if e.Timezone != nil && *e.Timezone != "" {
		if l, err := time.LoadLocation(*e.Timezone); err == nil {
			loc = l
		}
	}
	start, err := time.ParseInLocation(dateLayout, e.StartDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: event %s start_date %q", ErrInvalidPayload, e.Key, e.StartDate)
	}
	end, err := time.ParseInLocation(dateLayout, e.EndDate, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: event %s end_date %q", ErrInvalidPayload, e.Key, e.EndDate)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: event %s ends before it starts", ErrInvalidPayload, e.Key)
	}
	return start, end.Add(24*time.Hour - time.Nanosecond), nil
}

// TeamInfo is a team record from the results provider.
type TeamInfo struct {
	Key        string   `json:"key"`
	TeamNumber int      `json:"team_number"`
	Nickname   *string  `json:"nickname,omitempty"`
	Name       *string  `json:"name,omitempty"`
	City       *string  `json:"city,omitempty"`
	StateProv  *string  `json:"state_prov,omitempty"`
	Country    *string  `json:"country,omitempty"`
	RookieYear *int     `json:"rookie_year,omitempty"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// Validate checks the team key and number.
func (t *TeamInfo) Validate() error {
	if t.Key == "" || t.TeamNumber <= 0 {
		return fmt.Errorf("%w: team %q/%d", ErrInvalidPayload, t.Key, t.TeamNumber)
	}
	return nil
}

// Geo extracts location fields, or nil when the team has none.
func (t *TeamInfo) Geo() *Geo {
	g := Geo{
		City:      deref(t.City),
		StateProv: deref(t.StateProv),
		Country:   deref(t.Country),
		Lat:       t.Lat,
		Lng:       t.Lng,
	}
	if g.IsZero() {
		return nil
	}
	return &g
}

// Record is a win/loss/tie count.
type Record struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Ties   int `json:"ties"`
}

// EventRanking is one row of an event's qualification standings.
type EventRanking struct {
	Rank          int       `json:"rank"`
	TeamKey       string    `json:"team_key"`
	MatchesPlayed int       `json:"matches_played"`
	Record        *Record   `json:"record,omitempty"`
	SortOrders    []float64 `json:"sort_orders,omitempty"`
	DQ            int       `json:"dq"`
}

// EventRankings is the standings document of one event.
type EventRankings struct {
	Rankings []EventRanking `json:"rankings"`
}

// Validate checks every row.
func (r *EventRankings) Validate() error {
	for i := range r.Rankings {
		if r.Rankings[i].TeamKey == "" || r.Rankings[i].Rank <= 0 {
			return fmt.Errorf("%w: ranking row %d", ErrInvalidPayload, i)
		}
	}
	return nil
}

// Alliance is one side of a match.
type Alliance struct {
	Score    int      `json:"score"`
	TeamKeys []string `json:"team_keys"`
}

// Alliances holds both sides of a match.
type Alliances struct {
	Red  Alliance `json:"red"`
	Blue Alliance `json:"blue"`
}

// Match is a single match record.
type Match struct {
	Key             string    `json:"key"`
	CompLevel       string    `json:"comp_level"`
	SetNumber       int       `json:"set_number"`
	MatchNumber     int       `json:"match_number"`
	EventKey        string    `json:"event_key"`
	Alliances       Alliances `json:"alliances"`
	WinningAlliance *string   `json:"winning_alliance,omitempty"`
	Time            *int64    `json:"time,omitempty"`
	ActualTime      *int64    `json:"actual_time,omitempty"`
	PredictedTime   *int64    `json:"predicted_time,omitempty"`
}

// Validate checks identifying fields.
func (m *Match) Validate() error {
	if m.Key == "" || m.EventKey == "" || m.CompLevel == "" {
		return fmt.Errorf("%w: match %q", ErrInvalidPayload, m.Key)
	}
	return nil
}

// QualRanking is a team's qualification standing at one event.
type QualRanking struct {
	Rank          int     `json:"rank"`
	MatchesPlayed int     `json:"matches_played"`
	Record        *Record `json:"record,omitempty"`
}

// QualStatus wraps the qualification standing and field size.
type QualStatus struct {
	NumTeams int          `json:"num_teams"`
	Ranking  *QualRanking `json:"ranking,omitempty"`
	Status   string       `json:"status,omitempty"`
}

// TeamEventStatus is a team's status at one event. Provider sends null for
// events the team is registered for but has not played.
type TeamEventStatus struct {
	Qual             *QualStatus `json:"qual,omitempty"`
	OverallStatusStr string      `json:"overall_status_str,omitempty"`
}

// TeamStats is a team's per-event statuses for one season, keyed by event key.
type TeamStats struct {
	TeamKey  string                      `json:"team_key"`
	Year     int                         `json:"year"`
	Statuses map[string]*TeamEventStatus `json:"statuses"`
}

// NexusTimes are the schedule estimates for one match, in unix millis.
type NexusTimes struct {
	EstimatedQueueTime *int64 `json:"estimatedQueueTime,omitempty"`
	EstimatedStartTime *int64 `json:"estimatedStartTime,omitempty"`
	ActualQueueTime    *int64 `json:"actualQueueTime,omitempty"`
}

// NexusMatch is one entry of the live schedule.
type NexusMatch struct {
	Label     string     `json:"label"`
	Status    string     `json:"status"`
	RedTeams  []*string  `json:"redTeams,omitempty"`
	BlueTeams []*string  `json:"blueTeams,omitempty"`
	Times     NexusTimes `json:"times"`
}

// NexusSchedule is the live-schedule document for one event.
type NexusSchedule struct {
	EventKey     string       `json:"eventKey"`
	DataAsOfTime int64        `json:"dataAsOfTime"`
	NowQueuing   *string      `json:"nowQueuing,omitempty"`
	Matches      []NexusMatch `json:"matches"`
}

// Validate checks the event key and match labels.
func (s *NexusSchedule) Validate() error {
	if s.EventKey == "" {
		return fmt.Errorf("%w: schedule without eventKey", ErrInvalidPayload)
	}
	for i := range s.Matches {
		if s.Matches[i].Label == "" {
			return fmt.Errorf("%w: schedule match %d without label", ErrInvalidPayload, i)
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
