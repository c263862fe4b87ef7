package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/okian/pitscout/internal/domain/model"
)

// ResultsAuthHeader carries the event-results API key.
const ResultsAuthHeader = "X-TBA-Auth-Key"

// maxTeamPages bounds the paginated teams listing.
const maxTeamPages = 50

// Results is the typed event-results API.
type Results struct {
	client *Client
}

// NewResults wraps client.
func NewResults(client *Client) *Results {
	return &Results{client: client}
}

// Event returns one event.
func (r *Results) Event(ctx context.Context, eventKey string) (*model.Event, error) {
	return getJSON(ctx, r.client, "/event/"+url.PathEscape(eventKey), (*model.Event).Validate)
}

// EventRankings returns the qualification standings of an event. The provider
// answers null before rankings exist; that decodes to an empty list.
func (r *Results) EventRankings(ctx context.Context, eventKey string) (*model.EventRankings, error) {
	out, err := getJSON(ctx, r.client, "/event/"+url.PathEscape(eventKey)+"/rankings", (*model.EventRankings).Validate)
	if err != nil {
		return nil, err
	}
	if out.Rankings == nil {
		out.Rankings = []model.EventRanking{}
	}
	return out, nil
}

// EventTeams returns the teams registered for an event.
func (r *Results) EventTeams(ctx context.Context, eventKey string) ([]model.TeamInfo, error) {
	out, err := getJSON(ctx, r.client, "/event/"+url.PathEscape(eventKey)+"/teams", validateTeams)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// EventsByYear returns every event of a season.
func (r *Results) EventsByYear(ctx context.Context, year int) ([]model.Event, error) {
	out, err := getJSON(ctx, r.client, "/events/"+strconv.Itoa(year), validateEvents)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// Team returns one team.
func (r *Results) Team(ctx context.Context, teamKey string) (*model.TeamInfo, error) {
	return getJSON(ctx, r.client, "/team/"+url.PathEscape(teamKey), (*model.TeamInfo).Validate)
}

// TeamEvents returns the events a team attends in a season.
func (r *Results) TeamEvents(ctx context.Context, teamKey string, year int) ([]model.Event, error) {
	out, err := getJSON(ctx, r.client, "/team/"+url.PathEscape(teamKey)+"/events/"+strconv.Itoa(year), validateEvents)
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// TeamStatuses returns a team's status at each of its events in a season.
func (r *Results) TeamStatuses(ctx context.Context, teamKey string, year int) (*model.TeamStats, error) {
	endpoint := "/team/" + url.PathEscape(teamKey) + "/events/" + strconv.Itoa(year) + "/statuses"
	out, err := getJSON[map[string]*model.TeamEventStatus](ctx, r.client, endpoint, nil)
	if err != nil {
		return nil, err
	}
	statuses := *out
	if statuses == nil {
		statuses = map[string]*model.TeamEventStatus{}
	}
	return &model.TeamStats{TeamKey: teamKey, Year: year, Statuses: statuses}, nil
}

// TeamsByYear walks the paginated season listing until the first empty page.
func (r *Results) TeamsByYear(ctx context.Context, year int) ([]model.TeamInfo, error) {
	var all []model.TeamInfo
	for page := 0; page < maxTeamPages; page++ {
		endpoint := fmt.Sprintf("/teams/%d/%d", year, page)
		out, err := getJSON(ctx, r.client, endpoint, validateTeams)
		if err != nil {
			return nil, err
		}
		if len(*out) == 0 {
			break
		}
		all = append(all, *out...)
	}
	if all == nil {
		all = []model.TeamInfo{}
	}
	return all, nil
}

// Match returns one match.
func (r *Results) Match(ctx context.Context, matchKey string) (*model.Match, error) {
	return getJSON(ctx, r.client, "/match/"+url.PathEscape(matchKey), (*model.Match).Validate)
}

func validateTeams(teams *[]model.TeamInfo) error {
	for i := range *teams {
		if err := (*teams)[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

func validateEvents(events *[]model.Event) error {
	for i := range *events {
		if err := (*events)[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
