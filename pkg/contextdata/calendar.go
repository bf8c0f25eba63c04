package contextdata

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

const maxCalendarEvents = 5

type CalendarEvent struct {
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Attendees []string  `json:"attendees"`
	Location  string    `json:"location"`
}

type calendarResponse struct {
	Events []CalendarEvent `json:"events"`
}

// CalendarSource summarises upcoming events for the meeting host.
type CalendarSource struct {
	url    string
	client *http.Client
	now    func() time.Time
}

func NewCalendarSource(url string, client *http.Client) *CalendarSource {
	return &CalendarSource{url: url, client: client, now: time.Now}
}

func (s *CalendarSource) Summary(ctx context.Context) (string, error) {
	if s == nil || s.url == "" {
		return "", ErrNotConfigured
	}
	var out calendarResponse
	if err := getJSON(ctx, s.client, s.url, &out); err != nil {
		return "", fmt.Errorf("calendar: %w", err)
	}
	return summarizeEvents(out.Events, s.now()), nil
}

func summarizeEvents(events []CalendarEvent, now time.Time) string {
	upcoming := make([]CalendarEvent, 0, len(events))
	for _, e := range events {
		if e.End.IsZero() || e.End.After(now) {
			upcoming = append(upcoming, e)
		}
	}
	if len(upcoming) == 0 {
		return "Calendar: nothing else is scheduled."
	}
	sort.SliceStable(upcoming, func(i, j int) bool { return upcoming[i].Start.Before(upcoming[j].Start) })

	var b strings.Builder
	fmt.Fprintf(&b, "Calendar: %d upcoming event(s).", len(upcoming))
	for i, e := range upcoming {
		if i == maxCalendarEvents {
			fmt.Fprintf(&b, " And %d more.", len(upcoming)-maxCalendarEvents)
			break
		}
		fmt.Fprintf(&b, " %s at %s", e.Title, e.Start.Format("Mon 15:04"))
		if len(e.Attendees) > 0 {
			fmt.Fprintf(&b, " with %s", strings.Join(e.Attendees, ", "))
		}
		b.WriteString(".")
	}
	return b.String()
}
