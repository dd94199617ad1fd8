package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/cadence/internal/models"
)

var _ list.Item = eventItem{}

// eventItem wraps [models.CalendarEvent] to implement [list.Item].
type eventItem struct {
	event *models.CalendarEvent
	when  string
}

func newEventItem(ev *models.CalendarEvent, loc *time.Location) eventItem {
	start := ev.Start.In(loc)
	when := start.Format("Mon Jan 2 15:04")
	if ev.AllDay {
		when = start.Format("Mon Jan 2") + " all day"
	}
	return eventItem{event: ev, when: when}
}

func (i eventItem) FilterValue() string { return i.event.Title }
func (i eventItem) Title() string       { return i.event.Title }
func (i eventItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.when, levelStyle(i.event.ImpactLevel).Render(fmt.Sprintf("%s %.2f", i.event.ImpactLevel, i.event.ImpactScore)))
	if i.event.Category != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.event.Category)
	}
	return desc
}
