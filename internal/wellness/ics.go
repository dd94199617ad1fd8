package wellness

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
)

const icsProductID = "-//cadence//Cycle Forecast//EN"

// ExportICS renders a forecast as an iCalendar feed of all-day events.
// UIDs are derived from the user and start date so re-exports update rather than duplicate entries.
func ExportICS(f *Forecast, userID, name string, now time.Time) string {
	cal := ical.NewCalendar()
	cal.SetProductId(icsProductID)
	cal.SetMethod(ical.MethodPublish)
	if name != "" {
		cal.SetXWRCalName(name)
	}

	for _, p := range f.Periods {
		ev := cal.AddEvent(fmt.Sprintf("period-%s-%s@cadence", userID, p.Start.Format("20060102")))
		ev.SetDtStampTime(now.UTC())
		ev.SetSummary("Predicted period")
		ev.SetDescription(fmt.Sprintf("Expected to last %d days.", p.Days()))
		ev.SetAllDayStartAt(p.Start)
		ev.SetAllDayEndAt(p.End.AddDate(0, 0, 1))
		ev.SetTimeTransparency(ical.TransparencyTransparent)
	}

	for _, w := range f.Fertile {
		ev := cal.AddEvent(fmt.Sprintf("fertile-%s-%s@cadence", userID, w.Start.Format("20060102")))
		ev.SetDtStampTime(now.UTC())
		ev.SetSummary("Fertile window")
		ev.SetDescription("Expected ovulation on " + w.Ovulation.Format("Mon Jan 2") + ".")
		ev.SetAllDayStartAt(w.Start)
		ev.SetAllDayEndAt(w.End.AddDate(0, 0, 1))
		ev.SetTimeTransparency(ical.TransparencyTransparent)
	}

	return cal.Serialize()
}
