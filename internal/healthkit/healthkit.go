// Package healthkit imports menstrual flow history from an Apple Health export.
//
// The Health app's "Export All Health Data" produces export.xml, which can run to
// hundreds of megabytes, so [Parse] streams it with [xml.Decoder] and only looks at
// HKCategoryTypeIdentifierMenstrualFlow records.
package healthkit

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// MenstrualFlowType is the HealthKit record type for logged flow.
const MenstrualFlowType = "HKCategoryTypeIdentifierMenstrualFlow"

// exportDateLayout is the timestamp format used by export.xml attributes.
const exportDateLayout = "2006-01-02 15:04:05 -0700"

// FlowDay is the heaviest flow recorded on one calendar day.
type FlowDay struct {
	Day    time.Time
	Flow   models.Flow
	Source string
}

// flowRank orders flows so the heaviest record of a day wins.
var flowRank = map[models.Flow]int{
	models.FlowNone:     0,
	models.FlowSpotting: 1,
	models.FlowLight:    2,
	models.FlowMedium:   3,
	models.FlowHeavy:    4,
}

// parseFlowValue maps HealthKit category values. iOS 18 renamed the values to
// HKCategoryValueVaginalBleeding*; both spellings are accepted.
func parseFlowValue(v string) (models.Flow, bool) {
	level := strings.TrimPrefix(v, "HKCategoryValueMenstrualFlow")
	level = strings.TrimPrefix(level, "HKCategoryValueVaginalBleeding")

	switch level {
	case "None":
		return models.FlowNone, true
	case "Light":
		return models.FlowLight, true
	case "Medium", "Unspecified":
		return models.FlowMedium, true
	case "Heavy":
		return models.FlowHeavy, true
	default:
		return "", false
	}
}

// Parse streams an export.xml and returns one [FlowDay] per calendar day, in order.
// Record dates are converted to loc (UTC when nil) before taking the day.
func Parse(r io.Reader, loc *time.Location) ([]FlowDay, error) {
	if loc == nil {
		loc = time.UTC
	}

	byDay := map[string]FlowDay{}
	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed health export: %v", shared.ErrInvalidInput, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Record" {
			continue
		}

		attrs := attrMap(start.Attr)
		if attrs["type"] != MenstrualFlowType {
			continue
		}

		flow, ok := parseFlowValue(attrs["value"])
		if !ok {
			continue
		}

		at, err := time.Parse(exportDateLayout, attrs["startDate"])
		if err != nil {
			return nil, fmt.Errorf("%w: bad startDate %q", shared.ErrInvalidInput, attrs["startDate"])
		}

		local := at.In(loc)
		d := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
		key := shared.FormatDay(d)

		if existing, seen := byDay[key]; seen && flowRank[existing.Flow] >= flowRank[flow] {
			continue
		}
		byDay[key] = FlowDay{Day: d, Flow: flow, Source: attrs["sourceName"]}
	}

	days := make([]FlowDay, 0, len(byDay))
	for _, fd := range byDay {
		days = append(days, fd)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day.Before(days[j].Day) })
	return days, nil
}

func attrMap(attrs []xml.Attr) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[a.Name.Local] = a.Value
	}
	return m
}
