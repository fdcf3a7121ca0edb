package export

import (
	"context"
	"math"
	"strconv"
	"time"

	"example.com/planbridge/internal/models"
)

// calRule is one attendance or leave rule routed to a named calendar.
type calRule struct {
	attendance bool
	dayOfWeek  *int
	hourFrom   *float64
	hourTo     *float64
	dateFrom   *time.Time
	dateTo     *time.Time
	weekType   *int
}

// calSet collects rules per calendar name, keeping insertion order so
// bucket priorities are reproducible between runs.
type calSet struct {
	order []string
	rules map[string][]calRule
	tz    map[string]string
}

func newCalSet() *calSet {
	return &calSet{rules: map[string][]calRule{}, tz: map[string]string{}}
}

func (c *calSet) add(name, tz string, rule calRule) {
	if _, ok := c.rules[name]; !ok {
		c.order = append(c.order, name)
		c.tz[name] = tz
	}
	c.rules[name] = append(c.rules[name], rule)
}

func (c *calSet) ensure(name, tz string) {
	if _, ok := c.rules[name]; !ok {
		c.order = append(c.order, name)
		c.rules[name] = nil
		c.tz[name] = tz
	}
}

const (
	defaultBucketStart = "2020-01-01T00:00:00"
	defaultBucketEnd   = "2030-12-31T00:00:00"
	fullWeekMask       = 127
)

// dayMask maps a Monday=0 day index to the engine's Sunday=0 bitmask.
func dayMask(dayOfWeek *int) int {
	if dayOfWeek == nil {
		return fullWeekMask
	}
	return 1 << ((*dayOfWeek + 1) % 7)
}

func bucketTime(h *float64, def string) string {
	if h == nil {
		return def
	}
	return "PT" + strconv.Itoa(int(math.Round(*h*60))) + "M"
}

// exportCalendars writes the shared working-time calendars plus one
// synthesized calendar per workcenter carrying its own specific
// attendance or leave entries. The per-resource calendars keep
// exceptions from corrupting the shared calendar used by sibling
// resources.
//
// Attendance buckets take priorities from 1000 up and leave buckets
// from 10 up, each incremented in rule order. The consuming engine
// resolves overlaps by the higher priority, so every attendance bucket
// outranks every leave bucket purely through the disjoint ranges.
func (r *run) exportCalendars(ctx context.Context, x *xmlWriter) error {
	x.write("<!-- calendar -->\n")
	x.write("<calendars>\n")

	cals, err := r.st.Calendars(ctx)
	if err != nil {
		return err
	}
	calByID := map[uint]models.Calendar{}
	for _, c := range cals {
		calByID[c.ID] = c
	}

	// Which workcenters follow which calendar.
	workcenters, err := r.st.Workcenters(ctx)
	if err != nil {
		return err
	}
	calendarResources := map[uint][]uint{}
	for _, wc := range workcenters {
		r.workcenterByID[wc.ID] = wc
		if wc.CalendarID != nil {
			calendarResources[*wc.CalendarID] = append(calendarResources[*wc.CalendarID], wc.ID)
		}
	}

	attendances, err := r.st.Attendances(ctx)
	if err != nil {
		return err
	}
	leaves, err := r.st.Leaves(ctx)
	if err != nil {
		return err
	}

	// Workcenters with rule-specific entries get a calendar of their own.
	for _, a := range attendances {
		if a.ResourceID != nil {
			if wc, ok := r.workcenterByID[*a.ResourceID]; ok {
				r.resourcesWithSpecific[wc.ID] = wc.Name
			}
		}
	}
	for _, l := range leaves {
		if l.ResourceID != nil {
			if wc, ok := r.workcenterByID[*l.ResourceID]; ok {
				r.resourcesWithSpecific[wc.ID] = wc.Name
			}
		}
	}

	set := newCalSet()
	route := func(calendarID uint, resourceID *uint, rule calRule) {
		cal, ok := calByID[calendarID]
		if !ok {
			return
		}
		name := calendarName(cal)
		if resourceID == nil {
			set.add(name, cal.Timezone, rule)
		}
		for _, res := range calendarResources[calendarID] {
			if resourceID != nil && res != *resourceID {
				continue
			}
			resName, specific := r.resourcesWithSpecific[res]
			if !specific {
				continue
			}
			set.ensure("calendar for "+resName, cal.Timezone)
			set.add("calendar for "+resName, cal.Timezone, rule)
		}
	}

	for _, a := range attendances {
		route(a.CalendarID, a.ResourceID, calRule{
			attendance: a.DayPeriod == "morning" || a.DayPeriod == "afternoon",
			dayOfWeek:  a.DayOfWeek,
			hourFrom:   a.HourFrom,
			hourTo:     a.HourTo,
			dateFrom:   a.DateFrom,
			dateTo:     a.DateTo,
			weekType:   a.WeekType,
		})
	}
	for _, l := range leaves {
		from, to := l.DateFrom, l.DateTo
		route(l.CalendarID, l.ResourceID, calRule{
			attendance: false,
			dateFrom:   &from,
			dateTo:     &to,
		})
	}

	for _, name := range set.order {
		if set.tz[name] != "" && set.tz[name] != r.loc.String() {
			r.log.Warn().
				Str("calendar", name).
				Msg("calendar timezone differs from the connector timezone, working hours may shift")
		}
		x.printf("<calendar name=%s default=\"0\"><buckets>\n", quoteattr(name))
		r.writeBuckets(x, set.rules[name], set.tz[name])
		x.write("</buckets></calendar>\n")
	}

	x.write("</calendars>\n")
	return nil
}

func (r *run) writeBuckets(x *xmlWriter, rules []calRule, tz string) {
	priorityAttendance := 1000
	priorityLeave := 10
	loc := r.loc
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	for _, rule := range rules {
		if rule.weekType == nil {
			start := defaultBucketStart
			if rule.dateFrom != nil {
				start = rule.dateFrom.Format("2006-01-02") + "T00:00:00"
			}
			end := defaultBucketEnd
			if rule.dateTo != nil {
				end = rule.dateTo.Format("2006-01-02") + "T00:00:00"
			}
			value := "0"
			priority := priorityLeave
			if rule.attendance {
				value = "1"
				priority = priorityAttendance
			}
			x.printf("<bucket start=\"%s\" end=\"%s\" value=\"%s\" days=\"%d\" priority=\"%d\" starttime=\"%s\" endtime=\"%s\"/>\n",
				start, end, value, dayMask(rule.dayOfWeek), priority,
				bucketTime(rule.hourFrom, "PT0M"), bucketTime(rule.hourTo, "PT1440M"))
			if rule.attendance {
				priorityAttendance++
			} else {
				priorityLeave++
			}
			continue
		}

		// Alternating biweekly rule: walk the date range week by week
		// and keep only the ISO weeks matching the rule's parity. Each
		// bucket spans one calendar week, clipped to the rule's end.
		start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
		if rule.dateFrom != nil {
			start = *rule.dateFrom
		}
		end := time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC)
		if rule.dateTo != nil {
			end = *rule.dateTo
		}
		for t := start; t.Before(end); {
			_, week := t.ISOWeek()
			mondayBased := (int(t.Weekday()) + 6) % 7
			next := t.AddDate(0, 0, 7-mondayBased)
			if week%2 == *rule.weekType {
				bucketEnd := next
				if bucketEnd.After(end) {
					bucketEnd = end
				}
				x.printf("<bucket start=\"%s\" end=\"%s\" value=\"1\" days=\"%d\" priority=\"%d\" starttime=\"%s\" endtime=\"%s\"/>\n",
					fmtTime(t, loc), fmtTime(bucketEnd, loc),
					dayMask(rule.dayOfWeek), priorityAttendance,
					bucketTime(rule.hourFrom, "PT0M"), bucketTime(rule.hourTo, "PT1440M"))
				priorityAttendance++
			}
			t = next
		}
	}
}

