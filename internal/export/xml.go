package export

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"
)

// timeFormat is the datetime layout understood by the planning engine.
const timeFormat = "2006-01-02T15:04:05"

// xmlWriter appends document fragments to the underlying writer and
// latches the first write error. The export is forward-only, so a
// single error check at the end of a section is enough.
type xmlWriter struct {
	w   io.Writer
	err error
}

func (x *xmlWriter) printf(format string, args ...interface{}) {
	if x.err != nil {
		return
	}
	_, x.err = fmt.Fprintf(x.w, format, args...)
}

func (x *xmlWriter) write(s string) {
	if x.err != nil {
		return
	}
	_, x.err = io.WriteString(x.w, s)
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"\n", "&#10;",
	"\r", "&#13;",
	"\t", "&#9;",
)

// quoteattr returns s as a double-quoted XML attribute value.
func quoteattr(s string) string {
	return `"` + attrEscaper.Replace(s) + `"`
}

// fmtTime renders a timestamp in the run's timezone.
func fmtTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(timeFormat)
}

// durationDays renders a fractional number of days as an ISO 8601 duration.
func durationDays(days float64) string {
	return isoDuration(time.Duration(days * 24 * float64(time.Hour)))
}

// durationMinutes renders a fractional number of minutes as an ISO 8601 duration.
func durationMinutes(minutes float64) string {
	return isoDuration(time.Duration(minutes * float64(time.Minute)))
}

// isoDuration renders a duration as P%dDT%dH%dM%dS.
func isoDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(math.Round(d.Seconds()))
	days := secs / 86400
	secs -= days * 86400
	return fmt.Sprintf("P%dDT%dH%dM%dS", days, secs/3600, (secs%3600)/60, secs%60)
}

// maxNameLength bounds operation names. Longer names are trimmed at
// the end of the base part so the identifier suffix always survives.
const maxNameLength = 300

// truncateName shortens base+suffix to the name limit. The suffix is
// preserved verbatim; only the tail of base is dropped.
func truncateName(base, suffix string) string {
	if len(base)+len(suffix) <= maxNameLength {
		return base + suffix
	}
	return base[:maxNameLength-len(suffix)] + suffix
}
