// Package format expands the command, path and SQL templates used by the
// event handlers.
//
// Date and time fields follow strftime. On top of that:
//
//	%f          filename of the event
//	%n          numeric subtype code
//	%{filetype} symbolic subtype name (image, movie, snapshot+image, ...)
//	%v          event number
//	%q          shot number inside the current second
//	%t          camera id
//	%i / %J     image width / height
//	%{host}     hostname
//	%{fps}      frame rate of the current movie
//
// Anything not recognised is copied to the output unchanged.
package format

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sua-org/cam-events/internal/core"
)

// MaxLength is the size of the destination buffer (PATH_MAX). Output is cut
// to MaxLength-1 bytes.
const MaxLength = 4096

// Vars is the substitution context of a template.
type Vars struct {
	Time     time.Time
	Filename string
	FileType core.FileType

	EventNr  int
	Shot     int
	CameraID int
	Width    int
	Height   int
	FPS      int
	Host     string
}

var weekdays = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// Expand substitutes every recognised token of tmpl.
func Expand(tmpl string, v Vars) string {
	var b strings.Builder
	b.Grow(len(tmpl) + 32)

	t := v.Time
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '%' || i+1 >= len(tmpl) {
			b.WriteByte(c)
			continue
		}

		verb := tmpl[i+1]
		if verb == '{' {
			end := strings.IndexByte(tmpl[i+2:], '}')
			if end < 0 {
				b.WriteByte(c)
				continue
			}
			name := tmpl[i+2 : i+2+end]
			if val, ok := named(name, v); ok {
				b.WriteString(val)
			} else {
				b.WriteString(tmpl[i : i+3+end])
			}
			i += 2 + end
			continue
		}

		if val, ok := verbValue(verb, t, v); ok {
			b.WriteString(val)
		} else {
			b.WriteByte('%')
			b.WriteByte(verb)
		}
		i++
	}

	return truncate(b.String(), MaxLength-1)
}

func named(name string, v Vars) (string, bool) {
	switch name {
	case "host":
		return v.Host, true
	case "fps":
		return strconv.Itoa(v.FPS), true
	case "filetype":
		return v.FileType.Name(), true
	}
	return "", false
}

func verbValue(verb byte, t time.Time, v Vars) (string, bool) {
	switch verb {
	// motion tokens
	case 'f':
		return v.Filename, true
	case 'n':
		return strconv.Itoa(int(v.FileType)), true
	case 'v':
		return fmt.Sprintf("%02d", v.EventNr), true
	case 'q':
		return fmt.Sprintf("%02d", v.Shot), true
	case 't':
		return strconv.Itoa(v.CameraID), true
	case 'i':
		return strconv.Itoa(v.Width), true
	case 'J':
		return strconv.Itoa(v.Height), true

	// strftime
	case 'Y':
		return fmt.Sprintf("%04d", t.Year()), true
	case 'y':
		return fmt.Sprintf("%02d", t.Year()%100), true
	case 'm':
		return fmt.Sprintf("%02d", int(t.Month())), true
	case 'd':
		return fmt.Sprintf("%02d", t.Day()), true
	case 'e':
		return fmt.Sprintf("%2d", t.Day()), true
	case 'H':
		return fmt.Sprintf("%02d", t.Hour()), true
	case 'I':
		h := t.Hour() % 12
		if h == 0 {
			h = 12
		}
		return fmt.Sprintf("%02d", h), true
	case 'M':
		return fmt.Sprintf("%02d", t.Minute()), true
	case 'S':
		return fmt.Sprintf("%02d", t.Second()), true
	case 'p':
		if t.Hour() < 12 {
			return "AM", true
		}
		return "PM", true
	case 'j':
		return fmt.Sprintf("%03d", t.YearDay()), true
	case 'a':
		return weekdays[t.Weekday()][:3], true
	case 'A':
		return weekdays[t.Weekday()], true
	case 'b', 'h':
		return t.Month().String()[:3], true
	case 'B':
		return t.Month().String(), true
	case 'u':
		wd := int(t.Weekday())
		if wd == 0 {
			wd = 7
		}
		return strconv.Itoa(wd), true
	case 'w':
		return strconv.Itoa(int(t.Weekday())), true
	case 'F':
		return t.Format("2006-01-02"), true
	case 'T':
		return t.Format("15:04:05"), true
	case 'R':
		return t.Format("15:04"), true
	case 's':
		return strconv.FormatInt(t.Unix(), 10), true
	case 'z':
		return t.Format("-0700"), true
	case 'Z':
		return t.Format("MST"), true
	case '%':
		return "%", true
	}
	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// do not split a multi-byte rune
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
