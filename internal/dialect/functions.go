package dialect

import (
	"regexp"
	"strings"

	"db-forge/internal/errs"
	"db-forge/internal/logger"
)

var funcNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// translateFunc maps a portable function name onto the native one.
// Names without a mapping pass through unchanged.
func translateFunc(name string, native map[string]string) (string, error) {
	if !funcNameRe.MatchString(name) {
		return "", errs.Build("invalid function name %q", name)
	}
	upper := strings.ToUpper(name)
	if n, ok := native[upper]; ok {
		return n, nil
	}
	return upper, nil
}

// TimeFunc is the native spelling of the portable timestamp formatter.
type TimeFunc struct {
	Name   string
	Format string
	// FormatFirst puts the format argument before the value, as strftime does.
	FormatFirst bool
}

// timeLayout translates layout letters in the style of date():
// Y y m n d j H G h i s A D l M F w z W N U. A backslash escapes the next
// character; any other character is copied as literal text.
type timeLayout struct {
	fn          string
	formatFirst bool
	tokens      map[byte]string
	// lossy tokens translate to an approximation and log a warning.
	lossy   map[byte]bool
	literal func(string) string
}

func (l timeLayout) translate(layout string, log *logger.Logger) TimeFunc {
	var out strings.Builder
	var text strings.Builder
	flush := func() {
		if text.Len() > 0 {
			out.WriteString(l.literal(text.String()))
			text.Reset()
		}
	}
	for i := 0; i < len(layout); i++ {
		ch := layout[i]
		if ch == '\\' && i+1 < len(layout) {
			i++
			text.WriteByte(layout[i])
			continue
		}
		native, ok := l.tokens[ch]
		if !ok {
			if isLayoutLetter(ch) {
				log.Warnf("%s: timestamp token %q has no equivalent, dropped", l.fn, string(ch))
				continue
			}
			text.WriteByte(ch)
			continue
		}
		if l.lossy[ch] {
			log.Warnf("%s: timestamp token %q translated approximately as %q", l.fn, string(ch), native)
		}
		flush()
		out.WriteString(native)
	}
	flush()
	return TimeFunc{Name: l.fn, Format: out.String(), FormatFirst: l.formatFirst}
}

func isLayoutLetter(ch byte) bool {
	return strings.IndexByte("YymndjHGhisADlMFwzWNU", ch) >= 0
}

func percentLiteral(s string) string { return strings.ReplaceAll(s, "%", "%%") }

func quotedLiteral(s string) string { return `"` + s + `"` }

func backslashLiteral(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == ' ' || r == '-' || r == ':' || r == '/' || r == '.' || r == ',' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('\\')
		b.WriteRune(r)
	}
	return b.String()
}

var strftimeLayout = timeLayout{
	fn:          "strftime",
	formatFirst: true,
	tokens: map[byte]string{
		'Y': "%Y", 'm': "%m", 'd': "%d", 'H': "%H", 'i': "%M", 's': "%S",
		'w': "%w", 'z': "%j", 'W': "%W", 'U': "%s",
	},
	lossy:   map[byte]bool{'z': true, 'W': true},
	literal: percentLiteral,
}

var dateFormatLayout = timeLayout{
	fn: "DATE_FORMAT",
	tokens: map[byte]string{
		'Y': "%Y", 'y': "%y", 'm': "%m", 'n': "%c", 'd': "%d", 'j': "%e",
		'H': "%H", 'G': "%k", 'h': "%h", 'i': "%i", 's': "%s", 'A': "%p",
		'D': "%a", 'l': "%W", 'M': "%b", 'F': "%M", 'w': "%w", 'z': "%j", 'W': "%v",
	},
	lossy:   map[byte]bool{'z': true},
	literal: percentLiteral,
}

var toCharLayout = timeLayout{
	fn: "TO_CHAR",
	tokens: map[byte]string{
		'Y': "YYYY", 'y': "YY", 'm': "MM", 'n': "FMMM", 'd': "DD", 'j': "FMDD",
		'H': "HH24", 'G': "FMHH24", 'h': "HH12", 'i': "MI", 's': "SS", 'A': "AM",
		'D': "Dy", 'l': "FMDay", 'M': "Mon", 'F': "FMMonth", 'z': "DDD", 'W': "IW", 'N': "ID",
	},
	lossy:   map[byte]bool{'z': true},
	literal: quotedLiteral,
}

var dotnetLayout = timeLayout{
	fn: "FORMAT",
	tokens: map[byte]string{
		'Y': "yyyy", 'y': "yy", 'm': "MM", 'n': "M", 'd': "dd", 'j': "d",
		'H': "HH", 'G': "H", 'h': "hh", 'i': "mm", 's': "ss", 'A': "tt",
		'D': "ddd", 'l': "dddd", 'M': "MMM", 'F': "MMMM",
	},
	literal: backslashLiteral,
}
