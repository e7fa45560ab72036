package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"

	"db-forge/internal/errs"
	"db-forge/internal/schema"
)

// Locale selects the language of generated names, addresses and text.
type Locale string

const (
	LocaleKorean  Locale = "ko"
	LocaleEnglish Locale = "en"
)

func ParseLocale(s string) (Locale, error) {
	switch l := Locale(strings.ToLower(strings.TrimSpace(s))); l {
	case LocaleKorean, LocaleEnglish:
		return l, nil
	case "":
		return LocaleKorean, nil
	}
	return "", errs.Newf(errs.KindInvalidInput, "unknown locale %q", s)
}

type GeneratorOption func(*Generator)

func WithLocale(l Locale) GeneratorOption {
	return func(g *Generator) { g.locale = l }
}

// WithSeed makes the generated values repeatable.
func WithSeed(seed int64) GeneratorOption {
	return func(g *Generator) { g.fake = gofakeit.New(seed) }
}

// WithClock sets the time generated timestamps are relative to.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// Generator makes up plausible column values from the column type and what
// its name and comment suggest it holds. It is not safe for concurrent use.
type Generator struct {
	fake   *gofakeit.Faker
	locale Locale
	now    func() time.Time
}

func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{locale: LocaleKorean, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	if g.fake == nil {
		g.fake = gofakeit.New(0)
	}
	return g
}

func (g *Generator) intn(n int) int { return g.fake.Rand.Intn(n) }

func (g *Generator) pick(list []string) string { return list[g.intn(len(list))] }

// Value generates a value for c. seq is the attempt number within the table;
// unique columns get it mixed into free text so values do not repeat.
func (g *Generator) Value(c *schema.Column, seq int, unique bool) any {
	if len(c.Enum) > 0 {
		return g.pick(c.Enum)
	}
	meaning := AnalyzeMeaning(c.Name(), c.Comment)

	switch c.Type.Primary() {
	case schema.String:
		return truncate(g.text(c, meaning, seq, unique), c.Length)
	case schema.Integer:
		return g.integer(c, meaning)
	case schema.Number:
		return g.number(c, meaning)
	case schema.Float:
		return g.fake.Float64Range(0, 1000)
	case schema.Timestamp:
		return g.timestamp(c)
	case schema.Boolean:
		return g.fake.Bool()
	case schema.Binary:
		n := c.Length
		if n <= 0 || n > 16 {
			n = 16
		}
		return []byte(g.fake.LetterN(uint(n)))
	}
	return nil
}

func (g *Generator) text(c *schema.Column, meaning Meaning, seq int, unique bool) string {
	switch meaning {
	case MeaningYear:
		return strconv.Itoa(2000 + g.intn(26))
	case MeaningPhone:
		return g.phone()
	case MeaningEmail:
		if unique {
			return fmt.Sprintf("%d.%s", seq, g.fake.Email())
		}
		return g.fake.Email()
	case MeaningName:
		if c.Length > 0 && c.Length < 3 && g.locale == LocaleKorean {
			return g.pick(koLastNames)
		}
		return g.name()
	case MeaningAddress:
		if strings.Contains(c.Name(), "2") {
			return g.addressDetail()
		}
		return g.address()
	case MeaningZipcode:
		return fmt.Sprintf("%05d", g.intn(100000))
	case MeaningYesNo:
		if g.intn(2) == 0 {
			return "Y"
		}
		return "N"
	case MeaningPassword:
		return g.fake.Password(true, true, true, false, false, 12)
	case MeaningCountry:
		if g.locale == LocaleKorean {
			return "대한민국"
		}
		return g.fake.Country()
	case MeaningCity:
		if g.locale == LocaleKorean {
			return g.pick(koCities)
		}
		return g.fake.City()
	case MeaningDistrict:
		if g.locale == LocaleKorean {
			return g.pick(koDistricts)
		}
		return g.fake.State()
	case MeaningIP:
		return g.fake.IPv4Address()
	case MeaningURL:
		return g.fake.URL()
	case MeaningTitle:
		return g.withSeq(g.words(2), seq, unique)
	case MeaningDescription:
		return g.withSeq(g.words(10), seq, unique)
	}

	words := 5
	if c.Length > 0 && c.Length < 20 {
		words = 1
	}
	return g.withSeq(g.words(words), seq, unique)
}

func (g *Generator) withSeq(s string, seq int, unique bool) string {
	if !unique {
		return s
	}
	return fmt.Sprintf("%d-%s", seq, s)
}

func (g *Generator) words(n int) string {
	out := make([]string, n)
	for i := range out {
		w := g.pick(dictWords)
		if g.locale == LocaleKorean {
			w = wordDict[w]
		}
		out[i] = w
	}
	return strings.Join(out, " ")
}

func (g *Generator) name() string {
	if g.locale == LocaleKorean {
		return g.pick(koLastNames) + g.pick(koFirstNames)
	}
	return g.fake.Name()
}

func (g *Generator) address() string {
	if g.locale == LocaleKorean {
		return fmt.Sprintf("%s %s %s %d번길", g.pick(koCities), g.pick(koDistricts), g.pick(koStreets), g.intn(100)+1)
	}
	return g.fake.Street() + ", " + g.fake.City()
}

func (g *Generator) addressDetail() string {
	if g.locale == LocaleKorean {
		return fmt.Sprintf("%d층 %d호", g.intn(20)+1, g.intn(10)+1)
	}
	return fmt.Sprintf("Apt %d", g.intn(999)+1)
}

func (g *Generator) phone() string {
	if g.locale == LocaleKorean {
		return fmt.Sprintf("010-%04d-%04d", g.intn(10000), g.intn(10000))
	}
	return g.fake.PhoneFormatted()
}

func (g *Generator) integer(c *schema.Column, meaning Meaning) any {
	switch meaning {
	case MeaningYesNo:
		return g.intn(2)
	case MeaningYear:
		return 2000 + g.intn(26)
	case MeaningCount:
		return g.fake.Number(1, 100)
	}
	upper := 50000
	if c.Length > 0 && c.Length < 10 {
		if limit := pow10(c.Length) - 1; limit < upper {
			upper = limit
		}
	}
	if upper < 1 {
		upper = 9
	}
	return g.fake.Number(1, upper)
}

// number respects the precision and scale of c.
func (g *Generator) number(c *schema.Column, meaning Meaning) decimal.Decimal {
	upper := 99.99
	if meaning == MeaningPrice {
		upper = 99999.99
	}
	if c.Length > 0 {
		digits := c.Length - c.Scale
		if digits < 1 {
			upper = 0.9
		} else if digits < 10 {
			if limit := float64(pow10(digits)) - 1; limit < upper {
				upper = limit
			}
		}
	}
	v := decimal.NewFromFloat(g.fake.Float64Range(0, upper))
	if c.Length > 0 {
		return v.Truncate(int32(c.Scale))
	}
	return v.Round(2)
}

// partitionRe matches tables partitioned by month, such as payment_p2024_03.
var partitionRe = regexp.MustCompile(`_p(\d{4})_(\d{2})$`)

func (g *Generator) timestamp(c *schema.Column) time.Time {
	if t := c.Table(); t != nil {
		if m := partitionRe.FindStringSubmatch(t.Name()); m != nil {
			year, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			if month >= 1 && month <= 12 {
				start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
				return g.fake.DateRange(start, start.AddDate(0, 1, 0).Add(-time.Second)).UTC().Truncate(time.Second)
			}
		}
	}
	now := g.now().UTC()
	return g.fake.DateRange(now.AddDate(-1, 0, 0), now).UTC().Truncate(time.Second)
}

func pow10(n int) int {
	v := 1
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	if r := []rune(s); len(r) > limit {
		return string(r[:limit])
	}
	return s
}
