package engine

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-forge/internal/schema"
)

func TestAnalyzeMeaning(t *testing.T) {
	cases := []struct {
		column, comment string
		want            Meaning
	}{
		{"cust_tel", "", MeaningPhone},
		{"contact", "고객 연락처", MeaningPhone},
		{"email", "", MeaningEmail},
		{"user_nm", "", MeaningName},
		{"name_id", "", MeaningID},
		{"home_addr", "", MeaningAddress},
		{"zip_cd", "", MeaningZipcode},
		{"is_active", "", MeaningYesNo},
		{"use_yn", "", MeaningYesNo},
		{"created_at", "", MeaningDate},
		{"unit_amt", "", MeaningPrice},
		{"x1", "상품 가격", MeaningPrice},
		{"release_year", "", MeaningYear},
		{"payload", "", MeaningNone},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, AnalyzeMeaning(tc.column, tc.comment), tc.column)
	}
}

func TestParseLocale(t *testing.T) {
	l, err := ParseLocale(" EN ")
	require.NoError(t, err)
	assert.Equal(t, LocaleEnglish, l)

	l, err = ParseLocale("")
	require.NoError(t, err)
	assert.Equal(t, LocaleKorean, l)

	_, err = ParseLocale("fr")
	assert.Error(t, err)
}

func column(t *testing.T, table, name string, typ schema.DataType) *schema.Column {
	t.Helper()
	tbl := schema.NewTable(table)
	c := schema.NewColumn(name, typ)
	require.NoError(t, tbl.Add(c))
	return c
}

func TestGeneratorIsRepeatable(t *testing.T) {
	c := column(t, "users", "name", schema.String)
	a := NewGenerator(WithSeed(7))
	b := NewGenerator(WithSeed(7))
	for i := 0; i < 5; i++ {
		assert.Equal(t, a.Value(c, i, false), b.Value(c, i, false))
	}
}

func TestGeneratorRespectsLength(t *testing.T) {
	g := NewGenerator(WithSeed(1))
	c := column(t, "posts", "body", schema.String)
	c.Length = 4
	for i := 0; i < 20; i++ {
		v := g.Value(c, i, false).(string)
		assert.LessOrEqual(t, utf8.RuneCountInString(v), 4)
	}
}

func TestGeneratorKoreanLocale(t *testing.T) {
	g := NewGenerator(WithSeed(3), WithLocale(LocaleKorean))
	phone := g.Value(column(t, "users", "phone", schema.String), 1, false).(string)
	assert.Regexp(t, `^010-\d{4}-\d{4}$`, phone)
	assert.Equal(t, "대한민국", g.Value(column(t, "users", "country", schema.String), 1, false))

	name := g.Value(column(t, "users", "name", schema.String), 1, false).(string)
	assert.Contains(t, koLastNames, string([]rune(name)[:1]))
}

func TestGeneratorEnglishText(t *testing.T) {
	g := NewGenerator(WithSeed(3), WithLocale(LocaleEnglish))
	title := g.Value(column(t, "movies", "title", schema.String), 1, false).(string)
	for _, w := range strings.Fields(title) {
		assert.Contains(t, wordDict, w)
	}
}

func TestGeneratorUniqueText(t *testing.T) {
	g := NewGenerator(WithSeed(5))
	c := column(t, "tags", "label", schema.String)
	seen := map[any]bool{}
	for i := 1; i <= 50; i++ {
		v := g.Value(c, i, true)
		assert.False(t, seen[v], "repeated %v", v)
		seen[v] = true
	}
}

func TestGeneratorTypes(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	g := NewGenerator(WithSeed(11), WithClock(func() time.Time { return now }))

	small := column(t, "items", "rank", schema.Integer)
	small.Length = 2
	n := g.Value(small, 1, false).(int)
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, 99)

	flag := g.Value(column(t, "items", "is_active", schema.Integer), 1, false).(int)
	assert.Contains(t, []int{0, 1}, flag)

	price := column(t, "items", "price", schema.Number)
	price.Length, price.Scale = 5, 2
	d := g.Value(price, 1, false).(decimal.Decimal)
	assert.True(t, d.LessThan(decimal.NewFromInt(1000)))
	assert.LessOrEqual(t, -d.Exponent(), int32(2))

	ts := g.Value(column(t, "items", "created_at", schema.Timestamp), 1, false).(time.Time)
	assert.False(t, ts.After(now))
	assert.True(t, ts.After(now.AddDate(-1, 0, -1)))

	part := g.Value(column(t, "payment_p2024_03", "paid_at", schema.Timestamp), 1, false).(time.Time)
	assert.Equal(t, 2024, part.Year())
	assert.Equal(t, time.March, part.Month())

	enum := column(t, "items", "state", schema.String)
	enum.Enum = []string{"new", "done"}
	assert.Contains(t, enum.Enum, g.Value(enum, 1, false))

	assert.IsType(t, []byte{}, g.Value(column(t, "items", "blob", schema.Binary), 1, false))
	assert.IsType(t, true, g.Value(column(t, "items", "ok", schema.Boolean), 1, false))
	assert.Nil(t, g.Value(column(t, "items", "nothing", schema.Null), 1, false))
}
