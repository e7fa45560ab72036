package dialect

import (
	"strings"

	"db-forge/internal/errs"
)

// Keyword is an abstract keyword id resolved per dialect when a statement is built.
type Keyword int

const (
	KeywordNull Keyword = iota + 1
	KeywordCurrentTimestamp
	KeywordTrue
	KeywordFalse
	KeywordAutoIncrement
	KeywordUnsigned
	KeywordNotNull
	KeywordDefault
	KeywordIfExists
	KeywordIfNotExists
	KeywordConcat
)

var defaultKeywords = map[Keyword]string{
	KeywordNull:             "NULL",
	KeywordCurrentTimestamp: "CURRENT_TIMESTAMP",
	KeywordTrue:             "TRUE",
	KeywordFalse:            "FALSE",
	KeywordAutoIncrement:    "AUTOINCREMENT",
	KeywordUnsigned:         "UNSIGNED",
	KeywordNotNull:          "NOT NULL",
	KeywordDefault:          "DEFAULT",
	KeywordIfExists:         "IF EXISTS",
	KeywordIfNotExists:      "IF NOT EXISTS",
	KeywordConcat:           "||",
}

// JoinFlag bits combine into one JOIN operator.
type JoinFlag int

const (
	JoinNatural JoinFlag = 1 << iota
	JoinLeft
	JoinRight
	JoinCross
	JoinInner
	JoinOuter
)

// spellJoin renders flags in the fixed order NATURAL, side, OUTER, JOIN.
func spellJoin(flags JoinFlag, f cascade) (string, error) {
	parts := make([]string, 0, 4)
	if flags&JoinNatural != 0 {
		if !f.Supports(FeatureJoinNatural) {
			return "", errs.Build("NATURAL JOIN is not supported")
		}
		parts = append(parts, "NATURAL")
	}

	sides := 0
	for _, s := range []struct {
		flag JoinFlag
		word string
	}{{JoinLeft, "LEFT"}, {JoinRight, "RIGHT"}, {JoinCross, "CROSS"}, {JoinInner, "INNER"}} {
		if flags&s.flag != 0 {
			parts = append(parts, s.word)
			sides++
		}
	}
	if sides > 1 {
		return "", errs.Build("join combines more than one of LEFT, RIGHT, CROSS, INNER")
	}
	if flags&JoinRight != 0 && !f.Supports(FeatureJoinRight) {
		return "", errs.Build("RIGHT JOIN is not supported")
	}
	if flags&JoinCross != 0 && flags&JoinNatural != 0 {
		return "", errs.Build("NATURAL CROSS JOIN is not valid")
	}
	if flags&JoinOuter != 0 {
		if flags&(JoinLeft|JoinRight) == 0 {
			return "", errs.Build("OUTER requires LEFT or RIGHT")
		}
		parts = append(parts, "OUTER")
	}
	parts = append(parts, "JOIN")
	return strings.Join(parts, " "), nil
}
