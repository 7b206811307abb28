package process

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/giwty/x360-tu-manager/db"
)

type Category string

const (
	CATEGORY_CONTENT Category = "content"
	CATEGORY_CACHE   Category = "cache"
)

const (
	RULE_CONTENT_SUFFIX = "content-suffix"
	RULE_CACHE_PREFIX   = "cache-prefix"
	RULE_CONTENT_PREFIX = "content-prefix"
	RULE_DEFAULT        = "default"
)

var hexTitleIdRegex = regexp.MustCompile(`^[0-9A-Fa-f]{8}$`)

// Classification of a single file name
type Classification struct {
	Category      Category
	TitleId       string
	Rule          string
	IsTitleUpdate bool
}

type classificationRule struct {
	name     string
	matches  func(fileName string) bool
	classify func(fileName string, games []db.GameRecord) Classification
}

// Evaluated top to bottom, the first matching rule wins.
var classificationRules = []classificationRule{
	{
		name:    RULE_CONTENT_SUFFIX,
		matches: func(fileName string) bool { return strings.HasSuffix(fileName, ".tu") },
		classify: func(fileName string, _ []db.GameRecord) Classification {
			titleId := ""
			if prefix, _, found := strings.Cut(fileName, "_"); found {
				titleId = strings.ToUpper(prefix)
			}
			return Classification{Category: CATEGORY_CONTENT, TitleId: titleId}
		},
	},
	{
		name: RULE_CACHE_PREFIX,
		matches: func(fileName string) bool {
			return strings.HasPrefix(fileName, "TU_") && hasUpper(fileName) && len(fileName) > 10
		},
		classify: func(fileName string, games []db.GameRecord) Classification {
			// FIXME: first game whose TitleID appears anywhere in the name wins, so
			// scan order decides between overlapping TitleIDs.
			titleId := ""
			for _, game := range games {
				if game.TitleId != "" && strings.Contains(fileName, game.TitleId) {
					titleId = game.TitleId
					break
				}
			}
			return Classification{Category: CATEGORY_CACHE, TitleId: titleId}
		},
	},
	{
		name: RULE_CONTENT_PREFIX,
		matches: func(fileName string) bool {
			return len(fileName) > 10 && strings.HasPrefix(strings.ToLower(fileName), "tu") &&
				strings.Contains(fileName, "_")
		},
		classify: func(fileName string, _ []db.GameRecord) Classification {
			titleId := ""
			if candidate := fileName[2:10]; hexTitleIdRegex.MatchString(candidate) {
				titleId = strings.ToUpper(candidate)
			}
			return Classification{Category: CATEGORY_CONTENT, TitleId: titleId}
		},
	},
}

// ClassifyTitleUpdate decides where a title update file belongs. Names no rule recognizes are
// reported with IsTitleUpdate false and default to the content category without a TitleID.
func ClassifyTitleUpdate(fileName string, games []db.GameRecord) Classification {
	for _, rule := range classificationRules {
		if rule.matches(fileName) {
			result := rule.classify(fileName, games)
			result.Rule = rule.name
			result.IsTitleUpdate = true
			return result
		}
	}
	return Classification{Category: CATEGORY_CONTENT, Rule: RULE_DEFAULT}
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}
