package process

import (
	"testing"

	"github.com/giwty/x360-tu-manager/db"
	"github.com/stretchr/testify/assert"
)

func TestClassifyTitleUpdate(t *testing.T) {
	games := []db.GameRecord{
		{Name: "Forza Motorsport 3", TitleId: "4D5309C9"},
		{Name: "Halo 3", TitleId: "4D5307E6"},
	}

	tests := []struct {
		name     string
		fileName string
		expected Classification
	}{
		{"content suffix", "AB12CD34_2.tu",
			Classification{Category: CATEGORY_CONTENT, TitleId: "AB12CD34", Rule: RULE_CONTENT_SUFFIX, IsTitleUpdate: true}},
		{"content suffix lowercase id", "5841109f_3.tu",
			Classification{Category: CATEGORY_CONTENT, TitleId: "5841109F", Rule: RULE_CONTENT_SUFFIX, IsTitleUpdate: true}},
		{"content suffix without underscore", "update.tu",
			Classification{Category: CATEGORY_CONTENT, Rule: RULE_CONTENT_SUFFIX, IsTitleUpdate: true}},
		{"cache prefix with known game", "TU_10K34D_4D5307E6.bin",
			Classification{Category: CATEGORY_CACHE, TitleId: "4D5307E6", Rule: RULE_CACHE_PREFIX, IsTitleUpdate: true}},
		{"cache prefix unknown game", "TU_16L61V6_X.bin",
			Classification{Category: CATEGORY_CACHE, Rule: RULE_CACHE_PREFIX, IsTitleUpdate: true}},
		{"cache prefix too short", "TU_ABCDEF",
			Classification{Category: CATEGORY_CONTENT, Rule: RULE_DEFAULT}},
		{"content prefix", "tu00000002_00000000",
			Classification{Category: CATEGORY_CONTENT, TitleId: "00000002", Rule: RULE_CONTENT_PREFIX, IsTitleUpdate: true}},
		{"content prefix mixed case", "Tu4d5307e6_0000000a",
			Classification{Category: CATEGORY_CONTENT, TitleId: "4D5307E6", Rule: RULE_CONTENT_PREFIX, IsTitleUpdate: true}},
		{"content prefix not hex", "tuzzzzzzzz_00000000",
			Classification{Category: CATEGORY_CONTENT, Rule: RULE_CONTENT_PREFIX, IsTitleUpdate: true}},
		{"content prefix without underscore", "tu0000000200000000",
			Classification{Category: CATEGORY_CONTENT, Rule: RULE_DEFAULT}},
		{"not a title update", "default.xex",
			Classification{Category: CATEGORY_CONTENT, Rule: RULE_DEFAULT}},
		{"suffix wins over prefix", "TU_4D5307E6_1.tu",
			Classification{Category: CATEGORY_CONTENT, TitleId: "TU", Rule: RULE_CONTENT_SUFFIX, IsTitleUpdate: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyTitleUpdate(tt.fileName, games))
		})
	}
}

func TestClassifyCacheFirstGameWins(t *testing.T) {
	// both TitleIDs appear in the name, scan order decides
	name := "TU_4D5307E6_4D5309C9.bin"

	first := ClassifyTitleUpdate(name, []db.GameRecord{{TitleId: "4D5309C9"}, {TitleId: "4D5307E6"}})
	second := ClassifyTitleUpdate(name, []db.GameRecord{{TitleId: "4D5307E6"}, {TitleId: "4D5309C9"}})

	assert.Equal(t, "4D5309C9", first.TitleId)
	assert.Equal(t, "4D5307E6", second.TitleId)
	assert.Equal(t, CATEGORY_CACHE, first.Category)
}

func TestLayoutPath(t *testing.T) {
	assert.Equal(t, "Content/0000000000000000/5841109F/000B0000/5841109F_2.tu",
		LayoutPath(CATEGORY_CONTENT, "5841109F", "5841109F_2.tu"))
	assert.Equal(t, "Cache/TU_16L61V6_X.bin", LayoutPath(CATEGORY_CACHE, "", "TU_16L61V6_X.bin"))
	assert.Equal(t, "Cache/TU_16L61V6_X.bin", LayoutPath(CATEGORY_CACHE, "4D5307E6", "TU_16L61V6_X.bin"))
}
