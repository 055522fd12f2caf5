package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ignisight/attendance-server/internal/model"
)

func TestSortByRoll(t *testing.T) {
	recs := []model.Record{
		{RollNumber: "2046UGCM30"},
		{RollNumber: "2046UGCM9"},
		{RollNumber: "2046UGCM300"},
		{RollNumber: "2046UGEE1"},
		{RollNumber: "2045UGCM5"},
	}
	SortByRoll(recs)

	got := make([]string, len(recs))
	for i, r := range recs {
		got[i] = r.RollNumber
	}
	assert.Equal(t, []string{
		"2045UGCM5",
		"2046UGCM9",
		"2046UGCM30",
		"2046UGCM300",
		"2046UGEE1",
	}, got)
}

func TestNaturalLess(t *testing.T) {
	assert.True(t, naturalLess("CM9", "CM10"))
	assert.False(t, naturalLess("CM10", "CM9"))
	assert.True(t, naturalLess("CM10", "CM10A"))
	assert.False(t, naturalLess("CM10", "CM10"))
}
