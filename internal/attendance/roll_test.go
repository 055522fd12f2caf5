package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRoll(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  Roll
	}{
		{
			name:  "standard ug email",
			email: "2046ugcm300@nitjsr.ac.in",
			want: Roll{
				Year:       "2046",
				Program:    "UG",
				Branch:     "CM",
				RollNo:     "300",
				RollNumber: "2046UGCM300",
			},
		},
		{
			name:  "pg with four letter branch",
			email: "2023pgcsca12@nitjsr.ac.in",
			want: Roll{
				Year:       "2023",
				Program:    "PG",
				Branch:     "CSCA",
				RollNo:     "12",
				RollNumber: "2023PGCSCA12",
			},
		},
		{
			name:  "mixed case parses the same",
			email: "2046UGcm300@NITJSR.AC.IN",
			want: Roll{
				Year:       "2046",
				Program:    "UG",
				Branch:     "CM",
				RollNo:     "300",
				RollNumber: "2046UGCM300",
			},
		},
		{
			name:  "no match keeps sentinel fields",
			email: "faculty.office@nitjsr.ac.in",
			want: Roll{
				Year:       "-",
				Program:    "-",
				Branch:     "-",
				RollNo:     "-",
				RollNumber: "FACULTY.OFFICE",
			},
		},
		{
			name:  "branch too long does not match",
			email: "2046ugabcde300@nitjsr.ac.in",
			want: Roll{
				Year:       "-",
				Program:    "-",
				Branch:     "-",
				RollNo:     "-",
				RollNumber: "2046UGABCDE300",
			},
		},
		{
			name:  "bare local part without domain",
			email: "2046ugcm300",
			want: Roll{
				Year:       "2046",
				Program:    "UG",
				Branch:     "CM",
				RollNo:     "300",
				RollNumber: "2046UGCM300",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRoll(tt.email))
		})
	}
}

func TestParseRollCaseInsensitive(t *testing.T) {
	a := ParseRoll("2046ugcm300@nitjsr.ac.in")
	b := ParseRoll("2046UGCM300@NITJSR.AC.IN")
	assert.Equal(t, a, b)
}
