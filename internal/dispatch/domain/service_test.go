package domain

import (
	"testing"
	"time"
)

func TestNextBusinessDay(t *testing.T) {
	cases := []struct {
		name string
		from time.Time
		want time.Time
	}{
		{
			name: "thursday to friday",
			from: time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "friday skips weekend",
			from: time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "saturday to monday",
			from: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday to monday",
			from: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextBusinessDay(tc.from)
			if !got.Equal(tc.want) {
				t.Fatalf("NextBusinessDay(%s) = %s, want %s", tc.from, got, tc.want)
			}
		})
	}
}
