package domain

import (
	"testing"
	"time"
)

func TestCollectionTarget(t *testing.T) {
	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "weekday stays put",
			now:  time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC), // Monday
			want: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "saturday stays put",
			now:  time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday shifts to prior saturday",
			now:  time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CollectionTarget(tc.now)
			if !got.Equal(tc.want) {
				t.Fatalf("CollectionTarget(%s) = %s, want %s", tc.now, got, tc.want)
			}
		})
	}
}
