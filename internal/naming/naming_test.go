package naming

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestRenameHistoryAliases(t *testing.T) {
	testCases := []struct {
		name    string
		in      map[string]int
		want    map[string]int
		applied int
	}{
		{
			name:    "source key renamed",
			in:      map[string]int{"Taiwan*": 1, "France": 2},
			want:    map[string]int{"Taiwan": 1, "France": 2},
			applied: 1,
		},
		{
			name:    "all four",
			in:      map[string]int{"Taiwan*": 1, "Korea, South": 2, "US": 3, "United Kingdom": 4},
			want:    map[string]int{"Taiwan": 1, "S. Korea": 2, "USA": 3, "UK": 4},
			applied: 4,
		},
		{
			name:    "existing target overwritten",
			in:      map[string]int{"US": 3, "USA": 99},
			want:    map[string]int{"USA": 3},
			applied: 1,
		},
		{
			name:    "missing source leaves map alone",
			in:      map[string]int{"Taiwan": 7},
			want:    map[string]int{"Taiwan": 7},
			applied: 0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			applied := Rename(tc.in, HistoryAliases)
			if diff := cmp.Diff(tc.want, tc.in); diff != "" {
				t.Errorf("renamed map mismatch (-want +got):\n%s", diff)
			}
			require.Len(t, applied, tc.applied)
		})
	}
}

func TestNearMisses(t *testing.T) {
	today := []string{"Czechia", "North Macedonia", "France"}
	yesterday := []string{"Czech Republic", "N. Macedonia", "North Macedonia ", "Japan"}

	got := NearMisses(today, yesterday, DefaultThreshold)
	require.NotEmpty(t, got)
	require.Equal(t, "North Macedonia", got[0].A)
	require.Equal(t, "North Macedonia ", got[0].B)
	for _, m := range got {
		require.NotEqual(t, "France", m.A)
		require.GreaterOrEqual(t, m.Score, DefaultThreshold)
	}
}
