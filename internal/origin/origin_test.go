package origin

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		origin   string
		url      string
		patterns []string
		success  bool
	}{
		{name: "no_origin", url: "https://example.com/ws", success: true},
		{name: "invalid_origin", origin: "invalid", url: "https://example.com/ws", success: false},
		{name: "other_host", origin: "https://example.com", url: "https://example1.com/ws", success: false},
		{name: "same_host", origin: "https://example.com", url: "https://example.com/ws", success: true},
		{name: "same_host_case", origin: "https://examplE.com", url: "https://example.com/ws", success: true},
		{
			name:     "pattern",
			origin:   "https://two.Example.com",
			url:      "https://example.com/ws",
			patterns: []string{"*.example.com", "foo.com"},
			success:  true,
		},
		{
			name:     "pattern_uppercase",
			origin:   "https://two.example.com",
			url:      "https://example.com/ws",
			patterns: []string{"https://*.EXAMPLE.com"},
			success:  true,
		},
		{
			name:     "pattern_cyrillic_e",
			origin:   "https://two.еxample.com",
			url:      "https://example.com/ws",
			patterns: []string{"*.example.com"},
			success:  false,
		},
		{
			name:     "pattern_unauthorized",
			origin:   "https://two.example.com",
			url:      "https://example.com/ws",
			patterns: []string{"foo.com", "bar.com"},
			success:  false,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			checker, err := NewChecker(tc.patterns)
			require.NoError(t, err)
			r := httptest.NewRequest("GET", tc.url, nil)
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}
			err = checker.Check(r)
			if tc.success {
				require.NoError(t, err)
				require.True(t, checker.CheckOrigin(r))
			} else {
				require.Error(t, err)
				require.False(t, checker.CheckOrigin(r))
			}
		})
	}
}

func TestMalformedPattern(t *testing.T) {
	_, err := NewChecker([]string{"[a-"})
	require.Error(t, err)
}
