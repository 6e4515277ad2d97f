package selection

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidSpecs(t *testing.T) {
	tests := []struct {
		name   string
		spec   string
		usable int
		want   []int
	}{
		{name: "empty selects all", spec: "", usable: 9, want: []int{0, 1, 2, 3, 4, 5, 6, 7, 8}},
		{name: "whitespace only selects all", spec: "   ", usable: 3, want: []int{0, 1, 2}},
		{name: "all keyword", spec: "all", usable: 3, want: []int{0, 1, 2}},
		{name: "all keyword case-insensitive", spec: "ALL", usable: 2, want: []int{0, 1}},
		{name: "single index", spec: "3", usable: 9, want: []int{3}},
		{name: "comma list", spec: "0,1,2", usable: 9, want: []int{0, 1, 2}},
		{name: "range", spec: "0-3", usable: 9, want: []int{0, 1, 2, 3}},
		{name: "range mid", spec: "2-5", usable: 9, want: []int{2, 3, 4, 5}},
		{name: "duplicates collapse", spec: "2,2,3", usable: 9, want: []int{2, 3}},
		{name: "mixed forms", spec: "0,2-4,7", usable: 9, want: []int{0, 2, 3, 4, 7}},
		{name: "unordered input sorts", spec: "5,1,3", usable: 9, want: []int{1, 3, 5}},
		{name: "overlapping range and index", spec: "1-3,2", usable: 9, want: []int{1, 2, 3}},
		{name: "tolerates whitespace", spec: " 0 , 2 - 4 ", usable: 9, want: []int{0, 2, 3, 4}},
		{name: "single element range", spec: "4-4", usable: 9, want: []int{4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.spec, tt.usable)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInvalidSpecs(t *testing.T) {
	tests := []struct {
		name   string
		spec   string
		usable int
		token  string
	}{
		{name: "out of range index", spec: "9", usable: 9, token: "9"},
		{name: "non-numeric", spec: "abc", usable: 9, token: "abc"},
		{name: "negative index", spec: "-1", usable: 9, token: "-1"},
		{name: "descending range", spec: "5-2", usable: 9, token: "5-2"},
		{name: "range end out of bounds", spec: "7-12", usable: 9, token: "7-12"},
		{name: "empty token in list", spec: "1,,2", usable: 9, token: `""`},
		{name: "float index", spec: "1.5", usable: 9, token: "1.5"},
		{name: "no usable levels", spec: "0", usable: 0, token: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.spec, tt.usable)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidLevelSpec))
			// Rejection is atomic: no partial selection escapes.
			assert.Nil(t, got)
			if tt.token != "" {
				assert.Contains(t, err.Error(), tt.token)
			}
		})
	}
}

func TestParseRejectsWholeSpecOnOneBadToken(t *testing.T) {
	got, err := Parse("0,1,oops,3", 9)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "oops")
}

func TestParseOutputIsStrictlyAscending(t *testing.T) {
	specs := []string{"", "3", "0-8", "8,0,4,4,2-6", "all"}
	for _, spec := range specs {
		levels, err := Parse(spec, 9)
		require.NoError(t, err, "spec %q", spec)
		for i := 1; i < len(levels); i++ {
			assert.Greater(t, levels[i], levels[i-1], "spec %q not strictly ascending", spec)
		}
		for _, l := range levels {
			assert.GreaterOrEqual(t, l, 0)
			assert.Less(t, l, 9)
		}
	}
}

func TestPromptText(t *testing.T) {
	text := PromptText(11, 9, 9)
	assert.True(t, strings.Contains(text, "Tissue levels: 11"))
	assert.True(t, strings.Contains(text, "Mask levels: 9"))
	assert.True(t, strings.Contains(text, "Maximum processable: 9"))
	assert.True(t, strings.Contains(text, "0 to 8"))
}
