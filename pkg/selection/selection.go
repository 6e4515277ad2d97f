// Package selection parses the user-facing pyramid level specification into
// a concrete ordered set of level indices. This grammar is the one protocol
// the pipeline implements exactly, since callers drive it with literal
// strings.
package selection

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidLevelSpec reports an out-of-range, non-numeric, or malformed
// token in a level specification. The whole specification is rejected
// atomically: no partial selection is ever returned. The error is fatal to
// the selection step only; a caller may re-prompt.
var ErrInvalidLevelSpec = errors.New("invalid level specification")

// Parse turns a specification string into a strictly ascending,
// duplicate-free sequence of level indices within [0, usableLevels-1].
//
// Grammar (case-insensitive, whitespace-tolerant):
//   - empty input, or "all"       -> every usable level
//   - single index                -> "3"
//   - comma-separated indices     -> "0,1,2"
//   - dash-separated range        -> "2-5" (inclusive)
//   - any comma combination       -> "0,2-4,7"
func Parse(spec string, usableLevels int) ([]int, error) {
	if usableLevels <= 0 {
		return nil, errors.Wrap(ErrInvalidLevelSpec, "no usable levels to select from")
	}

	trimmed := strings.TrimSpace(spec)
	if trimmed == "" || strings.EqualFold(trimmed, "all") {
		return allLevels(usableLevels), nil
	}

	picked := make(map[int]bool)
	for _, token := range strings.Split(trimmed, ",") {
		token = strings.TrimSpace(token)
		if strings.Contains(token, "-") {
			lo, hi, err := parseRange(token, usableLevels)
			if err != nil {
				return nil, err
			}
			for level := lo; level <= hi; level++ {
				picked[level] = true
			}
			continue
		}
		level, err := parseIndex(token, usableLevels)
		if err != nil {
			return nil, err
		}
		picked[level] = true
	}

	levels := make([]int, 0, len(picked))
	for level := range picked {
		levels = append(levels, level)
	}
	sort.Ints(levels)
	return levels, nil
}

func allLevels(n int) []int {
	levels := make([]int, n)
	for i := range levels {
		levels[i] = i
	}
	return levels
}

func parseIndex(token string, usableLevels int) (int, error) {
	level, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidLevelSpec, "token %q is not a level index", token)
	}
	if level < 0 || level >= usableLevels {
		return 0, errors.Wrapf(ErrInvalidLevelSpec, "token %q is outside levels 0-%d", token, usableLevels-1)
	}
	return level, nil
}

func parseRange(token string, usableLevels int) (int, int, error) {
	parts := strings.SplitN(token, "-", 2)
	lo, err := parseIndex(parts[0], usableLevels)
	if err != nil {
		return 0, 0, errors.Wrapf(ErrInvalidLevelSpec, "token %q has an invalid range start", token)
	}
	hi, err := parseIndex(parts[1], usableLevels)
	if err != nil {
		return 0, 0, errors.Wrapf(ErrInvalidLevelSpec, "token %q has an invalid range end", token)
	}
	if lo > hi {
		return 0, 0, errors.Wrapf(ErrInvalidLevelSpec, "token %q is a descending range", token)
	}
	return lo, hi, nil
}

// PromptText builds the level selection panel shown before the interactive
// prompt.
func PromptText(imageLevels, maskLevels, usableLevels int) string {
	var b strings.Builder
	line := strings.Repeat("-", 50)
	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "LEVEL SELECTION")
	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "Available Pyramid Levels:")
	fmt.Fprintf(&b, "- Tissue levels: %d\n", imageLevels)
	fmt.Fprintf(&b, "- Mask levels: %d\n", maskLevels)
	fmt.Fprintf(&b, "- Maximum processable: %d\n", usableLevels)
	fmt.Fprintf(&b, "- Level indices: 0 to %d\n", usableLevels-1)
	fmt.Fprintln(&b, "\nSelection Options:")
	fmt.Fprintln(&b, "- Single level: '0' or '2'")
	fmt.Fprintln(&b, "- Multiple levels: '0,1,2' or '1,3,5'")
	fmt.Fprintln(&b, "- Range: '0-3' or '2-5'")
	fmt.Fprintln(&b, "- All levels: press Enter (default)")
	fmt.Fprintln(&b, line)
	return b.String()
}
