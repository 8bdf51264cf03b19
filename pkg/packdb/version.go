package packdb

import (
	"cmp"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FormatVersion is a "major.minor.patch" document format version. Missing
// trailing parts read as 0, so "1.16" equals "1.16.0".
type FormatVersion struct {
	Major, Minor, Patch int
}

// ParseFormatVersion parses s, which has one to three dot-separated
// non-negative integers.
func ParseFormatVersion(s string) (FormatVersion, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) > 3 {
		return FormatVersion{}, fmt.Errorf("%w: format version %q has more than three parts", ErrType, s)
	}

	var nums [3]int

	for i, part := range parts {
		if part == "" || strings.TrimLeft(part, "0123456789") != "" {
			return FormatVersion{}, fmt.Errorf("%w: invalid format version %q", ErrType, s)
		}

		n, err := strconv.Atoi(part)
		if err != nil {
			return FormatVersion{}, fmt.Errorf("%w: invalid format version %q: %w", ErrType, s, err)
		}

		nums[i] = n
	}

	return FormatVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String formats as "M.m.p".
func (v FormatVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or +1 as v is older, equal to or newer than o.
func (v FormatVersion) Compare(o FormatVersion) int {
	if c := cmp.Compare(v.Major, o.Major); c != 0 {
		return c
	}

	if c := cmp.Compare(v.Minor, o.Minor); c != 0 {
		return c
	}

	return cmp.Compare(v.Patch, o.Patch)
}

// versionOf accepts a FormatVersion, a version string or an unquoted
// number such as 1.16.
func versionOf(v any) (FormatVersion, error) {
	switch val := v.(type) {
	case FormatVersion:
		return val, nil
	case string:
		return ParseFormatVersion(val)
	case json.Number:
		return ParseFormatVersion(val.String())
	default:
		return FormatVersion{}, fmt.Errorf("%w: format version must be a string, got %T", ErrType, v)
	}
}
