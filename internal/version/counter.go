package version

import (
	"math"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Initial is the revision assigned to a newly tracked file, and the
// fallback for revisions that cannot be parsed.
const Initial = "0.0.1"

// Increment bumps the patch component of a "major.minor.patch" revision.
// Minor and major never change. Each component must be a non-negative
// decimal integer; leading zeros are accepted and dropped. Anything else,
// or a patch that cannot grow further, yields Initial.
func Increment(revision string) string {
	parts := strings.Split(revision, ".")
	if len(parts) != 3 {
		return Initial
	}

	var nums [3]uint64

	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Initial
		}

		nums[i] = n
	}

	if nums[2] == math.MaxUint64 {
		return Initial
	}

	return semver.New(nums[0], nums[1], nums[2]+1, "", "").String()
}
