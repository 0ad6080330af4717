package store

import (
	"strconv"
	"strings"
)

// CurrentVersion is stamped as creator version on every store this build
// creates.
const CurrentVersion = "1.1.0"

// KeyRepairVersion is the first creator version whose importer wrote
// well-formed keys. Stores created before it need a rebuild.
const KeyRepairVersion = "0.9.7"

type migration struct {
	Version     string
	Description string
}

// Each migration is applied by rebuilding the store through a snapshot
// merge, which rewrites every key and value.
var migrations = []migration{
	{
		Version:     KeyRepairVersion,
		Description: "repair missing space between code and text in entry keys",
	},
}

// PendingMigrations returns the migrations a store created by
// creatorVersion has not seen, oldest first.
func PendingMigrations(creatorVersion string) []string {
	var out []string
	for _, m := range migrations {
		if CompareVersions(creatorVersion, m.Version) < 0 {
			out = append(out, m.Version+": "+m.Description)
		}
	}
	return out
}

// CompareVersions compares dotted version strings component by component,
// numerically where both components are numbers. Missing components count
// as zero, so "1.0" == "1.0.0". An empty version sorts before everything.
func CompareVersions(a, b string) int {
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) || i < len(bs); i++ {
		x, y := "0", "0"
		if i < len(as) {
			x = as[i]
		}
		if i < len(bs) {
			y = bs[i]
		}
		if c := compareComponent(x, y); c != 0 {
			return c
		}
	}
	return 0
}

func compareComponent(x, y string) int {
	xn, xerr := strconv.Atoi(x)
	yn, yerr := strconv.Atoi(y)
	if xerr == nil && yerr == nil {
		switch {
		case xn < yn:
			return -1
		case xn > yn:
			return 1
		}
		return 0
	}
	return strings.Compare(x, y)
}
