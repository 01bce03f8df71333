package reconcile

import (
	"regexp"
	"strconv"
)

// versionPattern matches an embedded 3-digit version suffix, e.g.
// jcmts20100311_00022_850_reduced_001.fits.
var versionPattern = regexp.MustCompile(`^(.*)_(\d{3})(\.[^.]*)?$`)

// SplitVersion splits an artifact URI into its versionless logical key and
// the embedded version number. Artifacts without a version suffix report
// ok=false and are matched exactly during reconciliation.
func SplitVersion(uri string) (key string, version int, ok bool) {
	m := versionPattern.FindStringSubmatch(uri)
	if m == nil {
		return uri, 0, false
	}
	v, err := strconv.Atoi(m[2])
	if err != nil {
		return uri, 0, false
	}
	return m[1] + m[3], v, true
}

// ReplaceVersions compares the versioned artifacts an observation held
// before the run with the ones the current run produced. For every logical
// key present on both sides, a post-run highest version lower than the
// pre-run lowest is a fatal regression; a higher version supersedes the
// old artifacts, which are returned for deletion.
func ReplaceVersions(existing, incoming []string) (remove []string, err error) {
	type preEntry struct {
		lowest int
		uris   []string // versioned uris, all versions
	}
	pre := map[string]*preEntry{}
	for _, uri := range existing {
		key, version, ok := SplitVersion(uri)
		if !ok {
			continue
		}
		e, seen := pre[key]
		if !seen {
			e = &preEntry{lowest: version}
			pre[key] = e
		} else if version < e.lowest {
			e.lowest = version
		}
		e.uris = append(e.uris, uri)
	}

	highestPost := map[string]int{}
	for _, uri := range incoming {
		key, version, ok := SplitVersion(uri)
		if !ok {
			continue
		}
		if v, seen := highestPost[key]; !seen || version > v {
			highestPost[key] = version
		}
	}

	for key, post := range highestPost {
		e, seen := pre[key]
		if !seen {
			continue
		}
		if post < e.lowest {
			return nil, &ReconciliationError{
				Subject: key,
				Reason:  "run would write version " + versionSuffix(post) + " below stored version " + versionSuffix(e.lowest),
			}
		}
		for _, uri := range e.uris {
			_, version, _ := SplitVersion(uri)
			if version < post {
				remove = append(remove, uri)
			}
		}
	}
	return remove, nil
}

func versionSuffix(v int) string {
	s := strconv.Itoa(v)
	for len(s) < 3 {
		s = "0" + s
	}
	return s
}
