package engine

import "github.com/codybloemhard/termdaw-go/internal/script"

// diff reports which entries of wanted are new relative to cur and
// which entries of cur no longer appear in wanted, by plain value
// equality -- the same two-list comparison state.rs's diff() does for
// samples/resources/lv2 plugins/params on every refresh.
func diff[T comparable](cur, wanted []T) (added, removed []T) {
	curSet := make(map[T]bool, len(cur))
	for _, c := range cur {
		curSet[c] = true
	}
	wantedSet := make(map[T]bool, len(wanted))
	for _, w := range wanted {
		wantedSet[w] = true
	}
	for _, w := range wanted {
		if !curSet[w] {
			added = append(added, w)
		}
	}
	for _, c := range cur {
		if !wantedSet[c] {
			removed = append(removed, c)
		}
	}
	return
}

func diffSamples(cur, wanted []script.SampleSeed) (added, removed []script.SampleSeed) {
	return diff(cur, wanted)
}

func diffResources(cur, wanted []script.ResourceSeed) (added, removed []script.ResourceSeed) {
	return diff(cur, wanted)
}

// excludeSamples drops every seed whose name is in excluded, mirroring
// state.rs's do_excluding! macro: a seed that failed to load this
// refresh does not get remembered as "current" either.
func excludeSamples(seeds []script.SampleSeed, excluded []string) []script.SampleSeed {
	if len(excluded) == 0 {
		return seeds
	}
	bad := toSet(excluded)
	kept := seeds[:0:0]
	for _, s := range seeds {
		if !bad[s.Name] {
			kept = append(kept, s)
		}
	}
	return kept
}

func excludeResources(seeds []script.ResourceSeed, excluded []string) []script.ResourceSeed {
	if len(excluded) == 0 {
		return seeds
	}
	bad := toSet(excluded)
	kept := seeds[:0:0]
	for _, s := range seeds {
		if !bad[s.Name] {
			kept = append(kept, s)
		}
	}
	return kept
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}
