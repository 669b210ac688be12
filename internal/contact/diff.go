package contact

// Diff returns the fields set on update whose values differ from original.
// Fields the server maintains are never reported. The result follows table
// order so generated UPDATE statements are stable.
func Diff(original, update *Contact) []Field {
	var changed []Field
	for _, m := range mappings {
		if !m.Updatable || !m.isSet(update) {
			continue
		}
		if m.Equal(original, update) {
			continue
		}
		changed = append(changed, m.Field)
	}
	return changed
}

// DiffDistributionList compares two member lists and returns the members of
// next missing from prev (add) and the members of prev missing from next
// (remove).
func DiffDistributionList(prev, next []DistributionListEntry) (add, remove []DistributionListEntry) {
	return diffKeyed(prev, next, DistributionListEntry.Key)
}

// DiffLinks is DiffDistributionList for links.
func DiffLinks(prev, next []LinkEntry) (add, remove []LinkEntry) {
	return diffKeyed(prev, next, LinkEntry.Key)
}

func diffKeyed[T any](prev, next []T, key func(T) string) (add, remove []T) {
	seenPrev := make(map[string]struct{}, len(prev))
	for _, e := range prev {
		seenPrev[key(e)] = struct{}{}
	}
	seenNext := make(map[string]struct{}, len(next))
	for _, e := range next {
		k := key(e)
		if _, dup := seenNext[k]; dup {
			continue
		}
		seenNext[k] = struct{}{}
		if _, ok := seenPrev[k]; !ok {
			add = append(add, e)
		}
	}
	for _, e := range prev {
		if _, ok := seenNext[key(e)]; !ok {
			remove = append(remove, e)
		}
	}
	return add, remove
}
