// Package dataloader provides the generic grouping helpers used to attach
// batch-loaded rows back to their parents.
//
// A batch load fetches the children of many parents with one IN query and
// splits the result by parent key:
//
//	keys := dataloader.UniqueKeys(parents, parentKey)
//	children, _ := fetch(ctx, keys) // ... WHERE parent_id IN (keys)
//	groups := dataloader.GroupByKey(children, childParentKey)
//	for i, set := range dataloader.OrderGroupsByKeys(keys, groups) {
//	    attach(keys[i], set)
//	}
//
// Grouping is always done by key, never by the order rows come back in.
package dataloader

// KeyFunc extracts a key from a value.
type KeyFunc[K comparable, V any] func(V) K

// UniqueKeys returns the distinct keys of values in first-seen order. Values
// for which keep reports false are skipped.
func UniqueKeys[K comparable, V any](values []V, keyFn KeyFunc[K, V], keep func(K) bool) []K {
	seen := make(map[K]struct{}, len(values))
	keys := make([]K, 0, len(values))
	for _, v := range values {
		k := keyFn(v)
		if keep != nil && !keep(k) {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	return keys
}

// GroupByKey groups values by key, keeping their relative order.
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// OrderGroupsByKeys returns the group of each key in keys order. Keys without
// a group get an empty, non-nil slice.
func OrderGroupsByKeys[K comparable, V any](keys []K, groups map[K][]V) [][]V {
	result := make([][]V, len(keys))
	for i, key := range keys {
		if g, ok := groups[key]; ok {
			result[i] = g
		} else {
			result[i] = []V{}
		}
	}
	return result
}
