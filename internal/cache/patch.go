package cache

import "github.com/garyjia/billing-console/internal/domain/query"

// PatchFunc transforms cached data without a round trip. It must not modify
// its argument: the value it receives is kept as a rollback snapshot.
type PatchFunc func(data any) any

// Patch binds a transformation to the query it applies to
type Patch struct {
	ID query.ID
	Fn PatchFunc
}

// RemoveWhere drops the list elements matching the predicate
func RemoveWhere[T any](match func(T) bool) PatchFunc {
	return func(data any) any {
		items, ok := data.([]T)
		if !ok {
			return data
		}
		out := make([]T, 0, len(items))
		for _, item := range items {
			if !match(item) {
				out = append(out, item)
			}
		}
		return out
	}
}

// ReplaceWhere rewrites the list elements matching the predicate
func ReplaceWhere[T any](match func(T) bool, update func(T) T) PatchFunc {
	return func(data any) any {
		items, ok := data.([]T)
		if !ok {
			return data
		}
		out := make([]T, len(items))
		for i, item := range items {
			if match(item) {
				item = update(item)
			}
			out[i] = item
		}
		return out
	}
}

// Prepend inserts an element at the head of a cached list. Queries that hold
// no list yet are left alone.
func Prepend[T any](item T) PatchFunc {
	return func(data any) any {
		items, ok := data.([]T)
		if !ok {
			return data
		}
		out := make([]T, 0, len(items)+1)
		out = append(out, item)
		return append(out, items...)
	}
}

// Update rewrites a single cached value
func Update[T any](update func(T) T) PatchFunc {
	return func(data any) any {
		v, ok := data.(T)
		if !ok {
			return data
		}
		return update(v)
	}
}
