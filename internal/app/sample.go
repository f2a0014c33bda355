package app

import (
	"bytes"
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"
)

// NewRand returns a PCG source seeded with seed, or with a random seed when
// seed is zero.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// SampleKeys picks n distinct positions of keys uniformly at random and
// returns their values sorted.
func SampleKeys(keys []any, n int, rng *rand.Rand) ([]any, error) {
	if n < 0 || n > len(keys) {
		return nil, fmt.Errorf("sample size %d out of range for %d keys", n, len(keys))
	}

	perm := rng.Perm(len(keys))[:n]
	sampled := make([]any, n)
	for i, p := range perm {
		sampled[i] = keys[p]
	}
	SortKeys(sampled)
	return sampled, nil
}

// SortKeys orders key values in place: numbers numerically, strings and
// byte slices lexically, times chronologically, anything else by its
// printed form.
func SortKeys(keys []any) {
	slices.SortStableFunc(keys, compareKeys)
}

func compareKeys(a, b any) int {
	if ai, ok := asInt(a); ok {
		if bi, ok := asInt(b); ok {
			return cmp.Compare(ai, bi)
		}
	}
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return cmp.Compare(af, bf)
		}
	}
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			return cmp.Compare(av, bv)
		}
	case []byte:
		if bv, ok := b.([]byte); ok {
			return bytes.Compare(av, bv)
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Compare(bv)
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// keySet indexes key values by their printed form for membership checks.
func keySet(keys []any) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[keyString(k)] = struct{}{}
	}
	return set
}

func keyString(k any) string {
	if b, ok := k.([]byte); ok {
		return fmt.Sprintf("%x", b)
	}
	return fmt.Sprint(k)
}
