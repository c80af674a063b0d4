package querycache

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies a cache entry: an ordered tuple of primitives such as
// Key{"jobs", "detail", int64(7)}.
type Key []any

// String returns the stable encoding of k. Two keys with equal elements of
// equal kinds encode identically.
func (k Key) String() string {
	parts := make([]string, len(k))
	for i, v := range k {
		parts[i] = encodePart(v)
	}
	return strings.Join(parts, "/")
}

// HasPrefix reports whether the first len(prefix) elements of k equal prefix.
// The empty key is a prefix of every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, p := range prefix {
		if encodePart(k[i]) != encodePart(p) {
			return false
		}
	}
	return true
}

func encodePart(v any) string {
	switch x := v.(type) {
	case nil:
		return "n"
	case string:
		return "s:" + strconv.Quote(x)
	case bool:
		return "b:" + strconv.FormatBool(x)
	case int:
		return "i:" + strconv.FormatInt(int64(x), 10)
	case int32:
		return "i:" + strconv.FormatInt(int64(x), 10)
	case int64:
		return "i:" + strconv.FormatInt(x, 10)
	case uint:
		return "i:" + strconv.FormatUint(uint64(x), 10)
	case uint64:
		return "i:" + strconv.FormatUint(x, 10)
	case float64:
		return "f:" + strconv.FormatFloat(x, 'g', -1, 64)
	case fmt.Stringer:
		return "s:" + strconv.Quote(x.String())
	}
	// Named string types such as models.Stage.
	return "s:" + strconv.Quote(fmt.Sprint(v))
}
