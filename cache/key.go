package cache

import (
	"sort"
	"strings"
)

// Key indexes one cached query result. Keys are built deterministically
// from (entity, owner, filter) so structurally equal queries always
// land on the same entry.
type Key string

// NewKey builds a key from the entity kind, the owning user and the
// filter fields. Filter fields are sorted so field order never changes
// the key.
func NewKey(entity, owner string, fields map[string]string) Key {
	var b strings.Builder
	b.WriteString(entity)
	b.WriteByte('|')
	b.WriteString(owner)
	b.WriteByte('|')
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(fields[name])
	}
	return Key(b.String())
}

// NewPrefix builds a prefix matching every key of one entity kind for
// one owner, regardless of filter.
func NewPrefix(entity, owner string) Key {
	return Key(entity + "|" + owner + "|")
}

// HasPrefix reports whether k falls under prefix.
func (k Key) HasPrefix(prefix Key) bool {
	return strings.HasPrefix(string(k), string(prefix))
}
