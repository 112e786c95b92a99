package cache

import (
	"encoding/json"
)

// SchemaVersion is folded into every search key. Bump it whenever the
// mapping from provider records to content items changes so old entries
// are never read back.
const SchemaVersion = "v4"

// Key identifies a cached search result.
type Key struct {
	Backend string `json:"p,omitempty"`
	Query   string `json:"q"`
	Kind    string `json:"kind,omitempty"`
	Year    string `json:"year,omitempty"`
	Genre   string `json:"genre,omitempty"`
	Node    int    `json:"node"`
	Schema  string `json:"v"`
}

// String serializes the key deterministically.
func (k Key) String() string {
	if k.Schema == "" {
		k.Schema = SchemaVersion
	}
	// Struct fields marshal in declaration order.
	data, _ := json.Marshal(k)
	return "search:" + string(data)
}
