package mstore

import (
	"fmt"
	"net/url"
)

// Key layout is a tenant-prefixed path with a fixed set of named
// segments, so every row belonging to a tenant shares one scannable
// prefix and cross-tenant access is impossible by construction.
// Attribute values are
// path-escaped before embedding: URI-valued attributes (protocol, schema)
// legitimately contain "/", which would otherwise read back as a key
// separator and corrupt prefix scans.

func tenantPrefix(tenant string) string {
	return fmt.Sprintf("tenant/%s/", tenant)
}

func blockKey(tenant, messageCID string) []byte {
	return []byte(fmt.Sprintf("%sblocks/%s", tenantPrefix(tenant), messageCID))
}

func indexValueKey(tenant, attr, value, messageCID string) []byte {
	return []byte(fmt.Sprintf("%sindex/value/%s/%s/%s", tenantPrefix(tenant), attr, url.PathEscape(value), messageCID))
}

func indexValuePrefix(tenant, attr, value string) []byte {
	return []byte(fmt.Sprintf("%sindex/value/%s/%s/", tenantPrefix(tenant), attr, url.PathEscape(value)))
}

func indexAttrPrefix(tenant, attr string) []byte {
	return []byte(fmt.Sprintf("%sindex/value/%s/", tenantPrefix(tenant), attr))
}

func reverseIndexKey(tenant, messageCID string) []byte {
	return []byte(fmt.Sprintf("%sindex/byid/%s", tenantPrefix(tenant), messageCID))
}

// parseIndexKey splits an index row key scanned under an attribute prefix
// back into its (unescaped) value and messageCid. messageCids are base32
// strings and never contain "/", so the first separator after the prefix is
// always the value/cid boundary.
func parseIndexKey(prefix []byte, key []byte) (value, messageCID string) {
	rest := string(key[len(prefix):])
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return unescapeValue(rest[:i]), rest[i+1:]
		}
	}
	return unescapeValue(rest), ""
}

func unescapeValue(v string) string {
	out, err := url.PathUnescape(v)
	if err != nil {
		return v
	}
	return out
}
