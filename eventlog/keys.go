package eventlog

import (
	"fmt"
	"net/url"
)

// Key layout mirrors mstore's tenant-prefixed scheme:
// an append-only row per watermark plus an attribute-indexed
// mirror so Query can filter without a full tenant scan, exactly as
// mstore's secondary index does for message attributes. Attribute values
// are path-escaped for the same reason as mstore's: URI-valued attributes
// contain "/" characters that are otherwise read back as key separators.

func tenantPrefix(tenant string) string {
	return fmt.Sprintf("tenant/%s/", tenant)
}

func eventKey(tenant string, watermark uint64) []byte {
	return []byte(fmt.Sprintf("%sevents/row/%020d", tenantPrefix(tenant), watermark))
}

func eventsPrefix(tenant string) []byte {
	return []byte(fmt.Sprintf("%sevents/row/", tenantPrefix(tenant)))
}

func indexValueKey(tenant, attr, value string, watermark uint64) []byte {
	return []byte(fmt.Sprintf("%sevents/index/%s/%s/%020d", tenantPrefix(tenant), attr, url.PathEscape(value), watermark))
}

func indexValuePrefix(tenant, attr, value string) []byte {
	return []byte(fmt.Sprintf("%sevents/index/%s/%s/", tenantPrefix(tenant), attr, url.PathEscape(value)))
}

func parseWatermarkKey(prefix []byte, key []byte) uint64 {
	rest := string(key[len(prefix):])
	var w uint64
	fmt.Sscanf(rest, "%d", &w)
	return w
}
