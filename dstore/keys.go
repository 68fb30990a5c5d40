package dstore

import "fmt"

// Key layout follows mstore's tenant-prefixed scheme: data blobs live
// under their own "data" segment, chunked so a single kv.Store value never
// has to hold an entire blob in memory.

func tenantPrefix(tenant string) string {
	return fmt.Sprintf("tenant/%s/", tenant)
}

func chunkKey(tenant, dataCID string, n int) []byte {
	return []byte(fmt.Sprintf("%sdata/%s/chunks/%08d", tenantPrefix(tenant), dataCID, n))
}

func chunksPrefix(tenant, dataCID string) []byte {
	return []byte(fmt.Sprintf("%sdata/%s/chunks/", tenantPrefix(tenant), dataCID))
}

func sizeKey(tenant, dataCID string) []byte {
	return []byte(fmt.Sprintf("%sdata/%s/size", tenantPrefix(tenant), dataCID))
}

func refKey(tenant, dataCID, messageCID string) []byte {
	return []byte(fmt.Sprintf("%sdata/%s/refs/%s", tenantPrefix(tenant), dataCID, messageCID))
}

func refsPrefix(tenant, dataCID string) []byte {
	return []byte(fmt.Sprintf("%sdata/%s/refs/", tenantPrefix(tenant), dataCID))
}
