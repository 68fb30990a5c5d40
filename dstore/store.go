// Package dstore implements blob storage for record payloads keyed by
// (tenant, dataCid) with multi-reference association. It streams payload
// bytes through a running SHA-256 while writing fixed-size chunks to the
// kv.Store embedded collaborator, the same substrate mstore uses,
// serializing associate/put/delete per (tenant, dataCid) with a striped
// mutex.
package dstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/forestrie/go-dwn/dwnerr"
	"github.com/forestrie/go-dwn/kv"
)

// ChunkSize bounds the size of a single kv.Store value for a data blob.
const ChunkSize = 256 * 1024

// Store is the data store for one backing kv.Store, shared across tenants.
type Store struct {
	kv    kv.Store
	locks stripedLocks
}

// New wraps store as a dstore.Store.
func New(store kv.Store) *Store {
	return &Store{kv: store}
}

// Put streams r through a running SHA-256, writes it under the computed
// dataCid in fixed-size chunks, and records messageCid as a reference.
// Re-putting identical bytes for a new messageCid is
// idempotent with respect to the blob bytes themselves: the bytes are only
// written once, and the new messageCid is simply added as another reference.
func (s *Store) Put(ctx context.Context, tenant, messageCID string, r io.Reader) (string, int64, error) {
	hasher := sha256.New()
	var buf bytes.Buffer
	size, err := io.Copy(io.MultiWriter(hasher, &buf), r)
	if err != nil {
		return "", 0, dwnerr.New(dwnerr.KindInternal, "ReadDataStream", err)
	}

	cid, err := DataCID(buf.Bytes())
	if err != nil {
		return "", 0, dwnerr.New(dwnerr.KindInternal, "ComputeDataCid", err)
	}

	unlock := s.locks.lock(tenant, cid)
	defer unlock()

	already, err := s.hasChunks(ctx, tenant, cid)
	if err != nil {
		return "", 0, err
	}
	if !already {
		if err := s.writeChunks(ctx, tenant, cid, buf.Bytes()); err != nil {
			return "", 0, err
		}
		if err := s.kv.Put(ctx, sizeKey(tenant, cid), []byte(fmt.Sprintf("%d", size))); err != nil {
			return "", 0, dwnerr.New(dwnerr.KindInternal, "PutDataSize", err)
		}
	}
	if err := s.kv.Put(ctx, refKey(tenant, cid, messageCID), []byte{}); err != nil {
		return "", 0, dwnerr.New(dwnerr.KindInternal, "PutDataRef", err)
	}
	return cid, size, nil
}

func (s *Store) writeChunks(ctx context.Context, tenant, dataCID string, data []byte) error {
	n := 0
	for off := 0; off < len(data) || (off == 0 && len(data) == 0); off += ChunkSize {
		end := off + ChunkSize
		if end > len(data) {
			end = len(data)
		}
		if err := s.kv.Put(ctx, chunkKey(tenant, dataCID, n), data[off:end]); err != nil {
			return dwnerr.New(dwnerr.KindInternal, "PutDataChunk", err)
		}
		n++
		if end == len(data) {
			break
		}
	}
	return nil
}

func (s *Store) hasChunks(ctx context.Context, tenant, dataCID string) (bool, error) {
	it, err := s.kv.Scan(ctx, chunksPrefix(tenant, dataCID))
	if err != nil {
		return false, dwnerr.New(dwnerr.KindInternal, "ScanDataChunks", err)
	}
	defer it.Close()
	present := it.Next()
	return present, it.Err()
}

// Get returns the blob for dataCid iff messageCid is among its references.
// A caller must Close the returned stream on every exit path, including
// cancellation.
func (s *Store) Get(ctx context.Context, tenant, messageCID, dataCID string) (io.ReadCloser, int64, error) {
	referenced, err := s.hasRef(ctx, tenant, dataCID, messageCID)
	if err != nil {
		return nil, 0, err
	}
	if !referenced {
		return nil, 0, dwnerr.New(dwnerr.KindNotFound, "DataNotReferenced",
			fmt.Errorf("dstore: %s does not reference data %s", messageCID, dataCID))
	}

	sizeBytes, err := s.kv.Get(ctx, sizeKey(tenant, dataCID))
	if err != nil {
		return nil, 0, dwnerr.New(dwnerr.KindNotFound, "DataNotFound", err)
	}
	var size int64
	fmt.Sscanf(string(sizeBytes), "%d", &size)

	it, err := s.kv.Scan(ctx, chunksPrefix(tenant, dataCID))
	if err != nil {
		return nil, 0, dwnerr.New(dwnerr.KindInternal, "ScanDataChunks", err)
	}
	var combined bytes.Buffer
	for it.Next() {
		combined.Write(it.Value())
	}
	if it.Err() != nil {
		it.Close()
		return nil, 0, dwnerr.New(dwnerr.KindInternal, "ScanDataChunks", it.Err())
	}
	it.Close()

	return io.NopCloser(bytes.NewReader(combined.Bytes())), size, nil
}

func (s *Store) hasRef(ctx context.Context, tenant, dataCID, messageCID string) (bool, error) {
	it, err := s.kv.Scan(ctx, refKey(tenant, dataCID, messageCID))
	if err != nil {
		return false, dwnerr.New(dwnerr.KindInternal, "ScanDataRef", err)
	}
	defer it.Close()
	return it.Next(), it.Err()
}

// Associate adds messageCid as a reference to an already-stored dataCid
// without rewriting bytes, returning false if no blob exists under tenant
// for that dataCid.
func (s *Store) Associate(ctx context.Context, tenant, dataCID, messageCID string) (bool, error) {
	unlock := s.locks.lock(tenant, dataCID)
	defer unlock()

	present, err := s.hasChunks(ctx, tenant, dataCID)
	if err != nil {
		return false, err
	}
	if !present {
		return false, nil
	}
	if err := s.kv.Put(ctx, refKey(tenant, dataCID, messageCID), []byte{}); err != nil {
		return false, dwnerr.New(dwnerr.KindInternal, "PutDataRef", err)
	}
	return true, nil
}

// Delete removes messageCid's reference to dataCid, and deletes the bytes
// when no references remain.
func (s *Store) Delete(ctx context.Context, tenant, messageCID, dataCID string) error {
	unlock := s.locks.lock(tenant, dataCID)
	defer unlock()

	if err := s.kv.Delete(ctx, refKey(tenant, dataCID, messageCID)); err != nil {
		return dwnerr.New(dwnerr.KindInternal, "DeleteDataRef", err)
	}

	it, err := s.kv.Scan(ctx, refsPrefix(tenant, dataCID))
	if err != nil {
		return dwnerr.New(dwnerr.KindInternal, "ScanDataRefs", err)
	}
	remaining := it.Next()
	scanErr := it.Err()
	it.Close()
	if scanErr != nil {
		return dwnerr.New(dwnerr.KindInternal, "ScanDataRefs", scanErr)
	}
	if remaining {
		return nil
	}

	return s.deleteBlob(ctx, tenant, dataCID)
}

func (s *Store) deleteBlob(ctx context.Context, tenant, dataCID string) error {
	it, err := s.kv.Scan(ctx, chunksPrefix(tenant, dataCID))
	if err != nil {
		return dwnerr.New(dwnerr.KindInternal, "ScanDataChunks", err)
	}
	var keys [][]byte
	for it.Next() {
		keys = append(keys, append([]byte(nil), it.Key()...))
	}
	scanErr := it.Err()
	it.Close()
	if scanErr != nil {
		return dwnerr.New(dwnerr.KindInternal, "ScanDataChunks", scanErr)
	}
	for _, k := range keys {
		if err := s.kv.Delete(ctx, k); err != nil {
			return dwnerr.New(dwnerr.KindInternal, "DeleteDataChunk", err)
		}
	}
	if err := s.kv.Delete(ctx, sizeKey(tenant, dataCID)); err != nil {
		return dwnerr.New(dwnerr.KindInternal, "DeleteDataSize", err)
	}
	return nil
}
