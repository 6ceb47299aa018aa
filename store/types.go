//nolint
package store

import "github.com/iov-one/issuance"

// Move references for all storage types into this package
// for shorter names everywhere

type ReadOnlyKVStore = issuance.ReadOnlyKVStore
type KVStore = issuance.KVStore
type SetDeleter = issuance.SetDeleter
type Batch = issuance.Batch
type CacheableKVStore = issuance.CacheableKVStore
type KVCacheWrap = issuance.KVCacheWrap
