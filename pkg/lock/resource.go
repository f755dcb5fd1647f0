package lock

import (
	"fmt"
	"hash/fnv"
)

// ResourceType classifies what kind of entity a ResourceID names. It
// occupies the high bits of the identifier.
type ResourceType uint8

const (
	// ResourceInvalid is the zero ResourceType; a ResourceID built from it
	// is reserved and never a valid lockable resource.
	ResourceInvalid ResourceType = iota
	ResourceGlobal
	ResourceDatabase
	ResourceCollection
	ResourceMetadata
	ResourceMMAPV1Flush
	ResourceDocument
)

func (t ResourceType) String() string {
	switch t {
	case ResourceGlobal:
		return "Global"
	case ResourceDatabase:
		return "Database"
	case ResourceCollection:
		return "Collection"
	case ResourceMetadata:
		return "Metadata"
	case ResourceMMAPV1Flush:
		return "MMAPV1Flush"
	case ResourceDocument:
		return "Document"
	default:
		return "Invalid"
	}
}

const (
	resourceTypeBits = 4
	resourceKeyBits  = 64 - resourceTypeBits
	resourceKeyMask  = (uint64(1) << resourceKeyBits) - 1
)

// ResourceID is a compact, hashable identifier for a lockable resource: a
// small type tag in the high bits and a 60-bit hash or integer key in the
// low bits. The zero value is reserved and invalid.
type ResourceID uint64

// NewResourceID builds a ResourceID from a type tag and a string key,
// hashing the string into the low 60 bits with FNV-1a. Two distinct
// strings may collide into the same ResourceID; that only pessimizes
// safety by conflating distinct resources under one LockHead and is never
// a correctness hazard.
func NewResourceID(t ResourceType, key string) ResourceID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return newResourceID(t, h.Sum64())
}

// NewResourceIDFromUint64 builds a ResourceID from a type tag and an
// integer key, embedding the low 60 bits of the key directly.
func NewResourceIDFromUint64(t ResourceType, key uint64) ResourceID {
	return newResourceID(t, key)
}

func newResourceID(t ResourceType, key uint64) ResourceID {
	return ResourceID(uint64(t)<<resourceKeyBits | (key & resourceKeyMask))
}

// Type recovers the ResourceType this id was constructed with.
func (id ResourceID) Type() ResourceType {
	return ResourceType(uint64(id) >> resourceKeyBits)
}

// IsValid reports whether id is anything other than the reserved zero
// value.
func (id ResourceID) IsValid() bool {
	return id != 0
}

func (id ResourceID) String() string {
	return fmt.Sprintf("%s(%d)", id.Type(), uint64(id)&resourceKeyMask)
}

// partition maps a ResourceID onto one of numPartitions buckets. The
// multiplicative mixer keeps resources whose type tag occupies the same
// handful of high-bit values (the common case — most resources are
// RESOURCE_DATABASE or RESOURCE_COLLECTION) from clustering into a small
// run of adjacent partitions.
func (id ResourceID) partition(numPartitions uint32) uint32 {
	const mix = 0x9E3779B97F4A7C15 // golden-ratio constant, standard fibonacci-hashing mixer
	mixed := uint64(id) * mix
	return uint32(mixed>>32) % numPartitions
}
