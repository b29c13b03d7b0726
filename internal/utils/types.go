package util

// PageID identifies a page across the lifetime of the database file.
// It is allocated monotonically by the pool manager and is never reused
// once deallocated.
type PageID int32

// InvalidPageID is the sentinel meaning "no page".
const InvalidPageID PageID = -1

// FrameID identifies a slot in the buffer pool's frame array, in
// [0, pool_size). Stable for the pool's lifetime.
type FrameID int

// PageSize is the fixed size of a page's payload (4KB).
const PageSize = 4096
