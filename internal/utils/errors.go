package util

import "errors"

var (
	ErrInvalidPageID       = errors.New("invalid page id")
	ErrInvalidPageSize     = errors.New("invalid page size")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrInvalidInitialPages = errors.New("initial pages must be positive")
	ErrMaxMapSizeExceeded  = errors.New("file size exceeds maximum mapping size")
	ErrPageOutOfBounds     = errors.New("page out of bounds")
	ErrInvalidOffset       = errors.New("invalid offset or size")
	ErrFileManagerNil      = errors.New("file manager is nil")
	ErrInvalidPoolSize     = errors.New("invalid pool size")
	ErrOutOfFrames         = errors.New("no free or evictable frame")
	ErrPageNotResident     = errors.New("page is not resident in the buffer pool")
	ErrPageNotPinned       = errors.New("page is not pinned")
	ErrPageInUse           = errors.New("page is pinned and cannot be deleted")
	ErrInvalidReplacerK    = errors.New("replacer k must be >= 1")
	ErrInvalidBucketSize   = errors.New("bucket size must be >= 1")
)
