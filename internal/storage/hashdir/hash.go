package hashdir

import (
	"encoding/binary"

	"github.com/cespare/xxhash"

	util "github.com/File-creater/bustub/internal/utils"
)

// HashPageID is the default HashFunc[util.PageID] the buffer pool
// wires into its directory.
func HashPageID(id util.PageID) uint64 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(id))
	return xxhash.Sum64(buf[:])
}
