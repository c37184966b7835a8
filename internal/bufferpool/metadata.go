package bufferpool

import (
	"github.com/kzdb/kzdb/internal/alias/bx"
	"github.com/kzdb/kzdb/internal/dberr"
	"github.com/kzdb/kzdb/internal/storage"
)

// metadataMagic identifies a kzdb database file on open, grounded on the
// original implementation's magic-number bootstrap check on page 1.
const metadataMagic uint32 = 0x6b7a6462 // "kzdb"

const metadataVersion uint16 = 1

// Layout of the metadata page's body, starting right after the generic
// 24-byte page header. The metadata page is never touched through the
// slotted-page Insert/Read API — it is a fixed record kzdb owns outright.
const (
	metaOffMagic       = storage.HeaderSize
	metaOffVersion     = metaOffMagic + 4
	metaOffFirstTrunk  = metaOffVersion + 2
	metaOffFreeCount   = metaOffFirstTrunk + 4
	metaOffTablesRoot  = metaOffFreeCount + 4
	metaOffColumnsRoot = metaOffTablesRoot + 4
	metaOffNextTableID = metaOffColumnsRoot + 4
	metaOffNextPageID  = metaOffNextTableID + 4
)

// metadataPageID is the fixed page id of the metadata page.
const metadataPageID uint32 = storage.FirstPageID

type metadata struct {
	firstTrunkID  uint32
	freeCount     uint32
	tablesRoot    uint32
	columnsRoot   uint32
	nextTableID   uint32
	nextPageID    uint32 // next never-before-allocated page id
}

func newMetadata() metadata {
	return metadata{
		nextTableID: 1,
		nextPageID:  metadataPageID + 1,
	}
}

func (m metadata) encodeInto(buf []byte) {
	bx.PutU32At(buf, metaOffMagic, metadataMagic)
	bx.PutU16At(buf, metaOffVersion, metadataVersion)
	bx.PutU32At(buf, metaOffFirstTrunk, m.firstTrunkID)
	bx.PutU32At(buf, metaOffFreeCount, m.freeCount)
	bx.PutU32At(buf, metaOffTablesRoot, m.tablesRoot)
	bx.PutU32At(buf, metaOffColumnsRoot, m.columnsRoot)
	bx.PutU32At(buf, metaOffNextTableID, m.nextTableID)
	bx.PutU32At(buf, metaOffNextPageID, m.nextPageID)
}

func decodeMetadata(buf []byte) (metadata, error) {
	if bx.U32At(buf, metaOffMagic) != metadataMagic {
		return metadata{}, dberr.New(dberr.FileCorrupted, dberr.CategorySystem, "metadata page magic mismatch")
	}
	return metadata{
		firstTrunkID: bx.U32At(buf, metaOffFirstTrunk),
		freeCount:    bx.U32At(buf, metaOffFreeCount),
		tablesRoot:   bx.U32At(buf, metaOffTablesRoot),
		columnsRoot:  bx.U32At(buf, metaOffColumnsRoot),
		nextTableID:  bx.U32At(buf, metaOffNextTableID),
		nextPageID:   bx.U32At(buf, metaOffNextPageID),
	}, nil
}
