// Package minixfs implements the on-disk MINIX-style filesystem of §4.7:
// a packed little-endian superblock, 32-byte inodes with direct, single-
// and double-indirect zone pointers, 16-byte directory entries, and the
// imap/zmap bitmap allocators backing them.
package minixfs

import (
	"encoding/binary"

	"github.com/nanvix/multikernel-sub000/internal/errs"
)

// / BlockSize is the filesystem's fixed block size in bytes.
const BlockSize = 1024

// / Magic identifies a valid superblock.
const Magic = 0x137f

// / NumDirectZones is the count of direct zone pointers in an inode.
const NumDirectZones = 7

// / IndZoneIdx and DindZoneIdx locate the single- and double-indirect
// / zone pointers within Inode_t.Zones.
const (
	IndZoneIdx  = 7
	DindZoneIdx = 8
	NumZones    = 9
)

// / PtrsPerBlock is how many zone numbers fit in one indirect block.
const PtrsPerBlock = BlockSize / 2

// / SuperblockSize is the packed, on-disk size of a Superblock_t.
const SuperblockSize = 18

// / SuperblockZone is the zone (block, since log_zone_size is always 0 in
// / this implementation) holding the superblock.
const SuperblockZone = 1

// / Zone_t is an on-disk zone (block) number.
type Zone_t uint16

// / Superblock_t is the packed little-endian filesystem superblock.
type Superblock_t struct {
	Ninodes       uint16
	Nzones        uint16
	ImapBlocks    uint16
	ZmapBlocks    uint16
	FirstDataZone uint16
	LogZoneSize   uint16
	MaxSize       uint32
	Magic         uint16
}

// / Encode packs sb into a BlockSize-sized buffer, zero-padded past
// / SuperblockSize.
func (sb *Superblock_t) Encode() []byte {
	buf := make([]byte, BlockSize)
	binary.LittleEndian.PutUint16(buf[0:2], sb.Ninodes)
	binary.LittleEndian.PutUint16(buf[2:4], sb.Nzones)
	binary.LittleEndian.PutUint16(buf[4:6], sb.ImapBlocks)
	binary.LittleEndian.PutUint16(buf[6:8], sb.ZmapBlocks)
	binary.LittleEndian.PutUint16(buf[8:10], sb.FirstDataZone)
	binary.LittleEndian.PutUint16(buf[10:12], sb.LogZoneSize)
	binary.LittleEndian.PutUint32(buf[12:16], sb.MaxSize)
	binary.LittleEndian.PutUint16(buf[16:18], sb.Magic)
	return buf
}

// / DecodeSuperblock unpacks a Superblock_t from buf, failing with EINVAL
// / if the magic number does not match.
func DecodeSuperblock(buf []byte) (*Superblock_t, errs.Err_t) {
	if len(buf) < SuperblockSize {
		return nil, errs.EINVAL
	}
	sb := &Superblock_t{
		Ninodes:       binary.LittleEndian.Uint16(buf[0:2]),
		Nzones:        binary.LittleEndian.Uint16(buf[2:4]),
		ImapBlocks:    binary.LittleEndian.Uint16(buf[4:6]),
		ZmapBlocks:    binary.LittleEndian.Uint16(buf[6:8]),
		FirstDataZone: binary.LittleEndian.Uint16(buf[8:10]),
		LogZoneSize:   binary.LittleEndian.Uint16(buf[10:12]),
		MaxSize:       binary.LittleEndian.Uint32(buf[12:16]),
		Magic:         binary.LittleEndian.Uint16(buf[16:18]),
	}
	if sb.Magic != Magic {
		return nil, errs.EINVAL
	}
	return sb, errs.OK
}

// / ImapZone is the first zone holding the inode bitmap.
func (sb *Superblock_t) ImapZone() int { return SuperblockZone + 1 }

// / ZmapZone is the first zone holding the zone bitmap.
func (sb *Superblock_t) ZmapZone() int { return sb.ImapZone() + int(sb.ImapBlocks) }

// / InodeZone is the first zone holding the inode table.
func (sb *Superblock_t) InodeZone() int { return sb.ZmapZone() + int(sb.ZmapBlocks) }

// / InodesPerBlock is how many 32-byte inodes fit in one block.
const InodesPerBlock = BlockSize / InodeSize
