package appendfs

import (
	"encoding/binary"
	"hash/crc32"
)

// currentVersion is the only on-media format this build recognizes. It is
// a compatibility contract: once shipped, the footer layout for this
// version number must never change (spec.md §6, §9).
const currentVersion uint16 = 1

// footerSize is F from spec.md §3: 8 bytes id, 2 bytes version, 2 bytes
// reserved padding (aligns crc to a 4-byte boundary), 4 bytes crc32.
const footerSize = 16

var crcTable = crc32.MakeTable(crc32.IEEE)

// stampBlock writes the footer for id/version at the trailing footerSize
// bytes of buf and computes the crc32 over buf[:len(buf)-4] with the crc
// field itself treated as zero, per spec.md §4.2 and §6.
func stampBlock(buf []byte, id uint64, version uint16) {
	n := len(buf)
	footer := buf[n-footerSize:]
	binary.LittleEndian.PutUint64(footer[0:8], id)
	binary.LittleEndian.PutUint16(footer[8:10], version)
	footer[10] = 0
	footer[11] = 0
	// crc field (last 4 bytes) is zeroed before the checksum is computed
	// over the whole block, then overwritten with the real value.
	binary.LittleEndian.PutUint32(buf[n-4:n], 0)
	crc := crc32.Checksum(buf[:n-4], crcTable)
	binary.LittleEndian.PutUint32(buf[n-4:n], crc)
}

// verifyBlock decodes and validates a block stamped by stampBlock. It
// returns the decoded (id, version) and true iff the crc matches and the
// version is one this build recognizes. A false return with id==0 is the
// erased/unformatted sentinel case (spec.md §3); a false return with a
// nonzero id is either a torn write or media corruption.
func verifyBlock(buf []byte) (id uint64, version uint16, ok bool) {
	n := len(buf)
	if n < footerSize+4 {
		return 0, 0, false
	}
	footer := buf[n-footerSize:]
	id = binary.LittleEndian.Uint64(footer[0:8])
	version = binary.LittleEndian.Uint16(footer[8:10])

	wantCRC := binary.LittleEndian.Uint32(buf[n-4 : n])
	binary.LittleEndian.PutUint32(buf[n-4:n], 0)
	gotCRC := crc32.Checksum(buf[:n-4], crcTable)
	binary.LittleEndian.PutUint32(buf[n-4:n], wantCRC)

	if gotCRC != wantCRC {
		return id, version, false
	}
	if version != currentVersion {
		return id, version, false
	}
	return id, version, true
}

// payloadSize returns the number of caller-usable bytes in a block of the
// given total size, i.e. B-F from spec.md §3.
func payloadSize(blockSize int) int {
	return blockSize - footerSize
}

// VerifyBlock exposes verifyBlock to diagnostic tools outside this package
// (appendfs-info) that need to inspect a single raw block without mounting
// the region, e.g. to check whether the original sentinel block at begin
// has survived a ring wraparound.
func VerifyBlock(buf []byte) (id uint64, version uint16, ok bool) {
	return verifyBlock(buf)
}
