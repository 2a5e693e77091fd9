package pcodec

import "hash/crc32"

// crc32IEEE computes the IEEE CRC-32 of buf, used to seal and verify the
// dictionary blob.
func crc32IEEE(buf []byte) uint32 {
	return crc32.ChecksumIEEE(buf)
}

// crc32IEEEUpdate extends a running IEEE CRC-32 with more data, so callers
// can checksum a stream in chunks and match crc32IEEE over the
// concatenation.
func crc32IEEEUpdate(crc uint32, buf []byte) uint32 {
	return crc32.Update(crc, crc32.IEEETable, buf)
}
