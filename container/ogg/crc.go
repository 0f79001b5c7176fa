package ogg

// Ogg CRC-32 implementation using polynomial 0x04C11DB7.
//
// Note: This is NOT the standard IEEE CRC-32 (polynomial 0xEDB88320).
// The table is built MSB-first and the register is never reflected or
// inverted, so hash/crc32 cannot be used here.

// CRCTable is a pre-computed lookup table for the Ogg CRC-32.
// A table is read-only once built and may be shared freely.
type CRCTable [256]uint32

// crcTable is the table used for all page checksums.
var crcTable = NewCRCTable()

// NewCRCTable builds the lookup table for polynomial 0x04C11DB7.
func NewCRCTable() *CRCTable {
	const poly = uint32(0x04C11DB7)
	var t CRCTable
	for i := range t {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		t[i] = crc
	}
	return &t
}

// Checksum computes the Ogg CRC-32 checksum of data from scratch.
func (t *CRCTable) Checksum(data []byte) uint32 {
	return t.Update(0, data)
}

// Update updates a running CRC with additional data.
func (t *CRCTable) Update(crc uint32, data []byte) uint32 {
	for _, b := range data {
		crc = (crc << 8) ^ t[byte(crc>>24)^b]
	}
	return crc
}

// oggCRC computes the Ogg CRC-32 checksum using the shared table.
func oggCRC(data []byte) uint32 {
	return crcTable.Checksum(data)
}

// oggCRCUpdate updates a running CRC using the shared table.
func oggCRCUpdate(crc uint32, data []byte) uint32 {
	return crcTable.Update(crc, data)
}
