// Package segment reads and writes immutable on-disk index segments.
// A segment holds the postings of one memory-index flush: a fixed-size
// header, a postings region (one JSON block per lexeme), a sorted JSON
// dictionary, and a checksummed footer.
package segment

import (
	"encoding/binary"
	"fmt"
)

// MagicBytes identifies a valid .tsix segment file.
const (
	MagicBytes    uint32 = 0x54534958
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32

	// FileSuffix is the extension of finished segment files. Files
	// still being written carry an extra .tmp suffix.
	FileSuffix = ".tsix"
)

// Header is the fixed-size block at the start of every segment.
type Header struct {
	Magic       uint32
	Version     uint32
	LexemeCount uint32
	DocCount    uint32
	DictOffset  int64
	DictSize    int64
	PostOffset  int64
	PostSize    int64
	CreatedAt   int64
}

func (h Header) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.LexemeCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(h.CreatedAt))
	return buf
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("segment header truncated: %d bytes", len(buf))
	}
	h := Header{
		Magic:       binary.LittleEndian.Uint32(buf[0:4]),
		Version:     binary.LittleEndian.Uint32(buf[4:8]),
		LexemeCount: binary.LittleEndian.Uint32(buf[8:12]),
		DocCount:    binary.LittleEndian.Uint32(buf[12:16]),
		DictOffset:  int64(binary.LittleEndian.Uint64(buf[16:24])),
		DictSize:    int64(binary.LittleEndian.Uint64(buf[24:32])),
		PostOffset:  int64(binary.LittleEndian.Uint64(buf[32:40])),
		PostSize:    int64(binary.LittleEndian.Uint64(buf[40:48])),
		CreatedAt:   int64(binary.LittleEndian.Uint64(buf[48:56])),
	}
	if h.Magic != MagicBytes {
		return Header{}, fmt.Errorf("bad magic bytes %#x", h.Magic)
	}
	if h.Version != FormatVersion {
		return Header{}, fmt.Errorf("unsupported segment version %d", h.Version)
	}
	return h, nil
}

// footer sits at the end of the file and lets a reader validate the
// dictionary before trusting any offset in it.
type footer struct {
	DictChecksum uint32
	DocCount     uint32
	DictOffset   int64
	DictSize     int64
	PostSize     int64
}

func (f footer) encode() []byte {
	buf := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(buf[0:4], f.DictChecksum)
	binary.LittleEndian.PutUint32(buf[4:8], f.DocCount)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(f.DictOffset))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(f.DictSize))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(f.PostSize))
	return buf
}

func decodeFooter(buf []byte) (footer, error) {
	if len(buf) < FooterSize {
		return footer{}, fmt.Errorf("segment footer truncated: %d bytes", len(buf))
	}
	return footer{
		DictChecksum: binary.LittleEndian.Uint32(buf[0:4]),
		DocCount:     binary.LittleEndian.Uint32(buf[4:8]),
		DictOffset:   int64(binary.LittleEndian.Uint64(buf[8:16])),
		DictSize:     int64(binary.LittleEndian.Uint64(buf[16:24])),
		PostSize:     int64(binary.LittleEndian.Uint64(buf[24:32])),
	}, nil
}

// DictEntry maps a lexeme to its postings block within the segment.
type DictEntry struct {
	Lexeme     string `json:"t"`
	PostOffset int64  `json:"o"`
	PostLen    int    `json:"l"`
	DocFreq    int    `json:"d"`
}
