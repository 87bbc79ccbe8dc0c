package segment

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"
	"strings"

	"github.com/arktext/textsearch/internal/index/postings"
)

// Reader serves lookups against one immutable segment file. The
// dictionary is held in memory; postings blocks are read on demand.
type Reader struct {
	file     *os.File
	filePath string
	header   Header
	dict     []DictEntry
	postBase int64
}

// OpenReader opens a segment file, validating the magic bytes, format
// version, and dictionary checksum before returning a usable reader.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	header, err := decodeHeader(headerBytes)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("invalid segment %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat segment file: %w", err)
	}
	footerBytes := make([]byte, FooterSize)
	if _, err := f.ReadAt(footerBytes, info.Size()-int64(FooterSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading segment footer: %w", err)
	}
	foot, err := decodeFooter(footerBytes)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("invalid segment %s: %w", path, err)
	}
	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	if sum := crc32.ChecksumIEEE(dictBytes); sum != foot.DictChecksum {
		f.Close()
		return nil, fmt.Errorf("invalid segment %s: dictionary checksum mismatch", path)
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		f.Close()
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		postBase: header.PostOffset,
	}, nil
}

// Lookup returns the postings for an exact lexeme, or nil if the
// segment does not contain it.
func (r *Reader) Lookup(lexeme string) (postings.List, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Lexeme >= lexeme
	})
	if idx >= len(r.dict) || r.dict[idx].Lexeme != lexeme {
		return nil, nil
	}
	return r.readPostings(r.dict[idx])
}

// LookupPrefix returns a TermEntry for every lexeme in the segment that
// starts with prefix, in dictionary order.
func (r *Reader) LookupPrefix(prefix string) ([]postings.TermEntry, error) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		return r.dict[i].Lexeme >= prefix
	})
	var out []postings.TermEntry
	for ; idx < len(r.dict) && strings.HasPrefix(r.dict[idx].Lexeme, prefix); idx++ {
		list, err := r.readPostings(r.dict[idx])
		if err != nil {
			return nil, err
		}
		out = append(out, postings.TermEntry{Lexeme: r.dict[idx].Lexeme, Postings: list})
	}
	return out, nil
}

func (r *Reader) readPostings(entry DictEntry) (postings.List, error) {
	block := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(block, r.postBase+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings for %q: %w", entry.Lexeme, err)
	}
	var list postings.List
	if err := json.Unmarshal(block, &list); err != nil {
		return nil, fmt.Errorf("parsing postings for %q: %w", entry.Lexeme, err)
	}
	return list, nil
}

// LexemeCount returns the number of distinct lexemes in the segment.
func (r *Reader) LexemeCount() int {
	return len(r.dict)
}

// DocCount returns the number of distinct documents in the segment.
func (r *Reader) DocCount() uint32 {
	return r.header.DocCount
}

// Path returns the segment's file path.
func (r *Reader) Path() string {
	return r.filePath
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
