package segment

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/arktext/textsearch/internal/index/postings"
)

// Writer serialises term-entry snapshots into new segment files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into dataDir.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write creates a new segment file containing the given term entries
// and returns its file name. It writes to a .tmp file first and renames
// on success, so readers never observe a partial segment.
func (w *Writer) Write(entries []postings.TermEntry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	name := fmt.Sprintf("seg_%d%s", time.Now().UnixNano(), FileSuffix)
	finalPath := filepath.Join(w.dataDir, name)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	header := Header{
		Magic:       MagicBytes,
		Version:     FormatVersion,
		LexemeCount: uint32(len(entries)),
		CreatedAt:   time.Now().Unix(),
	}
	if _, err := f.Write(header.encode()); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	postingsStart := int64(HeaderSize)
	offset := postingsStart
	dict := make([]DictEntry, 0, len(entries))
	docIDs := make(map[string]struct{})
	for _, entry := range entries {
		block, err := json.Marshal(entry.Postings)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for %q: %w", entry.Lexeme, err)
		}
		if _, err := f.Write(block); err != nil {
			return "", fmt.Errorf("writing postings for %q: %w", entry.Lexeme, err)
		}
		dict = append(dict, DictEntry{
			Lexeme:     entry.Lexeme,
			PostOffset: offset - postingsStart,
			PostLen:    len(block),
			DocFreq:    len(entry.Postings),
		})
		offset += int64(len(block))
		for _, p := range entry.Postings {
			docIDs[p.DocID] = struct{}{}
		}
	}
	postingsSize := offset - postingsStart

	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}

	foot := footer{
		DictChecksum: crc32.ChecksumIEEE(dictData),
		DocCount:     uint32(len(docIDs)),
		DictOffset:   offset,
		DictSize:     int64(len(dictData)),
		PostSize:     postingsSize,
	}
	if _, err := f.Write(foot.encode()); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}

	header.DocCount = uint32(len(docIDs))
	header.DictOffset = offset
	header.DictSize = int64(len(dictData))
	header.PostOffset = postingsStart
	header.PostSize = postingsSize
	if _, err := f.WriteAt(header.encode(), 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return name, nil
}
