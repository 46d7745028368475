// Package stagefile encodes and decodes the filenames the sink writes
// to warehouse stage storage, and defines a Status enum and StagedFile
// record for describing them.
package stagefile

import (
	"fmt"
	"path"
	"strconv"
	"strings"
)

const (
	pipeExt           = ".json.gz"
	brokenKeySuffix   = "_key.broken"
	brokenValueSuffix = "_value.broken"
)

// Encode builds the filename for a flushed buffer of well-formed
// records: "<prefix>/<startOffset>_<endOffset>_<ingestTimeMillis>.json.gz".
func Encode(prefix string, startOffset, endOffset, ingestTimeMillis int64) string {
	return fmt.Sprintf("%s/%d_%d_%d%s", prefix, startOffset, endOffset, ingestTimeMillis, pipeExt)
}

// EncodeBroken builds the filename for a single broken record, a
// parallel namespace to Encode so the cleaner can tell broken-record
// files apart from normal flush files by suffix alone.
func EncodeBroken(prefix string, offset, ingestTimeMillis int64, isKey bool) string {
	suffix := brokenValueSuffix
	if isKey {
		suffix = brokenKeySuffix
	}
	return fmt.Sprintf("%s/%d_%d%s", prefix, offset, ingestTimeMillis, suffix)
}

// IsBroken reports whether filename belongs to the broken-record
// namespace.
func IsBroken(filename string) bool {
	return strings.HasSuffix(filename, brokenKeySuffix) || strings.HasSuffix(filename, brokenValueSuffix)
}

// ToStartOffset extracts the leading offset component of filename.
func ToStartOffset(filename string) (int64, error) {
	parts, err := splitParts(filename)
	if err != nil {
		return 0, err
	}
	return parseInt(parts[0], filename)
}

// ToEndOffset extracts the trailing (or, for broken files, the only)
// offset component of filename. Broken-record files carry a single
// offset, which ToEndOffset and ToStartOffset both report.
func ToEndOffset(filename string) (int64, error) {
	parts, err := splitParts(filename)
	if err != nil {
		return 0, err
	}
	if IsBroken(filename) {
		return parseInt(parts[0], filename)
	}
	return parseInt(parts[1], filename)
}

// ToTimeIngested extracts the ingest-time-millis component of filename.
func ToTimeIngested(filename string) (int64, error) {
	parts, err := splitParts(filename)
	if err != nil {
		return 0, err
	}
	if IsBroken(filename) {
		return parseInt(parts[1], filename)
	}
	return parseInt(parts[2], filename)
}

// splitParts returns the underscore-delimited numeric components of a
// stage filename's base name, with any extension/suffix stripped.
func splitParts(filename string) ([]string, error) {
	base := path.Base(filename)
	base = strings.TrimSuffix(base, brokenKeySuffix)
	base = strings.TrimSuffix(base, brokenValueSuffix)
	base = strings.TrimSuffix(base, pipeExt)

	parts := strings.Split(base, "_")
	if IsBroken(filename) && len(parts) != 2 {
		return nil, fmt.Errorf("malformed broken stage filename %q", filename)
	}
	if !IsBroken(filename) && len(parts) != 3 {
		return nil, fmt.Errorf("malformed stage filename %q", filename)
	}
	return parts, nil
}

func parseInt(s, filename string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed stage filename %q: %w", filename, err)
	}
	return n, nil
}
