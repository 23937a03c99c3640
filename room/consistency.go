package room

import "vmeste.me/model"

// FilesConsistent reports whether every member's media fingerprint, the
// (fileHash, fileSize) pair, matches the first member's exactly. Vacuously
// true for an empty room or while the first member has not reported a file.
// Byte-identical files only: two encodes of the same movie do not match.
func FilesConsistent(members []model.Member) bool {
	if len(members) == 0 {
		return true
	}
	ref := members[0].FileInfo
	if ref.FingerprintEmpty() {
		return true
	}
	for _, m := range members[1:] {
		if !m.FileInfo.SameFile(ref) {
			return false
		}
	}
	return true
}
