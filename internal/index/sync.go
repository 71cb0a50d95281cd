package index

import "github.com/starford/tramite/internal/models"

// Changed reports whether metas differ from the documents recorded by the
// last snapshot: a new, modified or removed file counts as a change.
func (db *DB) Changed(metas []models.DocumentMetadata) (bool, error) {
	checksums, err := db.DocumentChecksums()
	if err != nil {
		return false, err
	}
	if len(checksums) != len(metas) {
		return true, nil
	}
	for _, m := range metas {
		if cs, ok := checksums[m.Path]; !ok || cs != m.Checksum {
			return true, nil
		}
	}
	return false, nil
}
