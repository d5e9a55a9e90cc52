package index

import (
	"log/slog"

	"github.com/hyenadev/hyena/internal/notelog"
)

// Sync brings the index up to date with the derived log: atoms whose
// hash is not yet mirrored are inserted. The log is append-only, so
// there are no deletions to reconcile. Returns the number of atoms
// added to the index.
func Sync(db *DB, notes *notelog.Store, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	mirrored, err := db.AllHashes()
	if err != nil {
		return 0, err
	}

	added := 0
	skipped, err := notes.Iterate(func(a notelog.Atom) error {
		if _, ok := mirrored[a.Hash]; ok {
			return nil
		}
		if err := db.InsertAtom(a); err != nil {
			return err
		}
		mirrored[a.Hash] = struct{}{}
		added++
		return nil
	})
	if err != nil {
		return added, err
	}
	if skipped > 0 {
		logger.Warn("index: skipped malformed log lines", slog.Int("count", skipped))
	}
	logger.Debug("index: sync done", slog.Int("added", added))
	return added, nil
}
