package synth

import (
	"errors"
	"fmt"
	"log/slog"

	badger "github.com/dgraph-io/badger/v4"
)

// Ledger is the synthesis deduplication index: a durable set of
// (message id, utterance filename) pairs backed by BadgerDB. It replaces an
// append-only flat file with a key-existence index; the check-then-act race
// between "is this pair known" and "record it" is closed by performing both
// inside one read-write transaction.
type Ledger struct {
	db *badger.DB
}

// OpenLedger opens (or creates) the ledger at dir.
func OpenLedger(dir string) (*Ledger, error) {
	if dir == "" {
		return nil, errors.New("synth: ledger dir must not be empty")
	}
	opts := badger.DefaultOptions(dir).WithLogger(badgerLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("synth: open ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// OpenLedgerInMemory opens a non-persistent ledger. Used in tests.
func OpenLedgerInMemory() (*Ledger, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("synth: open in-memory ledger: %w", err)
	}
	return &Ledger{db: db}, nil
}

// ledgerKey composes the storage key for one (message id, filename) pair.
// The null separator cannot appear in either component.
func ledgerKey(messageID, filename string) []byte {
	return []byte(messageID + "\x00" + filename)
}

// Record atomically checks for and records the (messageID, filename) pair.
// It returns true when the pair was newly recorded and false when it already
// existed. Two concurrent calls for the same pair cannot both see true:
// badger's SSI transactions abort the conflicting writer, which then re-reads
// and observes the committed entry.
func (l *Ledger) Record(messageID, filename string) (bool, error) {
	key := ledgerKey(messageID, filename)
	added := false

	record := func() error {
		return l.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(key)
			switch {
			case err == nil:
				added = false
				return nil
			case errors.Is(err, badger.ErrKeyNotFound):
				added = true
				return txn.Set(key, []byte{})
			default:
				return err
			}
		})
	}

	err := record()
	if errors.Is(err, badger.ErrConflict) {
		err = record()
	}
	if err != nil {
		return false, fmt.Errorf("synth: record ledger entry: %w", err)
	}
	return added, nil
}

// Forget removes a pair recorded by [Record]. Called when synthesis fails
// after the pair was recorded, so a retry is not misreported as a duplicate.
func (l *Ledger) Forget(messageID, filename string) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(ledgerKey(messageID, filename))
	})
	if err != nil {
		return fmt.Errorf("synth: forget ledger entry: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// badgerLogger routes badger output through slog, dropping info/debug noise.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...any)   { slog.Error(fmt.Sprintf("ledger: "+f, v...)) }
func (badgerLogger) Warningf(f string, v ...any) { slog.Warn(fmt.Sprintf("ledger: "+f, v...)) }
func (badgerLogger) Infof(string, ...any)        {}
func (badgerLogger) Debugf(string, ...any)       {}
