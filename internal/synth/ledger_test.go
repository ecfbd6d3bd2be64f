package synth

import (
	"sync"
	"testing"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedgerInMemory()
	if err != nil {
		t.Fatalf("OpenLedgerInMemory: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedger_RecordNewPair(t *testing.T) {
	l := newTestLedger(t)

	added, err := l.Record("msg-1", "msg-1_abc.wav")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !added {
		t.Error("first Record = false, want true")
	}
}

func TestLedger_RecordExistingPair(t *testing.T) {
	l := newTestLedger(t)

	if _, err := l.Record("msg-1", "msg-1_abc.wav"); err != nil {
		t.Fatalf("first Record: %v", err)
	}
	added, err := l.Record("msg-1", "msg-1_abc.wav")
	if err != nil {
		t.Fatalf("second Record: %v", err)
	}
	if added {
		t.Error("second Record = true, want false")
	}
}

func TestLedger_DistinctPairsIndependent(t *testing.T) {
	l := newTestLedger(t)

	pairs := [][2]string{
		{"msg-1", "msg-1_abc.wav"},
		{"msg-1", "msg-1_def.wav"},
		{"msg-2", "msg-2_abc.wav"},
	}
	for _, p := range pairs {
		added, err := l.Record(p[0], p[1])
		if err != nil {
			t.Fatalf("Record(%q, %q): %v", p[0], p[1], err)
		}
		if !added {
			t.Errorf("Record(%q, %q) = false, want true", p[0], p[1])
		}
	}
}

func TestLedger_ForgetAllowsReRecord(t *testing.T) {
	l := newTestLedger(t)

	if _, err := l.Record("msg-1", "f.wav"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Forget("msg-1", "f.wav"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	added, err := l.Record("msg-1", "f.wav")
	if err != nil {
		t.Fatalf("re-Record: %v", err)
	}
	if !added {
		t.Error("Record after Forget = false, want true")
	}
}

func TestLedger_ConcurrentRecordExactlyOneWins(t *testing.T) {
	l := newTestLedger(t)

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan bool, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := l.Record("msg-1", "f.wav")
			if err != nil {
				t.Errorf("Record: %v", err)
				return
			}
			wins <- added
		}()
	}
	wg.Wait()
	close(wins)

	total := 0
	for added := range wins {
		if added {
			total++
		}
	}
	if total != 1 {
		t.Errorf("winners = %d, want exactly 1", total)
	}
}

func TestLedger_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	l, err := OpenLedger(dir)
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	if _, err := l.Record("msg-1", "f.wav"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	l2, err := OpenLedger(dir)
	if err != nil {
		t.Fatalf("reopen OpenLedger: %v", err)
	}
	defer l2.Close()

	added, err := l2.Record("msg-1", "f.wav")
	if err != nil {
		t.Fatalf("Record after reopen: %v", err)
	}
	if added {
		t.Error("Record after reopen = true, want false (entry persisted)")
	}
}
