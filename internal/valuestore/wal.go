package valuestore

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// The WAL is an append-only file where every mutation is durably recorded
// before it is applied to the in-memory map. Writes are sequential so they
// stay fast even on spinning disks; on restart the log is replayed from the
// top to rebuild exact pre-crash state.

// walOp identifies the kind of mutation a wal entry records.
type walOp uint8

const (
	walOpPut walOp = iota
	walOpRemove
)

func (op walOp) String() string {
	switch op {
	case walOpPut:
		return "put"
	case walOpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

type walEntry struct {
	Op    walOp  `json:"op"`
	Key   string `json:"key"`
	Value []byte `json:"value,omitempty"`
}

var (
	walAppends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "adaptive_replication_vs_wal_appends_total",
		Help: "Value store WAL entries appended, by operation.",
	}, []string{"op"})
	walCorrupt = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "adaptive_replication_vs_wal_corrupt_entries_total",
		Help: "WAL entries discarded at replay because they failed to decode.",
	})
)

func init() {
	prometheus.MustRegister(walAppends, walCorrupt)
}

// wal is a simple append-only log backed by a single file. Each entry is a
// JSON object separated by a newline, making the file both streamable and
// tail-able with ordinary line tools.
type wal struct {
	mu   sync.Mutex
	file *os.File
}

func openWAL(path string) (*wal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &wal{file: f}, nil
}

// append serializes entry as JSON and fsyncs it. Sync forces the OS to
// flush its write buffer to physical media — without it a crash could lose
// the entry even though Write returned nil.
func (w *wal) append(entry walEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if _, err := w.file.Write(data); err != nil {
		return err
	}
	if err := w.file.Sync(); err != nil {
		return err
	}
	walAppends.WithLabelValues(entry.Op.String()).Inc()
	return nil
}

// readAll decodes the WAL from the beginning and returns every entry. A
// streaming json.Decoder is used rather than scanning discrete lines: once
// the decoder hits a malformed token its byte offset into the underlying
// stream is no longer trustworthy, so replay stops at the first corrupt
// entry instead of guessing where the next valid record begins.
func (w *wal) readAll() ([]walEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, 0); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bufio.NewReaderSize(w.file, 64*1024))
	var entries []walEntry
	for {
		var e walEntry
		err := dec.Decode(&e)
		if err == io.EOF {
			break
		}
		if err != nil {
			walCorrupt.Inc()
			log.Warn().Err(err).Int("entries_recovered", len(entries)).Msg("wal replay stopped at corrupt entry")
			break
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// truncate empties the WAL after a snapshot has been taken.
func (w *wal) truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Truncate(0); err != nil {
		return err
	}
	_, err := w.file.Seek(0, 0)
	return err
}

func (w *wal) close() error {
	return w.file.Close()
}
