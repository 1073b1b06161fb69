package valuestore

import (
	"encoding/json"
	"os"
)

func writeSnapshotFile(path string, snap map[string][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(snap)
}

func (s *Store) loadSnapshot() error {
	path := s.dataDir + "/data_item.snapshot"
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	var snap map[string][]byte
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return err
	}
	s.data = snap
	return nil
}

func (s *Store) replayWAL() error {
	entries, err := s.wal.readAll()
	if err != nil {
		return err
	}
	for _, e := range entries {
		switch e.Op {
		case walOpPut:
			s.data[e.Key] = e.Value
		case walOpRemove:
			delete(s.data, e.Key)
		}
	}
	return nil
}
