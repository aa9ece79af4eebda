package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Keys held by the secure store. Everything is cleared together on logout.
const (
	KeyCredential    = "credential"
	KeyDisplayName   = "displayName"
	KeySavedEmail    = "savedEmail"
	KeySavedPassword = "savedPassword"
)

const storeFileName = "secure.json"

// SecureStore is the client's persisted key store: a single 0600 file,
// replaced atomically on every write.
type SecureStore struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

func OpenSecureStore(dir string) (*SecureStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	s := &SecureStore{
		path:   filepath.Join(dir, storeFileName),
		values: make(map[string]string),
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		// Unreadable state is treated as absent rather than fatal.
		s.values = make(map[string]string)
	}
	return s, nil
}

func (s *SecureStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	return v, ok
}

func (s *SecureStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return s.saveLocked()
}

func (s *SecureStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.saveLocked()
}

func (s *SecureStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[string]string)
	return s.saveLocked()
}

func (s *SecureStore) saveLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, storeFileName+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.path)
}
