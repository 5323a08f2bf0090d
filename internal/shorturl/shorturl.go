package shorturl

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"

	"shardkv/internal/store"
)

// Key prefixes keep forward and reverse entries distinguishable.
const (
	codePrefix = "sc:"
	urlPrefix  = "url:"
)

// defaultServer seeds both stores so a freshly constructed shortener
// works without explicit cluster setup.
const defaultServer = "server1"

// Shortener maps long URLs to base62 short codes and back, using two
// sharded stores: one keyed by code, one keyed by URL for idempotent
// shortening.
type Shortener struct {
	mu      sync.Mutex
	baseURL string
	codes   *store.Store // sc:<code> -> long URL
	urls    *store.Store // url:<long URL> -> code
	nextID  uint64
	index   []string // short codes in creation order, drives CSV export
}

// New creates a shortener. baseURL prefixes every shortened link and
// must be non-empty; virtualNodes configures both backing stores.
func New(baseURL string, virtualNodes int) (*Shortener, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	codes, err := store.New(virtualNodes)
	if err != nil {
		return nil, err
	}
	urls, err := store.New(virtualNodes)
	if err != nil {
		return nil, err
	}

	s := &Shortener{
		baseURL: baseURL,
		codes:   codes,
		urls:    urls,
		nextID:  1,
	}
	s.codes.AddServer(defaultServer)
	s.urls.AddServer(defaultServer)
	return s, nil
}

// Shorten returns the short URL for longURL, creating a new code on
// first sight and returning the existing one on repeats.
func (s *Shortener) Shorten(longURL string) (string, error) {
	if longURL == "" {
		return "", fmt.Errorf("long URL cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if code, exists := s.urls.Get(urlPrefix + longURL); exists {
		return s.baseURL + code, nil
	}

	code := s.generateCode()
	if !s.codes.Put(codePrefix+code, longURL) || !s.urls.Put(urlPrefix+longURL, code) {
		return "", fmt.Errorf("no servers available")
	}
	s.index = append(s.index, code)
	return s.baseURL + code, nil
}

// Expand resolves a short code to the original URL.
func (s *Shortener) Expand(code string) (string, bool) {
	if code == "" {
		return "", false
	}
	return s.codes.Get(codePrefix + code)
}

// ExpandURL resolves a full short URL to the original URL.
func (s *Shortener) ExpandURL(shortURL string) (string, bool) {
	code, ok := strings.CutPrefix(shortURL, s.baseURL)
	if !ok || code == "" {
		return "", false
	}
	return s.Expand(code)
}

// Exists reports whether a short code is known.
func (s *Shortener) Exists(code string) bool {
	return s.codes.Exists(codePrefix + code)
}

// Len returns the number of shortened URLs.
func (s *Shortener) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

// Stats returns the entry counts of the reverse and forward stores.
func (s *Shortener) Stats() (urls, codes int) {
	return s.urls.TotalEntries(), s.codes.TotalEntries()
}

// Clear drops all mappings and resets both stores to the default server.
func (s *Shortener) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes.Clear()
	s.urls.Clear()
	s.codes.AddServer(defaultServer)
	s.urls.AddServer(defaultServer)
	s.index = nil
	s.nextID = 1
}

// AddServer adds a server to both backing stores.
func (s *Shortener) AddServer(serverID string) bool {
	added := s.codes.AddServer(serverID)
	return s.urls.AddServer(serverID) && added
}

// RemoveServer removes a server from both backing stores.
func (s *Shortener) RemoveServer(serverID string) bool {
	removed := s.codes.RemoveServer(serverID)
	return s.urls.RemoveServer(serverID) && removed
}

// Servers returns the servers of the forward store.
func (s *Shortener) Servers() []string {
	return s.codes.Servers()
}

// ServerForCode returns the server that owns a short code.
func (s *Shortener) ServerForCode(code string) (string, bool) {
	return s.codes.ServerForKey(codePrefix + code)
}

// SaveToFile writes all mappings to a CSV file with a
// "short_code,long_url" header, in creation order.
func (s *Shortener) SaveToFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"short_code", "long_url"}); err != nil {
		return err
	}
	for _, code := range s.index {
		longURL, exists := s.codes.Get(codePrefix + code)
		if !exists {
			continue
		}
		if err := w.Write([]string{code, longURL}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// LoadFromFile replaces the current mappings with the contents of a CSV
// file previously written by SaveToFile. The next code is advanced past
// the largest decodable code in the file.
func (s *Shortener) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2
	records, err := r.ReadAll()
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	s.Clear()

	s.mu.Lock()
	defer s.mu.Unlock()

	var maxID uint64
	for i, record := range records {
		if i == 0 && record[0] == "short_code" {
			continue // header
		}
		code, longURL := record[0], record[1]
		if code == "" || longURL == "" {
			continue
		}
		s.codes.Put(codePrefix+code, longURL)
		s.urls.Put(urlPrefix+longURL, code)
		s.index = append(s.index, code)

		if id, err := DecodeBase62(code); err == nil && id > maxID {
			maxID = id
		}
	}
	if maxID > 0 {
		s.nextID = maxID + 1
	}
	return nil
}

// generateCode returns the next unused short code.
// Callers must hold the lock.
func (s *Shortener) generateCode() string {
	for {
		code := EncodeBase62(s.nextID)
		s.nextID++
		if !s.codes.Exists(codePrefix + code) {
			return code
		}
	}
}
