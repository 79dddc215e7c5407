package result

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrDuplicateEntry is returned by Append when the name is already tracked.
	ErrDuplicateEntry = errors.New("entry already exists")

	// ErrUnknownEntry is returned by Apply for a name that was never appended.
	ErrUnknownEntry = errors.New("unknown entry")

	// ErrAlreadySettled is returned by Apply when the entry already left InProgress.
	ErrAlreadySettled = errors.New("entry already settled")

	// ErrNoOutput marks an entry whose compressor returned neither a file nor an error.
	ErrNoOutput = errors.New("compressor returned no file")
)

// Store is the ordered, name-keyed collection of entries for one session.
// Entries are only ever appended and then settled once.
type Store struct {
	mu      sync.RWMutex
	entries []*Entry
	index   map[string]int
}

func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Append adds an InProgress entry for f.
func (s *Store) Append(f File) (Entry, error) {
	name := f.Name()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[name]; ok {
		return Entry{}, fmt.Errorf("%s: %w", name, ErrDuplicateEntry)
	}
	e := &Entry{
		FileName:     name,
		Original:     f,
		New:          f,
		OriginalSize: f.Size(),
		Status:       StatusInProgress,
	}
	s.index[name] = len(s.entries)
	s.entries = append(s.entries, e)
	return *e, nil
}

// Apply settles the entry named by u. It is the only way an entry changes
// after Append, and it succeeds at most once per entry.
func (s *Store) Apply(u Update) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[u.FileName]
	if !ok {
		return Entry{}, fmt.Errorf("%s: %w", u.FileName, ErrUnknownEntry)
	}
	e := s.entries[i]
	if e.Status.Terminal() {
		return *e, fmt.Errorf("%s: %w", u.FileName, ErrAlreadySettled)
	}

	err := u.Err
	if err == nil && u.File == nil {
		err = ErrNoOutput
	}
	if err != nil {
		e.Status = StatusFailed
		e.Err = err
		e.New = e.Original
		e.PercentSaved = 0
		return *e, nil
	}

	e.New = u.File
	e.NewSize = u.File.Size()
	e.PercentSaved = PercentSaved(e.OriginalSize, e.NewSize)
	e.Status = StatusComplete
	return *e, nil
}

func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[name]
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entry returns a copy of the named entry.
func (s *Store) Entry(name string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[name]
	if !ok {
		return Entry{}, false
	}
	return *s.entries[i], true
}

// Entries returns a snapshot in insertion order.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = *e
	}
	return out
}

// AllDone reports whether the store is non-empty and nothing is in progress.
func (s *Store) AllDone() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return allDone(s.entries)
}

func allDone(entries []*Entry) bool {
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		if e.Status == StatusInProgress {
			return false
		}
	}
	return true
}

func (s *Store) Totals() Totals {
	return Summarize(s.Entries())
}
