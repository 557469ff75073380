package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/user/claimline/internal/claim"
)

// ErrSequenceCorrupt means sequence.json could not be parsed. Claim creation
// must stop rather than risk reusing an identifier.
var ErrSequenceCorrupt = errors.New("sequence file corrupt")

// Sequence hands out claim identifiers of the form {type}-{YYYYMMDD}-{NNNNNN}.
// Counters are per claim type and never reset. The read-increment-write cycle
// holds an in-process mutex and an exclusive flock on sequence.json.lock so
// several processes sharing a data directory never collide.
type Sequence struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewSequence creates a generator backed by <root>/sequence.json.
func NewSequence(root string) *Sequence {
	return &Sequence{path: filepath.Join(root, "sequence.json"), now: time.Now}
}

// Next increments the counter for claimType and returns the formatted ID.
func (s *Sequence) Next(claimType claim.Type) (string, error) {
	if !claimType.Valid() {
		return "", fmt.Errorf("unknown claim type: %q", claimType)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	lockFile, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return "", fmt.Errorf("open sequence lock: %w", err)
	}
	defer lockFile.Close()
	if err := unix.Flock(int(lockFile.Fd()), unix.LOCK_EX); err != nil {
		return "", fmt.Errorf("lock sequence: %w", err)
	}
	defer unix.Flock(int(lockFile.Fd()), unix.LOCK_UN)

	counters, err := s.load()
	if err != nil {
		return "", err
	}
	counters[string(claimType)]++
	n := counters[string(claimType)]

	data, err := json.Marshal(counters)
	if err != nil {
		return "", fmt.Errorf("marshal sequence: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return "", fmt.Errorf("write sequence: %w", err)
	}

	id := fmt.Sprintf("%s-%s-%06d", claimType, s.now().Format("20060102"), n)
	slog.Info("generated claim id", "claim_id", id)
	return id, nil
}

func (s *Sequence) load() (map[string]int64, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]int64{string(claim.TypeCD): 0, string(claim.TypeH): 0}, nil
		}
		return nil, fmt.Errorf("read sequence: %w", err)
	}
	counters := map[string]int64{}
	if err := json.Unmarshal(data, &counters); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSequenceCorrupt, err)
	}
	return counters, nil
}
