package idgen

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// ============================================================================
// Snowflake ID generator
// ============================================================================
//
// 64-bit layout:
//
//   0 - 41-bit timestamp - 10-bit worker id - 12-bit sequence
//   |   |                  |                  |
//   |   |                  |                  +-- sequence within one ms (0-4095)
//   |   |                  +-- worker id (0-1023)
//   |   +-- milliseconds since epoch (about 69 years)
//   +-- sign bit, always 0
//
// IDs are unique per worker and increase with time, which keeps the
// transaction_no index append-mostly.
// ============================================================================

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// TransactionPrefix starts every ledger transaction number.
const TransactionPrefix = "TXN"

type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultGenerator *Snowflake
	defaultMu        sync.Mutex
)

// NewSnowflake returns a generator for workerID. Every instance sharing a
// database must use a distinct worker id.
func NewSnowflake(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("worker id must be within 0-%d, got %d", maxWorkerID, workerID)
	}
	return &Snowflake{workerID: workerID}, nil
}

// Init sets the worker id of the default generator.
func Init(workerID int64) error {
	g, err := NewSnowflake(workerID)
	if err != nil {
		return err
	}
	defaultMu.Lock()
	defaultGenerator = g
	defaultMu.Unlock()
	return nil
}

func NextID() int64 {
	defaultMu.Lock()
	if defaultGenerator == nil {
		defaultGenerator = &Snowflake{workerID: 1}
	}
	g := defaultGenerator
	defaultMu.Unlock()
	return g.Generate()
}

func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < s.timestamp {
		// clock moved backwards; keep issuing from the last timestamp
		now = s.timestamp
	}

	if now == s.timestamp {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			for now <= s.timestamp {
				now = time.Now().UnixMilli()
			}
		}
	} else {
		s.sequence = 0
	}

	s.timestamp = now

	return ((now - epoch) << timestampShift) |
		(s.workerID << workerIDShift) |
		s.sequence
}

// GenerateTransactionNo returns a ledger transaction number, e.g.
// TXN1893750236710912. The full snowflake id is kept so numbers never
// collide.
func GenerateTransactionNo() string {
	return TransactionPrefix + strconv.FormatInt(NextID(), 10)
}

// ParseTransactionNo returns the snowflake id inside a transaction number.
func ParseTransactionNo(no string) (int64, error) {
	if len(no) <= len(TransactionPrefix) || no[:len(TransactionPrefix)] != TransactionPrefix {
		return 0, fmt.Errorf("malformed transaction number %q", no)
	}
	return strconv.ParseInt(no[len(TransactionPrefix):], 10, 64)
}

// issuedAt returns when id was generated.
func issuedAt(id int64) time.Time {
	return time.UnixMilli((id >> timestampShift) + epoch)
}
