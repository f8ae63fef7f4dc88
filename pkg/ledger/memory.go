package ledger

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger keeps all token records in process memory.
//
// Records are never deleted; the ledger grows for the lifetime of the
// process. A single mutex serializes every operation, which makes
// Redeem's check-and-mark a critical section without further locking.
type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string
	now     func() time.Time
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

func (l *MemoryLedger) Issue(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.records[id]; !exists {
		l.order = append(l.order, id)
	}
	l.records[id] = &Record{
		Token:     id,
		CreatedAt: l.now(),
		Status:    StatusPending,
	}
	return nil
}

func (l *MemoryLedger) Lookup(_ context.Context, id string) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return nil, ErrTokenNotFound
	}
	cp := *rec
	return &cp, nil
}

func (l *MemoryLedger) Redeem(_ context.Context, id string) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return nil, ErrTokenNotFound
	}
	switch rec.Status {
	case StatusRedeemed:
		return nil, ErrTokenUsed
	case StatusExpired:
		return nil, ErrTokenExpired
	}

	now := l.now()
	rec.Status = StatusRedeemed
	rec.UsedAt = &now

	cp := *rec
	return &cp, nil
}

func (l *MemoryLedger) Expire(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return ErrTokenNotFound
	}
	if rec.Status != StatusPending {
		return nil
	}

	now := l.now()
	rec.Status = StatusExpired
	rec.UsedAt = &now
	return nil
}

func (l *MemoryLedger) Attach(_ context.Context, id string, info BlobInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[id]
	if !ok {
		return ErrTokenNotFound
	}
	if rec.FileName == "" {
		rec.FileName = info.FileName
	}
	if rec.BlobID == "" {
		rec.BlobID = info.BlobID
	}
	if rec.BlobObjectID == "" {
		rec.BlobObjectID = info.BlobObjectID
	}
	if rec.Wallet == "" {
		rec.Wallet = info.Wallet
	}
	return nil
}

func (l *MemoryLedger) All(_ context.Context) ([]*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*Record, 0, len(l.order))
	for _, id := range l.order {
		cp := *l.records[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (l *MemoryLedger) FindByBlobID(_ context.Context, blobID string) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range l.order {
		if rec := l.records[id]; rec.BlobID == blobID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrTokenNotFound
}

func (l *MemoryLedger) Stats(_ context.Context) (Stats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var s Stats
	for _, rec := range l.records {
		s.Total++
		switch rec.Status {
		case StatusRedeemed:
			s.Redeemed++
			s.Used++
		case StatusExpired:
			s.Expired++
			s.Used++
		default:
			s.Unused++
		}
	}
	return s, nil
}
