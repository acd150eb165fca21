// Package idgen produces the display identifiers used by the ledger:
// "{PREFIX}-{10 uppercase hex characters}".
package idgen

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sheikh-saqib/banking-ledger-core/internal/interfaces"
)

// Namespaces used by the ledger.
const (
	CustomerPrefix    = "CUS"
	AccountPrefix     = "ACC"
	TransactionPrefix = "TX"
)

const bodyLen = 10

// Random draws identifiers from random (version 4) UUIDs.
type Random struct{}

func NewRandom() Random {
	return Random{}
}

func (Random) NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + strings.ToUpper(raw[:bodyLen])
}

// Sequence hands out predictable identifiers, one counter per prefix.
// Used where tests need stable ids. The zero value is ready to use.
type Sequence struct {
	mu   sync.Mutex
	next map[string]uint64
}

func NewSequence() *Sequence {
	return &Sequence{next: make(map[string]uint64)}
}

func (s *Sequence) NewID(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next == nil {
		s.next = make(map[string]uint64)
	}
	s.next[prefix]++
	return fmt.Sprintf("%s-%0*X", prefix, bodyLen, s.next[prefix])
}

var (
	_ interfaces.IDGenerator = Random{}
	_ interfaces.IDGenerator = (*Sequence)(nil)
)
