// Package idgen issues entity identifiers.
package idgen

import (
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ledgerdesk/ledgerdesk/ports"
)

// UUID issues random v4 identifiers.
type UUID struct{}

func (UUID) New() string {
	return uuid.NewString()
}

var _ ports.IDGenerator = UUID{}

// Sequential issues prefix1, prefix2, ... so tests can predict the IDs
// a service will assign.
type Sequential struct {
	prefix string
	n      atomic.Uint64
}

func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.n.Add(1), 10)
}

var _ ports.IDGenerator = (*Sequential)(nil)
