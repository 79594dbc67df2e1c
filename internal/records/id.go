package records

import (
	"strconv"
	"sync"
	"time"
)

// IDGenerator hands out millisecond timestamps as decimal text. Ids are
// strictly increasing even when two are requested within one millisecond.
type IDGenerator struct {
	mutex sync.Mutex
	last  int64
	now   func() time.Time
}

func NewIDGenerator() *IDGenerator {
	return NewIDGeneratorWithClock(time.Now)
}

func NewIDGeneratorWithClock(now func() time.Time) *IDGenerator {
	return &IDGenerator{
		now: now,
	}
}

func (g *IDGenerator) Next() string {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return strconv.FormatInt(ms, 10)
}
