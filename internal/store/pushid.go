package store

import (
	"crypto/rand"
	"sync"
	"time"
)

// Push IDs follow the Realtime Database scheme: 8 characters of millisecond
// timestamp followed by 12 random characters, so keys sort by creation time.
const pushChars = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

type pushIDGenerator struct {
	mu       sync.Mutex
	lastTime int64
	lastRand [12]int
	now      func() time.Time
}

var defaultPushIDs = &pushIDGenerator{now: time.Now}

// NewPushID returns a new chronologically ordered, globally unique key.
func NewPushID() string {
	return defaultPushIDs.next()
}

func (g *pushIDGenerator) next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now().UnixMilli()
	duplicate := now <= g.lastTime
	if duplicate {
		now = g.lastTime
	}
	g.lastTime = now

	var id [20]byte
	ts := now
	for i := 7; i >= 0; i-- {
		id[i] = pushChars[ts%64]
		ts /= 64
	}

	if !duplicate {
		var buf [12]byte
		if _, err := rand.Read(buf[:]); err != nil {
			panic(err)
		}
		for i := range g.lastRand {
			g.lastRand[i] = int(buf[i]) % 64
		}
	} else {
		// Same millisecond: increment the random part to keep ordering.
		i := 11
		for ; i >= 0 && g.lastRand[i] == 63; i-- {
			g.lastRand[i] = 0
		}
		if i >= 0 {
			g.lastRand[i]++
		}
	}

	for i := 0; i < 12; i++ {
		id[8+i] = pushChars[g.lastRand[i]]
	}
	return string(id[:])
}
