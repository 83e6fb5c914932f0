package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mohaanymo/veldscan/internal/models"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestTableTTL(t *testing.T) {
	c := &clock{t: time.Unix(1000, 0)}
	tbl := NewTable[string](10 * time.Second)
	tbl.now = c.now

	tbl.Put("a", "1")
	v, ok := tbl.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	c.t = c.t.Add(9 * time.Second)
	_, ok = tbl.Get("a")
	assert.True(t, ok, "still inside the window")

	c.t = c.t.Add(time.Second)
	_, ok = tbl.Get("a")
	assert.False(t, ok, "expired at exactly ttl")
	assert.Equal(t, 1, tbl.Len(), "expired entries linger until evicted")

	assert.Equal(t, 1, tbl.EvictExpired())
	assert.Zero(t, tbl.Len())
}

func TestTableWithoutTTL(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	tbl := NewTable[int](0)
	tbl.now = c.now

	tbl.Put("k", 7)
	c.t = c.t.Add(24 * 365 * time.Hour)

	v, ok := tbl.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 7, v)
	assert.Zero(t, tbl.EvictExpired())
}

func TestTableRangeSkipsExpired(t *testing.T) {
	c := &clock{t: time.Unix(0, 0)}
	tbl := NewTable[int](time.Minute)
	tbl.now = c.now

	tbl.Put("old", 1)
	c.t = c.t.Add(2 * time.Minute)
	tbl.Put("new", 2)

	var keys []string
	tbl.Range(func(k string, _ int) bool {
		keys = append(keys, k)
		return true
	})
	assert.Equal(t, []string{"new"}, keys)
}

func TestStore(t *testing.T) {
	s := NewStore(time.Minute)
	c := &clock{t: time.Unix(0, 0)}
	s.SetClock(c.now)

	s.Content.Put("u", []byte("#EXTM3U"))
	s.Masters.Put("u", models.NewManifest("u", "u", models.StatusSuccess))

	c.t = c.t.Add(time.Hour)
	_, ok := s.Content.Get("u")
	assert.False(t, ok)
	_, ok = s.Masters.Get("u")
	assert.True(t, ok, "master cache has no TTL")

	s.Forget("u")
	_, ok = s.Masters.Get("u")
	assert.False(t, ok)

	s.Masters.Put("v", models.NewManifest("v", "v", models.StatusSuccess))
	s.Clear()
	assert.Zero(t, s.Masters.Len())
	assert.Zero(t, s.Content.Len())
}
