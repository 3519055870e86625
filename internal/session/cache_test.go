package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	models "github.com/CodeAndHammer/wordguess/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(token string) models.Session {
	return models.NewSession(token, "owner", "solver", "test_solver", "tests", time.Now(), time.Hour)
}

func TestPutGet(t *testing.T) {
	c := NewCache(3)
	require.NoError(t, c.Put(testSession("123abc")))

	e, ok := c.Get("123abc")
	require.True(t, ok)
	assert.Equal(t, "123abc", e.Token())
	assert.Equal(t, "123abc", e.Snapshot().Token)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestDefaultCapacity(t *testing.T) {
	assert.Equal(t, 50, NewCache(0).Capacity())
	assert.Equal(t, 50, NewCache(-1).Capacity())
	assert.Equal(t, 7, NewCache(7).Capacity())
}

func TestCapacityPlusOneEvictsFirstInserted(t *testing.T) {
	c := NewCache(50)
	require.NoError(t, c.Put(testSession("123abc")))
	for i := 0; i < 50; i++ {
		require.NoError(t, c.Put(testSession(fmt.Sprintf("%dtest_token", i))))
		require.LessOrEqual(t, c.Len(), c.Capacity())
	}

	_, ok := c.Get("123abc")
	assert.False(t, ok)
	for i := 0; i < 50; i++ {
		_, ok := c.Get(fmt.Sprintf("%dtest_token", i))
		assert.True(t, ok, "token %d", i)
	}
	assert.Equal(t, 50, c.Len())
}

func TestGetRefreshesRecency(t *testing.T) {
	c := NewCache(50)
	require.NoError(t, c.Put(testSession("123abc")))
	for i := 0; i < 25; i++ {
		require.NoError(t, c.Put(testSession(fmt.Sprintf("%dtest_token", i))))
	}
	_, ok := c.Get("123abc")
	require.True(t, ok)

	for j := 25; j < 51; j++ {
		require.NoError(t, c.Put(testSession(fmt.Sprintf("%dtest_token", j))))
	}

	_, ok = c.Get("123abc")
	assert.True(t, ok)
	_, ok = c.Get("0test_token")
	assert.False(t, ok)
}

func TestPutOverwriteDoesNotEvict(t *testing.T) {
	c := NewCache(2)
	require.NoError(t, c.Put(testSession("a")))
	require.NoError(t, c.Put(testSession("b")))

	updated := testSession("a")
	updated.SolverName = "renamed"
	require.NoError(t, c.Put(updated))

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"a", "b"}, c.Keys())
	e, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "renamed", e.Snapshot().SolverName)

	require.NoError(t, c.Put(testSession("c")))
	assert.Equal(t, []string{"c", "a"}, c.Keys())
}

func TestRemoveIsIdempotent(t *testing.T) {
	c := NewCache(3)
	require.NoError(t, c.Put(testSession("123abc")))
	c.Remove("123abc")
	c.Remove("123abc")
	c.Remove("never")

	_, ok := c.Get("123abc")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestRemoveEntryOnlyRemovesSameEntry(t *testing.T) {
	c := NewCache(3)
	require.NoError(t, c.Put(testSession("a")))
	old, ok := c.Get("a")
	require.True(t, ok)

	require.NoError(t, c.Put(testSession("a")))
	c.RemoveEntry(old)
	_, ok = c.Get("a")
	assert.True(t, ok, "replacement entry must survive removal of the old one")

	current, _ := c.Get("a")
	c.RemoveEntry(current)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestKeysOrder(t *testing.T) {
	c := NewCache(3)
	for _, tok := range []string{"a", "b", "c"} {
		require.NoError(t, c.Put(testSession(tok)))
	}
	c.Get("a")
	assert.Equal(t, []string{"a", "c", "b"}, c.Keys())
}

func TestEvictFunc(t *testing.T) {
	var evicted []string
	c := NewCache(2, WithEvictFunc(func(s models.Session) {
		evicted = append(evicted, s.Token)
	}))
	for _, tok := range []string{"a", "b", "c", "d"} {
		require.NoError(t, c.Put(testSession(tok)))
	}
	c.Remove("c")
	assert.Equal(t, []string{"a", "b"}, evicted)
}

func TestClose(t *testing.T) {
	c := NewCache(2)
	require.NoError(t, c.Put(testSession("a")))
	c.Close()

	assert.True(t, c.Closed())
	assert.Equal(t, 0, c.Len())
	assert.ErrorIs(t, c.Put(testSession("b")), ErrCacheClosed)
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestPutRequiresToken(t *testing.T) {
	c := NewCache(2)
	assert.Error(t, c.Put(models.Session{}))
}

func TestConcurrentAccessKeepsCapacity(t *testing.T) {
	c := NewCache(10)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				tok := fmt.Sprintf("w%d-%d", w, i%40)
				switch i % 3 {
				case 0:
					_ = c.Put(testSession(tok))
				case 1:
					if e, ok := c.Get(tok); ok {
						e.Lock()
						e.Session.SolverName = tok
						e.Unlock()
					}
				default:
					c.Remove(tok)
				}
				if n := c.Len(); n > c.Capacity() {
					t.Errorf("len %d exceeds capacity", n)
				}
			}
		}(w)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 10)
	assert.Len(t, c.Keys(), c.Len())
}

func TestNewToken(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		tok, err := NewToken()
		require.NoError(t, err)
		require.True(t, ValidToken(tok), tok)
		require.False(t, seen[tok])
		seen[tok] = true
	}
	assert.False(t, ValidToken("123abc"))
	assert.False(t, ValidToken("zz"+"0123456789abcdef0123456789abcd"))
}
