package diskio

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"storagecore/page"
)

func TestCachingDiskManagerServesWritesFromCache(t *testing.T) {
	inner, err := New(afero.NewMemMapFs(), "/data/test.db")
	require.NoError(t, err)

	caching, err := NewCachingDiskManager(inner, 1<<20)
	require.NoError(t, err)
	defer caching.Close()

	var src page.Frame
	for i := range src.Data {
		src.Data[i] = byte(i % 7)
	}
	require.NoError(t, caching.WritePage(page.ID(1), &src))
	caching.cache.Wait() // ristretto applies Set asynchronously; wait for it to land

	var dst page.Frame
	require.NoError(t, caching.ReadPage(page.ID(1), &dst))
	require.Equal(t, src.Data, dst.Data)
}

func TestCachingDiskManagerFallsThroughOnMiss(t *testing.T) {
	inner, err := New(afero.NewMemMapFs(), "/data/test.db")
	require.NoError(t, err)

	var preexisting page.Frame
	preexisting.Data[0] = 0x42
	require.NoError(t, inner.WritePage(page.ID(3), &preexisting))

	caching, err := NewCachingDiskManager(inner, 1<<20)
	require.NoError(t, err)
	defer caching.Close()

	var dst page.Frame
	require.NoError(t, caching.ReadPage(page.ID(3), &dst))
	require.Equal(t, byte(0x42), dst.Data[0])
}

func TestCachingDiskManagerDropsCacheOnDeallocate(t *testing.T) {
	inner, err := New(afero.NewMemMapFs(), "/data/test.db")
	require.NoError(t, err)

	caching, err := NewCachingDiskManager(inner, 1<<20)
	require.NoError(t, err)
	defer caching.Close()

	var src page.Frame
	src.Data[0] = 0x11
	require.NoError(t, caching.WritePage(page.ID(5), &src))
	caching.cache.Wait()
	require.NoError(t, caching.DeallocatePage(page.ID(5)))

	// A reused page id must not serve the previous occupant's bytes
	// straight from the cache.
	_, found := caching.cache.Get(uint32(5))
	require.False(t, found)
}
