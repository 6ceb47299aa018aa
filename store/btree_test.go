package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBTreeCacheGetSet(t *testing.T) {
	base := MemStore()

	k, v := []byte("french"), []byte("fry")

	// empty at the beginning
	got, err := base.Get(k)
	require.NoError(t, err)
	assert.Nil(t, got)
	has, err := base.Has(k)
	require.NoError(t, err)
	assert.False(t, has)

	// set and read it back
	require.NoError(t, base.Set(k, v))
	got, err = base.Get(k)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	// delete
	require.NoError(t, base.Delete(k))
	got, err = base.Get(k)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestBTreeCacheConflicts(t *testing.T) {
	k1, v1 := []byte("top"), []byte("hat")
	k2, v2 := []byte("turn"), []byte("table")
	v3 := []byte("overwrite")

	cases := map[string]struct {
		write  bool
		parent []Op
		child  []Op
		// state of the parent after child was written or discarded
		want     [][2][]byte
		wantMiss [][]byte
	}{
		"writing a cache publishes the changes": {
			write:  true,
			parent: []Op{SetOp(k1, v1)},
			child:  []Op{SetOp(k2, v2), SetOp(k1, v3)},
			want:   [][2][]byte{{k1, v3}, {k2, v2}},
		},
		"discarding a cache leaves the parent untouched": {
			write:    false,
			parent:   []Op{SetOp(k1, v1)},
			child:    []Op{SetOp(k2, v2), DelOp(k1)},
			want:     [][2][]byte{{k1, v1}},
			wantMiss: [][]byte{k2},
		},
		"child deletes are applied on write": {
			write:    true,
			parent:   []Op{SetOp(k1, v1), SetOp(k2, v2)},
			child:    []Op{DelOp(k2)},
			want:     [][2][]byte{{k1, v1}},
			wantMiss: [][]byte{k2},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			parent := MemStore()
			for _, op := range tc.parent {
				require.NoError(t, op.Apply(parent))
			}

			child := parent.CacheWrap()
			for _, op := range tc.child {
				require.NoError(t, op.Apply(child))
			}

			if tc.write {
				require.NoError(t, child.Write())
			} else {
				child.Discard()
			}

			for _, kv := range tc.want {
				got, err := parent.Get(kv[0])
				require.NoError(t, err)
				assert.Equal(t, kv[1], got)
			}
			for _, key := range tc.wantMiss {
				got, err := parent.Get(key)
				require.NoError(t, err)
				assert.Nil(t, got)
			}
		})
	}
}

func TestCacheWrapReadsThrough(t *testing.T) {
	parent := MemStore()
	k, v := []byte("walrus"), []byte("tusk")
	require.NoError(t, parent.Set(k, v))

	child := parent.CacheWrap()
	got, err := child.Get(k)
	require.NoError(t, err)
	assert.Equal(t, v, got)

	// delete in child shadows the parent value until discarded
	require.NoError(t, child.Delete(k))
	got, err = child.Get(k)
	require.NoError(t, err)
	assert.Nil(t, got)
	child.Discard()

	got, err = parent.Get(k)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}
