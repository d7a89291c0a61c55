// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package merkle

import (
	"fmt"
	"testing"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/stretchr/testify/require"
)

func testLeaves(n int) []ids.ID {
	leaves := make([]ids.ID, n)
	for i := range leaves {
		leaves[i] = hashing.ComputeHash256Array([]byte(fmt.Sprintf("leaf-%d", i)))
	}
	return leaves
}

func TestBuildInvalidArity(t *testing.T) {
	for _, arity := range []int{-1, 0, 1} {
		_, err := Build(testLeaves(3), arity)
		require.ErrorIs(t, err, ErrInvalidArity)
		cfgErr, ok := IsConfigError(err)
		require.True(t, ok)
		require.Equal(t, arity, cfgErr.Arity)
	}
}

func TestEmptyTree(t *testing.T) {
	require := require.New(t)

	tree, err := Build(nil, 4)
	require.NoError(err)
	require.Equal(EmptyRoot, tree.Root())
	require.Zero(tree.Len())
	require.NotEqual(Empty, EmptyRoot)

	_, err = tree.Path(0)
	_, ok := IsIndexError(err)
	require.True(ok)
}

func TestBinaryExample(t *testing.T) {
	require := require.New(t)

	leaves := testLeaves(3)
	tree, err := Build(leaves, 2)
	require.NoError(err)

	left := HashNode([]ids.ID{leaves[0], leaves[1]})
	right := HashNode([]ids.ID{leaves[2], Empty})
	require.Equal(HashNode([]ids.ID{left, right}), tree.Root())
	require.Equal(2, tree.Depth())
}

func TestSingleLeafIsHashed(t *testing.T) {
	require := require.New(t)

	leaves := testLeaves(1)
	tree, err := Build(leaves, 3)
	require.NoError(err)
	require.Equal(HashNode([]ids.ID{leaves[0], Empty, Empty}), tree.Root())
	require.NotEqual(leaves[0], tree.Root())

	path, err := tree.Path(0)
	require.NoError(err)
	require.True(path.Verify(leaves[0], tree.Root()))
}

func TestBuildDeterministic(t *testing.T) {
	for _, arity := range []int{2, 3, 4, 16} {
		for _, n := range []int{1, 2, 5, 17, 64, 1000} {
			leaves := testLeaves(n)
			first, err := Root(leaves, arity)
			require.NoError(t, err)
			second, err := Root(testLeaves(n), arity)
			require.NoError(t, err)
			require.Equal(t, first, second, "arity %d, %d leaves", arity, n)
		}
	}
}

func TestBuildOrderSensitive(t *testing.T) {
	require := require.New(t)

	leaves := testLeaves(4)
	swapped := []ids.ID{leaves[1], leaves[0], leaves[2], leaves[3]}
	a, err := Root(leaves, 2)
	require.NoError(err)
	b, err := Root(swapped, 2)
	require.NoError(err)
	require.NotEqual(a, b)
}

func TestParallelMatchesSequential(t *testing.T) {
	require := require.New(t)

	// enough chunks at level 0 to take the parallel branch
	leaves := testLeaves(parallelThreshold*2*3 + 7)
	tree, err := Build(leaves, 2)
	require.NoError(err)

	level := leaves
	for len(level) > 1 {
		next := make([]ids.ID, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			right := Empty
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, HashNode([]ids.ID{level[i], right}))
		}
		level = next
	}
	require.Equal(level[0], tree.Root())
}

func TestPathsVerify(t *testing.T) {
	for _, arity := range []int{2, 3, 5} {
		for _, n := range []int{1, 2, 3, 7, 26, 125} {
			leaves := testLeaves(n)
			tree, err := Build(leaves, arity)
			require.NoError(t, err)

			for i, leaf := range leaves {
				path, err := tree.Path(i)
				require.NoError(t, err)
				require.Len(t, path.Positions, tree.Depth())
				require.True(t, path.Verify(leaf, tree.Root()), "arity %d, leaf %d of %d", arity, i, n)
				require.False(t, path.Verify(Empty, tree.Root()))
			}
		}
	}
}

func TestPathOutOfRange(t *testing.T) {
	require := require.New(t)

	tree, err := Build(testLeaves(5), 2)
	require.NoError(err)

	for _, index := range []int{-1, 5, 100} {
		_, err := tree.Path(index)
		idxErr, ok := IsIndexError(err)
		require.True(ok)
		require.Equal(index, idxErr.Index)
		require.Equal(5, idxErr.Leaves)
	}
}

func TestTamperedPath(t *testing.T) {
	require := require.New(t)

	leaves := testLeaves(9)
	tree, err := Build(leaves, 3)
	require.NoError(err)

	path, err := tree.Path(4)
	require.NoError(err)
	path.Siblings[1][0] = Empty
	require.False(path.Verify(leaves[4], tree.Root()))

	path.Siblings[0] = path.Siblings[0][:1]
	_, err = path.Compute(leaves[4])
	require.ErrorIs(err, errMalformedPath)
}
