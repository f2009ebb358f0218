package service

import (
	"testing"

	"kb-space-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id, parentID, rank uint, name string) model.WorkSpace {
	return model.WorkSpace{
		ID:       id,
		ParentID: parentID,
		Name:     name,
		Type:     model.WorkSpaceTypeFolder,
		Rank:     int(rank),
	}
}

func TestBuildTreeAssemblesForest(t *testing.T) {
	nodes := []model.WorkSpace{
		node(1, 0, 100, "A"),
		node(2, 1, 100, "B"),
		node(3, 2, 100, "C"),
		node(4, 1, 200, "D"),
	}

	tree, err := BuildTree(nodes, 0)
	require.NoError(t, err)

	assert.Equal(t, []uint{1}, tree.Roots)
	assert.Equal(t, []uint{2, 4}, tree.Items[1].Children)
	assert.Equal(t, []uint{3}, tree.Items[2].Children)
	assert.True(t, tree.Items[1].HasChildren)
	assert.False(t, tree.Items[3].HasChildren)
	assert.Empty(t, tree.ExpandPath)
}

func TestBuildTreeChildOrderByRankThenID(t *testing.T) {
	nodes := []model.WorkSpace{
		node(1, 0, 100, "root"),
		node(5, 1, 200, "late"),
		node(3, 1, 100, "tie-b"),
		node(2, 1, 100, "tie-a"),
	}

	tree, err := BuildTree(nodes, 0)
	require.NoError(t, err)

	// rank 相同时按 id 兜底，结果必须确定
	assert.Equal(t, []uint{2, 3, 5}, tree.Items[1].Children)
}

func TestBuildTreeOrphanPromotedToRoot(t *testing.T) {
	nodes := []model.WorkSpace{
		node(1, 0, 100, "A"),
		node(2, 99, 100, "orphan"), // 父节点 99 不在集合内
	}

	tree, err := BuildTree(nodes, 0)
	require.NoError(t, err)

	assert.ElementsMatch(t, []uint{1, 2}, tree.Roots)
}

func TestBuildTreeExpandPath(t *testing.T) {
	nodes := []model.WorkSpace{
		node(1, 0, 100, "A"),
		node(2, 1, 100, "B"),
		node(3, 2, 100, "C"),
	}

	tree, err := BuildTree(nodes, 3)
	require.NoError(t, err)

	assert.Equal(t, []uint{1, 2}, tree.ExpandPath)
	assert.True(t, tree.Items[1].IsExpand)
	assert.True(t, tree.Items[2].IsExpand)
	assert.False(t, tree.Items[3].IsExpand)
}

func TestBuildTreeExpandUnknownNode(t *testing.T) {
	nodes := []model.WorkSpace{
		node(1, 0, 100, "A"),
	}

	tree, err := BuildTree(nodes, 42)
	require.NoError(t, err)
	assert.Empty(t, tree.ExpandPath)
}

func TestBuildTreeDetectsResidualCycle(t *testing.T) {
	// 两个节点互为父节点：没有任何根能到达它们
	nodes := []model.WorkSpace{
		node(1, 0, 100, "root"),
		node(2, 3, 100, "X"),
		node(3, 2, 100, "Y"),
	}

	_, err := BuildTree(nodes, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestBuildTreeEmptyInput(t *testing.T) {
	tree, err := BuildTree(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, tree.Roots)
	assert.Empty(t, tree.Items)
}
