// Package service 包含了应用的业务逻辑层。
package service

import (
	"fmt"
	"sort"

	"kb-space-go/internal/model"
)

// BuildTree 把平铺的节点集合组装成森林视图。
// 声明的父节点不在集合内的节点（孤儿）被提升为根；子节点按 rank 排序，rank 相同时按 id 兜底，
// 保证结果稳定且确定。expandID 非零时，额外计算从根到该节点的展开路径并标记沿途节点。
//
// 输入可能来自已经损坏的数据（父引用成环），组装过程完全迭代，
// 并在挂载结束后校验所有节点都可以从根到达，发现残留环时返回 ErrIntegrity。
func BuildTree(nodes []model.WorkSpace, expandID uint) (*model.WorkSpaceTree, error) {
	tree := &model.WorkSpaceTree{
		Roots:      []uint{},
		Items:      make(map[uint]*model.WorkSpaceTreeNode, len(nodes)),
		ExpandPath: []uint{},
	}

	// 第一遍：建立 id -> 节点的索引（arena）
	rank := make(map[uint]int, len(nodes))
	parent := make(map[uint]uint, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		tree.Items[n.ID] = &model.WorkSpaceTreeNode{
			ID:       n.ID,
			ParentID: n.ParentID,
			Name:     n.Name,
			Type:     n.Type,
			Children: []uint{},
		}
		rank[n.ID] = n.Rank
		parent[n.ID] = n.ParentID
	}

	// 第二遍：把子节点挂到父节点下；父节点缺失的按根处理
	for id, pid := range parent {
		if pid == 0 {
			tree.Roots = append(tree.Roots, id)
			continue
		}
		if p, ok := tree.Items[pid]; ok {
			p.Children = append(p.Children, id)
		} else {
			// 孤儿节点：声明的父节点不在集合里，提升为根
			tree.Roots = append(tree.Roots, id)
		}
	}

	// 排序保证确定性输出
	byRank := func(ids []uint) {
		sort.Slice(ids, func(i, j int) bool {
			if rank[ids[i]] != rank[ids[j]] {
				return rank[ids[i]] < rank[ids[j]]
			}
			return ids[i] < ids[j]
		})
	}
	byRank(tree.Roots)
	for _, item := range tree.Items {
		item.HasChildren = len(item.Children) > 0
		byRank(item.Children)
	}

	// 防御性检查：从根出发应当能到达每一个节点，到不了说明父引用成环
	reached := 0
	frontier := append([]uint{}, tree.Roots...)
	for len(frontier) > 0 {
		id := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		reached++
		frontier = append(frontier, tree.Items[id].Children...)
	}
	if reached != len(tree.Items) {
		return nil, fmt.Errorf("%w: %d 个节点无法从根到达", ErrIntegrity, len(tree.Items)-reached)
	}

	if expandID != 0 {
		path, err := expandPath(parent, expandID)
		if err != nil {
			return nil, err
		}
		tree.ExpandPath = path
		for _, id := range path {
			tree.Items[id].IsExpand = true
		}
	}
	return tree, nil
}

// expandPath 沿父引用从目标节点向上走到根，返回根在前的祖先 id 序列（不含目标自身）。
// 目标不在集合内时返回空路径。
func expandPath(parent map[uint]uint, expandID uint) ([]uint, error) {
	if _, ok := parent[expandID]; !ok {
		return []uint{}, nil
	}

	var reversed []uint
	visited := map[uint]bool{expandID: true}
	for cur := parent[expandID]; cur != 0; cur = parent[cur] {
		if _, ok := parent[cur]; !ok {
			// 孤儿祖先，路径到此为止
			break
		}
		if visited[cur] {
			return nil, fmt.Errorf("%w: 节点 %d 的祖先链成环", ErrIntegrity, expandID)
		}
		visited[cur] = true
		reversed = append(reversed, cur)
	}

	path := make([]uint, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path, nil
}
