package models

import "sort"

type treeNode struct {
	category Category
	children []int64
}

// CategoryTree is a flat arena of categories keyed by id, with child-id
// lists instead of parent back-references. It is rebuilt from the entity
// store on each refresh cycle and never mutated afterwards.
type CategoryTree struct {
	nodes map[int64]*treeNode
	roots []int64
	order []int64
}

// NewCategoryTree assembles the arena from flat category rows. Rows
// whose parent id is unknown (or zero) become roots.
func NewCategoryTree(categories []Category) *CategoryTree {
	tree := &CategoryTree{nodes: make(map[int64]*treeNode, len(categories))}

	for _, category := range categories {
		tree.nodes[category.ID] = &treeNode{category: category}
		tree.order = append(tree.order, category.ID)
	}
	sort.Slice(tree.order, func(i, j int) bool { return tree.order[i] < tree.order[j] })

	for _, id := range tree.order {
		node := tree.nodes[id]
		parent, ok := tree.nodes[node.category.ParentID]
		if !ok || node.category.ParentID == id {
			tree.roots = append(tree.roots, id)
			continue
		}
		parent.children = append(parent.children, id)
	}

	return tree
}

// Category returns the category for the given id.
func (t *CategoryTree) Category(id int64) (Category, bool) {
	node, ok := t.nodes[id]
	if !ok {
		return Category{}, false
	}
	return node.category, true
}

// Contains reports whether the id exists in the tree.
func (t *CategoryTree) Contains(id int64) bool {
	_, ok := t.nodes[id]
	return ok
}

// Categories returns every category ordered by id ascending.
func (t *CategoryTree) Categories() []Category {
	out := make([]Category, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.nodes[id].category)
	}
	return out
}

// DescendantIDs returns all transitive children of the given category,
// sorted ascending. The category itself is not included. An unknown id
// yields an empty slice.
func (t *CategoryTree) DescendantIDs(id int64) []int64 {
	root, ok := t.nodes[id]
	if !ok {
		return nil
	}

	var out []int64
	seen := map[int64]struct{}{id: {}}
	queue := append([]int64(nil), root.children...)

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if _, dup := seen[next]; dup {
			continue
		}
		seen[next] = struct{}{}
		out = append(out, next)
		if node, ok := t.nodes[next]; ok {
			queue = append(queue, node.children...)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of categories in the tree.
func (t *CategoryTree) Len() int {
	return len(t.nodes)
}
