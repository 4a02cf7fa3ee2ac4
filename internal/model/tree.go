package model

// TaskNode is a task with its children resolved from parentId links.
type TaskNode struct {
	Task
	Children []*TaskNode `json:"subTasks"`
}

// BuildTaskTree arranges a flat task list into a forest. A task becomes a
// child of the task its ParentID names; tasks with no parent, a parent not
// in the list, or themselves as parent become roots. Tasks caught in a
// parent cycle are cut loose at the first cycle member in input order.
// Roots and children keep their input order.
func BuildTaskTree(tasks []*Task) []*TaskNode {
	nodes := make(map[string]*TaskNode, len(tasks))
	order := make([]*TaskNode, 0, len(tasks))
	for _, t := range tasks {
		if t == nil {
			continue
		}
		if _, dup := nodes[t.ID]; dup {
			continue
		}
		n := &TaskNode{Task: *t, Children: []*TaskNode{}}
		nodes[t.ID] = n
		order = append(order, n)
	}

	parents := make(map[string]*TaskNode, len(order))
	var roots []*TaskNode
	for _, n := range order {
		parent, ok := nodes[n.ParentID]
		if n.ParentID == "" || !ok || parent == n {
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
		parents[n.ID] = parent
	}

	visited := make(map[*TaskNode]bool, len(order))
	var mark func(*TaskNode)
	mark = func(n *TaskNode) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, c := range n.Children {
			mark(c)
		}
	}
	for _, r := range roots {
		mark(r)
	}

	for _, n := range order {
		if visited[n] {
			continue
		}
		if p := parents[n.ID]; p != nil {
			p.Children = removeNode(p.Children, n)
		}
		roots = append(roots, n)
		mark(n)
	}

	if roots == nil {
		roots = []*TaskNode{}
	}
	return roots
}

func removeNode(list []*TaskNode, target *TaskNode) []*TaskNode {
	out := list[:0]
	for _, n := range list {
		if n != target {
			out = append(out, n)
		}
	}
	return out
}

// Flatten walks a forest depth-first and returns the tasks in visit order.
func Flatten(roots []*TaskNode) []*Task {
	var out []*Task
	var walk func([]*TaskNode)
	walk = func(nodes []*TaskNode) {
		for _, n := range nodes {
			t := n.Task
			out = append(out, &t)
			walk(n.Children)
		}
	}
	walk(roots)
	return out
}
