package removal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
)

// PlanItem is a single node selected for removal. Path holds the node ids from
// the category root down to the node, inclusive.
type PlanItem struct {
	Category string
	Path     []string
	Node     *Node
}

// ID returns the dotted identity of the item, e.g. "services.pi_hole".
func (item PlanItem) ID() string {
	return strings.Join(item.Path, ".")
}

// Planner resolves the cascading enable flags of a removal document into an
// execution closure.
type Planner struct {
	doc *Document
}

// NewPlanner returns a planner over the given document.
func NewPlanner(doc *Document) *Planner {
	return &Planner{doc: doc}
}

// IsEnabled returns the node's own enabled flag, ignoring ancestors.
func (planner *Planner) IsEnabled(path ...string) (bool, error) {
	node, err := planner.node(path)
	if err != nil {
		return false, err
	}

	return node.Enabled, nil
}

// Effective reports whether the node at the given path is effectively enabled:
// its own flag is set, or the flag of any strict ancestor is. Enabling an
// ancestor cascades down; disabling one does not force-disable children that
// were independently enabled.
func (planner *Planner) Effective(path ...string) (bool, error) {
	if len(path) == 0 {
		return false, errors.Errorf("empty node path")
	}

	node := planner.doc.Category(path[0])
	if node == nil {
		return false, errors.New(NoSuchNodeError{Path: path[:1]})
	}

	effective := node.Enabled

	for i, id := range path[1:] {
		child, ok := node.Children[id]
		if !ok {
			return false, errors.New(NoSuchNodeError{Path: path[:i+2]})
		}

		node = child
		effective = effective || node.Enabled
	}

	return effective, nil
}

// HasAnyEnabled reports whether at least one node anywhere in the document is
// effectively enabled. Used to short-circuit a no-op invocation before
// prompting for destructive confirmation.
func (planner *Planner) HasAnyEnabled() bool {
	for _, name := range CategoryOrder {
		if anyEnabled(planner.doc.Category(name)) {
			return true
		}
	}

	return false
}

// Plan produces the removal closure: every effectively enabled leaf, grouped in
// the fixed category order. Within a category children are visited in sorted id
// order so the plan is deterministic.
func (planner *Planner) Plan() []PlanItem {
	var plan []PlanItem

	for _, name := range CategoryOrder {
		node := planner.doc.Category(name)
		if node == nil {
			continue
		}

		plan = append(plan, collectLeaves(name, []string{name}, node, false)...)
	}

	return plan
}

func collectLeaves(category string, path []string, node *Node, inherited bool) []PlanItem {
	effective := inherited || node.Enabled

	if len(node.Children) == 0 {
		if !effective {
			return nil
		}

		item := PlanItem{Category: category, Node: node}
		item.Path = append(item.Path, path...)

		return []PlanItem{item}
	}

	ids := make([]string, 0, len(node.Children))
	for id := range node.Children {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	var items []PlanItem

	for _, id := range ids {
		childPath := append(append([]string{}, path...), id)
		items = append(items, collectLeaves(category, childPath, node.Children[id], effective)...)
	}

	return items
}

func anyEnabled(node *Node) bool {
	if node == nil {
		return false
	}

	if node.Enabled {
		return true
	}

	for _, child := range node.Children {
		if anyEnabled(child) {
			return true
		}
	}

	return false
}

func (planner *Planner) node(path []string) (*Node, error) {
	if len(path) == 0 {
		return nil, errors.Errorf("empty node path")
	}

	node := planner.doc.Category(path[0])
	if node == nil {
		return nil, errors.New(NoSuchNodeError{Path: path[:1]})
	}

	for i, id := range path[1:] {
		child, ok := node.Children[id]
		if !ok {
			return nil, errors.New(NoSuchNodeError{Path: path[:i+2]})
		}

		node = child
	}

	return node, nil
}

// NoSuchNodeError is returned when a queried path does not exist in the document.
type NoSuchNodeError struct {
	Path []string
}

func (err NoSuchNodeError) Error() string {
	return fmt.Sprintf("removal document has no node %s", strings.Join(err.Path, "."))
}
