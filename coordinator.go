package gridsync

import "sync"

// EditResult is the authoritative outcome of one applied edit.
type EditResult struct {
	Cell       Cell   // cell after the edit
	Previous   Value  // value before the edit
	Recomputed []Cell // formula cells recomputed because of the edit
}

// EditCoordinator applies user edits to a SheetRegistry.
//
// Conflicts resolve as last-write-wins: edits are never compared against the
// version a client last saw, so whichever edit reaches the registry last
// defines the cell. The coordinator remembers the last version it handed out
// per cell; nothing reads that yet.
type EditCoordinator struct {
	store *SheetRegistry

	mu   sync.Mutex
	seen map[string]map[string]int // sheet id → cell ref → version
}

// NewEditCoordinator creates a coordinator writing to store.
func NewEditCoordinator(store *SheetRegistry) *EditCoordinator {
	return &EditCoordinator{
		store: store,
		seen:  make(map[string]map[string]int),
	}
}

// ApplyEdit writes value, or the result of formula when non-empty, to ref
// on behalf of userID.
func (c *EditCoordinator) ApplyEdit(sheetID, ref string, value Value, formula, userID string) (EditResult, error) {
	res, err := c.store.write(sheetID, ref, value, formula)
	if err != nil {
		return EditResult{}, err
	}

	c.mu.Lock()
	versions, ok := c.seen[sheetID]
	if !ok {
		versions = make(map[string]int)
		c.seen[sheetID] = versions
	}
	if res.Cell.Version > versions[ref] {
		versions[ref] = res.Cell.Version
	}
	c.mu.Unlock()

	return EditResult{Cell: res.Cell, Previous: res.Previous.Value, Recomputed: res.Recomputed}, nil
}

// LastSeenVersion returns the highest version the coordinator produced for ref.
func (c *EditCoordinator) LastSeenVersion(sheetID, ref string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen[sheetID][ref]
}
