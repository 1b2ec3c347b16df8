package kb

import (
	"context"
	"sync"
)

// MemoryGraph is an in-process KnowledgeBase over seeded records. It applies
// the same ownership scoping as the postgres store, so handler tests and
// offline demos run against identical semantics.
type MemoryGraph struct {
	mu        sync.RWMutex
	principal string
	entities  map[string][]Record
	relations map[string][]Record
	lookups   map[string]map[string][]string
}

// NewMemoryGraph creates an empty graph scoped to the given principal.
func NewMemoryGraph(principal string) *MemoryGraph {
	return &MemoryGraph{
		principal: principal,
		entities:  make(map[string][]Record),
		relations: make(map[string][]Record),
		lookups:   make(map[string]map[string][]string),
	}
}

// AddEntity registers a plain entity record.
func (g *MemoryGraph) AddEntity(entityType string, rec Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entities[entityType] = append(g.entities[entityType], rec)
}

// AddRelation registers a relation record. Role participants are nested
// Records keyed by role name.
func (g *MemoryGraph) AddRelation(relationType string, rec Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.relations[relationType] = append(g.relations[relationType], rec)
}

// AddLookup registers one lookup-table row. Registering the same key twice
// makes it ambiguous, which Lookup reports as not found.
func (g *MemoryGraph) AddLookup(table, key, value string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.lookups[table] == nil {
		g.lookups[table] = make(map[string][]string)
	}
	g.lookups[table][key] = append(g.lookups[table][key], value)
}

// ownedAccountNumbers collects the account numbers reachable from the
// principal through a contract. Callers hold at least the read lock.
func (g *MemoryGraph) ownedAccountNumbers() map[string]bool {
	owned := make(map[string]bool)
	for _, contract := range g.relations[TypeContract] {
		customer, ok := contract[RoleCustomer].(Record)
		if !ok || ValueString(customer["email"]) != g.principal {
			continue
		}
		offer, ok := contract[RoleOffer].(Record)
		if !ok {
			continue
		}
		owned[ValueString(offer["account-number"])] = true
	}
	return owned
}

// candidates returns the scoped record set of an entity type, with account
// records flattened the way the relation query shapes them. Callers hold at
// least the read lock.
func (g *MemoryGraph) candidates(entityType string) []Record {
	switch entityType {
	case TypeTransaction:
		owned := g.ownedAccountNumbers()
		var out []Record
		for _, rec := range g.relations[TypeTransaction] {
			creator, ok := rec[RoleCreatorAccount].(Record)
			if !ok || !owned[ValueString(creator["account-number"])] {
				continue
			}
			out = append(out, rec)
		}
		return out

	case TypeAccount:
		var out []Record
		for _, contract := range g.relations[TypeContract] {
			customer, ok := contract[RoleCustomer].(Record)
			if !ok || ValueString(customer["email"]) != g.principal {
				continue
			}
			offer, ok := contract[RoleOffer].(Record)
			if !ok {
				continue
			}

			// The account record carries the contract context: offer
			// attributes on top, provider and customer as sub-records.
			flat := make(Record, len(contract)+len(offer))
			for k, v := range contract {
				if k == RoleOffer {
					continue
				}
				flat[k] = v
			}
			for k, v := range offer {
				flat[k] = v
			}
			out = append(out, flat)
		}
		return out

	case TypeContract:
		var out []Record
		for _, contract := range g.relations[TypeContract] {
			customer, ok := contract[RoleCustomer].(Record)
			if !ok || ValueString(customer["email"]) != g.principal {
				continue
			}
			out = append(out, contract)
		}
		return out

	case TypeCard:
		owned := g.ownedAccountNumbers()
		var out []Record
		for _, link := range g.relations["represented-by"] {
			account, ok := link[RoleBankAccount].(Record)
			if !ok || !owned[ValueString(account["account-number"])] {
				continue
			}
			if card, ok := link[RoleBankCard].(Record); ok {
				out = append(out, card)
			}
		}
		return out

	default:
		return g.entities[entityType]
	}
}

func (g *MemoryGraph) GetEntities(ctx context.Context, entityType string, filters []Filter, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Record
	for _, rec := range g.candidates(entityType) {
		if rec.matches(filters) {
			out = append(out, rec)
		}
	}

	// Transactions stay uncapped; the creator post-filter caps them.
	if entityType != TypeTransaction && limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (g *MemoryGraph) GetAttributeOf(ctx context.Context, entityType, keyAttribute, keyValue, attribute string) ([]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var values []interface{}
	for _, rec := range g.candidates(entityType) {
		if ValueString(rec[keyAttribute]) != keyValue {
			continue
		}
		if v, ok := rec[attribute]; ok {
			values = append(values, v)
		}
	}
	return values, nil
}

func (g *MemoryGraph) ValidateEntity(ctx context.Context, entityType, keyValue, keyAttribute string, filters []Filter) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	var matches []Record
	for _, rec := range g.candidates(entityType) {
		if ValueString(rec[keyAttribute]) != keyValue {
			continue
		}
		if rec.matches(filters) {
			matches = append(matches, rec)
		}
	}

	if len(matches) != 1 {
		return nil, ErrNotFound
	}
	return matches[0], nil
}

func (g *MemoryGraph) Lookup(ctx context.Context, table, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	values := g.lookups[table][key]
	if len(values) != 1 {
		return "", ErrNotFound
	}
	return values[0], nil
}
