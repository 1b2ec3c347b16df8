// Package kb defines the knowledge-base contract the assistant actions are
// written against, plus the postgres-backed and in-memory implementations.
package kb

import (
	"context"
	"errors"
)

// ErrNotFound marks a result-shape miss: zero rows where one was needed, or
// an ambiguous match. Transport failures are returned as ordinary errors.
var ErrNotFound = errors.New("knowledge base: not found")

// DefaultListLimit caps entity listings.
const DefaultListLimit = 5

// Canonical entity type names of the banking domain.
const (
	TypeTransaction = "transaction"
	TypeContract    = "contract"
	TypeAccount     = "account"
	TypeBank        = "bank"
	TypePerson      = "person"
	TypeCard        = "card"
)

// Lookup table names. The tables translate user vocabulary into canonical
// names and ordinal mentions into list indices.
const (
	TableEntityTypes = "entity-type-mapping"
	TableAttributes  = "attribute-mapping"
	TableMentions    = "mention-mapping"
)

// Relation role names.
const (
	RoleCreatorAccount  = "account-of-creator"
	RoleReceiverAccount = "account-of-receiver"
	RoleCustomer        = "customer"
	RoleOffer           = "offer"
	RoleProvider        = "provider"
	RoleBankAccount     = "bank-account"
	RoleBankCard        = "bank-card"
)

// Filter is an exact-match attribute constraint. A set of filters is
// conjunctive.
type Filter struct {
	Key   string
	Value string
}

// KnowledgeBase is the read-only query surface of the banking knowledge
// base. Every query of a scoped entity type is restricted to entities
// reachable from the configured principal; bank and person are unscoped.
type KnowledgeBase interface {
	// GetEntities lists entities of the given type that satisfy all
	// filters. Transactions ignore the limit; they are capped after the
	// creator-account post-filter.
	GetEntities(ctx context.Context, entityType string, filters []Filter, limit int) ([]Record, error)

	// GetAttributeOf returns the values of one attribute for the entity
	// identified by its key attribute. Zero values mean no valid answer;
	// more than one means the key was ambiguous.
	GetAttributeOf(ctx context.Context, entityType, keyAttribute, keyValue, attribute string) ([]interface{}, error)

	// ValidateEntity returns the single entity matching the key value and
	// all filters, or ErrNotFound on zero or multiple matches.
	ValidateEntity(ctx context.Context, entityType, keyValue, keyAttribute string, filters []Filter) (Record, error)

	// Lookup resolves a key through a lookup table. ErrNotFound on zero
	// or multiple rows.
	Lookup(ctx context.Context, table, key string) (string, error)
}

// scopedTypes marks the entity types whose queries carry the ownership
// restriction. Banks and people exist independently of the principal.
func isScoped(entityType string) bool {
	return entityType != TypeBank && entityType != TypePerson
}

// isRelation marks the entity types stored as relations between accounts
// and people rather than as plain entities.
func isRelation(entityType string) bool {
	return entityType == TypeTransaction || entityType == TypeContract
}

// FilterTransactionsByCreator keeps only the transactions created from the
// given account, then caps the result. With no account every transaction
// passes the filter, so only the cap applies.
func FilterTransactionsByCreator(records []Record, accountNumber string, limit int) []Record {
	if accountNumber == "" {
		if len(records) > limit {
			return records[:limit]
		}
		return records
	}

	var filtered []Record
	for _, rec := range records {
		v, err := rec.Resolve(RoleCreatorAccount + ".account-number")
		if err != nil {
			continue
		}
		if ValueString(v) == accountNumber {
			filtered = append(filtered, rec)
		}
	}

	if len(filtered) > limit {
		return filtered[:limit]
	}
	return filtered
}
