package kb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"assistant-workers/internal/common/logger"
)

// GraphStore is the postgres-backed knowledge base. The graph lives in five
// tables: entities(id, entity_type), entity_attributes(entity_id, name,
// value), relations(id, relation_type), relation_attributes(relation_id,
// name, value), relation_roles(relation_id, role, entity_id), plus
// lookup_tables(table_name, mapping_key, mapping_value).
//
// Accounts and transactions are read through their relations so the result
// records carry the related participants as sub-records. Every query of a
// scoped type is restricted to what the principal owns through a contract.
type GraphStore struct {
	db        *sql.DB
	principal string
	logger    logger.Logger
}

// NewGraphStore creates a store scoped to the given principal (customer
// email).
func NewGraphStore(db *sql.DB, principal string, log logger.Logger) *GraphStore {
	return &GraphStore{
		db:        db,
		principal: principal,
		logger:    log.WithFields(map[string]interface{}{"component": "graph-store"}),
	}
}

// queryBuilder accumulates SQL text and positional args together so clauses
// can be appended in any order.
type queryBuilder struct {
	sql  strings.Builder
	args []interface{}
}

func (b *queryBuilder) write(s string) {
	b.sql.WriteString(s)
}

func (b *queryBuilder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// ownedAccounts appends the subquery selecting the ids of the accounts the
// principal holds a contract for.
func (b *queryBuilder) ownedAccounts(principal string) {
	b.write("SELECT ro.entity_id FROM relations c")
	b.write(" JOIN relation_roles rc ON rc.relation_id = c.id AND rc.role = 'customer'")
	b.write(" JOIN entity_attributes pe ON pe.entity_id = rc.entity_id AND pe.name = 'email' AND pe.value = " + b.arg(principal))
	b.write(" JOIN relation_roles ro ON ro.relation_id = c.id AND ro.role = 'offer'")
	b.write(" WHERE c.relation_type = 'contract'")
}

func (s *GraphStore) GetEntities(ctx context.Context, entityType string, filters []Filter, limit int) ([]Record, error) {
	switch entityType {
	case TypeTransaction:
		return s.transactionEntities(ctx, filters)
	case TypeAccount:
		return s.accountEntities(ctx, filters, limit)
	case TypeContract:
		return s.contractEntities(ctx, filters, limit)
	case TypeCard:
		return s.entityRecords(ctx, entityType, filters, limit, true)
	default:
		return s.entityRecords(ctx, entityType, filters, limit, false)
	}
}

// entityRecords runs the plain entity query. With scoped set, the entities
// are restricted to cards represented by an owned account.
func (s *GraphStore) entityRecords(ctx context.Context, entityType string, filters []Filter, limit int, scoped bool) ([]Record, error) {
	b := &queryBuilder{}
	b.write("SELECT e.id FROM entities e WHERE e.entity_type = " + b.arg(entityType))

	for _, f := range filters {
		b.write(" AND EXISTS (SELECT 1 FROM entity_attributes f WHERE f.entity_id = e.id")
		b.write(" AND f.name = " + b.arg(f.Key) + " AND f.value = " + b.arg(f.Value) + ")")
	}

	if scoped {
		b.write(" AND e.id IN (")
		b.write("SELECT rcard.entity_id FROM relations rb")
		b.write(" JOIN relation_roles rcard ON rcard.relation_id = rb.id AND rcard.role = 'bank-card'")
		b.write(" JOIN relation_roles racc ON racc.relation_id = rb.id AND racc.role = 'bank-account'")
		b.write(" WHERE rb.relation_type = 'represented-by' AND racc.entity_id IN (")
		b.ownedAccounts(s.principal)
		b.write("))")
	}

	b.write(" ORDER BY e.id")
	if limit > 0 {
		b.write(" LIMIT " + b.arg(limit))
	}

	ids, err := s.selectIDs(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list %s entities: %w", entityType, err)
	}
	records, err := s.loadEntityRecords(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load %s entities: %w", entityType, err)
	}
	return records, nil
}

// accountEntities reads accounts through their contracts. The account
// (offer) attributes are flattened into the top level; the provider bank
// and the customer stay as sub-records.
func (s *GraphStore) accountEntities(ctx context.Context, filters []Filter, limit int) ([]Record, error) {
	b := &queryBuilder{}
	b.write("SELECT c.id FROM relations c")
	b.write(" JOIN relation_roles rc ON rc.relation_id = c.id AND rc.role = 'customer'")
	b.write(" JOIN entity_attributes pe ON pe.entity_id = rc.entity_id AND pe.name = 'email' AND pe.value = " + b.arg(s.principal))
	b.write(" JOIN relation_roles ro ON ro.relation_id = c.id AND ro.role = 'offer'")
	b.write(" WHERE c.relation_type = 'contract'")

	for _, f := range filters {
		b.write(" AND EXISTS (SELECT 1 FROM entity_attributes f WHERE f.entity_id = ro.entity_id")
		b.write(" AND f.name = " + b.arg(f.Key) + " AND f.value = " + b.arg(f.Value) + ")")
	}

	b.write(" ORDER BY c.id")
	if limit > 0 {
		b.write(" LIMIT " + b.arg(limit))
	}

	ids, err := s.selectIDs(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list account entities: %w", err)
	}
	records, err := s.loadRelationRecords(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load account entities: %w", err)
	}

	for i, rec := range records {
		offer, ok := rec[RoleOffer].(Record)
		if !ok {
			continue
		}
		flat := make(Record, len(rec)+len(offer))
		for k, v := range rec {
			if k == RoleOffer {
				continue
			}
			flat[k] = v
		}
		for k, v := range offer {
			flat[k] = v
		}
		records[i] = flat
	}
	return records, nil
}

// contractEntities lists the principal's contracts with their participants.
func (s *GraphStore) contractEntities(ctx context.Context, filters []Filter, limit int) ([]Record, error) {
	b := &queryBuilder{}
	b.write("SELECT c.id FROM relations c")
	b.write(" JOIN relation_roles rc ON rc.relation_id = c.id AND rc.role = 'customer'")
	b.write(" JOIN entity_attributes pe ON pe.entity_id = rc.entity_id AND pe.name = 'email' AND pe.value = " + b.arg(s.principal))
	b.write(" WHERE c.relation_type = 'contract'")

	for _, f := range filters {
		b.write(" AND EXISTS (SELECT 1 FROM relation_attributes f WHERE f.relation_id = c.id")
		b.write(" AND f.name = " + b.arg(f.Key) + " AND f.value = " + b.arg(f.Value) + ")")
	}

	b.write(" ORDER BY c.id")
	if limit > 0 {
		b.write(" LIMIT " + b.arg(limit))
	}

	ids, err := s.selectIDs(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list contract entities: %w", err)
	}
	records, err := s.loadRelationRecords(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load contract entities: %w", err)
	}
	return records, nil
}

// transactionEntities lists transactions created from the principal's
// accounts. No limit here: the creator post-filter caps the result.
func (s *GraphStore) transactionEntities(ctx context.Context, filters []Filter) ([]Record, error) {
	b := &queryBuilder{}
	b.write("SELECT t.id FROM relations t")
	b.write(" JOIN relation_roles rcr ON rcr.relation_id = t.id AND rcr.role = 'account-of-creator'")
	b.write(" WHERE t.relation_type = 'transaction'")
	b.write(" AND rcr.entity_id IN (")
	b.ownedAccounts(s.principal)
	b.write(")")

	for _, f := range filters {
		b.write(" AND EXISTS (SELECT 1 FROM relation_attributes f WHERE f.relation_id = t.id")
		b.write(" AND f.name = " + b.arg(f.Key) + " AND f.value = " + b.arg(f.Value) + ")")
	}

	b.write(" ORDER BY t.id")

	ids, err := s.selectIDs(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("list transaction entities: %w", err)
	}
	records, err := s.loadRelationRecords(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load transaction entities: %w", err)
	}
	return records, nil
}

func (s *GraphStore) GetAttributeOf(ctx context.Context, entityType, keyAttribute, keyValue, attribute string) ([]interface{}, error) {
	b := &queryBuilder{}

	if isRelation(entityType) {
		b.write("SELECT a.value FROM relations r")
		b.write(" JOIN relation_attributes k ON k.relation_id = r.id AND k.name = " + b.arg(keyAttribute) + " AND k.value = " + b.arg(keyValue))
		b.write(" JOIN relation_attributes a ON a.relation_id = r.id AND a.name = " + b.arg(attribute))
		b.write(" WHERE r.relation_type = " + b.arg(entityType))

		switch entityType {
		case TypeTransaction:
			b.write(" AND EXISTS (SELECT 1 FROM relation_roles rcr WHERE rcr.relation_id = r.id")
			b.write(" AND rcr.role = 'account-of-creator' AND rcr.entity_id IN (")
			b.ownedAccounts(s.principal)
			b.write("))")
		case TypeContract:
			b.write(" AND EXISTS (SELECT 1 FROM relation_roles rc")
			b.write(" JOIN entity_attributes pe ON pe.entity_id = rc.entity_id AND pe.name = 'email' AND pe.value = " + b.arg(s.principal))
			b.write(" WHERE rc.relation_id = r.id AND rc.role = 'customer')")
		}
	} else {
		b.write("SELECT a.value FROM entities e")
		b.write(" JOIN entity_attributes k ON k.entity_id = e.id AND k.name = " + b.arg(keyAttribute) + " AND k.value = " + b.arg(keyValue))
		b.write(" JOIN entity_attributes a ON a.entity_id = e.id AND a.name = " + b.arg(attribute))
		b.write(" WHERE e.entity_type = " + b.arg(entityType))

		switch entityType {
		case TypeAccount:
			b.write(" AND e.id IN (")
			b.ownedAccounts(s.principal)
			b.write(")")
		case TypeCard:
			b.write(" AND e.id IN (")
			b.write("SELECT rcard.entity_id FROM relations rb")
			b.write(" JOIN relation_roles rcard ON rcard.relation_id = rb.id AND rcard.role = 'bank-card'")
			b.write(" JOIN relation_roles racc ON racc.relation_id = rb.id AND racc.role = 'bank-account'")
			b.write(" WHERE rb.relation_type = 'represented-by' AND racc.entity_id IN (")
			b.ownedAccounts(s.principal)
			b.write("))")
		}
	}

	query := b.sql.String()
	s.logger.Debug("executing query", map[string]interface{}{"sql": query})

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("attribute %s of %s: %w", attribute, entityType, err)
	}
	defer rows.Close()

	var values []interface{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, fmt.Errorf("scan attribute value: %w", err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read attribute values: %w", err)
	}
	return values, nil
}

func (s *GraphStore) ValidateEntity(ctx context.Context, entityType, keyValue, keyAttribute string, filters []Filter) (Record, error) {
	all := make([]Filter, 0, len(filters)+1)
	all = append(all, filters...)
	all = append(all, Filter{Key: keyAttribute, Value: keyValue})

	// Two rows are enough to tell unique from ambiguous.
	records, err := s.GetEntities(ctx, entityType, all, 2)
	if err != nil {
		return nil, err
	}
	if len(records) != 1 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

func (s *GraphStore) Lookup(ctx context.Context, table, key string) (string, error) {
	query := "SELECT mapping_value FROM lookup_tables WHERE table_name = $1 AND mapping_key = $2"
	s.logger.Debug("executing query", map[string]interface{}{"sql": query, "key": key})

	rows, err := s.db.QueryContext(ctx, query, table, key)
	if err != nil {
		return "", fmt.Errorf("lookup %s[%s]: %w", table, key, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return "", fmt.Errorf("scan lookup value: %w", err)
		}
		values = append(values, value)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("read lookup values: %w", err)
	}

	if len(values) != 1 {
		return "", ErrNotFound
	}
	return values[0], nil
}

// selectIDs runs an id-selecting query built so far.
func (s *GraphStore) selectIDs(ctx context.Context, b *queryBuilder) ([]int64, error) {
	query := b.sql.String()
	s.logger.Debug("executing query", map[string]interface{}{"sql": query})

	rows, err := s.db.QueryContext(ctx, query, b.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// loadEntityRecords hydrates entity ids into records, preserving id order.
func (s *GraphStore) loadEntityRecords(ctx context.Context, ids []int64) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT a.entity_id, a.name, a.value FROM entity_attributes a WHERE a.entity_id = ANY($1) ORDER BY a.entity_id",
		pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]Record, len(ids))
	for rows.Next() {
		var id int64
		var name, value string
		if err := rows.Scan(&id, &name, &value); err != nil {
			return nil, err
		}
		if byID[id] == nil {
			byID[id] = Record{}
		}
		byID[id][name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// loadRelationRecords hydrates relation ids into records: the relation's
// own attributes on top, one sub-record per role participant.
func (s *GraphStore) loadRelationRecords(ctx context.Context, ids []int64) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	byID := make(map[int64]Record, len(ids))
	for _, id := range ids {
		byID[id] = Record{}
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT ra.relation_id, ra.name, ra.value FROM relation_attributes ra WHERE ra.relation_id = ANY($1) ORDER BY ra.relation_id",
		pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id int64
		var name, value string
		if err := rows.Scan(&id, &name, &value); err != nil {
			rows.Close()
			return nil, err
		}
		byID[id][name] = value
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	roleRows, err := s.db.QueryContext(ctx,
		"SELECT rr.relation_id, rr.role, a.name, a.value FROM relation_roles rr"+
			" JOIN entity_attributes a ON a.entity_id = rr.entity_id"+
			" WHERE rr.relation_id = ANY($1) ORDER BY rr.relation_id, rr.role",
		pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer roleRows.Close()

	for roleRows.Next() {
		var id int64
		var role, name, value string
		if err := roleRows.Scan(&id, &role, &name, &value); err != nil {
			return nil, err
		}
		sub, ok := byID[id][role].(Record)
		if !ok {
			sub = Record{}
			byID[id][role] = sub
		}
		sub[name] = value
	}
	if err := roleRows.Err(); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		records = append(records, byID[id])
	}
	return records, nil
}
