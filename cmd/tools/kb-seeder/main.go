// cmd/tools/kb-seeder/main.go
//
// kb-seeder creates the knowledge-base tables and loads the demo banking
// world into PostgreSQL: a handful of banks, two customers, accounts and
// transactions connected through contracts, one card, and the three lookup
// tables. The dataset mirrors the in-memory demo graph, so a worker manager
// pointed at a seeded database answers the same questions as the offline
// fixture.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"assistant-workers/internal/common/config"
	"assistant-workers/internal/common/database"
	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/kb"
)

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		id BIGSERIAL PRIMARY KEY,
		entity_type VARCHAR(100) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entity_attributes (
		entity_id BIGINT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		name VARCHAR(100) NOT NULL,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS relations (
		id BIGSERIAL PRIMARY KEY,
		relation_type VARCHAR(100) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS relation_attributes (
		relation_id BIGINT NOT NULL REFERENCES relations(id) ON DELETE CASCADE,
		name VARCHAR(100) NOT NULL,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS relation_roles (
		relation_id BIGINT NOT NULL REFERENCES relations(id) ON DELETE CASCADE,
		role VARCHAR(100) NOT NULL,
		entity_id BIGINT NOT NULL REFERENCES entities(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS lookup_tables (
		table_name VARCHAR(100) NOT NULL,
		mapping_key VARCHAR(255) NOT NULL,
		mapping_value VARCHAR(255) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_entity_attributes_entity ON entity_attributes(entity_id)`,
	`CREATE INDEX IF NOT EXISTS idx_entity_attributes_name_value ON entity_attributes(name, value)`,
	`CREATE INDEX IF NOT EXISTS idx_relation_attributes_relation ON relation_attributes(relation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_relation_roles_relation ON relation_roles(relation_id)`,
	`CREATE INDEX IF NOT EXISTS idx_lookup_tables_key ON lookup_tables(table_name, mapping_key)`,
}

var truncate = []string{
	"TRUNCATE relation_roles, relation_attributes, relations, entity_attributes, entities, lookup_tables RESTART IDENTITY",
}

func main() {
	reset := flag.Bool("reset", false, "truncate existing knowledge-base tables before seeding")
	schemaOnly := flag.Bool("schema-only", false, "create tables without inserting demo data")
	flag.Parse()

	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pg.Close()

	ctx := context.Background()
	if err := pg.Ping(ctx); err != nil {
		zapLog.Fatal("postgres ping failed", zap.Error(err))
	}

	for _, stmt := range ddl {
		if _, err := pg.DB.ExecContext(ctx, stmt); err != nil {
			zapLog.Fatal("create table failed", zap.Error(err))
		}
	}
	zapLog.Info("knowledge-base tables ready")

	if *schemaOnly {
		return
	}

	if *reset {
		for _, stmt := range truncate {
			if _, err := pg.DB.ExecContext(ctx, stmt); err != nil {
				zapLog.Fatal("truncate failed", zap.Error(err))
			}
		}
		zapLog.Info("existing data truncated")
	}

	if err := seed(ctx, pg.DB); err != nil {
		zapLog.Fatal("seeding failed", zap.Error(err))
	}
	zapLog.Info("demo data seeded", zap.String("principal", kb.DemoPrincipal))
	fmt.Fprintf(os.Stdout, "seeded demo knowledge base for %s\n", kb.DemoPrincipal)
}

func seed(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	s := seeder{ctx: ctx, tx: tx}

	banks := []map[string]string{
		{"name": "N26", "headquarters": "Berlin", "country": "Germany", "free-accounts": "true"},
		{"name": "bunq", "headquarters": "Amsterdam", "country": "Netherlands", "free-accounts": "false"},
		{"name": "Deutsche Bank", "headquarters": "Frankfurt am Main", "country": "Germany", "free-accounts": "false"},
		{"name": "Commerzbank", "headquarters": "Frankfurt am Main", "country": "Germany", "free-accounts": "true"},
		{"name": "Targobank", "headquarters": "Düsseldorf", "country": "Germany", "free-accounts": "true"},
		{"name": "DKB", "headquarters": "Berlin", "country": "Germany", "free-accounts": "true"},
		{"name": "Comdirect", "headquarters": "Quickborn", "country": "Germany", "free-accounts": "true"},
	}
	bankIDs := make([]int64, len(banks))
	for i, attrs := range banks {
		if bankIDs[i], err = s.entity(kb.TypeBank, attrs); err != nil {
			return err
		}
	}

	mitchell, err := s.entity(kb.TypePerson, map[string]string{
		"email":      kb.DemoPrincipal,
		"first-name": "Mitchell",
		"last-name":  "Gillis",
		"gender":     "male",
		"city":       "Berlin",
	})
	if err != nil {
		return err
	}
	evelyn, err := s.entity(kb.TypePerson, map[string]string{
		"email":      "evelyn.burton@gmx.de",
		"first-name": "Evelyn",
		"last-name":  "Burton",
		"gender":     "female",
		"city":       "Hamburg",
	})
	if err != nil {
		return err
	}

	checking, err := s.entity(kb.TypeAccount, map[string]string{
		"account-number": "DE1001",
		"balance":        "1200.5",
		"account-type":   "checking",
		"opening-date":   "2018-04-12 09:30:00",
	})
	if err != nil {
		return err
	}
	savings, err := s.entity(kb.TypeAccount, map[string]string{
		"account-number": "DE1002",
		"balance":        "5400",
		"account-type":   "savings",
		"opening-date":   "2019-11-02 14:00:00",
	})
	if err != nil {
		return err
	}
	foreign, err := s.entity(kb.TypeAccount, map[string]string{
		"account-number": "DE2001",
		"balance":        "830.75",
		"account-type":   "checking",
		"opening-date":   "2017-06-20 11:15:00",
	})
	if err != nil {
		return err
	}

	contracts := []struct {
		attrs map[string]string
		roles map[string]int64
	}{
		{
			attrs: map[string]string{"identifier": "C-1001", "sign-date": "2018-04-12 09:00:00"},
			roles: map[string]int64{kb.RoleCustomer: mitchell, kb.RoleOffer: checking, kb.RoleProvider: bankIDs[0]},
		},
		{
			attrs: map[string]string{"identifier": "C-1002", "sign-date": "2019-11-02 13:30:00"},
			roles: map[string]int64{kb.RoleCustomer: mitchell, kb.RoleOffer: savings, kb.RoleProvider: bankIDs[5]},
		},
		{
			attrs: map[string]string{"identifier": "C-2001", "sign-date": "2017-06-20 11:00:00"},
			roles: map[string]int64{kb.RoleCustomer: evelyn, kb.RoleOffer: foreign, kb.RoleProvider: bankIDs[1]},
		},
	}
	for _, c := range contracts {
		if _, err := s.relation(kb.TypeContract, c.attrs, c.roles); err != nil {
			return err
		}
	}

	transactions := []struct {
		attrs map[string]string
		roles map[string]int64
	}{
		{
			attrs: map[string]string{
				"identifier": "T-9001", "amount": "40", "reference": "groceries",
				"category": "food", "execution-date": "2020-03-01 14:05:00",
			},
			roles: map[string]int64{kb.RoleCreatorAccount: checking, kb.RoleReceiverAccount: foreign},
		},
		{
			attrs: map[string]string{
				"identifier": "T-9002", "amount": "899.99", "reference": "rent march",
				"category": "home", "execution-date": "2020-03-02 08:00:00",
			},
			roles: map[string]int64{kb.RoleCreatorAccount: checking, kb.RoleReceiverAccount: foreign},
		},
		{
			attrs: map[string]string{
				"identifier": "T-9003", "amount": "250", "reference": "savings transfer",
				"category": "transfer", "execution-date": "2020-03-05 18:45:00",
			},
			roles: map[string]int64{kb.RoleCreatorAccount: savings, kb.RoleReceiverAccount: checking},
		},
	}
	for _, t := range transactions {
		if _, err := s.relation(kb.TypeTransaction, t.attrs, t.roles); err != nil {
			return err
		}
	}

	card, err := s.entity(kb.TypeCard, map[string]string{
		"card-number":  "4401-22",
		"name-on-card": "M GILLIS",
		"expiry-date":  "2024-08-31",
		"created-date": "2018-04-15",
	})
	if err != nil {
		return err
	}
	if _, err := s.relation("represented-by", nil, map[string]int64{
		kb.RoleBankAccount: checking,
		kb.RoleBankCard:    card,
	}); err != nil {
		return err
	}

	lookups := map[string]map[string]string{
		kb.TableEntityTypes: {
			"bank": kb.TypeBank, "banks": kb.TypeBank,
			"account": kb.TypeAccount, "accounts": kb.TypeAccount,
			"transaction": kb.TypeTransaction, "transactions": kb.TypeTransaction,
			"payments": kb.TypeTransaction,
			"card":     kb.TypeCard, "cards": kb.TypeCard,
			"credit cards": kb.TypeCard,
			"person":       kb.TypePerson, "people": kb.TypePerson,
			"contract": kb.TypeContract, "contracts": kb.TypeContract,
		},
		kb.TableAttributes: {
			"headquarters": "headquarters",
			"HQ":           "headquarters",
			"main office":  "headquarters",
			"city":         "headquarters",
			"name":         "name",
			"country":      "country",
			"free-accounts": "free-accounts",
			"free accounts": "free-accounts",
			"balance":        "balance",
			"amount":         "amount",
			"account number": "account-number",
			"account type":   "account-type",
			"category":       "category",
			"reference":      "reference",
			"expiry date":    "expiry-date",
			"first name":     "first-name",
			"last name":      "last-name",
			"gender":         "gender",
			"email":          "email",
			"phone number":   "phone-number",
			"sign date":      "sign-date",
			"opening date":   "opening-date",
			"name on card":   "name-on-card",
		},
		kb.TableMentions: {
			"first": "0", "1": "0",
			"second": "1", "2": "1",
			"third": "2", "3": "2",
			"fourth": "3", "4": "3",
		},
	}
	for table, rows := range lookups {
		for key, value := range rows {
			if err := s.lookup(table, key, value); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

type seeder struct {
	ctx context.Context
	tx  *sql.Tx
}

func (s seeder) entity(entityType string, attrs map[string]string) (int64, error) {
	var id int64
	err := s.tx.QueryRowContext(s.ctx,
		"INSERT INTO entities (entity_type) VALUES ($1) RETURNING id", entityType).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert %s entity: %w", entityType, err)
	}
	for name, value := range attrs {
		_, err := s.tx.ExecContext(s.ctx,
			"INSERT INTO entity_attributes (entity_id, name, value) VALUES ($1, $2, $3)",
			id, name, value)
		if err != nil {
			return 0, fmt.Errorf("insert %s attribute %s: %w", entityType, name, err)
		}
	}
	return id, nil
}

func (s seeder) relation(relationType string, attrs map[string]string, roles map[string]int64) (int64, error) {
	var id int64
	err := s.tx.QueryRowContext(s.ctx,
		"INSERT INTO relations (relation_type) VALUES ($1) RETURNING id", relationType).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert %s relation: %w", relationType, err)
	}
	for name, value := range attrs {
		_, err := s.tx.ExecContext(s.ctx,
			"INSERT INTO relation_attributes (relation_id, name, value) VALUES ($1, $2, $3)",
			id, name, value)
		if err != nil {
			return 0, fmt.Errorf("insert %s attribute %s: %w", relationType, name, err)
		}
	}
	for role, entityID := range roles {
		_, err := s.tx.ExecContext(s.ctx,
			"INSERT INTO relation_roles (relation_id, role, entity_id) VALUES ($1, $2, $3)",
			id, role, entityID)
		if err != nil {
			return 0, fmt.Errorf("insert %s role %s: %w", relationType, role, err)
		}
	}
	return id, nil
}

func (s seeder) lookup(table, key, value string) error {
	_, err := s.tx.ExecContext(s.ctx,
		"INSERT INTO lookup_tables (table_name, mapping_key, mapping_value) VALUES ($1, $2, $3)",
		table, key, value)
	if err != nil {
		return fmt.Errorf("insert lookup %s[%s]: %w", table, key, err)
	}
	return nil
}
