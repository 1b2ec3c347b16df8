package kb

import "time"

// DemoPrincipal is the customer identity of the seeded demo graph.
const DemoPrincipal = "mitchell.gillis@t-online.de"

// NewDemoGraph builds an in-memory graph with a small banking world: a
// handful of banks, one customer with two accounts, cards and transactions,
// and the three lookup tables. Used by offline demos and as a test fixture.
func NewDemoGraph() *MemoryGraph {
	g := NewMemoryGraph(DemoPrincipal)

	banks := []Record{
		{"name": "N26", "headquarters": "Berlin", "country": "Germany", "free-accounts": "true"},
		{"name": "bunq", "headquarters": "Amsterdam", "country": "Netherlands", "free-accounts": "false"},
		{"name": "Deutsche Bank", "headquarters": "Frankfurt am Main", "country": "Germany", "free-accounts": "false"},
		{"name": "Commerzbank", "headquarters": "Frankfurt am Main", "country": "Germany", "free-accounts": "true"},
		{"name": "Targobank", "headquarters": "Düsseldorf", "country": "Germany", "free-accounts": "true"},
		{"name": "DKB", "headquarters": "Berlin", "country": "Germany", "free-accounts": "true"},
		{"name": "Comdirect", "headquarters": "Quickborn", "country": "Germany", "free-accounts": "true"},
	}
	for _, bank := range banks {
		g.AddEntity(TypeBank, bank)
	}

	mitchell := Record{
		"email":      DemoPrincipal,
		"first-name": "Mitchell",
		"last-name":  "Gillis",
		"gender":     "male",
		"city":       "Berlin",
	}
	evelyn := Record{
		"email":      "evelyn.burton@gmx.de",
		"first-name": "Evelyn",
		"last-name":  "Burton",
		"gender":     "female",
		"city":       "Hamburg",
	}
	g.AddEntity(TypePerson, mitchell)
	g.AddEntity(TypePerson, evelyn)

	checking := Record{
		"account-number": "DE1001",
		"balance":        1200.5,
		"account-type":   "checking",
		"opening-date":   time.Date(2018, 4, 12, 9, 30, 0, 0, time.UTC),
	}
	savings := Record{
		"account-number": "DE1002",
		"balance":        5400.0,
		"account-type":   "savings",
		"opening-date":   time.Date(2019, 11, 2, 14, 0, 0, 0, time.UTC),
	}
	foreign := Record{
		"account-number": "DE2001",
		"balance":        830.75,
		"account-type":   "checking",
		"opening-date":   time.Date(2017, 6, 20, 11, 15, 0, 0, time.UTC),
	}

	g.AddRelation(TypeContract, Record{
		"identifier": "C-1001",
		"sign-date":  time.Date(2018, 4, 12, 9, 0, 0, 0, time.UTC),
		RoleCustomer: mitchell,
		RoleOffer:    checking,
		RoleProvider: banks[0], // N26
	})
	g.AddRelation(TypeContract, Record{
		"identifier": "C-1002",
		"sign-date":  time.Date(2019, 11, 2, 13, 30, 0, 0, time.UTC),
		RoleCustomer: mitchell,
		RoleOffer:    savings,
		RoleProvider: banks[5], // DKB
	})
	g.AddRelation(TypeContract, Record{
		"identifier": "C-2001",
		"sign-date":  time.Date(2017, 6, 20, 11, 0, 0, 0, time.UTC),
		RoleCustomer: evelyn,
		RoleOffer:    foreign,
		RoleProvider: banks[1], // bunq
	})

	transactions := []Record{
		{
			"identifier":        "T-9001",
			"amount":            40.0,
			"reference":         "groceries",
			"category":          "food",
			"execution-date":    time.Date(2020, 3, 1, 14, 5, 0, 0, time.UTC),
			RoleCreatorAccount:  checking,
			RoleReceiverAccount: foreign,
		},
		{
			"identifier":        "T-9002",
			"amount":            899.99,
			"reference":         "rent march",
			"category":          "home",
			"execution-date":    time.Date(2020, 3, 2, 8, 0, 0, 0, time.UTC),
			RoleCreatorAccount:  checking,
			RoleReceiverAccount: foreign,
		},
		{
			"identifier":        "T-9003",
			"amount":            250.0,
			"reference":         "savings transfer",
			"category":          "transfer",
			"execution-date":    time.Date(2020, 3, 5, 18, 45, 0, 0, time.UTC),
			RoleCreatorAccount:  savings,
			RoleReceiverAccount: checking,
		},
	}
	for _, tx := range transactions {
		g.AddRelation(TypeTransaction, tx)
	}

	card := Record{
		"card-number":  "4401-22",
		"name-on-card": "M GILLIS",
		"expiry-date":  time.Date(2024, 8, 31, 0, 0, 0, 0, time.UTC),
		"created-date": time.Date(2018, 4, 15, 0, 0, 0, 0, time.UTC),
	}
	g.AddEntity(TypeCard, card)
	g.AddRelation("represented-by", Record{
		RoleBankAccount: checking,
		RoleBankCard:    card,
	})

	seedLookupTables(g)
	return g
}

// seedLookupTables loads the synonym and mention tables.
func seedLookupTables(g *MemoryGraph) {
	entityTypes := map[string]string{
		"bank": TypeBank, "banks": TypeBank,
		"account": TypeAccount, "accounts": TypeAccount,
		"transaction": TypeTransaction, "transactions": TypeTransaction,
		"payments": TypeTransaction,
		"card":     TypeCard, "cards": TypeCard,
		"credit cards": TypeCard,
		"person":       TypePerson, "people": TypePerson,
		"contract": TypeContract, "contracts": TypeContract,
	}
	for key, value := range entityTypes {
		g.AddLookup(TableEntityTypes, key, value)
	}

	attributes := map[string]string{
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
	}
	for key, value := range attributes {
		g.AddLookup(TableAttributes, key, value)
	}

	mentions := map[string]string{
		"first": "0", "1": "0",
		"second": "1", "2": "1",
		"third": "2", "3": "2",
		"fourth": "3", "4": "3",
	}
	for key, value := range mentions {
		g.AddLookup(TableMentions, key, value)
	}
}
