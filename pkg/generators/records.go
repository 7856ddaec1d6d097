package generators

import (
	"fmt"
	"strings"
	"time"
)

var (
	companyPrefixes = []string{"Acme", "Globex", "Initech", "Umbrella", "Stark", "Wayne", "Hooli", "Vandelay", "Soylent", "Tyrell"}
	companySuffixes = []string{"Industries", "Trading", "Logistics", "Systems", "Supplies", "Partners", "Holdings", "Services"}
	countries       = []string{"US", "DE", "GB", "FR", "NL", "CA", "JP", "AU"}
	firstNames      = []string{"Alex", "Sam", "Jordan", "Taylor", "Morgan", "Casey", "Jamie", "Robin", "Avery", "Quinn"}
	lastNames       = []string{"Smith", "Müller", "Garcia", "Chen", "Okafor", "Novak", "Silva", "Kowalski", "Tanaka", "Brown"}
	departments     = []string{"Finance", "Procurement", "Sales", "Operations", "IT", "HR"}
	materialGroups  = []string{"raw", "packaging", "spare_parts", "finished_goods", "services"}
	entrySources    = []string{"manual", "automated", "recurring", "interface"}
	anomalyTypes    = []string{"duplicate_entry", "unusual_amount", "weekend_posting", "round_amount", "self_approval", "split_transaction"}
	qualityIssues   = []string{"missing_value", "typo", "format_variation", "duplicate", "encoding_error"}
)

func (s *source) companyName() string {
	return pick(s, companyPrefixes) + " " + pick(s, companySuffixes)
}

func (s *source) personName() string {
	return pick(s, firstNames) + " " + pick(s, lastNames)
}

func emailFor(name, domain string) string {
	local := strings.ToLower(strings.ReplaceAll(name, " ", "."))
	return local + "@" + domain
}

func (g *generator) newVendor(s *source, skipOptional bool) Vendor {
	v := Vendor{
		ID:           s.id(),
		Name:         s.companyName(),
		Country:      pick(s, countries),
		PaymentTerms: pick(s, []int{14, 30, 45, 60}),
	}
	if !skipOptional {
		v.Email = emailFor(v.Name, "vendor.example")
		v.Phone = fmt.Sprintf("+1-555-%04d", s.intn(10000))
	}
	return v
}

func (g *generator) newCustomer(s *source, skipOptional bool) Customer {
	c := Customer{
		ID:      s.id(),
		Name:    s.companyName(),
		Country: pick(s, countries),
	}
	if !skipOptional {
		limit := NewMoney(s.between(10, 500)*100000, g.cfg.Currency)
		c.CreditLimit = &limit
		c.Email = emailFor(c.Name, "customer.example")
	}
	return c
}

func (g *generator) newMaterial(s *source, skipOptional bool) Material {
	m := Material{
		ID:          s.id(),
		Description: fmt.Sprintf("Material %04d", s.intn(10000)),
		UnitPrice:   NewMoney(s.between(100, 250000), g.cfg.Currency),
	}
	if !skipOptional {
		m.Group = pick(s, materialGroups)
	}
	return m
}

func (g *generator) newEmployee(s *source, skipOptional bool) Employee {
	e := Employee{
		ID:            s.id(),
		Name:          s.personName(),
		Department:    pick(s, departments),
		ApprovalLimit: NewMoney(pick(s, []int64{10000, 50000, 250000, 1000000})*100, g.cfg.Currency),
	}
	if !skipOptional {
		e.Email = emailFor(e.Name, "corp.example")
	}
	return e
}

// postingDate spreads dates over the configured period.
func (g *generator) postingDate(s *source) time.Time {
	start := g.cfg.Start()
	end := start.AddDate(0, g.cfg.PeriodMonths, 0)
	days := int(end.Sub(start).Hours() / 24)
	return start.AddDate(0, 0, s.intn(days))
}

func (g *generator) newDocumentFlow(s *source) DocumentFlow {
	kind := ProcureToPay
	steps := []string{"purchase_order", "goods_receipt", "vendor_invoice", "payment"}
	partners := g.vendors
	if s.chance(0.5) {
		kind = OrderToCash
		steps = []string{"sales_order", "delivery", "customer_invoice", "receipt"}
		partners = g.customers
	}

	partner := ""
	if len(partners) > 0 {
		partner = pick(s, partners)
	} else {
		partner = s.id()
	}

	amount := NewMoney(s.between(5000, 5000000), g.cfg.Currency)
	date := g.postingDate(s)
	flow := DocumentFlow{
		ID:        s.id(),
		Kind:      kind,
		PartnerID: partner,
		Documents: make([]Document, 0, len(steps)),
	}
	for i, step := range steps {
		flow.Documents = append(flow.Documents, Document{
			Type:   step,
			Number: fmt.Sprintf("%s-%08d", strings.ToUpper(string(kind)), s.intn(100000000)),
			Date:   date,
			Amount: amount,
		})
		if i < len(steps)-1 {
			date = date.AddDate(0, 0, 1+s.intn(14))
		}
	}
	return flow
}

// newJournalEntry builds a balanced entry: one or more debit lines offset
// by a single credit line.
func (g *generator) newJournalEntry(s *source, skipOptional bool) JournalEntry {
	entry := JournalEntry{
		ID:          s.id(),
		CompanyCode: g.cfg.CompanyCode,
		PostingDate: g.postingDate(s),
		Source:      pick(s, entrySources),
	}
	if !skipOptional && len(g.employees) > 0 {
		entry.CreatedBy = pick(s, g.employees)
	}

	debits := 1 + s.intn(3)
	total := NewMoney(0, g.cfg.Currency)
	for i := 0; i < debits; i++ {
		amount := NewMoney(s.between(1000, 5000000), g.cfg.Currency)
		line := JournalLine{
			Account: pick(s, g.accounts).Number,
			Debit:   amount,
			Credit:  NewMoney(0, g.cfg.Currency),
		}
		if !skipOptional {
			line.Text = fmt.Sprintf("posting %d", i+1)
		}
		entry.Lines = append(entry.Lines, line)
		total = total.Add(amount)
	}

	credit := pick(s, g.accounts).Number
	entry.Lines = append(entry.Lines, JournalLine{
		Account: credit,
		Debit:   NewMoney(0, g.cfg.Currency),
		Credit:  total,
	})
	return entry
}

func (g *generator) newBankTransaction(s *source) BankTransaction {
	tx := BankTransaction{
		ID:          s.id(),
		AccountIBAN: fmt.Sprintf("DE%02d%018d", s.intn(100), s.between(0, 999999999999999999)),
		BookingDate: g.postingDate(s),
		Amount:      NewMoney(s.between(-2000000, 2000000), g.cfg.Currency),
		Reference:   fmt.Sprintf("REF%010d", s.intn(1000000000)),
	}
	if len(g.entryIDs) > 0 && s.chance(0.7) {
		tx.EntryID = pick(s, g.entryIDs)
	}
	return tx
}
