package generators

import (
	"context"
	"fmt"
	"sync"

	"github.com/datasynth/synth/pkg/orchestrator"
)

const DefaultBatchSize = 100

// generator carries the records of earlier phases to later ones, so a
// registry belongs to a single stream.
type generator struct {
	cfg       Config
	batchSize int

	mu        sync.Mutex
	accounts  []Account
	vendors   []string
	customers []string
	employees []string
	entryIDs  []string
	// postings holds debit and credit totals per account number
	postings map[string]*[2]int64
}

// NewRegistry returns the phase functions for every phase that produces
// data. Journal entries and bank transactions are generated in batches of
// batchSize, scaled down under degradation.
func NewRegistry(cfg Config, batchSize int) orchestrator.Registry {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	g := &generator{
		cfg:       cfg,
		batchSize: batchSize,
		postings:  make(map[string]*[2]int64),
	}
	return orchestrator.Registry{
		orchestrator.ChartOfAccounts:   g.locked(g.chartOfAccounts),
		orchestrator.MasterData:        g.locked(g.masterData),
		orchestrator.DocumentFlows:     g.locked(g.documentFlows),
		orchestrator.JournalEntries:    g.locked(g.journalEntries),
		orchestrator.AnomalyInjection:  g.locked(g.anomalyInjection),
		orchestrator.BalanceValidation: g.locked(g.balanceValidation),
		orchestrator.DataQuality:       g.locked(g.dataQuality),
	}
}

func (g *generator) locked(fn orchestrator.PhaseFunc) orchestrator.PhaseFunc {
	return func(ctx context.Context, em *orchestrator.Emitter) error {
		g.mu.Lock()
		defer g.mu.Unlock()
		return fn(ctx, em)
	}
}

func (g *generator) ensureAccounts() {
	if len(g.accounts) == 0 {
		g.accounts = buildChart(g.cfg)
	}
}

func (g *generator) chartOfAccounts(ctx context.Context, em *orchestrator.Emitter) error {
	g.accounts = buildChart(g.cfg)
	em.SetRemaining(uint64(len(g.accounts)))

	for _, a := range g.accounts {
		if !em.Emit(ctx, a) {
			return nil
		}
	}
	return nil
}

func (g *generator) masterData(ctx context.Context, em *orchestrator.Emitter) error {
	total := g.cfg.Vendors + g.cfg.Customers + g.cfg.Materials + g.cfg.Employees
	em.SetRemaining(uint64(total))

	s := newSource(g.cfg.Seed, streamVendors)
	for i := 0; i < g.cfg.Vendors; i++ {
		v := g.newVendor(s, em.Actions().SkipOptionalFields)
		if !em.Emit(ctx, v) {
			return nil
		}
		g.vendors = append(g.vendors, v.ID)
	}

	s = newSource(g.cfg.Seed, streamCustomers)
	for i := 0; i < g.cfg.Customers; i++ {
		c := g.newCustomer(s, em.Actions().SkipOptionalFields)
		if !em.Emit(ctx, c) {
			return nil
		}
		g.customers = append(g.customers, c.ID)
	}

	s = newSource(g.cfg.Seed, streamMaterials)
	for i := 0; i < g.cfg.Materials; i++ {
		if !em.Emit(ctx, g.newMaterial(s, em.Actions().SkipOptionalFields)) {
			return nil
		}
	}

	s = newSource(g.cfg.Seed, streamEmployees)
	for i := 0; i < g.cfg.Employees; i++ {
		e := g.newEmployee(s, em.Actions().SkipOptionalFields)
		if !em.Emit(ctx, e) {
			return nil
		}
		g.employees = append(g.employees, e.ID)
	}
	return nil
}

func (g *generator) documentFlows(ctx context.Context, em *orchestrator.Emitter) error {
	em.SetRemaining(uint64(g.cfg.DocumentFlows))

	s := newSource(g.cfg.Seed, streamDocumentFlows)
	for i := 0; i < g.cfg.DocumentFlows; i++ {
		if !em.Emit(ctx, g.newDocumentFlow(s)) {
			return nil
		}
	}
	return nil
}

// batches calls fn for each batch until total items are produced. The
// batch size is re-derived from the degradation actions before every
// batch; fn returns false to stop.
func (g *generator) batches(ctx context.Context, em *orchestrator.Emitter, total int, fn func(n int) bool) {
	for done := 0; done < total; {
		if em.ShouldStop(ctx) {
			em.Logger().Debugf("stopping after %d of %d items", done, total)
			return
		}
		n := em.Actions().ScaleBatch(g.batchSize)
		if n == 0 {
			return
		}
		n = min(n, total-done)
		if !fn(n) {
			return
		}
		done += n
	}
}

func (g *generator) journalEntries(ctx context.Context, em *orchestrator.Emitter) error {
	g.ensureAccounts()
	em.SetRemaining(uint64(g.cfg.JournalEntries + g.cfg.BankTransactions))

	s := newSource(g.cfg.Seed, streamJournalEntries)
	stopped := false
	g.batches(ctx, em, g.cfg.JournalEntries, func(n int) bool {
		skipOptional := em.Actions().SkipOptionalFields
		for i := 0; i < n; i++ {
			entry := g.newJournalEntry(s, skipOptional)
			if !em.Emit(ctx, entry) {
				stopped = true
				return false
			}
			g.record(entry)
		}
		return true
	})
	if stopped || em.ShouldStop(ctx) {
		return nil
	}

	s = newSource(g.cfg.Seed, streamBank)
	g.batches(ctx, em, g.cfg.BankTransactions, func(n int) bool {
		for i := 0; i < n; i++ {
			if !em.Emit(ctx, g.newBankTransaction(s)) {
				return false
			}
		}
		return true
	})
	return nil
}

func (g *generator) record(entry JournalEntry) {
	g.entryIDs = append(g.entryIDs, entry.ID)
	for _, l := range entry.Lines {
		totals, ok := g.postings[l.Account]
		if !ok {
			totals = &[2]int64{}
			g.postings[l.Account] = totals
		}
		totals[0] += l.Debit.Amount
		totals[1] += l.Credit.Amount
	}
}

func (g *generator) anomalyInjection(ctx context.Context, em *orchestrator.Emitter) error {
	actions := em.Actions()
	if actions.SkipAnomalyInjection {
		em.Logger().Debug("anomaly injection skipped under degradation")
		return nil
	}

	rate := actions.ScaleRate(g.cfg.AnomalyRate)
	s := newSource(g.cfg.Seed, streamAnomalies)
	for _, id := range g.entryIDs {
		if em.ShouldStop(ctx) {
			return nil
		}
		if !s.chance(rate) {
			continue
		}
		label := AnomalyLabel{
			EntryID:  id,
			Type:     pick(s, anomalyTypes),
			Severity: s.float(0.3, 1.0),
		}
		if !em.Emit(ctx, label) {
			return nil
		}
	}
	return nil
}

// balanceValidation reports per-account totals and a ledger check. An
// unbalanced ledger is returned as an error after the checks are emitted.
func (g *generator) balanceValidation(ctx context.Context, em *orchestrator.Emitter) error {
	g.ensureAccounts()

	var debit, credit int64
	for _, a := range g.accounts {
		totals, ok := g.postings[a.Number]
		if !ok {
			continue
		}
		debit += totals[0]
		credit += totals[1]

		check := BalanceCheck{
			Scope:     "account",
			Reference: a.Number,
			Debit:     NewMoney(totals[0], g.cfg.Currency),
			Credit:    NewMoney(totals[1], g.cfg.Currency),
			Balanced:  totals[0] == totals[1],
		}
		if !em.Emit(ctx, check) {
			return nil
		}
	}

	ledger := BalanceCheck{
		Scope:     "ledger",
		Reference: g.cfg.CompanyCode,
		Debit:     NewMoney(debit, g.cfg.Currency),
		Credit:    NewMoney(credit, g.cfg.Currency),
		Balanced:  debit == credit,
	}
	if !em.Emit(ctx, ledger) {
		return nil
	}
	if !ledger.Balanced {
		return fmt.Errorf("ledger %s out of balance: debit %s, credit %s", g.cfg.CompanyCode, ledger.Debit, ledger.Credit)
	}
	return nil
}

func (g *generator) dataQuality(ctx context.Context, em *orchestrator.Emitter) error {
	if em.Actions().SkipDataQuality {
		em.Logger().Debug("data quality injection skipped under degradation")
		return nil
	}

	s := newSource(g.cfg.Seed, streamQuality)
	targets := []struct {
		recordType string
		ids        []string
		fields     []string
	}{
		{"vendor", g.vendors, []string{"name", "email", "phone", "country"}},
		{"customer", g.customers, []string{"name", "email", "country"}},
		{"journal_entry", g.entryIDs, []string{"posting_date", "created_by", "text"}},
	}

	for _, target := range targets {
		for _, id := range target.ids {
			if em.ShouldStop(ctx) {
				return nil
			}
			if !s.chance(g.cfg.DataQualityRate) {
				continue
			}
			issue := QualityIssue{
				RecordType: target.recordType,
				RecordID:   id,
				Field:      pick(s, target.fields),
				Issue:      pick(s, qualityIssues),
			}
			if !em.Emit(ctx, issue) {
				return nil
			}
		}
	}
	return nil
}
