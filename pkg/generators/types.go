package generators

import "time"

// AccountType classifies general ledger accounts.
type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
	AccountEquity    AccountType = "equity"
	AccountRevenue   AccountType = "revenue"
	AccountExpense   AccountType = "expense"
)

// Account is one line of the chart of accounts.
type Account struct {
	Number      string      `json:"number"`
	Name        string      `json:"name"`
	Type        AccountType `json:"type"`
	CompanyCode string      `json:"company_code"`
}

func (Account) ItemType() string { return "account" }

type Vendor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Country      string `json:"country"`
	PaymentTerms int    `json:"payment_terms_days"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

func (Vendor) ItemType() string { return "vendor" }

type Customer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Country     string `json:"country"`
	CreditLimit *Money `json:"credit_limit,omitempty"`
	Email       string `json:"email,omitempty"`
}

func (Customer) ItemType() string { return "customer" }

type Material struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	UnitPrice   Money  `json:"unit_price"`
	Group       string `json:"group,omitempty"`
}

func (Material) ItemType() string { return "material" }

type Employee struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	Email      string `json:"email,omitempty"`
	// ApprovalLimit is the largest posting the employee may approve
	ApprovalLimit Money `json:"approval_limit"`
}

func (Employee) ItemType() string { return "employee" }

// FlowKind is the business process of a document flow.
type FlowKind string

const (
	ProcureToPay FlowKind = "p2p"
	OrderToCash  FlowKind = "o2c"
)

// Document is one step of a document flow.
type Document struct {
	Type   string    `json:"type"`
	Number string    `json:"number"`
	Date   time.Time `json:"date"`
	Amount Money     `json:"amount"`
}

// DocumentFlow is a purchase or sales chain, from order to payment.
type DocumentFlow struct {
	ID        string     `json:"id"`
	Kind      FlowKind   `json:"kind"`
	PartnerID string     `json:"partner_id"`
	Documents []Document `json:"documents"`
}

func (DocumentFlow) ItemType() string { return "document_flow" }

// JournalLine is one debit or credit posting. Exactly one of Debit and
// Credit is non-zero.
type JournalLine struct {
	Account string `json:"account"`
	Debit   Money  `json:"debit"`
	Credit  Money  `json:"credit"`
	Text    string `json:"text,omitempty"`
}

type JournalEntry struct {
	ID          string        `json:"id"`
	CompanyCode string        `json:"company_code"`
	PostingDate time.Time     `json:"posting_date"`
	Source      string        `json:"source"`
	CreatedBy   string        `json:"created_by,omitempty"`
	Lines       []JournalLine `json:"lines"`
}

func (JournalEntry) ItemType() string { return "journal_entry" }

// Totals returns the summed debits and credits of the entry.
func (e JournalEntry) Totals() (debit, credit int64) {
	for _, l := range e.Lines {
		debit += l.Debit.Amount
		credit += l.Credit.Amount
	}
	return debit, credit
}

func (e JournalEntry) Balanced() bool {
	debit, credit := e.Totals()
	return debit == credit
}

type BankTransaction struct {
	ID          string    `json:"id"`
	AccountIBAN string    `json:"account_iban"`
	BookingDate time.Time `json:"booking_date"`
	Amount      Money     `json:"amount"`
	Reference   string    `json:"reference"`
	// EntryID links the transaction to the journal entry it settles
	EntryID string `json:"entry_id,omitempty"`
}

func (BankTransaction) ItemType() string { return "bank_transaction" }

// AnomalyLabel flags a journal entry as deliberately anomalous.
type AnomalyLabel struct {
	EntryID  string  `json:"entry_id"`
	Type     string  `json:"type"`
	Severity float64 `json:"severity"`
}

func (AnomalyLabel) ItemType() string { return "anomaly_label" }

// QualityIssue records a data quality defect injected into a record.
type QualityIssue struct {
	RecordType string `json:"record_type"`
	RecordID   string `json:"record_id"`
	Field      string `json:"field"`
	Issue      string `json:"issue"`
}

func (QualityIssue) ItemType() string { return "quality_issue" }

// BalanceCheck is the result of validating postings, either for one
// account or for the whole ledger.
type BalanceCheck struct {
	Scope     string `json:"scope"`
	Reference string `json:"reference"`
	Debit     Money  `json:"debit"`
	Credit    Money  `json:"credit"`
	Balanced  bool   `json:"balanced"`
}

func (BalanceCheck) ItemType() string { return "balance_check" }
