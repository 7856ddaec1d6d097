package generators

import "fmt"

var baseChart = []struct {
	number string
	name   string
	kind   AccountType
}{
	{"1000", "Cash", AccountAsset},
	{"1010", "Bank", AccountAsset},
	{"1100", "Accounts Receivable", AccountAsset},
	{"1200", "Inventory", AccountAsset},
	{"1300", "Prepaid Expenses", AccountAsset},
	{"1500", "Fixed Assets", AccountAsset},
	{"1510", "Accumulated Depreciation", AccountAsset},
	{"2000", "Accounts Payable", AccountLiability},
	{"2100", "Accrued Liabilities", AccountLiability},
	{"2200", "Tax Payable", AccountLiability},
	{"2500", "Long-term Debt", AccountLiability},
	{"3000", "Share Capital", AccountEquity},
	{"3100", "Retained Earnings", AccountEquity},
	{"4000", "Product Revenue", AccountRevenue},
	{"4100", "Service Revenue", AccountRevenue},
	{"5000", "Cost of Goods Sold", AccountExpense},
	{"6000", "Salaries", AccountExpense},
	{"6100", "Rent", AccountExpense},
	{"6200", "Utilities", AccountExpense},
	{"6300", "Travel", AccountExpense},
	{"6400", "Depreciation", AccountExpense},
	{"6500", "Office Supplies", AccountExpense},
}

// extra sub-accounts per complexity on top of the base chart
var chartExtras = map[string]int{
	"small":  0,
	"medium": 40,
	"large":  150,
}

// buildChart returns the chart of accounts for cfg. It does not use
// randomness so every phase can rebuild it.
func buildChart(cfg Config) []Account {
	accounts := make([]Account, 0, len(baseChart)+chartExtras[cfg.Complexity])
	for _, a := range baseChart {
		accounts = append(accounts, Account{
			Number:      a.number,
			Name:        a.name,
			Type:        a.kind,
			CompanyCode: cfg.CompanyCode,
		})
	}

	for i := 0; i < chartExtras[cfg.Complexity]; i++ {
		kind := AccountExpense
		number := 7000 + i*10
		if i%4 == 3 {
			kind = AccountRevenue
			number = 4200 + (i/4)*10
		}
		accounts = append(accounts, Account{
			Number:      fmt.Sprintf("%d", number),
			Name:        fmt.Sprintf("%s sub-account %d", kind, i+1),
			Type:        kind,
			CompanyCode: cfg.CompanyCode,
		})
	}
	return accounts
}
