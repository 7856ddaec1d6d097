package generators

import (
	"fmt"
	"strings"
)

// Money is an amount in the smallest currency unit. Arithmetic is
// integer only.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func NewMoney(minor int64, currency string) Money {
	return Money{Amount: minor, Currency: strings.ToLower(currency)}
}

func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

func (m Money) IsZero() bool { return m.Amount == 0 }

func (m Money) String() string {
	sign := ""
	amount := m.Amount
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, strings.ToUpper(m.Currency))
}
