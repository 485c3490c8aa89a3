package core

import "sort"

// TypeAll disables the type filter.
const TypeAll TxType = "all"

// CategoryTotal represents an amount aggregated by category name and type.
type CategoryTotal struct {
	Category string `json:"category"`
	Total    Money  `json:"total"`
	Type     TxType `json:"type"`
}

// Summary is the compact overview shown on the summary cards.
type Summary struct {
	Income   Money `json:"income"`
	Expenses Money `json:"expenses"`
	Balance  Money `json:"balance"`
	Count    int   `json:"count"`
}

// Filter selects transactions by exact category and type.
// An empty Category and an empty or "all" Type match everything.
type Filter struct {
	Category string `json:"category"`
	Type     TxType `json:"type"`
}

func sumByType(txs []Transaction, typ TxType) Money {
	var total Money
	for _, t := range txs {
		if t.Type == typ {
			total = total.Add(t.Amount)
		}
	}
	return total
}

func TotalIncome(txs []Transaction) Money {
	return sumByType(txs, Income)
}

func TotalExpenses(txs []Transaction) Money {
	return sumByType(txs, Expense)
}

// Balance is income minus expenses and may be negative.
func Balance(txs []Transaction) Money {
	return TotalIncome(txs).Sub(TotalExpenses(txs))
}

func Summarize(txs []Transaction) Summary {
	income, expenses := TotalIncome(txs), TotalExpenses(txs)
	return Summary{
		Income:   income,
		Expenses: expenses,
		Balance:  income.Sub(expenses),
		Count:    len(txs),
	}
}

// CategoryTotals groups transactions by category in first-seen order and
// emits an income then an expense entry per category, skipping totals <= 0.
func CategoryTotals(txs []Transaction) []CategoryTotal {
	type pair struct{ income, expense Money }

	var order []string
	sums := make(map[string]*pair)
	for _, t := range txs {
		p, ok := sums[t.Category]
		if !ok {
			p = &pair{}
			sums[t.Category] = p
			order = append(order, t.Category)
		}
		if t.Type == Income {
			p.income = p.income.Add(t.Amount)
		} else {
			p.expense = p.expense.Add(t.Amount)
		}
	}

	out := make([]CategoryTotal, 0, len(order)*2)
	for _, cat := range order {
		p := sums[cat]
		if p.income.IsPositive() {
			out = append(out, CategoryTotal{Category: cat, Total: p.income, Type: Income})
		}
		if p.expense.IsPositive() {
			out = append(out, CategoryTotal{Category: cat, Total: p.expense, Type: Expense})
		}
	}
	return out
}

func (f Filter) matches(t Transaction) bool {
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.Type != "" && f.Type != TypeAll && t.Type != f.Type {
		return false
	}
	return true
}

// FilterTransactions returns the matching transactions sorted by date, most
// recent first. Transactions on the same date keep their insertion order.
func FilterTransactions(txs []Transaction, f Filter) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if f.matches(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date.Time)
	})
	return out
}
