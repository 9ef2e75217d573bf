package domain

// PaymentAmount is the slice of a payment the calculators care about.
type PaymentAmount struct {
	Amount   int64
	Currency string
}

// Calculator computes per-currency subtotals over an immutable item list.
type Calculator struct {
	items []LineItem
}

// NewCalculator builds a calculator over the given items.
func NewCalculator(items []LineItem) *Calculator {
	return &Calculator{items: items}
}

// SubtotalFor sums amount × quantity over items priced in the given currency.
// Currencies are matched case-insensitively; no match yields zero.
func (c *Calculator) SubtotalFor(currency string) int64 {
	currency = NormalizeCurrency(currency)
	var total int64
	for _, item := range c.items {
		if NormalizeCurrency(item.Currency) != currency {
			continue
		}
		total += item.Total()
	}
	return total
}

// Subtotal maps every currency present in the item list to its subtotal.
// An empty item list yields an empty map; absent currencies are absent keys.
func (c *Calculator) Subtotal() map[string]int64 {
	subtotal := make(map[string]int64, len(c.items))
	for _, currency := range c.CurrencyList() {
		subtotal[currency] = c.SubtotalFor(currency)
	}
	return subtotal
}

// CurrencyList returns the distinct currencies in order of first occurrence.
func (c *Calculator) CurrencyList() []string {
	seen := make(map[string]struct{}, len(c.items))
	currencies := make([]string, 0, len(c.items))
	for _, item := range c.items {
		currency := NormalizeCurrency(item.Currency)
		if _, ok := seen[currency]; ok {
			continue
		}
		seen[currency] = struct{}{}
		currencies = append(currencies, currency)
	}
	return currencies
}

// DueCalculator layers payment application on top of Calculator.
type DueCalculator struct {
	*Calculator
}

// NewDueCalculator builds an amount-due calculator over the given items.
func NewDueCalculator(items []LineItem) *DueCalculator {
	return &DueCalculator{Calculator: NewCalculator(items)}
}

// AmountDueFor subtracts the payments made in the given currency from its
// subtotal, floored at zero. A zero subtotal or an empty payment list passes
// the subtotal through unchanged.
func (c *DueCalculator) AmountDueFor(currency string, payments []PaymentAmount) int64 {
	total := c.SubtotalFor(currency)
	if total == 0 || len(payments) == 0 {
		return total
	}
	due := total
	for _, payment := range payments {
		due -= payment.Amount
	}
	if due <= 0 {
		return 0
	}
	return due
}

// AmountDue computes the remaining balance for every currency present in the
// item list, filtering the payment list by currency before applying it.
// An empty item list yields an empty map regardless of payments.
func (c *DueCalculator) AmountDue(payments []PaymentAmount) map[string]int64 {
	due := make(map[string]int64)
	for _, currency := range c.CurrencyList() {
		matching := make([]PaymentAmount, 0, len(payments))
		for _, payment := range payments {
			if NormalizeCurrency(payment.Currency) == currency {
				matching = append(matching, payment)
			}
		}
		due[currency] = c.AmountDueFor(currency, matching)
	}
	return due
}
