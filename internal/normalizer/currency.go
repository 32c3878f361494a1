package normalizer

import "strings"

// DefaultCurrency is assumed when a listing carries no recognizable currency.
const DefaultCurrency = "EUR"

// CurrencyRule maps a symbol or code seen in scraped listings to an ISO code.
type CurrencyRule struct {
	// Token is matched case-insensitively against the trimmed input.
	Token string

	// Code is the ISO 4217 code.
	Code string
}

// DefaultCurrencyRules lists every currency spelling the scrapers produce.
var DefaultCurrencyRules = []CurrencyRule{
	{Token: "€", Code: "EUR"},
	{Token: "EUR", Code: "EUR"},
	{Token: "EURO", Code: "EUR"},
	{Token: "$", Code: "USD"},
	{Token: "US$", Code: "USD"},
	{Token: "USD", Code: "USD"},
	{Token: "£", Code: "GBP"},
	{Token: "GBP", Code: "GBP"},
	{Token: "¥", Code: "JPY"},
	{Token: "JPY", Code: "JPY"},
}

// SupportedCurrencies is the closed set of ISO codes the ledger accepts.
var SupportedCurrencies = []string{"EUR", "USD", "GBP", "JPY"}

// IsSupportedCurrency reports whether code is one of SupportedCurrencies.
func IsSupportedCurrency(code string) bool {
	for _, c := range SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// recognizeCurrency returns the ISO code for input and whether it matched a rule.
func recognizeCurrency(input string) (string, bool) {
	token := strings.ToUpper(strings.TrimSpace(input))
	for _, rule := range DefaultCurrencyRules {
		if token == rule.Token {
			return rule.Code, true
		}
	}
	return "", false
}

// ResolveCurrency maps a symbol or code to an ISO code. When input is empty or
// unrecognized it returns DefaultCurrency and inferred=true.
func ResolveCurrency(input string) (code string, inferred bool) {
	if code, ok := recognizeCurrency(input); ok {
		return code, false
	}
	return DefaultCurrency, true
}

// NormalizeCurrency maps €, $, £, ¥ and ISO codes to EUR, USD, GBP, JPY.
// Anything else becomes EUR. It never fails.
// Example: "€" -> "EUR", "usd" -> "USD", "" -> "EUR"
func NormalizeCurrency(input string) string {
	code, _ := ResolveCurrency(input)
	return code
}
