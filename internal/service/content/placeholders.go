package content

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Vars are the values substituted into message bodies.
type Vars struct {
	Name     string
	Customer string
	Amount   float64
	Gender   *string
}

type pronouns struct {
	subject, possessive, object, contraction string
}

var (
	femalePronouns  = pronouns{"she", "her", "her", "she's"}
	malePronouns    = pronouns{"he", "his", "him", "he's"}
	neutralPronouns = pronouns{"they", "their", "them", "they're"}
)

func pronounsFor(gender *string) pronouns {
	if gender == nil {
		return neutralPronouns
	}
	switch strings.ToLower(strings.TrimSpace(*gender)) {
	case "female":
		return femalePronouns
	case "male":
		return malePronouns
	default:
		return neutralPronouns
	}
}

// Substitute replaces the placeholder tokens in body.
func Substitute(body string, v Vars) string {
	p := pronounsFor(v.Gender)
	r := strings.NewReplacer(
		"{name}", v.Name,
		"{customer}", v.Customer,
		"{amount}", FormatAmount(v.Amount),
		"{he/she}", p.subject,
		"{his/her}", p.possessive,
		"{him/her}", p.object,
		"{he's/she's}", p.contraction,
	)
	return r.Replace(body)
}

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount renders a currency amount with digit grouping, dropping cents
// when the amount is whole: 12500 → "$12,500", 99.5 → "$99.50".
func FormatAmount(amount float64) string {
	if amount == math.Trunc(amount) {
		return amountPrinter.Sprintf("$%.0f", amount)
	}
	return amountPrinter.Sprintf("$%.2f", amount)
}
