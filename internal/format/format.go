package format

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

var (
	// Turkish is the default display locale.
	Turkish = language.Turkish
	// English renders amounts with English separators.
	English = language.English

	// Supported lists the display locales in matcher priority order.
	Supported = []language.Tag{Turkish, English}
	matcher   = language.NewMatcher(Supported)
)

type separators struct {
	group   string
	decimal string
}

// Locale resolves an Accept-Language style value against the supported locales.
// Empty or unparseable input yields the fallback.
func Locale(accept string, fallback language.Tag) language.Tag {
	accept = strings.TrimSpace(accept)
	if accept == "" {
		return base(fallback)
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return base(fallback)
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return base(fallback)
	}
	return Supported[idx]
}

// Money rounds the amount half-up to two decimals and renders it as Turkish Lira.
// Example: Money(1234.555, Turkish) => "₺1.234,56"
func Money(amount decimal.Decimal, lang language.Tag) string {
	sep := separatorsFor(lang)
	rounded := amount.Round(2)
	neg := rounded.IsNegative()
	fixed := rounded.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")
	out := "₺" + group(whole, sep.group) + sep.decimal + frac
	if neg {
		return "-" + out
	}
	return out
}

// Percent renders a fractional rate such as 0.18 as a percentage.
// Turkish puts the sign first ("%18"), English last ("18%").
func Percent(rate decimal.Decimal, lang language.Tag) string {
	sep := separatorsFor(lang)
	value := rate.Shift(2).Round(2).String()
	value = strings.Replace(value, ".", sep.decimal, 1)
	if base(lang) == Turkish {
		return "%" + value
	}
	return value + "%"
}

func separatorsFor(lang language.Tag) separators {
	if base(lang) == English {
		return separators{group: ",", decimal: "."}
	}
	return separators{group: ".", decimal: ","}
}

func base(tag language.Tag) language.Tag {
	b, _ := tag.Base()
	switch b.String() {
	case "en":
		return English
	default:
		return Turkish
	}
}

func group(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
