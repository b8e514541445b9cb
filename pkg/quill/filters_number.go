package quill

import (
	"fmt"
	"math"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// registerNumberFilters installs the numeric and currency filters. Locale
// handling follows the x/text pipeline: parse a BCP 47 tag, build a
// message printer for it, and let the number/currency packages pick
// separators and symbols.
func registerNumberFilters(r *FilterRegistry) {
	r.Register("round", func(in Value, args []Value) (Value, error) {
		n, ok := in.Number()
		if !ok {
			return Undefined, fmt.Errorf("round requires a numeric input, got %s", in.Kind())
		}
		digits := 0.0
		if len(args) > 0 {
			d, dok := args[0].Number()
			if !dok || d < 0 {
				return Undefined, fmt.Errorf("round digits must be a non-negative number")
			}
			digits = d
		}
		scale := math.Pow(10, digits)
		return NumberValue(math.Round(n*scale) / scale), nil
	})

	r.Register("number", func(in Value, args []Value) (Value, error) {
		n, ok := in.Number()
		if !ok {
			return Undefined, fmt.Errorf("number requires a numeric input, got %s", in.Kind())
		}
		tag, err := localeTag(args, 0)
		if err != nil {
			return Undefined, err
		}
		p := message.NewPrinter(tag)
		return StringValue(p.Sprintf("%v", number.Decimal(n))), nil
	})

	r.Register("currency", func(in Value, args []Value) (Value, error) {
		n, ok := in.Number()
		if !ok {
			return Undefined, fmt.Errorf("currency requires a numeric input, got %s", in.Kind())
		}
		if len(args) < 1 {
			return Undefined, fmt.Errorf("currency requires an ISO 4217 code argument")
		}
		unit, err := currency.ParseISO(args[0].Format())
		if err != nil {
			return Undefined, fmt.Errorf("unknown currency code %q", args[0].Format())
		}
		tag, err := localeTag(args, 1)
		if err != nil {
			return Undefined, err
		}
		p := message.NewPrinter(tag)
		return StringValue(p.Sprintf("%v", currency.Symbol(unit.Amount(n)))), nil
	})

	r.Register("percent", func(in Value, args []Value) (Value, error) {
		n, ok := in.Number()
		if !ok {
			return Undefined, fmt.Errorf("percent requires a numeric input, got %s", in.Kind())
		}
		digits := 0
		if len(args) > 0 {
			d, dok := args[0].Number()
			if !dok || d < 0 {
				return Undefined, fmt.Errorf("percent digits must be a non-negative number")
			}
			digits = int(d)
		}
		p := message.NewPrinter(language.English)
		return StringValue(p.Sprintf("%v", number.Percent(n, number.MaxFractionDigits(digits)))), nil
	})
}

// localeTag parses an optional locale argument, defaulting to English.
func localeTag(args []Value, pos int) (language.Tag, error) {
	if len(args) <= pos {
		return language.English, nil
	}
	tag, err := language.Parse(args[pos].Format())
	if err != nil {
		return language.Und, fmt.Errorf("unknown locale %q", args[pos].Format())
	}
	return tag, nil
}
