package quill

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// layoutReplacer maps template-facing date tokens to the Go reference
// time. Authors write "YYYY-MM-DD", not "2006-01-02".
var layoutReplacer = strings.NewReplacer(
	"YYYY", "2006",
	"YY", "06",
	"MMMM", "January",
	"MMM", "Jan",
	"MM", "01",
	"DD", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

const defaultDateLayout = "YYYY-MM-DD"

// registerDateFilters installs the date filter. Input parsing is
// forgiving: any layout dateparse recognizes is accepted, plus numeric
// Unix timestamps.
func registerDateFilters(r *FilterRegistry) {
	r.Register("date", func(in Value, args []Value) (Value, error) {
		t, err := parseDateInput(in)
		if err != nil {
			return Undefined, err
		}
		layout := defaultDateLayout
		if len(args) > 0 {
			layout = args[0].Format()
		}
		return StringValue(t.Format(layoutReplacer.Replace(layout))), nil
	})
}

func parseDateInput(in Value) (time.Time, error) {
	switch in.Kind() {
	case KindNumber:
		n, _ := in.Number()
		return time.Unix(int64(n), 0).UTC(), nil
	case KindString:
		t, err := dateparse.ParseAny(in.Str())
		if err != nil {
			return time.Time{}, fmt.Errorf("unparseable date %q", in.Str())
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("date requires a string or numeric input, got %s", in.Kind())
	}
}
