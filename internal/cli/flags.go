package cli

import (
	"strings"

	"github.com/shopspring/decimal"
)

// listFlag collects comma separated values, skipping blanks.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(value string) error {
	for item := range strings.SplitSeq(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			*l = append(*l, item)
		}
	}
	return nil
}

// decimalFlag is an optional amount.
type decimalFlag struct {
	value *decimal.Decimal
}

func (d *decimalFlag) String() string {
	if d.value == nil {
		return ""
	}
	return d.value.String()
}

func (d *decimalFlag) Set(value string) error {
	parsed, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	d.value = &parsed
	return nil
}
