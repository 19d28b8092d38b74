package tools

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

const exchangeRateName = "exchange_rate"

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

type exchangeRate struct {
	rates RateSource
}

func (t *exchangeRate) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: exchangeRateName,
		Desc: "Gets the live exchange rate between two currencies (units of to_currency per one " +
			"from_currency). CTC values in the data are in INR.",
		ParamsOneOf: stringParams(map[string]*schema.ParameterInfo{
			"from_currency": {Desc: "Three-letter source currency code, e.g. INR", Required: true},
			"to_currency":   {Desc: "Three-letter target currency code, e.g. USD", Required: true},
		}),
	}, nil
}

func (t *exchangeRate) InvokableRun(ctx context.Context, argsJSON string, _ ...tool.Option) (string, error) {
	var args struct {
		From string `json:"from_currency"`
		To   string `json:"to_currency"`
	}
	if msg, ok := decodeArgs(exchangeRateName, argsJSON, &args); !ok {
		return msg, nil
	}
	from := strings.ToUpper(strings.TrimSpace(args.From))
	to := strings.ToUpper(strings.TrimSpace(args.To))
	for _, code := range []string{from, to} {
		if !currencyCode.MatchString(code) {
			return fmt.Sprintf("Invalid currency code %q: expected three letters such as INR or USD.", code), nil
		}
	}

	if t.rates == nil {
		return unavailable(from, to), nil
	}
	rate, ok := t.rates.Rate(ctx, from, to)
	if !ok {
		return unavailable(from, to), nil
	}
	return fmt.Sprintf(`{"from":%q,"to":%q,"rate":%s}`, from, to, strconv.FormatFloat(rate, 'f', -1, 64)), nil
}

func unavailable(from, to string) string {
	return fmt.Sprintf("No exchange rate is available for %s to %s right now. "+
		"Present the figures in INR and tell the user the currency conversion could not be performed.", from, to)
}
