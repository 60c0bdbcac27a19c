package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrParse is wrapped by every ParseError.
var ErrParse = errors.New("signal: parse error")

// ParseError names the alert field that did not fit the grammar.
type ParseError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("signal: field %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("signal: field %q (%q): %s", e.Field, e.Value, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

func parseErr(field, value, reason string) *ParseError {
	return &ParseError{Field: field, Value: value, Reason: reason}
}

// Defaults are overlaid onto every parsed alert unless the alert overrides them.
type Defaults struct {
	Interval            int
	RoundingFactorSize  int64
	RoundingFactorPrice int64
	DryRun              bool
	EmitKey             string
}

// Parser turns raw alert descriptions into Inputs. It holds no mutable state and is safe for concurrent use.
type Parser struct {
	base Defaults
}

// NewParser builds a parser overlaying alerts onto base.
func NewParser(base Defaults) *Parser {
	return &Parser{base: base}
}

// Defaults returns the base configuration the parser overlays onto.
func (p *Parser) Defaults() Defaults { return p.base }

// Parse converts a raw description into an Input. On failure the returned Input is always zero.
func (p *Parser) Parse(raw string) (Input, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Input{}, parseErr("description", "", "empty alert")
	}

	var (
		alert rawAlert
		err   error
	)
	if strings.HasPrefix(text, "{") {
		alert, err = decodeJSONAlert(text)
	} else {
		alert, err = matchTextAlert(text)
	}
	if err != nil {
		return Input{}, err
	}

	in, err := p.assemble(alert)
	if err != nil {
		return Input{}, err
	}
	return in, nil
}

// FromDetails builds an Input from an already structured alert, applying the parser defaults.
func (p *Parser) FromDetails(market string, price float64, details Details) (Input, error) {
	if details == nil {
		return Input{}, parseErr("details", "", "missing")
	}
	mkt, ok := normalizeMarket(market)
	if !ok {
		return Input{}, parseErr("market", market, "expected a symbol such as BTC-USD")
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return Input{}, parseErr("price", strconv.FormatFloat(price, 'g', -1, 64), "not a finite number")
	}
	in := p.base.input()
	in.Market = mkt
	in.Price = price
	in.Source = details.Source()
	in.Details = details
	return in, nil
}

func (d Defaults) input() Input {
	return Input{
		Interval:            d.Interval,
		RoundingFactorSize:  d.RoundingFactorSize,
		RoundingFactorPrice: d.RoundingFactorPrice,
		DryRun:              d.DryRun,
		EmitKey:             d.EmitKey,
	}
}

// rawAlert is the grammar-neutral shape both the text and JSON forms reduce to.
type rawAlert struct {
	source Source
	market string
	action string
	fields map[string]string
}

func (p *Parser) assemble(alert rawAlert) (Input, error) {
	v, ok := variants[alert.source]
	if !ok {
		return Input{}, parseErr("source", string(alert.source), "unsupported source")
	}
	for key := range alert.fields {
		if !commonFields[key] && !v.fields[key] {
			return Input{}, parseErr(key, alert.fields[key], fmt.Sprintf("unknown field for %s", alert.source))
		}
	}

	in := p.base.input()
	in.Source = alert.source

	mkt, ok := normalizeMarket(alert.market)
	if !ok {
		return Input{}, parseErr("market", alert.market, "expected a symbol such as BTC-USD")
	}
	in.Market = mkt

	rawPrice, ok := alert.fields["price"]
	if !ok {
		return Input{}, parseErr("price", "", "missing")
	}
	price, err := parseNumber("price", rawPrice)
	if err != nil {
		return Input{}, err
	}
	in.Price = price

	if raw, ok := alert.fields["interval"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Input{}, parseErr("interval", raw, "expected a non-negative integer")
		}
		in.Interval = n
	}
	if raw, ok := alert.fields["size_factor"]; ok {
		if in.RoundingFactorSize, err = parseFactor("size_factor", raw); err != nil {
			return Input{}, err
		}
	}
	if raw, ok := alert.fields["price_factor"]; ok {
		if in.RoundingFactorPrice, err = parseFactor("price_factor", raw); err != nil {
			return Input{}, err
		}
	}
	if raw, ok := alert.fields["dryrun"]; ok {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return Input{}, parseErr("dryrun", raw, "expected a boolean")
		}
		in.DryRun = b
	}
	if raw, ok := alert.fields["key"]; ok {
		in.EmitKey = raw
	}

	var action Action
	if v.hasAction {
		a, ok := ParseAction(alert.action)
		if !ok {
			return Input{}, parseErr("action", alert.action, "expected BUY or SELL")
		}
		action = a
	} else if alert.action != "" {
		return Input{}, parseErr("action", alert.action, fmt.Sprintf("%s alerts take no action", alert.source))
	}

	details, err := v.build(action, alert.fields)
	if err != nil {
		return Input{}, err
	}
	in.Details = details
	return in, nil
}

func parseNumber(field, raw string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, parseErr(field, raw, "expected a finite number")
	}
	return f, nil
}

func parseFactor(field, raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, parseErr(field, raw, "expected a positive integer")
	}
	return n, nil
}

func normalizeMarket(raw string) (string, bool) {
	m := strings.ToUpper(strings.TrimSpace(raw))
	if !marketPattern.MatchString(m) {
		return "", false
	}
	return strings.ReplaceAll(m, "/", "-"), true
}

// jsonAlert mirrors the webhook body; pointer fields distinguish absent keys from zero values.
type jsonAlert struct {
	Source              string          `json:"source"`
	Market              string          `json:"market"`
	Price               *flexNumber     `json:"price"`
	Interval            *flexNumber     `json:"interval"`
	RoundingFactorSize  *flexNumber     `json:"roundingFactorSize"`
	RoundingFactorPrice *flexNumber     `json:"roundingFactorPrice"`
	DryRun              *bool           `json:"dryrun"`
	EmitKey             *string         `json:"emitKey"`
	Details             json.RawMessage `json:"details"`
}

type jsonDetails struct {
	Action *string     `json:"action"`
	Limit  *flexNumber `json:"limit"`
}

// flexNumber accepts 42, 42.5 and "42.5"; TradingView placeholders render as strings.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = flexNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = flexNumber(num.String())
	return nil
}

func decodeJSONAlert(text string) (rawAlert, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.DisallowUnknownFields()
	var body jsonAlert
	if err := dec.Decode(&body); err != nil {
		return rawAlert{}, parseErr("json", "", err.Error())
	}
	if dec.More() {
		return rawAlert{}, parseErr("json", "", "trailing data after alert object")
	}

	src, ok := ParseSource(body.Source)
	if !ok {
		return rawAlert{}, parseErr("source", body.Source, "unsupported source")
	}
	alert := rawAlert{source: src, market: body.Market, fields: map[string]string{}}
	if body.Price != nil {
		alert.fields["price"] = string(*body.Price)
	}
	if body.Interval != nil {
		alert.fields["interval"] = string(*body.Interval)
	}
	if body.RoundingFactorSize != nil {
		alert.fields["size_factor"] = string(*body.RoundingFactorSize)
	}
	if body.RoundingFactorPrice != nil {
		alert.fields["price_factor"] = string(*body.RoundingFactorPrice)
	}
	if body.DryRun != nil {
		alert.fields["dryrun"] = strconv.FormatBool(*body.DryRun)
	}
	if body.EmitKey != nil {
		alert.fields["key"] = *body.EmitKey
	}

	if len(body.Details) > 0 && !bytes.Equal(bytes.TrimSpace(body.Details), []byte("null")) {
		ddec := json.NewDecoder(bytes.NewReader(body.Details))
		ddec.DisallowUnknownFields()
		var details jsonDetails
		if err := ddec.Decode(&details); err != nil {
			return rawAlert{}, parseErr("details", "", err.Error())
		}
		if details.Action != nil {
			alert.action = *details.Action
			if alert.action == "" {
				return rawAlert{}, parseErr("action", "", "expected BUY or SELL")
			}
		}
		if details.Limit != nil {
			alert.fields["limit"] = string(*details.Limit)
		}
	}
	return alert, nil
}
