package signal

import (
	"regexp"
	"strings"
)

// Text alerts look like:
//
//	SuperTrend BUY BTC-USD price=43000.5 limit=43100
//	Market SELL ETH-USD price=2000 dryrun=true
//	Mock BTC-USD price=100
//
// Rules are tried in order; the first keyword match owns the text. New alert
// formats are added by appending a rule and, if needed, a variant.

var (
	marketPattern = regexp.MustCompile(`^[A-Z0-9]+(?:[-/][A-Z0-9]+)?$`)
	fieldPattern  = regexp.MustCompile(`^([a-z_]+)=(\S+)$`)
)

type textRule struct {
	source  Source
	keyword *regexp.Regexp
	layout  *regexp.Regexp
}

var textRules = []textRule{
	{
		source:  SourceSuperTrend,
		keyword: regexp.MustCompile(`(?i)^supertrend\b`),
		layout:  regexp.MustCompile(`(?i)^supertrend\s+(?P<action>[a-z]+)\s+(?P<market>\S+)(?P<fields>(?:\s+\S+)*)$`),
	},
	{
		source:  SourceMarket,
		keyword: regexp.MustCompile(`(?i)^market\b`),
		layout:  regexp.MustCompile(`(?i)^market\s+(?P<action>[a-z]+)\s+(?P<market>\S+)(?P<fields>(?:\s+\S+)*)$`),
	},
	{
		source:  SourceMock,
		keyword: regexp.MustCompile(`(?i)^mock\b`),
		layout:  regexp.MustCompile(`(?i)^mock\s+(?P<market>\S+)(?P<fields>(?:\s+\S+)*)$`),
	},
}

// commonFields are accepted by every source.
var commonFields = map[string]bool{
	"price":        true,
	"interval":     true,
	"size_factor":  true,
	"price_factor": true,
	"dryrun":       true,
	"key":          true,
}

type variant struct {
	hasAction bool
	fields    map[string]bool
	build     func(action Action, fields map[string]string) (Details, error)
}

var variants = map[Source]variant{
	SourceSuperTrend: {
		hasAction: true,
		fields:    map[string]bool{"limit": true},
		build: func(action Action, fields map[string]string) (Details, error) {
			raw, ok := fields["limit"]
			if !ok {
				return nil, parseErr("limit", "", "missing")
			}
			limit, err := parseNumber("limit", raw)
			if err != nil {
				return nil, err
			}
			if limit <= 0 {
				return nil, parseErr("limit", raw, "expected a positive price")
			}
			return SuperTrendDetails{Action: action, Limit: limit}, nil
		},
	},
	SourceMarket: {
		hasAction: true,
		build: func(action Action, _ map[string]string) (Details, error) {
			return MarketDetails{Action: action}, nil
		},
	},
	SourceMock: {
		build: func(Action, map[string]string) (Details, error) {
			return MockDetails{}, nil
		},
	},
}

func matchTextAlert(text string) (rawAlert, error) {
	for _, rule := range textRules {
		if !rule.keyword.MatchString(text) {
			continue
		}
		m := rule.layout.FindStringSubmatch(text)
		if m == nil {
			return rawAlert{}, parseErr("format", text, "does not match the "+string(rule.source)+" layout")
		}
		alert := rawAlert{source: rule.source, fields: map[string]string{}}
		for i, name := range rule.layout.SubexpNames() {
			switch name {
			case "action":
				alert.action = m[i]
			case "market":
				alert.market = m[i]
			case "fields":
				for _, tok := range strings.Fields(m[i]) {
					kv := fieldPattern.FindStringSubmatch(tok)
					if kv == nil {
						return rawAlert{}, parseErr(tok, tok, "expected key=value")
					}
					if _, dup := alert.fields[kv[1]]; dup {
						return rawAlert{}, parseErr(kv[1], kv[2], "duplicate field")
					}
					alert.fields[kv[1]] = kv[2]
				}
			}
		}
		return alert, nil
	}
	word := text
	if i := strings.IndexAny(text, " \t"); i > 0 {
		word = text[:i]
	}
	return rawAlert{}, parseErr("source", word, "no alert format recognizes this keyword")
}
