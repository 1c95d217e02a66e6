// Package route maps original envelope recipients to forward destinations
// using a four-tier rule table: exact address, "@domain", bare local part,
// and the "@" catch-all.
package route

import (
	"strings"
)

// Result holds the outcome of resolving one invocation's recipients.
// Original is the last envelope recipient that matched a rule; it is the
// empty string when no rule matched and Recipients fell back to the
// original envelope list.
type Result struct {
	Original   string
	Recipients []string
}

// Table is an immutable forward-mapping lookup table.
type Table struct {
	mapping       map[string][]string
	allowPlusSign bool
}

// New builds a Table from a mapping of lookup keys to destination lists.
// Keys are lower-cased; destination order is preserved. When allowPlusSign
// is set, a "+suffix" segment in the local part is stripped before lookup.
func New(mapping map[string][]string, allowPlusSign bool) *Table {
	m := make(map[string][]string, len(mapping))
	for key, dests := range mapping {
		m[strings.ToLower(key)] = dests
	}
	return &Table{mapping: m, allowPlusSign: allowPlusSign}
}

// Resolve maps the original envelope recipients to forward destinations.
// Destinations are unioned across recipients in order, de-duplicated. When
// no recipient matches any rule, the original recipient list is returned
// unchanged so delivery is still attempted.
func (t *Table) Resolve(originalRecipients []string) Result {
	var result Result
	seen := make(map[string]bool)

	for _, recipient := range originalRecipients {
		dests, ok := t.lookup(recipient)
		if !ok {
			continue
		}
		result.Original = recipient
		for _, dest := range dests {
			if seen[dest] {
				continue
			}
			seen[dest] = true
			result.Recipients = append(result.Recipients, dest)
		}
	}

	if len(result.Recipients) == 0 {
		result.Recipients = originalRecipients
	}
	return result
}

// lookup resolves a single recipient address against the mapping tiers in
// priority order, first match wins.
func (t *Table) lookup(addr string) ([]string, bool) {
	key := strings.ToLower(addr)

	// The last "@" is the domain boundary; addresses with multiple "@"
	// characters keep everything before it as the local part.
	at := strings.LastIndex(key, "@")

	if t.allowPlusSign && at > 0 {
		local := key[:at]
		if plus := strings.Index(local, "+"); plus >= 0 {
			key = local[:plus] + key[at:]
			at = strings.LastIndex(key, "@")
		}
	}

	if dests, ok := t.mapping[key]; ok {
		return dests, true
	}

	if at >= 0 {
		if dests, ok := t.mapping[key[at:]]; ok {
			return dests, true
		}
		if dests, ok := t.mapping[key[:at]]; ok {
			return dests, true
		}
	}

	if dests, ok := t.mapping["@"]; ok {
		return dests, true
	}
	return nil, false
}
