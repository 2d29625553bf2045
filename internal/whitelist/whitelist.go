// Package whitelist short-circuits spam analysis for trusted senders.
package whitelist

import (
	"net/mail"
	"strings"

	"go.uber.org/zap"
)

// Checker matches sender addresses against trusted entries. An entry is
// either a bare domain ("example.com") or a full address
// ("ceo@example.com"); matching is case-insensitive.
type Checker struct {
	domains   map[string]struct{}
	addresses map[string]struct{}
	logger    *zap.Logger
}

// NewChecker builds a checker from configured entries.
func NewChecker(entries []string, logger *zap.Logger) *Checker {
	c := &Checker{
		domains:   make(map[string]struct{}),
		addresses: make(map[string]struct{}),
		logger:    logger,
	}
	for _, raw := range entries {
		entry := strings.ToLower(strings.TrimSpace(raw))
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "@") {
			c.addresses[entry] = struct{}{}
		} else {
			c.domains[entry] = struct{}{}
		}
	}
	if len(entries) > 0 && logger != nil {
		logger.Info("initialized whitelist checker",
			zap.Int("domains", len(c.domains)),
			zap.Int("addresses", len(c.addresses)))
	}
	return c
}

// IsWhitelisted reports whether the sender is trusted. The sender may
// be a bare address or an RFC 5322 form with a display name.
func (c *Checker) IsWhitelisted(sender string) bool {
	if len(c.domains) == 0 && len(c.addresses) == 0 {
		return false
	}

	addr := CanonicalAddress(sender)
	if addr == "" {
		return false
	}
	if _, ok := c.addresses[addr]; ok {
		c.debug("sender address is whitelisted", addr)
		return true
	}
	at := strings.LastIndex(addr, "@")
	if at < 0 {
		return false
	}
	if _, ok := c.domains[addr[at+1:]]; ok {
		c.debug("sender domain is whitelisted", addr)
		return true
	}
	return false
}

func (c *Checker) debug(msg, addr string) {
	if c.logger != nil {
		c.logger.Debug(msg, zap.String("sender", addr))
	}
}

// CanonicalAddress reduces a sender string to a lowercase bare address,
// stripping any display name. Unparseable senders are lowercased and
// trimmed as-is.
func CanonicalAddress(sender string) string {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return ""
	}
	if parsed, err := mail.ParseAddress(sender); err == nil {
		return strings.ToLower(parsed.Address)
	}
	return strings.ToLower(sender)
}
