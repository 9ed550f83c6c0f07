package exchange

import (
	"errors"
	"fmt"

	"tiemao/storefront/internal/domain"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// transitions is the admin-side request lifecycle. rejected, completed and
// cancelled are terminal.
var transitions = map[string][]string{
	domain.ExchangeStatusPending:   {domain.ExchangeStatusApproved, domain.ExchangeStatusRejected},
	domain.ExchangeStatusApproved:  {domain.ExchangeStatusInTransit, domain.ExchangeStatusCancelled},
	domain.ExchangeStatusInTransit: {domain.ExchangeStatusCompleted, domain.ExchangeStatusCancelled},
}

func CanTransition(from string, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func IsTerminal(status string) bool {
	return len(transitions[status]) == 0 && isKnownStatus(status)
}

func isKnownStatus(status string) bool {
	switch status {
	case domain.ExchangeStatusPending, domain.ExchangeStatusApproved, domain.ExchangeStatusRejected,
		domain.ExchangeStatusInTransit, domain.ExchangeStatusCompleted, domain.ExchangeStatusCancelled:
		return true
	}
	return false
}

// CheckTransition validates an admin status write against the lifecycle.
func CheckTransition(from string, to string) error {
	if !isKnownStatus(to) {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
