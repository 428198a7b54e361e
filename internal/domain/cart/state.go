package cart

import (
	"fmt"

	"github.com/example/storefront/internal/notification"
)

// Snapshot is an immutable copy of a cart taken at one point in time.
type Snapshot struct {
	Items   []LineItem `json:"items"`
	Total   int64      `json:"total"`
	Version int        `json:"version"`
	Epoch   uint64     `json:"epoch"`
}

func (s Snapshot) IsEmpty() bool { return len(s.Items) == 0 }

// State is the persisted form of a cart. Stores treat it as an opaque value
// saved under the shopper's session key.
type State struct {
	Items   []LineItem `json:"items"`
	Version int        `json:"version"`
	Epoch   uint64     `json:"epoch"`
}

func (c *Cart) State() State {
	return State{
		Items:   c.Items(),
		Version: c.version,
		Epoch:   c.epoch,
	}
}

// Restore rebuilds a cart from persisted state, rejecting state that breaks
// the cart invariants.
func Restore(s State, notifier notification.Notifier) (*Cart, error) {
	seen := make(map[string]struct{}, len(s.Items))
	for _, item := range s.Items {
		switch {
		case item.ProductID == "":
			return nil, ErrInvalidProduct
		case item.UnitPrice <= 0:
			return nil, fmt.Errorf("%w (product %s)", ErrInvalidPrice, item.ProductID)
		case item.Quantity < 1:
			return nil, fmt.Errorf("%w (product %s)", ErrInvalidQuantity, item.ProductID)
		}
		if _, dup := seen[item.ProductID]; dup {
			return nil, fmt.Errorf("%w: duplicate line item %s", ErrValidation, item.ProductID)
		}
		seen[item.ProductID] = struct{}{}
	}

	if _, ok := checkedTotal(s.Items); !ok {
		return nil, ErrTotalOverflow
	}

	c := New(notifier)
	if len(s.Items) > 0 {
		c.items = make([]LineItem, len(s.Items))
		copy(c.items, s.Items)
	}
	c.version = s.Version
	c.epoch = s.Epoch
	return c, nil
}
