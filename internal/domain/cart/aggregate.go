package cart

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/notification"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")

	ErrInvalidProduct   = fmt.Errorf("%w: product_id is required", ErrValidation)
	ErrInvalidPrice     = fmt.Errorf("%w: unit price must be positive", ErrValidation)
	ErrInvalidQuantity  = fmt.Errorf("%w: quantity must be positive", ErrValidation)
	ErrTotalOverflow    = fmt.Errorf("%w: cart total is too large", ErrValidation)
	ErrLineItemNotFound = fmt.Errorf("line item %w", ErrNotFound)
)

const maxQuantity = math.MaxInt32

// LineItem is one product entry in the cart.
type LineItem struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unit_price"` // minor currency units
	Quantity  int    `json:"quantity"`
	ImageRef  string `json:"image_url,omitempty"`
}

// Subtotal is UnitPrice x Quantity in minor units.
func (li LineItem) Subtotal() int64 {
	return li.UnitPrice * int64(li.Quantity)
}

// Cart is the shopper's cart aggregate. It is not safe for concurrent use;
// the owning session serializes access. A failed mutation leaves the cart
// unchanged.
type Cart struct {
	items    []LineItem
	version  int
	epoch    uint64
	notifier notification.Notifier
}

// New returns an empty cart. A nil notifier discards events.
func New(notifier notification.Notifier) *Cart {
	if notifier == nil {
		notifier = notification.Discard
	}
	return &Cart{notifier: notifier}
}

// AddItem merges quantity into the line item for p.ID, or appends a new line
// item when the product is not in the cart yet. The line item picks up the
// title, price and image of the newer snapshot.
func (c *Cart) AddItem(ctx context.Context, p catalog.ProductSnapshot, quantity int) error {
	if p.ID == "" {
		return ErrInvalidProduct
	}
	if p.UnitPrice <= 0 {
		return ErrInvalidPrice
	}
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	line := LineItem{
		ProductID: p.ID,
		Title:     p.Title,
		UnitPrice: p.UnitPrice,
		Quantity:  quantity,
		ImageRef:  p.ImageRef,
	}
	idx := c.indexOf(p.ID)
	if idx >= 0 {
		existing := c.items[idx].Quantity
		if existing > maxQuantity-quantity {
			return fmt.Errorf("%w: quantity for %s would exceed %d", ErrValidation, p.ID, maxQuantity)
		}
		line.Quantity += existing
	}
	if _, ok := c.totalWith(idx, line); !ok {
		return fmt.Errorf("%w (adding %s)", ErrTotalOverflow, p.ID)
	}

	if idx >= 0 {
		c.items[idx] = line
	} else {
		c.items = append(c.items, line)
	}
	c.version++

	c.notifier.Notify(ctx, notification.ItemAdded(p.Title))
	return nil
}

// RemoveItem deletes the line item for productID. Removing an absent product
// is a no-op.
func (c *Cart) RemoveItem(productID string) {
	idx := c.indexOf(productID)
	if idx < 0 {
		return
	}
	c.items = append(c.items[:idx:idx], c.items[idx+1:]...)
	c.version++
}

// SetQuantity sets the quantity of an existing line item, clamped to at least 1.
func (c *Cart) SetQuantity(productID string, qty int) error {
	idx := c.indexOf(productID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrLineItemNotFound, productID)
	}
	if qty < 1 {
		qty = 1
	}
	if qty > maxQuantity {
		return ErrInvalidQuantity
	}
	if c.items[idx].Quantity == qty {
		return nil
	}
	line := c.items[idx]
	line.Quantity = qty
	if _, ok := c.totalWith(idx, line); !ok {
		return fmt.Errorf("%w (product %s)", ErrTotalOverflow, productID)
	}
	c.items[idx].Quantity = qty
	c.version++
	return nil
}

func (c *Cart) IncrementQuantity(productID string) error {
	idx := c.indexOf(productID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrLineItemNotFound, productID)
	}
	return c.SetQuantity(productID, c.items[idx].Quantity+1)
}

// DecrementQuantity floors at 1; it never removes the line item.
func (c *Cart) DecrementQuantity(productID string) error {
	idx := c.indexOf(productID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrLineItemNotFound, productID)
	}
	return c.SetQuantity(productID, c.items[idx].Quantity-1)
}

// Total is the exact sum of unit price x quantity, in minor units.
func (c *Cart) Total() int64 {
	var total int64
	for _, item := range c.items {
		total += item.Subtotal()
	}
	return total
}

// Clear empties the cart and starts a new epoch.
func (c *Cart) Clear() {
	c.items = nil
	c.version++
	c.epoch++
}

// ClearIfEpoch clears the cart only if it has not been cleared since epoch
// was observed. It reports whether the cart was cleared.
func (c *Cart) ClearIfEpoch(epoch uint64) bool {
	if c.epoch != epoch {
		return false
	}
	c.Clear()
	return true
}

// Items returns a copy of the line items in display order.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Len() int { return len(c.items) }

func (c *Cart) Version() int { return c.version }

func (c *Cart) Epoch() uint64 { return c.epoch }

func (c *Cart) IsEmpty() bool { return len(c.items) == 0 }

// Snapshot returns a deep copy of the cart for checkout and views.
func (c *Cart) Snapshot() Snapshot {
	return Snapshot{
		Items:   c.Items(),
		Total:   c.Total(),
		Version: c.version,
		Epoch:   c.epoch,
	}
}

// totalWith computes the total as if the line item at idx were replaced by
// line, or line appended when idx < 0.
func (c *Cart) totalWith(idx int, line LineItem) (int64, bool) {
	items := c.Items()
	if idx >= 0 {
		items[idx] = line
	} else {
		items = append(items, line)
	}
	return checkedTotal(items)
}

// checkedTotal sums the line subtotals. ok is false if a subtotal or the
// total overflows int64.
func checkedTotal(items []LineItem) (total int64, ok bool) {
	for _, li := range items {
		if li.UnitPrice > math.MaxInt64/int64(li.Quantity) {
			return 0, false
		}
		sub := li.UnitPrice * int64(li.Quantity)
		if total > math.MaxInt64-sub {
			return 0, false
		}
		total += sub
	}
	return total, true
}

func (c *Cart) indexOf(productID string) int {
	for i, item := range c.items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}
