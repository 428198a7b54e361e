package command

// Cart Commands
type AddToCart struct {
	SessionKey string `json:"-"`
	Slug       string `json:"slug,omitempty"`
	ProductID  string `json:"product_id,omitempty"`
	Quantity   int    `json:"quantity"`
}

type RemoveFromCart struct {
	SessionKey string `json:"-"`
	ProductID  string `json:"product_id"`
}

type SetQuantity struct {
	SessionKey string `json:"-"`
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
}

type IncrementQuantity struct {
	SessionKey string `json:"-"`
	ProductID  string `json:"product_id"`
}

type DecrementQuantity struct {
	SessionKey string `json:"-"`
	ProductID  string `json:"product_id"`
}

type ClearCart struct {
	SessionKey string `json:"-"`
}

// Checkout Commands
type StartCheckout struct {
	SessionKey string `json:"-"`
}

type CancelCheckout struct {
	SessionKey string `json:"-"`
	CheckoutID string `json:"session_id"`
}

type ConfirmCheckout struct {
	SessionKey string `json:"-"`
	CheckoutID string `json:"session_id"`
}
