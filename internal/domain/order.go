package domain

// OrderProduct is one entry of the "products" JSON field sent to the order API.
type OrderProduct struct {
	ProductID              string            `json:"productId"`
	Quantity               int               `json:"quantity"`
	SelectedCustomizations map[string]string `json:"selected_customizations"`
	UserCustomizationType  string            `json:"user_customization_type"`
	UserCustomizationValue string            `json:"user_customization_value"`
	IndividualPrice        float64           `json:"individual_price"`
}

// Shopper identifies who is placing the order.
type Shopper struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,max=32"`
	Address string `json:"address" validate:"required,max=1000"`
}

// DesignFile is an uploaded design attached to the order for one line.
type DesignFile struct {
	LineID      string
	Filename    string
	ContentType string
	Data        []byte
}

// OrderRequest is the complete multipart submission.
type OrderRequest struct {
	Products     []OrderProduct
	Shopper      Shopper
	TotalPrice   float64
	DiscountCode string
	Designs      []DesignFile
}

// OrderConfirmation is the order API's success answer.
type OrderConfirmation struct {
	OrderID string `json:"orderId"`
}
