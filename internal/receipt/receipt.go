package receipt

// DefaultStore is used when no store name could be read from a receipt
const DefaultStore = "Receipt"

// Receipt represents a parsed receipt ready to be split
type Receipt struct {
	Store    string     `json:"store"`
	Items    []LineItem `json:"items"`
	Tax      float64    `json:"tax"`
	Discount float64    `json:"discount"`
	Tip      float64    `json:"tip"`
	Total    float64    `json:"total"`
}

// LineItem represents one purchased item on a receipt
type LineItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Image is a single uploaded receipt image
type Image struct {
	Data      []byte
	MediaType string
}

func emptyReceipt() Receipt {
	return Receipt{
		Store: DefaultStore,
		Items: []LineItem{},
	}
}
