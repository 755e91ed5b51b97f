package admin

import (
	"homestay/internal/domain"
	"homestay/internal/view"
)

// Query selects a review list. The zero value is the payment approval queue.
type Query struct {
	Status domain.PaymentStatus `form:"status"`
}

// Item is a queue row with the reviewer's projection.
type Item struct {
	Booking    domain.Booking  `json:"booking"`
	Projection view.Projection `json:"projection"`
	Amount     string          `json:"amount"`
}

func NewItem(b domain.Booking) Item {
	return Item{Booking: b, Projection: view.ProjectForAdmin(b), Amount: view.FormatMoney(b.TotalPrice)}
}

func NewItems(list []domain.Booking) []Item {
	items := make([]Item, 0, len(list))
	for _, b := range list {
		items = append(items, NewItem(b))
	}
	return items
}

type VerifyRequest struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
}
