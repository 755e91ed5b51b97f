package booking

import (
	"homestay/internal/domain"
	"homestay/internal/view"
)

const (
	serviceFeePercent = 10
	cleaningFee       = domain.Money(200000)
)

// EstimateQuote is the price preview shown before booking. The backend
// computes the binding total.
func EstimateQuote(req QuoteRequest) (Quote, error) {
	if req.PricePerNight < 0 {
		return Quote{}, invalid("pricePerNight", "Price cannot be negative")
	}
	in, out, err := parseRange(req.CheckInDate, req.CheckOutDate)
	if err != nil {
		return Quote{}, err
	}

	nights := in.NightsUntil(out)
	subtotal := domain.Money(nights) * req.PricePerNight
	fee := subtotal * serviceFeePercent / 100
	total := subtotal + fee + cleaningFee
	return Quote{
		Nights:      nights,
		Subtotal:    subtotal,
		ServiceFee:  fee,
		CleaningFee: cleaningFee,
		Total:       total,
		Display:     view.FormatMoney(total),
	}, nil
}
