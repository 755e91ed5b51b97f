package admin

import (
	"errors"

	"homestay/internal/modules/payment"
)

var (
	ErrForbidden   = payment.ErrForbidden
	ErrNotSelected = errors.New("no booking is selected")
)
