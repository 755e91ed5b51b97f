package view

import (
	"context"
	"testing"
	"time"

	"homestay/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanel_ApplyRecomputesFromServerState(t *testing.T) {
	p := NewPanel(booking(domain.BookingConfirmed, domain.PaymentUnpaid), false)
	require.NoError(t, p.Begin(ActionSelfReportPayment))

	server := booking(domain.BookingConfirmed, domain.PaymentPendingVerification)
	assert.True(t, p.Finish(&server))

	assert.False(t, p.Busy())
	assert.Equal(t, domain.PaymentPendingVerification, p.Booking().PaymentStatus)
	assert.Empty(t, p.Projection().Actions)
}

func TestPanel_BeginGuardsDoubleSubmit(t *testing.T) {
	p := NewPanel(booking(domain.BookingConfirmed, domain.PaymentUnpaid), false)

	require.NoError(t, p.Begin(ActionSelfReportPayment))
	assert.ErrorIs(t, p.Begin(ActionSelfReportPayment), ErrBusy)

	p.Finish(nil)
	assert.NoError(t, p.Begin(ActionSelfReportPayment))
}

func TestPanel_BeginRejectsUnavailableAction(t *testing.T) {
	p := NewPanel(booking(domain.BookingPending, domain.PaymentUnpaid), false)
	assert.ErrorIs(t, p.Begin(ActionSelfReportPayment), ErrNotAllowed)

	admin := NewPanel(booking(domain.BookingConfirmed, domain.PaymentUnpaid), true)
	assert.ErrorIs(t, admin.Begin(ActionApprovePayment), ErrNotAllowed)
}

func TestPanel_DetachedDropsLateResults(t *testing.T) {
	p := NewPanel(booking(domain.BookingConfirmed, domain.PaymentUnpaid), false)
	require.NoError(t, p.Begin(ActionSelfReportPayment))

	p.Detach()
	late := booking(domain.BookingConfirmed, domain.PaymentPendingVerification)

	assert.False(t, p.Finish(&late))
	assert.False(t, p.Attached())
	assert.Equal(t, domain.PaymentUnpaid, p.Booking().PaymentStatus)
	assert.ErrorIs(t, p.Begin(ActionSelfReportPayment), ErrDetached)
}

func TestPanel_IgnoresOtherBooking(t *testing.T) {
	p := NewPanel(booking(domain.BookingConfirmed, domain.PaymentUnpaid), false)
	other := domain.Booking{ID: "b2", Status: domain.BookingCancelled}

	assert.False(t, p.Apply(other))
	assert.Equal(t, domain.ID("b1"), p.Booking().ID)
}

func TestCountdown(t *testing.T) {
	var ticks []time.Duration
	err := Countdown(context.Background(), 50*time.Millisecond, 10*time.Millisecond, func(r time.Duration) {
		ticks = append(ticks, r)
	})

	require.NoError(t, err)
	require.Len(t, ticks, 6)
	assert.Equal(t, 50*time.Millisecond, ticks[0])
	assert.Equal(t, time.Duration(0), ticks[5])
}

func TestCountdown_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Countdown(ctx, time.Hour, time.Millisecond, func(time.Duration) {
		calls++
		if calls == 3 {
			cancel()
		}
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "0 ₫", FormatMoney(0))
	assert.Equal(t, "950 ₫", FormatMoney(950))
	assert.Equal(t, "1.500.000 ₫", FormatMoney(1500000))
	assert.Equal(t, "-200.000 ₫", FormatMoney(-200000))
}
