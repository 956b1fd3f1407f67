package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venuebook/backend/internal/domain"
)

func slotStarts(slots []domain.Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.StartTime.Format("15:04"))
	}
	return out
}

func TestSlotsWindowExactlyOneDuration(t *testing.T) {
	f := newFixture(t)
	f.addWindow(t, itemRoom, time.Monday, "09:00", "10:00")

	slots, err := f.svc.GetAvailableSlots(context.Background(), itemRoom, testMonday, 60)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, testMonday.Add(9*time.Hour), slots[0].StartTime)
	assert.Equal(t, testMonday.Add(10*time.Hour), slots[0].EndTime)
	assert.True(t, slots[0].Available)
	require.NotNil(t, slots[0].PriceDetails)
	assert.Equal(t, "1000", slots[0].PriceDetails.FinalPrice.String())
}

func TestSlotsWindowShorterThanDuration(t *testing.T) {
	f := newFixture(t)
	f.addWindow(t, itemRoom, time.Monday, "09:00", "09:50")

	slots, err := f.svc.GetAvailableSlots(context.Background(), itemRoom, testMonday, 60)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestSlotsStepThirtyMinutesWithinWindow(t *testing.T) {
	f := newFixture(t)
	f.addWindow(t, itemRoom, time.Monday, "09:00", "11:15")

	slots, err := f.svc.GetAvailableSlots(context.Background(), itemRoom, testMonday, 60)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30", "10:00"}, slotStarts(slots))
}

func TestSlotsSkipBookedIntervals(t *testing.T) {
	f := newFixture(t)
	f.addWindow(t, itemRoom, time.Monday, "09:00", "13:00")
	f.book(t, itemRoom, testMonday.Add(10*time.Hour), 60)

	slots, err := f.svc.GetAvailableSlots(context.Background(), itemRoom, testMonday, 60)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "11:00", "11:30", "12:00"}, slotStarts(slots))
}

func TestSlotsSkipPastStarts(t *testing.T) {
	f := newFixture(t)
	f.addWindow(t, itemRoom, time.Monday, "09:00", "13:00")
	*f.clock = testMonday.Add(11*time.Hour + 10*time.Minute)

	slots, err := f.svc.GetAvailableSlots(context.Background(), itemRoom, testMonday, 60)
	require.NoError(t, err)
	assert.Equal(t, []string{"11:30", "12:00"}, slotStarts(slots))
}

func TestSlotsDropUnpricedTimes(t *testing.T) {
	f := newFixture(t)
	f.setPricing(t, itemRoom, domain.PricingDynamic, `{"time_slots":[{"start_time":"09:00","end_time":"10:00","price":100},{"start_time":"11:00","end_time":"12:00","price":300}]}`)
	f.addWindow(t, itemRoom, time.Monday, "09:00", "12:00")

	slots, err := f.svc.GetAvailableSlots(context.Background(), itemRoom, testMonday, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30", "11:00", "11:30"}, slotStarts(slots))
	assert.Equal(t, "300", slots[3].PriceDetails.FinalPrice.String())
}

func TestSlotsAreStableWithoutNewBookings(t *testing.T) {
	f := newFixture(t)
	f.addWindow(t, itemRoom, time.Monday, "09:00", "12:00")
	f.addWindow(t, itemRoom, time.Monday, "14:00", "16:00")
	f.book(t, itemRoom, testMonday.Add(10*time.Hour), 30)

	first, err := f.svc.GetAvailableSlots(context.Background(), itemRoom, testMonday, 45)
	require.NoError(t, err)
	second, err := f.svc.GetAvailableSlots(context.Background(), itemRoom, testMonday, 45)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestSlotsDefaultDurationAndEmptyDay(t *testing.T) {
	f := newFixture(t)
	f.addWindow(t, itemRoom, time.Monday, "09:00", "10:00")

	slots, err := f.svc.GetAvailableSlots(context.Background(), itemRoom, testMonday.Add(15*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, slots, 1, "zero duration means 60 minutes")

	tuesday, err := f.svc.GetAvailableSlots(context.Background(), itemRoom, testMonday.AddDate(0, 0, 1), 60)
	require.NoError(t, err)
	assert.NotNil(t, tuesday)
	assert.Empty(t, tuesday)
}

func TestSlotsRequireBookableActiveItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetAvailableSlots(ctx, itemStatic, testMonday, 60)
	assert.ErrorIs(t, err, domain.ErrBusinessRule)

	_, err = f.svc.GetAvailableSlots(ctx, itemHidden, testMonday, 60)
	assert.ErrorIs(t, err, domain.ErrBusinessRule)

	_, err = f.svc.GetAvailableSlots(ctx, "ghost", testMonday, 60)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.GetAvailableSlots(ctx, itemRoom, testMonday, -5)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSlotsMissingPricingFailsCall(t *testing.T) {
	f := newFixture(t)
	f.addWindow(t, itemNoPricing, time.Monday, "09:00", "10:00")

	_, err := f.svc.GetAvailableSlots(context.Background(), itemNoPricing, testMonday, 60)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWindowCandidatesStopsEarly(t *testing.T) {
	seq, err := windowCandidates(testMonday, domain.AvailabilityWindow{StartTime: "08:00", EndTime: "20:00"}, time.Hour)
	require.NoError(t, err)

	n := 0
	for range seq {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)

	_, err = windowCandidates(testMonday, domain.AvailabilityWindow{StartTime: "8am", EndTime: "20:00"}, time.Hour)
	assert.Error(t, err)
}
