package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"venuebook/backend/internal/domain"
	"venuebook/backend/internal/service"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleItemTax(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathParam(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	tax, err := a.service.ResolveEffectiveTax(r.Context(), itemID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"item_id": itemID, "tax": tax})
}

func (a *API) handleCalculatePrice(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathParam(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	params := domain.PriceParams{RequestTime: strings.TrimSpace(query.Get("requestTime"))}
	if raw := strings.TrimSpace(query.Get("quantity")); raw != "" {
		qty, err := strconv.Atoi(raw)
		if err != nil || qty < 1 {
			a.writeError(w, r, domain.Validation("Invalid quantity", domain.FieldError{Field: "quantity", Message: "must be a positive integer"}))
			return
		}
		params.Quantity = qty
	}

	result, err := a.service.CalculatePrice(r.Context(), itemID, params)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, result)
}

func (a *API) handleValidatePricing(w http.ResponseWriter, r *http.Request) {
	var req pricingRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := validateBody(req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.service.ValidatePricingConfiguration(req.PricingType, req.Configuration); err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"valid": true})
}

func (a *API) handleSetPricing(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathParam(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req pricingRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := validateBody(req); err != nil {
		a.writeError(w, r, err)
		return
	}

	cfg, err := a.service.SetItemPricing(r.Context(), itemID, req.PricingType, req.Configuration)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, cfg)
}

func (a *API) handleAddAvailability(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathParam(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req availabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := validateBody(req); err != nil {
		a.writeError(w, r, err)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	window, err := a.service.AddAvailabilityWindow(r.Context(), domain.AvailabilityWindow{
		ItemID:    itemID,
		DayOfWeek: *req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsActive:  active,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, window)
}

func (a *API) handleAvailableSlots(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathParam(r, "itemId")
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	query := r.URL.Query()
	var details []domain.FieldError
	date, dateErr := time.Parse(time.DateOnly, strings.TrimSpace(query.Get("date")))
	if dateErr != nil {
		details = append(details, domain.FieldError{Field: "date", Message: "must be a date in YYYY-MM-DD format"})
	}
	duration := 0
	if raw := strings.TrimSpace(query.Get("duration")); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || d < 1 {
			details = append(details, domain.FieldError{Field: "duration", Message: "must be a positive number of minutes"})
		}
		duration = d
	}
	if len(details) > 0 {
		a.writeError(w, r, domain.Validation("Invalid slot query", details...))
		return
	}

	slots, err := a.service.GetAvailableSlots(r.Context(), itemID, date, duration)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{
		"item_id":  itemID,
		"date":     date.Format(time.DateOnly),
		"duration": durationOrDefault(duration),
		"slots":    slots,
	})
}

func durationOrDefault(minutes int) int {
	if minutes == 0 {
		return service.DefaultSlotMinutes
	}
	return minutes
}

func (a *API) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	if !a.bookingLimiter.Allow(clientKey(r)) {
		writeFailure(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many booking attempts", nil)
		return
	}

	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := validateBody(req); err != nil {
		a.writeError(w, r, err)
		return
	}

	booking, err := a.service.CreateBooking(r.Context(), req.toDomain())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, booking)
}

func (a *API) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	booking, err := a.service.AuthorizeBooking(r.Context(), id, r.URL.Query().Get("email"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, booking)
}

func (a *API) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	var req cancelBookingRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if _, err := a.service.AuthorizeBooking(r.Context(), id, req.CustomerEmail); err != nil {
		a.writeError(w, r, err)
		return
	}
	booking, err := a.service.CancelBooking(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, booking)
}
