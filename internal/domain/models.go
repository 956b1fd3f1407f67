package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// money renders an amount as a JSON number rather than decimal's default
// quoted string.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

type TaxMode int

const (
	TaxInherit TaxMode = iota
	TaxExempt
	TaxOverride
)

// TaxSetting is the tri-state tax configuration of a catalog node. Only
// TaxOverride carries a meaningful percentage; TaxExempt keeps whatever was
// stored so it round-trips through the database unchanged.
type TaxSetting struct {
	Mode       TaxMode
	Percentage decimal.Decimal
}

func InheritTax() TaxSetting { return TaxSetting{Mode: TaxInherit} }

func ExemptTax() TaxSetting { return TaxSetting{Mode: TaxExempt} }

func OverrideTax(percentage decimal.Decimal) TaxSetting {
	return TaxSetting{Mode: TaxOverride, Percentage: percentage}
}

// TaxSettingFromColumns maps the nullable storage pair onto a TaxSetting.
// A NULL applicable flag means inherit; a NULL percentage reads as zero.
func TaxSettingFromColumns(applicable *bool, percentage *decimal.Decimal) TaxSetting {
	pct := decimal.Zero
	if percentage != nil {
		pct = *percentage
	}
	switch {
	case applicable == nil:
		return TaxSetting{Mode: TaxInherit, Percentage: pct}
	case *applicable:
		return TaxSetting{Mode: TaxOverride, Percentage: pct}
	default:
		return TaxSetting{Mode: TaxExempt, Percentage: pct}
	}
}

// Columns is the inverse of TaxSettingFromColumns.
func (t TaxSetting) Columns() (*bool, *decimal.Decimal) {
	if t.Mode == TaxInherit {
		return nil, nil
	}
	applicable := t.Mode == TaxOverride
	pct := t.Percentage
	return &applicable, &pct
}

func (t TaxSetting) MarshalJSON() ([]byte, error) {
	applicable, pct := t.Columns()
	var percentage *json.Number
	if pct != nil {
		n := money(*pct)
		percentage = &n
	}
	return json.Marshal(struct {
		Applicable *bool        `json:"applicable"`
		Percentage *json.Number `json:"percentage"`
	}{applicable, percentage})
}

type Category struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Tax         TaxSetting `json:"tax"`
	IsActive    bool       `json:"is_active"`
}

type Subcategory struct {
	ID          string     `json:"id"`
	CategoryID  string     `json:"category_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Tax         TaxSetting `json:"tax"`
	IsActive    bool       `json:"is_active"`
}

// Item has exactly one parent: CategoryID or SubcategoryID is set, never both.
type Item struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	CategoryID    string     `json:"category_id,omitempty"`
	SubcategoryID string     `json:"subcategory_id,omitempty"`
	Tax           TaxSetting `json:"tax"`
	IsActive      bool       `json:"is_active"`
	IsBookable    bool       `json:"is_bookable"`
}

// ItemWithParents is an item joined with its ancestry. Category is set for
// items attached directly to a category; Subcategory and SubcategoryCategory
// are set for items attached to a subcategory.
type ItemWithParents struct {
	Item                Item
	Category            *Category
	Subcategory         *Subcategory
	SubcategoryCategory *Category
}

type EffectiveTax struct {
	Applicable bool            `json:"applicable"`
	Percentage decimal.Decimal `json:"percentage"`
}

func (e EffectiveTax) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Applicable bool        `json:"applicable"`
		Percentage json.Number `json:"percentage"`
	}{e.Applicable, money(e.Percentage)})
}

type PricingType string

const (
	PricingStatic        PricingType = "static"
	PricingTiered        PricingType = "tiered"
	PricingDynamic       PricingType = "dynamic"
	PricingComplimentary PricingType = "complimentary"
	PricingDiscounted    PricingType = "discounted"
)

type PricingConfig struct {
	ItemID        string          `json:"item_id"`
	Type          PricingType     `json:"pricing_type"`
	Configuration json.RawMessage `json:"configuration"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// PriceParams are the caller-supplied inputs to a price calculation. Zero
// Quantity means 1; empty RequestTime means the current time of day.
type PriceParams struct {
	Quantity    int    `json:"quantity,omitempty"`
	RequestTime string `json:"requestTime,omitempty"`
}

type TaxLine struct {
	Applicable bool            `json:"applicable"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

func (l TaxLine) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Applicable bool        `json:"applicable"`
		Percentage json.Number `json:"percentage"`
		Amount     json.Number `json:"amount"`
	}{l.Applicable, money(l.Percentage), money(l.Amount)})
}

type PriceResult struct {
	ItemID      string          `json:"itemId"`
	PricingType PricingType     `json:"pricingType"`
	BasePrice   decimal.Decimal `json:"basePrice"`
	Discount    decimal.Decimal `json:"discount"`
	FinalPrice  decimal.Decimal `json:"finalPrice"`
	AppliedRule string          `json:"appliedRule"`
	Tax         TaxLine         `json:"tax"`
	GrandTotal  decimal.Decimal `json:"grandTotal"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

func (p PriceResult) MarshalJSON() ([]byte, error) {
	type plain PriceResult
	return json.Marshal(struct {
		plain
		BasePrice  json.Number `json:"basePrice"`
		Discount   json.Number `json:"discount"`
		FinalPrice json.Number `json:"finalPrice"`
		GrandTotal json.Number `json:"grandTotal"`
	}{plain(p), money(p.BasePrice), money(p.Discount), money(p.FinalPrice), money(p.GrandTotal)})
}

// AvailabilityWindow is a weekly opening-hours block. DayOfWeek follows
// time.Weekday (0 = Sunday); times are "HH:MM" wall-clock UTC.
type AvailabilityWindow struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	DayOfWeek int       `json:"day_of_week"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type Booking struct {
	ID              string        `json:"id"`
	ItemID          string        `json:"item_id"`
	BookingTime     time.Time     `json:"booking_time"`
	DurationMinutes int           `json:"duration_minutes"`
	Status          BookingStatus `json:"status"`
	CustomerName    string        `json:"customer_name"`
	CustomerEmail   string        `json:"customer_email"`
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	CancelledAt     *time.Time    `json:"cancelled_at,omitempty"`
}

func (b Booking) EndTime() time.Time {
	return b.BookingTime.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

type BookingRequest struct {
	ItemID          string    `json:"item_id"`
	BookingTime     time.Time `json:"booking_time"`
	DurationMinutes int       `json:"duration_minutes"`
	CustomerName    string    `json:"customer_name"`
	CustomerEmail   string    `json:"customer_email"`
	Notes           string    `json:"notes,omitempty"`
}

type Slot struct {
	StartTime    time.Time    `json:"startTime"`
	EndTime      time.Time    `json:"endTime"`
	Available    bool         `json:"available"`
	PriceDetails *PriceResult `json:"priceDetails,omitempty"`
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// RoleAdmin may manage pricing, availability and any booking.
const RoleAdmin = "admin"

// Actor is the authenticated caller of an admin operation.
type Actor struct {
	Subject string `json:"subject"`
	Role    string `json:"role"`
}
