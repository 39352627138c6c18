package types

import (
	"encoding/json"

	"github.com/angelmondragon/loyalty-portal/pkg/enums"
)

// Weekdays lists the days of a business week in display order.
var Weekdays = [7]string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// Address is the postal address of a business.
type Address struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// DayHours is one row of the weekly opening hours table.
type DayHours struct {
	Day    string `json:"day"`
	Open   string `json:"open"`
	Close  string `json:"close"`
	IsOpen bool   `json:"isOpen"`
}

// WeeklyHours holds exactly one entry per weekday.
type WeeklyHours [7]DayHours

// DefaultWeeklyHours opens weekdays 09:00-18:00 and closes weekends.
func DefaultWeeklyHours() WeeklyHours {
	var hours WeeklyHours
	for i, day := range Weekdays {
		hours[i] = DayHours{
			Day:    day,
			Open:   "09:00",
			Close:  "18:00",
			IsOpen: i < 5,
		}
	}
	return hours
}

// BusinessProfile is a merchant business as known to the loyalty API.
type BusinessProfile struct {
	ID            string               `json:"_id,omitempty"`
	BusinessName  string               `json:"businessName"`
	BusinessType  string               `json:"businessType"`
	Category      string               `json:"category"`
	Email         string               `json:"email"`
	Phone         string               `json:"phone"`
	Website       string               `json:"website,omitempty"`
	Address       Address              `json:"address"`
	Description   string               `json:"description"`
	BusinessHours WeeklyHours          `json:"businessHours"`
	Status        enums.BusinessStatus `json:"status,omitempty"`
	LogoURL       string               `json:"logo,omitempty"`
	BannerURL     string               `json:"banner,omitempty"`
}

// UnmarshalJSON accepts both "_id" and "id".
func (b *BusinessProfile) UnmarshalJSON(data []byte) error {
	type alias BusinessProfile
	var raw struct {
		alias
		PlainID string `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = BusinessProfile(raw.alias)
	if b.ID == "" {
		b.ID = raw.PlainID
	}
	return nil
}
