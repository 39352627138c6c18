package onboarding

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/loyalty-portal/pkg/enums"
	pkgerrors "github.com/angelmondragon/loyalty-portal/pkg/errors"
	"github.com/angelmondragon/loyalty-portal/pkg/types"
	"github.com/angelmondragon/loyalty-portal/pkg/validate"
)

// BasicInfo is step 1 of the wizard.
type BasicInfo struct {
	BusinessName string `json:"businessName" validate:"required"`
	BusinessType string `json:"businessType" validate:"required"`
	Category     string `json:"category" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required"`
	Website      string `json:"website,omitempty" validate:"omitempty,url"`
}

// Details is step 3 of the wizard.
type Details struct {
	Description string            `json:"description" validate:"required"`
	Hours       types.WeeklyHours `json:"businessHours"`
}

// Draft accumulates the business profile across steps 1 to 3.
type Draft struct {
	BasicInfo BasicInfo     `json:"basicInfo"`
	Address   types.Address `json:"address"`
	Details   Details       `json:"details"`
}

func newDraft(email, phone string) Draft {
	return Draft{
		BasicInfo: BasicInfo{Email: email, Phone: phone},
		Details:   Details{Hours: types.DefaultWeeklyHours()},
	}
}

// Profile converts the draft to the create-profile payload.
func (d Draft) Profile() types.BusinessProfile {
	return types.BusinessProfile{
		BusinessName:  strings.TrimSpace(d.BasicInfo.BusinessName),
		BusinessType:  strings.TrimSpace(d.BasicInfo.BusinessType),
		Category:      strings.TrimSpace(d.BasicInfo.Category),
		Email:         strings.TrimSpace(d.BasicInfo.Email),
		Phone:         strings.TrimSpace(d.BasicInfo.Phone),
		Website:       strings.TrimSpace(d.BasicInfo.Website),
		Address:       d.Address,
		Description:   strings.TrimSpace(d.Details.Description),
		BusinessHours: d.Details.Hours,
	}
}

// SetBasicInfo replaces the step 1 fields.
func (c *Controller) SetBasicInfo(info BasicInfo) error {
	return c.edit(func(d *Draft) error {
		d.BasicInfo = info
		return nil
	})
}

// SetAddress replaces the step 2 fields.
func (c *Controller) SetAddress(address types.Address) error {
	return c.edit(func(d *Draft) error {
		d.Address = address
		return nil
	})
}

// SetDescription replaces the free-text description.
func (c *Controller) SetDescription(description string) error {
	return c.edit(func(d *Draft) error {
		d.Details.Description = description
		return nil
	})
}

// SetHours replaces the whole weekly table. Day names are normalized.
func (c *Controller) SetHours(hours types.WeeklyHours) error {
	return c.edit(func(d *Draft) error {
		for i := range hours {
			hours[i].Day = types.Weekdays[i]
		}
		d.Details.Hours = hours
		return nil
	})
}

// SetDayHours replaces one weekday, 0 being Monday.
func (c *Controller) SetDayHours(day int, hours types.DayHours) error {
	return c.edit(func(d *Draft) error {
		if day < 0 || day >= len(types.Weekdays) {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("day %d out of range", day))
		}
		hours.Day = types.Weekdays[day]
		d.Details.Hours[day] = hours
		return nil
	})
}

// edit applies a local change. The draft is editable until it is submitted.
func (c *Controller) edit(fn func(d *Draft) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		return c.conflictLocked("wait for the current request to finish")
	}
	if c.phase != enums.OnboardingPhaseAwaitingProfile {
		return c.conflictLocked("the business profile can no longer be edited")
	}
	draft := c.draft
	if err := fn(&draft); err != nil {
		return err
	}
	c.draft = draft
	return nil
}

// validateStep checks the fields owned by step. Keys of the returned map
// are json field paths.
func validateStep(step int, d Draft) map[string]string {
	switch step {
	case StepBasicInfo:
		return prefixed("", validate.Fields(validate.Struct(d.BasicInfo)))
	case StepAddress:
		return prefixed("address.", validate.Fields(validate.Struct(d.Address)))
	case StepDetails:
		fields := prefixed("", validate.Fields(validate.Struct(d.Details)))
		for field, msg := range validateHours(d.Details.Hours) {
			if fields == nil {
				fields = map[string]string{}
			}
			fields[field] = msg
		}
		return fields
	}
	return nil
}

func validateHours(hours types.WeeklyHours) map[string]string {
	var fields map[string]string
	add := func(field, msg string) {
		if fields == nil {
			fields = map[string]string{}
		}
		fields[field] = msg
	}
	for i, day := range hours {
		if !day.IsOpen {
			continue
		}
		key := "businessHours." + types.Weekdays[i]
		switch {
		case !validate.IsClock(day.Open):
			add(key+".open", "must be a time in HH:MM format")
		case !validate.IsClock(day.Close):
			add(key+".close", "must be a time in HH:MM format")
		case day.Open >= day.Close:
			add(key, "must open before it closes")
		}
	}
	return fields
}

func prefixed(prefix string, fields map[string]string) map[string]string {
	if len(fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(fields))
	for field, msg := range fields {
		out[prefix+field] = msg
	}
	return out
}

func stepValidationError(fields map[string]string) error {
	message := "Please complete the required fields."
	if len(fields) == 1 {
		for field, msg := range fields {
			message = fmt.Sprintf("%s %s", field, msg)
		}
	}
	return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(fields)
}
