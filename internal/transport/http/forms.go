package http

import (
	"encoding/json"
	"time"

	"competition-service/internal/domain"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

type submitForm struct {
	Answer string `json:"answer"`
}

func (f submitForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Answer, validation.Length(0, 64*1024)),
	)
}

type activityForm struct {
	ActivityType domain.ActivityType `json:"type"`
	Details      json.RawMessage     `json:"details"`
	WarningCount int                 `json:"warningCount"`
	Timestamp    *time.Time          `json:"timestamp"`
}

func (f activityForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.ActivityType, validation.Required, validation.By(func(interface{}) error {
			if !f.ActivityType.Valid() {
				return validation.NewError("validation_activity_type", "unknown activity type")
			}
			return nil
		})),
		validation.Field(&f.WarningCount, validation.Min(0)),
		validation.Field(&f.Details, validation.By(func(interface{}) error {
			if len(f.Details) > 0 && !json.Valid(f.Details) {
				return validation.NewError("validation_details", "must be valid JSON")
			}
			return nil
		}), validation.Length(0, 16*1024)),
	)
}

type disqualifyForm struct {
	Reason string `json:"reason"`
}

func (f disqualifyForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Reason, validation.Length(0, 500)),
	)
}
