package models

import (
	"strings"

	dErrors "signet/pkg/domain-errors"
	platformstrings "signet/pkg/platform/strings"
)

// CreateSubscriptionRequest is the registration payload. Secret is optional;
// the service generates one when it is absent.
type CreateSubscriptionRequest struct {
	URL    string      `json:"url"`
	Events []EventType `json:"events"`
	Secret string      `json:"secret,omitempty"`
}

func (r *CreateSubscriptionRequest) Normalize() {
	r.URL = strings.TrimSpace(r.URL)
	r.Secret = strings.TrimSpace(r.Secret)
	r.Events = platformstrings.Dedupe(r.Events)
}

func (r *CreateSubscriptionRequest) Validate() error {
	if err := ValidateURL(r.URL); err != nil {
		return err
	}
	return ValidateEvents(r.Events)
}

// UpdateSubscriptionRequest is a partial update: only supplied fields are
// replaced, and each is re-validated exactly as in create.
type UpdateSubscriptionRequest struct {
	URL    *string      `json:"url,omitempty"`
	Events *[]EventType `json:"events,omitempty"`
	Secret *string      `json:"secret,omitempty"`
}

func (r *UpdateSubscriptionRequest) Normalize() {
	if r.URL != nil {
		trimmed := strings.TrimSpace(*r.URL)
		r.URL = &trimmed
	}
	if r.Secret != nil {
		trimmed := strings.TrimSpace(*r.Secret)
		r.Secret = &trimmed
	}
	if r.Events != nil {
		deduped := platformstrings.Dedupe(*r.Events)
		r.Events = &deduped
	}
}

func (r *UpdateSubscriptionRequest) Validate() error {
	if r.URL == nil && r.Events == nil && r.Secret == nil {
		return dErrors.New(dErrors.CodeValidation, "update must supply at least one field")
	}
	if r.URL != nil {
		if err := ValidateURL(*r.URL); err != nil {
			return err
		}
	}
	if r.Events != nil {
		if err := ValidateEvents(*r.Events); err != nil {
			return err
		}
	}
	if r.Secret != nil && *r.Secret == "" {
		return dErrors.New(dErrors.CodeValidation, "secret cannot be empty")
	}
	return nil
}
