package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Resource states and visibilities. Stored inside the Fields column, not
// as dedicated columns, to stay compatible with rows written before the
// typed fields variants existed.
const (
	StateDraft     = "draft"
	StatePublished = "published"
	StateArchived  = "archived"
	StateDeleted   = "deleted"

	VisibilityPublic   = "public"
	VisibilityPrivate  = "private"
	VisibilityUnlisted = "unlisted"
)

// Known resource type tags.
const (
	TypePost          = "post"
	TypeLesson        = "lesson"
	TypeWorkshop      = "workshop"
	TypeTutorial      = "tutorial"
	TypeSection       = "section"
	TypeList          = "list"
	TypeTip           = "tip"
	TypeEvent         = "event"
	TypeCohort        = "cohort"
	TypePage          = "page"
	TypePrompt        = "prompt"
	TypeEmail         = "email"
	TypeProduct       = "product"
	TypeVideoResource = "videoResource"
)

var resourceTypes = map[string]bool{
	TypePost: true, TypeLesson: true, TypeWorkshop: true, TypeTutorial: true,
	TypeSection: true, TypeList: true, TypeTip: true, TypeEvent: true,
	TypeCohort: true, TypePage: true, TypePrompt: true, TypeEmail: true,
	TypeProduct: true, TypeVideoResource: true,
}

func ValidResourceType(t string) bool { return resourceTypes[t] }

func ValidState(s string) bool {
	switch s {
	case StateDraft, StatePublished, StateArchived, StateDeleted:
		return true
	}
	return false
}

func ValidVisibility(v string) bool {
	switch v {
	case VisibilityPublic, VisibilityPrivate, VisibilityUnlisted:
		return true
	}
	return false
}

// InvalidResourceTypeError rejects resource creation with an unknown tag.
type InvalidResourceTypeError struct {
	Type string
}

func (e *InvalidResourceTypeError) Error() string {
	return fmt.Sprintf("invalid resource type %q", e.Type)
}

// ResourceValidationError wraps a typed-fields validation failure.
type ResourceValidationError struct {
	Type   string
	Reason string
}

func (e *ResourceValidationError) Error() string {
	return fmt.Sprintf("invalid %s fields: %s", e.Type, e.Reason)
}

// BaseFields are the attributes every resource variant shares.
type BaseFields struct {
	Title       string `json:"title"`
	Slug        string `json:"slug,omitempty"`
	Description string `json:"description,omitempty"`
	Body        string `json:"body,omitempty"`
	State       string `json:"state,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
}

func (f *BaseFields) validateBase(typ string) error {
	if f.Title == "" {
		return &ResourceValidationError{Type: typ, Reason: "title is required"}
	}
	if f.State != "" && !ValidState(f.State) {
		return &ResourceValidationError{Type: typ, Reason: fmt.Sprintf("unknown state %q", f.State)}
	}
	if f.Visibility != "" && !ValidVisibility(f.Visibility) {
		return &ResourceValidationError{Type: typ, Reason: fmt.Sprintf("unknown visibility %q", f.Visibility)}
	}
	return nil
}

type PostFields struct {
	BaseFields
}

func (f *PostFields) Validate() error { return f.validateBase(TypePost) }

type WorkshopFields struct {
	BaseFields
	GitHubURL string `json:"github,omitempty"`
}

func (f *WorkshopFields) Validate() error { return f.validateBase(TypeWorkshop) }

type EventFields struct {
	BaseFields
	StartsAt *time.Time `json:"startsAt,omitempty"`
	EndsAt   *time.Time `json:"endsAt,omitempty"`
	Timezone string     `json:"timezone,omitempty"`
}

func (f *EventFields) Validate() error {
	if err := f.validateBase(TypeEvent); err != nil {
		return err
	}
	if f.StartsAt != nil && f.EndsAt != nil && f.EndsAt.Before(*f.StartsAt) {
		return &ResourceValidationError{Type: TypeEvent, Reason: "endsAt precedes startsAt"}
	}
	return nil
}

type CohortFields struct {
	BaseFields
	StartsAt *time.Time `json:"startsAt,omitempty"`
	EndsAt   *time.Time `json:"endsAt,omitempty"`
	MaxSeats int        `json:"maxSeats,omitempty"`
}

func (f *CohortFields) Validate() error {
	if err := f.validateBase(TypeCohort); err != nil {
		return err
	}
	if f.MaxSeats < 0 {
		return &ResourceValidationError{Type: TypeCohort, Reason: "maxSeats is negative"}
	}
	return nil
}

type ProductFields struct {
	BaseFields
	UnitAmount int64  `json:"unitAmount,omitempty"`
	Currency   string `json:"currency,omitempty"`
	Quantity   int    `json:"quantityAvailable,omitempty"`
}

func (f *ProductFields) Validate() error {
	if err := f.validateBase(TypeProduct); err != nil {
		return err
	}
	if f.UnitAmount < 0 {
		return &ResourceValidationError{Type: TypeProduct, Reason: "unitAmount is negative"}
	}
	return nil
}

type VideoResourceFields struct {
	Title            string  `json:"title,omitempty"`
	Slug             string  `json:"slug,omitempty"`
	State            string  `json:"state,omitempty"`
	MuxAssetID       string  `json:"muxAssetId,omitempty"`
	MuxPlaybackID    string  `json:"muxPlaybackId,omitempty"`
	Duration         float64 `json:"duration,omitempty"`
	Transcript       string  `json:"transcript,omitempty"`
	SRT              string  `json:"srt,omitempty"`
	ProcessingStatus string  `json:"processingState,omitempty"`
}

func (f *VideoResourceFields) Validate() error {
	if f.Duration < 0 {
		return &ResourceValidationError{Type: TypeVideoResource, Reason: "duration is negative"}
	}
	return nil
}

// FieldsValidator is implemented by every typed fields variant.
type FieldsValidator interface {
	Validate() error
}

// DecodeFields parses a raw fields payload into the typed variant for the
// given resource type. Types without extra attributes decode as PostFields
// shaped bases. Unknown types are rejected.
func DecodeFields(resourceType string, raw []byte) (FieldsValidator, error) {
	if !ValidResourceType(resourceType) {
		return nil, &InvalidResourceTypeError{Type: resourceType}
	}
	var target FieldsValidator
	switch resourceType {
	case TypeWorkshop, TypeTutorial:
		target = &WorkshopFields{}
	case TypeEvent:
		target = &EventFields{}
	case TypeCohort:
		target = &CohortFields{}
	case TypeProduct:
		target = &ProductFields{}
	case TypeVideoResource:
		target = &VideoResourceFields{}
	default:
		target = &PostFields{}
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, &ResourceValidationError{Type: resourceType, Reason: err.Error()}
		}
	}
	return target, nil
}
