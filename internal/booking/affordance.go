package booking

import (
	"bytes"
	"encoding/json"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/gateway"
)

// Kind names the affordance currently offered to the patient
type Kind string

const (
	KindNone         Kind = "none"
	KindOptions      Kind = "options"
	KindForm         Kind = "form"
	KindConfirmation Kind = "confirmation"
)

// ConfirmationStep is the step name the backend uses once a booking is made
const ConfirmationStep = "confirmation"

// Affordance is what the dialogue currently asks of the patient. Exactly one
// variant is active at a time: Options, Form or Confirmation.
type Affordance interface {
	Kind() Kind
	isAffordance()
}

// Options asks the patient to pick one of the listed items
type Options struct {
	Items []gateway.BookingOption
}

func (Options) Kind() Kind   { return KindOptions }
func (Options) isAffordance() {}

// Find returns the option with the given id
func (o Options) Find(id string) (gateway.BookingOption, bool) {
	for _, item := range o.Items {
		if item.ID.String() == id {
			return item, true
		}
	}
	return gateway.BookingOption{}, false
}

// Form asks the patient to fill in the listed fields
type Form struct {
	Fields []gateway.BookingFormField
}

func (Form) Kind() Kind   { return KindForm }
func (Form) isAffordance() {}

// Confirmation ends the dialogue
type Confirmation struct{}

func (Confirmation) Kind() Kind   { return KindConfirmation }
func (Confirmation) isAffordance() {}

// KindOf reports the kind of a possibly nil affordance
func KindOf(a Affordance) Kind {
	if a == nil {
		return KindNone
	}
	return a.Kind()
}

// AffordanceView is the wire form of an affordance
type AffordanceView struct {
	Kind    Kind                       `json:"kind"`
	Options []gateway.BookingOption    `json:"options,omitempty"`
	Fields  []gateway.BookingFormField `json:"fields,omitempty"`
}

// ViewOf flattens an affordance for rendering or persistence
func ViewOf(a Affordance) AffordanceView {
	view := AffordanceView{Kind: KindOf(a)}
	switch v := a.(type) {
	case Options:
		view.Options = append([]gateway.BookingOption(nil), v.Items...)
	case Form:
		view.Fields = append([]gateway.BookingFormField(nil), v.Fields...)
	}
	return view
}

// Affordance rebuilds the variant from its wire form
func (v AffordanceView) Affordance() Affordance {
	switch v.Kind {
	case KindOptions:
		return Options{Items: append([]gateway.BookingOption(nil), v.Options...)}
	case KindForm:
		return Form{Fields: append([]gateway.BookingFormField(nil), v.Fields...)}
	case KindConfirmation:
		return Confirmation{}
	default:
		return nil
	}
}

// Selections are the choices resent with every dialogue turn so the backend
// can stay stateless
type Selections map[string]any

// Clone returns an independent copy
func (s Selections) Clone() Selections {
	out := make(Selections, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// UnmarshalJSON keeps numeric ids as numbers
func (s *Selections) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	*s = m
	return nil
}
