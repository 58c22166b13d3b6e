package booking

import (
	"errors"
	"strings"

	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/patient-portal/internal/gateway"
)

// ErrNoAffordance is returned when a non-final step offers neither options nor form fields
var ErrNoAffordance = errors.New("booking step offers neither options nor form fields")

// Transition computes the next affordance and selections from a backend
// response. It is pure: prev is never modified. On error the caller keeps its
// previous state.
func Transition(prev Selections, resp *gateway.BookingResponse) (Affordance, Selections, error) {
	if resp == nil {
		return nil, prev, ErrNoAffordance
	}

	next := prev.Clone()
	for k, v := range resp.Selected {
		next[k] = v
	}

	switch {
	case resp.NextStep == ConfirmationStep:
		return Confirmation{}, next, nil
	case len(resp.Options) > 0:
		return Options{Items: append([]gateway.BookingOption(nil), resp.Options...)}, next, nil
	case len(resp.FormFields) > 0:
		return Form{Fields: append([]gateway.BookingFormField(nil), resp.FormFields...)}, next, nil
	default:
		return nil, prev, ErrNoAffordance
	}
}

// SelectionKey derives the selections key for an option picked at step, e.g.
// "category_selected" becomes "selected_category"
func SelectionKey(step string) string {
	return "selected_" + strings.Replace(step, "_selected", "", 1)
}
