// Package lifecycle holds the ticket state machine. Every status change in
// the service goes through Check so that the transition table is the single
// source of truth for what an operation may do.
package lifecycle

import (
	"github.com/JhonAQ/te-toca-web-sub000/internal/apperror"
	"github.com/JhonAQ/te-toca-web-sub000/internal/models"
)

type operation struct {
	from []models.TicketStatus
	to   models.TicketStatus
}

var operations = map[models.Action]operation{
	models.ActionCall: {
		from: []models.TicketStatus{models.StatusWaiting},
		to:   models.StatusCalled,
	},
	models.ActionStart: {
		from: []models.TicketStatus{models.StatusCalled, models.StatusPaused},
		to:   models.StatusInProgress,
	},
	models.ActionFinish: {
		from: []models.TicketStatus{models.StatusCalled, models.StatusInProgress},
		to:   models.StatusCompleted,
	},
	models.ActionSkip: {
		from: []models.TicketStatus{models.StatusWaiting, models.StatusCalled},
		to:   models.StatusSkipped,
	},
	models.ActionCancel: {
		from: []models.TicketStatus{
			models.StatusWaiting, models.StatusCalled, models.StatusPaused,
			models.StatusInProgress, models.StatusSkipped,
		},
		to: models.StatusCancelled,
	},
	models.ActionPause: {
		from: []models.TicketStatus{models.StatusWaiting, models.StatusCalled, models.StatusInProgress},
		to:   models.StatusPaused,
	},
	models.ActionResume: {
		from: []models.TicketStatus{models.StatusPaused},
		to:   models.StatusWaiting,
	},
	models.ActionSelectSkipped: {
		from: []models.TicketStatus{models.StatusSkipped},
		to:   models.StatusInProgress,
	},
}

// transitions is derived from operations at init.
var transitions = map[models.TicketStatus]map[models.TicketStatus]bool{}

func init() {
	for _, op := range operations {
		for _, from := range op.from {
			if transitions[from] == nil {
				transitions[from] = map[models.TicketStatus]bool{}
			}
			transitions[from][op.to] = true
		}
	}
}

// CanTransition reports whether some operation moves a ticket from one status to another.
func CanTransition(from, to models.TicketStatus) bool {
	return transitions[from][to]
}

// IsTerminal reports whether no operation can leave status.
func IsTerminal(status models.TicketStatus) bool {
	return len(transitions[status]) == 0
}

// Sources lists the statuses action may be applied to.
func Sources(action models.Action) []models.TicketStatus {
	op, ok := operations[action]
	if !ok {
		return nil
	}
	out := make([]models.TicketStatus, len(op.from))
	copy(out, op.from)
	return out
}

// Target is the status action moves a ticket into.
func Target(action models.Action) (models.TicketStatus, bool) {
	op, ok := operations[action]
	return op.to, ok
}

// Check validates that action may be applied to a ticket in current and
// returns the resulting status.
func Check(action models.Action, current models.TicketStatus) (models.TicketStatus, error) {
	op, ok := operations[action]
	if !ok {
		return "", apperror.Validation("unknown operation %q", action)
	}
	for _, from := range op.from {
		if from == current {
			return op.to, nil
		}
	}
	return "", apperror.InvalidTransition(string(current), string(action))
}
