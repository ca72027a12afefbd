package lifecycle

import "pratojusto/backend/internal/models"

// Action names the lifecycle step that produced an Outcome.
type Action string

const (
	ActionCreated    Action = "created"
	ActionReopened   Action = "reopened"
	ActionAccepted   Action = "accepted"
	ActionRecused    Action = "recused"
	ActionCancelled  Action = "cancelled"
	ActionCompleted  Action = "completed"
	ActionSuperseded Action = "superseded"
)

// Outcome is the committed result of a lifecycle mutation.
type Outcome struct {
	Action   Action
	ActorID  uint
	Request  *models.Request
	Donation *models.Donation
	// Superseded holds the sibling requests an accept moved to cancelled.
	Superseded []models.Request
}

// Notice is one REQUEST_UPDATE event owed to one user.
type Notice struct {
	UserID uint
	Event  models.RequestEvent
}

// Counterparty is the participant on the other side from the actor.
func (o *Outcome) Counterparty() uint {
	if o.ActorID == o.Request.RequesterID {
		return o.Donation.OwnerUserID
	}
	return o.Request.RequesterID
}

// Notices lists the events callers must push after the mutation committed:
// the counterparty of the actor, then each requester whose pending request
// was superseded.
func (o *Outcome) Notices() []Notice {
	notices := make([]Notice, 0, 1+len(o.Superseded))
	notices = append(notices, Notice{
		UserID: o.Counterparty(),
		Event:  o.event(o.Request, o.Action),
	})
	for i := range o.Superseded {
		sibling := &o.Superseded[i]
		notices = append(notices, Notice{
			UserID: sibling.RequesterID,
			Event:  o.event(sibling, ActionSuperseded),
		})
	}
	return notices
}

func (o *Outcome) event(req *models.Request, action Action) models.RequestEvent {
	return models.RequestEvent{
		Action:        string(action),
		RequestID:     req.ID,
		DonationID:    req.DonationID,
		DonationTitle: o.Donation.Title,
		Status:        req.Status,
		ActorID:       o.ActorID,
	}
}
