package submission

import "formbridge.dev/formbridge/internal/domain"

// Trigger names the event that drives a transition.
type Trigger string

const (
	TriggerCreateEmpty Trigger = "create_empty"
	TriggerCreateOrSetFields Trigger = "create_or_set_fields"
	TriggerSetFieldsFile Trigger = "set_fields_file"
	TriggerUploadCompleted Trigger = "upload_completed"
	TriggerSubmitPlain Trigger = "submit_plain"
	TriggerSubmitGated Trigger = "submit_gated"
	TriggerApprove Trigger = "approve"
	TriggerReject Trigger = "reject"
	TriggerRequestChanges Trigger = "request_changes"
	TriggerDeliverySucceeded Trigger = "delivery_succeeded"
	TriggerExpire Trigger = "expire"
	TriggerCancel Trigger = "cancel"
)

type edge struct {
	from domain.State
	trigger Trigger
}

// transitions enumerates every allowed (from, trigger) -> to edge from
// "(new)" states are represented by the empty domain.State and only apply
// to create.
var transitions = map[edge]domain.State{
	{"", TriggerCreateEmpty}: domain.StateDraft,
	{"", TriggerCreateOrSetFields}: domain.StateInProgress,
	{domain.StateDraft, TriggerCreateOrSetFields}: domain.StateInProgress,
	{domain.StateInProgress, TriggerSetFieldsFile}: domain.StateAwaitingUpload,
	{domain.StateAwaitingUpload, TriggerUploadCompleted}: domain.StateInProgress,
	{domain.StateInProgress, TriggerSubmitPlain}: domain.StateSubmitted,
	{domain.StateInProgress, TriggerSubmitGated}: domain.StateNeedsReview,
	{domain.StateNeedsReview, TriggerApprove}: domain.StateApproved,
	{domain.StateNeedsReview, TriggerReject}: domain.StateRejected,
	{domain.StateNeedsReview, TriggerRequestChanges}: domain.StateInProgress,
	{domain.StateApproved, TriggerDeliverySucceeded}: domain.StateFinalized,
	{domain.StateSubmitted, TriggerDeliverySucceeded}: domain.StateFinalized,
}

// Next returns the destination state for (from, trigger), and whether the
// transition is allowed. Expire and cancel are allowed from any non-terminal
// state and are checked separately since they are not keyed by a single
// fixed source state.
func Next(from domain.State, trigger Trigger) (domain.State, bool) {
	switch trigger {
	case TriggerExpire:
		if from.Terminal() {
			return "", false
		}
		return domain.StateExpired, true
	case TriggerCancel:
		if from.Terminal() {
			return "", false
		}
		return domain.StateCancelled, true
	}

	to, ok := transitions[edge{from, trigger}]
	return to, ok
}
