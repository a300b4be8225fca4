package state

// EffectKind identifies a queued side effect of a successful transition or
// a detected field change. Effects describe which message goes to whom; the
// notification dispatcher resolves recipients and executes them after the
// store write has committed.
type EffectKind int

const (
	// EffectReopenConfirm emails the customer that their booking was
	// reopened.
	EffectReopenConfirm EffectKind = iota

	// EffectFanOutTranslators schedules a push fan-out to every eligible
	// translator, excluding Exclude when set.
	EffectFanOutTranslators

	// EffectAcceptConfirm emails the customer that a translator accepted.
	EffectAcceptConfirm

	// EffectAcceptConfirmTranslator emails the assigned translator their
	// assignment confirmation.
	EffectAcceptConfirmTranslator

	// EffectSessionReminders pushes a session-start reminder to the
	// customer and the assigned translator.
	EffectSessionReminders

	// EffectCancelConfirm emails the customer a "booking cancelled" notice.
	EffectCancelConfirm

	// EffectWithdrawNotices emails a cancellation notice to the customer
	// and, when present, the active translator.
	EffectWithdrawNotices

	// EffectSessionSummary emails the session summary: invoice-tagged to
	// the customer, payroll-tagged to the active translator.
	EffectSessionSummary

	// EffectDateChanged notifies customer and active translator that the
	// due time moved. OldValue holds the previous time, formatted.
	EffectDateChanged

	// EffectLanguageChanged notifies customer and active translator that
	// the language changed. OldValue holds the previous language id.
	EffectLanguageChanged

	// EffectTranslatorChanged notifies customer, the outgoing translator
	// and the incoming one about a replacement.
	EffectTranslatorChanged

	// EffectCancelledPushTranslator pushes a cancellation notice to the
	// active translator after a customer-initiated withdrawal.
	EffectCancelledPushTranslator

	// EffectTranslatorCancelledPushCustomer pushes a "we are finding a
	// replacement" notice to the customer after a translator backs out.
	EffectTranslatorCancelledPushCustomer

	// EffectExpiredPush pushes the no-translator-accepted notice to the
	// customer when a pending booking times out.
	EffectExpiredPush

	// EffectCreatedConfirm emails the customer their booking receipt.
	EffectCreatedConfirm

	// EffectAcceptedPushCustomer pushes the acceptance notice to the
	// customer after a translator takes the job.
	EffectAcceptedPushCustomer
)

// Effect is one queued side effect.
type Effect struct {
	Kind EffectKind

	// Exclude is a translator id omitted from a fan-out.
	Exclude string

	// OldValue carries the prior due time or language id for change
	// notifications.
	OldValue string

	// OldTranslatorID / NewTranslatorID identify the parties of a
	// translator replacement.
	OldTranslatorID string
	NewTranslatorID string

	// SessionTime is the human-readable session duration for summaries.
	SessionTime string
}
