package domain

import "time"

// Типы событий аудита черновика. Каждая мутация, прошедшая через checkout
// service, оставляет одно событие.
const (
	TimelineDraftCreated      = "DraftCreated"
	TimelineLineAdded         = "LineAdded"
	TimelineLineUpdated       = "LineUpdated"
	TimelineLineRemoved       = "LineRemoved"
	TimelineCurrencyChanged   = "CurrencyChanged"
	TimelineKassaSelected     = "KassaSelected"
	TimelinePartySelected     = "CounterpartySelected"
	TimelinePaymentModeSet    = "PaymentModeChanged"
	TimelineInstallmentSet    = "InstallmentConfigured"
	TimelineSubmissionStarted = "SubmissionStarted"
	TimelineSubmitted         = "Submitted"
	TimelineSubmissionFailed  = "SubmissionFailed"
	TimelineDraftDiscarded    = "DraftDiscarded"
)

// TimelineEvent описывает событие в жизненном цикле черновика.
type TimelineEvent struct {
	DraftID  string
	Type     string
	Reason   string
	Occurred time.Time
}
