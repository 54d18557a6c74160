package models

type (
	UserRole           string
	DonationStatus     string
	DonationCause      string
	DonationSource     string
	PaymentMethod      string
	RequestStatus      string
	RequestUrgency     string
	RequestCategory    string
	VerificationStatus string
	PaymentOrderStatus string
	TaskKind           string
	TaskStatus         string
)

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"

	DonationStatusPending   DonationStatus = "pending"
	DonationStatusCompleted DonationStatus = "completed"
	DonationStatusFailed    DonationStatus = "failed"
	DonationStatusRefunded  DonationStatus = "refunded"

	CauseMedical   DonationCause = "medical"
	CauseEducation DonationCause = "education"
	CauseFood      DonationCause = "food"
	CauseShelter   DonationCause = "shelter"
	CauseClothing  DonationCause = "clothing"
	CauseElderly   DonationCause = "elderly"
	CauseGeneral   DonationCause = "general"

	DonationSourceVerify  DonationSource = "verify"
	DonationSourceWebhook DonationSource = "webhook"

	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodNetbanking PaymentMethod = "netbanking"
	PaymentMethodWallet     PaymentMethod = "wallet"

	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusActive    RequestStatus = "active"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusClosed    RequestStatus = "closed"

	UrgencyLow    RequestUrgency = "low"
	UrgencyMedium RequestUrgency = "medium"
	UrgencyHigh   RequestUrgency = "high"
	UrgencyUrgent RequestUrgency = "urgent"

	CategoryMedical   RequestCategory = "medical"
	CategoryEducation RequestCategory = "education"
	CategoryFood      RequestCategory = "food"
	CategoryShelter   RequestCategory = "shelter"
	CategoryClothing  RequestCategory = "clothing"
	CategoryOther     RequestCategory = "other"

	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"

	PaymentOrderCreated PaymentOrderStatus = "created"
	PaymentOrderPaid    PaymentOrderStatus = "paid"

	TaskRecordDonation TaskKind = "record_donation"
	TaskRefund         TaskKind = "refund"
	TaskPaymentFailed  TaskKind = "payment_failed"
	TaskReceipt        TaskKind = "receipt"

	TaskStatusPending TaskStatus = "pending"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusDead    TaskStatus = "dead"
)

func (s DonationStatus) Valid() bool {
	switch s {
	case DonationStatusPending, DonationStatusCompleted, DonationStatusFailed, DonationStatusRefunded:
		return true
	}
	return false
}

// CountsTowardTotals - только completed входит в агрегаты запроса и пользователя
func (s DonationStatus) CountsTowardTotals() bool {
	return s == DonationStatusCompleted
}

func (c DonationCause) Valid() bool {
	switch c {
	case CauseMedical, CauseEducation, CauseFood, CauseShelter, CauseClothing, CauseElderly, CauseGeneral:
		return true
	}
	return false
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodUPI, PaymentMethodNetbanking, PaymentMethodWallet:
		return true
	}
	return false
}

func (r UserRole) Valid() bool {
	return r == UserRoleUser || r == UserRoleAdmin
}

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected,
		RequestStatusActive, RequestStatusCompleted, RequestStatusClosed:
		return true
	}
	return false
}

func (u RequestUrgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}

func (v VerificationStatus) Valid() bool {
	switch v {
	case VerificationUnverified, VerificationPending, VerificationVerified, VerificationRejected:
		return true
	}
	return false
}

func (k TaskKind) Valid() bool {
	switch k {
	case TaskRecordDonation, TaskRefund, TaskPaymentFailed, TaskReceipt:
		return true
	}
	return false
}
