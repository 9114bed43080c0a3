package referral

import (
	"time"

	"github.com/gofrs/uuid"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
)

// RewardPoints начисляется обеим сторонам после первой завершенной
// заявки приглашенного.
const RewardPoints = 500

// Referral связывает пригласившего и приглашенного пользователей.
// Один пользователь может быть приглашен не более одного раза.
type Referral struct {
	ID          uuid.UUID  `json:"id"`
	ReferrerID  uuid.UUID  `json:"referrer_id"`
	ReferredID  uuid.UUID  `json:"referred_id"`
	Status      Status     `json:"status"`
	Points      int        `json:"points"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ReferralInfo — строка статистики для владельца кода.
type ReferralInfo struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Date   string    `json:"date"`
	Status Status    `json:"status"`
	Earned int       `json:"earned"`
}

// StatsResponse — сводка по реферальной программе пользователя.
type StatsResponse struct {
	ReferralCode   string         `json:"referralCode"`
	TotalReferrals int            `json:"totalReferrals"`
	TotalEarned    int            `json:"totalEarned"`
	PendingEarned  int            `json:"pendingEarned"`
	Referrals      []ReferralInfo `json:"referrals"`
}
