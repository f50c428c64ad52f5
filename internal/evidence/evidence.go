package evidence

import (
	"time"

	"github.com/google/uuid"
)

type VerificationStatus string

const (
	StatusVerified      VerificationStatus = "verified"
	StatusPendingReview VerificationStatus = "pending_review"
	StatusFlagged       VerificationStatus = "flagged"
	StatusRejected      VerificationStatus = "rejected"
)

// IsTerminal reports whether a status can never change again. Flagged is
// not terminal: a moderator override can still resolve it.
func (s VerificationStatus) IsTerminal() bool {
	return s == StatusVerified || s == StatusRejected
}

// legalTransitions is the closed transition table for verification status.
// Anything not listed here is an illegal transition.
var legalTransitions = map[VerificationStatus][]VerificationStatus{
	StatusPendingReview: {StatusVerified, StatusFlagged, StatusRejected},
	StatusFlagged:       {StatusVerified, StatusRejected},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to VerificationStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
	VerdictFlag    Verdict = "flag"
)

func (v Verdict) Valid() bool {
	return v == VerdictApprove || v == VerdictReject || v == VerdictFlag
}

// Evidence is one submitted, video-backed performance analysis along with
// the capture metadata available at submission time.
type Evidence struct {
	ID       uuid.UUID `db:"id"`
	OwnerID  uuid.UUID `db:"owner_id"`
	VideoURL *string   `db:"video_url"`

	HasMetadata    bool       `db:"has_metadata"`
	CapturedAt     *time.Time `db:"captured_at"`
	DeviceID       *string    `db:"device_id"`
	TamperDetected bool       `db:"tamper_detected"`

	CreatedAt time.Time `db:"created_at"`
}

// EvidenceScore is one per-technique score proposed by the perception step.
// It only updates the player's best once the evidence is verified.
type EvidenceScore struct {
	EvidenceID uuid.UUID `db:"evidence_id"`
	Technique  string    `db:"technique"`
	Score      float64   `db:"score"`
}

// Verification is the trust assessment of a piece of evidence. One per
// evidence; updated in place only while the status is non-terminal.
type Verification struct {
	EvidenceID uuid.UUID          `db:"evidence_id"`
	Score      int                `db:"score"`
	Status     VerificationStatus `db:"status"`

	// Feature values the score was derived from.
	HasMetadata      bool `db:"has_metadata"`
	RecentCapture    bool `db:"recent_capture"`
	DeviceAttributed bool `db:"device_attributed"`

	ApproveCount int `db:"approve_count"`
	RejectCount  int `db:"reject_count"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type PeerReview struct {
	ID         uuid.UUID `db:"id"`
	EvidenceID uuid.UUID `db:"evidence_id"`
	ReviewerID uuid.UUID `db:"reviewer_id"`
	Verdict    Verdict   `db:"verdict"`
	CreatedAt  time.Time `db:"created_at"`
}

// TechniqueScore holds the best verified score a player has achieved for
// one technique. Monotonically non-decreasing.
type TechniqueScore struct {
	ID         uuid.UUID `db:"id"`
	PlayerID   uuid.UUID `db:"player_id"`
	Technique  string    `db:"technique"`
	Score      float64   `db:"score"`
	EvidenceID uuid.UUID `db:"evidence_id"`
	AchievedAt time.Time `db:"achieved_at"`
}
