package trust

import (
	"time"

	"github.com/mhenrik/skillrank/internal/evidence"
)

// Policy holds the scoring parameters of the automated verification pass.
// The magnitudes are server-controlled configuration; only the shape of the
// threshold logic is fixed.
type Policy struct {
	// BaseScore is granted when any capture metadata is present.
	BaseScore int
	// RecencyCredit is granted when the capture happened within TrustWindow
	// of the submission.
	RecencyCredit int
	// DeviceCredit is granted when the capture device is attributable.
	DeviceCredit int
	// VerifyThreshold is the minimum score for an immediate verified status.
	VerifyThreshold int
	// TrustWindow bounds how old a capture may be to still earn recency
	// credit.
	TrustWindow time.Duration
}

// Signals are the inputs available at submission time.
type Signals struct {
	HasMetadata    bool
	CapturedAt     *time.Time
	SubmittedAt    time.Time
	DeviceID       *string
	TamperDetected bool
}

// Result is the outcome of one automated evaluation.
type Result struct {
	Score  int
	Status evidence.VerificationStatus

	HasMetadata      bool
	RecentCapture    bool
	DeviceAttributed bool
}

// Engine scores evidence trust signals and assigns the initial status.
type Engine struct {
	policy Policy
}

func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Evaluate is a cheap pre-filter: it fast-tracks clearly good evidence to
// verified and defers anything uncertain to peer review. It never rejects
// on score alone; rejection is reserved for an explicit tamper signal,
// which wins regardless of score.
func (e *Engine) Evaluate(sig Signals) Result {
	res := Result{
		HasMetadata: sig.HasMetadata,
	}

	if sig.HasMetadata {
		res.Score += e.policy.BaseScore
	}

	if sig.CapturedAt != nil {
		age := sig.SubmittedAt.Sub(*sig.CapturedAt)
		if age >= 0 && age <= e.policy.TrustWindow {
			res.RecentCapture = true
			res.Score += e.policy.RecencyCredit
		}
	}

	if sig.DeviceID != nil && *sig.DeviceID != "" {
		res.DeviceAttributed = true
		res.Score += e.policy.DeviceCredit
	}

	if res.Score < 0 {
		res.Score = 0
	}
	if res.Score > 100 {
		res.Score = 100
	}

	switch {
	case sig.TamperDetected:
		res.Status = evidence.StatusRejected
	case res.Score >= e.policy.VerifyThreshold:
		res.Status = evidence.StatusVerified
	default:
		res.Status = evidence.StatusPendingReview
	}

	return res
}
