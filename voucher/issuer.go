/*
Package voucher provides partner voucher issuance strategies.

PURPOSE:
  Produces the partner-redeemable artifact (code + QR URL + expiry) for a
  completed reservation. Each partner has an issuance profile modelling its
  real API: code format, QR endpoint, voucher lifetime, and - because the
  integrations are simulated - a latency and a failure probability.

PROFILES:
  ntuc       30-day expiry, 95% success, ~500ms latency
  starbucks  14-day expiry, 98% success, ~300ms latency
  grab        7-day expiry, 97% success, ~200ms latency
  default    30-day expiry, always succeeds, no latency

DISPATCH:
  Partner identity is enumerated (catalog.Partner) and resolved through an
  explicit lookup table. Unknown partners get the default profile rather
  than a free-text match that a typo could break.

DETERMINISM:
  Randomness, sleeping, and the clock are all injectable, so tests force
  success or failure and never sleep for real. The production service uses
  math/rand, time.Now, and a context-aware sleep.

SEE ALSO:
  - profiles.go: YAML overrides for the built-in profile table
  - redemption: Invokes Issue outside its lock scope with a bounded timeout
*/
package voucher

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ecosteps/credit-engine/catalog"
	"github.com/ecosteps/credit-engine/redemption"
)

// =============================================================================
// ISSUANCE PROFILE
// =============================================================================

// Profile parameterizes one partner integration.
type Profile struct {
	Partner        catalog.Partner
	CodePrefix     string        // e.g. "NTUC", "SB", "GRAB", "ECO"
	CodeDigits     int           // random digits appended to the code
	TimestampCode  bool          // include a millisecond timestamp in the code
	QRCodeBase     string        // QR URL template base, code appended
	RefPrefix      string        // partner transaction ID prefix
	RefHexLen      int           // hex chars of the partner transaction ID
	ExpiryDays     int           // voucher lifetime from issuance
	SuccessRate    float64       // simulated probability of success in [0, 1]
	Latency        time.Duration // simulated partner API round-trip
	FailureMessage string        // partner-specific outage message
}

// defaultProfiles mirrors the behavior of the real partner sandboxes.
func defaultProfiles() (map[catalog.Partner]Profile, Profile) {
	table := map[catalog.Partner]Profile{
		catalog.PartnerNTUC: {
			Partner: catalog.PartnerNTUC, CodePrefix: "NTUC", CodeDigits: 4, TimestampCode: true,
			QRCodeBase: "https://api.ntuc.com.sg/qr/", RefPrefix: "NTUC-TXN-", RefHexLen: 8,
			ExpiryDays: 30, SuccessRate: 0.95, Latency: 500 * time.Millisecond,
			FailureMessage: "NTUC API temporarily unavailable",
		},
		catalog.PartnerStarbucks: {
			Partner: catalog.PartnerStarbucks, CodePrefix: "SB", CodeDigits: 6, TimestampCode: true,
			QRCodeBase: "https://api.starbucks.com.sg/voucher/", RefPrefix: "SB-", RefHexLen: 10,
			ExpiryDays: 14, SuccessRate: 0.98, Latency: 300 * time.Millisecond,
			FailureMessage: "Starbucks system maintenance",
		},
		catalog.PartnerGrab: {
			Partner: catalog.PartnerGrab, CodePrefix: "GRAB", CodeDigits: 8, TimestampCode: false,
			QRCodeBase: "https://grab.com/sg/promo/", RefPrefix: "GRAB-", RefHexLen: 12,
			ExpiryDays: 7, SuccessRate: 0.97, Latency: 200 * time.Millisecond,
			FailureMessage: "Grab API rate limit exceeded",
		},
	}
	fallback := Profile{
		CodePrefix: "ECO", CodeDigits: 4, TimestampCode: true,
		QRCodeBase: "https://ecosteps.app/voucher/", RefPrefix: "ECO-", RefHexLen: 8,
		ExpiryDays: 30, SuccessRate: 1.0, Latency: 0,
		FailureMessage: "voucher service unavailable",
	}
	return table, fallback
}

// =============================================================================
// SERVICE
// =============================================================================

// Service implements redemption.Issuer over the profile table.
type Service struct {
	profiles map[catalog.Partner]Profile
	fallback Profile

	// Injectable seams for deterministic tests.
	Clock  func() time.Time
	Rand   func() float64                                // uniform in [0, 1)
	Sleep  func(ctx context.Context, d time.Duration) error
	RandN  func(n int) int                               // uniform in [0, n)
}

var _ redemption.Issuer = (*Service)(nil)

func NewService() *Service {
	table, fallback := defaultProfiles()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Service{
		profiles: table,
		fallback: fallback,
		Clock:    time.Now,
		Rand:     rng.Float64,
		RandN:    rng.Intn,
		Sleep:    sleepCtx,
	}
}

// ProfileFor resolves the issuance profile for a partner via the lookup
// table, falling back to the default profile for unknown partners.
func (s *Service) ProfileFor(p catalog.Partner) Profile {
	if prof, ok := s.profiles[p]; ok {
		return prof
	}
	return s.fallback
}

// SetProfile replaces or adds a partner profile. Used by config overrides.
func (s *Service) SetProfile(p Profile) {
	if p.Partner == "" {
		s.fallback = p
		return
	}
	s.profiles[p.Partner] = p
}

// Issue produces a voucher for the redemption's reward partner. The
// simulated latency honors ctx, so the workflow's issuance timeout converts
// a slow partner into a normal failure.
func (s *Service) Issue(ctx context.Context, r *redemption.Redemption, reward *catalog.Reward) (*redemption.Issuance, error) {
	prof := s.ProfileFor(reward.Partner)

	if prof.Latency > 0 {
		if err := s.Sleep(ctx, prof.Latency); err != nil {
			return nil, &redemption.PartnerError{Partner: string(reward.Partner), Message: "issuance timed out"}
		}
	}

	if prof.SuccessRate < 1.0 && s.Rand() >= prof.SuccessRate {
		return nil, &redemption.PartnerError{Partner: string(reward.Partner), Message: prof.FailureMessage}
	}

	code := s.generateCode(prof)
	return &redemption.Issuance{
		Code:                 code,
		QRCodeURL:            prof.QRCodeBase + code,
		ExpiryDate:           s.Clock().UTC().AddDate(0, 0, prof.ExpiryDays),
		PartnerTransactionID: s.generateRef(prof),
	}, nil
}

// generateCode builds a code like NTUC17259428374050042 or GRAB00731942:
// prefix, optional millisecond timestamp, fixed-width random digits.
func (s *Service) generateCode(prof Profile) string {
	var b strings.Builder
	b.WriteString(prof.CodePrefix)
	if prof.TimestampCode {
		fmt.Fprintf(&b, "%d", s.Clock().UnixMilli())
	}
	if prof.CodeDigits > 0 {
		max := 1
		for i := 0; i < prof.CodeDigits; i++ {
			max *= 10
		}
		fmt.Fprintf(&b, "%0*d", prof.CodeDigits, s.RandN(max))
	}
	return b.String()
}

func (s *Service) generateRef(prof Profile) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	n := prof.RefHexLen
	if n <= 0 || n > len(raw) {
		n = 8
	}
	return prof.RefPrefix + raw[:n]
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
