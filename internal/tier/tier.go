package tier

import (
	"strings"
	"time"

	"github.com/rishtahq/rishta-engine/internal/activity"
)

// Tier is a discrete subscription level governing quota ceilings and
// capability flags.
type Tier string

const (
	Free     Tier = "free"
	Basic    Tier = "basic"
	Gold     Tier = "gold"
	Platinum Tier = "platinum"
)

// Statuses a subscription row can carry. Anything other than active
// resolves to Free.
const StatusActive = "active"

// Resolve maps a subscription snapshot to a tier. Pure and total: an
// unset or unrecognized plan, a non-active status, or a past expiry all
// fall back to Free, the most restrictive tier.
func Resolve(plan, status string, expiresAt *time.Time, now time.Time) Tier {
	if strings.TrimSpace(plan) == "" {
		return Free
	}
	if status != StatusActive {
		return Free
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return Free
	}
	switch Tier(strings.ToLower(strings.TrimSpace(plan))) {
	case Basic:
		return Basic
	case Gold:
		return Gold
	case Platinum:
		return Platinum
	default:
		return Free
	}
}

// Limit is one cell of the limit table. Unlimited wins over Ceiling.
type Limit struct {
	Ceiling   int64
	Unlimited bool
}

// Capabilities are the per-tier feature flags that are not daily-count
// gated.
type Capabilities struct {
	ContactDetails  bool
	EliteVisibility bool
}

// Table maps (tier, activity kind) to a daily ceiling plus per-tier
// capability flags.
type Table struct {
	limits map[Tier]map[activity.Kind]Limit
	caps   map[Tier]Capabilities
}

// DefaultTable returns the shipped limit table. Deployments override
// single cells via config, see ApplyOverrides.
func DefaultTable() *Table {
	unlimited := Limit{Unlimited: true}
	return &Table{
		limits: map[Tier]map[activity.Kind]Limit{
			Free: {
				activity.KindProfileViews:   {Ceiling: 70},
				activity.KindMessagesSent:   {Ceiling: 0},
				activity.KindLikesSent:      {Ceiling: 20},
				activity.KindMatchesCreated: unlimited,
				activity.KindProfileUpdates: {Ceiling: 5},
				activity.KindAdsViewed:      unlimited,
			},
			Basic: {
				activity.KindProfileViews:   {Ceiling: 200},
				activity.KindMessagesSent:   {Ceiling: 50},
				activity.KindLikesSent:      {Ceiling: 50},
				activity.KindMatchesCreated: unlimited,
				activity.KindProfileUpdates: {Ceiling: 10},
				activity.KindAdsViewed:      unlimited,
			},
			Gold: {
				activity.KindProfileViews:   unlimited,
				activity.KindMessagesSent:   {Ceiling: 200},
				activity.KindLikesSent:      {Ceiling: 150},
				activity.KindMatchesCreated: unlimited,
				activity.KindProfileUpdates: unlimited,
				activity.KindAdsViewed:      unlimited,
			},
			Platinum: {
				activity.KindProfileViews:   unlimited,
				activity.KindMessagesSent:   unlimited,
				activity.KindLikesSent:      unlimited,
				activity.KindMatchesCreated: unlimited,
				activity.KindProfileUpdates: unlimited,
				activity.KindAdsViewed:      unlimited,
			},
		},
		caps: map[Tier]Capabilities{
			Free:     {},
			Basic:    {ContactDetails: true},
			Gold:     {ContactDetails: true},
			Platinum: {ContactDetails: true, EliteVisibility: true},
		},
	}
}

// ApplyOverrides replaces single cells keyed "tier.kind" (lowercase).
// A value of -1 means unlimited. Unknown keys are ignored.
func (t *Table) ApplyOverrides(overrides map[string]int64) {
	for key, n := range overrides {
		tierStr, kindStr, ok := strings.Cut(key, ".")
		if !ok {
			continue
		}
		kind, ok := activity.Parse(kindStr)
		if !ok {
			continue
		}
		row, ok := t.limits[Tier(tierStr)]
		if !ok {
			continue
		}
		if n < 0 {
			row[kind] = Limit{Unlimited: true}
		} else {
			row[kind] = Limit{Ceiling: n}
		}
	}
}

// Lookup returns the limit for a tier/kind pair. Missing cells resolve
// to the Free tier's cell; a cell missing there too means zero.
func (t *Table) Lookup(tr Tier, kind activity.Kind) Limit {
	if row, ok := t.limits[tr]; ok {
		if l, ok := row[kind]; ok {
			return l
		}
	}
	if row, ok := t.limits[Free]; ok {
		if l, ok := row[kind]; ok {
			return l
		}
	}
	return Limit{}
}

// CapabilitiesFor returns the feature flags for a tier.
func (t *Table) CapabilitiesFor(tr Tier) Capabilities {
	return t.caps[tr]
}

func (t Tier) String() string { return string(t) }

// Upgradeable reports whether a higher tier exists that the caller can
// be prompted toward when a quota denial is rendered.
func (t Tier) Upgradeable() bool { return t != Platinum }
