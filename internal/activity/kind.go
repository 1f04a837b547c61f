package activity

// Kind identifies a category of rate-limited user action.
type Kind string

const (
	KindProfileViews   Kind = "profile_views"
	KindMessagesSent   Kind = "messages_sent"
	KindLikesSent      Kind = "likes_sent"
	KindMatchesCreated Kind = "matches_created"
	KindProfileUpdates Kind = "profile_updates"
	KindAdsViewed      Kind = "ads_viewed"
)

// Kinds is the closed set of known activity kinds.
var Kinds = []Kind{
	KindProfileViews,
	KindMessagesSent,
	KindLikesSent,
	KindMatchesCreated,
	KindProfileUpdates,
	KindAdsViewed,
}

// Parse validates a wire-level kind string. Unknown kinds are rejected
// before any storage is touched.
func Parse(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

func (k Kind) String() string { return string(k) }
