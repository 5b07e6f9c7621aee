package escalation

import (
	"time"

	"github.com/partsbid/matching-engine/internal/config"
	"github.com/partsbid/matching-engine/internal/model"
)

// tierFor buckets a composite score into the first tier whose threshold it
// meets. The tier table is validated at config load: thresholds are
// non-increasing and the last tier catches everything.
func tierFor(composite float64, tiers []config.TierPolicy) config.TierPolicy {
	for _, tp := range tiers {
		if composite >= tp.MinScore {
			return tp
		}
	}
	return tiers[len(tiers)-1]
}

// waitBudget converts a tier policy's wait minutes to a duration.
func waitBudget(tp config.TierPolicy) time.Duration {
	return time.Duration(tp.WaitMinutes) * time.Minute
}

// channelFor maps the configured channel name onto the model constant.
func channelFor(tp config.TierPolicy) model.Channel {
	switch tp.Channel {
	case "sms":
		return model.ChannelSMS
	case "chat":
		return model.ChannelChat
	default:
		return model.ChannelPush
	}
}
