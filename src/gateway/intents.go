package gateway

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Intents selects the event categories delivered on the gateway. Combine with |.
// https://discord.com/developers/docs/events/gateway#gateway-intents
type Intents = uint64

const (
	IntentGuilds                      Intents = 1 << 0
	IntentGuildMembers                Intents = 1 << 1
	IntentGuildModeration             Intents = 1 << 2
	IntentGuildExpressions            Intents = 1 << 3
	IntentGuildIntegrations           Intents = 1 << 4
	IntentGuildWebhooks               Intents = 1 << 5
	IntentGuildInvites                Intents = 1 << 6
	IntentGuildVoiceStates            Intents = 1 << 7
	IntentGuildPresences              Intents = 1 << 8
	IntentGuildMessages               Intents = 1 << 9
	IntentGuildMessageReactions       Intents = 1 << 10
	IntentGuildMessageTyping          Intents = 1 << 11
	IntentDirectMessages              Intents = 1 << 12
	IntentDirectMessageReactions      Intents = 1 << 13
	IntentDirectMessageTyping         Intents = 1 << 14
	IntentMessageContent              Intents = 1 << 15
	IntentGuildScheduledEvents        Intents = 1 << 16
	IntentAutoModerationConfiguration Intents = 1 << 20
	IntentAutoModerationExecution     Intents = 1 << 21
	IntentGuildMessagePolls           Intents = 1 << 24
	IntentDirectMessagePolls          Intents = 1 << 25
)

// DefaultIntents covers guild structure plus guild and direct messages and reactions.
const DefaultIntents = IntentGuilds |
	IntentGuildMessages |
	IntentGuildMessageReactions |
	IntentDirectMessages |
	IntentDirectMessageReactions

var intentNames = map[string]Intents{
	"GUILDS":                        IntentGuilds,
	"GUILD_MEMBERS":                 IntentGuildMembers,
	"GUILD_MODERATION":              IntentGuildModeration,
	"GUILD_EXPRESSIONS":             IntentGuildExpressions,
	"GUILD_INTEGRATIONS":            IntentGuildIntegrations,
	"GUILD_WEBHOOKS":                IntentGuildWebhooks,
	"GUILD_INVITES":                 IntentGuildInvites,
	"GUILD_VOICE_STATES":            IntentGuildVoiceStates,
	"GUILD_PRESENCES":               IntentGuildPresences,
	"GUILD_MESSAGES":                IntentGuildMessages,
	"GUILD_MESSAGE_REACTIONS":       IntentGuildMessageReactions,
	"GUILD_MESSAGE_TYPING":          IntentGuildMessageTyping,
	"DIRECT_MESSAGES":               IntentDirectMessages,
	"DIRECT_MESSAGE_REACTIONS":      IntentDirectMessageReactions,
	"DIRECT_MESSAGE_TYPING":         IntentDirectMessageTyping,
	"MESSAGE_CONTENT":               IntentMessageContent,
	"GUILD_SCHEDULED_EVENTS":        IntentGuildScheduledEvents,
	"AUTO_MODERATION_CONFIGURATION": IntentAutoModerationConfiguration,
	"AUTO_MODERATION_EXECUTION":     IntentAutoModerationExecution,
	"GUILD_MESSAGE_POLLS":           IntentGuildMessagePolls,
	"DIRECT_MESSAGE_POLLS":          IntentDirectMessagePolls,
}

// ParseIntents accepts either a decimal bitmask ("33281") or intent names
// separated by '|' or ',' ("GUILDS|GUILD_MESSAGES").
func ParseIntents(s string) (Intents, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty intents")
	}
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	var intents Intents
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' })
	if len(fields) == 0 {
		return 0, fmt.Errorf("no intents in %q", s)
	}
	for _, f := range fields {
		name := strings.ToUpper(strings.TrimSpace(f))
		bit, ok := intentNames[name]
		if !ok {
			return 0, fmt.Errorf("unknown intent %q", f)
		}
		intents |= bit
	}
	return intents, nil
}

// IntentNames lists the names of the bits set in intents, sorted.
func IntentNames(intents Intents) []string {
	names := make([]string, 0, len(intentNames))
	for name, bit := range intentNames {
		if intents&bit != 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
