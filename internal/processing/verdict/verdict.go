// Package verdict turns a resolved link, the visitor signal and
// blacklist membership into a terminal decision: continue to the
// destination, block, or substitute a fallback. The transition
// function is pure so the whole decision table is testable without
// I/O; blacklist writes are signalled back to the caller via the
// outcome.
package verdict

import (
	"net/url"

	"github.com/relaypath/edge/internal/processing/classify"
	"github.com/relaypath/edge/internal/processing/links"
)

// Verdict is the trust classification label attached to a click.
type Verdict string

const (
	VerdictClean        Verdict = "clean"
	VerdictSuspicious   Verdict = "suspicious"
	VerdictBotLikely    Verdict = "bot_likely"
	VerdictBotCertain   Verdict = "bot_certain"
	VerdictImpersonator Verdict = "bot_impersonator"
	VerdictBlacklisted  Verdict = "blacklisted"
	VerdictNotFound     Verdict = "link_not_found"
	VerdictInactive     Verdict = "link_inactive"
	VerdictInvalidSlug  Verdict = "invalid_slug"
	VerdictRoot         Verdict = "root"
)

// Bot score thresholds. The edge scores 0 (certain bot) to 100 (human).
const (
	scoreSuspicious = 59
	scoreBotLikely  = 29
	scoreBotCertain = 10
	// scoreBlacklist is the cutoff below which the IP goes on the
	// shared blacklist for 24h.
	scoreBlacklist = 20
)

type state int

const (
	stateIntake state = iota
	stateNoSlug
	stateSlugInvalid
	stateLookup
	stateNotFound
	stateInactive
	stateBlacklisted
	stateBotAnalysis
	stateTerminal
)

// Action is what the HTTP layer should do with the visitor.
type Action int

const (
	// ActionRedirect sends a 302 (or configured status) to Location.
	ActionRedirect Action = iota
	// ActionNotFoundPage serves the branded 404.
	ActionNotFoundPage
)

// Input is everything the machine needs to decide, gathered up front
// by the caller.
type Input struct {
	Slug        string
	SlugInvalid bool
	// Query is the raw inbound query string, re-appended to the
	// destination on redirect.
	Query  string
	Signal classify.Signal

	// Link is nil when resolution failed; LinkErr then distinguishes
	// not-found from inactive.
	Link    *links.Link
	LinkErr error

	Blacklisted bool

	// RootRedirect is the configured destination for the bare domain
	// root, present only on active custom domains.
	RootRedirect string
}

// Outcome is the terminal decision.
type Outcome struct {
	Verdict  Verdict
	Action   Action
	Location string
	// BlacklistIP tells the caller to write the visitor IP to the
	// shared blacklist (24h TTL).
	BlacklistIP bool
	// SkipDispatch suppresses CAPI/bridge dispatch (no-tracking bots).
	SkipDispatch bool
	// RecordClick is false for outcomes that produce no ClickEvent.
	RecordClick bool
}

// Decide runs the machine to a terminal state.
func Decide(in Input) Outcome {
	s := stateIntake
	var out Outcome

	for s != stateTerminal {
		s, out = transition(s, in, out)
	}
	return out
}

func transition(s state, in Input, out Outcome) (state, Outcome) {
	switch s {
	case stateIntake:
		if in.SlugInvalid {
			return stateSlugInvalid, out
		}
		if in.Slug == "" {
			return stateNoSlug, out
		}
		return stateLookup, out

	case stateNoSlug:
		if in.RootRedirect != "" {
			return stateTerminal, Outcome{
				Verdict:  VerdictRoot,
				Action:   ActionRedirect,
				Location: in.RootRedirect,
			}
		}
		return stateTerminal, Outcome{Verdict: VerdictRoot, Action: ActionNotFoundPage}

	case stateSlugInvalid:
		return stateTerminal, Outcome{
			Verdict:     VerdictInvalidSlug,
			Action:      ActionNotFoundPage,
			RecordClick: true,
		}

	case stateLookup:
		switch {
		case in.LinkErr == links.ErrInactive:
			return stateInactive, out
		case in.Link == nil:
			return stateNotFound, out
		case in.Blacklisted:
			return stateBlacklisted, out
		default:
			return stateBotAnalysis, out
		}

	case stateNotFound:
		return stateTerminal, Outcome{
			Verdict:     VerdictNotFound,
			Action:      ActionNotFoundPage,
			RecordClick: true,
		}

	case stateInactive:
		return stateTerminal, Outcome{
			Verdict:     VerdictInactive,
			Action:      ActionNotFoundPage,
			RecordClick: true,
		}

	case stateBlacklisted:
		return stateTerminal, Outcome{
			Verdict:     VerdictBlacklisted,
			Action:      ActionNotFoundPage,
			RecordClick: true,
		}

	case stateBotAnalysis:
		return stateTerminal, analyze(in)
	}

	// Unreachable; all states return above.
	return stateTerminal, out
}

// analyze classifies the visitor and applies the link's bot action.
func analyze(in Input) Outcome {
	v := classifySignal(in.Signal)

	out := Outcome{
		Verdict:     v,
		RecordClick: true,
		BlacklistIP: in.Signal.BotScore <= scoreBlacklist || v == VerdictImpersonator,
	}

	isBot := v == VerdictBotLikely || v == VerdictBotCertain || v == VerdictImpersonator
	if !isBot {
		out.Action = ActionRedirect
		out.Location = AppendQuery(in.Link.TargetURL, in.Query)
		return out
	}

	switch in.Link.BotAction {
	case links.BotActionBlock:
		if in.Link.FallbackURL != "" {
			out.Action = ActionRedirect
			out.Location = AppendQuery(in.Link.FallbackURL, in.Query)
		} else {
			out.Action = ActionNotFoundPage
		}
		out.SkipDispatch = true

	case links.BotActionRedirect:
		target := in.Link.TargetURL
		if in.Link.FallbackURL != "" {
			target = in.Link.FallbackURL
		}
		out.Action = ActionRedirect
		out.Location = AppendQuery(target, in.Query)
		out.SkipDispatch = true

	case links.BotActionNoTracking:
		out.Action = ActionRedirect
		out.Location = AppendQuery(in.Link.TargetURL, in.Query)
		out.SkipDispatch = true

	default:
		// Unconfigured links behave like no-tracking.
		out.Action = ActionRedirect
		out.Location = AppendQuery(in.Link.TargetURL, in.Query)
		out.SkipDispatch = true
	}

	return out
}

func classifySignal(sig classify.Signal) Verdict {
	if sig.Impersonator {
		return VerdictImpersonator
	}
	switch {
	case sig.BotScore <= scoreBotCertain:
		return VerdictBotCertain
	case sig.BotScore <= scoreBotLikely:
		return VerdictBotLikely
	case sig.BotScore <= scoreSuspicious:
		return VerdictSuspicious
	default:
		return VerdictClean
	}
}

// AppendQuery merges rawQuery into target's existing query string,
// percent-encoded. On any construction failure the stored target is
// returned unmodified; a malformed param must never break the
// redirect.
func AppendQuery(target, rawQuery string) string {
	if rawQuery == "" {
		return target
	}

	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	incoming, err := url.ParseQuery(rawQuery)
	if err != nil {
		return target
	}

	q := u.Query()
	for key, vals := range incoming {
		for _, v := range vals {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
