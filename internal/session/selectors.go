package session

import (
	"fmt"
	"strings"
	"time"
)

// Selectors locates the landmarks and controls of the Teams web client.
// Values use an optional "id:", "css:" or "xpath:" prefix; unprefixed values
// starting with "/" or "(" are XPath, everything else is CSS.
type Selectors struct {
	AppLandmark   string `json:"app_landmark"`
	LoginEmail    string `json:"login_email"`
	LoginPassword string `json:"login_password"`
	LoginSubmit   string `json:"login_submit"`

	TeamList string `json:"team_list"`
	// TeamItem is a format string; %s receives the quoted team label.
	TeamItem string `json:"team_item"`

	Banner         string `json:"banner"`
	BannerFallback string `json:"banner_fallback"`
	BannerJoin     string `json:"banner_join"`

	VideoToggle string `json:"video_toggle"`
	MuteToggle  string `json:"mute_toggle"`
	ToggleState string `json:"toggle_state"`
	JoinConfirm string `json:"join_confirm"`

	Leave string `json:"leave"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		AppLandmark:    "css:.teams-app-bar",
		LoginEmail:     "id:i0116",
		LoginPassword:  "id:i0118",
		LoginSubmit:    "id:idSIButton9",
		TeamList:       "css:button[data-testid='team-name']",
		TeamItem:       "css:button[data-testid='team-name'][aria-label=%s]",
		Banner:         "xpath://div[contains(@data-tid,'pre-state-schedule-meeting-banner-renderer')]",
		BannerFallback: "xpath://div[contains(@aria-label,'Scheduled meeting')]",
		BannerJoin:     "css:button[data-tid='pre-state-schedule-meeting-join-button']",
		VideoToggle:    "css:div[data-tid='toggle-video']",
		MuteToggle:     "css:div[data-tid='toggle-mute']",
		ToggleState:    "aria-checked",
		JoinConfirm:    "xpath://button[contains(text(),'Join')]",
		Leave:          `xpath://button[@aria-label="Leave"]`,
	}
}

// WithDefaults fills blank fields from DefaultSelectors.
func (s Selectors) WithDefaults() Selectors {
	def := DefaultSelectors()
	fill := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = v
		}
	}
	fill(&s.AppLandmark, def.AppLandmark)
	fill(&s.LoginEmail, def.LoginEmail)
	fill(&s.LoginPassword, def.LoginPassword)
	fill(&s.LoginSubmit, def.LoginSubmit)
	fill(&s.TeamList, def.TeamList)
	fill(&s.TeamItem, def.TeamItem)
	fill(&s.Banner, def.Banner)
	fill(&s.BannerFallback, def.BannerFallback)
	fill(&s.BannerJoin, def.BannerJoin)
	fill(&s.VideoToggle, def.VideoToggle)
	fill(&s.MuteToggle, def.MuteToggle)
	fill(&s.ToggleState, def.ToggleState)
	fill(&s.JoinConfirm, def.JoinConfirm)
	fill(&s.Leave, def.Leave)
	return s
}

// ParseSelector turns a configured selector string into a Selector.
func ParseSelector(raw string) Selector {
	text := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(text, "id:"):
		return ID(strings.TrimSpace(strings.TrimPrefix(text, "id:")))
	case strings.HasPrefix(text, "css:"):
		return CSS(strings.TrimSpace(strings.TrimPrefix(text, "css:")))
	case strings.HasPrefix(text, "xpath:"):
		return XPath(strings.TrimSpace(strings.TrimPrefix(text, "xpath:")))
	case strings.HasPrefix(text, "/"), strings.HasPrefix(text, "("):
		return XPath(text)
	default:
		return CSS(text)
	}
}

// teamItemSelector renders TeamItem for an exact team label.
func (s Selectors) teamItemSelector(team string) Selector {
	sel := ParseSelector(s.TeamItem)
	if strings.Contains(sel.Value, "%s") {
		sel.Value = fmt.Sprintf(sel.Value, quoteSelectorValue(sel.Kind, team))
	}
	return sel
}

// quoteSelectorValue produces a quoted literal for an attribute comparison.
func quoteSelectorValue(kind SelectorKind, v string) string {
	if kind == ByXPath {
		if !strings.Contains(v, "'") {
			return "'" + v + "'"
		}
		if !strings.Contains(v, `"`) {
			return `"` + v + `"`
		}
		parts := strings.Split(v, "'")
		return "concat('" + strings.Join(parts, `', "'", '`) + "')"
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(v) + `"`
}

// Timeouts bounds every UI wait.
type Timeouts struct {
	PageLoad   time.Duration
	Landmark   time.Duration
	LoginStep  time.Duration
	TeamList   time.Duration
	Probe      time.Duration
	TeamSettle time.Duration
	PreJoin    time.Duration
}

func DefaultTimeouts() Timeouts {
	return Timeouts{
		PageLoad:   120 * time.Second,
		Landmark:   120 * time.Second,
		LoginStep:  60 * time.Second,
		TeamList:   20 * time.Second,
		Probe:      10 * time.Second,
		TeamSettle: 2 * time.Second,
		PreJoin:    5 * time.Second,
	}
}

func (t Timeouts) WithDefaults() Timeouts {
	def := DefaultTimeouts()
	if t.PageLoad <= 0 {
		t.PageLoad = def.PageLoad
	}
	if t.Landmark <= 0 {
		t.Landmark = def.Landmark
	}
	if t.LoginStep <= 0 {
		t.LoginStep = def.LoginStep
	}
	if t.TeamList <= 0 {
		t.TeamList = def.TeamList
	}
	if t.Probe <= 0 {
		t.Probe = def.Probe
	}
	if t.TeamSettle < 0 {
		t.TeamSettle = 0
	}
	if t.PreJoin < 0 {
		t.PreJoin = 0
	}
	return t
}
