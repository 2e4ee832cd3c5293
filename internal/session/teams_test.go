package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

// fakePage is an in-memory Page. Selectors listed in visible are shown,
// clickable ones accept clicks and the rest time out immediately.
type fakePage struct {
	url       string
	location  string
	visible   map[string]bool
	present   map[string]bool
	clickable map[string]bool
	attrs     map[string]string
	elements  map[string][]Element
	// withinOK lists banner texts whose join control exists.
	withinOK map[string]bool
	// boundedLookups makes Location and Elements fail without a deadline.
	boundedLookups bool

	calls  []string
	typed  map[string]string
	closed bool
}

func newFakePage() *fakePage {
	return &fakePage{
		visible:   map[string]bool{},
		present:   map[string]bool{},
		clickable: map[string]bool{},
		attrs:     map[string]string{},
		elements:  map[string][]Element{},
		withinOK:  map[string]bool{},
		typed:     map[string]string{},
	}
}

func (p *fakePage) record(format string, args ...any) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.record("navigate %s", url)
	p.url = url
	return nil
}

func (p *fakePage) checkDeadline(ctx context.Context, op string) error {
	if _, ok := ctx.Deadline(); p.boundedLookups && !ok {
		return fmt.Errorf("%s called without a deadline", op)
	}
	return nil
}

func (p *fakePage) Location(ctx context.Context) (string, error) {
	if err := p.checkDeadline(ctx, "Location"); err != nil {
		return "", err
	}
	if p.location != "" {
		return p.location, nil
	}
	return p.url, nil
}

func (p *fakePage) WaitVisible(ctx context.Context, sels ...Selector) (int, error) {
	for i, sel := range sels {
		if p.visible[sel.String()] {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %v", ErrElementNotFound, sels)
}

func (p *fakePage) WaitPresent(ctx context.Context, sel Selector) error {
	if p.present[sel.String()] || p.visible[sel.String()] {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrElementNotFound, sel)
}

func (p *fakePage) WaitClickable(ctx context.Context, sel Selector) error {
	if p.clickable[sel.String()] {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrElementNotFound, sel)
}

func (p *fakePage) Click(ctx context.Context, sel Selector) error {
	if !p.clickable[sel.String()] {
		return fmt.Errorf("%w: %s", ErrElementNotFound, sel)
	}
	p.record("click %s", sel)
	if v, ok := p.attrs[sel.String()]; ok && v == "true" {
		p.attrs[sel.String()] = "false"
	}
	return nil
}

func (p *fakePage) Type(ctx context.Context, sel Selector, text string) error {
	p.record("type %s", sel)
	p.typed[sel.String()] = text
	return nil
}

func (p *fakePage) Attribute(ctx context.Context, sel Selector, name string) (string, bool, error) {
	v, ok := p.attrs[sel.String()]
	if !ok {
		return "", false, fmt.Errorf("%w: %s", ErrElementNotFound, sel)
	}
	return v, true, nil
}

func (p *fakePage) Elements(ctx context.Context, sel Selector) ([]Element, error) {
	if err := p.checkDeadline(ctx, "Elements"); err != nil {
		return nil, err
	}
	return p.elements[sel.String()], nil
}

func (p *fakePage) ClickWithin(ctx context.Context, el Element, sel Selector) error {
	if !p.withinOK[el.Text] {
		return fmt.Errorf("%w: %s in %q", ErrElementNotFound, sel, el.Text)
	}
	p.record("click-within %q %s", el.Text, sel)
	return nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func newTestTeams(t *testing.T, page *fakePage) *Teams {
	t.Helper()
	teams, err := NewTeams(page, TeamsOptions{
		Credentials: Credentials{Identifier: "bot@example.com", Secret: "hunter2"},
		Sleep:       noSleep,
	})
	if err != nil {
		t.Fatalf("NewTeams failed: %v", err)
	}
	return teams
}

func sel(raw string) string { return ParseSelector(raw).String() }

func TestEnsureAuthenticatedAlreadySignedIn(t *testing.T) {
	page := newFakePage()
	def := DefaultSelectors()
	page.visible[sel(def.AppLandmark)] = true

	teams := newTestTeams(t, page)
	if err := teams.EnsureAuthenticated(context.Background(), time.Second); err != nil {
		t.Fatalf("EnsureAuthenticated failed: %v", err)
	}
	if len(page.typed) != 0 {
		t.Fatalf("expected no credentials typed, got %v", page.typed)
	}
	if page.calls[0] != "navigate "+DefaultURL {
		t.Fatalf("expected navigation first, got %v", page.calls)
	}

	// A second call must not navigate again.
	if err := teams.EnsureAuthenticated(context.Background(), time.Second); err != nil {
		t.Fatalf("EnsureAuthenticated(2) failed: %v", err)
	}
	navs := 0
	for _, c := range page.calls {
		if strings.HasPrefix(c, "navigate") {
			navs++
		}
	}
	if navs != 1 {
		t.Fatalf("expected one navigation, got %d", navs)
	}
}

func TestEnsureAuthenticatedPerformsLogin(t *testing.T) {
	page := newFakePage()
	def := DefaultSelectors()
	page.visible[sel(def.LoginEmail)] = true
	page.clickable[sel(def.LoginEmail)] = true
	page.clickable[sel(def.LoginPassword)] = true
	page.clickable[sel(def.LoginSubmit)] = true

	teams := newTestTeams(t, page)
	if err := teams.EnsureAuthenticated(context.Background(), time.Second); err != nil {
		t.Fatalf("EnsureAuthenticated failed: %v", err)
	}
	if page.typed[sel(def.LoginEmail)] != "bot@example.com" {
		t.Fatalf("identifier not typed: %v", page.typed)
	}
	if page.typed[sel(def.LoginPassword)] != "hunter2" {
		t.Fatalf("secret not typed: %v", page.typed)
	}
	want := []string{
		"navigate " + DefaultURL,
		"type " + sel(def.LoginEmail),
		"click " + sel(def.LoginSubmit),
		"type " + sel(def.LoginPassword),
		"click " + sel(def.LoginSubmit),
		"click " + sel(def.LoginSubmit),
	}
	if strings.Join(page.calls, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected call sequence:\n%s", strings.Join(page.calls, "\n"))
	}
}

func TestEnsureAuthenticatedLoginURLForcesLogin(t *testing.T) {
	page := newFakePage()
	def := DefaultSelectors()
	page.visible[sel(def.AppLandmark)] = true
	page.location = "https://login.microsoftonline.com/common/oauth2"
	// The identifier field never becomes interactable.

	teams := newTestTeams(t, page)
	err := teams.EnsureAuthenticated(context.Background(), time.Second)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) || authErr.Step != "identifier" {
		t.Fatalf("expected identifier AuthenticationError, got %v", err)
	}
}

func TestEnsureAuthenticatedTimesOutWithoutLandmark(t *testing.T) {
	page := newFakePage()
	teams := newTestTeams(t, page)
	err := teams.EnsureAuthenticated(context.Background(), time.Millisecond)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if !errors.Is(err, ErrElementNotFound) {
		t.Fatalf("expected wrapped ErrElementNotFound, got %v", err)
	}
}

func TestEnsureAuthenticatedRequiresCredentials(t *testing.T) {
	page := newFakePage()
	page.visible[sel(DefaultSelectors().LoginEmail)] = true
	teams, err := NewTeams(page, TeamsOptions{Sleep: noSleep})
	if err != nil {
		t.Fatalf("NewTeams failed: %v", err)
	}
	err = teams.EnsureAuthenticated(context.Background(), time.Second)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) || authErr.Step != "credentials" {
		t.Fatalf("expected credentials AuthenticationError, got %v", err)
	}
}

func TestOpenTeamClicksExactLabel(t *testing.T) {
	page := newFakePage()
	def := DefaultSelectors()
	page.visible[sel(def.TeamList)] = true
	item := `css=button[data-testid='team-name'][aria-label="Team Rockers"]`
	page.clickable[item] = true

	teams := newTestTeams(t, page)
	if err := teams.OpenTeam(context.Background(), "Team Rockers"); err != nil {
		t.Fatalf("OpenTeam failed: %v", err)
	}
	if page.calls[len(page.calls)-1] != "click "+item {
		t.Fatalf("unexpected calls: %v", page.calls)
	}
}

func TestOpenTeamNotFound(t *testing.T) {
	page := newFakePage()
	page.visible[sel(DefaultSelectors().TeamList)] = true
	teams := newTestTeams(t, page)

	err := teams.OpenTeam(context.Background(), "Team Nobody")
	var teamErr *TeamNotFoundError
	if !errors.As(err, &teamErr) || teamErr.Team != "Team Nobody" {
		t.Fatalf("expected TeamNotFoundError, got %v", err)
	}

	page.visible = map[string]bool{}
	if err := teams.OpenTeam(context.Background(), "Team Rockers"); !errors.As(err, &teamErr) {
		t.Fatalf("expected TeamNotFoundError when list is absent, got %v", err)
	}
}

func TestFindMeetingBannerCaseInsensitiveSubstring(t *testing.T) {
	page := newFakePage()
	def := DefaultSelectors()
	page.elements[sel(def.Banner)] = []Element{
		{Text: "Physics - Lab"},
		{Text: "MATHS 101 - Lecture"},
	}
	teams := newTestTeams(t, page)

	got, err := teams.FindMeetingBanner(context.Background(), "maths")
	if err != nil {
		t.Fatalf("FindMeetingBanner failed: %v", err)
	}
	if !got.Found() || got.Banner.Text != "MATHS 101 - Lecture" {
		t.Fatalf("expected MATHS banner, got %+v", got)
	}

	got, err = teams.FindMeetingBanner(context.Background(), "chemistry")
	if err != nil {
		t.Fatalf("FindMeetingBanner(2) failed: %v", err)
	}
	if got.Found() {
		t.Fatalf("expected NotFound, got %+v", got)
	}
}

func TestFindMeetingBannerUsesFallbackSelector(t *testing.T) {
	page := newFakePage()
	def := DefaultSelectors()
	page.elements[sel(def.BannerFallback)] = []Element{{Text: "Scheduled meeting Maths"}}
	teams := newTestTeams(t, page)

	got, err := teams.FindMeetingBanner(context.Background(), "Maths")
	if err != nil {
		t.Fatalf("FindMeetingBanner failed: %v", err)
	}
	if !got.Found() {
		t.Fatalf("expected fallback banner to match")
	}
}

func TestFindMeetingBannerNoBanners(t *testing.T) {
	teams := newTestTeams(t, newFakePage())
	got, err := teams.FindMeetingBanner(context.Background(), "Maths")
	if err != nil || got.Found() {
		t.Fatalf("expected NotFound without error, got %+v err=%v", got, err)
	}
}

func TestLookupsAreBoundedWithoutCallerDeadline(t *testing.T) {
	page := newFakePage()
	page.boundedLookups = true
	def := DefaultSelectors()
	page.visible[sel(def.AppLandmark)] = true
	page.elements[sel(def.BannerFallback)] = []Element{{Text: "Scheduled meeting Maths"}}
	teams := newTestTeams(t, page)

	// The attendance machine drives UI steps on a context that never ends.
	ctx := context.WithoutCancel(context.Background())
	if err := teams.EnsureAuthenticated(ctx, time.Second); err != nil {
		t.Fatalf("EnsureAuthenticated failed: %v", err)
	}
	got, err := teams.FindMeetingBanner(ctx, "maths")
	if err != nil {
		t.Fatalf("FindMeetingBanner failed: %v", err)
	}
	if !got.Found() {
		t.Fatalf("expected fallback banner to match")
	}
}

func TestOpenTeamAcceptsHiddenTeamList(t *testing.T) {
	page := newFakePage()
	def := DefaultSelectors()
	page.present[sel(def.TeamList)] = true
	item := `css=button[data-testid='team-name'][aria-label="Team Rockers"]`
	page.clickable[item] = true

	teams := newTestTeams(t, page)
	if err := teams.OpenTeam(context.Background(), "Team Rockers"); err != nil {
		t.Fatalf("OpenTeam failed: %v", err)
	}
}

func TestJoinMutesEnabledTogglesOnly(t *testing.T) {
	page := newFakePage()
	def := DefaultSelectors()
	banner := Banner{Text: "Maths", Element: Element{Text: "Maths"}}
	page.withinOK["Maths"] = true
	page.attrs[sel(def.VideoToggle)] = "true"
	page.attrs[sel(def.MuteToggle)] = "false"
	page.clickable[sel(def.VideoToggle)] = true
	page.clickable[sel(def.MuteToggle)] = true
	page.clickable[sel(def.JoinConfirm)] = true

	teams := newTestTeams(t, page)
	if err := teams.Join(context.Background(), banner); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	want := []string{
		`click-within "Maths" ` + sel(def.BannerJoin),
		"click " + sel(def.VideoToggle),
		"click " + sel(def.JoinConfirm),
	}
	if strings.Join(page.calls, "\n") != strings.Join(want, "\n") {
		t.Fatalf("unexpected calls:\n%s", strings.Join(page.calls, "\n"))
	}
	if page.attrs[sel(def.VideoToggle)] != "false" {
		t.Fatalf("expected camera to be off")
	}
}

func TestJoinToleratesMissingToggles(t *testing.T) {
	page := newFakePage()
	def := DefaultSelectors()
	page.withinOK["Maths"] = true
	page.clickable[sel(def.JoinConfirm)] = true

	teams := newTestTeams(t, page)
	if err := teams.Join(context.Background(), Banner{Text: "Maths", Element: Element{Text: "Maths"}}); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
}

func TestJoinFailsWithoutConfirmation(t *testing.T) {
	page := newFakePage()
	page.withinOK["Maths"] = true
	teams := newTestTeams(t, page)

	err := teams.Join(context.Background(), Banner{Text: "Maths", Element: Element{Text: "Maths"}})
	var joinErr *JoinError
	if !errors.As(err, &joinErr) || joinErr.Stage != "confirm" {
		t.Fatalf("expected confirm JoinError, got %v", err)
	}
}

func TestJoinFailsWithoutBannerControl(t *testing.T) {
	teams := newTestTeams(t, newFakePage())
	err := teams.Join(context.Background(), Banner{Text: "Maths", Element: Element{Text: "Maths"}})
	var joinErr *JoinError
	if !errors.As(err, &joinErr) || joinErr.Stage != "banner join" {
		t.Fatalf("expected banner JoinError, got %v", err)
	}
}

func TestLeave(t *testing.T) {
	page := newFakePage()
	teams := newTestTeams(t, page)

	var leaveErr *LeaveError
	if err := teams.Leave(context.Background()); !errors.As(err, &leaveErr) {
		t.Fatalf("expected LeaveError, got %v", err)
	}

	page.clickable[sel(DefaultSelectors().Leave)] = true
	if err := teams.Leave(context.Background()); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if err := teams.Close(); err != nil || !page.closed {
		t.Fatalf("expected page to be closed, err=%v", err)
	}
}

func TestParseSelector(t *testing.T) {
	cases := map[string]Selector{
		"id:i0116":             ID("i0116"),
		"css:.teams-app-bar":   CSS(".teams-app-bar"),
		"xpath://button":       XPath("//button"),
		"//div[@a='b']":        XPath("//div[@a='b']"),
		"button[data-tid='x']": CSS("button[data-tid='x']"),
		"(//button)[1]":        XPath("(//button)[1]"),
	}
	for in, want := range cases {
		if got := ParseSelector(in); got != want {
			t.Fatalf("ParseSelector(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTeamItemSelectorQuoting(t *testing.T) {
	s := Selectors{TeamItem: "xpath://button[@aria-label=%s]"}
	got := s.teamItemSelector("Rock 'n' Roll")
	if got.Value != `//button[@aria-label="Rock 'n' Roll"]` {
		t.Fatalf("unexpected xpath: %s", got.Value)
	}
	s = Selectors{TeamItem: "css:button[aria-label=%s]"}
	got = s.teamItemSelector(`Say "hi"`)
	if got.Value != `button[aria-label="Say \"hi\""]` {
		t.Fatalf("unexpected css: %s", got.Value)
	}
}
