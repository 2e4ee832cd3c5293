package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"meetbot/internal/botlog"
)

const (
	DefaultURL       = "https://teams.microsoft.com/"
	DefaultLoginHost = "login.microsoftonline.com"
)

type TeamsOptions struct {
	URL         string
	LoginHost   string
	Credentials Credentials
	Selectors   Selectors
	Timeouts    Timeouts
	Logger      *botlog.Logger
	// Sleep overrides the settle delays; tests pass a no-op.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Teams drives the Microsoft Teams web client through a Page.
type Teams struct {
	page     Page
	url      string
	host     string
	creds    Credentials
	sel      Selectors
	timeouts Timeouts
	log      *botlog.Logger
	sleep    func(ctx context.Context, d time.Duration) error

	navigated bool
}

func NewTeams(page Page, opts TeamsOptions) (*Teams, error) {
	if page == nil {
		return nil, errors.New("page is nil")
	}
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		url = DefaultURL
	}
	host := strings.TrimSpace(opts.LoginHost)
	if host == "" {
		host = DefaultLoginHost
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Teams{
		page:     page,
		url:      url,
		host:     host,
		creds:    opts.Credentials,
		sel:      opts.Selectors.WithDefaults(),
		timeouts: opts.Timeouts.WithDefaults(),
		log:      opts.Logger,
		sleep:    sleep,
	}, nil
}

func (t *Teams) EnsureAuthenticated(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = t.timeouts.Landmark
	}
	if !t.navigated {
		navCtx, cancel := context.WithTimeout(ctx, t.timeouts.PageLoad)
		err := t.page.Navigate(navCtx, t.url)
		cancel()
		if err != nil {
			return &AuthenticationError{Step: "navigate", Err: err}
		}
		t.navigated = true
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	idx, err := t.page.WaitVisible(waitCtx,
		ParseSelector(t.sel.AppLandmark),
		ParseSelector(t.sel.LoginEmail),
	)
	cancel()
	if err != nil {
		return &AuthenticationError{Step: "landmark", Err: err}
	}

	needsLogin := idx == 1
	locCtx, cancel := context.WithTimeout(ctx, t.timeouts.Probe)
	loc, err := t.page.Location(locCtx)
	cancel()
	if err == nil && strings.Contains(loc, t.host) {
		needsLogin = true
	}
	if !needsLogin {
		t.log.Infof("already signed in")
		return nil
	}
	return t.login(ctx)
}

func (t *Teams) login(ctx context.Context) error {
	if !t.creds.Complete() {
		return &AuthenticationError{Step: "credentials", Err: errors.New("identifier and secret are required")}
	}
	t.log.Infof("logging in as %s", t.creds.Identifier)

	email := ParseSelector(t.sel.LoginEmail)
	password := ParseSelector(t.sel.LoginPassword)
	submit := ParseSelector(t.sel.LoginSubmit)

	if err := t.fill(ctx, email, t.creds.Identifier); err != nil {
		return &AuthenticationError{Step: "identifier", Err: err}
	}
	if err := t.clickWhenReady(ctx, submit); err != nil {
		return &AuthenticationError{Step: "identifier submit", Err: err}
	}
	if err := t.fill(ctx, password, t.creds.Secret); err != nil {
		return &AuthenticationError{Step: "secret", Err: err}
	}
	if err := t.clickWhenReady(ctx, submit); err != nil {
		return &AuthenticationError{Step: "secret submit", Err: err}
	}
	// "Stay signed in?" only appears sometimes.
	if err := t.clickWhenReady(ctx, submit); err != nil {
		t.log.Debugf("stay signed in prompt not shown: %v", err)
	}
	t.log.Infof("login successful")
	return nil
}

func (t *Teams) fill(ctx context.Context, sel Selector, text string) error {
	stepCtx, cancel := context.WithTimeout(ctx, t.timeouts.LoginStep)
	defer cancel()
	if err := t.page.WaitClickable(stepCtx, sel); err != nil {
		return err
	}
	return t.page.Type(stepCtx, sel, text)
}

func (t *Teams) clickWhenReady(ctx context.Context, sel Selector) error {
	stepCtx, cancel := context.WithTimeout(ctx, t.timeouts.LoginStep)
	defer cancel()
	if err := t.page.WaitClickable(stepCtx, sel); err != nil {
		return err
	}
	return t.page.Click(stepCtx, sel)
}

func (t *Teams) OpenTeam(ctx context.Context, team string) error {
	name := strings.TrimSpace(team)
	if name == "" {
		return &TeamNotFoundError{Team: team, Err: errors.New("team name is empty")}
	}

	// A collapsed rail keeps team buttons in the DOM without showing them.
	listCtx, cancel := context.WithTimeout(ctx, t.timeouts.TeamList)
	err := t.page.WaitPresent(listCtx, ParseSelector(t.sel.TeamList))
	cancel()
	if err != nil {
		return &TeamNotFoundError{Team: name, Err: fmt.Errorf("team list: %w", err)}
	}

	item := t.sel.teamItemSelector(name)
	clickCtx, cancel := context.WithTimeout(ctx, t.timeouts.Probe)
	err = t.page.Click(clickCtx, item)
	cancel()
	if err != nil {
		return &TeamNotFoundError{Team: name, Err: err}
	}
	t.log.Infof("opened team %q", name)
	return t.sleep(ctx, t.timeouts.TeamSettle)
}

func (t *Teams) FindMeetingBanner(ctx context.Context, meeting string) (BannerLookup, error) {
	want := strings.ToLower(strings.TrimSpace(meeting))

	banners, err := t.elements(ctx, ParseSelector(t.sel.Banner))
	if err != nil || len(banners) == 0 {
		fallback, fbErr := t.elements(ctx, ParseSelector(t.sel.BannerFallback))
		if fbErr != nil {
			if err == nil {
				err = fbErr
			}
			return NotFound(), fmt.Errorf("locate meeting banners: %w", err)
		}
		banners = fallback
	}
	if len(banners) == 0 {
		return NotFound(), nil
	}

	for _, el := range banners {
		if strings.Contains(strings.ToLower(el.Text), want) {
			t.log.Infof("found meeting banner for %q: %q", meeting, botlog.Preview(el.Text, 40))
			return Found(Banner{Text: el.Text, Element: el}), nil
		}
	}
	return NotFound(), nil
}

// elements bounds a single lookup by the probe timeout.
func (t *Teams) elements(ctx context.Context, sel Selector) ([]Element, error) {
	probeCtx, cancel := context.WithTimeout(ctx, t.timeouts.Probe)
	defer cancel()
	return t.page.Elements(probeCtx, sel)
}

func (t *Teams) Join(ctx context.Context, banner Banner) error {
	meeting := botlog.Preview(banner.Text, 40)

	clickCtx, cancel := context.WithTimeout(ctx, t.timeouts.Probe)
	err := t.page.ClickWithin(clickCtx, banner.Element, ParseSelector(t.sel.BannerJoin))
	cancel()
	if err != nil {
		return &JoinError{Meeting: meeting, Stage: "banner join", Err: err}
	}

	if err := t.sleep(ctx, t.timeouts.PreJoin); err != nil {
		return &JoinError{Meeting: meeting, Stage: "pre-join", Err: err}
	}

	t.switchOff(ctx, "camera", ParseSelector(t.sel.VideoToggle))
	t.switchOff(ctx, "microphone", ParseSelector(t.sel.MuteToggle))

	confirmCtx, cancel := context.WithTimeout(ctx, t.timeouts.Probe)
	err = t.page.Click(confirmCtx, ParseSelector(t.sel.JoinConfirm))
	cancel()
	if err != nil {
		return &JoinError{Meeting: meeting, Stage: "confirm", Err: err}
	}
	return nil
}

// switchOff flips a pre-join toggle only when it reads as enabled. A missing
// toggle is not an error.
func (t *Teams) switchOff(ctx context.Context, what string, sel Selector) {
	probeCtx, cancel := context.WithTimeout(ctx, t.timeouts.Probe)
	defer cancel()
	state, ok, err := t.page.Attribute(probeCtx, sel, t.sel.ToggleState)
	if err != nil || !ok {
		t.log.Debugf("%s toggle not found: %v", what, err)
		return
	}
	if state != "true" {
		return
	}
	if err := t.page.Click(probeCtx, sel); err != nil {
		t.log.Warnf("could not turn off %s: %v", what, err)
		return
	}
	t.log.Infof("turned off %s", what)
}

func (t *Teams) Leave(ctx context.Context) error {
	clickCtx, cancel := context.WithTimeout(ctx, t.timeouts.Probe)
	defer cancel()
	if err := t.page.Click(clickCtx, ParseSelector(t.sel.Leave)); err != nil {
		return &LeaveError{Err: err}
	}
	return nil
}

func (t *Teams) Close() error {
	return t.page.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
