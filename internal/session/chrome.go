package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

type ChromeOptions struct {
	Headless    bool
	UserDataDir string
	ExecPath    string
	// PollInterval is the per-selector slice WaitVisible spends on each
	// candidate before trying the next.
	PollInterval time.Duration
}

// ChromePage implements Page on a dedicated Chrome instance. Each
// ChromePage owns its own browser context.
type ChromePage struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	poll          time.Duration

	closeOnce sync.Once
	closeErr  error
}

func NewChromePage(opts ChromeOptions) (*ChromePage, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("enable-automation", false),
		// Grant camera, microphone and notification prompts without a dialog.
		chromedp.Flag("use-fake-ui-for-media-stream", true),
		chromedp.NoSandbox,
	)
	if dir := strings.TrimSpace(opts.UserDataDir); dir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(dir))
	}
	if exe := strings.TrimSpace(opts.ExecPath); exe != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(exe))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	// Start the browser now so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &ChromePage{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		poll:          poll,
	}, nil
}

// run executes actions on the browser context, bounded by ctx.
func (p *ChromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.browserCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrElementNotFound, ctx.Err())
	}
	return err
}

func queryArgs(sel Selector) (string, []chromedp.QueryOption) {
	switch sel.Kind {
	case ByID:
		return "#" + sel.Value, []chromedp.QueryOption{chromedp.ByQuery}
	case ByXPath:
		return sel.Value, []chromedp.QueryOption{chromedp.BySearch}
	default:
		return sel.Value, []chromedp.QueryOption{chromedp.ByQuery}
	}
}

func (p *ChromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *ChromePage) Location(ctx context.Context) (string, error) {
	var loc string
	if err := p.run(ctx, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

func (p *ChromePage) WaitVisible(ctx context.Context, sels ...Selector) (int, error) {
	if len(sels) == 0 {
		return -1, errors.New("no selectors")
	}
	for {
		for i, sel := range sels {
			probeCtx, cancel := context.WithTimeout(ctx, p.poll)
			q, opts := queryArgs(sel)
			err := p.run(probeCtx, chromedp.WaitVisible(q, opts...))
			cancel()
			if err == nil {
				return i, nil
			}
			if ctx.Err() != nil {
				return -1, fmt.Errorf("%w: waiting for %v: %v", ErrElementNotFound, sels, ctx.Err())
			}
		}
	}
}

func (p *ChromePage) WaitPresent(ctx context.Context, sel Selector) error {
	q, opts := queryArgs(sel)
	return p.run(ctx, chromedp.WaitReady(q, opts...))
}

func (p *ChromePage) WaitClickable(ctx context.Context, sel Selector) error {
	q, opts := queryArgs(sel)
	return p.run(ctx, chromedp.WaitVisible(q, opts...), chromedp.WaitEnabled(q, opts...))
}

func (p *ChromePage) Click(ctx context.Context, sel Selector) error {
	q, opts := queryArgs(sel)
	return p.run(ctx, chromedp.Click(q, append(opts, chromedp.NodeVisible)...))
}

func (p *ChromePage) Type(ctx context.Context, sel Selector, text string) error {
	q, opts := queryArgs(sel)
	return p.run(ctx, chromedp.Clear(q, opts...), chromedp.SendKeys(q, text, opts...))
}

func (p *ChromePage) Attribute(ctx context.Context, sel Selector, name string) (string, bool, error) {
	q, opts := queryArgs(sel)
	var (
		value string
		ok    bool
	)
	if err := p.run(ctx, chromedp.AttributeValue(q, name, &value, &ok, opts...)); err != nil {
		return "", false, err
	}
	return value, ok, nil
}

func (p *ChromePage) Elements(ctx context.Context, sel Selector) ([]Element, error) {
	q, opts := queryArgs(sel)
	if sel.Kind != ByXPath {
		opts = []chromedp.QueryOption{chromedp.ByQueryAll}
	}
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(q, &nodes, append(opts, chromedp.AtLeast(0))...)); err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		var text string
		textCtx, cancel := context.WithTimeout(ctx, p.poll)
		if err := p.run(textCtx, chromedp.Text([]cdp.NodeID{n.NodeID}, &text, chromedp.ByNodeID)); err != nil {
			text = ""
		}
		cancel()
		out = append(out, Element{Text: text, Ref: n})
	}
	return out, nil
}

func (p *ChromePage) ClickWithin(ctx context.Context, el Element, sel Selector) error {
	node, ok := el.Ref.(*cdp.Node)
	if !ok || node == nil {
		return fmt.Errorf("%w: element has no node", ErrElementNotFound)
	}
	if sel.Kind == ByXPath {
		return fmt.Errorf("click within element needs a css selector, got %s", sel)
	}
	q, _ := queryArgs(sel)
	return p.run(ctx, chromedp.Click(q, chromedp.ByQuery, chromedp.FromNode(node), chromedp.NodeVisible))
}

func (p *ChromePage) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = chromedp.Cancel(p.browserCtx)
		p.browserCancel()
		p.allocCancel()
	})
	return p.closeErr
}
