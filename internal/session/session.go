package session

import (
	"context"
	"time"
)

// Session is the capability surface the attendance state machine drives.
// Implementations hide all element-location detail and report failures as
// the typed errors in this package.
type Session interface {
	EnsureAuthenticated(ctx context.Context, timeout time.Duration) error
	OpenTeam(ctx context.Context, team string) error
	FindMeetingBanner(ctx context.Context, meeting string) (BannerLookup, error)
	Join(ctx context.Context, banner Banner) error
	Leave(ctx context.Context) error
	Close() error
}

// Banner is a scheduled-meeting indicator in the active view.
type Banner struct {
	Text    string
	Element Element
}

type LookupStatus int

const (
	LookupNotFound LookupStatus = iota
	LookupFound
)

func (s LookupStatus) String() string {
	if s == LookupFound {
		return "found"
	}
	return "not_found"
}

// BannerLookup is the result of FindMeetingBanner. NotFound is an expected
// outcome meaning there is no class right now.
type BannerLookup struct {
	Status LookupStatus
	Banner Banner
}

func Found(b Banner) BannerLookup {
	return BannerLookup{Status: LookupFound, Banner: b}
}

func NotFound() BannerLookup {
	return BannerLookup{Status: LookupNotFound}
}

func (l BannerLookup) Found() bool {
	return l.Status == LookupFound
}

type Credentials struct {
	Identifier string
	Secret     string
}

func (c Credentials) Complete() bool {
	return c.Identifier != "" && c.Secret != ""
}
