package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/nao1215/pagebeacon/internal/beacon"
	"github.com/nao1215/pagebeacon/internal/dom"
)

// session is the live state a scenario's actions operate on.
type session struct {
	win    *dom.Window
	beacon *beacon.Beacon
}

// Action is one executable scenario step.
type Action interface {
	// Do performs the action.
	Do(ctx context.Context, s *session) error

	// Name describes the action for logs.
	Name() string
}

type historyAction struct {
	replace bool
	url     string
}

func (a historyAction) Do(_ context.Context, s *session) error {
	if a.replace {
		s.win.History().ReplaceState(nil, "", a.url)
	} else {
		s.win.History().PushState(nil, "", a.url)
	}
	return nil
}

func (a historyAction) Name() string {
	if a.replace {
		return "replace " + a.url
	}
	return "push " + a.url
}

type titleAction struct{ title string }

func (a titleAction) Do(_ context.Context, s *session) error {
	s.win.Document().SetTitle(a.title)
	return nil
}

func (a titleAction) Name() string { return "title " + a.title }

type clickAction Click

func (a clickAction) Do(_ context.Context, s *session) error {
	doc := s.win.Document()
	el := doc.ElementByID(a.ID)
	if el == nil {
		return fmt.Errorf("%w: #%s", ErrElementNotFound, a.ID)
	}
	doc.Click(el, dom.ClickOptions{Button: a.Button, Ctrl: a.Ctrl, Shift: a.Shift, Meta: a.Meta})
	return nil
}

func (a clickAction) Name() string { return "click #" + a.ID }

type trackAction struct{ t Track }

func (a trackAction) Do(_ context.Context, s *session) error {
	s.beacon.Track(beacon.Named{Name: a.t.Name, Data: a.t.Data})
	return nil
}

func (a trackAction) Name() string { return "track " + a.t.Name }

type identifyAction struct{ data map[string]any }

func (a identifyAction) Do(_ context.Context, s *session) error {
	s.beacon.Identify(a.data)
	return nil
}

func (identifyAction) Name() string { return "identify" }

type readyAction struct{ state string }

func (a readyAction) Do(_ context.Context, s *session) error {
	s.win.Document().SetReadyState(a.state)
	return nil
}

func (a readyAction) Name() string { return "ready " + a.state }

type waitAction struct{ d time.Duration }

func (a waitAction) Do(ctx context.Context, _ *session) error {
	t := time.NewTimer(a.d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a waitAction) Name() string { return "wait " + a.d.String() }
