package livepage

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/whichsocial/annotator"
	"github.com/hazyhaar/whichsocial/idgen"
	"github.com/hazyhaar/whichsocial/store"
)

//go:embed bridge.js
var bridgeJS string

var bindingNames = idgen.Prefixed("__ws_", idgen.Token(10))

// attachTries bounds the attempts to attach to a document that is still
// settling after a navigation.
const attachTries = 5

// ErrNavigated is returned by Run when the main frame loaded a new document.
var ErrNavigated = errors.New("livepage: page navigated")

// Session runs one Annotator against one loaded document of a tab.
type Session struct {
	tab     *Tab
	mirror  *Mirror
	ann     *annotator.Annotator
	binding string
	logger  *slog.Logger
}

// Attach injects the bridge into the tab's current document, mirrors it and
// prepares an Annotator reading its settings from st.
func Attach(ctx context.Context, tab *Tab, st store.Store, cfg annotator.Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	page := tab.Page.Context(ctx)
	s := &Session{tab: tab, binding: bindingNames(), logger: logger}

	if err := (proto.RuntimeAddBinding{Name: s.binding}).Call(page); err != nil {
		return nil, fmt.Errorf("livepage: add binding: %w", err)
	}
	res, err := page.Eval(bridgeJS, s.binding)
	if err != nil {
		return nil, fmt.Errorf("livepage: inject bridge: %w", err)
	}
	var snap wireNode
	if err := json.Unmarshal([]byte(res.Value.Str()), &snap); err != nil {
		return nil, fmt.Errorf("livepage: decode snapshot: %w", err)
	}

	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("livepage: page info: %w", err)
	}

	s.mirror, err = newMirror(info.URL, &snap, s.apply(ctx), logger)
	if err != nil {
		return nil, err
	}
	doc := s.mirror.Document()
	doc.SetLayout(&remoteLayout{m: s.mirror, eval: s.eval(ctx)})

	s.ann = annotator.New(doc, st, cfg, logger)
	s.mirror.OnResize(s.ann.Resize)
	logger.Info("livepage: attached", "url", info.URL, "session", s.ann.ID())
	return s, nil
}

// Annotator returns the engine bound to this session.
func (s *Session) Annotator() *annotator.Annotator { return s.ann }

func (s *Session) eval(ctx context.Context) evalFunc {
	return func(js string, args ...any) ([]byte, error) {
		res, err := s.tab.Page.Context(ctx).Eval(js, args...)
		if err != nil {
			return nil, err
		}
		return []byte(res.Value.JSON("", "")), nil
	}
}

func (s *Session) apply(ctx context.Context) func([]op) error {
	return func(ops []op) error {
		b, err := json.Marshal(ops)
		if err != nil {
			return err
		}
		_, err = s.tab.Page.Context(ctx).Eval(`(ops) => window.__ws.apply(JSON.parse(ops))`, string(b))
		return err
	}
}

// Run sets the engine up and processes page events until ctx is done or the
// page navigates away, in which case ErrNavigated is returned.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	frameID := s.tab.Page.FrameID
	wait := s.tab.Page.Context(ctx).EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name != s.binding {
				return
			}
			payload := []byte(e.Payload)
			s.ann.Post(func(context.Context) {
				if err := s.mirror.Receive(payload); err != nil {
					s.logger.Warn("livepage: bridge message", "error", err)
				}
			})
		},
		func(e *proto.PageFrameNavigated) {
			if e.Frame.ParentID == "" && e.Frame.ID == frameID {
				cancel(ErrNavigated)
			}
		},
	)
	go wait()

	s.ann.Post(func(ctx context.Context) {
		if !s.ann.Setup(ctx) {
			s.logger.Info("livepage: engine inactive on this page")
		}
	})
	err := s.ann.Run(ctx)
	s.mirror.Close()
	if cause := context.Cause(ctx); errors.Is(cause, ErrNavigated) {
		return ErrNavigated
	}
	return err
}

// Watch keeps an engine attached to the tab across navigations until ctx
// is done.
func Watch(ctx context.Context, tab *Tab, st store.Store, cfg annotator.Config, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	for {
		s, err := backoff.Retry(ctx, func() (*Session, error) {
			s, err := Attach(ctx, tab, st, cfg, logger)
			if err != nil && ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return s, err
		},
			backoff.WithBackOff(backoff.NewExponentialBackOff()),
			backoff.WithMaxTries(attachTries),
			backoff.WithNotify(func(err error, next time.Duration) {
				logger.Debug("livepage: attach failed, retrying", "url", tab.PageURL, "in", next, "error", err)
			}),
		)
		if err != nil {
			return err
		}
		err = s.Run(ctx)
		if !errors.Is(err, ErrNavigated) {
			return err
		}
		logger.Info("livepage: navigated, re-attaching", "url", tab.PageURL)
		if err := tab.Page.Context(ctx).WaitLoad(); err != nil {
			return fmt.Errorf("livepage: wait load: %w", err)
		}
	}
}
