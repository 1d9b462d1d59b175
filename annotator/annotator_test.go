package annotator

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/hazyhaar/whichsocial/annotator/internal/indicator"
	"github.com/hazyhaar/whichsocial/dom"
	"github.com/hazyhaar/whichsocial/store"
)

const host = "shop.example.com"

func newPage(t *testing.T, body string) *dom.Document {
	t.Helper()
	d, err := dom.Parse(strings.NewReader("<html><body>"+body+"</body></html>"), "https://"+host+"/login")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func seeded(selection string) *store.Memory {
	kv := map[string]string{
		"social-providers":   `["Google","Facebook","GitHub","Apple"]`,
		"saved-social-color": `"#008000"`,
	}
	if selection != "" {
		kv[host+"_social"] = `{"provider":"` + selection + `"}`
	}
	return store.NewMemory(kv)
}

func q(t *testing.T, d *dom.Document, sel string) *html.Node {
	t.Helper()
	n := cascadia.Query(d.Root(), cascadia.MustCompile(sel))
	if n == nil {
		t.Fatalf("no element %s", sel)
	}
	return n
}

func captions(d *dom.Document) int {
	return len(dom.ByClass(d.Root(), indicator.CaptionClass))
}

// do runs fn as a loop task and drains the queue, as the event loop would.
func do(a *Annotator, fn func()) {
	a.Post(func(context.Context) { fn() })
	a.Drain(context.Background())
}

func setup(t *testing.T, d *dom.Document, st store.Store, cfg Config) *Annotator {
	t.Helper()
	a := New(d, st, cfg, nil)
	if !a.Setup(context.Background()) {
		t.Fatal("Setup: engine not active")
	}
	a.Drain(context.Background())
	return a
}

func TestSetup_ColorProperties(t *testing.T) {
	d := newPage(t, ``)
	setup(t, d, seeded(""), Config{})

	de := d.DocumentElement()
	if got := dom.Style(de, ColorProperty); got != "#008000" {
		t.Errorf("%s: got %q, want #008000", ColorProperty, got)
	}
	if got := dom.Style(de, TextColorProperty); got != "#fff" {
		t.Errorf("%s: got %q, want #fff", TextColorProperty, got)
	}
}

func TestSetup_Disabled(t *testing.T) {
	for _, key := range []string{"disable-which-social", "disable-this-site-" + host} {
		st := seeded("Google")
		st.Set(context.Background(), key, "true")
		d := newPage(t, `<button>Google</button>`)
		a := New(d, st, Config{}, nil)
		if a.Setup(context.Background()) {
			t.Errorf("%s: engine should stay inactive", key)
		}
		if a.Annotated() != nil || captions(d) != 0 || len(a.Candidates()) != 0 {
			t.Errorf("%s: disabled engine touched the page", key)
		}
		if _, ok := dom.Attr(d.DocumentElement(), "style"); ok {
			t.Errorf("%s: color properties set while disabled", key)
		}
	}
}

func TestSetup_EmptyVocabulary(t *testing.T) {
	d := newPage(t, `<button>Google</button>`)
	a := New(d, store.NewMemory(map[string]string{host + "_social": `{"provider":"Google"}`}), Config{}, nil)
	if a.Setup(context.Background()) {
		t.Fatal("engine should be inactive without a vocabulary")
	}
}

func TestPipeline_Idempotent(t *testing.T) {
	d := newPage(t, `<div id="w"><button>Sign in with Google</button><a href="/auth/gh">Continue with GitHub</a></div>`)
	a := setup(t, d, seeded(""), Config{})
	if n := len(a.Candidates()); n != 2 {
		t.Fatalf("candidates after setup: got %d, want 2", n)
	}

	do(a, func() { a.apply(context.Background(), q(t, d, "#w")) })
	do(a, func() { a.apply(context.Background(), d.Body()) })

	if n := len(a.Candidates()); n != 2 {
		t.Errorf("candidates after re-runs: got %d, want 2", n)
	}
	if n := d.Dispatch(q(t, d, "button"), "click"); n != 1 {
		t.Errorf("click listeners on button: got %d, want 1", n)
	}
}

func TestAnnotate_OnlySelectedOnce(t *testing.T) {
	d := newPage(t, `<button id="a">Google</button><button id="b">Facebook</button><div id="feed"></div>`)
	a := setup(t, d, seeded("Facebook"), Config{})
	b := q(t, d, "#b")

	if a.Annotated() != b {
		t.Fatal("element B should be annotated after setup")
	}
	for i := 0; i < 3; i++ {
		do(a, func() {
			p := d.CreateElement("p")
			d.AppendChild(p, d.CreateText("item"))
			d.AppendChild(q(t, d, "#feed"), p)
		})
	}
	if dom.HasClass(q(t, d, "#a"), indicator.ProviderClass) {
		t.Error("element A must never be annotated")
	}
	if n := captions(d); n != 1 {
		t.Errorf("captions: got %d, want 1", n)
	}
}

func TestAnnotate_DeferredUntilVisible(t *testing.T) {
	d := newPage(t, `<div id="menu" style="display: none"><button id="gh">GitHub</button></div>`)
	a := setup(t, d, seeded("GitHub"), Config{})
	gh := q(t, d, "#gh")

	if a.Annotated() != nil || !a.Deferred(gh) {
		t.Fatal("hidden candidate should be deferred")
	}
	if !dom.HasClass(gh, indicator.ObservingClass) {
		t.Error("deferred candidate should carry the observing marker")
	}

	do(a, func() { d.SetStyle(q(t, d, "#menu"), "display", "block") })

	if a.Annotated() != gh {
		t.Fatal("candidate should be annotated once its container is visible")
	}
	if a.Deferred(gh) || dom.HasClass(gh, indicator.ObservingClass) {
		t.Error("annotated candidate should leave the deferred set")
	}
}

func TestAnnotate_HiddenAfterShownIsRetried(t *testing.T) {
	d := newPage(t, `<div id="menu"><button id="gh">GitHub</button></div>`)
	a := setup(t, d, seeded("GitHub"), Config{})
	gh := q(t, d, "#gh")

	do(a, func() { d.SetStyle(q(t, d, "#menu"), "display", "none") })
	if a.Annotated() != nil || captions(d) != 0 || !a.Deferred(gh) {
		t.Fatal("hiding the annotated element should defer it")
	}
	do(a, func() { d.SetStyle(q(t, d, "#menu"), "display", "") })
	if a.Annotated() != gh || captions(d) != 1 {
		t.Fatal("element should be annotated again once visible")
	}
}

func TestAnnotate_RemovalAndReappearance(t *testing.T) {
	d := newPage(t, `<div id="modal"><button id="fb">Continue with Facebook</button></div>`)
	st := seeded("Facebook")
	a := setup(t, d, st, Config{})

	do(a, func() { d.Remove(q(t, d, "#modal")) })
	if captions(d) != 0 {
		t.Error("caption should be removed with the annotated element")
	}
	if v, ok, _ := st.Get(context.Background(), host+"_social"); !ok || v != `{"provider":"Facebook"}` {
		t.Errorf("selection: got %q ok=%v, want it untouched", v, ok)
	}

	do(a, func() {
		modal := d.CreateElement("div")
		btn := d.CreateElement("button")
		d.SetAttr(btn, "id", "fb2")
		d.AppendChild(btn, d.CreateText("Continue with Facebook"))
		d.AppendChild(modal, btn)
		d.AppendChild(d.Body(), modal)
	})
	if a.Annotated() != q(t, d, "#fb2") || captions(d) != 1 {
		t.Fatal("reappearing candidate should be annotated")
	}
}

func TestAnnotate_SameNodeReinserted(t *testing.T) {
	d := newPage(t, `<div id="modal"><button id="fb">Continue with Facebook</button></div>`)
	a := setup(t, d, seeded("Facebook"), Config{})
	modal, fb := q(t, d, "#modal"), q(t, d, "#fb")

	do(a, func() { d.Remove(modal) })
	if dom.HasClass(fb, indicator.ProviderClass) || dom.HasClass(fb, indicator.ShownClass) {
		t.Fatalf("detached element kept indicator classes: %v", dom.Classes(fb))
	}

	do(a, func() { d.AppendChild(d.Body(), modal) })
	if a.Annotated() != fb || captions(d) != 1 {
		t.Fatalf("reinserted element: annotated=%v captions=%d, want it annotated once", a.Annotated() == fb, captions(d))
	}
	if n := len(dom.ByClass(d.Root(), indicator.ProviderClass)); n != 1 {
		t.Errorf("elements with the provider class: got %d, want 1", n)
	}
}

func TestAnnotate_HiddenByUnterminatedStyle(t *testing.T) {
	d := newPage(t, `<div id="w" style="display:none"><button id="gh">GitHub</button></div>`)
	a := setup(t, d, seeded("GitHub"), Config{})
	gh := q(t, d, "#gh")

	if a.Annotated() != nil || captions(d) != 0 || !a.Deferred(gh) {
		t.Fatalf("hidden candidate: annotated=%v captions=%d deferred=%v, want deferred only", a.Annotated() != nil, captions(d), a.Deferred(gh))
	}
	do(a, func() { d.SetStyle(q(t, d, "#w"), "display", "") })
	if a.Annotated() != gh {
		t.Fatal("candidate should be annotated once its container is shown")
	}
}

func TestClick_SavesSelection(t *testing.T) {
	d := newPage(t, `<button id="gh"><img alt="Sign in with GitHub" src="gh.svg"></button>`)
	st := seeded("")
	a := setup(t, d, st, Config{})

	if a.Annotated() != nil {
		t.Fatal("nothing should be annotated without a selection")
	}
	do(a, func() { d.Dispatch(q(t, d, "img"), "click") })
	if v, _, _ := st.Get(context.Background(), host+"_social"); v != `{"provider":"GitHub"}` {
		t.Fatalf("selection: got %q", v)
	}
}

func TestResize_SettleThenRetry(t *testing.T) {
	d := newPage(t, `<button id="g">Google</button>`)
	var timers []func()
	var delay time.Duration
	a := setup(t, d, seeded("Google"), Config{
		SettleDelay: 50 * time.Millisecond,
		AfterFunc: func(d time.Duration, f func()) {
			delay = d
			timers = append(timers, f)
		},
	})

	do(a, a.Resize)
	if captions(d) != 0 || a.Annotated() != nil {
		t.Fatal("resize should hide the indicator at once")
	}
	if len(timers) != 1 || delay != 50*time.Millisecond {
		t.Fatalf("settle timers: got %d (delay %v)", len(timers), delay)
	}
	timers[0]()
	a.Drain(context.Background())
	if a.Annotated() != q(t, d, "#g") || captions(d) != 1 {
		t.Fatal("indicator should come back after the settle delay")
	}
}

func TestRun_PostFromOtherGoroutine(t *testing.T) {
	d := newPage(t, `<div id="feed"></div>`)
	a := New(d, seeded("Apple"), Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	a.Post(func(ctx context.Context) { a.Setup(ctx) })
	go a.Post(func(context.Context) {
		b := d.CreateElement("button")
		d.AppendChild(b, d.CreateText("Log in with Apple."))
		d.AppendChild(q(t, d, "#feed"), b)
	})

	found := make(chan bool, 1)
	deadline := time.After(2 * time.Second)
	for {
		a.Post(func(context.Context) {
			select {
			case found <- a.Annotated() != nil:
			default:
			}
		})
		select {
		case ok := <-found:
			if !ok {
				time.Sleep(5 * time.Millisecond)
				continue
			}
		case <-deadline:
			t.Fatal("timed out waiting for annotation")
		}
		break
	}

	cancel()
	if err := <-errc; err != context.Canceled {
		t.Fatalf("Run: got %v, want context.Canceled", err)
	}
}

func TestConfig_Defaults(t *testing.T) {
	var c Config
	c.applyDefaults()
	if c.SettleDelay != 200*time.Millisecond || c.MaxDeliveryRounds != 16 || c.Caption != DefaultCaption {
		t.Errorf("defaults: got %+v", c)
	}

	c = Config{Caption: `<b>Last used</b> &amp; <script>alert(1)</script>here`}
	c.applyDefaults()
	if c.Caption != "Last used & here" {
		t.Errorf("sanitised caption: got %q", c.Caption)
	}
}
