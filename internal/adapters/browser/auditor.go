// Package browser is the headless Chrome page auditor. It loads a page with
// Rod and stealth, injects axe-core and returns its violations together with
// the markup, document headers and cookie names used for platform detection.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"inclusiv/internal/platform"
	"inclusiv/internal/ports"
)

type Config struct {
	// ControlURL is the DevTools websocket of an external Chrome. Empty
	// launches a local headless Chrome on first use.
	ControlURL string
	// AxeScriptURL is injected into every audited page.
	AxeScriptURL string
	// SettleDelay waits after load for client-rendered content.
	SettleDelay time.Duration
	Logger      *zap.Logger
}

type Auditor struct {
	cfg Config
	log *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

var _ ports.PageAuditor = (*Auditor)(nil)

func New(cfg Config) *Auditor {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	return &Auditor{cfg: cfg, log: cfg.Logger.Named("browser")}
}

const axeRun = `async () => {
	const result = await axe.run(document, { resultTypes: ['violations'] });
	return JSON.stringify(result.violations.map(v => ({
		id: v.id,
		impact: v.impact,
		description: v.description || v.help || '',
		nodes: (v.nodes || []).length,
	})));
}`

// Audit opens a fresh tab bound to ctx, so cancelling ctx abandons a hung
// page.
func (a *Auditor) Audit(ctx context.Context, url string) (ports.AuditReport, error) {
	b, err := a.connect()
	if err != nil {
		return ports.AuditReport{}, err
	}
	tab, err := stealth.Page(b)
	if err != nil {
		a.reset()
		return ports.AuditReport{}, fmt.Errorf("browser: create tab: %w", err)
	}
	defer tab.Close()
	page := tab.Context(ctx)

	docHeaders := make(chan http.Header, 1)
	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument || e.Response == nil {
			return false
		}
		docHeaders <- headersFromCDP(e.Response.Headers)
		return true
	})
	go wait()

	if err := page.Navigate(url); err != nil {
		return ports.AuditReport{}, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return ports.AuditReport{}, fmt.Errorf("browser: wait load %s: %w", url, err)
	}
	select {
	case <-ctx.Done():
		return ports.AuditReport{}, ctx.Err()
	case <-time.After(a.cfg.SettleDelay):
	}

	if err := page.AddScriptTag(a.cfg.AxeScriptURL, ""); err != nil {
		return ports.AuditReport{}, fmt.Errorf("browser: inject axe: %w", err)
	}
	res, err := page.Eval(axeRun)
	if err != nil {
		return ports.AuditReport{}, fmt.Errorf("browser: run axe: %w", err)
	}
	findings, err := decodeFindings(res.Value.Str())
	if err != nil {
		return ports.AuditReport{}, err
	}

	html, err := page.HTML()
	if err != nil {
		a.log.Warn("read page html", zap.String("url", url), zap.Error(err))
	}
	var cookieNames []string
	if cookies, err := page.Cookies([]string{url}); err == nil {
		for _, c := range cookies {
			cookieNames = append(cookieNames, c.Name)
		}
	} else {
		a.log.Warn("read page cookies", zap.String("url", url), zap.Error(err))
	}

	var headers http.Header
	select {
	case headers = <-docHeaders:
	default:
	}

	return ports.AuditReport{
		Findings: findings,
		Page:     platform.Page{HTML: html, Headers: headers, Cookies: cookieNames},
	}, nil
}

func (a *Auditor) connect() (*rod.Browser, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.browser != nil {
		return a.browser, nil
	}

	wsURL := a.cfg.ControlURL
	if wsURL == "" {
		l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		a.lnch = l
		a.log.Info("launched local chrome", zap.String("url", wsURL))
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		a.log.Warn("ignore cert errors failed", zap.Error(err))
	}
	a.browser = b
	return b, nil
}

// reset drops a browser that can no longer open tabs; the next audit
// reconnects.
func (a *Auditor) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeLocked()
}

func (a *Auditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closeLocked()
	return nil
}

func (a *Auditor) closeLocked() {
	if a.browser != nil {
		_ = a.browser.Close()
		a.browser = nil
	}
	if a.lnch != nil {
		a.lnch.Cleanup()
		a.lnch = nil
	}
}
