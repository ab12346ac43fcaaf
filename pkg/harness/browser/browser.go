// browser.go provides browser automation for playground suites.
// It wraps Rod so the harness can work with any CDP endpoint that a global
// setup step launched and published.
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Browser is a connection to a browser dedicated to one suite.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	// Close releases the suite's browser resources. For a browser shared
	// between suites it only disposes of what this suite created.
	Close() error
}

// Page is a browser tab.
type Page interface {
	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	// Capture reports console messages and uncaught page errors until the
	// page closes. Callbacks run on the driver's event goroutine.
	Capture(onConsole func(text string), onError func(err error))
	Close() error
}

// Connector opens a Browser from a published endpoint.
type Connector interface {
	Connect(ctx context.Context, endpoint string) (Browser, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, endpoint string) (Browser, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context, endpoint string) (Browser, error) {
	return f(ctx, endpoint)
}

// PageError is an uncaught exception thrown in the page.
type PageError struct {
	Details *proto.RuntimeExceptionDetails
}

func (e *PageError) Error() string {
	if e.Details == nil {
		return "page error"
	}
	if e.Details.Exception != nil && e.Details.Exception.Description != "" {
		return e.Details.Exception.Description
	}
	return e.Details.Text
}

// RodConnector connects to a CDP endpoint with Rod.
//
// Each Connect opens an incognito browser context on the shared browser, so
// closing one suite's Browser never affects another suite or the browser
// process itself.
type RodConnector struct{}

// Connect implements Connector.
func (RodConnector) Connect(ctx context.Context, endpoint string) (Browser, error) {
	// The connection outlives ctx; ctx only bounds the handshake.
	connCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)

	root := rod.New().ControlURL(endpoint).Context(connCtx)
	err := root.Connect()
	stop()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to browser at %s: %w", endpoint, err)
	}

	incognito, err := root.Incognito()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &RodBrowser{browser: incognito, cancel: cancel}, nil
}

// RodBrowser is the Rod implementation of Browser: one incognito context on
// a shared browser.
type RodBrowser struct {
	browser *rod.Browser
	cancel  context.CancelFunc
}

// Rod returns the incognito browser for direct automation in tests.
func (b *RodBrowser) Rod() *rod.Browser {
	return b.browser
}

// NewPage implements Browser.
func (b *RodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := b.browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	pageCtx, cancel := context.WithCancel(context.Background())
	return &RodPage{page: page.Context(pageCtx), cancel: cancel}, nil
}

// Close disposes of the incognito context and drops the connection.
func (b *RodBrowser) Close() error {
	defer b.cancel()
	return b.browser.Close()
}

// RodPage is the Rod implementation of Page.
type RodPage struct {
	page   *rod.Page
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// Rod returns the underlying page for direct automation in tests.
func (p *RodPage) Rod() *rod.Page {
	return p.page
}

// Navigate implements Page.
func (p *RodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load %s: %w", url, err)
	}
	return nil
}

// Capture implements Page.
func (p *RodPage) Capture(onConsole func(text string), onError func(err error)) {
	wait := p.page.EachEvent(
		func(ev *proto.RuntimeConsoleAPICalled) {
			onConsole(ConsoleText(ev.Args))
		},
		func(ev *proto.RuntimeExceptionThrown) {
			onError(&PageError{Details: ev.ExceptionDetails})
		},
	)
	go wait()
}

// Close implements Page. Closing twice is harmless.
func (p *RodPage) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.page.Close()
		p.cancel()
	})
	return p.closeErr
}

// ConsoleText joins console call arguments the way the browser's own
// console renders them: primitives by value, objects by description.
func ConsoleText(args []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		if a == nil {
			continue
		}
		if !a.Value.Nil() {
			parts = append(parts, a.Value.String())
			continue
		}
		if a.Description != "" {
			parts = append(parts, a.Description)
			continue
		}
		if a.Type == proto.RuntimeRemoteObjectTypeUndefined {
			parts = append(parts, "undefined")
		}
	}
	return strings.Join(parts, " ")
}
