package browser

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

func (p *pwPage) WaitForNetworkIdle(timeout time.Duration) error {
	return p.waitForLoadState("networkidle", timeout)
}

func (p *pwPage) WaitForLoad(timeout time.Duration) error {
	return p.waitForLoadState("load", timeout)
}

func (p *pwPage) waitForLoadState(state string, timeout time.Duration) error {
	if p.page == nil {
		return fmt.Errorf("браузер не запущен")
	}

	var loadState *playwright.LoadState
	switch strings.ToLower(state) {
	case "load":
		loadState = playwright.LoadStateLoad
	case "domcontentloaded":
		loadState = playwright.LoadStateDomcontentloaded
	case "networkidle":
		loadState = playwright.LoadStateNetworkidle
	default:
		loadState = playwright.LoadStateLoad
	}

	opts := playwright.PageWaitForLoadStateOptions{
		State:   loadState,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	}

	return p.page.WaitForLoadState(opts)
}
