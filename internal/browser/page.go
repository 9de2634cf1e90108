package browser

import (
	"context"
	"sync"

	"github.com/go-rod/rod"
)

// pageView adapts a rod page to capture.Page. The URL is the last one seen
// in a navigation event so URL never blocks on the browser.
type pageView struct {
	page *rod.Page

	mu  sync.Mutex
	url string
}

func (v *pageView) setURL(u string) {
	v.mu.Lock()
	v.url = u
	v.mu.Unlock()
}

func (v *pageView) URL() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.url
}

func (v *pageView) HTML(ctx context.Context) (string, error) {
	return v.page.Context(ctx).HTML()
}

func (v *pageView) Text(ctx context.Context) (string, error) {
	res, err := v.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      textScript,
		ByValue: true,
	})
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}
