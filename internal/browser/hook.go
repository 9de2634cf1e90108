package browser

import (
	"encoding/json"
	"fmt"

	"github.com/runnerr0/mirrorme/internal/capture"
)

// hookScript is installed in every document. It records page signals in
// window.__mirrormeQueue, which drainScript empties on each poll.
const hookScript = `() => {
  const w = window;
  if (w.__mirrormeHooked) return true;
  w.__mirrormeHooked = true;
  w.__mirrormeQueue = [];
  const push = (rec) => { if (w.__mirrormeQueue.length < 500) w.__mirrormeQueue.push(rec); };
  const watched = 'article[data-testid="tweet"], ytd-comment-thread-renderer, ytd-comment-renderer';
  const maxHTML = 20000;

  const start = () => {
    const obs = new MutationObserver((mutations) => {
      const html = [];
      for (const m of mutations) {
        for (const n of m.addedNodes) {
          if (n.nodeType !== 1) continue;
          if (n.matches(watched)) { html.push(n.outerHTML.slice(0, maxHTML)); continue; }
          for (const el of n.querySelectorAll(watched)) html.push(el.outerHTML.slice(0, maxHTML));
        }
      }
      if (html.length) push({type: 'nodes', html});
    });
    obs.observe(document.body, {childList: true, subtree: true});
  };
  if (document.body) start(); else document.addEventListener('DOMContentLoaded', start);

  document.addEventListener('click', (ev) => {
    const ctl = ev.target && ev.target.closest && ev.target.closest('[data-testid="like"], [data-testid="retweet"]');
    if (!ctl || ctl.dataset.mirrormeSeen) return;
    ctl.dataset.mirrormeSeen = '1';
    const post = ctl.closest('article[data-testid="tweet"]') || ctl;
    push({type: 'click', action: ctl.getAttribute('data-testid'), html: [post.outerHTML.slice(0, maxHTML)]});
  }, true);

  document.addEventListener('input', (ev) => {
    const box = ev.target && ev.target.closest && ev.target.closest('[data-testid^="tweetTextarea"]');
    if (box) push({type: 'compose', text: box.innerText || box.value || ''});
  }, true);

  document.addEventListener('visibilitychange', () => push({type: 'visibility', hidden: document.hidden}));
  push({type: 'visibility', hidden: document.hidden});

  document.addEventListener('submit', (ev) => {
    const form = ev.target;
    if (!form || !form.elements) return;
    const fields = [];
    for (const el of form.elements) {
      if (!el.name || el.type === 'password' || el.type === 'hidden') continue;
      fields.push({name: el.name, type: el.type || '', value: String(el.value || '')});
    }
    push({type: 'submit', fields});
  }, true);
  return true;
}`

const drainScript = `() => {
  const q = Array.isArray(window.__mirrormeQueue) ? window.__mirrormeQueue : [];
  window.__mirrormeQueue = [];
  return q;
}`

const textScript = `() => document.body ? document.body.innerText : ''`

type hookRecord struct {
	Type   string              `json:"type"`
	HTML   []string            `json:"html"`
	Action string              `json:"action"`
	Text   string              `json:"text"`
	Hidden bool                `json:"hidden"`
	Fields []capture.FormField `json:"fields"`
}

// decodeSignals converts a drained hook queue into capture signals. Unknown
// record types are skipped.
func decodeSignals(raw []byte) ([]capture.Signal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var recs []hookRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("decode hook queue: %w", err)
	}
	var out []capture.Signal
	for _, r := range recs {
		switch r.Type {
		case "nodes":
			if len(r.HTML) > 0 {
				out = append(out, capture.NodesInserted{HTML: r.HTML})
			}
		case "click":
			if len(r.HTML) > 0 {
				out = append(out, capture.ControlClicked{Action: r.Action, PostHTML: r.HTML[0]})
			}
		case "compose":
			out = append(out, capture.ComposerInput{Text: r.Text})
		case "visibility":
			out = append(out, capture.VisibilityChanged{Hidden: r.Hidden})
		case "submit":
			out = append(out, capture.FormSubmitted{Fields: r.Fields})
		}
	}
	return out, nil
}
