package capture

// Signal is a page-level observation delivered by a host adapter. The set is
// closed: Navigated, NodesInserted, ControlClicked, ComposerInput,
// VisibilityChanged and FormSubmitted.
type Signal interface {
	isSignal()
}

// Navigated reports that the tab committed a navigation. SameDocument is set
// for history API navigations inside a single-page app.
type Navigated struct {
	URL          string `json:"url"`
	SameDocument bool   `json:"same_document"`
}

// NodesInserted carries the outerHTML of element nodes added under the
// document body.
type NodesInserted struct {
	HTML []string `json:"html"`
}

// Control actions reported by ControlClicked.
const (
	ActionLike    = "like"
	ActionRetweet = "retweet"
)

// ControlClicked reports a click on a post control. PostHTML is the outerHTML
// of the enclosing post, or of the control when the host could not find one.
type ControlClicked struct {
	Action   string `json:"action"`
	PostHTML string `json:"post_html"`
}

// ComposerInput reports the current contents of the post composer after a
// keystroke.
type ComposerInput struct {
	Text string `json:"text"`
}

// VisibilityChanged reports document.visibilityState transitions.
type VisibilityChanged struct {
	Hidden bool `json:"hidden"`
}

// FormField is one named control of a submitted form.
type FormField struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// FormSubmitted reports a form submit event with the form's fields.
type FormSubmitted struct {
	Fields []FormField `json:"fields"`
}

func (Navigated) isSignal()         {}
func (NodesInserted) isSignal()     {}
func (ControlClicked) isSignal()    {}
func (ComposerInput) isSignal()     {}
func (VisibilityChanged) isSignal() {}
func (FormSubmitted) isSignal()     {}
