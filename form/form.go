package form

import (
	"html/template"
	"net/url"
	"sort"
	"strings"

	"github.com/flosch/pongo2/v6"
	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// Reserved input names, they never reach widgets
const (
	RedirectField     = "__redirect"
	TokenField        = "__form_token"
	StepField         = "__form_step"
	StepsField        = "__form_steps"
	LocationField     = "__form_location"
	DefaultFormMethod = "post"
)

var formTpl = pongo2.Must(pongo2.FromString(`<form id="{{ name }}" name="{{ name }}" action="{{ action }}" method="{{ method }}" class="auth-ui-form{% if css %} {{ css }}{% endif %}"` +
	`{% for k, v in attrs %} data-{{ k }}="{{ v }}"{% endfor %}>` +
	`{% if title %}<h3 class="form-title">{{ title }}</h3>{% endif %}` +
	`{% for err in form_errors %}<div class="alert alert-danger">{{ err }}</div>{% endfor %}` +
	`<div class="form-hidden">{{ hidden|safe }}</div>` +
	`<div class="form-body">{{ body|safe }}</div>` +
	`<div class="form-footer">{{ footer|safe }}</div>` +
	`</form>`))

// Form is an ordered widget tree rendered as a single HTML form
type Form struct {
	Name     string
	Action   string
	Method   string
	CSS      string
	Title    string
	Redirect string
	Attrs    map[string]string

	widgets []Widget
	errors  map[string]string
}

// New creates an empty form
func New(name string) *Form {
	return &Form{
		Name:   name,
		Method: DefaultFormMethod,
		Attrs:  map[string]string{},
	}
}

// SetAttr stores a free attribute rendered as data-*
func (f *Form) SetAttr(key, value string) *Form {
	if f.Attrs == nil {
		f.Attrs = map[string]string{}
	}
	f.Attrs[key] = value
	return f
}

// Attr returns a free attribute
func (f *Form) Attr(key string) string {
	return f.Attrs[key]
}

// Add appends top level widgets, a duplicated uid is an error
func (f *Form) Add(widgets ...Widget) error {
	for _, w := range widgets {
		if _, ok := f.Get(w.UID()); ok {
			return goerrors.New("widget "+w.UID()+" already exists in form "+f.Name, goerrors.CategoryConflict).
				WithCode(goerrors.CodeConflict)
		}
		f.widgets = append(f.widgets, w)
	}
	return nil
}

// MustAdd is Add that panics
func (f *Form) MustAdd(widgets ...Widget) *Form {
	if err := f.Add(widgets...); err != nil {
		panic(err)
	}
	return f
}

// Get finds a widget anywhere in the tree
func (f *Form) Get(uid string) (Widget, bool) {
	for _, w := range f.All() {
		if w.UID() == uid {
			return w, true
		}
	}
	return nil, false
}

// Has reports whether a widget is present
func (f *Form) Has(uid string) bool {
	_, ok := f.Get(uid)
	return ok
}

// Remove drops a top level widget
func (f *Form) Remove(uid string) {
	out := f.widgets[:0]
	for _, w := range f.widgets {
		if w.UID() != uid {
			out = append(out, w)
		}
	}
	f.widgets = out
}

// Widgets returns top level widgets sorted by weight
func (f *Form) Widgets() []Widget {
	return sortWidgets(f.widgets)
}

// All returns every widget of the tree, depth first
func (f *Form) All() []Widget {
	var out []Widget
	var walk func([]Widget)
	walk = func(ws []Widget) {
		for _, w := range sortWidgets(ws) {
			out = append(out, w)
			if p, ok := w.(Parent); ok {
				walk(p.Children())
			}
		}
	}
	walk(f.widgets)
	return out
}

// Value returns the value of the widget with uid
func (f *Form) Value(uid string) any {
	if w, ok := f.Get(uid); ok {
		return w.Value()
	}
	return nil
}

// StringValue returns the value of the widget with uid as a string
func (f *Form) StringValue(uid string) string {
	s, _ := f.Value(uid).(string)
	return s
}

// SetValues assigns values by widget uid, unknown uids are ignored
func (f *Form) SetValues(values map[string]any) error {
	for uid, v := range values {
		w, ok := f.Get(uid)
		if !ok {
			continue
		}
		if err := w.SetValue(v); err != nil {
			return err
		}
	}
	return nil
}

// Fill binds request input to every widget
func (f *Form) Fill(values url.Values) error {
	if r := values.Get(RedirectField); r != "" {
		f.Redirect = r
	}
	for _, w := range f.All() {
		if err := w.Fill(values); err != nil {
			return err
		}
	}
	return nil
}

// Validate runs the rules of every widget. The returned map is keyed by
// widget name and is nil when the form is valid.
func (f *Form) Validate() map[string]string {
	out := map[string]string{}
	for _, w := range f.All() {
		if err := w.Validate(); err != nil {
			out[w.Name()] = errorMessage(err)
		}
	}
	if len(out) == 0 {
		f.errors = nil
		return nil
	}
	f.errors = out
	return out
}

// ValidationError wraps the result of Validate in a go-errors validation
// error, the field messages are also kept in the "fields" metadata
func (f *Form) ValidationError() error {
	errs := f.Validate()
	if errs == nil {
		return nil
	}
	return goerrors.NewValidationFromMap("form "+f.Name+" is not valid", errs).
		WithMetadata(map[string]any{"fields": errs})
}

// Errors returns the errors of the last Validate call
func (f *Form) Errors() map[string]string {
	return f.errors
}

// Render produces the form HTML
func (f *Form) Render() (template.HTML, error) {
	areas := map[string]*strings.Builder{
		AreaBody:   {},
		AreaFooter: {},
		AreaHidden: {},
	}

	hidden := NewHidden(RedirectField, f.Redirect)
	if f.Redirect != "" && !f.Has(RedirectField) {
		html, err := hidden.Render()
		if err != nil {
			return "", err
		}
		areas[AreaHidden].WriteString(string(html))
	}

	for _, w := range f.Widgets() {
		if b, ok := w.(interface{ IsHidden() bool }); ok && b.IsHidden() {
			continue
		}
		html, err := w.Render()
		if err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render widget "+w.UID())
		}
		sb, ok := areas[w.Area()]
		if !ok {
			sb = areas[AreaBody]
		}
		sb.WriteString(string(html))
	}

	var formErrors []string
	for _, k := range sortedKeys(f.errors) {
		if !f.Has(k) {
			formErrors = append(formErrors, f.errors[k])
		}
	}

	method := f.Method
	if method == "" {
		method = DefaultFormMethod
	}

	return render(formTpl, pongo2.Context{
		"name":        f.Name,
		"action":      f.Action,
		"method":      method,
		"css":         f.CSS,
		"title":       f.Title,
		"attrs":       f.Attrs,
		"form_errors": formErrors,
		"hidden":      areas[AreaHidden].String(),
		"body":        areas[AreaBody].String(),
		"footer":      areas[AreaFooter].String(),
	})
}

// CleanInput drops the reserved step fields and returns the redirect target.
// When __redirect is repeated the last value wins.
func CleanInput(values url.Values) (url.Values, string) {
	out := url.Values{}
	redirect := ""
	for k, v := range values {
		switch k {
		case StepsField, StepField, LocationField, TokenField:
			continue
		case RedirectField:
			if len(v) > 0 {
				redirect = v[len(v)-1]
			}
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	return out, redirect
}

func errorMessage(err error) string {
	if es, ok := err.(validation.Errors); ok {
		for _, k := range sortedKeys(map[string]error(es)) {
			return errorMessage(es[k])
		}
	}
	return err.Error()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
