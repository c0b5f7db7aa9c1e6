package form

import (
	"fmt"
	"html/template"
	"net/url"
	"strings"

	"github.com/flosch/pongo2/v6"
	validation "github.com/go-ozzo/ozzo-validation"
)

// Areas a form renders widgets into
const (
	AreaBody   = "body"
	AreaFooter = "footer"
	AreaHidden = "hidden"
)

// Widget is a single node of a form tree
type Widget interface {
	UID() string
	Name() string
	Weight() int
	Area() string
	Value() any
	SetValue(v any) error
	// Fill reads the widget value out of request input
	Fill(values url.Values) error
	Validate() error
	Render() (template.HTML, error)
}

// Parent is implemented by widgets holding other widgets
type Parent interface {
	Widget
	Children() []Widget
	Append(children ...Widget) Parent
}

// Base carries the attributes every widget shares
type Base struct {
	uid         string
	name        string
	Label       string
	Help        string
	Placeholder string
	CSS         string
	weight      int
	area        string
	Required    bool
	Disabled    bool
	Hidden      bool
	rules       []validation.Rule
}

// Option configures a Base
type Option func(*Base)

// WithLabel sets the label
func WithLabel(label string) Option {
	return func(b *Base) { b.Label = label }
}

// WithHelp sets the help text
func WithHelp(help string) Option {
	return func(b *Base) { b.Help = help }
}

// WithPlaceholder sets the placeholder
func WithPlaceholder(s string) Option {
	return func(b *Base) { b.Placeholder = s }
}

// WithWeight sets the order inside the parent, lower first
func WithWeight(w int) Option {
	return func(b *Base) { b.weight = w }
}

// WithArea sets the form area
func WithArea(area string) Option {
	return func(b *Base) { b.area = area }
}

// WithCSS appends CSS classes
func WithCSS(css string) Option {
	return func(b *Base) { b.CSS = strings.TrimSpace(b.CSS + " " + css) }
}

// WithName overrides the input name, the uid is used by default
func WithName(name string) Option {
	return func(b *Base) { b.name = name }
}

// Required marks the widget as mandatory
func Required() Option {
	return func(b *Base) {
		b.Required = true
		b.rules = append([]validation.Rule{validation.Required}, b.rules...)
	}
}

// Disabled renders the widget read only, submitted values are ignored
func Disabled() Option {
	return func(b *Base) { b.Disabled = true }
}

// WithRules adds ozzo-validation rules
func WithRules(rules ...validation.Rule) Option {
	return func(b *Base) { b.rules = append(b.rules, rules...) }
}

func newBase(uid string, opts ...Option) Base {
	b := Base{
		uid:  uid,
		name: uid,
		area: AreaBody,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *Base) UID() string  { return b.uid }
func (b *Base) Name() string { return b.name }
func (b *Base) Weight() int  { return b.weight }
func (b *Base) Area() string { return b.area }

// Rules returns the validation rules
func (b *Base) Rules() []validation.Rule { return b.rules }

// AddRules appends validation rules after construction
func (b *Base) AddRules(rules ...validation.Rule) { b.rules = append(b.rules, rules...) }

func (b *Base) validate(value any) error {
	if b.Disabled || len(b.rules) == 0 {
		return nil
	}
	return validation.Validate(value, b.rules...)
}

func (b *Base) context(extra pongo2.Context) pongo2.Context {
	ctx := pongo2.Context{
		"uid":         b.uid,
		"name":        b.name,
		"label":       b.Label,
		"help":        b.Help,
		"placeholder": b.Placeholder,
		"css":         b.CSS,
		"required":    b.Required,
		"disabled":    b.Disabled,
	}
	return ctx.Update(extra)
}

func render(tpl *pongo2.Template, ctx pongo2.Context) (template.HTML, error) {
	out, err := tpl.Execute(ctx)
	if err != nil {
		return "", err
	}
	return template.HTML(out), nil
}

func typeError(uid string, v any) error {
	return fmt.Errorf("widget %s: unsupported value type %T", uid, v)
}
