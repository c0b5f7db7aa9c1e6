package form

import (
	"errors"
	"html/template"
	"net/url"
	"sort"
	"strings"

	"github.com/flosch/pongo2/v6"
)

var (
	errRequired      = errors.New("cannot be blank")
	errInvalidChoice = errors.New("must be one of the offered values")
	errTooManyValues = errors.New("too many values")
)

var (
	containerTpl = pongo2.Must(pongo2.FromString(`<div class="widget-container widget-{{ uid }}{% if css %} {{ css }}{% endif %}">` +
		`{% if label %}<h4>{{ label }}</h4>{% endif %}{{ body|safe }}</div>`))

	tabsTpl = pongo2.Must(pongo2.FromString(`<div class="widget-tabs widget-{{ uid }}{% if css %} {{ css }}{% endif %}">` +
		`<ul class="nav nav-tabs" role="tablist">{% for tab in tabs %}<li role="presentation"{% if forloop.First %} class="active"{% endif %}>` +
		`<a href="#{{ uid }}-{{ tab.ID }}" role="tab" data-toggle="tab">{{ tab.Title }}</a></li>{% endfor %}</ul>` +
		`<div class="tab-content">{% for tab in tabs %}<div role="tabpanel" class="tab-pane{% if forloop.First %} active{% endif %}" id="{{ uid }}-{{ tab.ID }}">` +
		`{{ tab.Body|safe }}</div>{% endfor %}</div></div>`))

	linkTpl = pongo2.Must(pongo2.FromString(`<a href="{{ href }}" class="btn btn-{{ color }} widget-{{ uid }}{% if css %} {{ css }}{% endif %}">{{ label }}</a>`))

	submitTpl = pongo2.Must(pongo2.FromString(`<button type="submit" name="{{ name }}" class="btn btn-{{ color }} widget-{{ uid }}{% if css %} {{ css }}{% endif %}">{{ label }}</button>`))

	htmlTpl = pongo2.Must(pongo2.FromString(`<div class="widget-html widget-{{ uid }}{% if css %} {{ css }}{% endif %}">{{ body|safe }}</div>`))
)

// Container groups child widgets
type Container struct {
	Base
	children []Widget
}

// NewContainer creates a container
func NewContainer(uid string, opts ...Option) *Container {
	return &Container{Base: newBase(uid, opts...)}
}

func (c *Container) Children() []Widget { return sortWidgets(c.children) }

func (c *Container) Append(children ...Widget) Parent {
	c.children = append(c.children, children...)
	return c
}

func (c *Container) Value() any { return nil }

func (c *Container) SetValue(v any) error { return nil }

func (c *Container) Fill(values url.Values) error { return nil }

func (c *Container) Validate() error { return nil }

func (c *Container) Render() (template.HTML, error) {
	body, err := renderAll(c.Children())
	if err != nil {
		return "", err
	}
	return render(containerTpl, c.context(pongo2.Context{"body": string(body)}))
}

// Tab is a titled page of Tabs
type Tab struct {
	ID       string
	Title    string
	children []Widget
}

// Tabs renders children split into tabs
type Tabs struct {
	Base
	tabs []*Tab
}

// NewTabs creates a tab set
func NewTabs(uid string, opts ...Option) *Tabs {
	return &Tabs{Base: newBase(uid, opts...)}
}

// AddTab appends a tab, children are added with AddToTab
func (t *Tabs) AddTab(id, title string) *Tab {
	tab := &Tab{ID: id, Title: title}
	t.tabs = append(t.tabs, tab)
	return tab
}

// AddToTab appends widgets into the tab with id
func (t *Tabs) AddToTab(id string, children ...Widget) error {
	for _, tab := range t.tabs {
		if tab.ID == id {
			tab.children = append(tab.children, children...)
			return nil
		}
	}
	return errors.New("tab " + id + " does not exist")
}

// Tabs returns the tab list
func (t *Tabs) Tabs() []*Tab { return t.tabs }

func (t *Tabs) Children() []Widget {
	var out []Widget
	for _, tab := range t.tabs {
		out = append(out, sortWidgets(tab.children)...)
	}
	return out
}

// Append adds children to the last tab
func (t *Tabs) Append(children ...Widget) Parent {
	if len(t.tabs) == 0 {
		t.AddTab("default", "")
	}
	last := t.tabs[len(t.tabs)-1]
	last.children = append(last.children, children...)
	return t
}

func (t *Tabs) Value() any { return nil }

func (t *Tabs) SetValue(v any) error { return nil }

func (t *Tabs) Fill(values url.Values) error { return nil }

func (t *Tabs) Validate() error { return nil }

func (t *Tabs) Render() (template.HTML, error) {
	type renderedTab struct {
		ID    string
		Title string
		Body  string
	}

	rendered := make([]renderedTab, 0, len(t.tabs))
	for _, tab := range t.tabs {
		body, err := renderAll(sortWidgets(tab.children))
		if err != nil {
			return "", err
		}
		rendered = append(rendered, renderedTab{ID: tab.ID, Title: tab.Title, Body: string(body)})
	}

	return render(tabsTpl, t.context(pongo2.Context{"tabs": rendered}))
}

// LinkButton is an anchor styled as a button
type LinkButton struct {
	Base
	Href  string
	Color string
}

// NewLinkButton creates a link button, placed in the footer
func NewLinkButton(uid, label, href string, opts ...Option) *LinkButton {
	opts = append([]Option{WithArea(AreaFooter), WithLabel(label)}, opts...)
	return &LinkButton{Base: newBase(uid, opts...), Href: href, Color: "default"}
}

func (w *LinkButton) Value() any                      { return nil }
func (w *LinkButton) SetValue(v any) error            { return nil }
func (w *LinkButton) Fill(values url.Values) error    { return nil }
func (w *LinkButton) Validate() error                 { return nil }
func (w *LinkButton) Render() (template.HTML, error) {
	return render(linkTpl, w.context(pongo2.Context{"href": w.Href, "color": w.Color}))
}

// Submit is the form submit button
type Submit struct {
	Base
	Color string
}

// NewSubmit creates a submit button, placed in the footer
func NewSubmit(uid, label string, opts ...Option) *Submit {
	opts = append([]Option{WithArea(AreaFooter), WithLabel(label)}, opts...)
	return &Submit{Base: newBase(uid, opts...), Color: "primary"}
}

func (w *Submit) Value() any                      { return nil }
func (w *Submit) SetValue(v any) error            { return nil }
func (w *Submit) Fill(values url.Values) error    { return nil }
func (w *Submit) Validate() error                 { return nil }
func (w *Submit) Render() (template.HTML, error) {
	return render(submitTpl, w.context(pongo2.Context{"color": w.Color}))
}

// HTML renders a trusted fragment
type HTML struct {
	Base
	Body template.HTML
}

// NewHTML creates a static fragment
func NewHTML(uid string, body template.HTML, opts ...Option) *HTML {
	return &HTML{Base: newBase(uid, opts...), Body: body}
}

func (w *HTML) Value() any                      { return nil }
func (w *HTML) SetValue(v any) error            { return nil }
func (w *HTML) Fill(values url.Values) error    { return nil }
func (w *HTML) Validate() error                 { return nil }
func (w *HTML) Render() (template.HTML, error) {
	return render(htmlTpl, w.context(pongo2.Context{"body": string(w.Body)}))
}

func sortWidgets(widgets []Widget) []Widget {
	out := make([]Widget, len(widgets))
	copy(out, widgets)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Weight() < out[j].Weight()
	})
	return out
}

func renderAll(widgets []Widget) (template.HTML, error) {
	var sb strings.Builder
	for _, w := range widgets {
		if b, ok := w.(interface{ IsHidden() bool }); ok && b.IsHidden() {
			continue
		}
		html, err := w.Render()
		if err != nil {
			return "", err
		}
		sb.WriteString(string(html))
	}
	return template.HTML(sb.String()), nil
}

// IsHidden reports whether the widget is excluded from rendering
func (b *Base) IsHidden() bool { return b.Hidden }
