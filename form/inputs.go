package form

import (
	"html/template"
	"net/url"
	"slices"
	"strings"

	"github.com/flosch/pongo2/v6"
)

var (
	inputTpl = pongo2.Must(pongo2.FromString(`<div class="form-group widget-{{ uid }}{% if css %} {{ css }}{% endif %}">` +
		`{% if label and type != "hidden" %}<label for="{{ uid }}">{{ label }}</label>{% endif %}` +
		`<input type="{{ type }}" id="{{ uid }}" name="{{ name }}" value="{{ value }}" class="form-control"` +
		`{% if placeholder %} placeholder="{{ placeholder }}"{% endif %}{% if required %} required{% endif %}{% if disabled %} disabled{% endif %}>` +
		`{% if help %}<small class="help-block">{{ help }}</small>{% endif %}</div>`))

	textAreaTpl = pongo2.Must(pongo2.FromString(`<div class="form-group widget-{{ uid }}{% if css %} {{ css }}{% endif %}">` +
		`{% if label %}<label for="{{ uid }}">{{ label }}</label>{% endif %}` +
		`<textarea id="{{ uid }}" name="{{ name }}" class="form-control" rows="{{ rows }}"` +
		`{% if required %} required{% endif %}{% if disabled %} disabled{% endif %}>{{ value }}</textarea>` +
		`{% if help %}<small class="help-block">{{ help }}</small>{% endif %}</div>`))

	checkboxTpl = pongo2.Must(pongo2.FromString(`<div class="checkbox widget-{{ uid }}{% if css %} {{ css }}{% endif %}"><label>` +
		`<input type="checkbox" id="{{ uid }}" name="{{ name }}" value="true"{% if value %} checked{% endif %}{% if disabled %} disabled{% endif %}>` +
		` {{ label }}</label>{% if help %}<small class="help-block">{{ help }}</small>{% endif %}</div>`))

	selectTpl = pongo2.Must(pongo2.FromString(`<div class="form-group widget-{{ uid }}{% if css %} {{ css }}{% endif %}">` +
		`{% if label %}<label for="{{ uid }}">{{ label }}</label>{% endif %}` +
		`<select id="{{ uid }}" name="{{ name }}" class="form-control"{% if required %} required{% endif %}{% if disabled %} disabled{% endif %}>` +
		`{% if not required %}<option value=""></option>{% endif %}` +
		`{% for item in items %}<option value="{{ item.Value }}"{% if item.Value == value %} selected{% endif %}>{{ item.Title }}</option>{% endfor %}` +
		`</select>{% if help %}<small class="help-block">{{ help }}</small>{% endif %}</div>`))

	checkboxesTpl = pongo2.Must(pongo2.FromString(`<div class="form-group widget-{{ uid }}{% if css %} {{ css }}{% endif %}">` +
		`{% if label %}<label>{{ label }}</label>{% endif %}` +
		`{% for item in items %}<div class="checkbox"><label><input type="checkbox" name="{{ name }}" value="{{ item.Value }}"` +
		`{% if item.Value in value %} checked{% endif %}{% if disabled %} disabled{% endif %}> {{ item.Title }}</label></div>{% endfor %}` +
		`{% if help %}<small class="help-block">{{ help }}</small>{% endif %}</div>`))

	stringListTpl = pongo2.Must(pongo2.FromString(`<div class="form-group widget-{{ uid }}{% if css %} {{ css }}{% endif %}" data-max-values="{{ max }}">` +
		`{% if label %}<label>{{ label }}</label>{% endif %}` +
		`{% for v in value %}<input type="text" name="{{ name }}" value="{{ v }}" class="form-control"{% if disabled %} disabled{% endif %}>{% endfor %}` +
		`{% if value|length < max %}<input type="text" name="{{ name }}" value="" class="form-control"{% if placeholder %} placeholder="{{ placeholder }}"{% endif %}{% if disabled %} disabled{% endif %}>{% endif %}` +
		`{% if help %}<small class="help-block">{{ help }}</small>{% endif %}</div>`))
)

// Input is a single line input: text, email, password, hidden or url
type Input struct {
	Base
	Type  string
	value string
}

// NewText creates a text input
func NewText(uid string, opts ...Option) *Input {
	return &Input{Base: newBase(uid, opts...), Type: "text"}
}

// NewEmail creates an email input
func NewEmail(uid string, opts ...Option) *Input {
	return &Input{Base: newBase(uid, opts...), Type: "email"}
}

// NewPassword creates a password input, its value is kept as typed and
// never rendered
func NewPassword(uid string, opts ...Option) *Input {
	return &Input{Base: newBase(uid, opts...), Type: "password"}
}

// NewHidden creates a hidden input
func NewHidden(uid, value string, opts ...Option) *Input {
	opts = append([]Option{WithArea(AreaHidden)}, opts...)
	return &Input{Base: newBase(uid, opts...), Type: "hidden", value: value}
}

func (w *Input) Value() any { return w.value }

func (w *Input) SetValue(v any) error {
	switch val := v.(type) {
	case nil:
		w.value = ""
	case string:
		if w.Type == "password" {
			w.value = val
		} else {
			w.value = strings.TrimSpace(val)
		}
	default:
		return typeError(w.uid, v)
	}
	return nil
}

func (w *Input) Fill(values url.Values) error {
	if w.Disabled {
		return nil
	}
	if _, ok := values[w.name]; !ok {
		return nil
	}
	return w.SetValue(values.Get(w.name))
}

func (w *Input) Validate() error { return w.validate(w.value) }

func (w *Input) Render() (template.HTML, error) {
	value := w.value
	if w.Type == "password" {
		value = ""
	}
	return render(inputTpl, w.context(pongo2.Context{
		"type":  w.Type,
		"value": value,
	}))
}

// TextArea is a multi line text input
type TextArea struct {
	Base
	Rows  int
	value string
}

// NewTextArea creates a text area
func NewTextArea(uid string, opts ...Option) *TextArea {
	return &TextArea{Base: newBase(uid, opts...), Rows: 5}
}

func (w *TextArea) Value() any { return w.value }

func (w *TextArea) SetValue(v any) error {
	switch val := v.(type) {
	case nil:
		w.value = ""
	case string:
		w.value = strings.TrimSpace(val)
	default:
		return typeError(w.uid, v)
	}
	return nil
}

func (w *TextArea) Fill(values url.Values) error {
	if w.Disabled {
		return nil
	}
	if _, ok := values[w.name]; !ok {
		return nil
	}
	return w.SetValue(values.Get(w.name))
}

func (w *TextArea) Validate() error { return w.validate(w.value) }

func (w *TextArea) Render() (template.HTML, error) {
	return render(textAreaTpl, w.context(pongo2.Context{
		"rows":  w.Rows,
		"value": w.value,
	}))
}

// Checkbox holds a boolean
type Checkbox struct {
	Base
	value bool
}

// NewCheckbox creates a checkbox
func NewCheckbox(uid string, opts ...Option) *Checkbox {
	return &Checkbox{Base: newBase(uid, opts...)}
}

func (w *Checkbox) Value() any { return w.value }

func (w *Checkbox) Checked() bool { return w.value }

func (w *Checkbox) SetValue(v any) error {
	switch val := v.(type) {
	case nil:
		w.value = false
	case bool:
		w.value = val
	case string:
		w.value = isTruthy(val)
	default:
		return typeError(w.uid, v)
	}
	return nil
}

// Fill treats a missing key as unchecked, browsers omit unchecked boxes
func (w *Checkbox) Fill(values url.Values) error {
	if w.Disabled {
		return nil
	}
	vals := values[w.name]
	if len(vals) == 0 {
		w.value = false
		return nil
	}
	return w.SetValue(vals[len(vals)-1])
}

func (w *Checkbox) Validate() error { return nil }

func (w *Checkbox) Render() (template.HTML, error) {
	return render(checkboxTpl, w.context(pongo2.Context{"value": w.value}))
}

// Item is a choice of a Select or Checkboxes widget
type Item struct {
	Value string
	Title string
}

// Select lets the user pick one of Items
type Select struct {
	Base
	Items []Item
	value string
}

// NewSelect creates a select
func NewSelect(uid string, items []Item, opts ...Option) *Select {
	return &Select{Base: newBase(uid, opts...), Items: items}
}

func (w *Select) Value() any { return w.value }

func (w *Select) SetValue(v any) error {
	switch val := v.(type) {
	case nil:
		w.value = ""
	case string:
		w.value = val
	default:
		return typeError(w.uid, v)
	}
	return nil
}

func (w *Select) Fill(values url.Values) error {
	if w.Disabled {
		return nil
	}
	if _, ok := values[w.name]; !ok {
		return nil
	}
	return w.SetValue(values.Get(w.name))
}

func (w *Select) Validate() error {
	if err := w.validate(w.value); err != nil {
		return err
	}
	if w.value != "" && !hasItem(w.Items, w.value) {
		return errInvalidChoice
	}
	return nil
}

func (w *Select) Render() (template.HTML, error) {
	return render(selectTpl, w.context(pongo2.Context{
		"items": w.Items,
		"value": w.value,
	}))
}

// Checkboxes lets the user pick many of Items
type Checkboxes struct {
	Base
	Items []Item
	value []string
}

// NewCheckboxes creates a checkbox group
func NewCheckboxes(uid string, items []Item, opts ...Option) *Checkboxes {
	return &Checkboxes{Base: newBase(uid, opts...), Items: items}
}

func (w *Checkboxes) Value() any { return w.value }

// Values returns the checked item values
func (w *Checkboxes) Values() []string { return slices.Clone(w.value) }

func (w *Checkboxes) SetValue(v any) error {
	switch val := v.(type) {
	case nil:
		w.value = nil
	case string:
		w.value = []string{val}
	case []string:
		w.value = slices.Clone(val)
	default:
		return typeError(w.uid, v)
	}
	return nil
}

// Fill treats a missing key as nothing checked
func (w *Checkboxes) Fill(values url.Values) error {
	if w.Disabled {
		return nil
	}
	return w.SetValue(compact(values[w.name]))
}

func (w *Checkboxes) Validate() error {
	if err := w.validate(w.value); err != nil {
		return err
	}
	for _, v := range w.value {
		if !hasItem(w.Items, v) {
			return errInvalidChoice
		}
	}
	return nil
}

func (w *Checkboxes) Render() (template.HTML, error) {
	return render(checkboxesTpl, w.context(pongo2.Context{
		"items": w.Items,
		"value": w.value,
	}))
}

// StringList is a list of free text values bounded by Max
type StringList struct {
	Base
	Max   int
	value []string
}

// NewStringList creates a string list
func NewStringList(uid string, max int, opts ...Option) *StringList {
	return &StringList{Base: newBase(uid, opts...), Max: max}
}

func (w *StringList) Value() any { return w.value }

// Values returns the list entries
func (w *StringList) Values() []string { return slices.Clone(w.value) }

func (w *StringList) SetValue(v any) error {
	switch val := v.(type) {
	case nil:
		w.value = nil
	case []string:
		w.value = compact(val)
	default:
		return typeError(w.uid, v)
	}
	return nil
}

func (w *StringList) Fill(values url.Values) error {
	if w.Disabled {
		return nil
	}
	return w.SetValue(values[w.name])
}

func (w *StringList) Validate() error {
	if w.Disabled {
		return nil
	}
	if w.Required && len(w.value) == 0 {
		return errRequired
	}
	if w.Max > 0 && len(w.value) > w.Max {
		return errTooManyValues
	}
	for _, v := range w.value {
		if err := w.validateEach(v); err != nil {
			return err
		}
	}
	return nil
}

func (w *StringList) validateEach(v string) error {
	rules := w.rules
	if w.Required && len(rules) > 0 {
		// first rule is the Required added by the option
		rules = rules[1:]
	}
	for _, rule := range rules {
		if err := rule.Validate(v); err != nil {
			return err
		}
	}
	return nil
}

func (w *StringList) Render() (template.HTML, error) {
	return render(stringListTpl, w.context(pongo2.Context{
		"value": w.value,
		"max":   w.Max,
	}))
}

func hasItem(items []Item, v string) bool {
	for _, item := range items {
		if item.Value == v {
			return true
		}
	}
	return false
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes", "y":
		return true
	}
	return false
}
