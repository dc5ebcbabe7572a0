package doctree

import (
	"fmt"
	"math"
)

// MarkName names one entry of the inline mark bag.
type MarkName string

const (
	MarkBold            MarkName = "bold"
	MarkItalic          MarkName = "italic"
	MarkUnderline       MarkName = "underline"
	MarkStrikethrough   MarkName = "strikethrough"
	MarkFontSize        MarkName = "fontSize"
	MarkFontFamily      MarkName = "fontFamily"
	MarkTextColor       MarkName = "color"
	MarkBackgroundColor MarkName = "backgroundColor"
	MarkLineHeight      MarkName = "lineHeight"
)

// MarkNames lists every supported mark in a stable order.
var MarkNames = []MarkName{
	MarkBold, MarkItalic, MarkUnderline, MarkStrikethrough,
	MarkFontSize, MarkFontFamily, MarkTextColor, MarkBackgroundColor, MarkLineHeight,
}

// Marks is the flat formatting bag of an inline. The zero value is plain text.
// Marks is comparable; two inlines format identically iff their Marks are ==.
type Marks struct {
	Bold            bool    `json:"bold,omitempty"`
	Italic          bool    `json:"italic,omitempty"`
	Underline       bool    `json:"underline,omitempty"`
	Strikethrough   bool    `json:"strikethrough,omitempty"`
	FontSize        int     `json:"fontSize,omitempty"`
	FontFamily      string  `json:"fontFamily,omitempty"`
	TextColor       string  `json:"color,omitempty"`
	BackgroundColor string  `json:"backgroundColor,omitempty"`
	LineHeight      float64 `json:"lineHeight,omitempty"`
}

// IsBoolean reports whether the mark is an on/off flag.
func (n MarkName) IsBoolean() bool {
	switch n {
	case MarkBold, MarkItalic, MarkUnderline, MarkStrikethrough:
		return true
	}
	return false
}

// Get returns the value of a mark, or nil for an unknown name.
func (m Marks) Get(name MarkName) any {
	switch name {
	case MarkBold:
		return m.Bold
	case MarkItalic:
		return m.Italic
	case MarkUnderline:
		return m.Underline
	case MarkStrikethrough:
		return m.Strikethrough
	case MarkFontSize:
		return m.FontSize
	case MarkFontFamily:
		return m.FontFamily
	case MarkTextColor:
		return m.TextColor
	case MarkBackgroundColor:
		return m.BackgroundColor
	case MarkLineHeight:
		return m.LineHeight
	}
	return nil
}

// Set returns a copy of m with the named mark set to value. A nil value
// clears the mark. Numeric marks accept any Go number, which lets values
// decoded from JSON pass straight through.
func (m Marks) Set(name MarkName, value any) (Marks, error) {
	switch name {
	case MarkBold, MarkItalic, MarkUnderline, MarkStrikethrough:
		b := false
		if value != nil {
			v, ok := value.(bool)
			if !ok {
				return m, fmt.Errorf("%w: %s wants bool, got %T", ErrMarkValue, name, value)
			}
			b = v
		}
		switch name {
		case MarkBold:
			m.Bold = b
		case MarkItalic:
			m.Italic = b
		case MarkUnderline:
			m.Underline = b
		default:
			m.Strikethrough = b
		}
	case MarkFontSize:
		f, err := toFloat(name, value)
		if err != nil {
			return m, err
		}
		if f < 0 || f != math.Trunc(f) {
			return m, fmt.Errorf("%w: %s must be a non-negative integer", ErrMarkValue, name)
		}
		m.FontSize = int(f)
	case MarkLineHeight:
		f, err := toFloat(name, value)
		if err != nil {
			return m, err
		}
		if f < 0 {
			return m, fmt.Errorf("%w: %s must be non-negative", ErrMarkValue, name)
		}
		m.LineHeight = f
	case MarkFontFamily, MarkTextColor, MarkBackgroundColor:
		s := ""
		if value != nil {
			v, ok := value.(string)
			if !ok {
				return m, fmt.Errorf("%w: %s wants string, got %T", ErrMarkValue, name, value)
			}
			s = v
		}
		switch name {
		case MarkFontFamily:
			m.FontFamily = s
		case MarkTextColor:
			m.TextColor = s
		default:
			m.BackgroundColor = s
		}
	default:
		return m, fmt.Errorf("%w: %q", ErrUnknownMark, name)
	}
	return m, nil
}

func toFloat(name MarkName, value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	}
	return 0, fmt.Errorf("%w: %s wants a number, got %T", ErrMarkValue, name, value)
}
