package parser

import "strings"

// Attribute is one NAME=VALUE pair of an HLS attribute list.
type Attribute struct {
	Key    string
	Val    string
	Quoted bool
}

// Attributes is an ordered attribute list with case-sensitive lookups.
type Attributes []Attribute

// Get returns the value of the first attribute named key.
func (a Attributes) Get(key string) (string, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Val, true
		}
	}
	return "", false
}

// Value returns the value of key or "".
func (a Attributes) Value(key string) string {
	v, _ := a.Get(key)
	return v
}

// Bool reports whether key is present with value YES.
func (a Attributes) Bool(key string) bool {
	return strings.EqualFold(a.Value(key), "YES")
}

type attrState int

const (
	stateKey attrState = iota
	stateValue
	stateQuoted
	stateAfterQuote
)

// ParseAttributes tokenizes an HLS attribute list such as
// `BANDWIDTH=1280000,CODECS="avc1.4d401f,mp4a.40.2"`. Commas inside double
// quotes do not split attributes. Surrounding quotes are removed from values.
// An unterminated quote runs to the end of the input.
func ParseAttributes(s string) Attributes {
	var (
		attrs  Attributes
		state  = stateKey
		key    strings.Builder
		val    strings.Builder
		quoted bool
	)

	emit := func() {
		k := strings.TrimSpace(key.String())
		if k != "" {
			v := val.String()
			if !quoted {
				v = strings.TrimSpace(v)
			}
			attrs = append(attrs, Attribute{Key: k, Val: v, Quoted: quoted})
		}
		key.Reset()
		val.Reset()
		quoted = false
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch state {
		case stateKey:
			switch c {
			case '=':
				state = stateValue
			case ',':
				// bare token without a value
				key.Reset()
			default:
				key.WriteByte(c)
			}

		case stateValue:
			switch {
			case c == '"' && strings.TrimSpace(val.String()) == "":
				val.Reset()
				quoted = true
				state = stateQuoted
			case c == ',':
				emit()
				state = stateKey
			default:
				val.WriteByte(c)
			}

		case stateQuoted:
			if c == '"' {
				state = stateAfterQuote
				continue
			}
			val.WriteByte(c)

		case stateAfterQuote:
			// anything between the closing quote and the next comma is dropped
			if c == ',' {
				emit()
				state = stateKey
			}
		}
	}

	if state != stateKey {
		emit()
	}
	return attrs
}
