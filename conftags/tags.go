// package conftags parses lists of `name:"value,value"` pairs, a relaxed form of
// Go struct tags. It is used for index definitions given in one environment variable:
//
//	artWorks:"typo,words"  artWorksAsc:"asc(DateToSortBy),typo,words"
//
// Contains code from golang standard library (reflect package)
package conftags

import (
	"errors"
	"strconv"
	"strings"
)

// A Tag is one name:"values" pair. Values are split on commas and trimmed;
// empty values are dropped.
type Tag struct {
	Name   string
	Values []string
}

// Tags keep the order of the source. Names may repeat.
type Tags []*Tag

func (tags *Tags) append(tag *Tag) {
	*tags = append(*tags, tag)
}

// Names lists tag names in source order.
func (tags Tags) Names() (names []string) {
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names
}

// Get returns first tag with given name, or nil.
func (tags Tags) Get(name string) *Tag {
	for _, tag := range tags {
		if tag.Name == name {
			return tag
		}
	}
	return nil
}

var errSyntax = errors.New("syntax error")

// SyntaxError points at the byte offset where parsing stopped.
type SyntaxError struct {
	Offset int
}

func (e *SyntaxError) Error() string {
	return errSyntax.Error() + " at offset " + strconv.Itoa(e.Offset)
}

func (e *SyntaxError) Unwrap() error { return errSyntax }

// Parse is modified reflect.StructTag.Lookup:
// - all tags are parsed and stored in list of tags (even duplicates);
// - whitespace (spaces, tabs, newlines) separates tags, so a definition may span lines;
// - `#` starts a comment up to the end of the line;
// - it returns syntax errors instead of ignoring the rest of the input.
func (tags *Tags) Parse(src string) error {
	total := len(src)
	for src != "" {
		src = strings.TrimLeft(src, " \t\r\n")
		if src == "" {
			return nil
		}
		if src[0] == '#' {
			if nl := strings.IndexByte(src, '\n'); nl >= 0 {
				src = src[nl+1:]
				continue
			}
			return nil
		}

		i := 0
		for i < len(src) && src[i] > ' ' && src[i] != ':' && src[i] != '"' && src[i] != 0x7f {
			i++
		}
		if i == 0 || i+1 >= len(src) || src[i] != ':' || src[i+1] != '"' {
			return &SyntaxError{Offset: total - len(src) + i}
		}
		name := src[:i]
		src = src[i+1:]

		// Scan quoted string to find value.
		i = 1
		for i < len(src) && src[i] != '"' {
			if src[i] == '\\' {
				i++
			}
			i++
		}
		if i >= len(src) {
			return &SyntaxError{Offset: total}
		}
		qvalue := src[:i+1]
		src = src[i+1:]

		value, err := strconv.Unquote(qvalue)
		if err != nil {
			return &SyntaxError{Offset: total - len(src) - len(qvalue)}
		}
		tag := &Tag{Name: name}
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v != "" {
				tag.Values = append(tag.Values, v)
			}
		}
		tags.append(tag)
	}
	return nil
}

func Parse(src string) (tags Tags, err error) {
	err = tags.Parse(src)
	return tags, err
}
