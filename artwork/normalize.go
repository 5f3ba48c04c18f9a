package artwork

import (
	"fmt"
	"regexp"
	"strings"

	jlexer "github.com/mailru/easyjson/jlexer"
)

// yearPattern finds the first four digit run of a free-text date ("c. 1932-34").
var yearPattern = regexp.MustCompile(`\d{4}`)

// MalformedError is returned for a record missing a field normalization depends on,
// or holding it with an unexpected type.
type MalformedError struct {
	Position int // position in the dataset, -1 if unknown
	ObjectID string
	Field    string
	Reason   string
}

func (e *MalformedError) Error() string {
	var b strings.Builder
	b.WriteString("malformed input document")
	if e.Position >= 0 {
		fmt.Fprintf(&b, " #%d", e.Position)
	}
	if e.ObjectID != "" {
		fmt.Fprintf(&b, " (ObjectID %s)", e.ObjectID)
	}
	fmt.Fprintf(&b, ": field %s %s", e.Field, e.Reason)
	return b.String()
}

// SortableDate returns the leftmost four digit run of date, or date itself if there is none.
func SortableDate(date string) string {
	if year := yearPattern.FindString(date); year != "" {
		return year
	}
	return date
}

// Normalize reshapes one record:
//   - VariousArtists is true when Artist lists more than one name;
//   - Artist and ArtistBio are joined with ", ";
//   - DateToSortBy holds the year extracted from Date.
//
// Other fields are copied untouched, new fields are appended at the end.
func Normalize(raw Raw) (Document, error) {
	doc := Document{objectID: raw.ObjectID()}
	malformed := func(name, reason string) error {
		return &MalformedError{Position: -1, ObjectID: doc.objectID, Field: name, Reason: reason}
	}

	artists, err := stringList(raw, FieldArtist)
	if err != nil {
		return Document{}, malformed(FieldArtist, err.Error())
	}
	bios, err := stringList(raw, FieldArtistBio)
	if err != nil {
		return Document{}, malformed(FieldArtistBio, err.Error())
	}
	dateValue, ok := raw.lookup(FieldDate)
	if !ok {
		return Document{}, malformed(FieldDate, "is missing")
	}
	date := jlexer.Lexer{Data: dateValue}
	if date.IsNull() {
		doc.undated = true
	} else {
		doc.dateToSortBy = SortableDate(date.String())
		if err := date.Error(); err != nil {
			return Document{}, malformed(FieldDate, "is not a string")
		}
	}

	doc.variousArtists = len(artists) > 1
	doc.artist = strings.Join(artists, ", ")
	doc.artistBio = strings.Join(bios, ", ")

	doc.fields = make([]field, 0, len(raw.fields)+2)
	for _, f := range raw.fields {
		switch f.key {
		case FieldArtist:
			f.value = encodeString(doc.artist)
		case FieldArtistBio:
			f.value = encodeString(doc.artistBio)
		case FieldVariousArtists, FieldDateToSortBy:
			continue // derived, written below
		}
		doc.fields = append(doc.fields, f)
	}

	sortBy := []byte("null")
	if !doc.undated {
		sortBy = encodeString(doc.dateToSortBy)
	}
	doc.fields = append(doc.fields,
		field{key: FieldVariousArtists, value: encodeBool(doc.variousArtists)},
		field{key: FieldDateToSortBy, value: sortBy},
	)
	return doc, nil
}

// NormalizeAll normalizes records in order and stops at the first malformed one.
func NormalizeAll(raws []Raw) ([]Document, error) {
	docs := make([]Document, 0, len(raws))
	for i, raw := range raws {
		doc, err := Normalize(raw)
		if err != nil {
			if merr, ok := err.(*MalformedError); ok {
				merr.Position = i
			}
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// stringList decodes an array of strings. Strings are rejected: a flattened
// field means the record went through normalization already.
func stringList(raw Raw, key string) ([]string, error) {
	value, ok := raw.lookup(key)
	if !ok {
		return nil, fmt.Errorf("is missing")
	}
	in := jlexer.Lexer{Data: value}
	if in.IsNull() {
		return nil, fmt.Errorf("is null")
	}

	list := []string{}
	in.Delim('[')
	for !in.IsDelim(']') {
		list = append(list, in.String())
		in.WantComma()
	}
	in.Delim(']')
	in.Consumed()
	if in.Error() != nil {
		return nil, fmt.Errorf("is not an array of strings")
	}
	return list, nil
}
