// Package artwork reads the artworks dataset and reshapes its records for the search engine.
//
// Records are kept as ordered lists of raw JSON fields. Only the fields the search
// engine needs in a different shape are decoded; everything else is passed through
// byte for byte, in the original order.
package artwork

import (
	"bytes"
	"io"
	"os"

	jlexer "github.com/mailru/easyjson/jlexer"
	jwriter "github.com/mailru/easyjson/jwriter"
	"github.com/pkg/errors"
)

// Field names of the dataset records.
const (
	FieldObjectID       = "ObjectID"
	FieldArtist         = "Artist"
	FieldArtistBio      = "ArtistBio"
	FieldDate           = "Date"
	FieldVariousArtists = "VariousArtists"
	FieldDateToSortBy   = "DateToSortBy"
)

// field is one top level key of a record with its raw JSON value.
type field struct {
	key   string
	value []byte
}

// Raw is a record as stored in the dataset: Artist and ArtistBio are still arrays.
// Raw can only be turned into a Document by Normalize.
type Raw struct {
	fields []field
}

func (r Raw) lookup(key string) ([]byte, bool) {
	for _, f := range r.fields {
		if f.key == key {
			return f.value, true
		}
	}
	return nil, false
}

// ObjectID returns the primary key as written in the dataset, or "" if absent.
func (r Raw) ObjectID() string {
	return objectID(r.fields)
}

// Len is the number of top level fields.
func (r Raw) Len() int {
	return len(r.fields)
}

// UnmarshalEasyJSON supports easyjson.Unmarshaler interface
func (r *Raw) UnmarshalEasyJSON(in *jlexer.Lexer) {
	isTopLevel := in.IsStart()
	r.fields = r.fields[:0]
	if in.IsNull() {
		if isTopLevel {
			in.Consumed()
		}
		in.Skip()
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.String()
		in.WantColon()
		value := in.Raw()
		if in.Ok() {
			r.fields = append(r.fields, field{key: key, value: append([]byte(nil), value...)})
		}
		in.WantComma()
	}
	in.Delim('}')
	if isTopLevel {
		in.Consumed()
	}
}

// UnmarshalJSON supports json.Unmarshaler interface
func (r *Raw) UnmarshalJSON(data []byte) error {
	l := jlexer.Lexer{Data: data}
	r.UnmarshalEasyJSON(&l)
	return l.Error()
}

// Document is a normalized record, ready to be uploaded.
type Document struct {
	fields []field

	objectID       string
	artist         string
	artistBio      string
	variousArtists bool
	dateToSortBy   string
	undated        bool // Date was null
}

// ObjectID returns the primary key of the document.
func (d Document) ObjectID() string { return d.objectID }

// Artist returns artist names joined with ", ".
func (d Document) Artist() string { return d.artist }

// ArtistBio returns artist biographies joined with ", ".
func (d Document) ArtistBio() string { return d.artistBio }

// VariousArtists reports whether the record had more than one artist.
func (d Document) VariousArtists() bool { return d.variousArtists }

// DateToSortBy returns the sortable date, and false when the record has a null Date.
func (d Document) DateToSortBy() (string, bool) { return d.dateToSortBy, !d.undated }

// MarshalJSON supports json.Marshaler interface
func (d Document) MarshalJSON() ([]byte, error) {
	w := jwriter.Writer{}
	d.MarshalEasyJSON(&w)
	return w.Buffer.BuildBytes(), w.Error
}

// MarshalEasyJSON supports easyjson.Marshaler interface
// Field values are already encoded, so this only glues them together.
func (d Document) MarshalEasyJSON(out *jwriter.Writer) {
	out.RawByte('{')
	for i, f := range d.fields {
		if i > 0 {
			out.RawByte(',')
		}
		out.String(f.key)
		out.RawByte(':')
		out.Raw(f.value, nil)
	}
	out.RawByte('}')
}

// Decode reads a JSON array of records.
func Decode(r io.Reader) ([]Raw, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read dataset")
	}

	in := jlexer.Lexer{Data: bytes.TrimSpace(data)}
	var docs []Raw
	in.Delim('[')
	for !in.IsDelim(']') {
		var doc Raw
		doc.UnmarshalEasyJSON(&in)
		if !in.Ok() {
			break
		}
		docs = append(docs, doc)
		in.WantComma()
	}
	in.Delim(']')
	in.Consumed()

	if err := in.Error(); err != nil {
		return nil, errors.Wrapf(err, "decode dataset (record %d)", len(docs))
	}
	return docs, nil
}

// Load reads the dataset from a file.
func Load(path string) ([]Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open dataset")
	}
	defer f.Close()
	return Decode(f)
}

func objectID(fields []field) string {
	for _, f := range fields {
		if f.key != FieldObjectID {
			continue
		}
		in := jlexer.Lexer{Data: f.value}
		if in.IsNull() {
			return ""
		}
		if len(f.value) > 0 && f.value[0] == '"' {
			return in.String()
		}
		return string(f.value)
	}
	return ""
}

func encodeString(s string) []byte {
	w := jwriter.Writer{}
	w.String(s)
	return w.Buffer.BuildBytes()
}

func encodeBool(b bool) []byte {
	if b {
		return []byte("true")
	}
	return []byte("false")
}
