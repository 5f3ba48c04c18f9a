package search

import (
	easyjson "github.com/mailru/easyjson"
	jwriter "github.com/mailru/easyjson/jwriter"
)

// EncodeDocuments builds the body of an add-documents request: a JSON array of docs.
func EncodeDocuments[T easyjson.Marshaler](docs []T) ([]byte, error) {
	w := jwriter.Writer{}
	w.RawByte('[')
	for i, doc := range docs {
		if i > 0 {
			w.RawByte(',')
		}
		doc.MarshalEasyJSON(&w)
	}
	w.RawByte(']')
	return w.Buffer.BuildBytes(), w.Error
}
