package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp-forge/conduit/pkg/structured"
)

func TestDecodeJSON(t *testing.T) {
	d := Decode("application/json; charset=utf-8", []byte(`{"id": 1, "name": "x"}`))

	assert.Equal(t, FormatJSON, d.Format)
	assert.Empty(t, d.ParseError)
	require.Equal(t, structured.KindMap, d.Data.Kind())

	id, ok := d.Data.Get("id")
	require.True(t, ok)
	assert.Equal(t, float64(1), id.NumberVal())
}

func TestDecodeMalformedJSONDegradesToText(t *testing.T) {
	body := []byte(`{"id": `)
	d := Decode("application/json", body)

	assert.Equal(t, FormatText, d.Format)
	assert.NotEmpty(t, d.ParseError)
	require.Equal(t, structured.KindString, d.Data.Kind())
	assert.Equal(t, string(body), d.Data.StringVal())
}

func TestDecodeXMLRepeatedTagsBecomeList(t *testing.T) {
	d := Decode("application/xml", []byte(`<root><item>1</item><item>2</item></root>`))

	assert.Equal(t, FormatXML, d.Format)
	assert.Empty(t, d.ParseError)

	root, ok := d.Data.Get("root")
	require.True(t, ok)
	items, ok := root.Get("item")
	require.True(t, ok)
	require.Equal(t, structured.KindList, items.Kind())
	require.Equal(t, 2, items.Len())
	assert.Equal(t, "1", items.Items()[0].StringVal())
	assert.Equal(t, "2", items.Items()[1].StringVal())
}

func TestDecodeXMLAttributesAndText(t *testing.T) {
	d := Decode("text/xml", []byte(`<book id="42"><title>Go</title></book>`))
	require.Empty(t, d.ParseError)

	book, ok := d.Data.Get("book")
	require.True(t, ok)

	attrs, ok := book.Get("@attributes")
	require.True(t, ok)
	id, ok := attrs.Get("id")
	require.True(t, ok)
	assert.Equal(t, "42", id.StringVal())

	title, ok := book.Get("title")
	require.True(t, ok)
	assert.Equal(t, "Go", title.StringVal())
}

func TestDecodeUnknownContentTypeIsText(t *testing.T) {
	d := Decode("text/plain", []byte("hello"))

	assert.Equal(t, FormatText, d.Format)
	assert.Empty(t, d.ParseError)
	assert.Equal(t, "hello", d.Data.StringVal())
}

func TestEncodeCSV(t *testing.T) {
	v := structured.List(
		structured.Map(
			structured.Entry{Key: "name", Value: structured.String("a")},
			structured.Entry{Key: "n", Value: structured.Int(1)},
		),
		structured.Map(
			structured.Entry{Key: "name", Value: structured.String("b")},
			structured.Entry{Key: "n", Value: structured.Int(2)},
		),
	)

	enc, err := Encode(v, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "name,n\na,1\nb,2\n", enc.Text)
}

func TestEncodeCSVRejectsHeterogeneousRecords(t *testing.T) {
	v := structured.List(
		structured.Map(structured.Entry{Key: "a", Value: structured.Int(1)}),
		structured.Map(structured.Entry{Key: "b", Value: structured.Int(2)}),
	)

	_, err := Encode(v, FormatCSV)
	assert.Error(t, err)
}

func TestEncodeXMLListUsesIndexedTags(t *testing.T) {
	v := structured.List(structured.String("x"), structured.Int(2))

	enc, err := Encode(v, FormatXML)
	require.NoError(t, err)
	assert.Contains(t, enc.Text, "<item_0>x</item_0>")
	assert.Contains(t, enc.Text, "<item_1>2</item_1>")
}

func TestEncodeTabularWrapsScalars(t *testing.T) {
	enc, err := Encode(structured.List(structured.Int(5), structured.Int(6)), FormatTabular)
	require.NoError(t, err)

	require.Equal(t, structured.KindList, enc.Value.Kind())
	first := enc.Value.Items()[0]
	require.Equal(t, structured.KindMap, first.Kind())

	val, ok := first.Get("value")
	require.True(t, ok)
	assert.Equal(t, float64(5), val.NumberVal())

	idx, ok := first.Get("index")
	require.True(t, ok)
	assert.Equal(t, float64(0), idx.NumberVal())
}

func TestEncodeTabularPassesThroughRecordList(t *testing.T) {
	v := structured.List(structured.Map(structured.Entry{Key: "k", Value: structured.Int(1)}))

	enc, err := Encode(v, FormatTabular)
	require.NoError(t, err)
	assert.True(t, enc.Value.Equal(v))
}

func TestEncodeUnsupportedFormat(t *testing.T) {
	_, err := Encode(structured.Int(1), Format("yaml"))
	assert.Error(t, err)
}
