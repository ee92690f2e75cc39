package annotation

import (
	"bytes"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/cvatkit/pkg/rle"
	"github.com/menta2k/cvatkit/pkg/shape"
	"github.com/menta2k/cvatkit/pkg/types"
)

func damage(values ...string) []types.Attribute {
	attrs := make([]types.Attribute, len(values))
	for i, v := range values {
		attrs[i] = types.Attribute{Name: "Damage Level", Value: v}
	}
	return attrs
}

// sampleDocument exercises every field the XML format carries
func sampleDocument(t *testing.T) *Document {
	t.Helper()

	doc := New(types.Project{
		ID:      "198488",
		Name:    "Road damage",
		Created: "2024-01-01 12:00:00.000000+00:00",
		Updated: "2024-02-03 08:15:00.123456+00:00",
		Labels: []types.Label{
			{
				Name:  "Deformation",
				Color: "#ff0000",
				Type:  "any",
				Attributes: []types.LabelAttribute{
					{
						Name:         "Damage Level",
						Mutable:      types.StringPtr("False"),
						InputType:    types.StringPtr("select"),
						DefaultValue: types.StringPtr("0"),
						Values:       types.StringPtr("0\n1\n2"),
					},
					{Name: "Corrugation", InputType: types.StringPtr("checkbox")},
				},
			},
			{Name: "vegetation", Color: "#00ff00", Type: "mask"},
		},
	})

	require.NoError(t, doc.AddTask(types.Task{TaskID: "1", URL: "https://app.cvat.ai/api/jobs/103", Name: types.StringPtr("batch 1")}))
	require.NoError(t, doc.AddTask(types.Task{TaskID: "2", URL: "https://app.cvat.ai/api/jobs/204"}))
	require.NoError(t, doc.AddTask(types.Task{TaskID: "3"}))

	b := &ImageAnnotation{ID: "0", Name: "images/b.jpg", Subset: types.StringPtr("Train"), TaskID: types.StringPtr("1"), Width: 64, Height: 48}
	a := &ImageAnnotation{ID: "1", Name: "images/a.jpg", Subset: types.StringPtr(""), TaskID: types.StringPtr("1"), Width: 64, Height: 48}
	c := &ImageAnnotation{ID: "2", Name: "c.jpg", Width: 4096, Height: 1024}
	for _, img := range []*ImageAnnotation{b, a, c} {
		require.NoError(t, doc.AddImage(img))
	}

	meta := shape.Meta{Label: "Deformation", Source: "manual", Attributes: damage("2", "1", "2")}
	require.NoError(t, b.Add(&shape.Box{Meta: meta, XTL: 1.5, YTL: 2.25, XBR: 30, YBR: 40.125}))
	require.NoError(t, b.Add(&shape.Box{Meta: shape.Meta{Label: "Deformation", Source: "auto", Occluded: 1, ZOrder: 2}, XTL: 0, YTL: 0, XBR: 1, YBR: 1}))
	require.NoError(t, b.Add(&shape.Polygon{Meta: meta, Points: []types.Point{{X: 0.1, Y: 0.2}, {X: 10, Y: 0}, {X: 5, Y: 7.75}}}))
	require.NoError(t, b.Add(&shape.Polyline{Meta: shape.Meta{Label: "Deformation", Source: "manual"}, Points: []types.Point{{X: 1, Y: 1}, {X: 2, Y: 3}}}))
	require.NoError(t, b.Add(&shape.Ellipse{Meta: meta, CX: 3126.92, CY: 509.86, RX: 39.99, RY: 18.92}))
	require.NoError(t, b.Add(&shape.Tag{Label: "no-crack", Source: "manual", Attributes: []types.Attribute{{Name: "confidence", Value: "0.95"}}}))

	seg := rle.NewBitmap(48, 64)
	for y := 10; y < 20; y++ {
		for x := 5; x < 9+y%4; x++ {
			seg.Set(y, x, true)
		}
	}
	mask, err := shape.FromSegmentation(shape.Meta{Label: "vegetation", Source: "file", Attributes: damage("0")}, seg)
	require.NoError(t, err)
	require.NoError(t, a.Add(mask))

	require.NoError(t, c.Add(&shape.Tag{Label: "no-crack", Source: "manual"}))
	return doc
}

func TestXMLRoundTrip(t *testing.T) {
	doc := sampleDocument(t)

	data, err := doc.Marshal()
	require.NoError(t, err)

	parsed, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, doc, parsed)

	again, err := parsed.Marshal()
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestXMLRoundTripFile(t *testing.T) {
	doc := sampleDocument(t)
	path := filepath.Join(t.TempDir(), "annotations.xml")

	require.NoError(t, doc.WriteFile(path))
	parsed, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, doc, parsed)
}

func TestWriteLayout(t *testing.T) {
	data, err := sampleDocument(t).Marshal()
	require.NoError(t, err)
	out := string(data)

	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`+"\n<annotations>\n  <version>1.1</version>"))
	assert.Contains(t, out, `<attribute name="Damage Level">2</attribute>`)
	assert.Contains(t, out, `<box label="Deformation" source="manual" occluded="0" xtl="1.5" ytl="2.25" xbr="30" ybr="40.125" z_order="0">`)
	assert.Contains(t, out, `<ellipse label="Deformation" source="manual" occluded="0" cx="3126.92" cy="509.86" rx="39.99" ry="18.92" z_order="0">`)
	assert.Contains(t, out, `<tag label="no-crack" source="manual">`)
	assert.Contains(t, out, `<image id="2" name="c.jpg" width="4096" height="1024">`)
	assert.Contains(t, out, `<url>https://app.cvat.ai/api/jobs/103</url>`)
	assert.Equal(t, 2, strings.Count(out, "<segments>"), "tasks without a URL have no segments")
}

func TestAbsentOptionalFieldsStayAbsent(t *testing.T) {
	const src = `<?xml version="1.0" encoding="utf-8"?>
<annotations>
  <version>1.1</version>
  <meta><project><id>1</id><name>p</name><created>c</created><updated>u</updated></project></meta>
  <image id="7" name="x.png" width="10" height="20"></image>
</annotations>`

	doc, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, doc.Images, 1)
	img := doc.Images[0]
	assert.Nil(t, img.Subset)
	assert.Nil(t, img.TaskID)
	assert.Equal(t, 10, img.Width)
	assert.Equal(t, 20, img.Height)
	assert.Zero(t, img.Len())

	data, err := doc.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(data), "subset")
	assert.NotContains(t, string(data), "task_id")

	reloaded, err := Parse(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Nil(t, reloaded.Images[0].Subset)
	assert.Nil(t, reloaded.Images[0].TaskID)
}

func TestParseEllipse(t *testing.T) {
	const src = `<?xml version="1.0" encoding="utf-8"?>
<annotations>
  <version>1.1</version>
  <meta>
    <project>
      <id>1</id>
      <name>Test Project</name>
      <created>2024-01-01 12:00:00.000000+00:00</created>
      <updated>2024-01-01 12:00:00.000000+00:00</updated>
      <labels>
        <label>
          <name>Deformation</name>
          <color>#ff0000</color>
          <type>any</type>
        </label>
      </labels>
    </project>
  </meta>
  <image id="1" name="test.jpg" width="4096" height="1024">
    <ellipse label="Deformation" source="manual" occluded="0" cx="3126.92" cy="509.86" rx="39.99" ry="18.92" z_order="0">
      <attribute name="Damage Level">0</attribute>
      <attribute name="Corrugation">false</attribute>
    </ellipse>
  </image>
</annotations>`

	doc, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, doc.Images, 1)
	require.Len(t, doc.Images[0].Ellipses, 1)

	e := doc.Images[0].Ellipses[0]
	assert.Equal(t, "Deformation", e.Label)
	assert.Equal(t, "manual", e.Source)
	assert.Equal(t, 0, e.Occluded)
	assert.Equal(t, 3126.92, e.CX)
	assert.Equal(t, 509.86, e.CY)
	assert.Equal(t, 39.99, e.RX)
	assert.Equal(t, 18.92, e.RY)
	assert.Equal(t, []types.Attribute{{Name: "Damage Level", Value: "0"}, {Name: "Corrugation", Value: "false"}}, e.Attributes)

	assert.Equal(t, "1.1", doc.Version)
	assert.Equal(t, "2024-01-01 12:00:00.000000+00:00", doc.Project.Created)
	require.Len(t, doc.Project.Labels, 1)
	assert.Equal(t, "#ff0000", doc.Project.Labels[0].Color)
}

func TestParseTagAndShapeDefaults(t *testing.T) {
	const src = `<annotations>
  <version>1.1</version>
  <meta><project><id>123</id><name>Test Project</name><created>c</created><updated>u</updated></project></meta>
  <image id="1" name="image1.jpg" task_id="1" width="800" height="600">
    <tag label="no-crack" source="manual">
      <attribute name="confidence">0.95</attribute>
    </tag>
    <box label="car" xtl="1" ytl="2" xbr="3" ybr="4"></box>
    <skeleton label="person"></skeleton>
    <tag label="dry"/>
  </image>
</annotations>`

	doc, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	img := doc.Images[0]

	require.Len(t, img.Tags, 2)
	assert.Equal(t, &shape.Tag{Label: "no-crack", Source: "manual", Attributes: []types.Attribute{{Name: "confidence", Value: "0.95"}}}, img.Tags[0])
	assert.Equal(t, &shape.Tag{Label: "dry", Source: shape.DefaultSource}, img.Tags[1])

	require.Len(t, img.Boxes, 1)
	box := img.Boxes[0]
	assert.Equal(t, shape.DefaultSource, box.Source)
	assert.Equal(t, 0, box.Occluded)
	assert.Equal(t, 0, box.ZOrder)
	assert.Equal(t, 3, img.Len(), "unknown elements are skipped")
}

func TestParseLabelAttributeSpellings(t *testing.T) {
	const src = `<annotations>
  <version>1.1</version>
  <meta><project><id>1</id><name>p</name><created>c</created><updated>u</updated>
    <labels>
      <label><name>Deformation</name><color>#f00</color><type>any</type>
        <attributes>
          <attribute name="Damage Level" input_type="select" values="0"/>
          <attribute>
            <name>Corrugation</name>
            <mutable>False</mutable>
            <input_type>checkbox</input_type>
            <default_value>false</default_value>
            <values>false</values>
          </attribute>
          <attribute/>
        </attributes>
      </label>
    </labels>
  </project></meta>
</annotations>`

	doc, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	label, err := doc.Label("Deformation")
	require.NoError(t, err)

	assert.Equal(t, []types.LabelAttribute{
		{Name: "Damage Level", InputType: types.StringPtr("select"), Values: types.StringPtr("0")},
		{
			Name:         "Corrugation",
			Mutable:      types.StringPtr("False"),
			InputType:    types.StringPtr("checkbox"),
			DefaultValue: types.StringPtr("false"),
			Values:       types.StringPtr("false"),
		},
	}, label.Attributes)
}

func TestParseTaskLocations(t *testing.T) {
	const src = `<annotations>
  <version>1.1</version>
  <meta>
    <project><id>1</id><name>p</name><created>c</created><updated>u</updated>
      <tasks>
        <task><id>10</id><name>first</name><segments><segment><id>5</id><url>https://app.cvat.ai/api/jobs/55</url></segment></segments></task>
        <task><id>11</id><segments><segment><id>6</id></segment></segments></task>
      </tasks>
    </project>
    <tasks><task><id>12</id><segments><segment><url>https://app.cvat.ai/api/jobs/77/</url></segment></segments></task></tasks>
  </meta>
</annotations>`

	doc, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, []types.Task{
		{TaskID: "10", URL: "https://app.cvat.ai/api/jobs/55", Name: types.StringPtr("first")},
		{TaskID: "11"},
		{TaskID: "12", URL: "https://app.cvat.ai/api/jobs/77/"},
	}, doc.Tasks)
}

func TestParseSchemaErrors(t *testing.T) {
	const head = `<annotations><version>1.1</version><meta><project><id>1</id><name>p</name><created>c</created><updated>u</updated></project></meta>`
	const tail = `</annotations>`

	cases := []struct {
		name      string
		body      string
		element   string
		attribute string
		value     string
	}{
		{"non numeric box coordinate", `<image id="1" name="a.jpg" width="5" height="5"><box label="x" xtl="abc" ytl="0" xbr="1" ybr="1"/></image>`, "box", "xtl", "abc"},
		{"missing box coordinate", `<image id="1" name="a.jpg" width="5" height="5"><box label="x" xtl="0" ytl="0" xbr="1"/></image>`, "box", "ybr", ""},
		{"missing label", `<image id="1" name="a.jpg" width="5" height="5"><polygon points="0,0;1,1"/></image>`, "polygon", "label", ""},
		{"bad points", `<image id="1" name="a.jpg" width="5" height="5"><polyline label="x" points="0,0;1"/></image>`, "polyline", "points", "0,0;1"},
		{"empty points", `<image id="1" name="a.jpg" width="5" height="5"><polygon label="x" points=""/></image>`, "polygon", "points", ""},
		{"bad occluded", `<image id="1" name="a.jpg" width="5" height="5"><ellipse label="x" occluded="yes" cx="1" cy="1" rx="1" ry="1"/></image>`, "ellipse", "occluded", "yes"},
		{"bad mask offset", `<image id="1" name="a.jpg" width="5" height="5"><mask label="x" rle="0,1" left="0.5" top="0" width="1" height="1"/></image>`, "mask", "left", "0.5"},
		{"missing mask rle", `<image id="1" name="a.jpg" width="5" height="5"><mask label="x" left="0" top="0" width="1" height="1"/></image>`, "mask", "rle", ""},
		{"tag without label", `<image id="1" name="a.jpg" width="5" height="5"><tag source="manual"/></image>`, "tag", "label", ""},
		{"missing image width", `<image id="1" name="a.jpg" height="5"/>`, "image", "width", ""},
		{"missing image id", `<image name="a.jpg" width="5" height="5"/>`, "image", "id", ""},
		{"non numeric image height", `<image id="1" name="a.jpg" width="5" height="tall"/>`, "image", "height", "tall"},
		{"zero image width", `<image id="1" name="a.jpg" width="0" height="5"/>`, "image", "width", "0"},
		{"infinite coordinate", `<image id="1" name="a.jpg" width="5" height="5"><box label="x" xtl="Inf" ytl="0" xbr="1" ybr="1"/></image>`, "box", "xtl", "Inf"},
		{"nan point", `<image id="1" name="a.jpg" width="5" height="5"><polygon label="x" points="NaN,1;2,2;3,0"/></image>`, "polygon", "points", "NaN,1;2,2;3,0"},
		{"negative mask size", `<image id="1" name="a.jpg" width="5" height="5"><mask label="x" rle="0" left="0" top="0" width="1" height="-1"/></image>`, "mask", "height", "-1"},
		{"overflowing mask size", `<image id="1" name="a.jpg" width="5" height="5"><mask label="x" rle="0" left="0" top="0" width="4294967296" height="4294967296"/></image>`, "mask", "height", "4294967296"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, err := Parse(strings.NewReader(head + tc.body + tail))
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.True(t, errors.Is(err, ErrSchema))

			var se *SchemaError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tc.element, se.Element)
			assert.Equal(t, tc.attribute, se.Attribute)
			assert.Equal(t, tc.value, se.Value)
		})
	}
}

func TestParseStructuralErrors(t *testing.T) {
	_, err := Parse(strings.NewReader(`<annotations><version>1</version><meta></meta></annotations>`))
	assert.ErrorIs(t, err, ErrSchema)

	_, err = Parse(strings.NewReader(`<annotations><meta><project/></meta></annotations>`))
	assert.ErrorIs(t, err, ErrSchema)

	_, err = Parse(strings.NewReader(`<annotations><version>1</version>`))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSchema)

	const dup = `<annotations><version>1</version><meta><project><tasks>
<task><id>1</id></task><task><id>1</id></task></tasks></project></meta></annotations>`
	_, err = Parse(strings.NewReader(dup))
	assert.ErrorIs(t, err, ErrAmbiguous)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}

func TestSchemaErrorMessage(t *testing.T) {
	err := &SchemaError{Element: "box", Attribute: "xtl"}
	assert.Equal(t, `schema error: <box> is missing "xtl"`, err.Error())

	err = &SchemaError{Element: "box", Attribute: "xtl", Value: "abc", Err: errors.New("bad")}
	assert.Equal(t, `schema error: <box> xtl="abc": bad`, err.Error())
}

func BenchmarkParse(b *testing.B) {
	doc := New(types.Project{ID: "1", Name: "bench"})
	for i := 0; i < 500; i++ {
		img := &ImageAnnotation{ID: strconv.Itoa(i), Name: "img_" + strconv.Itoa(i) + ".jpg", Width: 640, Height: 480}
		for j := 0; j < 10; j++ {
			_ = img.Add(&shape.Box{Meta: shape.Meta{Label: "car", Source: "manual"}, XTL: float64(j), YTL: 1, XBR: 50, YBR: 60})
		}
		_ = doc.AddImage(img)
	}
	data, err := doc.Marshal()
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Parse(bytes.NewReader(data)); err != nil {
			b.Fatal(err)
		}
	}
}
