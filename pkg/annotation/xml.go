package annotation

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/menta2k/cvatkit/pkg/rle"
	"github.com/menta2k/cvatkit/pkg/shape"
	"github.com/menta2k/cvatkit/pkg/types"
)

// xmlDocument is the wire layout of annotations.xml
type xmlDocument struct {
	XMLName xml.Name   `xml:"annotations"`
	Version *string    `xml:"version"`
	Meta    xmlMeta    `xml:"meta"`
	Images  []xmlImage `xml:"image"`
}

type xmlMeta struct {
	Project *xmlProject `xml:"project"`
	// Task exports keep their tasks directly under meta
	Tasks *xmlTasks `xml:"tasks,omitempty"`
}

type xmlProject struct {
	ID      string     `xml:"id"`
	Name    string     `xml:"name"`
	Created string     `xml:"created"`
	Updated string     `xml:"updated"`
	Labels  *xmlLabels `xml:"labels,omitempty"`
	Tasks   *xmlTasks  `xml:"tasks,omitempty"`
}

type xmlLabels struct {
	Labels []xmlLabel `xml:"label"`
}

type xmlLabel struct {
	Name       string         `xml:"name"`
	Color      string         `xml:"color"`
	Type       string         `xml:"type"`
	Attributes *xmlLabelAttrs `xml:"attributes,omitempty"`
}

type xmlLabelAttrs struct {
	Attributes []xmlLabelAttribute `xml:"attribute"`
}

type xmlLabelAttribute struct {
	Name         *string `xml:"name,attr,omitempty"`
	Mutable      *string `xml:"mutable,attr,omitempty"`
	InputType    *string `xml:"input_type,attr,omitempty"`
	DefaultValue *string `xml:"default_value,attr,omitempty"`
	Values       *string `xml:"values,attr,omitempty"`

	// Service exports spell the same fields as child elements
	NameElem         *string `xml:"name,omitempty"`
	MutableElem      *string `xml:"mutable,omitempty"`
	InputTypeElem    *string `xml:"input_type,omitempty"`
	DefaultValueElem *string `xml:"default_value,omitempty"`
	ValuesElem       *string `xml:"values,omitempty"`
}

type xmlTasks struct {
	Tasks []xmlTask `xml:"task"`
}

type xmlTask struct {
	ID       *string      `xml:"id"`
	Name     *string      `xml:"name,omitempty"`
	Segments *xmlSegments `xml:"segments,omitempty"`
}

type xmlSegments struct {
	Segments []xmlSegment `xml:"segment"`
}

type xmlSegment struct {
	URL *string `xml:"url,omitempty"`
}

type xmlImage struct {
	ID     *string    `xml:"id,attr"`
	Name   *string    `xml:"name,attr"`
	Subset *string    `xml:"subset,attr,omitempty"`
	TaskID *string    `xml:"task_id,attr,omitempty"`
	Width  *string    `xml:"width,attr"`
	Height *string    `xml:"height,attr"`
	Shapes []xmlShape `xml:",any"`
}

// xmlShape captures any shape element; its XML attributes are mapped to
// fields by name once the kind is known
type xmlShape struct {
	XMLName    xml.Name
	Attrs      []xml.Attr     `xml:",any,attr"`
	Attributes []xmlAttribute `xml:"attribute"`
}

type xmlAttribute struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// Parse reads a CVAT annotation document. Any schema violation aborts the
// parse and no document is returned.
func Parse(r io.Reader) (*Document, error) {
	var raw xmlDocument
	if err := xml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode annotations: %w", err)
	}
	return fromWire(&raw)
}

// ParseFile reads a CVAT annotation document from path
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open annotations: %w", err)
	}
	defer f.Close()

	doc, err := Parse(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Write serialises the document with an XML declaration and two space indentation
func (d *Document) Write(w io.Writer) error {
	if _, err := io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?>`+"\n"); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(d.toWire()); err != nil {
		return fmt.Errorf("failed to encode annotations: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Marshal returns the serialised document
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile serialises the document to path
func (d *Document) WriteFile(path string) error {
	data, err := d.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write annotations: %w", err)
	}
	return nil
}

func fromWire(raw *xmlDocument) (*Document, error) {
	if raw.Version == nil {
		return nil, missing("annotations", "version")
	}
	if raw.Meta.Project == nil {
		return nil, missing("meta", "project")
	}

	doc := &Document{
		Version: *raw.Version,
		Project: types.Project{
			ID:      raw.Meta.Project.ID,
			Name:    raw.Meta.Project.Name,
			Created: raw.Meta.Project.Created,
			Updated: raw.Meta.Project.Updated,
		},
	}
	if raw.Meta.Project.Labels != nil {
		for _, l := range raw.Meta.Project.Labels.Labels {
			doc.Project.Labels = append(doc.Project.Labels, labelFromWire(l))
		}
	}

	for _, tasks := range []*xmlTasks{raw.Meta.Project.Tasks, raw.Meta.Tasks} {
		if tasks == nil {
			continue
		}
		for _, t := range tasks.Tasks {
			task, err := taskFromWire(t)
			if err != nil {
				return nil, err
			}
			if err := doc.AddTask(task); err != nil {
				return nil, err
			}
		}
	}

	for i := range raw.Images {
		img, err := imageFromWire(&raw.Images[i])
		if err != nil {
			return nil, err
		}
		doc.Images = append(doc.Images, img)
	}
	return doc, nil
}

func labelFromWire(l xmlLabel) types.Label {
	label := types.Label{Name: l.Name, Color: l.Color, Type: l.Type}
	if l.Attributes == nil {
		return label
	}
	for _, a := range l.Attributes.Attributes {
		switch {
		case a.Name != nil:
			label.Attributes = append(label.Attributes, types.LabelAttribute{
				Name:         *a.Name,
				Mutable:      a.Mutable,
				InputType:    a.InputType,
				DefaultValue: a.DefaultValue,
				Values:       a.Values,
			})
		case a.NameElem != nil:
			label.Attributes = append(label.Attributes, types.LabelAttribute{
				Name:         *a.NameElem,
				Mutable:      a.MutableElem,
				InputType:    a.InputTypeElem,
				DefaultValue: a.DefaultValueElem,
				Values:       a.ValuesElem,
			})
		}
	}
	return label
}

func taskFromWire(t xmlTask) (types.Task, error) {
	if t.ID == nil {
		return types.Task{}, missing("task", "id")
	}
	task := types.Task{TaskID: *t.ID, Name: t.Name}
	if t.Segments != nil {
		for _, s := range t.Segments.Segments {
			if s.URL != nil {
				task.URL = *s.URL
				break
			}
		}
	}
	return task, nil
}

func imageFromWire(x *xmlImage) (*ImageAnnotation, error) {
	for _, req := range []struct {
		name  string
		value *string
	}{{"id", x.ID}, {"name", x.Name}, {"width", x.Width}, {"height", x.Height}} {
		if req.value == nil {
			return nil, missing("image", req.name)
		}
	}
	width, err := parseSize("width", *x.Width)
	if err != nil {
		return nil, err
	}
	height, err := parseSize("height", *x.Height)
	if err != nil {
		return nil, err
	}

	img := &ImageAnnotation{
		ID:     *x.ID,
		Name:   *x.Name,
		Subset: x.Subset,
		TaskID: x.TaskID,
		Width:  width,
		Height: height,
	}
	for _, el := range x.Shapes {
		kind, ok := shape.ParseKind(el.XMLName.Local)
		if !ok {
			continue
		}
		s, err := shapeFromWire(kind, el)
		if err != nil {
			return nil, fmt.Errorf("image %q: %w", img.Name, err)
		}
		if err := img.Add(s); err != nil {
			return nil, fmt.Errorf("image %q: %w", img.Name, err)
		}
	}
	return img, nil
}

func parseSize(attr, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, &SchemaError{Element: "image", Attribute: attr, Value: value, Err: err}
	}
	if n <= 0 {
		return 0, &SchemaError{Element: "image", Attribute: attr, Value: value, Err: fmt.Errorf("must be positive")}
	}
	return n, nil
}

func shapeFromWire(kind shape.Kind, el xmlShape) (shape.Shape, error) {
	r := &fieldReader{element: el.XMLName.Local, attrs: el.Attrs}
	attrs := attributesFromWire(el.Attributes)

	if kind == shape.KindTag {
		tag := &shape.Tag{
			Label:      r.required("label"),
			Source:     r.optional("source", shape.DefaultSource),
			Attributes: attrs,
		}
		if r.err != nil {
			return nil, r.err
		}
		return tag, nil
	}

	meta := shape.Meta{
		Label:      r.required("label"),
		Source:     r.optional("source", shape.DefaultSource),
		Occluded:   r.intOr("occluded", 0),
		ZOrder:     r.intOr("z_order", 0),
		Attributes: attrs,
	}

	var s shape.Shape
	switch kind {
	case shape.KindBox:
		s = &shape.Box{Meta: meta, XTL: r.float("xtl"), YTL: r.float("ytl"), XBR: r.float("xbr"), YBR: r.float("ybr")}
	case shape.KindPolygon:
		s = &shape.Polygon{Meta: meta, Points: r.points("points")}
	case shape.KindPolyline:
		s = &shape.Polyline{Meta: meta, Points: r.points("points")}
	case shape.KindEllipse:
		s = &shape.Ellipse{Meta: meta, CX: r.float("cx"), CY: r.float("cy"), RX: r.float("rx"), RY: r.float("ry")}
	case shape.KindMask:
		m := &shape.Mask{
			Meta:   meta,
			RLE:    r.required("rle"),
			Left:   r.int("left"),
			Top:    r.int("top"),
			Width:  r.int("width"),
			Height: r.int("height"),
		}
		if r.err == nil {
			if _, err := rle.Size(m.Height, m.Width); err != nil {
				r.fail("height", strconv.Itoa(m.Height), err)
			}
		}
		s = m
	default:
		return nil, fmt.Errorf("unsupported shape kind %s", kind)
	}
	if r.err != nil {
		return nil, r.err
	}
	return s, nil
}

func attributesFromWire(in []xmlAttribute) []types.Attribute {
	if len(in) == 0 {
		return nil
	}
	out := make([]types.Attribute, len(in))
	for i, a := range in {
		out[i] = types.Attribute{Name: a.Name, Value: a.Value}
	}
	return out
}

// fieldReader converts the XML attributes of one element into typed fields.
// The first failure is kept in err and later reads are skipped.
type fieldReader struct {
	element string
	attrs   []xml.Attr
	err     error
}

func (r *fieldReader) lookup(name string) (string, bool) {
	for _, a := range r.attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (r *fieldReader) fail(name, value string, err error) {
	if r.err == nil {
		r.err = &SchemaError{Element: r.element, Attribute: name, Value: value, Err: err}
	}
}

func (r *fieldReader) required(name string) string {
	v, ok := r.lookup(name)
	if !ok && r.err == nil {
		r.err = missing(r.element, name)
	}
	return v
}

func (r *fieldReader) optional(name, def string) string {
	if v, ok := r.lookup(name); ok {
		return v
	}
	return def
}

func (r *fieldReader) float(name string) float64 {
	v := r.required(name)
	if r.err != nil {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(name, v, err)
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		r.fail(name, v, fmt.Errorf("not a finite number"))
		return 0
	}
	return f
}

func (r *fieldReader) int(name string) int {
	v := r.required(name)
	if r.err != nil {
		return 0
	}
	return r.atoi(name, v)
}

func (r *fieldReader) intOr(name string, def int) int {
	v, ok := r.lookup(name)
	if !ok {
		return def
	}
	return r.atoi(name, v)
}

func (r *fieldReader) atoi(name, v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(name, v, err)
		return 0
	}
	return n
}

func (r *fieldReader) points(name string) []types.Point {
	v := r.required(name)
	if r.err != nil {
		return nil
	}
	points, err := shape.ParsePointString(v)
	if err != nil {
		r.fail(name, v, err)
		return nil
	}
	return points
}

func (d *Document) toWire() *xmlDocument {
	version := d.Version
	project := &xmlProject{
		ID:      d.Project.ID,
		Name:    d.Project.Name,
		Created: d.Project.Created,
		Updated: d.Project.Updated,
	}
	if len(d.Project.Labels) > 0 {
		project.Labels = &xmlLabels{}
		for _, l := range d.Project.Labels {
			project.Labels.Labels = append(project.Labels.Labels, labelToWire(l))
		}
	}
	if len(d.Tasks) > 0 {
		project.Tasks = &xmlTasks{}
		for _, t := range d.Tasks {
			project.Tasks.Tasks = append(project.Tasks.Tasks, taskToWire(t))
		}
	}

	raw := &xmlDocument{Version: &version, Meta: xmlMeta{Project: project}}
	for _, img := range d.Images {
		raw.Images = append(raw.Images, imageToWire(img))
	}
	return raw
}

func labelToWire(l types.Label) xmlLabel {
	x := xmlLabel{Name: l.Name, Color: l.Color, Type: l.Type}
	if len(l.Attributes) == 0 {
		return x
	}
	x.Attributes = &xmlLabelAttrs{}
	for _, a := range l.Attributes {
		name := a.Name
		x.Attributes.Attributes = append(x.Attributes.Attributes, xmlLabelAttribute{
			Name:         &name,
			Mutable:      a.Mutable,
			InputType:    a.InputType,
			DefaultValue: a.DefaultValue,
			Values:       a.Values,
		})
	}
	return x
}

func taskToWire(t types.Task) xmlTask {
	id := t.TaskID
	x := xmlTask{ID: &id, Name: t.Name}
	if t.URL != "" {
		url := t.URL
		x.Segments = &xmlSegments{Segments: []xmlSegment{{URL: &url}}}
	}
	return x
}

func imageToWire(img *ImageAnnotation) xmlImage {
	id, name := img.ID, img.Name
	width, height := strconv.Itoa(img.Width), strconv.Itoa(img.Height)
	x := xmlImage{
		ID:     &id,
		Name:   &name,
		Subset: img.Subset,
		TaskID: img.TaskID,
		Width:  &width,
		Height: &height,
	}
	for _, s := range img.Shapes() {
		x.Shapes = append(x.Shapes, shapeToWire(s))
	}
	return x
}

func shapeToWire(s shape.Shape) xmlShape {
	meta := s.Base()
	x := xmlShape{XMLName: xml.Name{Local: s.Kind().String()}}
	add := func(name, value string) {
		x.Attrs = append(x.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
	}
	f := shape.FormatFloat
	i := strconv.Itoa

	add("label", meta.Label)
	add("source", meta.Source)
	switch v := s.(type) {
	case *shape.Box:
		add("occluded", i(v.Occluded))
		add("xtl", f(v.XTL))
		add("ytl", f(v.YTL))
		add("xbr", f(v.XBR))
		add("ybr", f(v.YBR))
	case *shape.Polygon:
		add("occluded", i(v.Occluded))
		add("points", shape.FormatPoints(v.Points))
	case *shape.Polyline:
		add("occluded", i(v.Occluded))
		add("points", shape.FormatPoints(v.Points))
	case *shape.Ellipse:
		add("occluded", i(v.Occluded))
		add("cx", f(v.CX))
		add("cy", f(v.CY))
		add("rx", f(v.RX))
		add("ry", f(v.RY))
	case *shape.Mask:
		add("occluded", i(v.Occluded))
		add("rle", v.RLE)
		add("left", i(v.Left))
		add("top", i(v.Top))
		add("width", i(v.Width))
		add("height", i(v.Height))
	}
	if s.Kind() != shape.KindTag {
		add("z_order", i(meta.ZOrder))
	}

	for _, a := range meta.Attributes {
		x.Attributes = append(x.Attributes, xmlAttribute{Name: a.Name, Value: a.Value})
	}
	return x
}
