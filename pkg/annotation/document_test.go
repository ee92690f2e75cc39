package annotation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/cvatkit/pkg/rle"
	"github.com/menta2k/cvatkit/pkg/shape"
	"github.com/menta2k/cvatkit/pkg/types"
)

func TestLabelLookup(t *testing.T) {
	doc := New(types.Project{Labels: []types.Label{
		{Name: "crack", Color: "#f00"},
		{Name: "vegetation", Color: "#0f0"},
		{Name: "crack", Color: "#00f"},
	}})

	label, err := doc.Label("vegetation")
	require.NoError(t, err)
	assert.Equal(t, "#0f0", label.Color)

	_, err = doc.Label("crack")
	assert.ErrorIs(t, err, ErrAmbiguous)

	_, err = doc.Label("pothole")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddTaskAndImageValidation(t *testing.T) {
	doc := New(types.Project{})

	require.NoError(t, doc.AddTask(types.Task{TaskID: "1"}))
	assert.ErrorIs(t, doc.AddTask(types.Task{TaskID: "1"}), ErrAmbiguous)
	assert.ErrorIs(t, doc.AddTask(types.Task{}), ErrSchema)

	task, err := doc.Task("1")
	require.NoError(t, err)
	assert.Equal(t, "1", task.TaskID)
	_, err = doc.Task("2")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, doc.AddImage(&ImageAnnotation{Width: 1, Height: 1}), ErrSchema)
	assert.Error(t, doc.AddImage(&ImageAnnotation{Name: "a.jpg", Width: 0, Height: 1}))
	assert.Error(t, doc.AddImage(nil))
	assert.Empty(t, doc.Images)
}

func TestAddShapesByImageName(t *testing.T) {
	doc := New(types.Project{})
	require.NoError(t, doc.AddImage(&ImageAnnotation{ID: "0", Name: "frames/20240916_000854_2011T_437.bmp", Width: 20, Height: 10}))

	seg := rle.NewBitmap(10, 20)
	seg.Set(2, 3, true)
	seg.Set(4, 6, true)
	mask, err := shape.FromSegmentation(shape.Meta{Label: "Deformation", Source: "file"}, seg)
	require.NoError(t, err)

	require.NoError(t, doc.AddMask("20240916_000854_2011T_437.bmp", mask))
	require.NoError(t, doc.AddTag("20240916_000854_2011T_437.bmp", &shape.Tag{Label: "no-crack", Source: "manual"}))
	require.NoError(t, doc.AddShape("20240916_000854_2011T_437.bmp", &shape.Box{Meta: shape.Meta{Label: "car"}, XTL: 0, YTL: 0, XBR: 2, YBR: 2}))

	img, err := doc.Image("20240916_000854_2011T_437.bmp")
	require.NoError(t, err)
	assert.Len(t, img.Masks, 1)
	assert.Len(t, img.Tags, 1)
	assert.Len(t, img.Boxes, 1)

	kinds := []shape.Kind{}
	for _, s := range img.Shapes() {
		kinds = append(kinds, s.Kind())
	}
	assert.Equal(t, []shape.Kind{shape.KindBox, shape.KindMask, shape.KindTag}, kinds)

	err = doc.AddMask("missing.bmp", mask)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, img.Add(&shape.Polygon{Meta: shape.Meta{Label: "x"}}), shape.ErrEmptyPoints)
}

func TestImageSegmentation(t *testing.T) {
	img := &ImageAnnotation{ID: "0", Name: "a.png", Width: 10, Height: 10}
	require.NoError(t, img.Add(&shape.Box{Meta: shape.Meta{Label: "car"}, XTL: 0, YTL: 0, XBR: 2, YBR: 2}))
	require.NoError(t, img.Add(&shape.Box{Meta: shape.Meta{Label: "bus"}, XTL: 5, YTL: 5, XBR: 8, YBR: 8}))
	require.NoError(t, img.Add(&shape.Polyline{Meta: shape.Meta{Label: "car"}, Points: []types.Point{{X: 0, Y: 9}, {X: 9, Y: 9}}}))
	require.NoError(t, img.Add(&shape.Tag{Label: "car"}))

	cars, err := img.Segmentation("car")
	require.NoError(t, err)
	assert.Equal(t, 4, cars.Count())

	all, err := img.Segmentation("")
	require.NoError(t, err)
	assert.Equal(t, 13, all.Count())

	require.NoError(t, img.Add(&shape.Mask{Meta: shape.Meta{Label: "car"}, RLE: "5", Height: 2, Width: 2}))
	_, err = img.Segmentation("car")
	assert.ErrorIs(t, err, rle.ErrFormat)
}

func TestImagesInTask(t *testing.T) {
	doc := statusDocument(t)
	images := doc.ImagesInTask("2")
	require.Len(t, images, 2)
	assert.Equal(t, "image2.jpg", images[0].Name)
	assert.Equal(t, "image4.jpg", images[1].Name)
	assert.Empty(t, doc.ImagesInTask("9"))
}
