package prelabel

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/menta2k/cvatkit/pkg/annotation"
)

// Apply appends the shapes of successful results to doc and returns how many
// shapes were added. Images missing from doc are appended with the next free
// id. Failed results are skipped.
func Apply(doc *annotation.Document, results []Result) (int, error) {
	added := 0
	for _, res := range results {
		if res.Err != nil {
			continue
		}

		img, err := doc.Image(res.Name())
		if errors.Is(err, annotation.ErrNotFound) {
			img = &annotation.ImageAnnotation{
				ID:     strconv.Itoa(nextImageID(doc)),
				Name:   res.Name(),
				Width:  res.Width,
				Height: res.Height,
			}
			err = doc.AddImage(img)
		}
		if err != nil {
			return added, fmt.Errorf("%s: %w", res.Path, err)
		}

		for _, s := range res.Shapes {
			if err := img.Add(s); err != nil {
				return added, fmt.Errorf("%s: %w", res.Path, err)
			}
			added++
		}
	}
	return added, nil
}

func nextImageID(doc *annotation.Document) int {
	next := 0
	for _, img := range doc.Images {
		if id, err := strconv.Atoi(img.ID); err == nil && id >= next {
			next = id + 1
		}
	}
	return next
}
