// Package align reconciles two independently built pyramids — the image
// pyramid and the tissue mask pyramid — into the set of levels both can
// serve. All coordinate-reconciliation assumptions live here, in one place,
// instead of being scattered through the compositor.
package align

import (
	"github.com/pkg/errors"

	"github.com/Othman-vram/Tissue-Extraction-Pipeline/internal/models"
	"github.com/Othman-vram/Tissue-Extraction-Pipeline/pkg/pyramid"
)

// ErrNoUsableLevels reports that the image and mask pyramids share no common
// level. It is fatal to the run.
var ErrNoUsableLevels = errors.New("image and mask pyramids share no usable level")

// Plan computes the usable common level range of the two pyramids and one
// LevelPlan per usable level, in ascending level order.
//
// The usable range is [0, min(levels(image), levels(mask)) - 1]. For each
// level the plan records scaleFactor = maskDownsample / imageDownsample,
// which maps mask-pyramid coordinates to image-pyramid coordinates. Under
// matched construction the factor is exactly 1.0; it is computed and carried
// regardless so the compositor corrects residual misalignment rather than
// silently assuming structural equality.
func Plan(img, mask *pyramid.Descriptor) ([]models.LevelPlan, error) {
	usable := img.LevelCount
	if mask.LevelCount < usable {
		usable = mask.LevelCount
	}
	if usable == 0 {
		return nil, ErrNoUsableLevels
	}

	plans := make([]models.LevelPlan, usable)
	for level := 0; level < usable; level++ {
		plans[level] = models.LevelPlan{
			LevelIndex:  level,
			ImageWidth:  img.Dimensions[level].Width,
			ImageHeight: img.Dimensions[level].Height,
			MaskWidth:   mask.Dimensions[level].Width,
			MaskHeight:  mask.Dimensions[level].Height,
			ScaleFactor: mask.Downsamples[level] / img.Downsamples[level],
			Downsample:  img.Downsamples[level],
		}
	}
	return plans, nil
}
