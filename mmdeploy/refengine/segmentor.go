package refengine

import (
	"fmt"

	"github.com/csotherden/gorgonia-mmdeploy/mmdeploy"
)

type segmentor struct {
	art SegmentorArtifact
}

// segment labels every pixel with the channel holding its largest value.
func (m *segmentor) segment(eng *Eng, img mmdeploy.Image) (mmdeploy.Segmentation, error) {
	if img.Channels != m.art.Classes {
		return mmdeploy.Segmentation{}, fmt.Errorf("image has %d channels, model has %d classes", img.Channels, m.art.Classes)
	}
	px, err := pixels(img)
	if err != nil {
		return mmdeploy.Segmentation{}, err
	}
	am, err := eng.Argmax(px, -1)
	if err != nil {
		return mmdeploy.Segmentation{}, err
	}
	idx, ok := am.Data().([]int)
	if !ok {
		return mmdeploy.Segmentation{}, fmt.Errorf("argmax produced %T", am.Data())
	}

	mask := make([]int32, len(idx))
	for i, v := range idx {
		mask[i] = int32(v)
	}
	return mmdeploy.Segmentation{
		Mask:    mask,
		Height:  int32(img.Height),
		Width:   int32(img.Width),
		Classes: int32(m.art.Classes),
	}, nil
}
