package metrics

import "context"

type captureHistogram struct {
	records [][]Label
}

func (h *captureHistogram) Record(_ context.Context, _ float64, labels ...Label) {
	copied := make([]Label, len(labels))
	copy(copied, labels)
	h.records = append(h.records, copied)
}

func labelValue(labels []Label, key string) (string, bool) {
	for _, label := range labels {
		if label.Key == key {
			return label.Value, true
		}
	}
	return "", false
}
