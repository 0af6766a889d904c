package drift

import "FinCast/internal/domain/models"

// recordRing is a fixed-capacity circular buffer of prediction records.
// Appending past capacity overwrites the oldest entry, so history stays
// bounded without front-of-slice removal.
type recordRing struct {
	buf   []models.PredictionRecord
	head  int
	count int
}

func newRecordRing(capacity int) *recordRing {
	if capacity <= 0 {
		capacity = 500
	}
	return &recordRing{buf: make([]models.PredictionRecord, capacity)}
}

func (r *recordRing) push(rec models.PredictionRecord) {
	r.buf[r.head] = rec
	r.head = (r.head + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *recordRing) len() int { return r.count }

// items returns the window oldest-first.
func (r *recordRing) items() []models.PredictionRecord {
	out := make([]models.PredictionRecord, 0, r.count)
	start := r.head - r.count
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[((start+i)%len(r.buf)+len(r.buf))%len(r.buf)])
	}
	return out
}

// tail returns the most recent n records oldest-first.
func (r *recordRing) tail(n int) []models.PredictionRecord {
	all := r.items()
	if n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}

// before returns everything older than the most recent n records, capped to
// the last limit entries of that older region.
func (r *recordRing) before(n, limit int) []models.PredictionRecord {
	all := r.items()
	if n >= len(all) {
		return nil
	}
	older := all[:len(all)-n]
	if limit > 0 && len(older) > limit {
		older = older[len(older)-limit:]
	}
	return older
}
