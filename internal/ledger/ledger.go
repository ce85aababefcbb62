package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"greenhouse/internal/metrics"
	"greenhouse/internal/models"
)

var ErrPersistence = errors.New("history persistence failure")

// RecentRecommendationLimit is how many recommendations PerformanceHistory returns
const RecentRecommendationLimit = 5

type Metadata struct {
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Document is the persisted history: read wholesale, rewritten wholesale
type Document struct {
	Predictions     []models.PredictionRecord            `json:"predictions"`
	Recommendations []models.RecommendationRecord        `json:"recommendations"`
	CropHistory     map[string][]models.CropHistoryEntry `json:"crop_history"`
	Metadata        Metadata                             `json:"metadata"`
}

func newDocument(now time.Time) *Document {
	return &Document{
		Predictions:     []models.PredictionRecord{},
		Recommendations: []models.RecommendationRecord{},
		CropHistory:     map[string][]models.CropHistoryEntry{},
		Metadata:        Metadata{CreatedAt: now, LastUpdated: now},
	}
}

// Ledger is the only writer of prediction, recommendation and crop score
// history. Every mutation is persisted before it returns; a failed save leaves
// the in-memory state untouched.
type Ledger struct {
	mu         sync.Mutex
	store      DocumentStore
	doc        *Document
	resetCause error
	now        func() time.Time
}

// Open loads the document from store. A missing document starts an empty
// ledger; an unreadable or corrupt one does too, and ResetCause reports why.
func Open(store DocumentStore) *Ledger {
	l := &Ledger{store: store, now: time.Now}
	l.doc = l.load()
	return l
}

func (l *Ledger) load() *Document {
	data, err := l.store.Load()
	if errors.Is(err, ErrNotFound) {
		return newDocument(l.now())
	}
	if err != nil {
		l.resetCause = err
		return newDocument(l.now())
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		l.resetCause = fmt.Errorf("corrupt history document: %w", err)
		return newDocument(l.now())
	}
	if doc.Predictions == nil {
		doc.Predictions = []models.PredictionRecord{}
	}
	if doc.Recommendations == nil {
		doc.Recommendations = []models.RecommendationRecord{}
	}
	if doc.CropHistory == nil {
		doc.CropHistory = map[string][]models.CropHistoryEntry{}
	}
	return &doc
}

// ResetCause is non-nil when Open discarded an unreadable document
func (l *Ledger) ResetCause() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resetCause
}

// mutate applies fn to a copy of the document, saves it and only then swaps it in
func (l *Ledger) mutate(op string, fn func(doc *Document, now time.Time) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := json.Marshal(l.doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	var next Document
	if err := json.Unmarshal(current, &next); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if next.CropHistory == nil {
		next.CropHistory = map[string][]models.CropHistoryEntry{}
	}

	now := l.now()
	if err := fn(&next, now); err != nil {
		return err
	}
	next.Metadata.LastUpdated = now

	data, err := json.MarshalIndent(&next, "", "  ")
	if err == nil {
		err = l.store.Save(data)
	}
	metrics.RecordLedgerWrite(op, err)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
	}

	l.doc = &next
	return nil
}

func dateKey(date time.Time) string {
	return date.Format(models.DateLayout)
}

// UpsertPrediction records a prediction for date. Records are keyed by date
// alone: if one exists, only its actual temperature and update time change.
func (l *Ledger) UpsertPrediction(date time.Time, crop string, predicted float64, actual *float64) error {
	key := dateKey(date)
	return l.mutate("upsert_prediction", func(doc *Document, now time.Time) error {
		for i := range doc.Predictions {
			p := &doc.Predictions[i]
			if p.Date != key {
				continue
			}
			if p.Crop != crop {
				log.Printf("Warning: prediction for %s belongs to %s, updating it for %s", key, p.Crop, crop)
			}
			p.ActualTemp = copyFloat(actual)
			p.UpdatedAt = now
			return nil
		}
		doc.Predictions = append(doc.Predictions, models.PredictionRecord{
			Date:          key,
			Crop:          crop,
			PredictedTemp: predicted,
			ActualTemp:    copyFloat(actual),
			RecordedAt:    now,
			UpdatedAt:     now,
		})
		return nil
	})
}

// UpdateActualTemperature fills in the observed temperature for date. It
// reports false, without writing, when no prediction exists for that date.
func (l *Ledger) UpdateActualTemperature(date time.Time, actual float64) (bool, error) {
	key := dateKey(date)

	l.mu.Lock()
	found := false
	for _, p := range l.doc.Predictions {
		if p.Date == key {
			found = true
			break
		}
	}
	l.mu.Unlock()
	if !found {
		return false, nil
	}

	updated := false
	err := l.mutate("update_actual", func(doc *Document, now time.Time) error {
		for i := range doc.Predictions {
			if doc.Predictions[i].Date == key {
				v := actual
				doc.Predictions[i].ActualTemp = &v
				doc.Predictions[i].UpdatedAt = now
				updated = true
				return nil
			}
		}
		return nil
	})
	return updated && err == nil, err
}

func (l *Ledger) AppendRecommendation(date time.Time, crop string, payload models.Recommendation) error {
	return l.mutate("append_recommendation", func(doc *Document, now time.Time) error {
		doc.Recommendations = append(doc.Recommendations, models.RecommendationRecord{
			Date:            dateKey(date),
			Crop:            crop,
			Recommendations: payload,
			RecordedAt:      now,
		})
		return nil
	})
}

// UpdateCropPerformance appends a timestamped score to the crop's log
func (l *Ledger) UpdateCropPerformance(crop string, score float64) error {
	return l.mutate("crop_performance", func(doc *Document, now time.Time) error {
		doc.CropHistory[crop] = append(doc.CropHistory[crop], models.CropHistoryEntry{Date: now, Score: score})
		return nil
	})
}

// Accuracy computes MAE and RMSE over resolved predictions accepted by filter
// (nil accepts all). Both are nil when nothing matches.
func (l *Ledger) Accuracy(filter func(models.PredictionRecord) bool) models.Accuracy {
	l.mu.Lock()
	defer l.mu.Unlock()
	return accuracy(l.doc.Predictions, filter)
}

func accuracy(predictions []models.PredictionRecord, filter func(models.PredictionRecord) bool) models.Accuracy {
	var absSum, sqSum float64
	n := 0
	for _, p := range predictions {
		if p.ActualTemp == nil || (filter != nil && !filter(p)) {
			continue
		}
		e := math.Abs(p.PredictedTemp - *p.ActualTemp)
		absSum += e
		sqSum += e * e
		n++
	}
	if n == 0 {
		return models.Accuracy{}
	}
	mae := absSum / float64(n)
	rmse := math.Sqrt(sqSum / float64(n))
	return models.Accuracy{MAE: &mae, RMSE: &rmse, SampleSize: n}
}

// ForCrop is an Accuracy filter selecting one crop's predictions
func ForCrop(crop string) func(models.PredictionRecord) bool {
	return func(p models.PredictionRecord) bool { return p.Crop == crop }
}

func (l *Ledger) CropHistory(crop string) []models.CropHistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.CropHistoryEntry{}, l.doc.CropHistory[crop]...)
}

// RecentPredictions returns the last n predictions in insertion order
func (l *Ledger) RecentPredictions(n int) []models.PredictionRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return tail(l.doc.Predictions, n)
}

// RecentRecommendations returns the last n recommendations for crop
func (l *Ledger) RecentRecommendations(crop string, n int) []models.RecommendationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return recentRecommendations(l.doc.Recommendations, crop, n)
}

func recentRecommendations(all []models.RecommendationRecord, crop string, n int) []models.RecommendationRecord {
	var matched []models.RecommendationRecord
	for _, r := range all {
		if r.Crop == crop {
			matched = append(matched, r)
		}
	}
	if len(matched) > n {
		matched = matched[len(matched)-n:]
	}
	if matched == nil {
		matched = []models.RecommendationRecord{}
	}
	return matched
}

func (l *Ledger) PerformanceHistory(crop string) models.PerformanceHistory {
	l.mu.Lock()
	defer l.mu.Unlock()

	return models.PerformanceHistory{
		Crop:                  crop,
		History:               append([]models.CropHistoryEntry{}, l.doc.CropHistory[crop]...),
		PredictionAccuracy:    accuracy(l.doc.Predictions, ForCrop(crop)),
		RecentRecommendations: recentRecommendations(l.doc.Recommendations, crop, RecentRecommendationLimit),
	}
}

// Metadata returns the document's creation and last update times
func (l *Ledger) Metadata() Metadata {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.doc.Metadata
}

func tail(records []models.PredictionRecord, n int) []models.PredictionRecord {
	if n <= 0 {
		return []models.PredictionRecord{}
	}
	if len(records) > n {
		records = records[len(records)-n:]
	}
	return append([]models.PredictionRecord{}, records...)
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
