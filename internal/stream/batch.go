package stream

import (
	"encoding/json"
	"fmt"
	"time"

	"greenhouse/internal/models"
)

// Batch types
const (
	TypeHistorical  = "historical"
	TypeIncremental = "incremental"
)

// dataField is the stream entry field carrying the JSON payload
const dataField = "data"

// ObservationBatch is one location's cleaned observations as published to the stream
type ObservationBatch struct {
	Location     models.Location      `json:"location"`
	Observations []models.Observation `json:"observations"`
	Type         string               `json:"type"`
	PublishedAt  time.Time            `json:"published_at"`
}

// RecommendationEvent is published whenever a recommendation is logged
type RecommendationEvent struct {
	Location string                      `json:"location,omitempty"`
	Record   models.RecommendationRecord `json:"record"`
	// Predicted is tomorrow's temperature; nil when no prediction was made
	Predicted *float64 `json:"predicted_temperature,omitempty"`
}

func encode(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize payload: %w", err)
	}
	return map[string]interface{}{dataField: string(data)}, nil
}

func payload(values map[string]interface{}) ([]byte, error) {
	raw, ok := values[dataField]
	if !ok {
		return nil, fmt.Errorf("stream entry has no %q field", dataField)
	}
	switch v := raw.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("stream entry field %q has type %T", dataField, raw)
	}
}

// DecodeObservationBatch decodes the values of one stream entry
func DecodeObservationBatch(values map[string]interface{}) (ObservationBatch, error) {
	var batch ObservationBatch
	data, err := payload(values)
	if err != nil {
		return batch, err
	}
	if err := json.Unmarshal(data, &batch); err != nil {
		return batch, fmt.Errorf("failed to unmarshal observation batch: %w", err)
	}
	if batch.Location.Name == "" {
		return batch, fmt.Errorf("observation batch has no location name")
	}
	return batch, nil
}

// DecodeRecommendationEvent decodes one entry of the recommendation stream
func DecodeRecommendationEvent(values map[string]interface{}) (RecommendationEvent, error) {
	var event RecommendationEvent
	data, err := payload(values)
	if err != nil {
		return event, err
	}
	if err := json.Unmarshal(data, &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal recommendation event: %w", err)
	}
	if event.Record.Crop == "" || event.Record.Date == "" {
		return event, fmt.Errorf("recommendation event has no crop or date")
	}
	return event, nil
}
