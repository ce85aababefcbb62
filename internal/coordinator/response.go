package coordinator

import (
	"greenhouse/internal/ledger"
	"greenhouse/internal/models"
	"greenhouse/internal/predictor"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
	StatusPartial Status = "partial"
)

// Response is returned by every coordinator operation. Only the fields the
// operation produces are set.
type Response struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`

	DataPoints      int                                 `json:"data_points,omitempty"`
	Temperature     *models.TemperatureMetrics          `json:"temperature,omitempty"`
	CropSuitability map[string]models.SuitabilityResult `json:"crop_suitability,omitempty"`
	SoilMoisture    *float64                            `json:"soil_moisture,omitempty"`

	Training   *predictor.TrainingSummary `json:"training,omitempty"`
	ModelState string                     `json:"model_state,omitempty"`

	Crop            string                     `json:"crop,omitempty"`
	IdealRange      string                     `json:"ideal_range,omitempty"`
	Recommendations *models.Recommendation     `json:"recommendations,omitempty"`
	Prediction      *predictor.Prediction      `json:"prediction,omitempty"`
	Performance     *models.PerformanceHistory `json:"performance,omitempty"`
	CropAdvice      *models.CropAdvice         `json:"crop_recommendations,omitempty"`
	Answer          string                     `json:"response,omitempty"`

	History *ledger.Metadata `json:"history,omitempty"`
}

func success(message string) Response {
	return Response{Status: StatusSuccess, Message: message}
}

func failure(message string) Response {
	return Response{Status: StatusError, Message: message}
}

// OK reports whether the operation produced its result, possibly partially
func (r Response) OK() bool {
	return r.Status == StatusSuccess || r.Status == StatusPartial
}
