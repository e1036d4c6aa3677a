package transport

import (
	"encoding/json"

	"github.com/pkg/errors"

	"egm_trajectory/types"
)

// FeedbackFrame is sent by the robot controller once per cycle.
type FeedbackFrame struct {
	Sequence uint32         `json:"seq"`
	Feedback types.Feedback `json:"feedback"`
}

// ReferenceFrame answers a FeedbackFrame with the same sequence number.
type ReferenceFrame struct {
	Sequence uint32       `json:"seq"`
	Output   types.Output `json:"output"`
}

// EncodeFeedback serializes a feedback frame.
func EncodeFeedback(f FeedbackFrame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode feedback frame")
	}
	return data, nil
}

// DecodeFeedback parses a feedback frame.
func DecodeFeedback(data []byte) (FeedbackFrame, error) {
	var f FeedbackFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return f, errors.Wrap(err, "failed to decode feedback frame")
	}
	return f, nil
}

// EncodeReference serializes a reference frame.
func EncodeReference(f ReferenceFrame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode reference frame")
	}
	return data, nil
}

// DecodeReference parses a reference frame.
func DecodeReference(data []byte) (ReferenceFrame, error) {
	var f ReferenceFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return f, errors.Wrap(err, "failed to decode reference frame")
	}
	return f, nil
}
