package nn

import (
	"fmt"
	"math"

	"github.com/manifold-ml/manifold/internal/tensor"
)

// Loss scores model predictions against targets.
type Loss interface {
	// Forward returns the scalar loss for a batch of predictions.
	Forward(predictions, targets *tensor.Tensor) float32

	// Name returns the loss name for logs and summaries.
	Name() string
}

// MSELoss computes mean squared error: mean((predictions - targets)^2).
type MSELoss struct{}

// NewMSELoss creates an MSE loss function.
func NewMSELoss() *MSELoss {
	return &MSELoss{}
}

// Name returns "mse".
func (m *MSELoss) Name() string {
	return "mse"
}

// Forward computes the MSE loss. Prediction and target shapes must match.
func (m *MSELoss) Forward(predictions, targets *tensor.Tensor) float32 {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic(fmt.Sprintf("nn: MSELoss shape mismatch: %v vs %v", predictions.Shape(), targets.Shape()))
	}
	diff := predictions.Sub(targets)
	return diff.Mul(diff).Mean()
}

// CrossEntropyLoss computes softmax cross entropy for classification.
//
// Predictions are raw logits of shape [batch, classes]; targets hold the
// class index of each sample as a [batch] tensor. The log-sum-exp is
// shifted by the row maximum for numerical stability.
type CrossEntropyLoss struct{}

// NewCrossEntropyLoss creates a cross-entropy loss function.
func NewCrossEntropyLoss() *CrossEntropyLoss {
	return &CrossEntropyLoss{}
}

// Name returns "cross_entropy".
func (c *CrossEntropyLoss) Name() string {
	return "cross_entropy"
}

// Forward computes the mean cross entropy over the batch.
func (c *CrossEntropyLoss) Forward(predictions, targets *tensor.Tensor) float32 {
	ps := predictions.Shape()
	ts := targets.Shape()
	if len(ps) != 2 || len(ts) != 1 || ps[0] != ts[0] {
		panic(fmt.Sprintf("nn: CrossEntropyLoss expects [batch, classes] logits and [batch] targets, got %v and %v", ps, ts))
	}

	n, k := ps[0], ps[1]
	pd := predictions.Data()
	td := targets.Data()

	var total float64
	for i := 0; i < n; i++ {
		row := pd[i*k : (i+1)*k]
		maxv := row[0]
		for _, v := range row[1:] {
			if v > maxv {
				maxv = v
			}
		}
		var sumExp float64
		for _, v := range row {
			sumExp += math.Exp(float64(v - maxv))
		}
		cls := int(td[i])
		if cls < 0 || cls >= k {
			panic(fmt.Sprintf("nn: CrossEntropyLoss target class %d out of range [0, %d)", cls, k))
		}
		logProb := float64(row[cls]-maxv) - math.Log(sumExp)
		total -= logProb
	}
	return float32(total / float64(n))
}
