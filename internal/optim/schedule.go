package optim

// LinearDecay interpolates the learning rate linearly from lr0 to lrTau
// over tau iterations, then holds it at lrTau:
//
//	lr(iter) = (1 - iter/tau)*lr0 + (iter/tau)*lrTau   for iter <= tau
//	lr(iter) = lrTau                                   for iter >  tau
type LinearDecay struct {
	LR0   float32
	LRTau float32
	Tau   int
}

// At returns the learning rate for the given iteration.
func (d LinearDecay) At(iter int) float32 {
	if d.Tau <= 0 || iter >= d.Tau {
		return d.LRTau
	}
	frac := float32(iter) / float32(d.Tau)
	return (1-frac)*d.LR0 + frac*d.LRTau
}

// Apply sets the optimizer learning rate for the given iteration.
func (d LinearDecay) Apply(opt Optimizer, iter int) {
	opt.SetLR(d.At(iter))
}
