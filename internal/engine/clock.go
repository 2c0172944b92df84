package engine

import "github.com/slipway-sh/slipway/internal/shell/kube"

// Clock abstracts time for the verify and settle loops. It is the same
// abstraction the cluster adapter polls with, so one fake serves both.
type Clock = kube.Clock

// NewClock returns the wall clock.
func NewClock() Clock { return kube.NewClock() }
