// SPDX-License-Identifier: AGPL-3.0-only

package policy

import (
	"context"

	logf "sigs.k8s.io/controller-runtime/pkg/log"
)

// CheckFunc is a single admission predicate. A nil decision with a nil error
// means the object does not carry enough information for this predicate to
// decide; the pipeline treats that the same as MoveOn and keeps going.
type CheckFunc[T any] func(ctx context.Context, obj T) (*Decision, error)

// Checks is an ordered short-circuit pipeline of predicates. Predicates run
// strictly in declaration order, one at a time; the first non-MoveOn decision
// ends the run.
type Checks[T any] []CheckFunc[T]

// Run walks the pipeline. Errors become internal-error denials, and a pipeline
// that ends without any predicate deciding reports invalid input.
func (cs Checks[T]) Run(ctx context.Context, obj T) Decision {
	accum := moveOn()
	for _, check := range cs {
		if accum != nil && accum.Verdict != VerdictMoveOn {
			break
		}
		decision, err := check(ctx, obj)
		if err != nil {
			logf.FromContext(ctx).Error(err, "admission check failed")
			return deniedInternal(err)
		}
		accum = decision
	}
	if accum == nil {
		return insufficientInput()
	}
	return *accum
}
