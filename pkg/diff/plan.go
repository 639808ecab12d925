// roles/pkg/diff/plan.go

package diff

import (
	"zodiac/roles/pkg/logging"
	"zodiac/roles/pkg/roles"
)

// Plan diffs prev against next and verifies the result: the calls are
// replayed on prev and the outcome must diff empty against next.
func Plan(prev, next roles.State) (Diff, error) {
	d, err := DiffState(prev, next)
	if err != nil {
		return Diff{}, err
	}

	applied, err := Apply(prev, d.Calls())
	if err != nil {
		logging.LogError(logging.Logger, err)
		return Diff{}, err
	}

	residual, err := DiffState(applied, next)
	if err != nil {
		return Diff{}, err
	}
	if !residual.IsEmpty() {
		names := make([]string, 0, len(residual.Minus)+len(residual.Plus))
		for _, c := range residual.Calls() {
			names = append(names, c.Name())
		}
		err := logging.NewError(logging.ErrorTypeConsistency, "applying the diff does not reproduce the next state", nil, map[string]interface{}{
			"residual": names,
		})
		logging.LogError(logging.Logger, err)
		return Diff{}, err
	}

	logging.Logger.Debug().Int("minus", len(d.Minus)).Int("plus", len(d.Plus)).Msg("Planned diff")
	return d, nil
}
