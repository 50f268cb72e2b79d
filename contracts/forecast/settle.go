package forecast

import (
	"github.com/holiman/uint256"
	"go.dedis.ch/forecast/confidential"
	"golang.org/x/xerrors"
)

// settle returns the encrypted reward of the prediction for the recorded
// price. The computation never branches on an encrypted value: both outcomes
// are lifted and the engine selects one of them.
//
//	correct = (dir == greater AND actual > predicted) OR (dir == less AND actual < predicted)
//	reward  = correct ? stake : 0
func settle(s confidential.Session, price uint64, pred Prediction) (confidential.Handle, error) {
	var zero confidential.Handle

	actual, err := s.Lift(confidential.Uint64, uint256.NewInt(price))
	if err != nil {
		return zero, xerrors.Errorf("price: %w", err)
	}

	isGreater, err := s.Gt(actual, pred.Price)
	if err != nil {
		return zero, xerrors.Errorf("gt: %w", err)
	}

	isLess, err := s.Lt(actual, pred.Price)
	if err != nil {
		return zero, xerrors.Errorf("lt: %w", err)
	}

	greater, err := s.Lift(confidential.Uint8, uint256.NewInt(DirectionGreater))
	if err != nil {
		return zero, xerrors.Errorf("direction: %w", err)
	}

	less, err := s.Lift(confidential.Uint8, uint256.NewInt(DirectionLess))
	if err != nil {
		return zero, xerrors.Errorf("direction: %w", err)
	}

	dirGreater, err := s.Eq(pred.Direction, greater)
	if err != nil {
		return zero, xerrors.Errorf("eq: %w", err)
	}

	dirLess, err := s.Eq(pred.Direction, less)
	if err != nil {
		return zero, xerrors.Errorf("eq: %w", err)
	}

	correctGreater, err := s.And(dirGreater, isGreater)
	if err != nil {
		return zero, xerrors.Errorf("and: %w", err)
	}

	correctLess, err := s.And(dirLess, isLess)
	if err != nil {
		return zero, xerrors.Errorf("and: %w", err)
	}

	correct, err := s.Or(correctGreater, correctLess)
	if err != nil {
		return zero, xerrors.Errorf("or: %w", err)
	}

	stake, err := s.Lift(confidential.Uint128, pred.Stake)
	if err != nil {
		return zero, xerrors.Errorf("stake: %w", err)
	}

	nothing, err := s.Lift(confidential.Uint128, uint256.NewInt(0))
	if err != nil {
		return zero, xerrors.Errorf("stake: %w", err)
	}

	reward, err := s.Select(correct, stake, nothing)
	if err != nil {
		return zero, xerrors.Errorf("select: %w", err)
	}

	return reward, nil
}
