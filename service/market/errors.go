package market

import "errors"

var (
	// ErrNotFound means no market exists for the contract address.
	ErrNotFound = errors.New("market not found")

	// ErrAlreadySeeded means a market already exists for the contract
	// address; seeding never overwrites community state.
	ErrAlreadySeeded = errors.New("market already seeded")

	// ErrWalletNotConnected means the submitter has no active wallet
	// session. Connectivity is checked at submission time, not before.
	ErrWalletNotConnected = errors.New("wallet not connected")

	// ErrInvalidAmount means the stake is outside the allowed bounds or
	// not a finite number.
	ErrInvalidAmount = errors.New("invalid stake amount")

	// ErrInvalidSeed means the market seed is out of range: the yes
	// percentage must be in [0,100] and stake/participant counts must be
	// non-negative.
	ErrInvalidSeed = errors.New("invalid market seed")

	// ErrInvalidPrediction means the prediction side is neither yes nor
	// no.
	ErrInvalidPrediction = errors.New("invalid prediction")
)
