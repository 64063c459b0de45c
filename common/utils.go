package common

import (
	"math/big"
	"net/url"
)

func IsValidURL(input string) bool {
	_, err := url.ParseRequestURI(input)
	return err == nil
}

// MulPercentage scales v by pct percent (pct=170 means 170%), rounding down.
func MulPercentage(v *big.Int, pct uint64) *big.Int {
	result := new(big.Int).Mul(v, new(big.Int).SetUint64(pct))
	return result.Div(result, big.NewInt(100))
}
