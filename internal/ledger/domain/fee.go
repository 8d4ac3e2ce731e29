package domain

// FeeSplit divides a gross amount in cents into the platform fee and the
// creator's net share. The fee rounds half up, the net is the remainder,
// so gross == fee + net holds exactly for every input.
func FeeSplit(gross, feePercent int64) (fee, net int64) {
	if gross <= 0 || feePercent <= 0 {
		return 0, gross
	}
	if feePercent >= 100 {
		return gross, 0
	}

	fee = (gross*feePercent + 50) / 100
	net = gross - fee
	return fee, net
}
