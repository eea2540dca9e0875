package composer

import (
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	nonceFetchCount             = metrics.GetOrRegisterCounter("astria/composer/nonce_fetch_count", nil)
	nonceFetchFailureCount      = metrics.GetOrRegisterCounter("astria/composer/nonce_fetch_failure_count", nil)
	sequencerSubmissionFailures = metrics.GetOrRegisterCounter("astria/composer/sequencer_submission_failure_count", nil)
	txsDroppedTooLargeCount     = metrics.GetOrRegisterCounter("astria/composer/txs_dropped_too_large_count", nil)
	bytesPerSubmission          = metrics.GetOrRegisterHistogram("astria/composer/bytes_per_submission", nil, metrics.NewExpDecaySample(1028, 0.015))
	txsPerSubmission            = metrics.GetOrRegisterHistogram("astria/composer/txs_per_submission", nil, metrics.NewExpDecaySample(1028, 0.015))
	currentNonceGauge           = metrics.GetOrRegisterGauge("astria/composer/current_nonce", nil)
)
